package api

import (
	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	// Health check
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Import routes
		v1.POST("/examMarks/excelImport", handler.ImportExamMarks)
		v1.POST("/examMarks/queueImport", handler.QueueExamMarksImport)
		v1.POST("/gradeCard/importInternal", handler.ImportInternalMarks)
		v1.GET("/imports/:file_id/status", handler.GetImportStatus)
	}
}
