package api

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jotishBolds/sbte-import-service/internal/config"
	"github.com/jotishBolds/sbte-import-service/internal/db"
	"github.com/jotishBolds/sbte-import-service/internal/importer"
	"github.com/jotishBolds/sbte-import-service/internal/logger"
	"github.com/jotishBolds/sbte-import-service/internal/model"
	"github.com/jotishBolds/sbte-import-service/internal/queue"
	"github.com/jotishBolds/sbte-import-service/internal/storage"
	pkgerrors "github.com/jotishBolds/sbte-import-service/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type Handler struct {
	repo             db.Repository
	producer         *queue.Producer
	archive          storage.Archive
	examImporter     *importer.ExamMarksImporter
	internalImporter *importer.InternalMarksImporter
	cfg              *config.Config
	log              zerolog.Logger
}

func NewHandler(
	repo db.Repository,
	producer *queue.Producer,
	archive storage.Archive,
	cfg *config.Config,
) *Handler {
	return &Handler{
		repo:             repo,
		producer:         producer,
		archive:          archive,
		examImporter:     importer.NewExamMarksImporter(cfg, repo),
		internalImporter: importer.NewInternalMarksImporter(cfg, repo),
		cfg:              cfg,
		log:              logger.Get(),
	}
}

// ImportExamMarks handles the synchronous exam-marks spreadsheet import.
func (h *Handler) ImportExamMarks(c *gin.Context) {
	data, ok := h.readSheet(c)
	if !ok {
		return
	}

	examTypeID, ok := h.formID(c, "examTypeId")
	if !ok {
		return
	}
	batchSubjectID, ok := h.formID(c, "batchSubjectId")
	if !ok {
		return
	}

	result, reject, err := h.examImporter.Import(c.Request.Context(), data, examTypeID, batchSubjectID)
	if err != nil {
		h.importError(c, err)
		return
	}

	if reject != nil {
		c.JSON(http.StatusBadRequest, reject)
		return
	}

	if result.PartialFailure {
		c.JSON(http.StatusMultiStatus, gin.H{
			"message":      "Exam marks imported with some failures",
			"errors":       result.Errors,
			"summary":      result.Summary,
			"successCount": result.Summary.Successful,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "Exam marks imported successfully",
		"summary":      result.Summary,
		"successCount": result.Summary.Successful,
	})
}

// ImportInternalMarks handles the grade-card internal-marks import. Any
// rejected row blocks the whole sheet.
func (h *Handler) ImportInternalMarks(c *gin.Context) {
	data, ok := h.readSheet(c)
	if !ok {
		return
	}

	batchSubjectID, ok := h.formID(c, "batchSubjectId")
	if !ok {
		return
	}

	result, reject, err := h.internalImporter.Import(c.Request.Context(), data, batchSubjectID)
	if err != nil {
		h.importError(c, err)
		return
	}

	if reject != nil {
		c.JSON(http.StatusBadRequest, reject)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      "Internal marks imported successfully",
		"successCount": result.SuccessCount,
	})
}

// QueueExamMarksImport archives the sheet and enqueues the import for a
// worker, for sheets too large to process within a request timeout.
func (h *Handler) QueueExamMarksImport(c *gin.Context) {
	data, ok := h.readSheet(c)
	if !ok {
		return
	}

	examTypeID, ok := h.formID(c, "examTypeId")
	if !ok {
		return
	}
	batchSubjectID, ok := h.formID(c, "batchSubjectId")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	key := h.archive.SheetKey()
	if err := h.archive.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		h.log.Error().Err(err).Str("s3_key", key).Msg("Failed to archive sheet")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded file"})
		return
	}

	file := &model.ImportFile{
		S3Key:          key,
		ExamTypeID:     examTypeID,
		BatchSubjectID: batchSubjectID,
		Status:         model.ImportStatusUploaded,
	}
	fileID, err := h.repo.InsertImportFile(ctx, file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to record import file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record import"})
		return
	}

	job := model.ImportJob{
		FileID:         fileID,
		S3Key:          key,
		ExamTypeID:     examTypeID,
		BatchSubjectID: batchSubjectID,
	}
	if err := h.producer.EnqueueImportJob(ctx, job); err != nil {
		h.log.Error().Err(err).Int64("file_id", fileID).Msg("Failed to enqueue import job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue import job"})
		return
	}

	h.log.Info().Int64("file_id", fileID).Str("s3_key", key).Msg("Import job enqueued")

	c.JSON(http.StatusAccepted, gin.H{
		"fileId":  fileID,
		"message": "Import queued for processing",
	})
}

// GetImportStatus reports a queued import's lifecycle and, once finished,
// its persisted summary or reject lists.
func (h *Handler) GetImportStatus(c *gin.Context) {
	fileID, err := strconv.ParseInt(c.Param("file_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file ID"})
		return
	}

	file, err := h.repo.GetImportFile(c.Request.Context(), fileID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Import not found"})
			return
		}
		h.log.Error().Err(err).Int64("file_id", fileID).Msg("Failed to get import file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	resp := gin.H{
		"fileId":    file.ID,
		"status":    file.Status,
		"updatedAt": file.UpdatedAt,
	}
	if file.Result != nil {
		resp["result"] = json.RawMessage(*file.Result)
	}
	if file.ErrorMessage != nil {
		resp["error"] = *file.ErrorMessage
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": h.cfg.App.Name,
		"version": h.cfg.App.Version,
	})
}

func (h *Handler) readSheet(c *gin.Context) ([]byte, bool) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []string{"file is required"}})
		return nil, false
	}

	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".xlsx") {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []string{"file must be an .xlsx spreadsheet"}})
		return nil, false
	}

	data, err := readAll(fileHeader)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded file")
		c.JSON(http.StatusBadRequest, gin.H{"errors": []string{"failed to read uploaded file"}})
		return nil, false
	}

	return data, true
}

func (h *Handler) formID(c *gin.Context, field string) (int64, bool) {
	id, err := strconv.ParseInt(c.PostForm(field), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": []string{field + " is required"}})
		return 0, false
	}
	return id, true
}

func (h *Handler) importError(c *gin.Context, err error) {
	switch err {
	case pkgerrors.ErrExamTypeNotFound, pkgerrors.ErrBatchSubjectNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Msg("Import failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"details": err.Error(),
		})
	}
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
