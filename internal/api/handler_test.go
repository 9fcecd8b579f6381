package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jotishBolds/sbte-import-service/internal/config"
	"github.com/jotishBolds/sbte-import-service/internal/db"
	"github.com/jotishBolds/sbte-import-service/internal/model"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRepo serves the handler tests; only the lookups the exam-marks path
// touches are backed by data, everything else returns empty sets.
type stubRepo struct {
	examType     *model.ExamType
	batchSubject *model.BatchSubject
	students     map[string]*model.Student
	batchMembers map[int64]struct{}

	inserted []*model.ExamMark

	importFiles map[int64]*model.ImportFile
}

func (s *stubRepo) GetExamType(ctx context.Context, id int64) (*model.ExamType, error) {
	if s.examType == nil || s.examType.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.examType, nil
}

func (s *stubRepo) GetBatchSubject(ctx context.Context, id int64) (*model.BatchSubject, error) {
	if s.batchSubject == nil || s.batchSubject.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.batchSubject, nil
}

func (s *stubRepo) GetStudentsByEnrollmentNos(ctx context.Context, enrollmentNos []string) (map[string]*model.Student, error) {
	found := make(map[string]*model.Student)
	for _, no := range enrollmentNos {
		if st, ok := s.students[no]; ok {
			found[no] = st
		}
	}
	return found, nil
}

func (s *stubRepo) GetBatchStudentIDs(ctx context.Context, batchID int64) (map[int64]struct{}, error) {
	return s.batchMembers, nil
}

func (s *stubRepo) GetExamMarkStudentIDs(ctx context.Context, examTypeID, batchSubjectID int64) (map[int64]struct{}, error) {
	return map[int64]struct{}{}, nil
}

func (s *stubRepo) InsertExamMark(ctx context.Context, mark *model.ExamMark) error {
	s.inserted = append(s.inserted, mark)
	return nil
}

func (s *stubRepo) GetGradeDetailStudentIDs(ctx context.Context, batchSubjectID int64) (map[int64]struct{}, error) {
	return map[int64]struct{}{}, nil
}

func (s *stubRepo) GetGradeCardNos(ctx context.Context, batchID int64, semester int) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (s *stubRepo) InGradeTx(ctx context.Context, fn func(tx db.GradeTx) error) error {
	return fmt.Errorf("not supported in stub")
}

func (s *stubRepo) InsertImportFile(ctx context.Context, file *model.ImportFile) (int64, error) {
	return 0, fmt.Errorf("not supported in stub")
}

func (s *stubRepo) UpdateImportStatus(ctx context.Context, id int64, status model.ImportStatus, result, errorMessage *string) error {
	return nil
}

func (s *stubRepo) GetImportFile(ctx context.Context, id int64) (*model.ImportFile, error) {
	f, ok := s.importFiles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return f, nil
}

func newTestRouter(repo db.Repository) *gin.Engine {
	cfg := &config.Config{
		App: config.AppConfig{Name: "sbte-import-service", Version: "test"},
		Import: config.ImportConfig{
			InsertBatchSize:   20,
			ChunkSize:         50,
			RetryAttempts:     2,
			RetryDelay:        config.Duration(time.Millisecond),
			MaxInternalMarks:  30,
			MaxReportedErrors: 10,
		},
	}

	handler := NewHandler(repo, nil, nil, cfg)
	router := gin.New()
	SetupRoutes(router, handler)
	return router
}

func examSheet(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "B1", "Student Name"))
	require.NoError(t, f.SetCellValue(sheet, "C1", "Enrollment No"))
	require.NoError(t, f.SetCellValue(sheet, "D1", "Marks"))
	require.NoError(t, f.SetCellValue(sheet, "B2", "Arjun Rai"))
	require.NoError(t, f.SetCellValue(sheet, "C2", "21010001"))
	require.NoError(t, f.SetCellValue(sheet, "D2", 54.0))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func multipartSheet(t *testing.T, filename string, sheet []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(sheet)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func examStubRepo() *stubRepo {
	return &stubRepo{
		examType:     &model.ExamType{ID: 7, Name: "End Term", TotalMarks: 70, PassingMarks: 28},
		batchSubject: &model.BatchSubject{ID: 11, BatchID: 3, SubjectID: 5, Credit: 4, Semester: 3},
		students: map[string]*model.Student{
			"21010001": {ID: 101, EnrollmentNo: "21010001", Name: "Arjun Rai"},
		},
		batchMembers: map[int64]struct{}{101: {}},
		importFiles:  map[int64]*model.ImportFile{},
	}
}

func TestImportExamMarksEndpoint(t *testing.T) {
	repo := examStubRepo()
	router := newTestRouter(repo)

	body, contentType := multipartSheet(t, "marks.xlsx", examSheet(t), map[string]string{
		"examTypeId":     "7",
		"batchSubjectId": "11",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/examMarks/excelImport", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		SuccessCount int `json:"successCount"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.SuccessCount)
	require.Len(t, repo.inserted, 1)
	assert.Equal(t, int64(101), repo.inserted[0].StudentID)
}

func TestImportExamMarksMissingFile(t *testing.T) {
	router := newTestRouter(examStubRepo())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/examMarks/excelImport", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportExamMarksRejectsNonXLSX(t *testing.T) {
	router := newTestRouter(examStubRepo())

	body, contentType := multipartSheet(t, "marks.csv", []byte("a,b,c"), map[string]string{
		"examTypeId":     "7",
		"batchSubjectId": "11",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/examMarks/excelImport", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportExamMarksUnknownExamType(t *testing.T) {
	router := newTestRouter(examStubRepo())

	body, contentType := multipartSheet(t, "marks.xlsx", examSheet(t), map[string]string{
		"examTypeId":     "999",
		"batchSubjectId": "11",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/examMarks/excelImport", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportExamMarksUnknownStudentRejected(t *testing.T) {
	repo := examStubRepo()
	repo.students = map[string]*model.Student{}
	router := newTestRouter(repo)

	body, contentType := multipartSheet(t, "marks.xlsx", examSheet(t), map[string]string{
		"examTypeId":     "7",
		"batchSubjectId": "11",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/examMarks/excelImport", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var reject model.ExamMarksReject
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reject))
	assert.Equal(t, []int{2}, reject.MissingRows)
	assert.Empty(t, repo.inserted)
}

func TestGetImportStatus(t *testing.T) {
	repo := examStubRepo()
	result := `{"summary":{"total":5,"successful":5,"failed":0}}`
	repo.importFiles[42] = &model.ImportFile{
		ID:     42,
		Status: model.ImportStatusCompleted,
		Result: &result,
	}
	router := newTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/42/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		FileID int64           `json:"fileId"`
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp.FileID)
	assert.Equal(t, string(model.ImportStatusCompleted), resp.Status)
	assert.JSONEq(t, result, string(resp.Result))
}

func TestGetImportStatusNotFound(t *testing.T) {
	router := newTestRouter(examStubRepo())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/99/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(examStubRepo())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
