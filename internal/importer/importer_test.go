package importer

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jotishBolds/sbte-import-service/internal/config"
	"github.com/jotishBolds/sbte-import-service/internal/db"
	"github.com/jotishBolds/sbte-import-service/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		Import: config.ImportConfig{
			InsertBatchSize:   20,
			ChunkSize:         50,
			RetryAttempts:     2,
			RetryDelay:        config.Duration(time.Millisecond),
			MaxInternalMarks:  30,
			MaxReportedErrors: 10,
		},
	}
}

// fakeRepo is an in-memory db.Repository for pipeline tests.
type fakeRepo struct {
	mu sync.Mutex

	examTypes     map[int64]*model.ExamType
	batchSubjects map[int64]*model.BatchSubject
	students      map[string]*model.Student
	batchMembers  map[int64]map[int64]struct{}

	examMarks []*model.ExamMark

	gradeCards []*model.GradeCard
	details    []*model.SubjectGradeDetail

	importFiles map[int64]*model.ImportFile

	nextID int64

	// insertMarkErr, when set, can fail individual exam-mark inserts.
	insertMarkErr func(mark *model.ExamMark) error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		examTypes:     make(map[int64]*model.ExamType),
		batchSubjects: make(map[int64]*model.BatchSubject),
		students:      make(map[string]*model.Student),
		batchMembers:  make(map[int64]map[int64]struct{}),
		importFiles:   make(map[int64]*model.ImportFile),
		nextID:        1000,
	}
}

func (r *fakeRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *fakeRepo) addStudent(enrollmentNo string, batchID int64) *model.Student {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := &model.Student{ID: r.id(), EnrollmentNo: enrollmentNo, Name: "Student " + enrollmentNo}
	r.students[enrollmentNo] = s
	if _, ok := r.batchMembers[batchID]; !ok {
		r.batchMembers[batchID] = make(map[int64]struct{})
	}
	r.batchMembers[batchID][s.ID] = struct{}{}
	return s
}

func (r *fakeRepo) GetExamType(ctx context.Context, id int64) (*model.ExamType, error) {
	if et, ok := r.examTypes[id]; ok {
		return et, nil
	}
	return nil, sql.ErrNoRows
}

func (r *fakeRepo) GetBatchSubject(ctx context.Context, id int64) (*model.BatchSubject, error) {
	if bs, ok := r.batchSubjects[id]; ok {
		return bs, nil
	}
	return nil, sql.ErrNoRows
}

func (r *fakeRepo) GetStudentsByEnrollmentNos(ctx context.Context, enrollmentNos []string) (map[string]*model.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]*model.Student)
	for _, no := range enrollmentNos {
		if s, ok := r.students[no]; ok {
			out[no] = s
		}
	}
	return out, nil
}

func (r *fakeRepo) GetBatchStudentIDs(ctx context.Context, batchID int64) (map[int64]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int64]struct{})
	for id := range r.batchMembers[batchID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (r *fakeRepo) GetExamMarkStudentIDs(ctx context.Context, examTypeID, batchSubjectID int64) (map[int64]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[int64]struct{})
	for _, m := range r.examMarks {
		if m.ExamTypeID == examTypeID && m.BatchSubjectID == batchSubjectID {
			out[m.StudentID] = struct{}{}
		}
	}
	return out, nil
}

func (r *fakeRepo) InsertExamMark(ctx context.Context, mark *model.ExamMark) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.insertMarkErr != nil {
		if err := r.insertMarkErr(mark); err != nil {
			return err
		}
	}

	stored := *mark
	stored.ID = r.id()
	r.examMarks = append(r.examMarks, &stored)
	return nil
}

func (r *fakeRepo) GetGradeDetailStudentIDs(ctx context.Context, batchSubjectID int64) (map[int64]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cardStudents := make(map[int64]int64)
	for _, c := range r.gradeCards {
		cardStudents[c.ID] = c.StudentID
	}

	out := make(map[int64]struct{})
	for _, d := range r.details {
		if d.BatchSubjectID == batchSubjectID {
			out[cardStudents[d.GradeCardID]] = struct{}{}
		}
	}
	return out, nil
}

func (r *fakeRepo) GetGradeCardNos(ctx context.Context, batchID int64, semester int) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]struct{})
	for _, c := range r.gradeCards {
		if c.BatchID == batchID && c.Semester == semester {
			out[c.CardNo] = struct{}{}
		}
	}
	return out, nil
}

func (r *fakeRepo) InGradeTx(ctx context.Context, fn func(tx db.GradeTx) error) error {
	tx := &fakeGradeTx{repo: r}
	if err := fn(tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.gradeCards = append(r.gradeCards, tx.stagedCards...)
	r.details = append(r.details, tx.stagedDetails...)
	return nil
}

func (r *fakeRepo) InsertImportFile(ctx context.Context, file *model.ImportFile) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	file.ID = r.id()
	stored := *file
	r.importFiles[file.ID] = &stored
	return file.ID, nil
}

func (r *fakeRepo) UpdateImportStatus(ctx context.Context, id int64, status model.ImportStatus, result, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.importFiles[id]; ok {
		f.Status = status
		f.Result = result
		f.ErrorMessage = errorMessage
	}
	return nil
}

func (r *fakeRepo) GetImportFile(ctx context.Context, id int64) (*model.ImportFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.importFiles[id]; ok {
		copied := *f
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

// fakeGradeTx stages writes and lets InGradeTx commit them, mirroring the
// chunk-transaction semantics: a failing chunk leaves nothing behind.
type fakeGradeTx struct {
	repo          *fakeRepo
	stagedCards   []*model.GradeCard
	stagedDetails []*model.SubjectGradeDetail
}

func (t *fakeGradeTx) GetGradeCard(ctx context.Context, studentID, batchID int64, semester int) (*model.GradeCard, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	for _, c := range t.repo.gradeCards {
		if c.StudentID == studentID && c.BatchID == batchID && c.Semester == semester {
			copied := *c
			return &copied, nil
		}
	}
	for _, c := range t.stagedCards {
		if c.StudentID == studentID && c.BatchID == batchID && c.Semester == semester {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (t *fakeGradeTx) InsertGradeCard(ctx context.Context, card *model.GradeCard) (int64, error) {
	t.repo.mu.Lock()
	card.ID = t.repo.id()
	t.repo.mu.Unlock()

	stored := *card
	t.stagedCards = append(t.stagedCards, &stored)
	return card.ID, nil
}

func (t *fakeGradeTx) InsertSubjectGradeDetail(ctx context.Context, detail *model.SubjectGradeDetail) error {
	t.repo.mu.Lock()
	detail.ID = t.repo.id()
	t.repo.mu.Unlock()

	stored := *detail
	t.stagedDetails = append(t.stagedDetails, &stored)
	return nil
}

// buildSheet writes cells into a fresh workbook, keyed by axis ("C2", ...).
func buildSheet(t *testing.T, cells map[string]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for axis, value := range cells {
		require.NoError(t, f.SetCellValue(sheet, axis, value))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}
