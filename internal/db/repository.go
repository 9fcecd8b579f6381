package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jotishBolds/sbte-import-service/internal/model"
)

// Repository is the import service's view of the portal database. Lookups
// that feed row validation are batched (single IN query) so a large sheet
// never turns into per-row queries.
type Repository interface {
	GetExamType(ctx context.Context, id int64) (*model.ExamType, error)
	GetBatchSubject(ctx context.Context, id int64) (*model.BatchSubject, error)

	GetStudentsByEnrollmentNos(ctx context.Context, enrollmentNos []string) (map[string]*model.Student, error)
	GetBatchStudentIDs(ctx context.Context, batchID int64) (map[int64]struct{}, error)

	GetExamMarkStudentIDs(ctx context.Context, examTypeID, batchSubjectID int64) (map[int64]struct{}, error)
	InsertExamMark(ctx context.Context, mark *model.ExamMark) error

	GetGradeDetailStudentIDs(ctx context.Context, batchSubjectID int64) (map[int64]struct{}, error)
	GetGradeCardNos(ctx context.Context, batchID int64, semester int) (map[string]struct{}, error)
	InGradeTx(ctx context.Context, fn func(tx GradeTx) error) error

	InsertImportFile(ctx context.Context, file *model.ImportFile) (int64, error)
	UpdateImportStatus(ctx context.Context, id int64, status model.ImportStatus, result, errorMessage *string) error
	GetImportFile(ctx context.Context, id int64) (*model.ImportFile, error)
}

// GradeTx is the transactional surface of one grade-card commit chunk.
type GradeTx interface {
	// GetGradeCard returns the student's card for (batch, semester), or nil
	// when none exists yet.
	GetGradeCard(ctx context.Context, studentID, batchID int64, semester int) (*model.GradeCard, error)
	InsertGradeCard(ctx context.Context, card *model.GradeCard) (int64, error)
	InsertSubjectGradeDetail(ctx context.Context, detail *model.SubjectGradeDetail) error
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetExamType(ctx context.Context, id int64) (*model.ExamType, error) {
	query := `SELECT id, name, total_marks, passing_marks FROM exam_types WHERE id = ?`

	var et model.ExamType
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&et.ID, &et.Name, &et.TotalMarks, &et.PassingMarks,
	)
	if err != nil {
		return nil, err
	}

	return &et, nil
}

func (r *repository) GetBatchSubject(ctx context.Context, id int64) (*model.BatchSubject, error) {
	query := `SELECT bs.id, bs.batch_id, bs.subject_id, bs.credit, b.semester
			  FROM batch_subjects bs
			  JOIN batches b ON b.id = bs.batch_id
			  WHERE bs.id = ?`

	var bs model.BatchSubject
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&bs.ID, &bs.BatchID, &bs.SubjectID, &bs.Credit, &bs.Semester,
	)
	if err != nil {
		return nil, err
	}

	return &bs, nil
}

func (r *repository) GetStudentsByEnrollmentNos(ctx context.Context, enrollmentNos []string) (map[string]*model.Student, error) {
	students := make(map[string]*model.Student)
	if len(enrollmentNos) == 0 {
		return students, nil
	}

	placeholders := strings.TrimRight(strings.Repeat("?,", len(enrollmentNos)), ",")
	query := fmt.Sprintf(
		`SELECT id, enrollment_no, name, college_id, created_at, updated_at
		 FROM students WHERE enrollment_no IN (%s)`, placeholders)

	args := make([]interface{}, len(enrollmentNos))
	for i, no := range enrollmentNos {
		args[i] = no
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s model.Student
		err := rows.Scan(&s.ID, &s.EnrollmentNo, &s.Name, &s.CollegeID,
			&s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, err
		}
		students[s.EnrollmentNo] = &s
	}

	return students, rows.Err()
}

func (r *repository) GetBatchStudentIDs(ctx context.Context, batchID int64) (map[int64]struct{}, error) {
	query := `SELECT student_id FROM batch_students WHERE batch_id = ?`
	return r.queryIDSet(ctx, query, batchID)
}

func (r *repository) GetExamMarkStudentIDs(ctx context.Context, examTypeID, batchSubjectID int64) (map[int64]struct{}, error) {
	query := `SELECT student_id FROM exam_marks WHERE exam_type_id = ? AND batch_subject_id = ?`
	return r.queryIDSet(ctx, query, examTypeID, batchSubjectID)
}

func (r *repository) InsertExamMark(ctx context.Context, mark *model.ExamMark) error {
	query := `INSERT INTO exam_marks
			  (exam_type_id, student_id, batch_subject_id, achieved_marks, was_absent, debarred, malpractice)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, mark.ExamTypeID, mark.StudentID,
		mark.BatchSubjectID, mark.AchievedMarks, mark.WasAbsent, mark.Debarred, mark.Malpractice)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err == nil {
		mark.ID = id
	}
	return nil
}

func (r *repository) GetGradeDetailStudentIDs(ctx context.Context, batchSubjectID int64) (map[int64]struct{}, error) {
	query := `SELECT gc.student_id
			  FROM subject_grade_details d
			  JOIN student_grade_cards gc ON gc.id = d.grade_card_id
			  WHERE d.batch_subject_id = ?`
	return r.queryIDSet(ctx, query, batchSubjectID)
}

func (r *repository) GetGradeCardNos(ctx context.Context, batchID int64, semester int) (map[string]struct{}, error) {
	query := `SELECT card_no FROM student_grade_cards WHERE batch_id = ? AND semester = ?`

	rows, err := r.db.QueryContext(ctx, query, batchID, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nos := make(map[string]struct{})
	for rows.Next() {
		var no string
		if err := rows.Scan(&no); err != nil {
			return nil, err
		}
		nos[no] = struct{}{}
	}

	return nos, rows.Err()
}

func (r *repository) InGradeTx(ctx context.Context, fn func(tx GradeTx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&gradeTx{tx: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *repository) InsertImportFile(ctx context.Context, file *model.ImportFile) (int64, error) {
	query := `INSERT INTO import_files (s3_key, exam_type_id, batch_subject_id, status)
			  VALUES (?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query, file.S3Key, file.ExamTypeID,
		file.BatchSubjectID, file.Status)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	file.ID = id
	return id, nil
}

func (r *repository) UpdateImportStatus(ctx context.Context, id int64, status model.ImportStatus, result, errorMessage *string) error {
	query := `UPDATE import_files SET status = ?, result = ?, error_message = ?, updated_at = NOW()
			  WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, status, result, errorMessage, id)
	return err
}

func (r *repository) GetImportFile(ctx context.Context, id int64) (*model.ImportFile, error) {
	query := `SELECT id, s3_key, exam_type_id, batch_subject_id, status, result, error_message, created_at, updated_at
			  FROM import_files WHERE id = ?`

	var f model.ImportFile
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.S3Key, &f.ExamTypeID, &f.BatchSubjectID, &f.Status,
		&f.Result, &f.ErrorMessage, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &f, nil
}

func (r *repository) queryIDSet(ctx context.Context, query string, args ...interface{}) (map[int64]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}

	return ids, rows.Err()
}

type gradeTx struct {
	tx *sql.Tx
}

func (g *gradeTx) GetGradeCard(ctx context.Context, studentID, batchID int64, semester int) (*model.GradeCard, error) {
	query := `SELECT id, student_id, batch_id, semester, card_no, created_at
			  FROM student_grade_cards
			  WHERE student_id = ? AND batch_id = ? AND semester = ?
			  FOR UPDATE`

	var card model.GradeCard
	err := g.tx.QueryRowContext(ctx, query, studentID, batchID, semester).Scan(
		&card.ID, &card.StudentID, &card.BatchID, &card.Semester,
		&card.CardNo, &card.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &card, nil
}

func (g *gradeTx) InsertGradeCard(ctx context.Context, card *model.GradeCard) (int64, error) {
	query := `INSERT INTO student_grade_cards (student_id, batch_id, semester, card_no)
			  VALUES (?, ?, ?, ?)`

	result, err := g.tx.ExecContext(ctx, query, card.StudentID, card.BatchID,
		card.Semester, card.CardNo)
	if err != nil {
		return 0, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	card.ID = id
	return id, nil
}

func (g *gradeTx) InsertSubjectGradeDetail(ctx context.Context, detail *model.SubjectGradeDetail) error {
	query := `INSERT INTO subject_grade_details (grade_card_id, batch_subject_id, internal_marks, credit)
			  VALUES (?, ?, ?, ?)`

	result, err := g.tx.ExecContext(ctx, query, detail.GradeCardID,
		detail.BatchSubjectID, detail.InternalMarks, detail.Credit)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err == nil {
		detail.ID = id
	}
	return nil
}
