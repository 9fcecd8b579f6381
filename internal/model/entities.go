package model

import "time"

type Student struct {
	ID           int64     `json:"id" db:"id"`
	EnrollmentNo string    `json:"enrollment_no" db:"enrollment_no"`
	Name         string    `json:"name" db:"name"`
	CollegeID    int64     `json:"college_id" db:"college_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type ExamType struct {
	ID           int64   `json:"id" db:"id"`
	Name         string  `json:"name" db:"name"`
	TotalMarks   float64 `json:"total_marks" db:"total_marks"`
	PassingMarks float64 `json:"passing_marks" db:"passing_marks"`
}

// BatchSubject is the per-subject linkage of a batch, joined with the
// batch's semester so callers get everything the import pipelines need
// in one lookup.
type BatchSubject struct {
	ID        int64   `json:"id" db:"id"`
	BatchID   int64   `json:"batch_id" db:"batch_id"`
	SubjectID int64   `json:"subject_id" db:"subject_id"`
	Credit    float64 `json:"credit" db:"credit"`
	Semester  int     `json:"semester" db:"semester"`
}

type ExamMark struct {
	ID             int64   `json:"id" db:"id"`
	ExamTypeID     int64   `json:"exam_type_id" db:"exam_type_id"`
	StudentID      int64   `json:"student_id" db:"student_id"`
	BatchSubjectID int64   `json:"batch_subject_id" db:"batch_subject_id"`
	AchievedMarks  float64 `json:"achieved_marks" db:"achieved_marks"`
	WasAbsent      bool    `json:"was_absent" db:"was_absent"`
	Debarred       bool    `json:"debarred" db:"debarred"`
	Malpractice    bool    `json:"malpractice" db:"malpractice"`
}

// GradeCard is created lazily on a student's first subject-grade insert for
// a (batch, semester) and never regenerated afterwards.
type GradeCard struct {
	ID        int64     `json:"id" db:"id"`
	StudentID int64     `json:"student_id" db:"student_id"`
	BatchID   int64     `json:"batch_id" db:"batch_id"`
	Semester  int       `json:"semester" db:"semester"`
	CardNo    string    `json:"card_no" db:"card_no"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type SubjectGradeDetail struct {
	ID             int64   `json:"id" db:"id"`
	GradeCardID    int64   `json:"grade_card_id" db:"grade_card_id"`
	BatchSubjectID int64   `json:"batch_subject_id" db:"batch_subject_id"`
	InternalMarks  float64 `json:"internal_marks" db:"internal_marks"`
	Credit         float64 `json:"credit" db:"credit"`
}
