package model

// ExamMarkRow is one decoded exam-marks sheet row. RowNum is the 1-indexed
// spreadsheet row for error reporting; the row itself is never persisted.
type ExamMarkRow struct {
	RowNum        int     `json:"row"`
	StudentName   string  `json:"student_name"`
	EnrollmentNo  string  `json:"enrollment_no"`
	AchievedMarks float64 `json:"achieved_marks"`
	Absent        bool    `json:"absent"`
	Debarred      bool    `json:"debarred"`
	Malpractice   bool    `json:"malpractice"`
}

// InternalMarkRow is one decoded internal-marks sheet row.
type InternalMarkRow struct {
	RowNum        int     `json:"row"`
	EnrollmentNo  string  `json:"enrollment_no"`
	InternalMarks float64 `json:"internal_marks"`
}
