package model

// ImportSummary is the outcome of a committed import.
type ImportSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// RecordError pairs a failed record with its persistence error, surfaced
// in multi-status responses.
type RecordError struct {
	Record string `json:"record"`
	Error  string `json:"error"`
}

// ExamMarksReject carries the structured reject lists of an exam-marks
// import that failed the validation gate. Any non-empty list blocks the
// whole import.
type ExamMarksReject struct {
	Errors            []string `json:"errors"`
	MissingRows       []int    `json:"missingRows"`
	ExistingRows      []int    `json:"existingRows"`
	ExceededMarksRows []int    `json:"exceededMarksRows"`
}

func (r *ExamMarksReject) Empty() bool {
	return len(r.Errors) == 0 && len(r.MissingRows) == 0 &&
		len(r.ExistingRows) == 0 && len(r.ExceededMarksRows) == 0
}

// RejectEntry tags a rejected internal-marks row with whichever of the row
// number and enrollment number is known at the stage that rejected it.
type RejectEntry struct {
	Row          *int   `json:"row,omitempty"`
	EnrollmentNo string `json:"enrollmentNo,omitempty"`
	Error        string `json:"error"`
}

// InternalMarksReject carries the reject lists of a grade-card import.
type InternalMarksReject struct {
	Errors          []RejectEntry `json:"errors"`
	MissingStudents []RejectEntry `json:"missingStudents"`
	ExistingRecords []RejectEntry `json:"existingRecords"`
}

func (r *InternalMarksReject) Empty() bool {
	return len(r.Errors) == 0 && len(r.MissingStudents) == 0 &&
		len(r.ExistingRecords) == 0
}
