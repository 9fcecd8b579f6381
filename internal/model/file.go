package model

import "time"

type ImportStatus string

const (
	ImportStatusUploaded   ImportStatus = "UPLOADED"
	ImportStatusProcessing ImportStatus = "PROCESSING"
	ImportStatusCompleted  ImportStatus = "COMPLETED"
	ImportStatusRejected   ImportStatus = "REJECTED"
	ImportStatusFailed     ImportStatus = "FAILED"
)

// ImportFile tracks a queued import from upload through processing.
// Result holds the serialized summary or reject lists once processing ends.
type ImportFile struct {
	ID             int64        `json:"id" db:"id"`
	S3Key          string       `json:"s3_key" db:"s3_key"`
	ExamTypeID     int64        `json:"exam_type_id" db:"exam_type_id"`
	BatchSubjectID int64        `json:"batch_subject_id" db:"batch_subject_id"`
	Status         ImportStatus `json:"status" db:"status"`
	Result         *string      `json:"result,omitempty" db:"result"`
	ErrorMessage   *string      `json:"error_message,omitempty" db:"error_message"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
}

// ImportJob is the queue message for a queued exam-marks import.
type ImportJob struct {
	FileID         int64  `json:"file_id"`
	S3Key          string `json:"s3_key"`
	ExamTypeID     int64  `json:"exam_type_id"`
	BatchSubjectID int64  `json:"batch_subject_id"`
}
