package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFileNotFound         = errors.New("file not found")
	ErrInvalidFileFormat    = errors.New("invalid file format")
	ErrEmptySheet           = errors.New("sheet contains no data rows")
	ErrImportRejected       = errors.New("import rejected")
	ErrExamTypeNotFound     = errors.New("exam type not found")
	ErrBatchSubjectNotFound = errors.New("batch subject not found")
	ErrCardNumberExhausted  = errors.New("card number space exhausted")
)

type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s",
		e.Field, e.Value, e.Message)
}

type RetryableError struct {
	Err     error
	Message string
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("retryable error: %s - %s", e.Message, e.Err.Error())
}

func (e RetryableError) Unwrap() error {
	return e.Err
}

func NewRetryableError(err error, message string) error {
	return RetryableError{
		Err:     err,
		Message: message,
	}
}

// IsDuplicate reports whether err looks like a unique-key violation.
// MySQL reports these as "Duplicate entry ... for key ...", other drivers
// say "unique"; matching on the message keeps the bulk layer driver-agnostic.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
