package excel

import (
	"bytes"
	"fmt"

	"github.com/jotishBolds/sbte-import-service/internal/model"
	"github.com/jotishBolds/sbte-import-service/pkg/errors"

	"github.com/xuri/excelize/v2"
)

// Sheet layouts. Columns are positional: row 1 is the header, data starts
// at row 2.
var (
	examMarksColumns = []Column{
		{Letter: "B", Field: "student_name", Kind: KindString},
		{Letter: "C", Field: "enrollment_no", Kind: KindString, Required: true},
		{Letter: "D", Field: "achieved_marks", Kind: KindFloat},
		{Letter: "E", Field: "absent", Kind: KindYesFlag},
		{Letter: "F", Field: "debarred", Kind: KindYesFlag},
		{Letter: "G", Field: "malpractice", Kind: KindYesFlag},
	}

	internalMarksColumns = []Column{
		{Letter: "C", Field: "enrollment_no", Kind: KindString, Required: true},
		{Letter: "D", Field: "internal_marks", Kind: KindFloat, Required: true},
	}
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// sheetRows opens the workbook and returns the raw rows of its first sheet.
func (p *Parser) sheetRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.ErrInvalidFileFormat
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}

	if len(rows) < 2 { // Header + at least one data row
		return nil, errors.ErrEmptySheet
	}

	return rows, nil
}

// ParseExamMarks decodes an exam-marks sheet. Schema failures are collected
// per row; the error return is reserved for unreadable files.
func (p *Parser) ParseExamMarks(data []byte) ([]model.ExamMarkRow, []RowError, error) {
	rows, err := p.sheetRows(data)
	if err != nil {
		return nil, nil, err
	}

	records, rowErrs := DecodeRows(rows, examMarksColumns)

	var out []model.ExamMarkRow
	for _, rec := range records {
		row := model.ExamMarkRow{
			RowNum:       rec.Row,
			StudentName:  stringValue(rec, "student_name"),
			EnrollmentNo: stringValue(rec, "enrollment_no"),
			Absent:       boolValue(rec, "absent"),
			Debarred:     boolValue(rec, "debarred"),
			Malpractice:  boolValue(rec, "malpractice"),
		}

		marks, hasMarks := floatValue(rec, "achieved_marks")
		flagged := row.Absent || row.Debarred || row.Malpractice
		if !hasMarks && !flagged {
			rowErrs = append(rowErrs, RowError{
				Row:     rec.Row,
				Message: "achieved_marks is required",
			})
			continue
		}
		if marks < 0 {
			rowErrs = append(rowErrs, RowError{
				Row:     rec.Row,
				Message: "achieved_marks cannot be negative",
			})
			continue
		}
		row.AchievedMarks = marks

		out = append(out, row)
	}

	return out, rowErrs, nil
}

// ParseInternalMarks decodes an internal-marks sheet. The upper marks bound
// depends on configuration and is enforced by the importer, not here.
func (p *Parser) ParseInternalMarks(data []byte) ([]model.InternalMarkRow, []RowError, error) {
	rows, err := p.sheetRows(data)
	if err != nil {
		return nil, nil, err
	}

	records, rowErrs := DecodeRows(rows, internalMarksColumns)

	var out []model.InternalMarkRow
	for _, rec := range records {
		marks, _ := floatValue(rec, "internal_marks")
		if marks < 0 {
			rowErrs = append(rowErrs, RowError{
				Row:     rec.Row,
				Message: "internal_marks cannot be negative",
			})
			continue
		}

		out = append(out, model.InternalMarkRow{
			RowNum:        rec.Row,
			EnrollmentNo:  stringValue(rec, "enrollment_no"),
			InternalMarks: marks,
		})
	}

	return out, rowErrs, nil
}
