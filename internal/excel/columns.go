package excel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Kind is the cell coercion applied by the decoder.
type Kind int

const (
	// KindString trims and keeps the cell text.
	KindString Kind = iota
	// KindFloat parses the cell as a number.
	KindFloat
	// KindYesFlag is true when the cell reads "Yes" (case-insensitive),
	// false for anything else including blank.
	KindYesFlag
)

// Column maps one spreadsheet column letter to a named field. Sheet layouts
// are declared as []Column tables so a format change is a data change.
type Column struct {
	Letter   string
	Field    string
	Kind     Kind
	Required bool
}

// RowError tags a schema failure with its 1-indexed sheet row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"error"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Record is one decoded row: the sheet row number plus the coerced field
// values keyed by Column.Field.
type Record struct {
	Row    int
	Values map[string]interface{}
}

// DecodeRows applies a column table to raw sheet rows. Row 1 is the header
// and is skipped; rows whose mapped cells are all blank are skipped silently.
// A row failing coercion or a Required check is reported once and excluded;
// decoding continues with the rest of the sheet.
func DecodeRows(rows [][]string, cols []Column) ([]Record, []RowError) {
	indices := make([]int, len(cols))
	for i, col := range cols {
		n, err := excelize.ColumnNameToNumber(col.Letter)
		if err != nil {
			// A bad layout table is a programming error, not sheet data.
			panic(fmt.Sprintf("invalid column letter %q: %v", col.Letter, err))
		}
		indices[i] = n - 1
	}

	var records []Record
	var rowErrs []RowError

	for i, row := range rows {
		if i == 0 {
			continue
		}
		rowNum := i + 1

		cells := make([]string, len(cols))
		empty := true
		for j, idx := range indices {
			if idx < len(row) {
				cells[j] = strings.TrimSpace(row[idx])
			}
			if cells[j] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}

		values := make(map[string]interface{}, len(cols))
		failed := false
		for j, col := range cols {
			cell := cells[j]
			if cell == "" {
				if col.Required {
					rowErrs = append(rowErrs, RowError{
						Row:     rowNum,
						Message: fmt.Sprintf("%s is required", col.Field),
					})
					failed = true
					break
				}
				continue
			}

			switch col.Kind {
			case KindFloat:
				f, err := strconv.ParseFloat(cell, 64)
				if err != nil {
					rowErrs = append(rowErrs, RowError{
						Row:     rowNum,
						Message: fmt.Sprintf("invalid %s value: %s", col.Field, cell),
					})
					failed = true
				} else {
					values[col.Field] = f
				}
			case KindYesFlag:
				values[col.Field] = strings.EqualFold(cell, "yes")
			default:
				values[col.Field] = cell
			}
			if failed {
				break
			}
		}
		if failed {
			continue
		}

		records = append(records, Record{Row: rowNum, Values: values})
	}

	return records, rowErrs
}

func stringValue(r Record, field string) string {
	if v, ok := r.Values[field].(string); ok {
		return v
	}
	return ""
}

func floatValue(r Record, field string) (float64, bool) {
	v, ok := r.Values[field].(float64)
	return v, ok
}

func boolValue(r Record, field string) bool {
	v, _ := r.Values[field].(bool)
	return v
}
