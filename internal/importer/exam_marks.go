package importer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jotishBolds/sbte-import-service/internal/bulk"
	"github.com/jotishBolds/sbte-import-service/internal/config"
	"github.com/jotishBolds/sbte-import-service/internal/db"
	"github.com/jotishBolds/sbte-import-service/internal/excel"
	"github.com/jotishBolds/sbte-import-service/internal/logger"
	"github.com/jotishBolds/sbte-import-service/internal/model"
	pkgerrors "github.com/jotishBolds/sbte-import-service/pkg/errors"

	"github.com/rs/zerolog"
)

// ExamMarksResult reports a committed exam-marks import. PartialFailure is
// set when some rows passed the gate but failed to persist after retries.
type ExamMarksResult struct {
	Summary        model.ImportSummary
	Errors         []model.RecordError
	PartialFailure bool
}

type ExamMarksImporter struct {
	cfg    *config.Config
	repo   db.Repository
	parser *excel.Parser
	log    zerolog.Logger
}

func NewExamMarksImporter(cfg *config.Config, repo db.Repository) *ExamMarksImporter {
	return &ExamMarksImporter{
		cfg:    cfg,
		repo:   repo,
		parser: excel.NewParser(),
		log:    logger.Get(),
	}
}

// Import runs the exam-marks pipeline over one uploaded sheet. A non-nil
// reject means the whole import was blocked at the validation gate; an
// error means a lookup or infrastructure failure.
func (i *ExamMarksImporter) Import(ctx context.Context, data []byte, examTypeID, batchSubjectID int64) (*ExamMarksResult, *model.ExamMarksReject, error) {
	log := i.log.With().
		Int64("exam_type_id", examTypeID).
		Int64("batch_subject_id", batchSubjectID).
		Logger()

	examType, err := i.repo.GetExamType(ctx, examTypeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, pkgerrors.ErrExamTypeNotFound
		}
		return nil, nil, err
	}

	batchSubject, err := i.repo.GetBatchSubject(ctx, batchSubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, pkgerrors.ErrBatchSubjectNotFound
		}
		return nil, nil, err
	}

	rows, rowErrs, err := i.parser.ParseExamMarks(data)
	if err != nil {
		return nil, &model.ExamMarksReject{Errors: []string{err.Error()}}, nil
	}

	reject := &model.ExamMarksReject{}
	for _, re := range rowErrs {
		reject.Errors = append(reject.Errors, re.Error())
	}

	// Cross-reference: one batched lookup for the whole sheet.
	enrollmentNos := make([]string, 0, len(rows))
	for _, row := range rows {
		enrollmentNos = append(enrollmentNos, row.EnrollmentNo)
	}
	students, err := i.repo.GetStudentsByEnrollmentNos(ctx, enrollmentNos)
	if err != nil {
		return nil, nil, err
	}

	batchMembers, err := i.repo.GetBatchStudentIDs(ctx, batchSubject.BatchID)
	if err != nil {
		return nil, nil, err
	}

	existing, err := i.repo.GetExamMarkStudentIDs(ctx, examTypeID, batchSubjectID)
	if err != nil {
		return nil, nil, err
	}

	type cleanRow struct {
		row     model.ExamMarkRow
		student *model.Student
	}
	var clean []cleanRow
	seen := make(map[int64]struct{})

	for _, row := range rows {
		student, ok := students[row.EnrollmentNo]
		if !ok {
			reject.MissingRows = append(reject.MissingRows, row.RowNum)
			continue
		}
		if _, ok := batchMembers[student.ID]; !ok {
			reject.MissingRows = append(reject.MissingRows, row.RowNum)
			continue
		}
		if _, ok := existing[student.ID]; ok {
			reject.ExistingRows = append(reject.ExistingRows, row.RowNum)
			continue
		}
		if row.AchievedMarks > examType.TotalMarks {
			reject.ExceededMarksRows = append(reject.ExceededMarksRows, row.RowNum)
			continue
		}
		if _, dup := seen[student.ID]; dup {
			continue // same student twice in one sheet, first occurrence wins
		}
		seen[student.ID] = struct{}{}
		clean = append(clean, cleanRow{row: row, student: student})
	}

	if !reject.Empty() {
		log.Warn().
			Int("schema_errors", len(reject.Errors)).
			Int("missing", len(reject.MissingRows)).
			Int("existing", len(reject.ExistingRows)).
			Int("exceeded", len(reject.ExceededMarksRows)).
			Msg("Exam marks import rejected at validation gate")
		return nil, reject, nil
	}

	marks := make([]*model.ExamMark, len(clean))
	byStudentID := make(map[int64]string, len(clean))
	for idx, c := range clean {
		marks[idx] = &model.ExamMark{
			ExamTypeID:     examTypeID,
			StudentID:      c.student.ID,
			BatchSubjectID: batchSubjectID,
			AchievedMarks:  c.row.AchievedMarks,
			WasAbsent:      c.row.Absent,
			Debarred:       c.row.Debarred,
			Malpractice:    c.row.Malpractice,
		}
		byStudentID[c.student.ID] = c.student.EnrollmentNo
	}

	progress := bulk.NewProgress(len(marks), func(s bulk.Snapshot) {
		log.Info().
			Float64("percent", s.Percent).
			Int("completed", s.Completed).
			Int("failed", s.Failed).
			Msg("Exam marks insert progress")
	})

	result, err := bulk.Insert(ctx, marks,
		func(ctx context.Context, mark *model.ExamMark) (*model.ExamMark, error) {
			return mark, i.repo.InsertExamMark(ctx, mark)
		},
		bulk.InsertOptions{
			Options: bulk.Options{
				BatchSize:       i.cfg.Import.InsertBatchSize,
				ContinueOnError: true,
				RetryAttempts:   i.cfg.Import.RetryAttempts,
				RetryDelay:      i.cfg.Import.RetryDelay.Std(),
			},
			IgnoreDuplicates: true,
		})
	if err != nil {
		return nil, nil, err
	}

	progress.Update(result.Processed, result.Failed)

	out := &ExamMarksResult{
		Summary: model.ImportSummary{
			Total:      len(marks),
			Successful: result.Processed,
			Failed:     result.Failed,
		},
		PartialFailure: result.Failed > 0,
	}

	for _, detail := range result.Details {
		if len(out.Errors) >= i.cfg.Import.MaxReportedErrors {
			break
		}
		record := fmt.Sprintf("row index %d", detail.Index)
		if detail.Index < len(marks) {
			record = byStudentID[marks[detail.Index].StudentID]
		}
		out.Errors = append(out.Errors, model.RecordError{
			Record: record,
			Error:  detail.Error,
		})
	}

	log.Info().
		Int("total", out.Summary.Total).
		Int("successful", out.Summary.Successful).
		Int("failed", out.Summary.Failed).
		Msg("Exam marks import finished")

	return out, nil, nil
}
