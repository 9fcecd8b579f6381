package importer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jotishBolds/sbte-import-service/internal/config"
	"github.com/jotishBolds/sbte-import-service/internal/db"
	"github.com/jotishBolds/sbte-import-service/internal/excel"
	"github.com/jotishBolds/sbte-import-service/internal/logger"
	"github.com/jotishBolds/sbte-import-service/internal/model"
	pkgerrors "github.com/jotishBolds/sbte-import-service/pkg/errors"

	"github.com/rs/zerolog"
)

// InternalMarksResult reports a committed grade-card import.
type InternalMarksResult struct {
	SuccessCount int
	CardsCreated int
}

type InternalMarksImporter struct {
	cfg    *config.Config
	repo   db.Repository
	parser *excel.Parser
	locks  *keyedLocks
	log    zerolog.Logger
}

func NewInternalMarksImporter(cfg *config.Config, repo db.Repository) *InternalMarksImporter {
	return &InternalMarksImporter{
		cfg:    cfg,
		repo:   repo,
		parser: excel.NewParser(),
		locks:  newKeyedLocks(),
		log:    logger.Get(),
	}
}

type validatedRow struct {
	row     model.InternalMarkRow
	student *model.Student
}

// Import runs the grade-card pipeline over one internal-marks sheet. The
// gate is all-or-nothing: a single rejected row blocks every clean one.
func (i *InternalMarksImporter) Import(ctx context.Context, data []byte, batchSubjectID int64) (*InternalMarksResult, *model.InternalMarksReject, error) {
	log := i.log.With().Int64("batch_subject_id", batchSubjectID).Logger()

	batchSubject, err := i.repo.GetBatchSubject(ctx, batchSubjectID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, pkgerrors.ErrBatchSubjectNotFound
		}
		return nil, nil, err
	}

	rows, rowErrs, err := i.parser.ParseInternalMarks(data)
	if err != nil {
		return nil, &model.InternalMarksReject{
			Errors: []model.RejectEntry{{Error: err.Error()}},
		}, nil
	}

	reject := &model.InternalMarksReject{}
	for _, re := range rowErrs {
		row := re.Row
		reject.Errors = append(reject.Errors, model.RejectEntry{
			Row:   &row,
			Error: re.Message,
		})
	}

	maxMarks := i.cfg.Import.MaxInternalMarks
	var candidates []model.InternalMarkRow
	for _, row := range rows {
		rowNum := row.RowNum
		if row.InternalMarks > maxMarks {
			reject.Errors = append(reject.Errors, model.RejectEntry{
				Row:          &rowNum,
				EnrollmentNo: row.EnrollmentNo,
				Error:        fmt.Sprintf("internal marks %.2f exceed maximum %.0f", row.InternalMarks, maxMarks),
			})
			continue
		}
		if len(row.EnrollmentNo) < 4 {
			reject.Errors = append(reject.Errors, model.RejectEntry{
				Row:          &rowNum,
				EnrollmentNo: row.EnrollmentNo,
				Error:        "invalid enrollment number",
			})
			continue
		}
		candidates = append(candidates, row)
	}

	enrollmentNos := make([]string, 0, len(candidates))
	for _, row := range candidates {
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

	existing, err := i.repo.GetGradeDetailStudentIDs(ctx, batchSubjectID)
	if err != nil {
		return nil, nil, err
	}

	var validated []validatedRow
	seen := make(map[string]struct{})

	for _, row := range candidates {
		rowNum := row.RowNum

		if _, dup := seen[row.EnrollmentNo]; dup {
			reject.ExistingRecords = append(reject.ExistingRecords, model.RejectEntry{
				Row:          &rowNum,
				EnrollmentNo: row.EnrollmentNo,
				Error:        "duplicate row for enrollment number",
			})
			continue
		}
		seen[row.EnrollmentNo] = struct{}{}

		student, ok := students[row.EnrollmentNo]
		if !ok {
			reject.MissingStudents = append(reject.MissingStudents, model.RejectEntry{
				Row:          &rowNum,
				EnrollmentNo: row.EnrollmentNo,
				Error:        "student not found",
			})
			continue
		}
		if _, ok := batchMembers[student.ID]; !ok {
			reject.MissingStudents = append(reject.MissingStudents, model.RejectEntry{
				Row:          &rowNum,
				EnrollmentNo: row.EnrollmentNo,
				Error:        "student not assigned to batch",
			})
			continue
		}
		if _, ok := existing[student.ID]; ok {
			reject.ExistingRecords = append(reject.ExistingRecords, model.RejectEntry{
				Row:          &rowNum,
				EnrollmentNo: row.EnrollmentNo,
				Error:        "internal marks already recorded for subject",
			})
			continue
		}

		validated = append(validated, validatedRow{row: row, student: student})
	}

	if !reject.Empty() {
		log.Warn().
			Int("errors", len(reject.Errors)).
			Int("missing_students", len(reject.MissingStudents)).
			Int("existing_records", len(reject.ExistingRecords)).
			Msg("Internal marks import rejected at validation gate")
		return nil, reject, nil
	}

	result, err := i.commit(ctx, batchSubject, validated)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Int("success_count", result.SuccessCount).
		Int("cards_created", result.CardsCreated).
		Msg("Internal marks import finished")

	return result, nil, nil
}

// commit writes validated rows in fixed-size chunks, one transaction per
// chunk, so a large sheet never exceeds single-transaction time limits.
// Card-number generation for the (batch, semester) is serialized for the
// whole commit phase; the reservation set is threaded into every chunk.
func (i *InternalMarksImporter) commit(ctx context.Context, batchSubject *model.BatchSubject, validated []validatedRow) (*InternalMarksResult, error) {
	unlock := i.locks.Lock(batchSubject.BatchID, batchSubject.Semester)
	defer unlock()

	persisted, err := i.repo.GetGradeCardNos(ctx, batchSubject.BatchID, batchSubject.Semester)
	if err != nil {
		return nil, err
	}

	reservation := NewReservation()
	result := &InternalMarksResult{}
	chunkSize := i.cfg.Import.ChunkSize

	for start := 0; start < len(validated); start += chunkSize {
		end := start + chunkSize
		if end > len(validated) {
			end = len(validated)
		}
		chunk := validated[start:end]

		err := i.repo.InGradeTx(ctx, func(tx db.GradeTx) error {
			return i.commitChunk(ctx, tx, batchSubject, chunk, persisted, reservation, result)
		})
		if err != nil {
			return nil, fmt.Errorf("grade chunk %d-%d failed: %w", start, end, err)
		}
	}

	return result, nil
}

func (i *InternalMarksImporter) commitChunk(ctx context.Context, tx db.GradeTx, batchSubject *model.BatchSubject, chunk []validatedRow, persisted map[string]struct{}, reservation *Reservation, result *InternalMarksResult) error {
	for _, v := range chunk {
		card, err := tx.GetGradeCard(ctx, v.student.ID, batchSubject.BatchID, batchSubject.Semester)
		if err != nil {
			return err
		}

		if card == nil {
			cardNo, err := GenerateCardNo(v.student.EnrollmentNo, batchSubject.Semester, persisted, reservation)
			if err != nil {
				return err
			}

			card = &model.GradeCard{
				StudentID: v.student.ID,
				BatchID:   batchSubject.BatchID,
				Semester:  batchSubject.Semester,
				CardNo:    cardNo,
			}
			if _, err := tx.InsertGradeCard(ctx, card); err != nil {
				return err
			}
			result.CardsCreated++
		}

		detail := &model.SubjectGradeDetail{
			GradeCardID:    card.ID,
			BatchSubjectID: batchSubject.ID,
			InternalMarks:  v.row.InternalMarks,
			Credit:         batchSubject.Credit,
		}
		if err := tx.InsertSubjectGradeDetail(ctx, detail); err != nil {
			return err
		}
		result.SuccessCount++
	}

	return nil
}
