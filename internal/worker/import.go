package worker

import (
	"context"
	"encoding/json"
	"io"

	"github.com/jotishBolds/sbte-import-service/internal/config"
	"github.com/jotishBolds/sbte-import-service/internal/db"
	"github.com/jotishBolds/sbte-import-service/internal/importer"
	"github.com/jotishBolds/sbte-import-service/internal/logger"
	"github.com/jotishBolds/sbte-import-service/internal/model"
	"github.com/jotishBolds/sbte-import-service/internal/queue"
	"github.com/jotishBolds/sbte-import-service/internal/storage"

	"github.com/rs/zerolog"
)

// ImportWorker replays queued exam-marks imports: download the archived
// sheet, run the same pipeline the synchronous endpoint uses, and persist
// the outcome to the import-file record.
type ImportWorker struct {
	cfg      *config.Config
	repo     db.Repository
	storage  storage.Storage
	importer *importer.ExamMarksImporter
	consumer *queue.Consumer
	pool     *Pool
	log      zerolog.Logger
}

func NewImportWorker(
	cfg *config.Config,
	repo db.Repository,
	store storage.Storage,
	redisClient *queue.RedisClient,
) *ImportWorker {
	return &ImportWorker{
		cfg:      cfg,
		repo:     repo,
		storage:  store,
		importer: importer.NewExamMarksImporter(cfg, repo),
		consumer: queue.NewConsumer(redisClient, cfg),
		pool:     NewPool(cfg.Workers.Import.Count),
		log:      logger.Get(),
	}
}

func (w *ImportWorker) Start(ctx context.Context) error {
	w.log.Info().Msg("Starting import worker")
	w.pool.Start(ctx)
	return w.consumer.ConsumeImportQueue(ctx, w.handleMessage)
}

func (w *ImportWorker) Stop() {
	w.log.Info().Msg("Stopping import worker")
	w.pool.Stop()
}

func (w *ImportWorker) handleMessage(ctx context.Context, data []byte) error {
	var job model.ImportJob
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.Error().Err(err).Msg("Failed to unmarshal import job")
		return err
	}

	w.log.Info().
		Int64("file_id", job.FileID).
		Str("s3_key", job.S3Key).
		Msg("Processing import job")

	w.pool.Submit(func(ctx context.Context) error {
		return w.processFile(ctx, job)
	})

	return nil
}

func (w *ImportWorker) processFile(ctx context.Context, job model.ImportJob) error {
	log := w.log.With().Int64("file_id", job.FileID).Logger()

	if err := w.repo.UpdateImportStatus(ctx, job.FileID, model.ImportStatusProcessing, nil, nil); err != nil {
		log.Error().Err(err).Msg("Failed to mark import processing")
		return err
	}

	log.Debug().Msg("Downloading sheet from storage")
	reader, err := w.storage.Download(ctx, job.S3Key)
	if err != nil {
		return w.fail(ctx, job.FileID, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return w.fail(ctx, job.FileID, err)
	}

	result, reject, err := w.importer.Import(ctx, data, job.ExamTypeID, job.BatchSubjectID)
	if err != nil {
		return w.fail(ctx, job.FileID, err)
	}

	if reject != nil {
		payload, merr := json.Marshal(reject)
		if merr != nil {
			return w.fail(ctx, job.FileID, merr)
		}
		body := string(payload)
		if err := w.repo.UpdateImportStatus(ctx, job.FileID, model.ImportStatusRejected, &body, nil); err != nil {
			log.Error().Err(err).Msg("Failed to record rejection")
			return err
		}
		log.Warn().Msg("Queued import rejected at validation gate")
		return nil
	}

	payload, merr := json.Marshal(result)
	if merr != nil {
		return w.fail(ctx, job.FileID, merr)
	}
	body := string(payload)
	if err := w.repo.UpdateImportStatus(ctx, job.FileID, model.ImportStatusCompleted, &body, nil); err != nil {
		log.Error().Err(err).Msg("Failed to record completion")
		return err
	}

	log.Info().
		Int("successful", result.Summary.Successful).
		Int("failed", result.Summary.Failed).
		Msg("Queued import completed")
	return nil
}

func (w *ImportWorker) fail(ctx context.Context, fileID int64, err error) error {
	w.log.Error().Err(err).Int64("file_id", fileID).Msg("Import job failed")
	errorMsg := err.Error()
	if uerr := w.repo.UpdateImportStatus(ctx, fileID, model.ImportStatusFailed, nil, &errorMsg); uerr != nil {
		w.log.Error().Err(uerr).Int64("file_id", fileID).Msg("Failed to record failure")
	}
	return err
}
