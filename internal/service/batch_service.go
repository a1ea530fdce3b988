package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/knowhub/knowhub/internal/model"
	appErr "github.com/knowhub/knowhub/internal/pkg/errors"
	"github.com/knowhub/knowhub/internal/pkg/timeutil"
	"github.com/knowhub/knowhub/internal/repo"
)

// BatchService owns the ingestion batch lifecycle:
// created -> running -> succeeded | failed. Terminal states never change; a
// stale transition attempt is logged and swallowed so racing pipeline
// callbacks cannot fail a request.
type BatchService struct {
	jobs *repo.BatchJobRepo
}

func NewBatchService(jobs *repo.BatchJobRepo) *BatchService {
	return &BatchService{jobs: jobs}
}

func (s *BatchService) Create(ctx context.Context, userID, docID string, metadata map[string]string) (*model.BatchJob, error) {
	now := timeutil.NowUnix()
	job := &model.BatchJob{
		ID:         newID(),
		UserID:     userID,
		DocumentID: docID,
		Status:     model.BatchStatusCreated,
		Metadata:   metadata,
		Ctime:      now,
		Mtime:      now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetStatus is side-effect free and safe to poll.
func (s *BatchService) GetStatus(ctx context.Context, userID, jobID string) (*model.BatchJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, appErr.ErrForbidden
	}
	return job, nil
}

func (s *BatchService) List(ctx context.Context, userID string, limit, offset int) ([]model.BatchJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.jobs.ListByUser(ctx, userID, limit, offset)
}

type BatchUpdate struct {
	Status    string
	Error     string
	Processed int
	Total     int
}

// UpdateStatus is the only mutator. Transitions are validated against the
// current status and applied with a compare-and-swap; if another writer moved
// the job first the update is re-checked against the fresh status. An
// attempt to leave a terminal state is a no-op.
func (s *BatchService) UpdateStatus(ctx context.Context, jobID string, update BatchUpdate) error {
	logger := logutil.GetLogger(ctx).With(
		zap.String("job_id", jobID),
		zap.String("to_status", update.Status),
	)
	for attempt := 0; attempt < 3; attempt++ {
		job, err := s.jobs.Get(ctx, jobID)
		if err != nil {
			return err
		}
		if !model.BatchTransitionAllowed(job.Status, update.Status) {
			logger.Warn("stale batch transition ignored", zap.String("from_status", job.Status))
			return nil
		}
		processed := update.Processed
		total := update.Total
		if total == 0 {
			total = job.Total
		}
		if processed == 0 {
			processed = job.Processed
		}
		swapped, err := s.jobs.UpdateStatusIf(ctx, jobID, job.Status, update.Status, update.Error, processed, total, timeutil.NowUnix())
		if err != nil {
			return err
		}
		if swapped {
			logger.Info("batch status updated", zap.String("from_status", job.Status))
			return nil
		}
		// CAS lost: another writer changed the row; re-read and re-validate.
	}
	logger.Warn("batch transition abandoned after contention")
	return nil
}

func (s *BatchService) UpdateProgress(ctx context.Context, jobID string, processed, total int) {
	if err := s.jobs.UpdateProgress(ctx, jobID, processed, total, timeutil.NowUnix()); err != nil {
		logutil.GetLogger(ctx).Warn("batch progress update failed",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}

func (s *BatchService) MarkRunning(ctx context.Context, jobID string) error {
	return s.UpdateStatus(ctx, jobID, BatchUpdate{Status: model.BatchStatusRunning})
}

func (s *BatchService) MarkSucceeded(ctx context.Context, jobID string, processed, total int) error {
	return s.UpdateStatus(ctx, jobID, BatchUpdate{Status: model.BatchStatusSucceeded, Processed: processed, Total: total})
}

func (s *BatchService) MarkFailed(ctx context.Context, jobID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return s.UpdateStatus(ctx, jobID, BatchUpdate{Status: model.BatchStatusFailed, Error: msg})
}

// CleanupTerminal removes finished jobs older than the retention window.
func (s *BatchService) CleanupTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := timeutil.NowUnix() - int64(retention.Seconds())
	return s.jobs.DeleteTerminalBefore(ctx, cutoff)
}
