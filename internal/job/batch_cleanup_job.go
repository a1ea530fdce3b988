package job

import (
	"context"
	"time"

	"github.com/knowhub/knowhub/internal/service"
)

// BatchCleanupJob removes terminal batch jobs past the retention window.
// Jobs still in created or running are never touched.
type BatchCleanupJob struct {
	batches       *service.BatchService
	retentionDays int
}

func NewBatchCleanupJob(batches *service.BatchService, retentionDays int) *BatchCleanupJob {
	return &BatchCleanupJob{batches: batches, retentionDays: retentionDays}
}

func (j *BatchCleanupJob) Name() string {
	return "batch_cleanup"
}

func (j *BatchCleanupJob) Run(ctx context.Context) error {
	if j.batches == nil {
		return nil
	}
	retentionDays := j.retentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	_, err := j.batches.CleanupTerminal(ctx, time.Duration(retentionDays)*24*time.Hour)
	return err
}
