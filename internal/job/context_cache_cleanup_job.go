package job

import (
	"context"
	"time"

	"github.com/knowhub/knowhub/internal/repo"
)

// ContextCacheCleanupJob removes fingerprint entries past the retrieval TTL;
// lookups already ignore them, this reclaims the rows.
type ContextCacheCleanupJob struct {
	repo       *repo.ContextCacheRepo
	ttlMinutes int
}

func NewContextCacheCleanupJob(repo *repo.ContextCacheRepo, ttlMinutes int) *ContextCacheCleanupJob {
	return &ContextCacheCleanupJob{repo: repo, ttlMinutes: ttlMinutes}
}

func (j *ContextCacheCleanupJob) Name() string {
	return "context_cache_cleanup"
}

func (j *ContextCacheCleanupJob) Run(ctx context.Context) error {
	if j.repo == nil {
		return nil
	}
	ttlMinutes := j.ttlMinutes
	if ttlMinutes <= 0 {
		ttlMinutes = 15
	}
	cutoff := time.Now().Add(-time.Duration(ttlMinutes) * time.Minute).Unix()
	_, err := j.repo.DeleteBefore(ctx, cutoff)
	return err
}
