package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/knowhub/knowhub/internal/model"
	"github.com/knowhub/knowhub/internal/pkg/timeutil"
	"github.com/knowhub/knowhub/internal/repo"
)

// ContextCache maps retrieval fingerprints to previously computed result
// sets. Entries past the freshness window are reported absent rather than
// returned stale.
type ContextCache interface {
	Lookup(ctx context.Context, fingerprint string) (*model.ContextCacheEntry, bool, error)
	Store(ctx context.Context, entry *model.ContextCacheEntry) error
	InvalidateDocument(ctx context.Context, docID string) error
}

type dbContextCache struct {
	repo *repo.ContextCacheRepo
	ttl  time.Duration
}

func NewContextCache(cacheRepo *repo.ContextCacheRepo, ttl time.Duration) ContextCache {
	return &dbContextCache{repo: cacheRepo, ttl: ttl}
}

func (c *dbContextCache) Lookup(ctx context.Context, fingerprint string) (*model.ContextCacheEntry, bool, error) {
	minCtime := timeutil.NowUnix() - int64(c.ttl.Seconds())
	return c.repo.Get(ctx, fingerprint, minCtime)
}

func (c *dbContextCache) Store(ctx context.Context, entry *model.ContextCacheEntry) error {
	return c.repo.Save(ctx, entry)
}

func (c *dbContextCache) InvalidateDocument(ctx context.Context, docID string) error {
	removed, err := c.repo.DeleteByDocument(ctx, docID)
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("context cache invalidated",
			zap.String("doc_id", docID),
			zap.Int64("entries", removed),
		)
	}
	return nil
}
