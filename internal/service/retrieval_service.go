package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/knowhub/knowhub/internal/metrics"
	"github.com/knowhub/knowhub/internal/model"
	appErr "github.com/knowhub/knowhub/internal/pkg/errors"
	"github.com/knowhub/knowhub/internal/pkg/timeutil"
)

const (
	SourceCache = "cache"
	SourceLive  = "live"

	queryTaskType = "RETRIEVAL_QUERY"
)

// Embedder is the narrow view of the AI manager the engine needs.
type Embedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

// VectorSearcher answers nearest-neighbor queries over chunk embeddings.
type VectorSearcher interface {
	Search(ctx context.Context, embedding []float32, threshold float32, count int, hubArea string) ([]model.ChunkMatch, error)
}

// PermissionChecker is the resolver consulted per candidate document.
type PermissionChecker interface {
	Resolve(ctx context.Context, docID, userID string, level model.PermissionLevel) (*Decision, error)
}

type RetrievalResult struct {
	Results []model.ChunkMatch `json:"results"`
	Source  string             `json:"source"`
}

type RetrievalConfig struct {
	DefaultThreshold float32
	DefaultCount     int
	MaxCount         int
}

type RetrievalService struct {
	embedder Embedder
	index    VectorSearcher
	perms    PermissionChecker
	cache    ContextCache
	sink     metrics.Sink
	cfg      RetrievalConfig
}

func NewRetrievalService(embedder Embedder, index VectorSearcher, perms PermissionChecker, cache ContextCache, sink metrics.Sink, cfg RetrievalConfig) *RetrievalService {
	if cfg.DefaultThreshold <= 0 {
		cfg.DefaultThreshold = 0.7
	}
	if cfg.DefaultCount <= 0 {
		cfg.DefaultCount = 5
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = 50
	}
	if sink == nil {
		sink = metrics.NewNullSink()
	}
	return &RetrievalService{
		embedder: embedder,
		index:    index,
		perms:    perms,
		cache:    cache,
		sink:     sink,
		cfg:      cfg,
	}
}

// RetrieveContext answers one context query: cache hit or embed + search +
// permission filter + cache store. Chunks whose parent document the user
// cannot read are silently dropped; a provider failure is an error, an empty
// result set is not.
func (s *RetrievalService) RetrieveContext(ctx context.Context, userID, query, hubArea string, threshold float32, count int) (*RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, appErr.ErrInvalid
	}
	threshold, count = s.clamp(threshold, count)
	fingerprint := Fingerprint(query, hubArea, threshold, count)
	logger := logutil.GetLogger(ctx).With(
		zap.String("user_id", userID),
		zap.String("fingerprint", fingerprint),
		zap.String("hub_area", hubArea),
	)
	start := time.Now()

	entry, ok, err := s.cache.Lookup(ctx, fingerprint)
	if err != nil {
		logger.Warn("cache lookup failed, recomputing", zap.Error(err))
	} else if ok {
		// The fingerprint carries no user component, so a hit may have been
		// computed for someone else; the permission filter runs again.
		results := s.filterByPermission(ctx, logger, userID, entry.Results)
		logger.Debug("context cache hit", zap.Int("results", len(results)))
		s.observe(ctx, fingerprint, userID, hubArea, SourceCache, len(results), start)
		return &RetrievalResult{Results: results, Source: SourceCache}, nil
	}

	embedding, err := s.embedder.Embed(ctx, query, queryTaskType)
	if err != nil {
		logger.Error("query embedding failed", zap.Error(err))
		return nil, fmt.Errorf("%w: embed query: %v", appErr.ErrProvider, err)
	}
	candidates, err := s.index.Search(ctx, embedding, threshold, count, hubArea)
	if err != nil {
		logger.Error("vector search failed", zap.Error(err))
		return nil, fmt.Errorf("%w: vector search: %v", appErr.ErrProvider, err)
	}

	results := s.filterByPermission(ctx, logger, userID, candidates)

	// An abandoned request must not write a possibly stale entry.
	if ctx.Err() == nil {
		if err := s.cache.Store(ctx, &model.ContextCacheEntry{
			Fingerprint: fingerprint,
			Results:     results,
			DocumentIDs: uniqueDocumentIDs(results),
			Ctime:       timeutil.NowUnix(),
		}); err != nil {
			logger.Warn("cache store failed", zap.Error(err))
		}
	}
	logger.Info("context retrieved",
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(results)),
	)
	s.observe(ctx, fingerprint, userID, hubArea, SourceLive, len(results), start)
	return &RetrievalResult{Results: results, Source: SourceLive}, nil
}

// filterByPermission keeps only chunks whose parent document the user can
// read. Resolution is memoized per document so one retrieval writes one audit
// pair per distinct document. Resolution errors fail closed for that
// document.
func (s *RetrievalService) filterByPermission(ctx context.Context, logger *zap.Logger, userID string, candidates []model.ChunkMatch) []model.ChunkMatch {
	decisions := make(map[string]bool, len(candidates))
	results := make([]model.ChunkMatch, 0, len(candidates))
	for _, candidate := range candidates {
		allowed, seen := decisions[candidate.DocumentID]
		if !seen {
			decision, err := s.perms.Resolve(ctx, candidate.DocumentID, userID, model.LevelRead)
			if err != nil {
				logger.Warn("permission resolution failed, dropping chunk",
					zap.String("doc_id", candidate.DocumentID),
					zap.Error(err),
				)
				decisions[candidate.DocumentID] = false
				continue
			}
			allowed = decision.Allowed
			decisions[candidate.DocumentID] = allowed
		}
		if allowed {
			results = append(results, candidate)
		}
	}
	return results
}

func (s *RetrievalService) clamp(threshold float32, count int) (float32, int) {
	if threshold <= 0 {
		threshold = s.cfg.DefaultThreshold
	}
	if threshold > 1 {
		threshold = 1
	}
	if count <= 0 {
		count = s.cfg.DefaultCount
	}
	if count > s.cfg.MaxCount {
		count = s.cfg.MaxCount
	}
	return threshold, count
}

func (s *RetrievalService) observe(ctx context.Context, fingerprint, userID, hubArea, source string, resultCount int, start time.Time) {
	s.sink.Observe(ctx, &model.RetrievalMetric{
		Fingerprint: fingerprint,
		UserID:      userID,
		HubArea:     hubArea,
		Source:      source,
		ResultCount: resultCount,
		DurationMs:  time.Since(start).Milliseconds(),
		Ctime:       timeutil.NowUnix(),
	})
}

func uniqueDocumentIDs(matches []model.ChunkMatch) []string {
	seen := make(map[string]bool, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m.DocumentID] {
			continue
		}
		seen[m.DocumentID] = true
		ids = append(ids, m.DocumentID)
	}
	return ids
}
