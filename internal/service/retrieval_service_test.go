package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowhub/knowhub/internal/model"
	appErr "github.com/knowhub/knowhub/internal/pkg/errors"
)

type fakeEmbedder struct {
	embedding []float32
	err       error
	calls     int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.embedding, nil
}

type fakeSearcher struct {
	matches []model.ChunkMatch
	err     error

	gotThreshold float32
	gotCount     int
	gotHubArea   string
}

func (f *fakeSearcher) Search(ctx context.Context, embedding []float32, threshold float32, count int, hubArea string) ([]model.ChunkMatch, error) {
	f.gotThreshold = threshold
	f.gotCount = count
	f.gotHubArea = hubArea
	if f.err != nil {
		return nil, f.err
	}
	return f.matches, nil
}

type fakeChecker struct {
	allowed map[string]bool
	err     error
	calls   map[string]int
}

func (f *fakeChecker) Resolve(ctx context.Context, docID, userID string, level model.PermissionLevel) (*Decision, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[docID]++
	if f.err != nil {
		return nil, f.err
	}
	return &Decision{Allowed: f.allowed[docID]}, nil
}

type memoryCache struct {
	entries map[string]*model.ContextCacheEntry
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*model.ContextCacheEntry{}}
}

func (m *memoryCache) Lookup(ctx context.Context, fingerprint string) (*model.ContextCacheEntry, bool, error) {
	entry, ok := m.entries[fingerprint]
	return entry, ok, nil
}

func (m *memoryCache) Store(ctx context.Context, entry *model.ContextCacheEntry) error {
	m.entries[entry.Fingerprint] = entry
	return nil
}

func (m *memoryCache) InvalidateDocument(ctx context.Context, docID string) error {
	for fingerprint, entry := range m.entries {
		for _, id := range entry.DocumentIDs {
			if id == docID {
				delete(m.entries, fingerprint)
				break
			}
		}
	}
	return nil
}

func match(chunkID, docID string, similarity float32) model.ChunkMatch {
	return model.ChunkMatch{ChunkID: chunkID, DocumentID: docID, Similarity: similarity, Content: "c"}
}

func newTestRetrieval(embedder Embedder, searcher VectorSearcher, checker PermissionChecker, cache ContextCache) *RetrievalService {
	return NewRetrievalService(embedder, searcher, checker, cache, nil, RetrievalConfig{})
}

func TestRetrieveContextEmptyQuery(t *testing.T) {
	svc := newTestRetrieval(&fakeEmbedder{}, &fakeSearcher{}, &fakeChecker{}, newMemoryCache())
	_, err := svc.RetrieveContext(context.Background(), "user-1", "   ", "", 0, 0)
	require.ErrorIs(t, err, appErr.ErrInvalid)
}

func TestRetrieveContextLiveThenCached(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float32{1, 2, 3}}
	searcher := &fakeSearcher{matches: []model.ChunkMatch{match("c1", "doc-1", 0.9)}}
	checker := &fakeChecker{allowed: map[string]bool{"doc-1": true}}
	svc := newTestRetrieval(embedder, searcher, checker, newMemoryCache())

	first, err := svc.RetrieveContext(context.Background(), "user-1", "rotate keys", "", 0, 0)
	require.NoError(t, err)
	require.Equal(t, SourceLive, first.Source)
	require.Len(t, first.Results, 1)

	second, err := svc.RetrieveContext(context.Background(), "user-1", " Rotate   KEYS ", "", 0, 0)
	require.NoError(t, err)
	require.Equal(t, SourceCache, second.Source)
	require.Equal(t, first.Results, second.Results)
	require.Equal(t, 1, embedder.calls)
}

func TestRetrieveContextPermissionFiltering(t *testing.T) {
	searcher := &fakeSearcher{matches: []model.ChunkMatch{
		match("c1", "doc-allowed", 0.95),
		match("c2", "doc-denied", 0.9),
		match("c3", "doc-allowed", 0.85),
	}}
	checker := &fakeChecker{allowed: map[string]bool{"doc-allowed": true}}
	svc := newTestRetrieval(&fakeEmbedder{embedding: []float32{1}}, searcher, checker, newMemoryCache())

	result, err := svc.RetrieveContext(context.Background(), "user-1", "q", "", 0, 0)
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	for _, m := range result.Results {
		require.Equal(t, "doc-allowed", m.DocumentID)
	}
	// memoized: one resolution per distinct document, not per chunk
	require.Equal(t, 1, checker.calls["doc-allowed"])
	require.Equal(t, 1, checker.calls["doc-denied"])
}

func TestRetrieveContextResolutionFailureFailsClosed(t *testing.T) {
	searcher := &fakeSearcher{matches: []model.ChunkMatch{match("c1", "doc-1", 0.9)}}
	checker := &fakeChecker{err: appErr.ErrResolution}
	svc := newTestRetrieval(&fakeEmbedder{embedding: []float32{1}}, searcher, checker, newMemoryCache())

	result, err := svc.RetrieveContext(context.Background(), "user-1", "q", "", 0, 0)
	require.NoError(t, err)
	require.Empty(t, result.Results)
}

func TestRetrieveContextProviderFailure(t *testing.T) {
	svc := newTestRetrieval(&fakeEmbedder{err: errors.New("quota exceeded")}, &fakeSearcher{}, &fakeChecker{}, newMemoryCache())
	_, err := svc.RetrieveContext(context.Background(), "user-1", "q", "", 0, 0)
	require.ErrorIs(t, err, appErr.ErrProvider)
}

func TestRetrieveContextClamping(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := NewRetrievalService(&fakeEmbedder{embedding: []float32{1}}, searcher, &fakeChecker{}, newMemoryCache(), nil, RetrievalConfig{
		DefaultThreshold: 0.7,
		DefaultCount:     5,
		MaxCount:         50,
	})

	_, err := svc.RetrieveContext(context.Background(), "user-1", "q", "", 0, 0)
	require.NoError(t, err)
	require.Equal(t, float32(0.7), searcher.gotThreshold)
	require.Equal(t, 5, searcher.gotCount)

	_, err = svc.RetrieveContext(context.Background(), "user-1", "q2", "", 2, 500)
	require.NoError(t, err)
	require.Equal(t, float32(1), searcher.gotThreshold)
	require.Equal(t, 50, searcher.gotCount)
}

func TestRetrieveContextCacheHitRefiltersPerUser(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float32{1}}
	searcher := &fakeSearcher{matches: []model.ChunkMatch{match("c1", "doc-1", 0.9)}}
	checker := &fakeChecker{allowed: map[string]bool{"doc-1": true}}
	svc := newTestRetrieval(embedder, searcher, checker, newMemoryCache())

	first, err := svc.RetrieveContext(context.Background(), "user-1", "q", "", 0, 0)
	require.NoError(t, err)
	require.Len(t, first.Results, 1)

	// same fingerprint, different user without access: hit must not leak
	checker.allowed = map[string]bool{}
	second, err := svc.RetrieveContext(context.Background(), "user-2", "q", "", 0, 0)
	require.NoError(t, err)
	require.Equal(t, SourceCache, second.Source)
	require.Empty(t, second.Results)
}

func TestRetrieveContextInvalidationForcesRecompute(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float32{1}}
	searcher := &fakeSearcher{matches: []model.ChunkMatch{match("c1", "doc-1", 0.9)}}
	checker := &fakeChecker{allowed: map[string]bool{"doc-1": true}}
	cache := newMemoryCache()
	svc := newTestRetrieval(embedder, searcher, checker, cache)

	_, err := svc.RetrieveContext(context.Background(), "user-1", "q", "", 0, 0)
	require.NoError(t, err)
	require.NoError(t, cache.InvalidateDocument(context.Background(), "doc-1"))

	result, err := svc.RetrieveContext(context.Background(), "user-1", "q", "", 0, 0)
	require.NoError(t, err)
	require.Equal(t, SourceLive, result.Source)
	require.Equal(t, 2, embedder.calls)
}
