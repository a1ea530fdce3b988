package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowhub/knowhub/internal/model"
	"github.com/knowhub/knowhub/internal/pkg/timeutil"
	"github.com/knowhub/knowhub/internal/repo"
	"github.com/knowhub/knowhub/test/testutil"
)

func cacheEntry(fingerprint, docID string, ctime int64) *model.ContextCacheEntry {
	return &model.ContextCacheEntry{
		Fingerprint: fingerprint,
		Results: []model.ChunkMatch{
			{ChunkID: testutil.NewID("chunk"), DocumentID: docID, Position: 0, Content: "text", Similarity: 0.91},
		},
		DocumentIDs: []string{docID},
		Ctime:       ctime,
	}
}

func TestContextCacheRepoSaveGetTTL(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache := repo.NewContextCacheRepo(db)
	fingerprint := testutil.NewID("fp")
	docID := testutil.NewID("doc")
	now := timeutil.NowUnix()

	require.NoError(t, cache.Save(context.Background(), cacheEntry(fingerprint, docID, now)))

	entry, ok, err := cache.Get(context.Background(), fingerprint, now-60)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, entry.Results, 1)
	require.Equal(t, docID, entry.Results[0].DocumentID)

	// entry older than minCtime is treated as absent
	_, ok, err = cache.Get(context.Background(), fingerprint, now+60)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = cache.Get(context.Background(), testutil.NewID("fp"), now-60)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestContextCacheRepoUpsert(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache := repo.NewContextCacheRepo(db)
	fingerprint := testutil.NewID("fp")
	now := timeutil.NowUnix()

	require.NoError(t, cache.Save(context.Background(), cacheEntry(fingerprint, testutil.NewID("doc"), now)))
	replacement := testutil.NewID("doc")
	require.NoError(t, cache.Save(context.Background(), cacheEntry(fingerprint, replacement, now+1)))

	entry, ok, err := cache.Get(context.Background(), fingerprint, now-60)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []string{replacement}, entry.DocumentIDs)
}

func TestContextCacheRepoDeleteByDocument(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache := repo.NewContextCacheRepo(db)
	now := timeutil.NowUnix()
	docID := testutil.NewID("doc")
	hit := testutil.NewID("fp")
	miss := testutil.NewID("fp")

	require.NoError(t, cache.Save(context.Background(), cacheEntry(hit, docID, now)))
	require.NoError(t, cache.Save(context.Background(), cacheEntry(miss, testutil.NewID("doc"), now)))

	deleted, err := cache.DeleteByDocument(context.Background(), docID)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	_, ok, err := cache.Get(context.Background(), hit, now-60)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = cache.Get(context.Background(), miss, now-60)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestContextCacheRepoDeleteBefore(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	cache := repo.NewContextCacheRepo(db)
	now := timeutil.NowUnix()
	old := testutil.NewID("fp")
	fresh := testutil.NewID("fp")

	require.NoError(t, cache.Save(context.Background(), cacheEntry(old, testutil.NewID("doc"), now-3600)))
	require.NoError(t, cache.Save(context.Background(), cacheEntry(fresh, testutil.NewID("doc"), now)))

	_, err := cache.DeleteBefore(context.Background(), now-60)
	require.NoError(t, err)

	_, ok, err := cache.Get(context.Background(), old, 0)
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = cache.Get(context.Background(), fresh, 0)
	require.NoError(t, err)
	require.True(t, ok)
}
