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

// axisVector returns a 768-dim unit vector along the given axis, so cosine
// similarity between distinct axes is exactly zero.
func axisVector(axis int) []float32 {
	vec := make([]float32, 768)
	vec[axis] = 1
	return vec
}

func createSearchDocument(t *testing.T, docs *repo.DocumentRepo, hubArea string) *model.Document {
	t.Helper()
	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:       testutil.NewID("doc"),
		UserID:   testutil.NewID("user"),
		Title:    "title",
		Content:  "content",
		FileType: "markdown",
		HubAreas: []string{hubArea},
		State:    repo.DocumentStateNormal,
		Ctime:    now,
		Mtime:    now,
	}
	require.NoError(t, docs.Create(context.Background(), doc))
	return doc
}

func TestChunkRepoSearchSimilarityAndThreshold(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	hubArea := testutil.NewID("hub")
	doc := createSearchDocument(t, docs, hubArea)

	now := timeutil.NowUnix()
	require.NoError(t, chunks.ReplaceForDocument(context.Background(), doc.ID, []model.Chunk{
		{ID: testutil.NewID("chunk"), DocumentID: doc.ID, Position: 0, Content: "aligned", TokenCount: 1, Embedding: axisVector(0), Ctime: now},
		{ID: testutil.NewID("chunk"), DocumentID: doc.ID, Position: 1, Content: "orthogonal", TokenCount: 1, Embedding: axisVector(1), Ctime: now},
	}))

	matches, err := chunks.Search(context.Background(), axisVector(0), 0.5, 10, hubArea)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "aligned", matches[0].Content)
	require.InDelta(t, 1.0, matches[0].Similarity, 0.001)

	// lower threshold admits the orthogonal chunk, ordered by similarity
	matches, err = chunks.Search(context.Background(), axisVector(0), -1, 10, hubArea)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "aligned", matches[0].Content)
}

func TestChunkRepoSearchHubAreaFilter(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	hubA := testutil.NewID("hub")
	hubB := testutil.NewID("hub")
	docA := createSearchDocument(t, docs, hubA)
	docB := createSearchDocument(t, docs, hubB)

	now := timeutil.NowUnix()
	require.NoError(t, chunks.ReplaceForDocument(context.Background(), docA.ID, []model.Chunk{
		{ID: testutil.NewID("chunk"), DocumentID: docA.ID, Position: 0, Content: "in a", TokenCount: 1, Embedding: axisVector(0), Ctime: now},
	}))
	require.NoError(t, chunks.ReplaceForDocument(context.Background(), docB.ID, []model.Chunk{
		{ID: testutil.NewID("chunk"), DocumentID: docB.ID, Position: 0, Content: "in b", TokenCount: 1, Embedding: axisVector(0), Ctime: now},
	}))

	matches, err := chunks.Search(context.Background(), axisVector(0), 0.5, 10, hubA)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, docA.ID, matches[0].DocumentID)
}

func TestChunkRepoSearchSkipsDeletedDocuments(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	hubArea := testutil.NewID("hub")
	doc := createSearchDocument(t, docs, hubArea)

	now := timeutil.NowUnix()
	require.NoError(t, chunks.ReplaceForDocument(context.Background(), doc.ID, []model.Chunk{
		{ID: testutil.NewID("chunk"), DocumentID: doc.ID, Position: 0, Content: "text", TokenCount: 1, Embedding: axisVector(0), Ctime: now},
	}))
	require.NoError(t, docs.Delete(context.Background(), doc.ID, timeutil.NowUnix()))

	matches, err := chunks.Search(context.Background(), axisVector(0), 0.5, 10, hubArea)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestChunkRepoReplaceIsAtomicSwap(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	docs := repo.NewDocumentRepo(db)
	chunks := repo.NewChunkRepo(db)
	doc := createSearchDocument(t, docs, testutil.NewID("hub"))

	now := timeutil.NowUnix()
	first := []model.Chunk{
		{ID: testutil.NewID("chunk"), DocumentID: doc.ID, Position: 0, Content: "v1-0", TokenCount: 1, Embedding: axisVector(0), Ctime: now},
		{ID: testutil.NewID("chunk"), DocumentID: doc.ID, Position: 1, Content: "v1-1", TokenCount: 1, Embedding: axisVector(1), Ctime: now},
	}
	require.NoError(t, chunks.ReplaceForDocument(context.Background(), doc.ID, first))

	count, err := chunks.CountByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	second := []model.Chunk{
		{ID: testutil.NewID("chunk"), DocumentID: doc.ID, Position: 0, Content: "v2-0", TokenCount: 1, Embedding: axisVector(2), Ctime: now + 1},
	}
	require.NoError(t, chunks.ReplaceForDocument(context.Background(), doc.ID, second))

	count, err = chunks.CountByDocument(context.Background(), doc.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
