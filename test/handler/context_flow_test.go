package handler_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/knowhub/knowhub/test/testutil"
)

type retrievalData struct {
	Results []struct {
		ChunkID    string  `json:"chunk_id"`
		DocumentID string  `json:"document_id"`
		Content    string  `json:"content"`
		Similarity float32 `json:"similarity"`
	} `json:"results"`
	Source string `json:"source"`
}

func createDocument(t *testing.T, router http.Handler, token, title, content, hubArea string) (string, string) {
	t.Helper()
	result := doJSON(t, router, http.MethodPost, "/api/v1/documents", token, map[string]interface{}{
		"title":     title,
		"content":   content,
		"hub_areas": []string{hubArea},
	})
	require.Equal(t, 0, result.Code)
	var data struct {
		Document struct {
			ID string `json:"id"`
		} `json:"document"`
		Batch struct {
			ID string `json:"id"`
		} `json:"batch"`
	}
	decodeData(t, result, &data)
	return data.Document.ID, data.Batch.ID
}

func queryContext(t *testing.T, router http.Handler, token, query, hubArea string) retrievalData {
	t.Helper()
	result := doJSON(t, router, http.MethodPost, "/api/v1/context/query", token, map[string]interface{}{
		"query":    query,
		"hub_area": hubArea,
	})
	require.Equal(t, 0, result.Code)
	var data retrievalData
	decodeData(t, result, &data)
	return data
}

func TestContextQueryEndToEnd(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	hubArea := testutil.NewID("hub")
	_, ownerToken := registerUser(t, router, testutil.NewID("owner")+"@example.com")

	docID, batchID := createDocument(t, router, ownerToken, "q1 goals", "Our goals for the quarter are growth and retention.", hubArea)
	require.Equal(t, "succeeded", waitForBatch(t, router, ownerToken, batchID))

	first := queryContext(t, router, ownerToken, "what are the goals", hubArea)
	require.Equal(t, "live", first.Source)
	require.NotEmpty(t, first.Results)
	require.Equal(t, docID, first.Results[0].DocumentID)

	second := queryContext(t, router, ownerToken, "  What   ARE the goals ", hubArea)
	require.Equal(t, "cache", second.Source)
	require.Len(t, second.Results, len(first.Results))
}

func TestContextQueryPermissionIsolation(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	hubArea := testutil.NewID("hub")
	_, ownerToken := registerUser(t, router, testutil.NewID("owner")+"@example.com")
	strangerID, strangerToken := registerUser(t, router, testutil.NewID("stranger")+"@example.com")

	docID, batchID := createDocument(t, router, ownerToken, "secret plan", "The launch plan is confidential.", hubArea)
	require.Equal(t, "succeeded", waitForBatch(t, router, ownerToken, batchID))

	// owner sees chunks, the stranger sees an empty (not failed) result
	owned := queryContext(t, router, ownerToken, "launch plan", hubArea)
	require.NotEmpty(t, owned.Results)

	denied := queryContext(t, router, strangerToken, "launch plan", hubArea)
	require.Empty(t, denied.Results)

	// a read grant opens the same cached fingerprint to the stranger
	result := doJSON(t, router, http.MethodPost, "/api/v1/documents/"+docID+"/grants", ownerToken, map[string]interface{}{
		"user_id": strangerID,
		"level":   "read",
	})
	require.Equal(t, 0, result.Code)

	granted := queryContext(t, router, strangerToken, "launch plan", hubArea)
	require.NotEmpty(t, granted.Results)
}

func TestBatchStatusVisibleToOwnerOnly(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	hubArea := testutil.NewID("hub")
	_, ownerToken := registerUser(t, router, testutil.NewID("owner")+"@example.com")
	_, otherToken := registerUser(t, router, testutil.NewID("other")+"@example.com")

	_, batchID := createDocument(t, router, ownerToken, "doc", "content for ingestion", hubArea)

	result := doJSON(t, router, http.MethodGet, "/api/v1/batches/"+batchID, otherToken, nil)
	require.NotEqual(t, 0, result.Code)

	require.Equal(t, "succeeded", waitForBatch(t, router, ownerToken, batchID))
}

func TestDocumentUpdateInvalidatesCache(t *testing.T) {
	router, cleanup := setupRouter(t)
	defer cleanup()

	hubArea := testutil.NewID("hub")
	_, ownerToken := registerUser(t, router, testutil.NewID("owner")+"@example.com")

	docID, batchID := createDocument(t, router, ownerToken, "notes", "version one of the notes", hubArea)
	require.Equal(t, "succeeded", waitForBatch(t, router, ownerToken, batchID))

	warm := queryContext(t, router, ownerToken, "the notes", hubArea)
	require.Equal(t, "live", warm.Source)
	hit := queryContext(t, router, ownerToken, "the notes", hubArea)
	require.Equal(t, "cache", hit.Source)

	result := doJSON(t, router, http.MethodPut, "/api/v1/documents/"+docID, ownerToken, map[string]interface{}{
		"content": "version two of the notes",
	})
	require.Equal(t, 0, result.Code)
	var updated struct {
		Batch struct {
			ID string `json:"id"`
		} `json:"batch"`
	}
	decodeData(t, result, &updated)
	require.Equal(t, "succeeded", waitForBatch(t, router, ownerToken, updated.Batch.ID))

	recomputed := queryContext(t, router, ownerToken, "the notes", hubArea)
	require.Equal(t, "live", recomputed.Source)
	require.Contains(t, recomputed.Results[0].Content, "version two")
}
