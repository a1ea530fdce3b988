package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/xxxsen/common/webapi"

	"github.com/knowhub/knowhub/internal/ai"
	"github.com/knowhub/knowhub/internal/config"
	"github.com/knowhub/knowhub/internal/filestore"
	"github.com/knowhub/knowhub/internal/handler"
	"github.com/knowhub/knowhub/internal/middleware"
	"github.com/knowhub/knowhub/internal/repo"
	"github.com/knowhub/knowhub/internal/service"
	"github.com/knowhub/knowhub/test/testutil"
)

// constantEmbedder keeps handler tests off the network: every text maps to
// the same unit vector, so every stored chunk matches every query.
type constantEmbedder struct{}

func (constantEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	vec := make([]float32, 768)
	vec[0] = 1
	return vec, nil
}

func setupRouter(t *testing.T) (http.Handler, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, cleanup := testutil.OpenTestDB(t)
	userRepo := repo.NewUserRepo(db)
	docRepo := repo.NewDocumentRepo(db)
	chunkRepo := repo.NewChunkRepo(db)
	grantRepo := repo.NewGrantRepo(db)
	auditRepo := repo.NewAuditRepo(db)
	cacheRepo := repo.NewContextCacheRepo(db)
	batchRepo := repo.NewBatchJobRepo(db)

	jwtSecret := []byte("test-secret")
	authService := service.NewAuthService(userRepo, jwtSecret, time.Hour, true)
	permService := service.NewPermissionService(docRepo, grantRepo, auditRepo)
	contextCache := service.NewContextCache(cacheRepo, 15*time.Minute)
	batchService := service.NewBatchService(batchRepo)
	ingestService := service.NewIngestService(ai.NewChunker(), constantEmbedder{}, chunkRepo, contextCache, batchService)
	documentService := service.NewDocumentService(docRepo, chunkRepo, permService, batchService, ingestService, contextCache, nil)
	retrievalService := service.NewRetrievalService(constantEmbedder{}, chunkRepo, permService, contextCache, nil, service.RetrievalConfig{})

	tmpDir, err := os.MkdirTemp("", "knowhub-upload-*")
	require.NoError(t, err)

	store, err := filestore.New(config.FileStoreConfig{Type: "local", Dir: tmpDir})
	require.NoError(t, err)

	deps := handler.RouterDeps{
		Auth:       handler.NewAuthHandler(authService),
		Documents:  handler.NewDocumentHandler(documentService),
		Grants:     handler.NewGrantHandler(permService),
		Retrieval:  handler.NewRetrievalHandler(retrievalService),
		Batches:    handler.NewBatchHandler(batchService),
		Files:      handler.NewFileHandler(store, config.FileStoreConfig{Type: "local", Dir: tmpDir}),
		Properties: handler.NewPropertiesHandler(config.PropertiesConfig{EnableUserRegister: true}),
		JWTSecret:  jwtSecret,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		"",
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(nil),
		),
	)
	require.NoError(t, err)

	return engine, func() {
		cleanup()
		_ = os.RemoveAll(tmpDir)
	}
}

type apiResult struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) apiResult {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)

	var result apiResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	return result
}

func decodeData(t *testing.T, result apiResult, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(result.Data, dst))
}

func registerUser(t *testing.T, router http.Handler, email string) (string, string) {
	t.Helper()
	result := doJSON(t, router, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"password": "secret-pass",
	})
	require.Equal(t, 0, result.Code)
	var data struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decodeData(t, result, &data)
	require.NotEmpty(t, data.Token)
	return data.User.ID, data.Token
}

func waitForBatch(t *testing.T, router http.Handler, token, batchID string) string {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		result := doJSON(t, router, http.MethodGet, "/api/v1/batches/"+batchID, token, nil)
		require.Equal(t, 0, result.Code)
		var job struct {
			Status string `json:"status"`
		}
		decodeData(t, result, &job)
		if job.Status == "succeeded" || job.Status == "failed" {
			return job.Status
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("batch did not reach a terminal state")
	return ""
}
