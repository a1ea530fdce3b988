package job

import (
	"context"

	"github.com/knowhub/knowhub/internal/service"
)

// EmbeddingResyncJob re-ingests documents whose chunks are missing or stale,
// picking up work lost to crashes between update and embedding.
type EmbeddingResyncJob struct {
	ingest   *service.IngestService
	batchCap int
}

func NewEmbeddingResyncJob(ingest *service.IngestService, batchCap int) *EmbeddingResyncJob {
	return &EmbeddingResyncJob{ingest: ingest, batchCap: batchCap}
}

func (j *EmbeddingResyncJob) Name() string {
	return "embedding_resync"
}

func (j *EmbeddingResyncJob) Run(ctx context.Context) error {
	if j.ingest == nil {
		return nil
	}
	batchCap := j.batchCap
	if batchCap <= 0 {
		batchCap = 20
	}
	return j.ingest.ResyncStale(ctx, batchCap)
}
