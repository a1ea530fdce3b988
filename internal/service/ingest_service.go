package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/knowhub/knowhub/internal/ai"
	"github.com/knowhub/knowhub/internal/model"
	"github.com/knowhub/knowhub/internal/pkg/timeutil"
	"github.com/knowhub/knowhub/internal/repo"
)

const (
	documentTaskType      = "RETRIEVAL_DOCUMENT"
	defaultIngestDeadline = 10 * time.Minute
)

// IngestService is the ingestion pipeline: chunk, embed, store, invalidate,
// and report terminal batch status. Failures always land the batch in a
// terminal state.
type IngestService struct {
	chunker  *ai.Chunker
	embedder Embedder
	chunks   *repo.ChunkRepo
	cache    ContextCache
	batches  *BatchService
	deadline time.Duration
}

func NewIngestService(chunker *ai.Chunker, embedder Embedder, chunks *repo.ChunkRepo, cache ContextCache, batches *BatchService) *IngestService {
	return &IngestService{
		chunker:  chunker,
		embedder: embedder,
		chunks:   chunks,
		cache:    cache,
		batches:  batches,
		deadline: defaultIngestDeadline,
	}
}

// Enqueue starts processing on its own goroutine with a fresh context so the
// originating request can return immediately.
func (s *IngestService) Enqueue(doc *model.Document, jobID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.deadline)
		defer cancel()
		if err := s.Process(ctx, doc, jobID); err != nil {
			logutil.GetLogger(ctx).Error("ingestion failed",
				zap.String("doc_id", doc.ID),
				zap.String("job_id", jobID),
				zap.Error(err),
			)
		}
	}()
}

func (s *IngestService) Process(ctx context.Context, doc *model.Document, jobID string) error {
	logger := logutil.GetLogger(ctx).With(
		zap.String("doc_id", doc.ID),
		zap.String("job_id", jobID),
	)
	if err := s.batches.MarkRunning(ctx, jobID); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	pieces, err := s.chunker.Chunk(ctx, doc.Content)
	if err != nil {
		s.fail(ctx, jobID, err)
		return fmt.Errorf("chunk document: %w", err)
	}
	logger.Info("document chunked", zap.Int("chunks", len(pieces)))

	now := timeutil.NowUnix()
	chunks := make([]model.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		embedding, err := s.embedder.Embed(ctx, piece.Content, documentTaskType)
		if err != nil {
			s.fail(ctx, jobID, err)
			return fmt.Errorf("embed chunk %d: %w", piece.Position, err)
		}
		chunks = append(chunks, model.Chunk{
			ID:         newID(),
			DocumentID: doc.ID,
			Position:   piece.Position,
			Content:    piece.Content,
			TokenCount: piece.TokenCount,
			Embedding:  embedding,
			Ctime:      now,
		})
		s.batches.UpdateProgress(ctx, jobID, i+1, len(pieces))
	}

	if err := s.chunks.ReplaceForDocument(ctx, doc.ID, chunks); err != nil {
		s.fail(ctx, jobID, err)
		return fmt.Errorf("store chunks: %w", err)
	}
	if err := s.cache.InvalidateDocument(ctx, doc.ID); err != nil {
		logger.Warn("cache invalidation failed", zap.Error(err))
	}
	if err := s.batches.MarkSucceeded(context.WithoutCancel(ctx), jobID, len(chunks), len(chunks)); err != nil {
		return fmt.Errorf("mark succeeded: %w", err)
	}
	logger.Info("ingestion completed", zap.Int("chunks", len(chunks)))
	return nil
}

// fail writes the terminal status on a context that survives the pipeline
// deadline; the failure may be the deadline itself, and a status write on the
// expired context would leave the batch running forever.
func (s *IngestService) fail(ctx context.Context, jobID string, cause error) {
	wctx := context.WithoutCancel(ctx)
	if err := s.batches.MarkFailed(wctx, jobID, cause); err != nil {
		logutil.GetLogger(wctx).Error("mark failed did not apply",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}

// ResyncStale re-ingests documents whose chunks are missing or older than the
// last content change; crash recovery for batches that died mid-pipeline.
func (s *IngestService) ResyncStale(ctx context.Context, limit int) error {
	docs, err := s.chunks.ListStaleDocuments(ctx, limit)
	if err != nil {
		return err
	}
	for i := range docs {
		doc := &docs[i]
		job, err := s.batches.Create(ctx, doc.UserID, doc.ID, map[string]string{"source": "resync"})
		if err != nil {
			return err
		}
		if err := s.Process(ctx, doc, job.ID); err != nil {
			logutil.GetLogger(ctx).Warn("resync failed for document",
				zap.String("doc_id", doc.ID),
				zap.Error(err),
			)
		}
	}
	return nil
}
