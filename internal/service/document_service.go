package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/knowhub/knowhub/internal/model"
	appErr "github.com/knowhub/knowhub/internal/pkg/errors"
	"github.com/knowhub/knowhub/internal/pkg/timeutil"
	"github.com/knowhub/knowhub/internal/repo"
)

// Documents shorter than this get an empty summary instead of an AI call.
const minSummaryChars = 80

// Summarizer produces a short abstract of document content.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

type DocumentService struct {
	docs    *repo.DocumentRepo
	chunks  *repo.ChunkRepo
	perms   *PermissionService
	batches *BatchService
	ingest  *IngestService
	cache   ContextCache
	ai      Summarizer
}

func NewDocumentService(docs *repo.DocumentRepo, chunks *repo.ChunkRepo, perms *PermissionService, batches *BatchService, ingest *IngestService, cache ContextCache, summarizer Summarizer) *DocumentService {
	return &DocumentService{
		docs:    docs,
		chunks:  chunks,
		perms:   perms,
		batches: batches,
		ingest:  ingest,
		cache:   cache,
		ai:      summarizer,
	}
}

type DocumentCreateInput struct {
	Title    string
	Content  string
	FileType string
	HubAreas []string
	Metadata map[string]string
}

type DocumentUpdateInput struct {
	Title    string
	Content  string
	HubAreas []string
	Metadata map[string]string
}

// Create persists the document and kicks off asynchronous ingestion; the
// returned batch is what the caller polls.
func (s *DocumentService) Create(ctx context.Context, userID string, input DocumentCreateInput) (*model.Document, *model.BatchJob, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" || strings.TrimSpace(input.Content) == "" {
		return nil, nil, appErr.ErrInvalid
	}
	fileType := input.FileType
	if fileType == "" {
		fileType = "markdown"
	}
	now := timeutil.NowUnix()
	doc := &model.Document{
		ID:       newID(),
		UserID:   userID,
		Title:    title,
		Content:  input.Content,
		FileType: fileType,
		HubAreas: normalizeHubAreas(input.HubAreas),
		Metadata: input.Metadata,
		State:    repo.DocumentStateNormal,
		Ctime:    now,
		Mtime:    now,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, nil, err
	}
	job, err := s.batches.Create(ctx, userID, doc.ID, map[string]string{"source": "create", "title": title})
	if err != nil {
		return nil, nil, err
	}
	s.ingest.Enqueue(doc, job.ID)
	return doc, job, nil
}

func (s *DocumentService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	if err := s.require(ctx, userID, docID, model.LevelRead); err != nil {
		return nil, err
	}
	return s.docs.GetByID(ctx, docID)
}

func (s *DocumentService) List(ctx context.Context, userID string, limit, offset uint) ([]model.Document, error) {
	if limit == 0 || limit > 100 {
		limit = 20
	}
	return s.docs.ListByOwner(ctx, userID, limit, offset)
}

// Update rewrites content and re-ingests; stale cached retrievals referencing
// the document are removed before the new batch runs.
func (s *DocumentService) Update(ctx context.Context, userID, docID string, input DocumentUpdateInput) (*model.BatchJob, error) {
	if err := s.require(ctx, userID, docID, model.LevelWrite); err != nil {
		return nil, err
	}
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if title := strings.TrimSpace(input.Title); title != "" {
		doc.Title = title
	}
	if strings.TrimSpace(input.Content) != "" {
		doc.Content = input.Content
	}
	if input.HubAreas != nil {
		doc.HubAreas = normalizeHubAreas(input.HubAreas)
	}
	if input.Metadata != nil {
		doc.Metadata = input.Metadata
	}
	doc.Mtime = timeutil.NowUnix()
	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, err
	}
	if err := s.cache.InvalidateDocument(ctx, docID); err != nil {
		return nil, err
	}
	job, err := s.batches.Create(ctx, userID, docID, map[string]string{"source": "update", "title": doc.Title})
	if err != nil {
		return nil, err
	}
	s.ingest.Enqueue(doc, job.ID)
	return job, nil
}

// Delete soft-deletes the document so grants and audit entries keep a valid
// reference; chunks cascade away and cached results are invalidated.
func (s *DocumentService) Delete(ctx context.Context, userID, docID string) error {
	if err := s.require(ctx, userID, docID, model.LevelAdmin); err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, docID, timeutil.NowUnix()); err != nil {
		return err
	}
	if err := s.chunks.DeleteByDocument(ctx, docID); err != nil {
		return err
	}
	return s.cache.InvalidateDocument(ctx, docID)
}

func (s *DocumentService) ListHubAreas(ctx context.Context) ([]string, error) {
	return s.docs.ListHubAreas(ctx)
}

// ProcessPendingSummaries generates abstracts for documents that have none
// and stores them under the summary metadata key. Content below the minimum
// length is marked with an empty summary so it is not picked up again.
func (s *DocumentService) ProcessPendingSummaries(ctx context.Context, limit int) error {
	if s.ai == nil {
		return nil
	}
	logger := logutil.GetLogger(ctx)
	docs, err := s.docs.ListMissingSummaries(ctx, limit)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	logger.Info("processing pending summaries", zap.Int("count", len(docs)))
	for i := range docs {
		doc := &docs[i]
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if utf8.RuneCountInString(doc.Content) < minSummaryChars {
			if err := s.docs.SetSummary(ctx, doc.ID, ""); err != nil {
				logger.Error("failed to mark empty summary", zap.String("doc_id", doc.ID), zap.Error(err))
			}
			continue
		}
		summary, err := s.ai.Summarize(ctx, doc.Content)
		if err != nil {
			logger.Error("failed to summarize document", zap.String("doc_id", doc.ID), zap.Error(err))
			continue
		}
		if err := s.docs.SetSummary(ctx, doc.ID, summary); err != nil {
			logger.Error("failed to save summary", zap.String("doc_id", doc.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *DocumentService) require(ctx context.Context, userID, docID string, level model.PermissionLevel) error {
	decision, err := s.perms.Resolve(ctx, docID, userID, level)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return appErr.ErrForbidden
	}
	return nil
}

func normalizeHubAreas(areas []string) []string {
	seen := make(map[string]bool, len(areas))
	out := make([]string, 0, len(areas))
	for _, area := range areas {
		normalized := strings.ToLower(strings.TrimSpace(area))
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}
