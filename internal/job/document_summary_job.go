package job

import (
	"context"

	"github.com/knowhub/knowhub/internal/service"
)

// DocumentSummaryJob backfills AI abstracts for documents that were ingested
// before a summary was generated.
type DocumentSummaryJob struct {
	documents *service.DocumentService
	batchCap  int
}

func NewDocumentSummaryJob(documents *service.DocumentService, batchCap int) *DocumentSummaryJob {
	return &DocumentSummaryJob{documents: documents, batchCap: batchCap}
}

func (j *DocumentSummaryJob) Name() string {
	return "document_summary"
}

func (j *DocumentSummaryJob) Run(ctx context.Context) error {
	if j.documents == nil {
		return nil
	}
	batchCap := j.batchCap
	if batchCap <= 0 {
		batchCap = 50
	}
	return j.documents.ProcessPendingSummaries(ctx, batchCap)
}
