package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/knowhub/knowhub/internal/model"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceForDocument swaps a document's chunk set atomically. Ingestion always
// rebuilds the full set, so a plain delete-then-insert inside one transaction
// is enough.
func (r *ChunkRepo) ReplaceForDocument(ctx context.Context, docID string, chunks []model.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID); err != nil {
		return err
	}
	const insert = `
		INSERT INTO chunks (id, document_id, position, content, token_count, embedding, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, chunk := range chunks {
		if _, err := tx.ExecContext(ctx, insert,
			chunk.ID,
			chunk.DocumentID,
			chunk.Position,
			chunk.Content,
			chunk.TokenCount,
			pgvector.NewVector(chunk.Embedding),
			chunk.Ctime,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.Position, err)
		}
	}
	return tx.Commit()
}

func (r *ChunkRepo) DeleteByDocument(ctx context.Context, docID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID)
	return err
}

func (r *ChunkRepo) CountByDocument(ctx context.Context, docID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks WHERE document_id = $1`, docID).Scan(&count)
	return count, err
}

// Search runs a nearest-neighbor scan over all live chunks. Similarity is
// cosine based (1 - cosine distance); ties break by the parent document's
// creation time, newer first, then chunk position for a stable order.
func (r *ChunkRepo) Search(ctx context.Context, embedding []float32, threshold float32, count int, hubArea string) ([]model.ChunkMatch, error) {
	const query = `
		SELECT c.id, c.document_id, c.position, c.content,
		       1 - (c.embedding <=> $1) AS similarity
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.state = $2
		  AND ($3 = '' OR $3 = ANY(d.hub_areas))
		  AND 1 - (c.embedding <=> $1) >= $4
		ORDER BY similarity DESC, d.ctime DESC, c.position ASC
		LIMIT $5
	`
	rows, err := r.db.QueryContext(ctx, query,
		pgvector.NewVector(embedding),
		DocumentStateNormal,
		hubArea,
		threshold,
		count,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var matches []model.ChunkMatch
	for rows.Next() {
		var m model.ChunkMatch
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Position, &m.Content, &m.Similarity); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// ListStaleDocuments finds documents whose chunks are missing or older than
// the last content change, for the resync job.
func (r *ChunkRepo) ListStaleDocuments(ctx context.Context, limit int) ([]model.Document, error) {
	const query = `
		SELECT d.id, d.user_id, d.title, d.content, d.file_type, d.hub_areas, d.metadata_json, d.state, d.ctime, d.mtime
		FROM documents d
		LEFT JOIN (
			SELECT document_id, MAX(ctime) AS chunk_ctime FROM chunks GROUP BY document_id
		) c ON d.id = c.document_id
		WHERE (c.document_id IS NULL OR d.mtime > c.chunk_ctime) AND d.state = $1
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, DocumentStateNormal, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}
