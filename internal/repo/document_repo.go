package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"
	"github.com/lib/pq"

	"github.com/knowhub/knowhub/internal/model"
	"github.com/knowhub/knowhub/internal/pkg/dbutil"
	appErr "github.com/knowhub/knowhub/internal/pkg/errors"
)

const (
	DocumentStateNormal  = 0
	DocumentStateDeleted = 1
)

type DocumentRepo struct {
	db *sql.DB
}

func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *model.Document) error {
	metaJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO documents (id, user_id, title, content, file_type, hub_areas, metadata_json, state, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.Title,
		doc.Content,
		doc.FileType,
		pq.Array(doc.HubAreas),
		metaJSON,
		doc.State,
		doc.Ctime,
		doc.Mtime,
	)
	return err
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID string) (*model.Document, error) {
	const query = `
		SELECT id, user_id, title, content, file_type, hub_areas, metadata_json, state, ctime, mtime
		FROM documents
		WHERE id = $1 AND state = $2
	`
	row := r.db.QueryRowContext(ctx, query, docID, DocumentStateNormal)
	return scanDocument(row)
}

// GetOwner returns the owner id without loading the document body.
func (r *DocumentRepo) GetOwner(ctx context.Context, docID string) (string, error) {
	const query = `
		SELECT user_id FROM documents WHERE id = $1 AND state = $2
	`
	var owner string
	if err := r.db.QueryRowContext(ctx, query, docID, DocumentStateNormal).Scan(&owner); err != nil {
		if err == sql.ErrNoRows {
			return "", appErr.ErrNotFound
		}
		return "", err
	}
	return owner, nil
}

func (r *DocumentRepo) ListByOwner(ctx context.Context, userID string, limit, offset uint) ([]model.Document, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"state":    DocumentStateNormal,
		"_orderby": "mtime desc",
	}
	if limit > 0 {
		where["_limit"] = []uint{offset, limit}
	}
	sqlStr, args, err := builder.BuildSelect("documents",
		where,
		[]string{"id", "user_id", "title", "content", "file_type", "hub_areas", "metadata_json", "state", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (r *DocumentRepo) Update(ctx context.Context, doc *model.Document) error {
	metaJSON, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}
	const query = `
		UPDATE documents
		SET title = $1, content = $2, file_type = $3, hub_areas = $4, metadata_json = $5, mtime = $6
		WHERE id = $7 AND state = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		doc.Title,
		doc.Content,
		doc.FileType,
		pq.Array(doc.HubAreas),
		metaJSON,
		doc.Mtime,
		doc.ID,
		DocumentStateNormal,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// Delete soft-deletes: grants and audit entries keep referencing the row.
func (r *DocumentRepo) Delete(ctx context.Context, docID string, mtime int64) error {
	const query = `
		UPDATE documents SET state = $1, mtime = $2 WHERE id = $3 AND state = $4
	`
	res, err := r.db.ExecContext(ctx, query, DocumentStateDeleted, mtime, docID, DocumentStateNormal)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

// ListMissingSummaries returns live documents whose metadata has no summary
// key yet, oldest change first.
func (r *DocumentRepo) ListMissingSummaries(ctx context.Context, limit int) ([]model.Document, error) {
	const query = `
		SELECT id, user_id, title, content, file_type, hub_areas, metadata_json, state, ctime, mtime
		FROM documents
		WHERE state = $1 AND NOT (metadata_json::jsonb ? 'summary')
		ORDER BY mtime ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, DocumentStateNormal, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// SetSummary writes the summary metadata key in place. It deliberately does
// not bump mtime, so the write never makes the document's chunks look stale.
func (r *DocumentRepo) SetSummary(ctx context.Context, docID, summary string) error {
	const query = `
		UPDATE documents
		SET metadata_json = (metadata_json::jsonb || jsonb_build_object('summary', $1::text))::text
		WHERE id = $2 AND state = $3
	`
	res, err := r.db.ExecContext(ctx, query, summary, docID, DocumentStateNormal)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DocumentRepo) ListHubAreas(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT unnest(hub_areas) AS area FROM documents WHERE state = $1 ORDER BY area
	`
	rows, err := r.db.QueryContext(ctx, query, DocumentStateNormal)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var areas []string
	for rows.Next() {
		var area string
		if err := rows.Scan(&area); err != nil {
			return nil, err
		}
		areas = append(areas, area)
	}
	return areas, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var doc model.Document
	var areas pq.StringArray
	var metaJSON string
	if err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.Title,
		&doc.Content,
		&doc.FileType,
		&areas,
		&metaJSON,
		&doc.State,
		&doc.Ctime,
		&doc.Mtime,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	doc.HubAreas = areas
	if metaJSON != "" && metaJSON != "{}" {
		_ = json.Unmarshal([]byte(metaJSON), &doc.Metadata)
	}
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]model.Document, error) {
	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func marshalMetadata(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
