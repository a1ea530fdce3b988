package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/knowhub/knowhub/internal/model"
)

type ContextCacheRepo struct {
	db *sql.DB
}

func NewContextCacheRepo(db *sql.DB) *ContextCacheRepo {
	return &ContextCacheRepo{db: db}
}

// Get returns the entry only if it is younger than minCtime; older rows are
// treated as absent so staleness never reaches the caller.
func (r *ContextCacheRepo) Get(ctx context.Context, fingerprint string, minCtime int64) (*model.ContextCacheEntry, bool, error) {
	const query = `
		SELECT fingerprint, results_json, document_ids, ctime
		FROM context_cache_entries
		WHERE fingerprint = $1 AND ctime >= $2
	`
	row := r.db.QueryRowContext(ctx, query, fingerprint, minCtime)
	var entry model.ContextCacheEntry
	var resultsJSON string
	var docIDs pq.StringArray
	if err := row.Scan(&entry.Fingerprint, &resultsJSON, &docIDs, &entry.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	if err := json.Unmarshal([]byte(resultsJSON), &entry.Results); err != nil {
		return nil, false, err
	}
	entry.DocumentIDs = docIDs
	return &entry, true, nil
}

// Save upserts with last-write-wins semantics.
func (r *ContextCacheRepo) Save(ctx context.Context, entry *model.ContextCacheEntry) error {
	resultsJSON, err := json.Marshal(entry.Results)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO context_cache_entries (fingerprint, results_json, document_ids, ctime)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (fingerprint) DO UPDATE SET
			results_json = EXCLUDED.results_json,
			document_ids = EXCLUDED.document_ids,
			ctime = EXCLUDED.ctime
	`
	_, err = r.db.ExecContext(ctx, query,
		entry.Fingerprint,
		string(resultsJSON),
		pq.Array(entry.DocumentIDs),
		entry.Ctime,
	)
	return err
}

// DeleteByDocument removes every entry whose result set references the
// document, via the document_ids reverse index.
func (r *ContextCacheRepo) DeleteByDocument(ctx context.Context, docID string) (int64, error) {
	const query = `DELETE FROM context_cache_entries WHERE $1 = ANY(document_ids)`
	res, err := r.db.ExecContext(ctx, query, docID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ContextCacheRepo) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `DELETE FROM context_cache_entries WHERE ctime < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
