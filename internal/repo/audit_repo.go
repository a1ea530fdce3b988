package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/knowhub/knowhub/internal/model"
)

// AuditRepo is append-only: there is deliberately no update or delete here.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(db *sql.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Append(ctx context.Context, entry *model.AccessAuditEntry) error {
	basisJSON := ""
	if entry.Basis != nil {
		data, err := json.Marshal(entry.Basis)
		if err != nil {
			return err
		}
		basisJSON = string(data)
	}
	const query = `
		INSERT INTO access_audit_entries (id, document_id, user_id, action, level, basis_json, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.DocumentID,
		entry.UserID,
		entry.Action,
		string(entry.Level),
		basisJSON,
		entry.Ctime,
	)
	return err
}

func (r *AuditRepo) ListByDocument(ctx context.Context, docID string, limit, offset int) ([]model.AccessAuditEntry, error) {
	const query = `
		SELECT seq, id, document_id, user_id, action, level, basis_json, ctime
		FROM access_audit_entries
		WHERE document_id = $1
		ORDER BY seq DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, docID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.AccessAuditEntry
	for rows.Next() {
		var entry model.AccessAuditEntry
		var level string
		var basisJSON string
		if err := rows.Scan(&entry.Seq, &entry.ID, &entry.DocumentID, &entry.UserID, &entry.Action, &level, &basisJSON, &entry.Ctime); err != nil {
			return nil, err
		}
		entry.Level = model.PermissionLevel(level)
		if basisJSON != "" {
			var basis model.DecisionBasis
			if err := json.Unmarshal([]byte(basisJSON), &basis); err == nil {
				entry.Basis = &basis
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
