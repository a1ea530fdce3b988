package repo

import (
	"context"
	"database/sql"

	"github.com/didi/gendry/builder"

	"github.com/knowhub/knowhub/internal/model"
	"github.com/knowhub/knowhub/internal/pkg/dbutil"
	appErr "github.com/knowhub/knowhub/internal/pkg/errors"
)

type GrantRepo struct {
	db *sql.DB
}

func NewGrantRepo(db *sql.DB) *GrantRepo {
	return &GrantRepo{db: db}
}

func (r *GrantRepo) Create(ctx context.Context, grant *model.PermissionGrant) error {
	data := map[string]interface{}{
		"id":          grant.ID,
		"document_id": grant.DocumentID,
		"user_id":     grant.UserID,
		"level":       string(grant.Level),
		"expires_at":  grant.ExpiresAt,
		"ctime":       grant.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("permission_grants", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	return err
}

// GetEffective returns the most specific non-expired grant for (document,
// user): the newest user-specific grant if any, otherwise nil. Role grants
// (empty user_id) are fetched separately via GetRoleGrant.
func (r *GrantRepo) GetEffective(ctx context.Context, docID, userID string, now int64) (*model.PermissionGrant, error) {
	const query = `
		SELECT id, document_id, user_id, level, expires_at, ctime
		FROM permission_grants
		WHERE document_id = $1 AND user_id = $2 AND (expires_at = 0 OR expires_at > $3)
		ORDER BY ctime DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, docID, userID, now)
}

func (r *GrantRepo) GetRoleGrant(ctx context.Context, docID string, now int64) (*model.PermissionGrant, error) {
	const query = `
		SELECT id, document_id, user_id, level, expires_at, ctime
		FROM permission_grants
		WHERE document_id = $1 AND user_id = '' AND (expires_at = 0 OR expires_at > $2)
		ORDER BY ctime DESC
		LIMIT 1
	`
	return r.getOne(ctx, query, docID, now)
}

func (r *GrantRepo) getOne(ctx context.Context, query string, args ...interface{}) (*model.PermissionGrant, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	var grant model.PermissionGrant
	var level string
	if err := row.Scan(&grant.ID, &grant.DocumentID, &grant.UserID, &level, &grant.ExpiresAt, &grant.Ctime); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	grant.Level = model.PermissionLevel(level)
	return &grant, nil
}

func (r *GrantRepo) ListByDocument(ctx context.Context, docID string) ([]model.PermissionGrant, error) {
	sqlStr, args, err := builder.BuildSelect("permission_grants",
		map[string]interface{}{
			"document_id": docID,
			"_orderby":    "ctime desc",
		},
		[]string{"id", "document_id", "user_id", "level", "expires_at", "ctime"})
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []model.PermissionGrant
	for rows.Next() {
		var grant model.PermissionGrant
		var level string
		if err := rows.Scan(&grant.ID, &grant.DocumentID, &grant.UserID, &level, &grant.ExpiresAt, &grant.Ctime); err != nil {
			return nil, err
		}
		grant.Level = model.PermissionLevel(level)
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

func (r *GrantRepo) Delete(ctx context.Context, docID, grantID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM permission_grants WHERE id = $1 AND document_id = $2`, grantID, docID)
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
