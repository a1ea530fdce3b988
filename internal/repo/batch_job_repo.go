package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/knowhub/knowhub/internal/model"
	appErr "github.com/knowhub/knowhub/internal/pkg/errors"
)

type BatchJobRepo struct {
	db *sql.DB
}

func NewBatchJobRepo(db *sql.DB) *BatchJobRepo {
	return &BatchJobRepo{db: db}
}

func (r *BatchJobRepo) Create(ctx context.Context, job *model.BatchJob) error {
	metaJSON, err := marshalMetadata(job.Metadata)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO batch_jobs (id, user_id, document_id, status, metadata_json, processed, total, error, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = r.db.ExecContext(ctx, query,
		job.ID,
		job.UserID,
		job.DocumentID,
		job.Status,
		metaJSON,
		job.Processed,
		job.Total,
		job.Error,
		job.Ctime,
		job.Mtime,
	)
	return err
}

func (r *BatchJobRepo) Get(ctx context.Context, jobID string) (*model.BatchJob, error) {
	const query = `
		SELECT id, user_id, document_id, status, metadata_json, processed, total, error, ctime, mtime
		FROM batch_jobs
		WHERE id = $1
	`
	row := r.db.QueryRowContext(ctx, query, jobID)
	var job model.BatchJob
	var metaJSON string
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.DocumentID,
		&job.Status,
		&metaJSON,
		&job.Processed,
		&job.Total,
		&job.Error,
		&job.Ctime,
		&job.Mtime,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	if metaJSON != "" && metaJSON != "{}" {
		_ = json.Unmarshal([]byte(metaJSON), &job.Metadata)
	}
	return &job, nil
}

// UpdateStatusIf is the compare-and-swap for batch transitions: the row only
// moves when its current status still matches fromStatus, which serializes
// concurrent pipeline callbacks per batch id.
func (r *BatchJobRepo) UpdateStatusIf(ctx context.Context, jobID, fromStatus, toStatus, errMsg string, processed, total int, mtime int64) (bool, error) {
	const query = `
		UPDATE batch_jobs
		SET status = $1, error = $2, processed = $3, total = $4, mtime = $5
		WHERE id = $6 AND status = $7
	`
	res, err := r.db.ExecContext(ctx, query, toStatus, errMsg, processed, total, mtime, jobID, fromStatus)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *BatchJobRepo) UpdateProgress(ctx context.Context, jobID string, processed, total int, mtime int64) error {
	const query = `
		UPDATE batch_jobs SET processed = $1, total = $2, mtime = $3 WHERE id = $4 AND status = $5
	`
	_, err := r.db.ExecContext(ctx, query, processed, total, mtime, jobID, model.BatchStatusRunning)
	return err
}

func (r *BatchJobRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.BatchJob, error) {
	const query = `
		SELECT id, user_id, document_id, status, metadata_json, processed, total, error, ctime, mtime
		FROM batch_jobs
		WHERE user_id = $1
		ORDER BY ctime DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var jobs []model.BatchJob
	for rows.Next() {
		var job model.BatchJob
		var metaJSON string
		if err := rows.Scan(
			&job.ID,
			&job.UserID,
			&job.DocumentID,
			&job.Status,
			&metaJSON,
			&job.Processed,
			&job.Total,
			&job.Error,
			&job.Ctime,
			&job.Mtime,
		); err != nil {
			return nil, err
		}
		if metaJSON != "" && metaJSON != "{}" {
			_ = json.Unmarshal([]byte(metaJSON), &job.Metadata)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteTerminalBefore removes finished jobs older than the cutoff; running
// jobs are never retention-cleaned.
func (r *BatchJobRepo) DeleteTerminalBefore(ctx context.Context, cutoff int64) (int64, error) {
	const query = `
		DELETE FROM batch_jobs WHERE mtime < $1 AND status IN ($2, $3)
	`
	res, err := r.db.ExecContext(ctx, query, cutoff, model.BatchStatusSucceeded, model.BatchStatusFailed)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
