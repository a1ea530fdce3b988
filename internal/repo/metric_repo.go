package repo

import (
	"context"
	"database/sql"

	"github.com/knowhub/knowhub/internal/model"
)

type MetricRepo struct {
	db *sql.DB
}

func NewMetricRepo(db *sql.DB) *MetricRepo {
	return &MetricRepo{db: db}
}

func (r *MetricRepo) Insert(ctx context.Context, m *model.RetrievalMetric) error {
	const query = `
		INSERT INTO retrieval_metrics (fingerprint, user_id, hub_area, source, result_count, duration_ms, ctime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		m.Fingerprint,
		m.UserID,
		m.HubArea,
		m.Source,
		m.ResultCount,
		m.DurationMs,
		m.Ctime,
	)
	return err
}
