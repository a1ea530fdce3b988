package metrics

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/knowhub/knowhub/internal/model"
	"github.com/knowhub/knowhub/internal/repo"
)

// Sink receives retrieval observations. Recording is best-effort: a sink must
// never fail the request that produced the observation.
type Sink interface {
	Observe(ctx context.Context, m *model.RetrievalMetric)
}

type dbSink struct {
	repo *repo.MetricRepo
}

func NewDBSink(metricRepo *repo.MetricRepo) Sink {
	return &dbSink{repo: metricRepo}
}

func (s *dbSink) Observe(ctx context.Context, m *model.RetrievalMetric) {
	if err := s.repo.Insert(ctx, m); err != nil {
		logutil.GetLogger(ctx).Warn("metric write failed", zap.Error(err))
	}
}

type nullSink struct{}

// NewNullSink discards every observation; used when metrics are disabled.
func NewNullSink() Sink {
	return nullSink{}
}

func (nullSink) Observe(context.Context, *model.RetrievalMetric) {}
