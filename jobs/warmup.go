package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-commerce/internal/analytics"
	jobmetrics "github.com/odyssey-erp/odyssey-commerce/internal/jobs"
)

// DashboardSource is implemented by analytics.Service.
type DashboardSource interface {
	Dashboard(ctx context.Context) (analytics.Dashboard, error)
}

// WarmupJob computes the dashboard so the first request of the day hits the cache.
type WarmupJob struct {
	Analytics DashboardSource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// Handle processes TaskAnalyticsWarmup.
func (j *WarmupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Analytics == nil {
		return errors.New("analytics warmup: handler not configured")
	}
	tracker := j.Metrics.Track(TaskAnalyticsWarmup)
	defer func() { err = tracker.End(err) }()

	d, err := j.Analytics.Dashboard(ctx)
	if err != nil {
		return err
	}
	if j.Logger != nil {
		j.Logger.Info("dashboard warmed",
			slog.Float64("outstanding", d.Outstanding),
			slog.Int("low_stock", len(d.LowStock)))
	}
	return nil
}
