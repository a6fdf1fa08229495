package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-commerce/internal/jobs"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// DefaultSweepAge is how long a claim may stay open before the sweep reports it.
const DefaultSweepAge = 15 * time.Minute

// MarkerSource lists failed and abandoned pipeline markers.
type MarkerSource interface {
	Stale(ctx context.Context, olderThan time.Duration) ([]shared.Marker, error)
}

// SweepJob reports pipelines that stopped part way. It never repairs records:
// the completed step ids in each marker point at what needs a manual look.
type SweepJob struct {
	Markers MarkerSource
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskPipelineSweep.
func (j *SweepJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Markers == nil {
		return errors.New("pipeline sweep: handler not configured")
	}
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OlderThan <= 0 {
		payload.OlderThan = DefaultSweepAge
	}
	tracker := j.Metrics.Track(TaskPipelineSweep)
	defer func() { err = tracker.End(err) }()

	markers, err := j.Markers.Stale(ctx, payload.OlderThan)
	if err != nil {
		return err
	}
	j.Metrics.SetPendingMarkers(len(markers))
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, m := range markers {
		written := make([]string, 0, len(m.Completed))
		for _, step := range m.Completed {
			written = append(written, step.Step+"="+step.RecordID)
		}
		state := "abandoned"
		if m.Failed() {
			state = "failed"
		}
		logger.Warn("pipeline needs attention",
			slog.String("pipeline", m.Kind),
			slog.String("source", m.SourceID),
			slog.String("state", state),
			slog.String("failed_step", m.FailedStep),
			slog.Any("written", written),
			slog.String("error", m.Error),
			slog.Time("started_at", m.StartedAt))
	}
	return nil
}
