// Package cli holds the operator subcommands of the odyssey binary.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-commerce/jobs"
)

// JobsCLI wraps manual management helpers for Asynq jobs.
type JobsCLI struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis options.
func NewJobsCLI(opts asynq.RedisClientOpt) *JobsCLI {
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

// BuildTask prepares the task behind a job name. id scopes reconcile jobs.
func BuildTask(name, id string, now time.Time) (*asynq.Task, error) {
	switch name {
	case jobs.TaskStockReconcile:
		return jobs.NewStockReconcileTask(id, now)
	case jobs.TaskInvoiceReconcile:
		return jobs.NewInvoiceReconcileTask(id, now)
	case jobs.TaskPipelineSweep:
		return jobs.NewPipelineSweepTask(jobs.DefaultSweepAge)
	case jobs.TaskAnalyticsWarmup:
		return jobs.NewAnalyticsWarmupTask()
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
}

// Trigger enqueues a supported job by name.
func (c *JobsCLI) Trigger(ctx context.Context, name, id string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	task, err := BuildTask(name, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueue reports the queue metrics for the default queue.
func (c *JobsCLI) InspectQueue() (QueueStats, error) {
	if c == nil || c.inspector == nil {
		return QueueStats{}, errors.New("jobs cli: inspector not configured")
	}
	info, err := c.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return QueueStats{}, err
	}
	stats := QueueStats{Queue: jobs.QueueDefault}
	if info != nil {
		stats.Pending = info.Pending
		stats.Active = info.Active
		stats.Scheduled = info.Scheduled
		stats.Retry = info.Retry
		stats.Archived = info.Archived
	}
	return stats, nil
}

// Run executes `jobs trigger <name> [-id X]` or `jobs stats`.
func Run(ctx context.Context, c *JobsCLI, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: jobs trigger <name> [-id ID] | jobs stats")
	}
	switch args[0] {
	case "trigger":
		fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
		fs.SetOutput(out)
		id := fs.String("id", "", "product or invoice id to reconcile")
		if len(args) < 2 {
			return errors.New("usage: jobs trigger <name> [-id ID]")
		}
		if err := fs.Parse(args[2:]); err != nil {
			return err
		}
		info, err := c.Trigger(ctx, args[1], *id)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "enqueued %s (%s) on %s\n", info.ID, info.Type, info.Queue)
		return err
	case "stats":
		stats, err := c.InspectQueue()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		return err
	default:
		return fmt.Errorf("jobs cli: unknown command %s", args[0])
	}
}
