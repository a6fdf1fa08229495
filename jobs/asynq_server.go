package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-commerce/internal/platform/httpx"
)

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Handlers  []TaskHandler
	Cron      []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		// reconcile jobs rewrite shared records; one at a time keeps them from racing each other
		Concurrency: 1,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
	}

	var scheduler *asynq.Scheduler
	if len(cfg.Cron) > 0 {
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, logger: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
	now    func() time.Time
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client, now: time.Now}, nil
}

// EnqueueStockReconcile queues a stock reconcile for one product, or all when productID is empty.
func (c *Client) EnqueueStockReconcile(ctx context.Context, productID string) (*asynq.TaskInfo, error) {
	task, err := NewStockReconcileTask(productID, c.now().UTC())
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// EnqueueInvoiceReconcile queues an invoice reconcile for one invoice, or all when invoiceID is empty.
func (c *Client) EnqueueInvoiceReconcile(ctx context.Context, invoiceID string) (*asynq.TaskInfo, error) {
	task, err := NewInvoiceReconcileTask(invoiceID, c.now().UTC())
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
}

// EnqueuePipelineSweep queues an immediate marker sweep.
func (c *Client) EnqueuePipelineSweep(ctx context.Context, olderThan time.Duration) (*asynq.TaskInfo, error) {
	task, err := NewPipelineSweepTask(olderThan)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.MaxRetry(0))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Enqueuer is the part of Client used by the HTTP handler.
type Enqueuer interface {
	EnqueueStockReconcile(ctx context.Context, productID string) (*asynq.TaskInfo, error)
	EnqueueInvoiceReconcile(ctx context.Context, invoiceID string) (*asynq.TaskInfo, error)
	EnqueuePipelineSweep(ctx context.Context, olderThan time.Duration) (*asynq.TaskInfo, error)
}

// QueueInspector reports queue depth. asynq.Inspector implements it.
type QueueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Handler exposes HTTP endpoints to trigger and observe jobs.
type Handler struct {
	inspector QueueInspector
	client    Enqueuer
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints. Both inspector and
// client may be nil when redis is disabled.
func NewHandler(inspector QueueInspector, client Enqueuer, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, client: client, logger: logger}
}

type queueHealth struct {
	Queue   string `json:"queue"`
	Pending int    `json:"pending"`
	Active  int    `json:"active"`
	Failed  int    `json:"failed"`
}

type enqueued struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Queue string `json:"queue"`
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
	r.Post("/stock-reconcile", h.enqueue(func(r *http.Request) (*asynq.TaskInfo, error) {
		return h.client.EnqueueStockReconcile(r.Context(), r.URL.Query().Get("productId"))
	}))
	r.Post("/invoice-reconcile", h.enqueue(func(r *http.Request) (*asynq.TaskInfo, error) {
		return h.client.EnqueueInvoiceReconcile(r.Context(), r.URL.Query().Get("invoiceId"))
	}))
	r.Post("/pipeline-sweep", h.enqueue(func(r *http.Request) (*asynq.TaskInfo, error) {
		return h.client.EnqueuePipelineSweep(r.Context(), DefaultSweepAge)
	}))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, queueHealth{Queue: QueueDefault})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", err.Error())
		return
	}
	out := queueHealth{Queue: QueueDefault}
	if info != nil {
		out = queueHealth{Queue: info.Queue, Pending: info.Pending, Active: info.Active, Failed: info.Failed}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) enqueue(fn func(r *http.Request) (*asynq.TaskInfo, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.client == nil {
			httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", "background jobs need redis")
			return
		}
		info, err := fn(r)
		if err != nil {
			h.logger.Error("enqueue job", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.Problem(w, http.StatusServiceUnavailable, "Queue Unavailable", err.Error())
			return
		}
		httpx.JSON(w, http.StatusAccepted, enqueued{ID: info.ID, Type: info.Type, Queue: info.Queue})
	}
}
