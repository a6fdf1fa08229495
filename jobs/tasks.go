package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskStockReconcile rewrites product stock caches that drifted from the movement ledger.
	TaskStockReconcile = "stock:reconcile"
	// TaskInvoiceReconcile re-derives invoice amountPaid, status and paymentDate from payments.
	TaskInvoiceReconcile = "invoice:reconcile"
	// TaskPipelineSweep reports failed and abandoned pipeline markers.
	TaskPipelineSweep = "pipeline:sweep"
	// TaskAnalyticsWarmup recomputes the cached dashboard.
	TaskAnalyticsWarmup = "analytics:warmup"
)

// ReconcilePayload scopes a reconcile task. An empty ID reconciles everything.
type ReconcilePayload struct {
	ID          string    `json:"id,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// SweepPayload configures the marker sweep.
type SweepPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewStockReconcileTask builds a stock reconcile task for one product or all of them.
func NewStockReconcileTask(productID string, at time.Time) (*asynq.Task, error) {
	return newTask(TaskStockReconcile, ReconcilePayload{ID: productID, RequestedAt: at})
}

// NewInvoiceReconcileTask builds an invoice reconcile task for one invoice or all of them.
func NewInvoiceReconcileTask(invoiceID string, at time.Time) (*asynq.Task, error) {
	return newTask(TaskInvoiceReconcile, ReconcilePayload{ID: invoiceID, RequestedAt: at})
}

// NewPipelineSweepTask builds a sweep task.
func NewPipelineSweepTask(olderThan time.Duration) (*asynq.Task, error) {
	return newTask(TaskPipelineSweep, SweepPayload{OlderThan: olderThan})
}

// NewAnalyticsWarmupTask builds a dashboard warmup task.
func NewAnalyticsWarmupTask() (*asynq.Task, error) {
	return newTask(TaskAnalyticsWarmup, struct{}{})
}

func newTask(taskType string, payload any) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

// DefaultCron schedules the nightly maintenance run.
func DefaultCron(sweepAfter time.Duration) ([]CronRegistration, error) {
	stock, err := NewStockReconcileTask("", time.Time{})
	if err != nil {
		return nil, err
	}
	invoices, err := NewInvoiceReconcileTask("", time.Time{})
	if err != nil {
		return nil, err
	}
	sweep, err := NewPipelineSweepTask(sweepAfter)
	if err != nil {
		return nil, err
	}
	warmup, err := NewAnalyticsWarmupTask()
	if err != nil {
		return nil, err
	}
	return []CronRegistration{
		{Spec: "0 2 * * *", Task: stock},
		{Spec: "15 2 * * *", Task: invoices},
		{Spec: "*/30 * * * *", Task: sweep},
		{Spec: "0 6 * * *", Task: warmup},
	}, nil
}
