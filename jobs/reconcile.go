package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	jobmetrics "github.com/odyssey-erp/odyssey-commerce/internal/jobs"
)

// StockReconciler is implemented by inventory.Ledger.
type StockReconciler interface {
	Reconcile(ctx context.Context, productID string) (*inventory.Correction, error)
	ReconcileAll(ctx context.Context) ([]inventory.Correction, error)
}

// InvoiceReconciler is implemented by ar.Service.
type InvoiceReconciler interface {
	ReconcileInvoice(ctx context.Context, invoiceID string) (ar.Invoice, bool, error)
	ReconcileAll(ctx context.Context) ([]ar.Invoice, error)
}

// ReconcileJobs handles the stock and invoice reconcile tasks.
type ReconcileJobs struct {
	Stock    StockReconciler
	Invoices InvoiceReconciler
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	// Invalidate runs after a reconcile rewrote at least one record.
	Invalidate func(ctx context.Context)
}

// HandleStock processes TaskStockReconcile.
func (j *ReconcileJobs) HandleStock(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Stock == nil {
		return errors.New("stock reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskStockReconcile)
	defer func() { err = tracker.End(err) }()

	var corrections []inventory.Correction
	if payload.ID != "" {
		c, err := j.Stock.Reconcile(ctx, payload.ID)
		if err != nil {
			return err
		}
		if c != nil {
			corrections = append(corrections, *c)
		}
	} else {
		corrections, err = j.Stock.ReconcileAll(ctx)
		if err != nil {
			return err
		}
	}
	j.Metrics.AddStockCorrections(len(corrections))
	for _, c := range corrections {
		j.logger().Warn("stock corrected",
			slog.String("product", c.ProductID),
			slog.Float64("cached", c.Cached),
			slog.Float64("ledger", c.Ledger))
	}
	j.logger().Info("stock reconcile done", slog.Int("corrections", len(corrections)))
	j.invalidate(ctx, len(corrections))
	return nil
}

// HandleInvoices processes TaskInvoiceReconcile.
func (j *ReconcileJobs) HandleInvoices(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Invoices == nil {
		return errors.New("invoice reconcile: handler not configured")
	}
	var payload ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.Metrics.Track(TaskInvoiceReconcile)
	defer func() { err = tracker.End(err) }()

	repaired := 0
	if payload.ID != "" {
		_, changed, err := j.Invoices.ReconcileInvoice(ctx, payload.ID)
		if err != nil {
			return err
		}
		if changed {
			repaired = 1
		}
	} else {
		invoices, err := j.Invoices.ReconcileAll(ctx)
		if err != nil {
			return err
		}
		repaired = len(invoices)
		for _, inv := range invoices {
			j.logger().Warn("invoice repaired",
				slog.String("invoice", inv.DocumentID),
				slog.Float64("amount_paid", inv.AmountPaid),
				slog.String("status", string(inv.Status)))
		}
	}
	j.Metrics.AddInvoiceRepairs(repaired)
	j.logger().Info("invoice reconcile done", slog.Int("repaired", repaired))
	j.invalidate(ctx, repaired)
	return nil
}

func (j *ReconcileJobs) invalidate(ctx context.Context, changed int) {
	if changed > 0 && j.Invalidate != nil {
		j.Invalidate(ctx)
	}
}

func (j *ReconcileJobs) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
