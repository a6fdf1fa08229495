// Package integration forwards document events to the read side.
package integration

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/procurement"
)

// Invalidator drops cached aggregates. analytics.Service implements it.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Receipt summarises a received purchase order.
type Receipt struct {
	Reference  uuid.UUID
	DocumentID string
	SupplierID string
	Lines      int
	Value      float64
}

// Hooks reacts to procurement receipts: each order is valued once, logged and
// the analytics cache is bumped so stock figures refresh.
type Hooks struct {
	logger      *slog.Logger
	invalidator Invalidator

	mu   sync.Mutex
	seen map[uuid.UUID]Receipt
}

// NewHooks constructs integration hooks.
func NewHooks(logger *slog.Logger, invalidator Invalidator) *Hooks {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hooks{logger: logger, invalidator: invalidator, seen: make(map[uuid.UUID]Receipt)}
}

// HandleReceived implements procurement.ReceiptHandler.
func (h *Hooks) HandleReceived(ctx context.Context, evt procurement.ReceivedEvent) error {
	if h == nil {
		return nil
	}
	if evt.OrderID == "" {
		return errors.New("integration: order id required")
	}
	if evt.ReceivedAt.IsZero() {
		return errors.New("integration: receipt date required")
	}
	ref := receiptReference(evt.OrderID)

	h.mu.Lock()
	if _, ok := h.seen[ref]; ok {
		h.mu.Unlock()
		return nil
	}
	receipt := Receipt{Reference: ref, DocumentID: evt.DocumentID, SupplierID: evt.SupplierID, Lines: len(evt.Lines)}
	for _, line := range evt.Lines {
		receipt.Value += documents.Round2(line.Qty * line.UnitCost)
	}
	receipt.Value = documents.Round2(receipt.Value)
	h.seen[ref] = receipt
	h.mu.Unlock()

	h.logger.Info("purchase order received",
		slog.String("order", evt.DocumentID),
		slog.String("supplier", evt.SupplierID),
		slog.Int("lines", receipt.Lines),
		slog.Float64("value", receipt.Value),
		slog.String("reference", ref.String()))
	if h.invalidator != nil {
		h.invalidator.Invalidate(ctx)
	}
	return nil
}

// Receipts returns the receipts handled so far.
func (h *Hooks) Receipts() []Receipt {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Receipt, 0, len(h.seen))
	for _, r := range h.seen {
		out = append(out, r)
	}
	return out
}

func receiptReference(orderID string) uuid.UUID {
	return uuid.NewSHA1(uuid.Nil, []byte("PO:"+orderID))
}
