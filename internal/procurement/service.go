package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/numbering"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// InventoryPort posts the stock movements of received orders.
type InventoryPort interface {
	RecordMovement(ctx context.Context, m inventory.StockMovement) (inventory.StockMovement, error)
}

// SupplierLookup resolves supplier display names.
type SupplierLookup interface {
	GetSupplier(ctx context.Context, id string) (masterdata.Supplier, error)
}

// ServiceParams wires the procurement service.
type ServiceParams struct {
	Orders    store.Collection[PurchaseOrder]
	Numbers   *numbering.Allocator
	Inventory InventoryPort
	Suppliers SupplierLookup
	Receipts  ReceiptHandler
	Pipelines shared.PipelineDeps
	Logger    *slog.Logger
	Clock     shared.Clock
}

// Service orchestrates purchase orders.
type Service struct {
	orders    store.Collection[PurchaseOrder]
	numbers   *numbering.Allocator
	inventory InventoryPort
	suppliers SupplierLookup
	receipts  ReceiptHandler
	pipelines shared.PipelineDeps
	logger    *slog.Logger
	clock     shared.Clock
}

// NewService constructs a procurement service.
func NewService(p ServiceParams) *Service {
	s := &Service{
		orders:    p.Orders,
		numbers:   p.Numbers,
		inventory: p.Inventory,
		suppliers: p.Suppliers,
		receipts:  p.Receipts,
		pipelines: p.Pipelines,
		logger:    p.Logger,
		clock:     p.Clock,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.numbers == nil {
		s.numbers = numbering.NewAllocator(nil, s.logger)
	}
	if s.pipelines.Logger == nil {
		s.pipelines.Logger = s.logger
	}
	return s
}

// ListOrders returns all purchase orders.
func (s *Service) ListOrders(ctx context.Context) ([]PurchaseOrder, error) {
	return s.orders.GetAll(ctx)
}

// GetOrder returns one purchase order.
func (s *Service) GetOrder(ctx context.Context, id string) (PurchaseOrder, error) {
	return store.Find(ctx, s.orders, id)
}

// CreateOrder allocates a BC number and stores a Draft order.
func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (PurchaseOrder, error) {
	if err := validateInput(in); err != nil {
		return PurchaseOrder{}, err
	}
	supplierName, err := s.supplierName(ctx, in.SupplierID, in.SupplierName)
	if err != nil {
		return PurchaseOrder{}, err
	}
	now := s.clock.Now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	lines := documents.PrepareLines(in.LineItems)
	totals := documents.ComputeTotals(lines)
	return numbering.Allocate(ctx, s.numbers, s.orders, documents.TypePurchaseOrder, date, func(number string) PurchaseOrder {
		return PurchaseOrder{
			ID:           uuid.NewString(),
			DocumentID:   number,
			Date:         date,
			Status:       POStatusDraft,
			SupplierID:   in.SupplierID,
			SupplierName: supplierName,
			Subject:      in.Subject,
			Reference:    in.Reference,
			Notes:        in.Notes,
			ExpectedDate: in.ExpectedDate,
			LineItems:    lines,
			SubTotal:     totals.SubTotal,
			VATAmount:    totals.VATAmount,
			TotalAmount:  totals.Amount,
			CreatedAt:    now,
		}
	})
}

// UpdateOrder rewrites a Draft order.
func (s *Service) UpdateOrder(ctx context.Context, id string, in OrderInput) (PurchaseOrder, error) {
	if err := validateInput(in); err != nil {
		return PurchaseOrder{}, err
	}
	po, err := store.Find(ctx, s.orders, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status != POStatusDraft {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase order %s is %s", shared.ErrLocked, po.DocumentID, po.Status)
	}
	supplierName, err := s.supplierName(ctx, in.SupplierID, in.SupplierName)
	if err != nil {
		return PurchaseOrder{}, err
	}
	lines := documents.PrepareLines(in.LineItems)
	totals := documents.ComputeTotals(lines)
	if !in.Date.IsZero() {
		po.Date = in.Date
	}
	po.SupplierID, po.SupplierName = in.SupplierID, supplierName
	po.Subject, po.Reference, po.Notes = in.Subject, in.Reference, in.Notes
	po.ExpectedDate = in.ExpectedDate
	po.LineItems = lines
	po.SubTotal, po.VATAmount, po.TotalAmount = totals.SubTotal, totals.VATAmount, totals.Amount
	return s.orders.Update(ctx, po)
}

// DeleteOrder removes an order that was never received.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	po, err := store.Find(ctx, s.orders, id)
	if err != nil {
		return err
	}
	if po.Status == POStatusReceived {
		return fmt.Errorf("%w: purchase order %s is received", shared.ErrLocked, po.DocumentID)
	}
	return s.orders.Delete(ctx, id)
}

// UpdateStatus moves the order through its lifecycle. Entering Received saves
// the status first, then posts one Achat movement per product line.
// Steps: save_status, stock_in:<productId>...
func (s *Service) UpdateStatus(ctx context.Context, id string, status POStatus) (PurchaseOrder, error) {
	if !status.Valid() {
		return PurchaseOrder{}, shared.Invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	po, err := store.Find(ctx, s.orders, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status == status {
		return po, nil
	}
	if err := orderTransitions.Check(po.Status, status); err != nil {
		return PurchaseOrder{}, err
	}
	if status != POStatusReceived {
		po.Status = status
		return s.orders.Update(ctx, po)
	}
	if s.inventory == nil {
		return PurchaseOrder{}, errors.New("procurement: inventory not configured")
	}

	p, err := shared.StartPipeline(ctx, s.pipelines, "purchase_order_receive", po.ID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer p.Close(ctx)

	now := s.clock.Now().UTC()
	po.Status = POStatusReceived
	po.ReceivedAt = &now
	err = p.Step(ctx, "save_status", func(ctx context.Context) (string, error) {
		saved, err := s.orders.Update(ctx, po)
		po = saved
		return saved.ID, err
	})
	if err != nil {
		return PurchaseOrder{}, shared.FirstStepCause(err)
	}
	for _, m := range inventory.LineMovements(inventory.MovementPurchase, 1, po.LineItems, po.DocumentID, now) {
		movement := m
		if err := p.Step(ctx, "stock_in:"+movement.ProductID, func(ctx context.Context) (string, error) {
			saved, err := s.inventory.RecordMovement(ctx, movement)
			return saved.ID, err
		}); err != nil {
			return po, err
		}
	}
	if s.receipts != nil {
		if err := s.receipts.HandleReceived(ctx, receivedEvent(po)); err != nil {
			s.logger.Warn("receipt event not handled", slog.String("order", po.DocumentID), slog.Any("error", err))
		}
	}
	return po, nil
}

func validateInput(in OrderInput) error {
	return shared.ValidateStruct(in)
}

func (s *Service) supplierName(ctx context.Context, supplierID, given string) (string, error) {
	if given != "" || s.suppliers == nil {
		return given, nil
	}
	sup, err := s.suppliers.GetSupplier(ctx, supplierID)
	if errors.Is(err, shared.ErrNotFound) {
		return "", shared.Invalid("supplierId", fmt.Sprintf("unknown supplier %s", supplierID))
	}
	if err != nil {
		return "", err
	}
	return sup.DisplayName(), nil
}
