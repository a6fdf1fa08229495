package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// ProductStore is the product collection with atomic stock increments.
type ProductStore interface {
	store.Collection[masterdata.Product]
	store.Incrementer[masterdata.Product]
}

// LedgerParams wires the stock ledger.
type LedgerParams struct {
	Movements store.Collection[StockMovement]
	Products  ProductStore
	Observer  Observer
	Logger    *slog.Logger
	Clock     shared.Clock
}

// Ledger records stock movements and keeps each product's cached quantity in
// step with the movement sum.
type Ledger struct {
	movements store.Collection[StockMovement]
	products  ProductStore
	observer  Observer
	logger    *slog.Logger
	clock     shared.Clock
}

// NewLedger builds Ledger.
func NewLedger(p LedgerParams) *Ledger {
	l := &Ledger{movements: p.Movements, products: p.Products, observer: p.Observer, logger: p.Logger, clock: p.Clock}
	if l.observer == nil {
		l.observer = noopObserver{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// RecordMovement appends the movement then applies its quantity to the
// product's stock cache with an atomic increment.
func (l *Ledger) RecordMovement(ctx context.Context, m StockMovement) (StockMovement, error) {
	if m.ProductID == "" {
		return StockMovement{}, shared.Invalid("productId", "required")
	}
	if math.Abs(m.Quantity) < 1e-9 {
		return StockMovement{}, fmt.Errorf("%w: %w", shared.Invalid("quantity", "must be non zero"), ErrInvalidQuantity)
	}
	if !m.Type.Valid() {
		return StockMovement{}, fmt.Errorf("%w: %w", shared.Invalid("type", string(m.Type)), ErrInvalidMovementType)
	}
	if _, err := store.Find[masterdata.Product](ctx, l.products, m.ProductID); err != nil {
		return StockMovement{}, err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Date.IsZero() {
		m.Date = l.clock.Now().UTC()
	}
	saved, err := l.movements.Add(ctx, m)
	if err != nil {
		return StockMovement{}, err
	}
	if _, err := l.products.IncrementNumber(ctx, m.ProductID, masterdata.StockField, m.Quantity); err != nil {
		l.logger.Error("stock cache not updated after movement",
			slog.String("movement", saved.ID), slog.String("product", m.ProductID), slog.Any("error", err))
		return saved, fmt.Errorf("inventory: movement %s recorded, stock cache stale until reconciled: %w", saved.ID, err)
	}
	return saved, nil
}

// PostInitial records the opening stock of a product.
func (l *Ledger) PostInitial(ctx context.Context, productID string, quantity float64, at time.Time) error {
	_, err := l.RecordMovement(ctx, StockMovement{
		ProductID: productID,
		Quantity:  quantity,
		Type:      MovementInitial,
		Date:      at,
		Reference: "Stock initial",
	})
	return err
}

// Adjust records the difference between a counted quantity and the cache. It
// returns nil when the difference is below Epsilon.
func (l *Ledger) Adjust(ctx context.Context, in AdjustmentInput) (*StockMovement, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	if in.RealQuantity < 0 {
		return nil, shared.Invalid("realQuantity", "must not be negative")
	}
	product, err := store.Find[masterdata.Product](ctx, l.products, in.ProductID)
	if err != nil {
		return nil, err
	}
	delta := in.RealQuantity - product.StockQuantity
	if math.Abs(delta) < Epsilon {
		return nil, nil
	}
	note := in.Note
	if note == "" {
		note = fmt.Sprintf("Inventaire: %g -> %g", product.StockQuantity, in.RealQuantity)
	}
	saved, err := l.RecordMovement(ctx, StockMovement{
		ProductID: in.ProductID,
		Quantity:  delta,
		Type:      MovementAdjustment,
		Reference: "Ajustement manuel",
		Note:      note,
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// Movements lists every recorded movement.
func (l *Ledger) Movements(ctx context.Context) ([]StockMovement, error) {
	return l.movements.GetAll(ctx)
}

// StockCard returns the product's movement history with running balances.
func (l *Ledger) StockCard(ctx context.Context, productID string) ([]StockCardEntry, error) {
	if _, err := store.Find[masterdata.Product](ctx, l.products, productID); err != nil {
		return nil, err
	}
	movements, err := l.movements.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return Card(movements, productID), nil
}

// Reconcile rewrites the product's cached stock to the ledger sum when they
// differ by more than Epsilon.
func (l *Ledger) Reconcile(ctx context.Context, productID string) (*Correction, error) {
	movements, err := l.movements.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	product, err := store.Find[masterdata.Product](ctx, l.products, productID)
	if err != nil {
		return nil, err
	}
	return l.reconcile(ctx, product, movements)
}

// ReconcileAll reconciles every product and reports the corrections made.
func (l *Ledger) ReconcileAll(ctx context.Context) ([]Correction, error) {
	movements, err := l.movements.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	products, err := l.products.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var corrections []Correction
	for _, p := range products {
		c, err := l.reconcile(ctx, p, movements)
		if err != nil {
			return corrections, err
		}
		if c != nil {
			corrections = append(corrections, *c)
		}
	}
	return corrections, nil
}

func (l *Ledger) reconcile(ctx context.Context, product masterdata.Product, movements []StockMovement) (*Correction, error) {
	ledger := Replay(movements, product.ID)
	delta := ledger - product.StockQuantity
	if math.Abs(delta) <= Epsilon {
		return nil, nil
	}
	if _, err := l.products.IncrementNumber(ctx, product.ID, masterdata.StockField, delta); err != nil {
		return nil, err
	}
	l.observer.StockReconciled(product.ID, delta)
	l.logger.Warn("stock cache corrected",
		slog.String("product", product.ID),
		slog.Float64("cached", product.StockQuantity),
		slog.Float64("ledger", ledger))
	return &Correction{
		ProductID:   product.ID,
		ProductCode: product.ProductCode,
		Cached:      product.StockQuantity,
		Ledger:      ledger,
		Delta:       delta,
	}, nil
}

// LineMovements builds one movement per line that references a product,
// with quantity sign*line.Quantity.
func LineMovements(t MovementType, sign float64, lines []documents.LineItem, reference string, at time.Time) []StockMovement {
	var out []StockMovement
	for _, line := range lines {
		if !line.HasProduct() || line.Quantity == 0 {
			continue
		}
		out = append(out, StockMovement{
			ID:        uuid.NewString(),
			ProductID: line.Product(),
			Quantity:  sign * line.Quantity,
			Type:      t,
			Date:      at,
			Reference: reference,
		})
	}
	return out
}
