package inventory

import (
	"errors"
	"time"
)

// MovementsCollection is the collection name of stock movements.
const MovementsCollection = "stockMovements"

// MovementType enumerates the producers of stock movements.
type MovementType string

const (
	// MovementInitial is the opening stock of a new product.
	MovementInitial MovementType = "Initial"
	// MovementSale is stock leaving with a delivery note.
	MovementSale MovementType = "Vente"
	// MovementPurchase is stock received with a purchase order.
	MovementPurchase MovementType = "Achat"
	// MovementAdjustment is a manual correction to a counted quantity.
	MovementAdjustment MovementType = "Ajustement"
	// MovementReturn is stock coming back with a validated credit note or a
	// deleted delivery note.
	MovementReturn MovementType = "Retour"
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	switch t {
	case MovementInitial, MovementSale, MovementPurchase, MovementAdjustment, MovementReturn:
		return true
	}
	return false
}

// StockMovement is one signed, append-only ledger entry.
type StockMovement struct {
	ID        string       `json:"id"`
	ProductID string       `json:"productId"`
	Quantity  float64      `json:"quantity"`
	Type      MovementType `json:"type"`
	Date      time.Time    `json:"date"`
	Reference string       `json:"reference,omitempty"`
	Note      string       `json:"note,omitempty"`
}

func (m StockMovement) GetID() string { return m.ID }

// StockCardEntry describes one movement with the running balance after it.
type StockCardEntry struct {
	MovementID string       `json:"movementId"`
	Type       MovementType `json:"type"`
	Date       time.Time    `json:"date"`
	Reference  string       `json:"reference,omitempty"`
	QtyIn      float64      `json:"qtyIn"`
	QtyOut     float64      `json:"qtyOut"`
	Balance    float64      `json:"balance"`
	Note       string       `json:"note,omitempty"`
}

// Correction reports a cached stock quantity rewritten to the ledger sum.
type Correction struct {
	ProductID   string  `json:"productId"`
	ProductCode string  `json:"productCode"`
	Cached      float64 `json:"cached"`
	Ledger      float64 `json:"ledger"`
	Delta       float64 `json:"delta"`
}

// AdjustmentInput describes a manual stock count.
type AdjustmentInput struct {
	ProductID    string  `json:"productId" validate:"required"`
	RealQuantity float64 `json:"realQuantity"`
	Note         string  `json:"note"`
}

// Epsilon is the tolerance below which stock differences are ignored.
const Epsilon = 0.0001

// ErrInvalidQuantity indicates invalid qty.
var ErrInvalidQuantity = errors.New("inventory: quantity must be non zero")

// ErrInvalidMovementType indicates an unknown movement type.
var ErrInvalidMovementType = errors.New("inventory: unknown movement type")
