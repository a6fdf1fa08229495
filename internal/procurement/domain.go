package procurement

import (
	"time"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// OrdersCollection is the purchase order collection name.
const OrdersCollection = "purchaseOrders"

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusDraft     POStatus = "Draft"
	POStatusSent      POStatus = "Sent"
	POStatusReceived  POStatus = "Received"
	POStatusCancelled POStatus = "Cancelled"
)

// Valid reports whether s is a known status.
func (s POStatus) Valid() bool {
	switch s {
	case POStatusDraft, POStatusSent, POStatusReceived, POStatusCancelled:
		return true
	}
	return false
}

var orderTransitions = shared.Transitions[POStatus]{
	POStatusDraft: {POStatusSent, POStatusCancelled},
	POStatusSent:  {POStatusReceived, POStatusCancelled},
}

// PurchaseOrder is an order placed with a supplier. Receiving it brings the
// ordered products into stock.
type PurchaseOrder struct {
	ID           string               `json:"id"`
	DocumentID   string               `json:"documentId"`
	Date         time.Time            `json:"date"`
	Status       POStatus             `json:"status"`
	SupplierID   string               `json:"supplierId"`
	SupplierName string               `json:"supplierName"`
	Subject      string               `json:"subject,omitempty"`
	Reference    string               `json:"reference,omitempty"`
	Notes        string               `json:"notes,omitempty"`
	ExpectedDate *time.Time           `json:"expectedDate,omitempty"`
	ReceivedAt   *time.Time           `json:"receivedAt,omitempty"`
	LineItems    []documents.LineItem `json:"lineItems"`
	SubTotal     float64              `json:"subTotal"`
	VATAmount    float64              `json:"vatAmount"`
	TotalAmount  float64              `json:"totalAmount"`
	CreatedAt    time.Time            `json:"createdAt"`
}

func (o PurchaseOrder) GetID() string         { return o.ID }
func (o PurchaseOrder) GetDocumentID() string { return o.DocumentID }
func (o PurchaseOrder) NaturalKey() string    { return o.DocumentID }

// OrderInput carries the editable purchase order fields.
type OrderInput struct {
	Date         time.Time            `json:"date"`
	SupplierID   string               `json:"supplierId" validate:"required"`
	SupplierName string               `json:"supplierName" validate:"max=200"`
	Subject      string               `json:"subject" validate:"max=300"`
	Reference    string               `json:"reference" validate:"max=100"`
	Notes        string               `json:"notes"`
	ExpectedDate *time.Time           `json:"expectedDate"`
	LineItems    []documents.LineItem `json:"lineItems" validate:"required,min=1,dive"`
}

// StatusInput carries a requested status change.
type StatusInput struct {
	Status POStatus `json:"status" validate:"required"`
}
