package delivery

import (
	"time"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
)

// NotesCollection is the delivery note collection name.
const NotesCollection = "deliveryNotes"

// NoteStatus represents the lifecycle of a delivery note.
type NoteStatus string

const (
	StatusDelivered NoteStatus = "Delivered" // goods left stock
	StatusInvoiced  NoteStatus = "Invoiced"  // converted, immutable
)

// DeliveryNote records goods handed to a client. Creating one takes the goods
// out of stock; converting it issues the invoice.
type DeliveryNote struct {
	ID            string               `json:"id"`
	DocumentID    string               `json:"documentId"`
	Date          time.Time            `json:"date"`
	Status        NoteStatus           `json:"status"`
	ClientID      string               `json:"clientId"`
	ClientName    string               `json:"clientName"`
	Subject       string               `json:"subject,omitempty"`
	Reference     string               `json:"reference,omitempty"`
	Address       string               `json:"address,omitempty"`
	Notes         string               `json:"notes,omitempty"`
	LineItems     []documents.LineItem `json:"lineItems"`
	SubTotal      float64              `json:"subTotal"`
	VATAmount     float64              `json:"vatAmount"`
	TotalAmount   float64              `json:"totalAmount"`
	PaymentAmount float64              `json:"paymentAmount"`
	PaymentMethod string               `json:"paymentMethod,omitempty"`
	InvoiceID     *string              `json:"invoiceId"`
	CreatedAt     time.Time            `json:"createdAt"`
}

func (n DeliveryNote) GetID() string         { return n.ID }
func (n DeliveryNote) GetDocumentID() string { return n.DocumentID }
func (n DeliveryNote) NaturalKey() string    { return n.DocumentID }

// Invoiced reports whether the note was already converted.
func (n DeliveryNote) Invoiced() bool { return n.InvoiceID != nil }

// totals returns the stored totals, or recomputes them when the note carries none.
func (n DeliveryNote) totals() documents.Totals {
	if n.TotalAmount != 0 || len(n.LineItems) == 0 {
		return documents.Totals{SubTotal: n.SubTotal, VATAmount: n.VATAmount, Amount: n.TotalAmount}
	}
	return documents.ComputeTotals(n.LineItems)
}

// NoteInput carries the fields of a new delivery note.
type NoteInput struct {
	Date          time.Time            `json:"date"`
	ClientID      string               `json:"clientId" validate:"required"`
	ClientName    string               `json:"clientName" validate:"max=200"`
	Subject       string               `json:"subject" validate:"max=300"`
	Reference     string               `json:"reference" validate:"max=100"`
	Address       string               `json:"address" validate:"max=500"`
	Notes         string               `json:"notes"`
	LineItems     []documents.LineItem `json:"lineItems" validate:"required,min=1,dive"`
	PaymentAmount float64              `json:"paymentAmount" validate:"gte=0"`
	PaymentMethod string               `json:"paymentMethod" validate:"omitempty,oneof=cash check transfer card other"`
}

// NoteUpdate carries the fields editable after delivery. Lines are fixed once
// the stock movements are posted.
type NoteUpdate struct {
	Date          time.Time `json:"date"`
	ClientName    string    `json:"clientName" validate:"max=200"`
	Subject       string    `json:"subject" validate:"max=300"`
	Reference     string    `json:"reference" validate:"max=100"`
	Address       string    `json:"address" validate:"max=500"`
	Notes         string    `json:"notes"`
	PaymentAmount float64   `json:"paymentAmount" validate:"gte=0"`
	PaymentMethod string    `json:"paymentMethod" validate:"omitempty,oneof=cash check transfer card other"`
}
