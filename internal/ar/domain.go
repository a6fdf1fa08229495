package ar

import (
	"time"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
)

// Collection names.
const (
	InvoicesCollection    = "invoices"
	PaymentsCollection    = "payments"
	CreditNotesCollection = "creditNotes"
)

// InvoiceStatus enumerates invoice statuses. Past Draft the status is derived from payments.
type InvoiceStatus string

const (
	StatusDraft   InvoiceStatus = "Draft"
	StatusPending InvoiceStatus = "Pending"
	StatusPartial InvoiceStatus = "Partial"
	StatusPaid    InvoiceStatus = "Paid"
)

// Invoice is a customer invoice.
type Invoice struct {
	ID             string               `json:"id"`
	DocumentID     string               `json:"documentId"`
	Date           time.Time            `json:"date"`
	DueDate        time.Time            `json:"dueDate"`
	PaymentDate    *time.Time           `json:"paymentDate,omitempty"`
	Status         InvoiceStatus        `json:"status"`
	ClientID       string               `json:"clientId"`
	ClientName     string               `json:"clientName"`
	Subject        string               `json:"subject,omitempty"`
	Reference      string               `json:"reference,omitempty"`
	Notes          string               `json:"notes,omitempty"`
	LineItems      []documents.LineItem `json:"lineItems"`
	SubTotal       float64              `json:"subTotal"`
	VATAmount      float64              `json:"vatAmount"`
	Amount         float64              `json:"amount"`
	AmountPaid     float64              `json:"amountPaid"`
	QuoteID        string               `json:"quoteId,omitempty"`
	DeliveryNoteID string               `json:"deliveryNoteId,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
}

func (i Invoice) GetID() string         { return i.ID }
func (i Invoice) GetDocumentID() string { return i.DocumentID }
func (i Invoice) NaturalKey() string    { return i.DocumentID }

// Balance is the unpaid part of the invoice.
func (i Invoice) Balance() float64 {
	return i.Amount - i.AmountPaid
}

// PaymentMethod enumerates accepted payment methods.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodCheck    PaymentMethod = "check"
	MethodTransfer PaymentMethod = "transfer"
	MethodCard     PaymentMethod = "card"
	MethodOther    PaymentMethod = "other"
)

// Payment is an amount received against one invoice. Payments are added or
// deleted, never edited.
type Payment struct {
	ID        string        `json:"id"`
	InvoiceID string        `json:"invoiceId"`
	Amount    float64       `json:"amount"`
	Date      time.Time     `json:"date"`
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (p Payment) GetID() string { return p.ID }

// PaymentInput describes a payment to record.
type PaymentInput struct {
	Amount    float64    `json:"amount" validate:"gt=0"`
	Date      *time.Time `json:"date"`
	Method    string     `json:"method" validate:"omitempty,oneof=cash check transfer card other"`
	Reference string     `json:"reference" validate:"max=100"`
}

// InvoiceInput describes an invoice to create or edit.
type InvoiceInput struct {
	Date           time.Time            `json:"date"`
	DueDate        *time.Time           `json:"dueDate"`
	ClientID       string               `json:"clientId" validate:"required"`
	ClientName     string               `json:"clientName" validate:"max=200"`
	Subject        string               `json:"subject" validate:"max=300"`
	Reference      string               `json:"reference" validate:"max=100"`
	Notes          string               `json:"notes"`
	LineItems      []documents.LineItem `json:"lineItems" validate:"required,min=1,dive"`
	Draft          bool                 `json:"draft"`
	InitialPayment *PaymentInput        `json:"initialPayment"`
}

// CreditNoteStatus enumerates credit note statuses.
type CreditNoteStatus string

const (
	CreditDraft     CreditNoteStatus = "Draft"
	CreditValidated CreditNoteStatus = "Validated"
	CreditRefunded  CreditNoteStatus = "Refunded"
)

// CreditNote cancels all or part of an invoice. InvoiceID holds the source
// invoice's document number.
type CreditNote struct {
	ID          string               `json:"id"`
	DocumentID  string               `json:"documentId"`
	Date        time.Time            `json:"date"`
	Status      CreditNoteStatus     `json:"status"`
	InvoiceID   string               `json:"invoiceId"`
	ClientID    string               `json:"clientId"`
	ClientName  string               `json:"clientName"`
	Subject     string               `json:"subject"`
	Reason      string               `json:"reason,omitempty"`
	LineItems   []documents.LineItem `json:"lineItems"`
	SubTotal    float64              `json:"subTotal"`
	VATAmount   float64              `json:"vatAmount"`
	Amount      float64              `json:"amount"`
	Restock     bool                 `json:"restock"`
	ValidatedAt *time.Time           `json:"validatedAt,omitempty"`
	RefundedAt  *time.Time           `json:"refundedAt,omitempty"`
	CreatedAt   time.Time            `json:"createdAt"`
}

func (c CreditNote) GetID() string         { return c.ID }
func (c CreditNote) GetDocumentID() string { return c.DocumentID }
func (c CreditNote) NaturalKey() string    { return c.DocumentID }

// CreditNoteInput carries the editable credit note fields. Nil lines keep the
// current ones.
type CreditNoteInput struct {
	Reason    string               `json:"reason" validate:"max=500"`
	Restock   bool                 `json:"restock"`
	LineItems []documents.LineItem `json:"lineItems" validate:"omitnil,min=1,dive"`
}
