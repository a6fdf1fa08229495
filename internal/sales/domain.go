package sales

import (
	"time"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// QuotesCollection is the quote collection name.
const QuotesCollection = "quotes"

// QuoteStatus enumerates quote lifecycle states.
type QuoteStatus string

const (
	QuoteDraft     QuoteStatus = "Draft"
	QuoteCreated   QuoteStatus = "Created"
	QuoteSent      QuoteStatus = "Sent"
	QuoteApproved  QuoteStatus = "Approved"
	QuoteRejected  QuoteStatus = "Rejected"
	QuoteConverted QuoteStatus = "Converted"
)

// Valid reports whether s is a known status.
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteDraft, QuoteCreated, QuoteSent, QuoteApproved, QuoteRejected, QuoteConverted:
		return true
	}
	return false
}

// Editable reports whether the quote content may still change.
func (s QuoteStatus) Editable() bool {
	return s == QuoteDraft || s == QuoteCreated
}

// quoteTransitions lists the manual moves. Approved -> Converted happens only
// through ConvertToInvoice.
var quoteTransitions = shared.Transitions[QuoteStatus]{
	QuoteDraft:    {QuoteCreated},
	QuoteCreated:  {QuoteSent},
	QuoteSent:     {QuoteApproved, QuoteRejected},
	QuoteApproved: {QuoteConverted},
}

// Quote is a priced offer sent to a client.
type Quote struct {
	ID         string               `json:"id"`
	DocumentID string               `json:"documentId"`
	Date       time.Time            `json:"date"`
	ValidUntil *time.Time           `json:"validUntil,omitempty"`
	Status     QuoteStatus          `json:"status"`
	ClientID   string               `json:"clientId"`
	ClientName string               `json:"clientName"`
	Subject    string               `json:"subject"`
	Reference  string               `json:"reference,omitempty"`
	Notes      string               `json:"notes,omitempty"`
	LineItems  []documents.LineItem `json:"lineItems"`
	SubTotal   float64              `json:"subTotal"`
	VATAmount  float64              `json:"vatAmount"`
	Amount     float64              `json:"amount"`
	CreatedAt  time.Time            `json:"createdAt"`
}

func (q Quote) GetID() string         { return q.ID }
func (q Quote) GetDocumentID() string { return q.DocumentID }
func (q Quote) NaturalKey() string    { return q.DocumentID }

// QuoteInput carries the editable quote fields.
type QuoteInput struct {
	Date       time.Time            `json:"date"`
	ValidUntil *time.Time           `json:"validUntil"`
	ClientID   string               `json:"clientId" validate:"required"`
	ClientName string               `json:"clientName" validate:"max=200"`
	Subject    string               `json:"subject" validate:"max=300"`
	Reference  string               `json:"reference" validate:"max=100"`
	Notes      string               `json:"notes"`
	LineItems  []documents.LineItem `json:"lineItems" validate:"required,min=1,dive"`
	Draft      bool                 `json:"draft"`
}

// StatusInput carries a requested status change.
type StatusInput struct {
	Status QuoteStatus `json:"status" validate:"required"`
}
