// Package documents holds the pieces shared by every commercial document:
// document types, line items and the totals computation.
package documents

import (
	"github.com/google/uuid"
)

// Type identifies a numbered document family.
type Type string

const (
	TypeInvoice       Type = "invoice"
	TypeQuote         Type = "quote"
	TypeDeliveryNote  Type = "delivery_note"
	TypePurchaseOrder Type = "purchase_order"
	TypeCreditNote    Type = "credit_note"
)

var prefixes = map[Type]string{
	TypeInvoice:       "FAC",
	TypeQuote:         "DEV",
	TypeDeliveryNote:  "BL",
	TypePurchaseOrder: "BC",
	TypeCreditNote:    "AV",
}

// Prefix returns the document number prefix of the type.
func (t Type) Prefix() string {
	return prefixes[t]
}

// Valid reports whether t is a known document type.
func (t Type) Valid() bool {
	_, ok := prefixes[t]
	return ok
}

// LineItem is one priced line of a document. VATRate is a percentage.
type LineItem struct {
	ID          string  `json:"id"`
	ProductID   *string `json:"productId,omitempty" validate:"omitnil,min=1"`
	Description string  `json:"description" validate:"required_without=ProductID,max=500"`
	Quantity    float64 `json:"quantity" validate:"finite,gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"finite,gte=0"`
	VATRate     float64 `json:"vatRate" validate:"finite,gte=0,lte=100"`
}

// HasProduct reports whether the line references a stocked product.
func (l LineItem) HasProduct() bool {
	return l.ProductID != nil && *l.ProductID != ""
}

// Product returns the referenced product id or "".
func (l LineItem) Product() string {
	if l.ProductID == nil {
		return ""
	}
	return *l.ProductID
}

// SubTotal is quantity times unit price.
func (l LineItem) SubTotal() float64 {
	return l.Quantity * l.UnitPrice
}

// VATAmount is the tax of the line.
func (l LineItem) VATAmount() float64 {
	return l.SubTotal() * l.VATRate / 100
}

// CopyLines returns a deep copy keeping every field, ids included.
func CopyLines(lines []LineItem) []LineItem {
	if lines == nil {
		return nil
	}
	out := make([]LineItem, len(lines))
	for i, l := range lines {
		out[i] = l
		if l.ProductID != nil {
			pid := *l.ProductID
			out[i].ProductID = &pid
		}
	}
	return out
}

// PrepareLines copies lines and assigns ids to lines missing one.
func PrepareLines(lines []LineItem) []LineItem {
	out := CopyLines(lines)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
	}
	return out
}
