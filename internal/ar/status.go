package ar

import (
	"fmt"
	"sort"
	"time"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// PaidEpsilon is the shortfall under which an invoice counts as paid.
const PaidEpsilon = 0.1

// DeriveStatus computes the invoice status from the amount paid. A drafted
// invoice without payments stays Draft.
func DeriveStatus(amount, amountPaid float64, drafted bool) InvoiceStatus {
	switch {
	case drafted && amountPaid <= 0:
		return StatusDraft
	case amountPaid >= amount-PaidEpsilon:
		return StatusPaid
	case amountPaid > 0:
		return StatusPartial
	default:
		return StatusPending
	}
}

var invoiceTransitions = shared.Transitions[InvoiceStatus]{
	StatusDraft: {StatusPending},
}

var creditNoteTransitions = shared.Transitions[CreditNoteStatus]{
	CreditDraft:     {CreditValidated},
	CreditValidated: {CreditRefunded},
}

// applyPayments recomputes amountPaid, status and paymentDate of inv from its
// payments. completedAt, when set, is the date of the payment just recorded.
func applyPayments(inv Invoice, payments []Payment, completedAt *time.Time) Invoice {
	var paid float64
	for _, p := range payments {
		paid += p.Amount
	}
	next := inv
	next.AmountPaid = documents.Round2(paid)
	next.Status = DeriveStatus(inv.Amount, next.AmountPaid, inv.Status == StatusDraft)
	switch {
	case next.Status != StatusPaid:
		next.PaymentDate = nil
	case inv.Status == StatusPaid && inv.PaymentDate != nil:
		// paymentDate stays with the payment that first completed the invoice.
	case completedAt != nil:
		d := *completedAt
		next.PaymentDate = &d
	default:
		next.PaymentDate = completionDate(inv.Amount, payments)
	}
	return next
}

// completionDate returns the date at which cumulative payments, in date
// order, first reached the paid threshold.
func completionDate(amount float64, payments []Payment) *time.Time {
	ordered := make([]Payment, len(payments))
	copy(ordered, payments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })
	var cum float64
	for _, p := range ordered {
		cum += p.Amount
		if cum >= amount-PaidEpsilon {
			d := p.Date
			return &d
		}
	}
	return nil
}

func sameDerived(a, b Invoice) bool {
	if a.AmountPaid != b.AmountPaid || a.Status != b.Status {
		return false
	}
	switch {
	case a.PaymentDate == nil && b.PaymentDate == nil:
		return true
	case a.PaymentDate == nil || b.PaymentDate == nil:
		return false
	default:
		return a.PaymentDate.Equal(*b.PaymentDate)
	}
}

func checkInvoiceStatusEdit(inv Invoice, to InvoiceStatus, hasPayments bool) error {
	if !invoiceTransitions.Allows(inv.Status, to) || hasPayments {
		return fmt.Errorf("%w: %s -> %s", shared.ErrStatusDerived, inv.Status, to)
	}
	return nil
}
