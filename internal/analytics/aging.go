package analytics

import (
	"math"
	"time"

	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
)

// AgingBucket summarises an amount inside a time bucket.
type AgingBucket struct {
	Bucket string  `json:"bucket"`
	Amount float64 `json:"amount"`
	Count  int     `json:"count"`
}

// Aging bucket labels, ordered.
var agingBuckets = []string{"current", "1-30", "31-60", "61-90", "90+"}

// counts reports whether the invoice is an issued, open receivable.
func counts(inv ar.Invoice) bool {
	return inv.Status != ar.StatusPaid && inv.Status != ar.StatusDraft
}

// unpaid reports whether the invoice adds to the outstanding total. Drafts count.
func unpaid(inv ar.Invoice) bool {
	return inv.Status != ar.StatusPaid
}

// creditedByInvoice sums Validated credit notes per source invoice documentId.
func creditedByInvoice(notes []ar.CreditNote) map[string]float64 {
	out := map[string]float64{}
	for _, n := range notes {
		if n.Status == ar.CreditValidated {
			out[n.InvoiceID] += n.Amount
		}
	}
	return out
}

func openBalance(inv ar.Invoice, credited map[string]float64) float64 {
	return math.Max(0, inv.Amount-inv.AmountPaid-credited[inv.DocumentID])
}

// Outstanding is the unpaid total of every non-Paid invoice, net of the
// Validated credit notes issued against it. Each invoice counts at least zero.
func Outstanding(invoices []ar.Invoice, notes []ar.CreditNote) float64 {
	credited := creditedByInvoice(notes)
	var total float64
	for _, inv := range invoices {
		if unpaid(inv) {
			total += openBalance(inv, credited)
		}
	}
	return documents.Round2(total)
}

// LowStock returns the products at or below their alert threshold.
func LowStock(products []masterdata.Product) []masterdata.Product {
	out := make([]masterdata.Product, 0)
	for _, p := range products {
		if p.LowStock() {
			out = append(out, p)
		}
	}
	return out
}

// Aging spreads the open balances over buckets of days past due at asOf.
func Aging(invoices []ar.Invoice, notes []ar.CreditNote, asOf time.Time) []AgingBucket {
	credited := creditedByInvoice(notes)
	buckets := make([]AgingBucket, len(agingBuckets))
	for i, label := range agingBuckets {
		buckets[i].Bucket = label
	}
	for _, inv := range invoices {
		if !counts(inv) {
			continue
		}
		balance := openBalance(inv, credited)
		if balance == 0 {
			continue
		}
		b := &buckets[bucketIndex(daysPastDue(inv.DueDate, asOf))]
		b.Amount = documents.Round2(b.Amount + balance)
		b.Count++
	}
	return buckets
}

func daysPastDue(due, asOf time.Time) int {
	if due.IsZero() {
		return 0
	}
	d := asOf.Truncate(24*time.Hour).Sub(due.Truncate(24*time.Hour)) / (24 * time.Hour)
	return int(d)
}

func bucketIndex(days int) int {
	switch {
	case days <= 0:
		return 0
	case days <= 30:
		return 1
	case days <= 60:
		return 2
	case days <= 90:
		return 3
	default:
		return 4
	}
}
