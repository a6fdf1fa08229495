package inventory

import (
	"math"
	"sort"
)

// Replay sums the movements of one product.
func Replay(movements []StockMovement, productID string) float64 {
	var total float64
	for _, m := range movements {
		if m.ProductID == productID {
			total += m.Quantity
		}
	}
	return total
}

// Card orders the product's movements by date and computes running balances.
func Card(movements []StockMovement, productID string) []StockCardEntry {
	var own []StockMovement
	for _, m := range movements {
		if m.ProductID == productID {
			own = append(own, m)
		}
	}
	sort.SliceStable(own, func(i, j int) bool { return own[i].Date.Before(own[j].Date) })
	entries := make([]StockCardEntry, 0, len(own))
	var balance float64
	for _, m := range own {
		balance += m.Quantity
		entries = append(entries, StockCardEntry{
			MovementID: m.ID,
			Type:       m.Type,
			Date:       m.Date,
			Reference:  m.Reference,
			QtyIn:      math.Max(m.Quantity, 0),
			QtyOut:     math.Max(-m.Quantity, 0),
			Balance:    balance,
			Note:       m.Note,
		})
	}
	return entries
}
