package documents

import "math"

// Totals are the derived monetary fields of a document.
type Totals struct {
	SubTotal  float64 `json:"subTotal"`
	VATAmount float64 `json:"vatAmount"`
	Amount    float64 `json:"amount"`
}

// ComputeTotals derives subTotal, vatAmount and amount from the lines.
// Amount is always exactly SubTotal + VATAmount.
func ComputeTotals(lines []LineItem) Totals {
	var sub, vat float64
	for _, l := range lines {
		sub += l.SubTotal()
		vat += l.VATAmount()
	}
	t := Totals{SubTotal: Round2(sub), VATAmount: Round2(vat)}
	t.Amount = t.SubTotal + t.VATAmount
	return t
}

// Round2 rounds half away from zero to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
