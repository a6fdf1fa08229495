package documents

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

func TestComputeTotals(t *testing.T) {
	lines := []LineItem{
		{Description: "Widget", Quantity: 2, UnitPrice: 100, VATRate: 20},
		{Description: "Service", Quantity: 1, UnitPrice: 49.99, VATRate: 10},
	}
	totals := ComputeTotals(lines)
	require.InDelta(t, 249.99, totals.SubTotal, 0.0001)
	require.InDelta(t, 45.00, totals.VATAmount, 0.0001)
	require.Equal(t, totals.SubTotal+totals.VATAmount, totals.Amount)
}

func TestComputeTotalsEmpty(t *testing.T) {
	require.Equal(t, Totals{}, ComputeTotals(nil))
}

func TestCopyLinesIsDeep(t *testing.T) {
	pid := "p-1"
	lines := []LineItem{{ID: "l-1", ProductID: &pid, Description: "x", Quantity: 1, UnitPrice: 1}}
	copied := CopyLines(lines)
	require.Equal(t, lines, copied)
	*copied[0].ProductID = "p-2"
	require.Equal(t, "p-1", *lines[0].ProductID)
}

func TestPrepareLinesAssignsMissingIDs(t *testing.T) {
	lines := PrepareLines([]LineItem{{ID: "keep", Description: "a", Quantity: 1}, {Description: "b", Quantity: 1}})
	require.Equal(t, "keep", lines[0].ID)
	require.NotEmpty(t, lines[1].ID)
}

type linesInput struct {
	LineItems []LineItem `json:"lineItems" validate:"required,min=1,dive"`
}

func TestLineValidation(t *testing.T) {
	pid, empty := "p-1", ""
	cases := []struct {
		name  string
		lines []LineItem
		field string
	}{
		{name: "no lines", lines: nil, field: "linesInput.lineItems"},
		{name: "empty lines", lines: []LineItem{}, field: "linesInput.lineItems"},
		{name: "zero quantity", lines: []LineItem{{Description: "a"}}, field: "linesInput.lineItems[0].quantity"},
		{name: "infinite quantity", lines: []LineItem{{Description: "a", Quantity: math.Inf(1)}}, field: "linesInput.lineItems[0].quantity"},
		{name: "negative price", lines: []LineItem{{Description: "a", Quantity: 1, UnitPrice: -1}}, field: "linesInput.lineItems[0].unitPrice"},
		{name: "infinite price", lines: []LineItem{{Description: "a", Quantity: 1, UnitPrice: math.Inf(1)}}, field: "linesInput.lineItems[0].unitPrice"},
		{name: "nan price", lines: []LineItem{{Description: "a", Quantity: 1, UnitPrice: math.NaN()}}, field: "linesInput.lineItems[0].unitPrice"},
		{name: "vat above 100", lines: []LineItem{{Description: "a", Quantity: 1, VATRate: 120}}, field: "linesInput.lineItems[0].vatRate"},
		{name: "no description nor product", lines: []LineItem{{Quantity: 1}}, field: "linesInput.lineItems[0].description"},
		{name: "empty product id", lines: []LineItem{{ProductID: &empty, Description: "a", Quantity: 1}}, field: "linesInput.lineItems[0].productId"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := shared.ValidateStruct(linesInput{LineItems: tc.lines})
			require.ErrorIs(t, err, shared.ErrValidation)
			var vErr *shared.ValidationError
			require.ErrorAs(t, err, &vErr)
			require.Equal(t, tc.field, vErr.Field)
		})
	}

	require.NoError(t, shared.ValidateStruct(linesInput{LineItems: []LineItem{
		{Description: "a", Quantity: 1, UnitPrice: 10, VATRate: 20},
		{ProductID: &pid, Quantity: 2},
	}}))
}

func TestTypePrefix(t *testing.T) {
	require.Equal(t, "FAC", TypeInvoice.Prefix())
	require.Equal(t, "DEV", TypeQuote.Prefix())
	require.Equal(t, "BL", TypeDeliveryNote.Prefix())
	require.Equal(t, "BC", TypePurchaseOrder.Prefix())
	require.Equal(t, "AV", TypeCreditNote.Prefix())
	require.False(t, Type("other").Valid())
}
