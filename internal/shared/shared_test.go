package shared

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type status string

func TestTransitions(t *testing.T) {
	graph := Transitions[status]{
		"draft":   {"sent"},
		"sent":    {"paid", "draft"},
		"paid":    nil,
		"unknown": {},
	}
	assert.True(t, graph.Allows("draft", "sent"))
	assert.False(t, graph.Allows("draft", "paid"))
	require.NoError(t, graph.Check("sent", "paid"))
	err := graph.Check("paid", "draft")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Contains(t, err.Error(), "paid -> draft")
	assert.True(t, graph.Terminal("paid"))
	assert.False(t, graph.Terminal("sent"))
}

func TestPersistenceWrapping(t *testing.T) {
	assert.NoError(t, Persistence("add", "invoices", nil))

	err := Persistence("add", "invoices", errors.New("connection reset"))
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, "store: add invoices: connection reset", err.Error())
	assert.Same(t, err, Persistence("update", "invoices", err))

	nf := &NotFoundError{Collection: "invoices", ID: "x"}
	require.ErrorIs(t, Persistence("update", "invoices", nf), ErrNotFound)
	assert.False(t, errors.Is(Persistence("update", "invoices", nf), ErrPersistence))
}

func TestValidateStructUsesJSONNames(t *testing.T) {
	type input struct {
		ClientID string  `json:"clientId" validate:"required"`
		Amount   float64 `json:"amount" validate:"gte=0"`
	}
	err := ValidateStruct(input{Amount: 1})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "input.clientId", ve.Field)
	assert.Equal(t, "failed required", ve.Message)

	err = ValidateStruct(input{ClientID: "c", Amount: -1})
	require.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "gte=0")

	require.NoError(t, ValidateStruct(input{ClientID: "c"}))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	page, meta := Paginate(items, 2, 2)
	assert.Equal(t, []int{3, 4}, page)
	assert.Equal(t, Pagination{Page: 2, PerPage: 2, Total: 5, TotalPages: 3}, meta)

	page, _ = Paginate(items, 4, 2)
	assert.Empty(t, page)

	_, meta = Paginate(items, 0, 0)
	assert.Equal(t, 1, meta.Page)
	assert.Equal(t, 50, meta.PerPage)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "pipeline:quote_to_invoice:q-1", PipelineKey("quote_to_invoice", "q-1"))
	assert.Equal(t, "numbering:reserved:FAC/2024/00001", DocumentNumberKey("FAC/2024/00001"))
}
