package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
	"github.com/odyssey-erp/odyssey-commerce/internal/store/storetest"
)

var testNow = time.Date(2024, 9, 2, 14, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	ar        *ar.Service
	notes     *storetest.Faulty[DeliveryNote]
	payments  *storetest.Faulty[ar.Payment]
	movements *storetest.Faulty[inventory.StockMovement]
	products  *store.MemoryCollection[masterdata.Product]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	f := &fixture{
		notes:     storetest.Wrap[DeliveryNote](store.NewMemory[DeliveryNote](NotesCollection)),
		payments:  storetest.Wrap[ar.Payment](store.NewMemory[ar.Payment](ar.PaymentsCollection)),
		movements: storetest.Wrap[inventory.StockMovement](store.NewMemory[inventory.StockMovement](inventory.MovementsCollection)),
		products:  store.NewMemory[masterdata.Product](masterdata.ProductsCollection),
	}
	ctx := context.Background()
	for _, p := range []masterdata.Product{
		{ID: "p-1", ProductCode: "P001", Name: "Desk", StockQuantity: 10},
		{ID: "p-2", ProductCode: "P002", Name: "Lamp", StockQuantity: 4},
	} {
		_, err := f.products.Add(ctx, p)
		require.NoError(t, err)
	}
	deps := shared.PipelineDeps{Tracker: shared.NewMemoryProgress()}
	ledger := inventory.NewLedger(inventory.LedgerParams{Movements: f.movements, Products: f.products, Clock: clock})
	f.ar = ar.NewService(ar.ServiceParams{
		Invoices:    store.NewMemory[ar.Invoice](ar.InvoicesCollection),
		Payments:    f.payments,
		CreditNotes: store.NewMemory[ar.CreditNote](ar.CreditNotesCollection),
		Pipelines:   deps,
		Clock:       clock,
	})
	f.svc = NewService(ServiceParams{
		Notes:     f.notes,
		Invoices:  f.ar,
		Stock:     ledger,
		Pipelines: deps,
		Clock:     clock,
	})
	return f
}

func noteInput(payment float64) NoteInput {
	desk, lamp := "p-1", "p-2"
	return NoteInput{
		ClientID:   "c-1",
		ClientName: "Martin & Fils",
		LineItems: []documents.LineItem{
			{ProductID: &desk, Description: "Desk", Quantity: 2, UnitPrice: 150, VATRate: 20},
			{ProductID: &lamp, Description: "Lamp", Quantity: 1, UnitPrice: 40, VATRate: 20},
			{Description: "Assembly", Quantity: 1, UnitPrice: 30, VATRate: 20},
		},
		PaymentAmount: payment,
		PaymentMethod: "card",
	}
}

func stockOf(t *testing.T, f *fixture, id string) float64 {
	t.Helper()
	p, err := store.Find[masterdata.Product](context.Background(), f.products, id)
	require.NoError(t, err)
	return p.StockQuantity
}

func TestCreateNoteTakesGoodsOutOfStock(t *testing.T) {
	f := newFixture(t)
	note, err := f.svc.CreateNote(context.Background(), noteInput(0))
	require.NoError(t, err)
	require.Equal(t, "BL/2024/00001", note.DocumentID)
	require.Equal(t, StatusDelivered, note.Status)
	require.Nil(t, note.InvoiceID)
	require.InDelta(t, 444, note.TotalAmount, 0.001)

	require.InDelta(t, 8, stockOf(t, f, "p-1"), 0.0001)
	require.InDelta(t, 3, stockOf(t, f, "p-2"), 0.0001)
	require.Equal(t, 2, f.movements.Calls(storetest.OpAdd))
}

func TestCreateNoteReportsPartialStockPosting(t *testing.T) {
	f := newFixture(t)
	f.movements.FailOn(storetest.OpAdd, 2)

	note, err := f.svc.CreateNote(context.Background(), noteInput(0))
	var stepErr *shared.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "stock_out:p-2", stepErr.Step)
	require.Len(t, stepErr.Completed, 2)
	require.Equal(t, "save_delivery_note", stepErr.Completed[0].Step)
	require.Equal(t, note.ID, stepErr.Completed[0].RecordID)
	require.Equal(t, "stock_out:p-1", stepErr.Completed[1].Step)

	require.InDelta(t, 8, stockOf(t, f, "p-1"), 0.0001)
	require.InDelta(t, 4, stockOf(t, f, "p-2"), 0.0001)
}

func TestConvertNoteWithFullPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note, err := f.svc.CreateNote(ctx, noteInput(444))
	require.NoError(t, err)

	inv, err := f.svc.ConvertToInvoice(ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, "FAC/2024/00001", inv.DocumentID)
	require.Equal(t, ar.StatusPaid, inv.Status)
	require.InDelta(t, 444, inv.AmountPaid, 0.001)
	require.NotNil(t, inv.PaymentDate)
	require.Equal(t, note.ID, inv.DeliveryNoteID)
	require.Equal(t, note.LineItems, inv.LineItems)

	payments, err := f.ar.PaymentsFor(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, ar.MethodCard, payments[0].Method)

	linked, err := f.svc.GetNote(ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, StatusInvoiced, linked.Status)
	require.NotNil(t, linked.InvoiceID)
	require.Equal(t, inv.ID, *linked.InvoiceID)
}

func TestConvertNoteStatusFollowsPayment(t *testing.T) {
	cases := []struct {
		payment float64
		want    ar.InvoiceStatus
		pays    int
	}{
		{0, ar.StatusPending, 0},
		{100, ar.StatusPartial, 1},
		{443.95, ar.StatusPaid, 1},
	}
	for _, tc := range cases {
		f := newFixture(t)
		ctx := context.Background()
		note, err := f.svc.CreateNote(ctx, noteInput(tc.payment))
		require.NoError(t, err)
		inv, err := f.svc.ConvertToInvoice(ctx, note.ID)
		require.NoError(t, err)
		require.Equal(t, tc.want, inv.Status, "payment %.2f", tc.payment)
		require.Equal(t, tc.pays, f.payments.Calls(storetest.OpAdd))
	}
}

func TestConvertNoteTwiceIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note, err := f.svc.CreateNote(ctx, noteInput(0))
	require.NoError(t, err)
	_, err = f.svc.ConvertToInvoice(ctx, note.ID)
	require.NoError(t, err)

	_, err = f.svc.ConvertToInvoice(ctx, note.ID)
	require.ErrorIs(t, err, shared.ErrAlreadyConverted)
	invoices, err := f.ar.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, invoices, 1)
}

func TestConvertNoteStopsWhenPaymentFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note, err := f.svc.CreateNote(ctx, noteInput(50))
	require.NoError(t, err)
	f.payments.FailOn(storetest.OpAdd, 1)

	_, err = f.svc.ConvertToInvoice(ctx, note.ID)
	var stepErr *shared.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "create_payment", stepErr.Step)
	require.Equal(t, "create_invoice", stepErr.Completed[0].Step)

	after, err := f.svc.GetNote(ctx, note.ID)
	require.NoError(t, err)
	require.Nil(t, after.InvoiceID, "note is linked only by the last step")
}

func TestInvoicedNoteIsLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note, err := f.svc.CreateNote(ctx, noteInput(0))
	require.NoError(t, err)

	updated, err := f.svc.UpdateNote(ctx, note.ID, NoteUpdate{Subject: "Floor 2", PaymentAmount: 20})
	require.NoError(t, err)
	require.Equal(t, "Floor 2", updated.Subject)
	require.Equal(t, note.LineItems, updated.LineItems)

	_, err = f.svc.ConvertToInvoice(ctx, note.ID)
	require.NoError(t, err)
	_, err = f.svc.UpdateNote(ctx, note.ID, NoteUpdate{Subject: "late"})
	require.ErrorIs(t, err, shared.ErrLocked)
	require.ErrorIs(t, f.svc.DeleteNote(ctx, note.ID), shared.ErrLocked)
}

func TestDeleteNoteRestocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	note, err := f.svc.CreateNote(ctx, noteInput(0))
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteNote(ctx, note.ID))
	_, err = f.svc.GetNote(ctx, note.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.InDelta(t, 10, stockOf(t, f, "p-1"), 0.0001)
	require.InDelta(t, 4, stockOf(t, f, "p-2"), 0.0001)
}
