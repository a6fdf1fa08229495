package sales

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
	"github.com/odyssey-erp/odyssey-commerce/internal/store/storetest"
)

var fixedNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	ar       *ar.Service
	quotes   *storetest.Faulty[Quote]
	invoices *storetest.Faulty[ar.Invoice]
	tracker  *shared.MemoryProgress
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	f := &fixture{
		quotes:   storetest.Wrap[Quote](store.NewMemory[Quote](QuotesCollection)),
		invoices: storetest.Wrap[ar.Invoice](store.NewMemory[ar.Invoice](ar.InvoicesCollection)),
		tracker:  shared.NewMemoryProgress(),
	}
	deps := shared.PipelineDeps{Tracker: f.tracker}
	f.ar = ar.NewService(ar.ServiceParams{
		Invoices:    f.invoices,
		Payments:    store.NewMemory[ar.Payment](ar.PaymentsCollection),
		CreditNotes: store.NewMemory[ar.CreditNote](ar.CreditNotesCollection),
		Pipelines:   deps,
		Clock:       clock,
	})
	f.svc = NewService(ServiceParams{
		Quotes:    f.quotes,
		Invoices:  f.ar,
		Pipelines: deps,
		Clock:     clock,
	})
	return f
}

func sampleInput() QuoteInput {
	pid := "p-1"
	return QuoteInput{
		ClientID:   "c-1",
		ClientName: "Dupont SARL",
		Subject:    "Office chairs",
		Reference:  "REF-9",
		LineItems: []documents.LineItem{
			{ProductID: &pid, Description: "Chair", Quantity: 3, UnitPrice: 33.33, VATRate: 20},
			{Description: "Delivery", Quantity: 1, UnitPrice: 15, VATRate: 5.5},
		},
	}
}

func approvedQuote(t *testing.T, f *fixture) Quote {
	t.Helper()
	ctx := context.Background()
	q, err := f.svc.CreateQuote(ctx, sampleInput())
	require.NoError(t, err)
	for _, s := range []QuoteStatus{QuoteSent, QuoteApproved} {
		q, err = f.svc.UpdateStatus(ctx, q.ID, s)
		require.NoError(t, err)
	}
	return q
}

func TestCreateQuoteNumbersAndTotals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	q, err := f.svc.CreateQuote(ctx, sampleInput())
	require.NoError(t, err)
	require.Equal(t, "DEV/2024/00001", q.DocumentID)
	require.Equal(t, QuoteCreated, q.Status)
	totals := documents.ComputeTotals(q.LineItems)
	require.Equal(t, totals.Amount, q.Amount)
	require.Equal(t, q.SubTotal+q.VATAmount, q.Amount)
	for _, line := range q.LineItems {
		require.NotEmpty(t, line.ID)
	}

	in := sampleInput()
	in.Draft = true
	draft, err := f.svc.CreateQuote(ctx, in)
	require.NoError(t, err)
	require.Equal(t, "DEV/2024/00002", draft.DocumentID)
	require.Equal(t, QuoteDraft, draft.Status)
}

func TestCreateQuoteValidation(t *testing.T) {
	f := newFixture(t)
	in := sampleInput()
	in.LineItems = nil
	_, err := f.svc.CreateQuote(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = sampleInput()
	in.ClientID = ""
	_, err = f.svc.CreateQuote(context.Background(), in)
	var vErr *shared.ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Field, "clientId")
}

func TestQuoteStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := sampleInput()
	in.Draft = true
	q, err := f.svc.CreateQuote(ctx, in)
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, q.ID, QuoteApproved)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	for _, s := range []QuoteStatus{QuoteCreated, QuoteSent, QuoteRejected} {
		q, err = f.svc.UpdateStatus(ctx, q.ID, s)
		require.NoError(t, err)
		require.Equal(t, s, q.Status)
	}
	_, err = f.svc.UpdateStatus(ctx, q.ID, QuoteApproved)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, q.ID, QuoteStatus("Lost"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDirectConvertedStatusRejected(t *testing.T) {
	f := newFixture(t)
	q := approvedQuote(t, f)
	_, err := f.svc.UpdateStatus(context.Background(), q.ID, QuoteConverted)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestOnlyDraftOrCreatedQuotesAreEditable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.svc.CreateQuote(ctx, sampleInput())
	require.NoError(t, err)

	in := sampleInput()
	in.Subject = "Revised"
	updated, err := f.svc.UpdateQuote(ctx, q.ID, in)
	require.NoError(t, err)
	require.Equal(t, "Revised", updated.Subject)
	require.Equal(t, q.DocumentID, updated.DocumentID)

	_, err = f.svc.UpdateStatus(ctx, q.ID, QuoteSent)
	require.NoError(t, err)
	_, err = f.svc.UpdateQuote(ctx, q.ID, in)
	require.ErrorIs(t, err, shared.ErrLocked)
}

func TestConvertToInvoicePreservesContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := approvedQuote(t, f)

	inv, err := f.svc.ConvertToInvoice(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, "FAC/2024/00001", inv.DocumentID)
	require.Equal(t, ar.StatusPending, inv.Status)
	require.Zero(t, inv.AmountPaid)
	require.Equal(t, q.LineItems, inv.LineItems)
	require.Equal(t, q.SubTotal, inv.SubTotal)
	require.Equal(t, q.VATAmount, inv.VATAmount)
	require.Equal(t, q.Amount, inv.Amount)
	require.Equal(t, q.ClientName, inv.ClientName)
	require.Equal(t, q.ID, inv.QuoteID)
	require.Equal(t, fixedNow.AddDate(0, 0, 30), inv.DueDate)

	after, err := f.svc.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, QuoteConverted, after.Status)
	want := q
	want.Status = QuoteConverted
	require.Equal(t, want, after, "conversion changes only the status")

	_, err = f.svc.ConvertToInvoice(ctx, q.ID)
	require.ErrorIs(t, err, shared.ErrAlreadyConverted)
	invoices, err := f.ar.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	require.ErrorIs(t, f.svc.DeleteQuote(ctx, q.ID), shared.ErrLocked)
}

func TestConvertRequiresApprovedQuote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.svc.CreateQuote(ctx, sampleInput())
	require.NoError(t, err)
	_, err = f.svc.ConvertToInvoice(ctx, q.ID)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
	require.Zero(t, f.invoices.Calls(storetest.OpAdd))
}

func TestConvertStopsAfterInvoiceWhenQuoteUpdateFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := approvedQuote(t, f)
	f.quotes.FailOn(storetest.OpUpdate, 1)

	inv, err := f.svc.ConvertToInvoice(ctx, q.ID)
	var stepErr *shared.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "quote_to_invoice", stepErr.Pipeline)
	require.Equal(t, "mark_quote_converted", stepErr.Step)
	require.Equal(t, []shared.CompletedStep{{Step: "create_invoice", RecordID: inv.ID}}, stepErr.Completed)
	require.ErrorIs(t, err, shared.ErrPersistence)

	after, err := f.svc.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, QuoteApproved, after.Status)
	invoices, err := f.ar.ListInvoices(ctx)
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	markers, err := f.tracker.Stale(ctx, time.Hour)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	require.Equal(t, "mark_quote_converted", markers[0].FailedStep)
}

func TestConvertFailsOnInvoiceCreation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := approvedQuote(t, f)
	f.invoices.FailOn(storetest.OpAdd, 1)

	_, err := f.svc.ConvertToInvoice(ctx, q.ID)
	require.ErrorIs(t, err, shared.ErrPersistence)
	var stepErr *shared.StepError
	require.NotErrorAs(t, err, &stepErr)

	after, err := f.svc.GetQuote(ctx, q.ID)
	require.NoError(t, err)
	require.Equal(t, QuoteApproved, after.Status)
}

func TestConcurrentConversionIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := approvedQuote(t, f)
	_, err := f.tracker.Begin(ctx, "quote_to_invoice", q.ID)
	require.NoError(t, err)

	_, err = f.svc.ConvertToInvoice(ctx, q.ID)
	require.ErrorIs(t, err, shared.ErrPipelineBusy)
	require.Zero(t, f.invoices.Calls(storetest.OpAdd))
}
