package procurement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
	"github.com/odyssey-erp/odyssey-commerce/internal/store/storetest"
)

type recordingReceipts struct {
	events []ReceivedEvent
	err    error
}

func (r *recordingReceipts) HandleReceived(_ context.Context, evt ReceivedEvent) error {
	r.events = append(r.events, evt)
	return r.err
}

type fakeSuppliers map[string]masterdata.Supplier

func (f fakeSuppliers) GetSupplier(_ context.Context, id string) (masterdata.Supplier, error) {
	s, ok := f[id]
	if !ok {
		return masterdata.Supplier{}, &shared.NotFoundError{Collection: masterdata.SuppliersCollection, ID: id}
	}
	return s, nil
}

type fixture struct {
	svc       *Service
	orders    *storetest.Faulty[PurchaseOrder]
	movements *storetest.Faulty[inventory.StockMovement]
	products  *store.MemoryCollection[masterdata.Product]
	receipts  *recordingReceipts
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2024, 11, 20, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	f := &fixture{
		orders:    storetest.Wrap[PurchaseOrder](store.NewMemory[PurchaseOrder](OrdersCollection)),
		movements: storetest.Wrap[inventory.StockMovement](store.NewMemory[inventory.StockMovement](inventory.MovementsCollection)),
		products:  store.NewMemory[masterdata.Product](masterdata.ProductsCollection),
		receipts:  &recordingReceipts{},
	}
	for _, id := range []string{"p-1", "p-2"} {
		_, err := f.products.Add(context.Background(), masterdata.Product{ID: id, ProductCode: "P" + id, Name: id, StockQuantity: 1})
		require.NoError(t, err)
	}
	f.svc = NewService(ServiceParams{
		Orders:    f.orders,
		Inventory: inventory.NewLedger(inventory.LedgerParams{Movements: f.movements, Products: f.products, Clock: clock}),
		Suppliers: fakeSuppliers{"s-1": {ID: "s-1", EntityCode: "F001", Name: "Jean", Company: "Bois & Co"}},
		Receipts:  f.receipts,
		Pipelines: shared.PipelineDeps{Tracker: shared.NewMemoryProgress()},
		Clock:     clock,
	})
	return f
}

func orderInput() OrderInput {
	a, b := "p-1", "p-2"
	return OrderInput{
		SupplierID: "s-1",
		LineItems: []documents.LineItem{
			{ProductID: &a, Description: "Oak plank", Quantity: 12, UnitPrice: 8.5, VATRate: 20},
			{ProductID: &b, Description: "Screws", Quantity: 200, UnitPrice: 0.05, VATRate: 20},
			{Description: "Transport", Quantity: 1, UnitPrice: 25, VATRate: 20},
		},
	}
}

func stock(t *testing.T, f *fixture, id string) float64 {
	t.Helper()
	p, err := store.Find[masterdata.Product](context.Background(), f.products, id)
	require.NoError(t, err)
	return p.StockQuantity
}

func advance(t *testing.T, f *fixture, id string, statuses ...POStatus) PurchaseOrder {
	t.Helper()
	var po PurchaseOrder
	var err error
	for _, s := range statuses {
		po, err = f.svc.UpdateStatus(context.Background(), id, s)
		require.NoError(t, err)
	}
	return po
}

func TestCreateOrderResolvesSupplier(t *testing.T) {
	f := newFixture(t)
	po, err := f.svc.CreateOrder(context.Background(), orderInput())
	require.NoError(t, err)
	require.Equal(t, "BC/2024/00001", po.DocumentID)
	require.Equal(t, POStatusDraft, po.Status)
	require.Equal(t, "Bois & Co", po.SupplierName)
	require.Equal(t, po.SubTotal+po.VATAmount, po.TotalAmount)

	in := orderInput()
	in.SupplierID = "s-404"
	_, err = f.svc.CreateOrder(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReceivingPostsPurchaseMovementsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po, err := f.svc.CreateOrder(ctx, orderInput())
	require.NoError(t, err)

	po = advance(t, f, po.ID, POStatusSent, POStatusReceived)
	require.Equal(t, POStatusReceived, po.Status)
	require.NotNil(t, po.ReceivedAt)
	require.InDelta(t, 13, stock(t, f, "p-1"), 0.0001)
	require.InDelta(t, 201, stock(t, f, "p-2"), 0.0001)

	again, err := f.svc.UpdateStatus(ctx, po.ID, POStatusReceived)
	require.NoError(t, err)
	require.Equal(t, po, again)
	require.Equal(t, 2, f.movements.Calls(storetest.OpAdd))
	require.InDelta(t, 13, stock(t, f, "p-1"), 0.0001)

	require.Len(t, f.receipts.events, 1)
	require.Equal(t, po.DocumentID, f.receipts.events[0].DocumentID)
	require.Len(t, f.receipts.events[0].Lines, 2)
}

func TestReceivingSavesStatusBeforeMovements(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po, err := f.svc.CreateOrder(ctx, orderInput())
	require.NoError(t, err)
	advance(t, f, po.ID, POStatusSent)
	f.movements.FailOn(storetest.OpAdd, 1)

	_, err = f.svc.UpdateStatus(ctx, po.ID, POStatusReceived)
	var stepErr *shared.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "purchase_order_receive", stepErr.Pipeline)
	require.Equal(t, "stock_in:p-1", stepErr.Step)
	require.Equal(t, []shared.CompletedStep{{Step: "save_status", RecordID: po.ID}}, stepErr.Completed)

	after, err := f.svc.GetOrder(ctx, po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusReceived, after.Status)
	require.InDelta(t, 1, stock(t, f, "p-1"), 0.0001)
	require.Empty(t, f.receipts.events)
}

func TestReceivingStatusWriteFailurePostsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po, err := f.svc.CreateOrder(ctx, orderInput())
	require.NoError(t, err)
	advance(t, f, po.ID, POStatusSent)
	f.orders.FailOn(storetest.OpUpdate, 1)

	_, err = f.svc.UpdateStatus(ctx, po.ID, POStatusReceived)
	require.ErrorIs(t, err, shared.ErrPersistence)
	require.Zero(t, f.movements.Calls(storetest.OpAdd))
}

func TestReceiptHandlerFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.receipts.err = errors.New("downstream offline")
	po, err := f.svc.CreateOrder(context.Background(), orderInput())
	require.NoError(t, err)
	po = advance(t, f, po.ID, POStatusSent, POStatusReceived)
	require.Equal(t, POStatusReceived, po.Status)
}

func TestOrderTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po, err := f.svc.CreateOrder(ctx, orderInput())
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, po.ID, POStatusReceived)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	po = advance(t, f, po.ID, POStatusCancelled)
	_, err = f.svc.UpdateStatus(ctx, po.ID, POStatusSent)
	require.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, po.ID, POStatus("Lost"))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestOnlyDraftOrdersAreEditable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po, err := f.svc.CreateOrder(ctx, orderInput())
	require.NoError(t, err)

	in := orderInput()
	in.LineItems = in.LineItems[:1]
	updated, err := f.svc.UpdateOrder(ctx, po.ID, in)
	require.NoError(t, err)
	require.InDelta(t, 122.4, updated.TotalAmount, 0.001)

	advance(t, f, po.ID, POStatusSent)
	_, err = f.svc.UpdateOrder(ctx, po.ID, in)
	require.ErrorIs(t, err, shared.ErrLocked)
}

func TestDeleteRefusedAfterReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po, err := f.svc.CreateOrder(ctx, orderInput())
	require.NoError(t, err)
	advance(t, f, po.ID, POStatusSent, POStatusReceived)
	require.ErrorIs(t, f.svc.DeleteOrder(ctx, po.ID), shared.ErrLocked)

	other, err := f.svc.CreateOrder(ctx, orderInput())
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteOrder(ctx, other.ID))
}
