package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/delivery"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/procurement"
	"github.com/odyssey-erp/odyssey-commerce/internal/sales"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// Backend carries the opened database handle for the configured driver.
type Backend struct {
	Driver string
	Pool   *pgxpool.Pool
	Gorm   *gorm.DB
}

// Stores holds one cached collection per record type.
type Stores struct {
	Clients        *store.Mirror[masterdata.Client]
	Suppliers      *store.Mirror[masterdata.Supplier]
	Products       *store.Mirror[masterdata.Product]
	Settings       *store.Mirror[masterdata.Settings]
	Quotes         *store.Mirror[sales.Quote]
	Invoices       *store.Mirror[ar.Invoice]
	Payments       *store.Mirror[ar.Payment]
	CreditNotes    *store.Mirror[ar.CreditNote]
	DeliveryNotes  *store.Mirror[delivery.DeliveryNote]
	PurchaseOrders *store.Mirror[procurement.PurchaseOrder]
	Movements      *store.Mirror[inventory.StockMovement]
}

// NewStores builds the collections on top of backend.
func NewStores(backend Backend) (*Stores, error) {
	switch backend.Driver {
	case DriverPostgres:
		if backend.Pool == nil {
			return nil, fmt.Errorf("app: %s driver needs a pool", backend.Driver)
		}
	case DriverSQLite:
		if backend.Gorm == nil {
			return nil, fmt.Errorf("app: %s driver needs a gorm handle", backend.Driver)
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", backend.Driver)
	}
	return &Stores{
		Clients:        open[masterdata.Client](backend, masterdata.ClientsCollection),
		Suppliers:      open[masterdata.Supplier](backend, masterdata.SuppliersCollection),
		Products:       open[masterdata.Product](backend, masterdata.ProductsCollection),
		Settings:       open[masterdata.Settings](backend, masterdata.SettingsCollection),
		Quotes:         open[sales.Quote](backend, sales.QuotesCollection),
		Invoices:       open[ar.Invoice](backend, ar.InvoicesCollection),
		Payments:       open[ar.Payment](backend, ar.PaymentsCollection),
		CreditNotes:    open[ar.CreditNote](backend, ar.CreditNotesCollection),
		DeliveryNotes:  open[delivery.DeliveryNote](backend, delivery.NotesCollection),
		PurchaseOrders: open[procurement.PurchaseOrder](backend, procurement.OrdersCollection),
		Movements:      open[inventory.StockMovement](backend, inventory.MovementsCollection),
	}, nil
}

func open[T store.Entity](backend Backend, name string) *store.Mirror[T] {
	switch backend.Driver {
	case DriverPostgres:
		return store.NewMirror[T](store.NewPostgres[T](backend.Pool, name))
	case DriverSQLite:
		return store.NewMirror[T](store.NewGorm[T](backend.Gorm, name))
	default:
		return store.NewMirror[T](store.NewMemory[T](name))
	}
}

func (s *Stores) reloaders() []store.Reloader {
	return []store.Reloader{
		s.Clients, s.Suppliers, s.Products, s.Settings, s.Quotes, s.Invoices,
		s.Payments, s.CreditNotes, s.DeliveryNotes, s.PurchaseOrders, s.Movements,
	}
}

// Load fills every cache from the backing store in parallel.
func (s *Stores) Load(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range s.reloaders() {
		g.Go(func() error {
			return r.Reload(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("app: load stores: %w", err)
	}
	return nil
}
