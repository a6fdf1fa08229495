// Package analytics computes the read-side aggregates shown on the dashboard.
package analytics

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
)

// Receivables lists the documents behind the receivable aggregates.
type Receivables interface {
	ListInvoices(ctx context.Context) ([]ar.Invoice, error)
	ListCreditNotes(ctx context.Context) ([]ar.CreditNote, error)
	ListPayments(ctx context.Context) ([]ar.Payment, error)
}

// Catalog lists products and company settings.
type Catalog interface {
	ListProducts(ctx context.Context) ([]masterdata.Product, error)
	Settings(ctx context.Context) (masterdata.Settings, error)
}

// ServiceParams wires the analytics service.
type ServiceParams struct {
	Receivables Receivables
	Catalog     Catalog
	Cache       *Cache
	Logger      *slog.Logger
	Clock       shared.Clock
}

// Service coordinates aggregate computation with the cache layer.
type Service struct {
	receivables Receivables
	catalog     Catalog
	cache       *Cache
	logger      *slog.Logger
	clock       shared.Clock
	group       singleflight.Group
}

// NewService wires the sources with a Cache helper.
func NewService(p ServiceParams) *Service {
	s := &Service{receivables: p.Receivables, catalog: p.Catalog, cache: p.Cache, logger: p.Logger, clock: p.Clock}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Dashboard summarises receivables and stock.
type Dashboard struct {
	AsOf                 time.Time            `json:"asOf"`
	Currency             string               `json:"currency"`
	InvoicedTotal        float64              `json:"invoicedTotal"`
	CollectedTotal       float64              `json:"collectedTotal"`
	Outstanding          float64              `json:"outstanding"`
	OutstandingFormatted string               `json:"outstandingFormatted"`
	OverdueCount         int                  `json:"overdueCount"`
	OpenInvoices         int                  `json:"openInvoices"`
	LowStock             []masterdata.Product `json:"lowStock"`
	Aging                []AgingBucket        `json:"aging"`
}

type snapshot struct {
	invoices []ar.Invoice
	notes    []ar.CreditNote
	payments []ar.Payment
	products []masterdata.Product
	settings masterdata.Settings
}

func (s *Service) load(ctx context.Context) (snapshot, error) {
	var snap snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.invoices, err = s.receivables.ListInvoices(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.notes, err = s.receivables.ListCreditNotes(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.payments, err = s.receivables.ListPayments(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.products, err = s.catalog.ListProducts(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.settings, err = s.catalog.Settings(ctx)
		return err
	})
	return snap, g.Wait()
}

// Outstanding returns the unpaid receivable total.
func (s *Service) Outstanding(ctx context.Context) (float64, error) {
	invoices, err := s.receivables.ListInvoices(ctx)
	if err != nil {
		return 0, err
	}
	notes, err := s.receivables.ListCreditNotes(ctx)
	if err != nil {
		return 0, err
	}
	return Outstanding(invoices, notes), nil
}

// LowStockProducts returns the products needing a reorder.
func (s *Service) LowStockProducts(ctx context.Context) ([]masterdata.Product, error) {
	products, err := s.catalog.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	return LowStock(products), nil
}

// ARAging returns the receivable aging buckets at asOf.
func (s *Service) ARAging(ctx context.Context, asOf time.Time) ([]AgingBucket, error) {
	if asOf.IsZero() {
		asOf = s.clock.Now().UTC()
	}
	key, err := s.cache.BuildKey(ctx, keyAging(asOf)...)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s, key, func(ctx context.Context) ([]AgingBucket, error) {
		snap, err := s.load(ctx)
		if err != nil {
			return nil, err
		}
		return Aging(snap.invoices, snap.notes, asOf), nil
	})
}

// Dashboard returns the cached dashboard, computing it once per cache version.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	asOf := s.clock.Now().UTC()
	key, err := s.cache.BuildKey(ctx, keyDashboard(asOf)...)
	if err != nil {
		return Dashboard{}, err
	}
	return cached(ctx, s, key, func(ctx context.Context) (Dashboard, error) {
		snap, err := s.load(ctx)
		if err != nil {
			return Dashboard{}, err
		}
		return buildDashboard(snap, asOf), nil
	})
}

// Invalidate drops every cached aggregate.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("analytics cache not invalidated", slog.Any("error", err))
	}
}

// cached collapses concurrent computations of the same key into one.
func cached[T any](ctx context.Context, s *Service, key string, loader func(context.Context) (T, error)) (T, error) {
	resultChan := s.group.DoChan(key, func() (interface{}, error) {
		return fetchJSON(ctx, s.cache, key, loader)
	})
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func buildDashboard(snap snapshot, asOf time.Time) Dashboard {
	d := Dashboard{
		AsOf:     asOf,
		Currency: strings.ToUpper(snap.settings.Currency),
		LowStock: LowStock(snap.products),
		Aging:    Aging(snap.invoices, snap.notes, asOf),
	}
	for _, inv := range snap.invoices {
		if inv.Status == ar.StatusDraft {
			continue
		}
		d.InvoicedTotal += inv.Amount
		if counts(inv) {
			d.OpenInvoices++
			if !inv.DueDate.IsZero() && inv.DueDate.Before(asOf) {
				d.OverdueCount++
			}
		}
	}
	for _, p := range snap.payments {
		d.CollectedTotal += p.Amount
	}
	d.InvoicedTotal = documents.Round2(d.InvoicedTotal)
	d.CollectedTotal = documents.Round2(d.CollectedTotal)
	d.Outstanding = Outstanding(snap.invoices, snap.notes)
	d.OutstandingFormatted = NewFormatter(snap.settings.Locale, snap.settings.Currency).Amount(d.Outstanding)
	return d
}
