package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/numbering"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// Invoicer issues the invoice a quote converts into.
type Invoicer interface {
	Issue(ctx context.Context, inv ar.Invoice) (ar.Invoice, error)
	DueDate(ctx context.Context, date time.Time) time.Time
}

// ClientLookup resolves client display names.
type ClientLookup interface {
	GetClient(ctx context.Context, id string) (masterdata.Client, error)
}

// ServiceParams wires the quote service.
type ServiceParams struct {
	Quotes    store.Collection[Quote]
	Numbers   *numbering.Allocator
	Invoices  Invoicer
	Clients   ClientLookup
	Pipelines shared.PipelineDeps
	Logger    *slog.Logger
	Clock     shared.Clock
}

// Service manages quotes and their conversion into invoices.
type Service struct {
	quotes    store.Collection[Quote]
	numbers   *numbering.Allocator
	invoices  Invoicer
	clients   ClientLookup
	pipelines shared.PipelineDeps
	logger    *slog.Logger
	clock     shared.Clock
}

// NewService builds the quote service.
func NewService(p ServiceParams) *Service {
	s := &Service{
		quotes:    p.Quotes,
		numbers:   p.Numbers,
		invoices:  p.Invoices,
		clients:   p.Clients,
		pipelines: p.Pipelines,
		logger:    p.Logger,
		clock:     p.Clock,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.numbers == nil {
		s.numbers = numbering.NewAllocator(nil, s.logger)
	}
	if s.pipelines.Logger == nil {
		s.pipelines.Logger = s.logger
	}
	return s
}

// ListQuotes returns all quotes.
func (s *Service) ListQuotes(ctx context.Context) ([]Quote, error) {
	return s.quotes.GetAll(ctx)
}

// GetQuote returns one quote.
func (s *Service) GetQuote(ctx context.Context, id string) (Quote, error) {
	return store.Find(ctx, s.quotes, id)
}

// CreateQuote allocates a DEV number and saves the quote as Created, or Draft
// when requested.
func (s *Service) CreateQuote(ctx context.Context, in QuoteInput) (Quote, error) {
	if err := validateInput(in); err != nil {
		return Quote{}, err
	}
	clientName, err := s.clientName(ctx, in.ClientID, in.ClientName)
	if err != nil {
		return Quote{}, err
	}
	now := s.clock.Now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	status := QuoteCreated
	if in.Draft {
		status = QuoteDraft
	}
	lines := documents.PrepareLines(in.LineItems)
	totals := documents.ComputeTotals(lines)
	return numbering.Allocate(ctx, s.numbers, s.quotes, documents.TypeQuote, date, func(number string) Quote {
		return Quote{
			ID:         uuid.NewString(),
			DocumentID: number,
			Date:       date,
			ValidUntil: in.ValidUntil,
			Status:     status,
			ClientID:   in.ClientID,
			ClientName: clientName,
			Subject:    in.Subject,
			Reference:  in.Reference,
			Notes:      in.Notes,
			LineItems:  lines,
			SubTotal:   totals.SubTotal,
			VATAmount:  totals.VATAmount,
			Amount:     totals.Amount,
			CreatedAt:  now,
		}
	})
}

// UpdateQuote rewrites a Draft or Created quote. The number never changes.
func (s *Service) UpdateQuote(ctx context.Context, id string, in QuoteInput) (Quote, error) {
	if err := validateInput(in); err != nil {
		return Quote{}, err
	}
	q, err := store.Find(ctx, s.quotes, id)
	if err != nil {
		return Quote{}, err
	}
	if !q.Status.Editable() {
		return Quote{}, fmt.Errorf("%w: quote %s is %s", shared.ErrLocked, q.DocumentID, q.Status)
	}
	clientName, err := s.clientName(ctx, in.ClientID, in.ClientName)
	if err != nil {
		return Quote{}, err
	}
	lines := documents.PrepareLines(in.LineItems)
	totals := documents.ComputeTotals(lines)
	if !in.Date.IsZero() {
		q.Date = in.Date
	}
	q.ValidUntil = in.ValidUntil
	q.ClientID, q.ClientName = in.ClientID, clientName
	q.Subject, q.Reference, q.Notes = in.Subject, in.Reference, in.Notes
	q.LineItems = lines
	q.SubTotal, q.VATAmount, q.Amount = totals.SubTotal, totals.VATAmount, totals.Amount
	if q.Status == QuoteDraft && !in.Draft {
		q.Status = QuoteCreated
	}
	return s.quotes.Update(ctx, q)
}

// DeleteQuote removes a quote that was not converted.
func (s *Service) DeleteQuote(ctx context.Context, id string) error {
	q, err := store.Find(ctx, s.quotes, id)
	if err != nil {
		return err
	}
	if q.Status == QuoteConverted {
		return fmt.Errorf("%w: quote %s is converted", shared.ErrLocked, q.DocumentID)
	}
	return s.quotes.Delete(ctx, id)
}

// UpdateStatus applies a manual status change. Converted is reachable only
// through ConvertToInvoice.
func (s *Service) UpdateStatus(ctx context.Context, id string, status QuoteStatus) (Quote, error) {
	if !status.Valid() {
		return Quote{}, shared.Invalid("status", fmt.Sprintf("unknown status %q", status))
	}
	q, err := store.Find(ctx, s.quotes, id)
	if err != nil {
		return Quote{}, err
	}
	if q.Status == status {
		return q, nil
	}
	if status == QuoteConverted {
		return Quote{}, fmt.Errorf("%w: %s -> %s requires a conversion", shared.ErrInvalidTransition, q.Status, status)
	}
	if err := quoteTransitions.Check(q.Status, status); err != nil {
		return Quote{}, err
	}
	q.Status = status
	return s.quotes.Update(ctx, q)
}

// ConvertToInvoice turns an Approved quote into a Pending invoice carrying the
// same lines and totals, then marks the quote Converted.
// Steps: create_invoice, mark_quote_converted.
func (s *Service) ConvertToInvoice(ctx context.Context, quoteID string) (ar.Invoice, error) {
	q, err := store.Find(ctx, s.quotes, quoteID)
	if err != nil {
		return ar.Invoice{}, err
	}
	switch q.Status {
	case QuoteApproved:
	case QuoteConverted:
		return ar.Invoice{}, fmt.Errorf("%w: quote %s", shared.ErrAlreadyConverted, q.DocumentID)
	default:
		return ar.Invoice{}, fmt.Errorf("%w: quote %s is %s, not %s", shared.ErrInvalidTransition, q.DocumentID, q.Status, QuoteApproved)
	}
	if s.invoices == nil {
		return ar.Invoice{}, errors.New("sales: conversion requires an invoicer")
	}

	p, err := shared.StartPipeline(ctx, s.pipelines, "quote_to_invoice", q.ID)
	if err != nil {
		return ar.Invoice{}, err
	}
	defer p.Close(ctx)

	now := s.clock.Now().UTC()
	var inv ar.Invoice
	err = p.Step(ctx, "create_invoice", func(ctx context.Context) (string, error) {
		saved, err := s.invoices.Issue(ctx, ar.Invoice{
			ID:         uuid.NewString(),
			Date:       now,
			DueDate:    s.invoices.DueDate(ctx, now),
			Status:     ar.StatusPending,
			ClientID:   q.ClientID,
			ClientName: q.ClientName,
			Subject:    q.Subject,
			Reference:  q.Reference,
			Notes:      q.Notes,
			LineItems:  documents.CopyLines(q.LineItems),
			SubTotal:   q.SubTotal,
			VATAmount:  q.VATAmount,
			Amount:     q.Amount,
			QuoteID:    q.ID,
			CreatedAt:  now,
		})
		inv = saved
		return saved.ID, err
	})
	if err != nil {
		return ar.Invoice{}, shared.FirstStepCause(err)
	}
	err = p.Step(ctx, "mark_quote_converted", func(ctx context.Context) (string, error) {
		q.Status = QuoteConverted
		_, err := s.quotes.Update(ctx, q)
		return q.ID, err
	})
	return inv, err
}

func validateInput(in QuoteInput) error {
	return shared.ValidateStruct(in)
}

func (s *Service) clientName(ctx context.Context, clientID, given string) (string, error) {
	if given != "" || s.clients == nil {
		return given, nil
	}
	c, err := s.clients.GetClient(ctx, clientID)
	if errors.Is(err, shared.ErrNotFound) {
		return "", shared.Invalid("clientId", fmt.Sprintf("unknown client %s", clientID))
	}
	if err != nil {
		return "", err
	}
	return c.DisplayName(), nil
}
