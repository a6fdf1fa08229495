package ar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/numbering"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// StockRecorder posts stock movements for restocking credit notes.
type StockRecorder interface {
	RecordMovement(ctx context.Context, m inventory.StockMovement) (inventory.StockMovement, error)
}

// ClientLookup resolves client display names.
type ClientLookup interface {
	GetClient(ctx context.Context, id string) (masterdata.Client, error)
}

// TermsProvider supplies the payment term used for due dates.
type TermsProvider interface {
	PaymentTermDays(ctx context.Context) (int, error)
}

// ServiceParams wires the receivables service.
type ServiceParams struct {
	Invoices    store.Collection[Invoice]
	Payments    store.Collection[Payment]
	CreditNotes store.Collection[CreditNote]
	Numbers     *numbering.Allocator
	Stock       StockRecorder
	Clients     ClientLookup
	Terms       TermsProvider
	Pipelines   shared.PipelineDeps
	Logger      *slog.Logger
	Clock       shared.Clock
}

// Service handles invoices, payments and credit notes.
type Service struct {
	invoices    store.Collection[Invoice]
	payments    store.Collection[Payment]
	creditNotes store.Collection[CreditNote]
	numbers     *numbering.Allocator
	stock       StockRecorder
	clients     ClientLookup
	terms       TermsProvider
	pipelines   shared.PipelineDeps
	logger      *slog.Logger
	clock       shared.Clock
}

// NewService builds Service instance.
func NewService(p ServiceParams) *Service {
	s := &Service{
		invoices:    p.Invoices,
		payments:    p.Payments,
		creditNotes: p.CreditNotes,
		numbers:     p.Numbers,
		stock:       p.Stock,
		clients:     p.Clients,
		terms:       p.Terms,
		pipelines:   p.Pipelines,
		logger:      p.Logger,
		clock:       p.Clock,
	}
	if s.numbers == nil {
		s.numbers = numbering.NewAllocator(nil, p.Logger)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.pipelines.Logger == nil {
		s.pipelines.Logger = s.logger
	}
	return s
}

// ListInvoices returns all invoices.
func (s *Service) ListInvoices(ctx context.Context) ([]Invoice, error) {
	return s.invoices.GetAll(ctx)
}

// GetInvoice returns one invoice.
func (s *Service) GetInvoice(ctx context.Context, id string) (Invoice, error) {
	return store.Find(ctx, s.invoices, id)
}

// PaymentsFor lists the payments of an invoice.
func (s *Service) PaymentsFor(ctx context.Context, invoiceID string) ([]Payment, error) {
	all, err := s.payments.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return store.Filter(all, func(p Payment) bool { return p.InvoiceID == invoiceID }), nil
}

// DueDate returns date plus the configured payment term.
func (s *Service) DueDate(ctx context.Context, date time.Time) time.Time {
	days := masterdata.DefaultPaymentTermDays
	if s.terms != nil {
		if d, err := s.terms.PaymentTermDays(ctx); err == nil && d > 0 {
			days = d
		} else if err != nil {
			s.logger.Warn("payment term unavailable, using default", slog.Any("error", err))
		}
	}
	return date.AddDate(0, 0, days)
}

// Issue allocates the next invoice number and persists inv. Conversions use it
// to create the target invoice.
func (s *Service) Issue(ctx context.Context, inv Invoice) (Invoice, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Date.IsZero() {
		inv.Date = s.clock.Now().UTC()
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = s.DueDate(ctx, inv.Date)
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = s.clock.Now().UTC()
	}
	return numbering.Allocate(ctx, s.numbers, s.invoices, documents.TypeInvoice, inv.Date, func(number string) Invoice {
		out := inv
		out.DocumentID = number
		return out
	})
}

// CreateInvoice saves the invoice, then records the initial payment if any.
// Steps: save_invoice, create_payment, update_invoice.
func (s *Service) CreateInvoice(ctx context.Context, in InvoiceInput) (Invoice, error) {
	if err := s.validateInvoiceInput(in); err != nil {
		return Invoice{}, err
	}
	clientName, err := s.clientName(ctx, in.ClientID, in.ClientName)
	if err != nil {
		return Invoice{}, err
	}
	lines := documents.PrepareLines(in.LineItems)
	totals := documents.ComputeTotals(lines)
	date := in.Date
	if date.IsZero() {
		date = s.clock.Now().UTC()
	}
	status := StatusPending
	if in.Draft {
		status = StatusDraft
	}
	draft := Invoice{
		ID:         uuid.NewString(),
		Date:       date,
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
	}
	if in.DueDate != nil {
		draft.DueDate = *in.DueDate
	}

	p, err := shared.StartPipeline(ctx, s.pipelines, "invoice_create", draft.ID)
	if err != nil {
		return Invoice{}, err
	}
	defer p.Close(ctx)

	var inv Invoice
	err = p.Step(ctx, "save_invoice", func(ctx context.Context) (string, error) {
		saved, err := s.Issue(ctx, draft)
		inv = saved
		return saved.ID, err
	})
	if err != nil {
		return Invoice{}, shared.FirstStepCause(err)
	}
	if in.InitialPayment == nil {
		return inv, nil
	}
	inv, _, err = s.PaymentSteps(ctx, p, inv, *in.InitialPayment)
	return inv, err
}

// UpdateInvoice rewrites the editable fields, re-derives the status from the
// payments on file, then records the optional extra payment.
func (s *Service) UpdateInvoice(ctx context.Context, id string, in InvoiceInput) (Invoice, error) {
	if err := s.validateInvoiceInput(in); err != nil {
		return Invoice{}, err
	}
	existing, err := store.Find(ctx, s.invoices, id)
	if err != nil {
		return Invoice{}, err
	}
	clientName, err := s.clientName(ctx, in.ClientID, in.ClientName)
	if err != nil {
		return Invoice{}, err
	}
	payments, err := s.PaymentsFor(ctx, id)
	if err != nil {
		return Invoice{}, err
	}

	lines := documents.PrepareLines(in.LineItems)
	totals := documents.ComputeTotals(lines)
	next := existing
	if !in.Date.IsZero() {
		next.Date = in.Date
	}
	if in.DueDate != nil {
		next.DueDate = *in.DueDate
	}
	next.ClientID, next.ClientName = in.ClientID, clientName
	next.Subject, next.Reference, next.Notes = in.Subject, in.Reference, in.Notes
	next.LineItems = lines
	next.SubTotal, next.VATAmount, next.Amount = totals.SubTotal, totals.VATAmount, totals.Amount
	if existing.Status == StatusDraft && !in.Draft {
		next.Status = StatusPending
	}
	next = applyPayments(next, payments, nil)

	p, err := shared.StartPipeline(ctx, s.pipelines, "invoice_update", id)
	if err != nil {
		return Invoice{}, err
	}
	defer p.Close(ctx)

	var inv Invoice
	err = p.Step(ctx, "save_invoice", func(ctx context.Context) (string, error) {
		saved, err := s.invoices.Update(ctx, next)
		inv = saved
		return saved.ID, err
	})
	if err != nil {
		return Invoice{}, shared.FirstStepCause(err)
	}
	if in.InitialPayment == nil {
		return inv, nil
	}
	inv, _, err = s.PaymentSteps(ctx, p, inv, *in.InitialPayment)
	return inv, err
}

// UpdateInvoiceStatus allows only Draft -> Pending while no payment exists.
// Every other status follows the payments.
func (s *Service) UpdateInvoiceStatus(ctx context.Context, id string, status InvoiceStatus) (Invoice, error) {
	inv, err := store.Find(ctx, s.invoices, id)
	if err != nil {
		return Invoice{}, err
	}
	if inv.Status == status {
		return inv, nil
	}
	payments, err := s.PaymentsFor(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if err := checkInvoiceStatusEdit(inv, status, len(payments) > 0); err != nil {
		return Invoice{}, err
	}
	inv.Status = status
	return s.invoices.Update(ctx, inv)
}

// DeleteInvoice deletes the payments one by one, stopping at the first
// failure, then the invoice. Steps: delete_payment:<id>..., delete_invoice.
func (s *Service) DeleteInvoice(ctx context.Context, id string) error {
	if _, err := store.Find(ctx, s.invoices, id); err != nil {
		return err
	}
	payments, err := s.PaymentsFor(ctx, id)
	if err != nil {
		return err
	}
	p, err := shared.StartPipeline(ctx, s.pipelines, "invoice_delete", id)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	for _, pay := range payments {
		payID := pay.ID
		if err := p.Step(ctx, "delete_payment:"+payID, func(ctx context.Context) (string, error) {
			return payID, s.payments.Delete(ctx, payID)
		}); err != nil {
			return shared.FirstStepCause(err)
		}
	}
	err = p.Step(ctx, "delete_invoice", func(ctx context.Context) (string, error) {
		return id, s.invoices.Delete(ctx, id)
	})
	return shared.FirstStepCause(err)
}

func (s *Service) validateInvoiceInput(in InvoiceInput) error {
	if err := shared.ValidateStruct(in); err != nil {
		return err
	}
	if in.InitialPayment != nil {
		if err := shared.ValidateStruct(*in.InitialPayment); err != nil {
			return err
		}
	}
	return nil
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
