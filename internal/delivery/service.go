package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-commerce/internal/ar"
	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/masterdata"
	"github.com/odyssey-erp/odyssey-commerce/internal/numbering"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// Invoicer issues invoices and records their payments.
type Invoicer interface {
	Issue(ctx context.Context, inv ar.Invoice) (ar.Invoice, error)
	DueDate(ctx context.Context, date time.Time) time.Time
	PaymentSteps(ctx context.Context, p *shared.Pipeline, inv ar.Invoice, in ar.PaymentInput) (ar.Invoice, ar.Payment, error)
}

// StockRecorder posts the stock movements of a delivery.
type StockRecorder interface {
	RecordMovement(ctx context.Context, m inventory.StockMovement) (inventory.StockMovement, error)
}

// ClientLookup resolves client display names.
type ClientLookup interface {
	GetClient(ctx context.Context, id string) (masterdata.Client, error)
}

// ServiceParams wires the delivery service.
type ServiceParams struct {
	Notes     store.Collection[DeliveryNote]
	Numbers   *numbering.Allocator
	Invoices  Invoicer
	Stock     StockRecorder
	Clients   ClientLookup
	Pipelines shared.PipelineDeps
	Logger    *slog.Logger
	Clock     shared.Clock
}

// Service manages delivery notes.
type Service struct {
	notes     store.Collection[DeliveryNote]
	numbers   *numbering.Allocator
	invoices  Invoicer
	stock     StockRecorder
	clients   ClientLookup
	pipelines shared.PipelineDeps
	logger    *slog.Logger
	clock     shared.Clock
}

// NewService builds Service instance.
func NewService(p ServiceParams) *Service {
	s := &Service{
		notes:     p.Notes,
		numbers:   p.Numbers,
		invoices:  p.Invoices,
		stock:     p.Stock,
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

// ListNotes returns all delivery notes.
func (s *Service) ListNotes(ctx context.Context) ([]DeliveryNote, error) {
	return s.notes.GetAll(ctx)
}

// GetNote returns one delivery note.
func (s *Service) GetNote(ctx context.Context, id string) (DeliveryNote, error) {
	return store.Find(ctx, s.notes, id)
}

// CreateNote saves the note then takes every product line out of stock.
// Steps: save_delivery_note, stock_out:<productId>...
func (s *Service) CreateNote(ctx context.Context, in NoteInput) (DeliveryNote, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return DeliveryNote{}, err
	}
	if s.stock == nil {
		return DeliveryNote{}, errors.New("delivery: stock ledger not configured")
	}
	clientName, err := s.clientName(ctx, in.ClientID, in.ClientName)
	if err != nil {
		return DeliveryNote{}, err
	}
	now := s.clock.Now().UTC()
	date := in.Date
	if date.IsZero() {
		date = now
	}
	lines := documents.PrepareLines(in.LineItems)
	totals := documents.ComputeTotals(lines)
	id := uuid.NewString()

	p, err := shared.StartPipeline(ctx, s.pipelines, "delivery_note_create", id)
	if err != nil {
		return DeliveryNote{}, err
	}
	defer p.Close(ctx)

	var note DeliveryNote
	err = p.Step(ctx, "save_delivery_note", func(ctx context.Context) (string, error) {
		saved, err := numbering.Allocate(ctx, s.numbers, s.notes, documents.TypeDeliveryNote, date, func(number string) DeliveryNote {
			return DeliveryNote{
				ID:            id,
				DocumentID:    number,
				Date:          date,
				Status:        StatusDelivered,
				ClientID:      in.ClientID,
				ClientName:    clientName,
				Subject:       in.Subject,
				Reference:     in.Reference,
				Address:       in.Address,
				Notes:         in.Notes,
				LineItems:     lines,
				SubTotal:      totals.SubTotal,
				VATAmount:     totals.VATAmount,
				TotalAmount:   totals.Amount,
				PaymentAmount: documents.Round2(in.PaymentAmount),
				PaymentMethod: in.PaymentMethod,
				CreatedAt:     now,
			}
		})
		note = saved
		return saved.ID, err
	})
	if err != nil {
		return DeliveryNote{}, shared.FirstStepCause(err)
	}
	for _, m := range inventory.LineMovements(inventory.MovementSale, -1, note.LineItems, note.DocumentID, date) {
		movement := m
		if err := p.Step(ctx, "stock_out:"+movement.ProductID, func(ctx context.Context) (string, error) {
			saved, err := s.stock.RecordMovement(ctx, movement)
			return saved.ID, err
		}); err != nil {
			return note, err
		}
	}
	return note, nil
}

// UpdateNote edits the descriptive and payment fields of a note not yet invoiced.
func (s *Service) UpdateNote(ctx context.Context, id string, in NoteUpdate) (DeliveryNote, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return DeliveryNote{}, err
	}
	note, err := store.Find(ctx, s.notes, id)
	if err != nil {
		return DeliveryNote{}, err
	}
	if note.Invoiced() {
		return DeliveryNote{}, fmt.Errorf("%w: delivery note %s is invoiced", shared.ErrLocked, note.DocumentID)
	}
	if !in.Date.IsZero() {
		note.Date = in.Date
	}
	if in.ClientName != "" {
		note.ClientName = in.ClientName
	}
	note.Subject, note.Reference = in.Subject, in.Reference
	note.Address, note.Notes = in.Address, in.Notes
	note.PaymentAmount = documents.Round2(in.PaymentAmount)
	note.PaymentMethod = in.PaymentMethod
	return s.notes.Update(ctx, note)
}

// DeleteNote removes a note not yet invoiced and puts its goods back in stock.
// Steps: delete_delivery_note, restock:<productId>...
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	note, err := store.Find(ctx, s.notes, id)
	if err != nil {
		return err
	}
	if note.Invoiced() {
		return fmt.Errorf("%w: delivery note %s is invoiced", shared.ErrLocked, note.DocumentID)
	}
	p, err := shared.StartPipeline(ctx, s.pipelines, "delivery_note_delete", id)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	if err := p.Step(ctx, "delete_delivery_note", func(ctx context.Context) (string, error) {
		return id, s.notes.Delete(ctx, id)
	}); err != nil {
		return shared.FirstStepCause(err)
	}
	if s.stock == nil {
		return nil
	}
	now := s.clock.Now().UTC()
	for _, m := range inventory.LineMovements(inventory.MovementReturn, 1, note.LineItems, note.DocumentID, now) {
		movement := m
		if err := p.Step(ctx, "restock:"+movement.ProductID, func(ctx context.Context) (string, error) {
			saved, err := s.stock.RecordMovement(ctx, movement)
			return saved.ID, err
		}); err != nil {
			return err
		}
	}
	return nil
}

// ConvertToInvoice issues the invoice of a delivery note, records the payment
// taken on delivery, then links the note to the invoice.
// Steps: create_invoice, create_payment, update_invoice, link_delivery_note.
func (s *Service) ConvertToInvoice(ctx context.Context, id string) (ar.Invoice, error) {
	note, err := store.Find(ctx, s.notes, id)
	if err != nil {
		return ar.Invoice{}, err
	}
	if note.Invoiced() {
		return ar.Invoice{}, fmt.Errorf("%w: delivery note %s already invoiced as %s", shared.ErrAlreadyConverted, note.DocumentID, *note.InvoiceID)
	}
	if s.invoices == nil {
		return ar.Invoice{}, errors.New("delivery: conversion requires an invoicer")
	}

	p, err := shared.StartPipeline(ctx, s.pipelines, "delivery_note_to_invoice", note.ID)
	if err != nil {
		return ar.Invoice{}, err
	}
	defer p.Close(ctx)

	now := s.clock.Now().UTC()
	totals := note.totals()
	paid := documents.Round2(note.PaymentAmount)
	draft := ar.Invoice{
		ID:             uuid.NewString(),
		Date:           now,
		DueDate:        s.invoices.DueDate(ctx, now),
		Status:         ar.DeriveStatus(totals.Amount, paid, false),
		ClientID:       note.ClientID,
		ClientName:     note.ClientName,
		Subject:        note.Subject,
		Reference:      note.DocumentID,
		Notes:          note.Notes,
		LineItems:      documents.CopyLines(note.LineItems),
		SubTotal:       totals.SubTotal,
		VATAmount:      totals.VATAmount,
		Amount:         totals.Amount,
		AmountPaid:     paid,
		DeliveryNoteID: note.ID,
		CreatedAt:      now,
	}
	if draft.Status == ar.StatusPaid {
		draft.PaymentDate = &now
	}

	var inv ar.Invoice
	err = p.Step(ctx, "create_invoice", func(ctx context.Context) (string, error) {
		saved, err := s.invoices.Issue(ctx, draft)
		inv = saved
		return saved.ID, err
	})
	if err != nil {
		return ar.Invoice{}, shared.FirstStepCause(err)
	}
	if paid > 0 {
		inv, _, err = s.invoices.PaymentSteps(ctx, p, inv, ar.PaymentInput{
			Amount:    paid,
			Date:      &now,
			Method:    note.PaymentMethod,
			Reference: note.DocumentID,
		})
		if err != nil {
			return inv, err
		}
	}
	err = p.Step(ctx, "link_delivery_note", func(ctx context.Context) (string, error) {
		invoiceID := inv.ID
		note.InvoiceID = &invoiceID
		note.Status = StatusInvoiced
		_, err := s.notes.Update(ctx, note)
		return note.ID, err
	})
	return inv, err
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
