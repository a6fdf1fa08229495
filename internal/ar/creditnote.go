package ar

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/inventory"
	"github.com/odyssey-erp/odyssey-commerce/internal/numbering"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// ListCreditNotes returns all credit notes.
func (s *Service) ListCreditNotes(ctx context.Context) ([]CreditNote, error) {
	return s.creditNotes.GetAll(ctx)
}

// GetCreditNote returns one credit note.
func (s *Service) GetCreditNote(ctx context.Context, id string) (CreditNote, error) {
	return store.Find(ctx, s.creditNotes, id)
}

// CreateCreditNote issues a Draft credit note copying the invoice's lines,
// totals and client. Its invoiceId is the invoice's document number.
func (s *Service) CreateCreditNote(ctx context.Context, invoiceID string, in CreditNoteInput) (CreditNote, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return CreditNote{}, err
	}
	inv, err := store.Find(ctx, s.invoices, invoiceID)
	if err != nil {
		return CreditNote{}, err
	}
	lines := documents.CopyLines(inv.LineItems)
	totals := documents.Totals{SubTotal: inv.SubTotal, VATAmount: inv.VATAmount, Amount: inv.Amount}
	if in.LineItems != nil {
		lines = documents.PrepareLines(in.LineItems)
		totals = documents.ComputeTotals(lines)
	}

	p, err := shared.StartPipeline(ctx, s.pipelines, "invoice_to_credit_note", invoiceID)
	if err != nil {
		return CreditNote{}, err
	}
	defer p.Close(ctx)

	now := s.clock.Now().UTC()
	var note CreditNote
	err = p.Step(ctx, "create_credit_note", func(ctx context.Context) (string, error) {
		saved, err := numbering.Allocate(ctx, s.numbers, s.creditNotes, documents.TypeCreditNote, now, func(number string) CreditNote {
			return CreditNote{
				ID:         uuid.NewString(),
				DocumentID: number,
				Date:       now,
				Status:     CreditDraft,
				InvoiceID:  inv.DocumentID,
				ClientID:   inv.ClientID,
				ClientName: inv.ClientName,
				Subject:    fmt.Sprintf("Avoir sur facture %s", inv.DocumentID),
				Reason:     in.Reason,
				LineItems:  lines,
				SubTotal:   totals.SubTotal,
				VATAmount:  totals.VATAmount,
				Amount:     totals.Amount,
				Restock:    in.Restock,
				CreatedAt:  now,
			}
		})
		note = saved
		return saved.ID, err
	})
	if err != nil {
		return CreditNote{}, shared.FirstStepCause(err)
	}
	return note, nil
}

// UpdateCreditNote edits a Draft credit note.
func (s *Service) UpdateCreditNote(ctx context.Context, id string, in CreditNoteInput) (CreditNote, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return CreditNote{}, err
	}
	note, err := store.Find(ctx, s.creditNotes, id)
	if err != nil {
		return CreditNote{}, err
	}
	if note.Status != CreditDraft {
		return CreditNote{}, fmt.Errorf("%w: credit note %s is %s", shared.ErrLocked, note.DocumentID, note.Status)
	}
	if in.LineItems != nil {
		note.LineItems = documents.PrepareLines(in.LineItems)
		totals := documents.ComputeTotals(note.LineItems)
		note.SubTotal, note.VATAmount, note.Amount = totals.SubTotal, totals.VATAmount, totals.Amount
	}
	note.Reason = in.Reason
	note.Restock = in.Restock
	return s.creditNotes.Update(ctx, note)
}

// DeleteCreditNote removes a Draft credit note.
func (s *Service) DeleteCreditNote(ctx context.Context, id string) error {
	note, err := store.Find(ctx, s.creditNotes, id)
	if err != nil {
		return err
	}
	if note.Status != CreditDraft {
		return fmt.Errorf("%w: credit note %s is %s", shared.ErrLocked, note.DocumentID, note.Status)
	}
	return s.creditNotes.Delete(ctx, id)
}

// UpdateCreditNoteStatus moves Draft -> Validated -> Refunded. Validating a
// restocking note posts one Retour movement per product line after the status
// is saved. Steps: save_status, restock:<productId>...
func (s *Service) UpdateCreditNoteStatus(ctx context.Context, id string, status CreditNoteStatus) (CreditNote, error) {
	note, err := store.Find(ctx, s.creditNotes, id)
	if err != nil {
		return CreditNote{}, err
	}
	if err := creditNoteTransitions.Check(note.Status, status); err != nil {
		return CreditNote{}, err
	}
	p, err := shared.StartPipeline(ctx, s.pipelines, "credit_note_status", id)
	if err != nil {
		return CreditNote{}, err
	}
	defer p.Close(ctx)

	now := s.clock.Now().UTC()
	next := note
	next.Status = status
	switch status {
	case CreditValidated:
		next.ValidatedAt = &now
	case CreditRefunded:
		next.RefundedAt = &now
	}
	err = p.Step(ctx, "save_status", func(ctx context.Context) (string, error) {
		saved, err := s.creditNotes.Update(ctx, next)
		next = saved
		return saved.ID, err
	})
	if err != nil {
		return CreditNote{}, shared.FirstStepCause(err)
	}
	if status != CreditValidated || !note.Restock {
		return next, nil
	}
	if s.stock == nil {
		return next, errors.New("ar: restock requested without a stock ledger")
	}
	for _, m := range inventory.LineMovements(inventory.MovementReturn, 1, note.LineItems, note.DocumentID, now) {
		movement := m
		if err := p.Step(ctx, "restock:"+movement.ProductID, func(ctx context.Context) (string, error) {
			saved, err := s.stock.RecordMovement(ctx, movement)
			return saved.ID, err
		}); err != nil {
			return next, err
		}
	}
	return next, nil
}
