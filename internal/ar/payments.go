package ar

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-commerce/internal/documents"
	"github.com/odyssey-erp/odyssey-commerce/internal/shared"
	"github.com/odyssey-erp/odyssey-commerce/internal/store"
)

// AddPayment records a payment and refreshes the invoice's derived fields.
// Steps: create_payment, update_invoice.
func (s *Service) AddPayment(ctx context.Context, invoiceID string, in PaymentInput) (Invoice, Payment, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return Invoice{}, Payment{}, err
	}
	inv, err := store.Find(ctx, s.invoices, invoiceID)
	if err != nil {
		return Invoice{}, Payment{}, err
	}
	p, err := shared.StartPipeline(ctx, s.pipelines, "payment_add", invoiceID)
	if err != nil {
		return Invoice{}, Payment{}, err
	}
	defer p.Close(ctx)
	inv, pay, err := s.PaymentSteps(ctx, p, inv, in)
	if err != nil {
		return inv, pay, shared.FirstStepCause(err)
	}
	return inv, pay, nil
}

// PaymentSteps runs create_payment then update_invoice inside an existing pipeline.
func (s *Service) PaymentSteps(ctx context.Context, p *shared.Pipeline, inv Invoice, in PaymentInput) (Invoice, Payment, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return inv, Payment{}, err
	}
	now := s.clock.Now().UTC()
	pay := Payment{
		ID:        uuid.NewString(),
		InvoiceID: inv.ID,
		Amount:    documents.Round2(in.Amount),
		Date:      now,
		Method:    PaymentMethod(in.Method),
		Reference: in.Reference,
		CreatedAt: now,
	}
	if in.Date != nil {
		pay.Date = *in.Date
	}
	if pay.Method == "" {
		pay.Method = MethodTransfer
	}
	err := p.Step(ctx, "create_payment", func(ctx context.Context) (string, error) {
		saved, err := s.payments.Add(ctx, pay)
		pay = saved
		return saved.ID, err
	})
	if err != nil {
		return inv, Payment{}, err
	}
	completedAt := pay.Date
	err = p.Step(ctx, "update_invoice", func(ctx context.Context) (string, error) {
		updated, _, err := s.refresh(ctx, inv.ID, &completedAt)
		inv = updated
		return inv.ID, err
	})
	return inv, pay, err
}

// DeletePayment removes a payment and refreshes its invoice. paymentDate is
// cleared when the invoice is no longer paid. Steps: delete_payment, update_invoice.
func (s *Service) DeletePayment(ctx context.Context, paymentID string) (Invoice, error) {
	pay, err := store.Find(ctx, s.payments, paymentID)
	if err != nil {
		return Invoice{}, err
	}
	p, err := shared.StartPipeline(ctx, s.pipelines, "payment_delete", pay.InvoiceID)
	if err != nil {
		return Invoice{}, err
	}
	defer p.Close(ctx)

	err = p.Step(ctx, "delete_payment", func(ctx context.Context) (string, error) {
		return pay.ID, s.payments.Delete(ctx, pay.ID)
	})
	if err != nil {
		return Invoice{}, shared.FirstStepCause(err)
	}
	var inv Invoice
	err = p.Step(ctx, "update_invoice", func(ctx context.Context) (string, error) {
		updated, _, err := s.refresh(ctx, pay.InvoiceID, nil)
		inv = updated
		return pay.InvoiceID, err
	})
	return inv, err
}

// ReconcileInvoice recomputes amountPaid, status and paymentDate from the
// payments on file and reports whether the invoice changed.
func (s *Service) ReconcileInvoice(ctx context.Context, invoiceID string) (Invoice, bool, error) {
	return s.refresh(ctx, invoiceID, nil)
}

// ReconcileAll reconciles every invoice and returns the corrected ones.
func (s *Service) ReconcileAll(ctx context.Context) ([]Invoice, error) {
	invoices, err := s.invoices.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	byInvoice := map[string][]Payment{}
	for _, p := range payments {
		byInvoice[p.InvoiceID] = append(byInvoice[p.InvoiceID], p)
	}
	var changed []Invoice
	for _, inv := range invoices {
		next := applyPayments(inv, byInvoice[inv.ID], nil)
		if sameDerived(inv, next) {
			continue
		}
		saved, err := s.invoices.Update(ctx, next)
		if err != nil {
			return changed, err
		}
		s.logger.Warn("invoice payments reconciled",
			slog.String("invoice", inv.DocumentID),
			slog.Float64("amountPaid", saved.AmountPaid),
			slog.String("status", string(saved.Status)))
		changed = append(changed, saved)
	}
	return changed, nil
}

func (s *Service) refresh(ctx context.Context, invoiceID string, completedAt *time.Time) (Invoice, bool, error) {
	inv, err := store.Find(ctx, s.invoices, invoiceID)
	if err != nil {
		return Invoice{}, false, err
	}
	payments, err := s.PaymentsFor(ctx, invoiceID)
	if err != nil {
		return inv, false, err
	}
	next := applyPayments(inv, payments, completedAt)
	if sameDerived(inv, next) {
		return inv, false, nil
	}
	saved, err := s.invoices.Update(ctx, next)
	if err != nil {
		return inv, false, err
	}
	return saved, true, nil
}

// ListPayments returns every payment on file.
func (s *Service) ListPayments(ctx context.Context) ([]Payment, error) {
	return s.payments.GetAll(ctx)
}
