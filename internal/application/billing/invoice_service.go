package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService generates, voids and queries invoices
type InvoiceService struct {
	txManager  billing.TransactionManager
	leaseRepo  billing.LeaseRepository
	portfolios billing.PortfolioRepository
	auditor    billing.AuditRecorder
	validate   *validator.Validate
}

// NewInvoiceService creates a new InvoiceService. A nil portfolio
// repository or auditor falls back to the no-op implementation.
func NewInvoiceService(
	txManager billing.TransactionManager,
	leaseRepo billing.LeaseRepository,
	portfolios billing.PortfolioRepository,
	auditor billing.AuditRecorder,
) *InvoiceService {
	if portfolios == nil {
		portfolios = billing.NopPortfolioRepository{}
	}
	if auditor == nil {
		auditor = billing.NopAuditRecorder{}
	}
	return &InvoiceService{
		txManager:  txManager,
		leaseRepo:  leaseRepo,
		portfolios: portfolios,
		auditor:    auditor,
		validate:   validator.New(),
	}
}

// AdditionalCharge is a one-time charge included alongside the
// recurring rent line on a generated invoice
type AdditionalCharge struct {
	Type      billing.LineItemType `validate:"required"`
	Name      string               `validate:"required,max=200"`
	Qty       decimal.Decimal
	UnitPrice decimal.Decimal
	TaxRate   *decimal.Decimal
}

// GenerateInvoiceRequest asks for the next invoice of a lease
type GenerateInvoiceRequest struct {
	LeaseID uuid.UUID `validate:"required"`
	// Force suppresses the duplicate-period conflict (returning the
	// live invoice for the period instead) and generates past the
	// lease end or for an inactive lease.
	Force bool
	// BillingDate pins the target period to the month containing it.
	// When unset the period after the latest non-void invoice is
	// billed.
	BillingDate       *time.Time
	AdditionalCharges []AdditionalCharge `validate:"dive"`
	ActorID           *uuid.UUID
}

// GenerateNextInvoice computes and persists the next invoice for a
// lease. The first invoice covers the lease's start month, prorated
// when the lease starts mid-month; every later call bills the month
// after the latest non-void invoice, or the month of BillingDate when
// one is given. When a non-void invoice already covers the target
// period the call fails with a conflict error — unless additional
// charges were requested, which are appended to the existing invoice
// instead of creating a second row for the period. The existence check
// and the insert share one transaction, and the partial unique index
// on (lease_id, billing_month) turns a racing duplicate into the same
// conflict error.
func (s *InvoiceService) GenerateNextInvoice(ctx context.Context, req GenerateInvoiceRequest) (*billing.Invoice, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(fmt.Sprintf("Invalid generate request: %v", err))
	}

	lease, err := s.leaseRepo.FindByID(ctx, req.LeaseID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewNotFoundError(fmt.Sprintf("Lease %s not found", req.LeaseID))
		}
		return nil, err
	}
	if !lease.IsActive() && !req.Force {
		return nil, shared.NewStateError(fmt.Sprintf("Lease %s is %s, cannot generate invoices", lease.ID, lease.Status))
	}
	if lease.PortfolioID != uuid.Nil {
		ok, err := s.portfolios.Exists(ctx, lease.PortfolioID)
		if err != nil {
			return nil, fmt.Errorf("failed to check portfolio: %w", err)
		}
		if !ok {
			return nil, shared.NewNotFoundError(fmt.Sprintf("Portfolio %s not found", lease.PortfolioID))
		}
	}

	var (
		invoice  *billing.Invoice
		appended bool
		reused   bool
	)
	err = s.txManager.Do(ctx, func(uow billing.UnitOfWork) error {
		period, firstInvoice, err := s.targetPeriod(ctx, uow, lease, req)
		if err != nil {
			return err
		}

		existing, err := uow.Invoices().FindByLeaseAndMonth(ctx, lease.ID, period.Month)
		if err != nil && !shared.IsNotFound(err) {
			return err
		}
		if existing != nil {
			invoice, appended, err = appendToExisting(ctx, uow, existing, req)
			reused = err == nil && !appended
			return err
		}

		number, err := uow.Invoices().GenerateInvoiceNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate invoice number: %w", err)
		}

		items := buildLineItems(lease, period, firstInvoice, req.AdditionalCharges)
		invoice, err = billing.NewInvoice(
			lease.ID,
			number,
			period.Month,
			period.PeriodStart,
			period.PeriodEnd,
			lease.GraceDays,
			items,
		)
		if err != nil {
			return err
		}

		due := billing.DueDateFor(period, lease.BillingDay)
		invoice.DueDate = &due
		if err := invoice.Issue(time.Now()); err != nil {
			return err
		}

		// racing duplicate inserts surface as a conflict error here
		return uow.Invoices().Create(ctx, invoice)
	})
	if err != nil {
		return nil, err
	}
	if reused {
		// force on an already-billed period hands back the live
		// invoice untouched; nothing to audit
		return invoice, nil
	}

	action := billing.AuditActionInvoiceCreated
	if appended {
		action = billing.AuditActionInvoiceUpdated
	}
	s.auditor.Record(ctx, billing.AuditEntry{
		Action:     action,
		EntityType: "invoice",
		EntityID:   invoice.ID,
		ActorID:    req.ActorID,
		Detail: map[string]interface{}{
			"invoice_number": invoice.InvoiceNumber,
			"lease_id":       invoice.LeaseID.String(),
			"billing_month":  invoice.BillingMonth,
			"total_amount":   invoice.TotalAmount.StringFixed(2),
		},
	})

	logger.L(ctx).Info("invoice generated",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("lease_id", invoice.LeaseID.String()),
		zap.String("billing_month", invoice.BillingMonth),
		zap.String("total_amount", invoice.TotalAmount.StringFixed(2)),
		zap.Bool("appended", appended),
	)

	return invoice, nil
}

// appendToExisting resolves a generate call whose target period is
// already billed: with charges they are added to the live invoice (no
// new row); without charges the caller gets a conflict, or the
// untouched invoice under force.
func appendToExisting(ctx context.Context, uow billing.UnitOfWork, existing *billing.Invoice, req GenerateInvoiceRequest) (*billing.Invoice, bool, error) {
	if len(req.AdditionalCharges) == 0 {
		if req.Force {
			return existing, false, nil
		}
		return nil, false, shared.NewConflictError(fmt.Sprintf(
			"Invoice %s already covers billing month %s", existing.InvoiceNumber, existing.BillingMonth))
	}

	expectedVersion := existing.Version
	for _, c := range req.AdditionalCharges {
		if _, err := existing.AddItem(c.toLineItemInput()); err != nil {
			return nil, false, err
		}
	}
	if err := uow.Invoices().SaveWithLock(ctx, existing, expectedVersion); err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

// targetPeriod selects the billing period for the generate call and
// reports whether it would be the lease's first invoice. Without a
// billing date the period after the latest non-void invoice is chosen.
func (s *InvoiceService) targetPeriod(ctx context.Context, uow billing.UnitOfWork, lease *billing.Lease, req GenerateInvoiceRequest) (billing.BillingPeriod, bool, error) {
	latest, err := uow.Invoices().FindLatestBillingMonth(ctx, lease.ID)
	if err != nil {
		return billing.BillingPeriod{}, false, fmt.Errorf("failed to find latest billing month: %w", err)
	}
	firstInvoice := latest == ""

	var period billing.BillingPeriod
	switch {
	case req.BillingDate != nil:
		period, err = billing.PeriodForDate(lease.StartDate, *req.BillingDate)
		if err != nil {
			return billing.BillingPeriod{}, false, err
		}
	case firstInvoice:
		period = billing.FirstBillingPeriod(lease.StartDate)
	default:
		period, err = billing.NextBillingPeriod(latest)
		if err != nil {
			return billing.BillingPeriod{}, false, err
		}
	}

	if period.PeriodAfterLease(lease.EndDate) && !req.Force {
		return billing.BillingPeriod{}, false, shared.NewStateError(fmt.Sprintf(
			"Lease %s ended %s, no further billing periods", lease.ID, lease.EndDate.Format("2006-01-02")))
	}
	return period.ClampToLeaseEnd(lease.EndDate), firstInvoice, nil
}

// toLineItemInput converts a requested charge to a domain line item
func (c AdditionalCharge) toLineItemInput() billing.LineItemInput {
	qty := c.Qty
	if qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}
	return billing.LineItemInput{
		Type:      c.Type,
		Name:      c.Name,
		Qty:       qty,
		UnitPrice: c.UnitPrice,
		TaxRate:   c.TaxRate,
	}
}

// buildLineItems assembles the rent line (prorated for a partial
// period), the security deposit on the lease's first invoice, plus any
// one-time charges
func buildLineItems(lease *billing.Lease, period billing.BillingPeriod, firstInvoice bool, charges []AdditionalCharge) []billing.LineItemInput {
	rent := billing.ProratedRent(lease.GetRentMoney(), period)
	rentName := "Monthly rent"
	if period.Prorated {
		rentName = fmt.Sprintf("Prorated rent (%s – %s)",
			period.PeriodStart.Format("Jan 2"), period.PeriodEnd.Format("Jan 2, 2006"))
	}

	start := period.PeriodStart
	end := period.PeriodEnd
	items := []billing.LineItemInput{{
		Type:        billing.LineItemTypeRent,
		Name:        rentName,
		Qty:         decimal.NewFromInt(1),
		UnitPrice:   rent.Amount(),
		PeriodStart: &start,
		PeriodEnd:   &end,
	}}

	// the security deposit is billed once, on the very first invoice,
	// spanning the whole lease term
	if firstInvoice && lease.Deposit.IsPositive() {
		leaseStart := lease.StartDate
		items = append(items, billing.LineItemInput{
			Type:        billing.LineItemTypeDeposit,
			Name:        "Security deposit",
			Qty:         decimal.NewFromInt(1),
			UnitPrice:   lease.Deposit,
			PeriodStart: &leaseStart,
			PeriodEnd:   lease.EndDate,
		})
	}

	for _, c := range charges {
		items = append(items, c.toLineItemInput())
	}
	return items
}

// VoidInvoice voids an invoice that has no applied payments
func (s *InvoiceService) VoidInvoice(ctx context.Context, invoiceID uuid.UUID, actorID *uuid.UUID) (*billing.Invoice, error) {
	var invoice *billing.Invoice
	err := s.txManager.Do(ctx, func(uow billing.UnitOfWork) error {
		var err error
		invoice, err = uow.Invoices().FindByID(ctx, invoiceID)
		if err != nil {
			if shared.IsNotFound(err) {
				return shared.NewNotFoundError(fmt.Sprintf("Invoice %s not found", invoiceID))
			}
			return err
		}

		expectedVersion := invoice.Version
		if err := invoice.Void(); err != nil {
			return err
		}
		return uow.Invoices().SaveWithLock(ctx, invoice, expectedVersion)
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, billing.AuditEntry{
		Action:     billing.AuditActionInvoiceVoided,
		EntityType: "invoice",
		EntityID:   invoice.ID,
		ActorID:    actorID,
		Detail: map[string]interface{}{
			"invoice_number": invoice.InvoiceNumber,
			"billing_month":  invoice.BillingMonth,
		},
	})

	logger.L(ctx).Info("invoice voided",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("lease_id", invoice.LeaseID.String()),
	)

	return invoice, nil
}

// GetInvoice returns a single invoice by id
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*billing.Invoice, error) {
	var invoice *billing.Invoice
	err := s.txManager.Do(ctx, func(uow billing.UnitOfWork) error {
		var err error
		invoice, err = uow.Invoices().FindByID(ctx, invoiceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// FindInvoicesByLease returns the lease's invoices with pagination
func (s *InvoiceService) FindInvoicesByLease(ctx context.Context, leaseID uuid.UUID, filter shared.Filter) ([]*billing.Invoice, int64, error) {
	var (
		invoices []*billing.Invoice
		total    int64
	)
	err := s.txManager.Do(ctx, func(uow billing.UnitOfWork) error {
		var err error
		invoices, total, err = uow.Invoices().FindByLease(ctx, leaseID, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// MarkOverdueInvoices sweeps issued, unpaid invoices whose grace
// window has elapsed and transitions them to overdue. Returns the
// number of invoices transitioned.
func (s *InvoiceService) MarkOverdueInvoices(ctx context.Context, asOf time.Time) (int, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}

	var marked int
	err := s.txManager.Do(ctx, func(uow billing.UnitOfWork) error {
		candidates, err := uow.Invoices().FindOverdueCandidates(ctx, asOf.Format("2006-01-02"))
		if err != nil {
			return err
		}

		for _, invoice := range candidates {
			expectedVersion := invoice.Version
			changed, err := invoice.MarkOverdue(asOf)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			if err := uow.Invoices().SaveWithLock(ctx, invoice, expectedVersion); err != nil {
				// a concurrent payment moved the invoice on; skip it
				if shared.IsConflict(err) {
					logger.L(ctx).Warn("skipping overdue sweep for concurrently modified invoice",
						zap.String("invoice_number", invoice.InvoiceNumber))
					continue
				}
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if marked > 0 {
		logger.L(ctx).Info("overdue sweep complete",
			zap.Int("marked", marked),
			zap.Time("as_of", asOf),
		)
	}
	return marked, nil
}

// IsDuplicatePeriod reports whether err is the conflict raised when an
// invoice already exists for a lease and billing month
func IsDuplicatePeriod(err error) bool {
	var de *shared.DomainError
	return errors.As(err, &de) && de.Code == shared.CodeConflict
}
