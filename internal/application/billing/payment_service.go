package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/strategy"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/propman/backend/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentService records payments and allocates them across a lease's
// outstanding invoices
type PaymentService struct {
	txManager  billing.TransactionManager
	leaseRepo  billing.LeaseRepository
	allocation strategy.PaymentAllocationStrategy
	auditor    billing.AuditRecorder
	validate   *validator.Validate
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	txManager billing.TransactionManager,
	leaseRepo billing.LeaseRepository,
	allocation strategy.PaymentAllocationStrategy,
	auditor billing.AuditRecorder,
) *PaymentService {
	if auditor == nil {
		auditor = billing.NopAuditRecorder{}
	}
	return &PaymentService{
		txManager:  txManager,
		leaseRepo:  leaseRepo,
		allocation: allocation,
		auditor:    auditor,
		validate:   validator.New(),
	}
}

// ApplyPaymentRequest records money received against a lease
type ApplyPaymentRequest struct {
	LeaseID      uuid.UUID             `validate:"required"`
	Amount       decimal.Decimal       `validate:"required"`
	Method       billing.PaymentMethod `validate:"required"`
	ReceivedDate time.Time
	Reference    string `validate:"max=200"`
	Notes        string
	ActorID      *uuid.UUID
}

// ApplyPaymentResult reports how the payment was split
type ApplyPaymentResult struct {
	Payment     *billing.Payment      `json:"payment"`
	Allocations []strategy.Allocation `json:"allocations"`
	Applied     decimal.Decimal       `json:"applied"`
	Unapplied   decimal.Decimal       `json:"unapplied"`
}

// ApplyPayment records a payment and allocates it across the lease's
// outstanding invoices in FIFO order inside one transaction. Either
// the payment row, every application row and every invoice update
// commit together, or none do. Any amount beyond the lease's total
// outstanding balance remains on the payment as unapplied credit.
func (s *PaymentService) ApplyPayment(ctx context.Context, req ApplyPaymentRequest) (*ApplyPaymentResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.NewValidationError(fmt.Sprintf("Invalid payment request: %v", err))
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("Payment amount must be positive")
	}

	lease, err := s.leaseRepo.FindByID(ctx, req.LeaseID)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.NewNotFoundError(fmt.Sprintf("Lease %s not found", req.LeaseID))
		}
		return nil, err
	}

	receivedDate := req.ReceivedDate
	if receivedDate.IsZero() {
		receivedDate = time.Now()
	}

	var result *ApplyPaymentResult
	err = s.txManager.Do(ctx, func(uow billing.UnitOfWork) error {
		number, err := uow.Payments().GeneratePaymentNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate payment number: %w", err)
		}

		amount, err := valueAmount(req.Amount, lease.Currency)
		if err != nil {
			return err
		}

		payment, err := billing.NewPayment(lease.ID, number, amount, req.Method, receivedDate, req.Reference)
		if err != nil {
			return err
		}
		payment.Notes = req.Notes

		// row-lock the outstanding invoices so concurrent payments
		// against the same lease serialize on allocation order
		outstanding, err := uow.Invoices().FindOutstandingForUpdate(ctx, lease.ID)
		if err != nil {
			return fmt.Errorf("failed to load outstanding invoices: %w", err)
		}

		allocation, err := s.allocation.Allocate(ctx, strategy.AllocationContext{
			LeaseID:       lease.ID,
			PaymentAmount: payment.Amount,
			PaymentDate:   receivedDate,
		}, toOutstanding(outstanding))
		if err != nil {
			return fmt.Errorf("allocation failed: %w", err)
		}

		byID := make(map[uuid.UUID]*billing.Invoice, len(outstanding))
		for _, inv := range outstanding {
			byID[inv.ID] = inv
		}

		for _, alloc := range allocation.Allocations {
			invoice := byID[alloc.InvoiceID]
			if invoice == nil {
				return shared.NewNotFoundError(fmt.Sprintf("Allocated invoice %s not loaded", alloc.InvoiceID))
			}

			applied, err := valueAmount(alloc.Amount, lease.Currency)
			if err != nil {
				return err
			}

			expectedVersion := invoice.Version
			if err := invoice.ApplyPayment(applied, receivedDate); err != nil {
				return err
			}
			if err := uow.Invoices().SaveWithLock(ctx, invoice, expectedVersion); err != nil {
				return err
			}

			if _, err := payment.ApplyToInvoice(invoice.ID, applied, receivedDate); err != nil {
				return err
			}
		}

		if err := uow.Payments().Create(ctx, payment); err != nil {
			return err
		}

		result = &ApplyPaymentResult{
			Payment:     payment,
			Allocations: allocation.Allocations,
			Applied:     allocation.TotalAllocated,
			Unapplied:   allocation.Remaining,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditor.Record(ctx, billing.AuditEntry{
		Action:     billing.AuditActionPaymentCreated,
		EntityType: "payment",
		EntityID:   result.Payment.ID,
		ActorID:    req.ActorID,
		Detail: map[string]interface{}{
			"payment_number": result.Payment.PaymentNumber,
			"lease_id":       result.Payment.LeaseID.String(),
			"amount":         result.Payment.Amount.StringFixed(2),
			"method":         string(result.Payment.Method),
		},
	})
	for _, alloc := range result.Allocations {
		s.auditor.Record(ctx, billing.AuditEntry{
			Action:     billing.AuditActionPaymentApplied,
			EntityType: "invoice",
			EntityID:   alloc.InvoiceID,
			ActorID:    req.ActorID,
			Detail: map[string]interface{}{
				"payment_number": result.Payment.PaymentNumber,
				"invoice_number": alloc.InvoiceNumber,
				"applied_amount": alloc.Amount.StringFixed(2),
				"balance_after":  alloc.BalanceAfter.StringFixed(2),
			},
		})
	}

	logger.L(ctx).Info("payment applied",
		zap.String("payment_number", result.Payment.PaymentNumber),
		zap.String("lease_id", result.Payment.LeaseID.String()),
		zap.String("amount", result.Payment.Amount.StringFixed(2)),
		zap.String("applied", result.Applied.StringFixed(2)),
		zap.String("unapplied", result.Unapplied.StringFixed(2)),
		zap.Int("invoices", len(result.Allocations)),
	)

	return result, nil
}

// GetPayment returns a single payment with its applications
func (s *PaymentService) GetPayment(ctx context.Context, paymentID uuid.UUID) (*billing.Payment, error) {
	var payment *billing.Payment
	err := s.txManager.Do(ctx, func(uow billing.UnitOfWork) error {
		var err error
		payment, err = uow.Payments().FindByID(ctx, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// FindPaymentsByLease returns the lease's payments with pagination
func (s *PaymentService) FindPaymentsByLease(ctx context.Context, leaseID uuid.UUID, filter shared.Filter) ([]*billing.Payment, int64, error) {
	var (
		payments []*billing.Payment
		total    int64
	)
	err := s.txManager.Do(ctx, func(uow billing.UnitOfWork) error {
		var err error
		payments, total, err = uow.Payments().FindByLease(ctx, leaseID, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// toOutstanding maps invoices to the allocation strategy's view
func toOutstanding(invoices []*billing.Invoice) []strategy.OutstandingInvoice {
	out := make([]strategy.OutstandingInvoice, len(invoices))
	for i, inv := range invoices {
		var due time.Time
		if inv.DueDate != nil {
			due = *inv.DueDate
		}
		out[i] = strategy.OutstandingInvoice{
			ID:            inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			DueDate:       due,
			TotalAmount:   inv.TotalAmount,
			AmountPaid:    inv.AmountPaid,
			BalanceDue:    inv.BalanceDue,
		}
	}
	return out
}

// valueAmount builds a Money in the lease's currency
func valueAmount(amount decimal.Decimal, currency string) (valueobject.Money, error) {
	return valueobject.NewMoney(amount, valueobject.Currency(currency))
}
