package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
)

// InvoiceRepository persists invoice aggregates
type InvoiceRepository interface {
	// Create inserts a new invoice. A duplicate for the same lease
	// and billing month (excluding voided invoices) returns a
	// conflict error.
	Create(ctx context.Context, invoice *Invoice) error

	// Save persists changes to an existing invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock persists with an optimistic version check
	SaveWithLock(ctx context.Context, invoice *Invoice, expectedVersion int) error

	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)

	// FindByLeaseAndMonth returns the non-void invoice for the lease
	// and billing month, or a not-found error.
	FindByLeaseAndMonth(ctx context.Context, leaseID uuid.UUID, month string) (*Invoice, error)

	// FindLatestBillingMonth returns the most recent non-void billing
	// month for the lease, or "" when none exists.
	FindLatestBillingMonth(ctx context.Context, leaseID uuid.UUID) (string, error)

	FindByLease(ctx context.Context, leaseID uuid.UUID, filter shared.Filter) ([]*Invoice, int64, error)

	// FindOutstandingForUpdate returns the lease's outstanding
	// invoices ordered by due date then id, row-locked for the
	// duration of the surrounding transaction.
	FindOutstandingForUpdate(ctx context.Context, leaseID uuid.UUID) ([]*Invoice, error)

	// FindOverdueCandidates returns issued, unpaid invoices whose
	// grace window has elapsed as of the given date.
	FindOverdueCandidates(ctx context.Context, asOf string) ([]*Invoice, error)

	// GenerateInvoiceNumber generates a unique invoice number
	GenerateInvoiceNumber(ctx context.Context) (string, error)
}

// PaymentRepository persists payment aggregates and their applications
type PaymentRepository interface {
	Create(ctx context.Context, payment *Payment) error
	Save(ctx context.Context, payment *Payment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	FindByNumber(ctx context.Context, number string) (*Payment, error)
	FindByLease(ctx context.Context, leaseID uuid.UUID, filter shared.Filter) ([]*Payment, int64, error)
	FindApplicationsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]PaymentApplication, error)

	// GeneratePaymentNumber generates a unique payment number
	GeneratePaymentNumber(ctx context.Context) (string, error)
}

// UnitOfWork exposes repositories bound to one transaction
type UnitOfWork interface {
	Invoices() InvoiceRepository
	Payments() PaymentRepository
	Leases() LeaseRepository
}

// TransactionManager runs a function inside a database transaction.
// The transaction commits when fn returns nil and rolls back on error.
type TransactionManager interface {
	Do(ctx context.Context, fn func(uow UnitOfWork) error) error
}
