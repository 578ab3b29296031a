package persistence

import (
	"context"

	"github.com/propman/backend/internal/domain/billing"
	"gorm.io/gorm"
)

// gormUnitOfWork bundles repositories bound to a single *gorm.DB,
// which is either the root connection or an open transaction
type gormUnitOfWork struct {
	invoices billing.InvoiceRepository
	payments billing.PaymentRepository
	leases   billing.LeaseRepository
}

func newGormUnitOfWork(db *gorm.DB) *gormUnitOfWork {
	return &gormUnitOfWork{
		invoices: NewGormInvoiceRepository(db),
		payments: NewGormPaymentRepository(db),
		leases:   NewGormLeaseRepository(db),
	}
}

// Invoices returns the transaction-bound invoice repository
func (u *gormUnitOfWork) Invoices() billing.InvoiceRepository {
	return u.invoices
}

// Payments returns the transaction-bound payment repository
func (u *gormUnitOfWork) Payments() billing.PaymentRepository {
	return u.payments
}

// Leases returns the transaction-bound lease repository
func (u *gormUnitOfWork) Leases() billing.LeaseRepository {
	return u.leases
}

// GormTransactionManager implements billing.TransactionManager on top
// of gorm's transaction support. Every multi-row financial mutation
// goes through Do so that the writes commit or roll back as one unit.
type GormTransactionManager struct {
	db *gorm.DB
}

// NewGormTransactionManager creates a new GormTransactionManager
func NewGormTransactionManager(db *gorm.DB) *GormTransactionManager {
	return &GormTransactionManager{db: db}
}

// Do runs fn inside a database transaction. The transaction commits
// when fn returns nil and rolls back on error or panic.
func (m *GormTransactionManager) Do(ctx context.Context, fn func(uow billing.UnitOfWork) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newGormUnitOfWork(tx))
	})
}

// Ensure the implementations satisfy the domain interfaces
var (
	_ billing.UnitOfWork         = (*gormUnitOfWork)(nil)
	_ billing.TransactionManager = (*GormTransactionManager)(nil)
)
