package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/stretchr/testify/mock"
)

// =============================================================================
// Mock Repositories for Billing Services
// =============================================================================

// MockInvoiceRepository is a mock implementation of billing.InvoiceRepository
type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice, expectedVersion int) error {
	args := m.Called(ctx, invoice, expectedVersion)
	return args.Error(0)
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByLeaseAndMonth(ctx context.Context, leaseID uuid.UUID, month string) (*billing.Invoice, error) {
	args := m.Called(ctx, leaseID, month)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindLatestBillingMonth(ctx context.Context, leaseID uuid.UUID) (string, error) {
	args := m.Called(ctx, leaseID)
	return args.String(0), args.Error(1)
}

func (m *MockInvoiceRepository) FindByLease(ctx context.Context, leaseID uuid.UUID, filter shared.Filter) ([]*billing.Invoice, int64, error) {
	args := m.Called(ctx, leaseID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*billing.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) FindOutstandingForUpdate(ctx context.Context, leaseID uuid.UUID) ([]*billing.Invoice, error) {
	args := m.Called(ctx, leaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindOverdueCandidates(ctx context.Context, asOf string) ([]*billing.Invoice, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*billing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) GenerateInvoiceNumber(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockPaymentRepository is a mock implementation of billing.PaymentRepository
type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *billing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByNumber(ctx context.Context, number string) (*billing.Payment, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByLease(ctx context.Context, leaseID uuid.UUID, filter shared.Filter) ([]*billing.Payment, int64, error) {
	args := m.Called(ctx, leaseID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*billing.Payment), args.Get(1).(int64), args.Error(2)
}

func (m *MockPaymentRepository) FindApplicationsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]billing.PaymentApplication, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.PaymentApplication), args.Error(1)
}

func (m *MockPaymentRepository) GeneratePaymentNumber(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockPortfolioRepository is a mock implementation of billing.PortfolioRepository
type MockPortfolioRepository struct {
	mock.Mock
}

func (m *MockPortfolioRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockLeaseRepository is a mock implementation of billing.LeaseRepository
type MockLeaseRepository struct {
	mock.Mock
}

func (m *MockLeaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Lease, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.Lease), args.Error(1)
}

func (m *MockLeaseRepository) Save(ctx context.Context, lease *billing.Lease) error {
	args := m.Called(ctx, lease)
	return args.Error(0)
}

// =============================================================================
// Test unit of work and transaction manager
// =============================================================================

// stubUnitOfWork hands out the mock repositories
type stubUnitOfWork struct {
	invoices *MockInvoiceRepository
	payments *MockPaymentRepository
	leases   *MockLeaseRepository
}

func (u *stubUnitOfWork) Invoices() billing.InvoiceRepository { return u.invoices }
func (u *stubUnitOfWork) Payments() billing.PaymentRepository { return u.payments }
func (u *stubUnitOfWork) Leases() billing.LeaseRepository     { return u.leases }

// stubTxManager runs the function directly against the stub unit of work
type stubTxManager struct {
	uow *stubUnitOfWork
	// err, when set, is returned without invoking fn
	err error
}

func (m *stubTxManager) Do(ctx context.Context, fn func(uow billing.UnitOfWork) error) error {
	if m.err != nil {
		return m.err
	}
	return fn(m.uow)
}

// recordingAuditor captures audit entries for assertions
type recordingAuditor struct {
	entries []billing.AuditEntry
}

func (r *recordingAuditor) Record(ctx context.Context, entry billing.AuditEntry) {
	r.entries = append(r.entries, entry)
}

func newTestHarness() (*stubTxManager, *MockInvoiceRepository, *MockPaymentRepository, *MockLeaseRepository, *recordingAuditor) {
	invoices := new(MockInvoiceRepository)
	payments := new(MockPaymentRepository)
	leases := new(MockLeaseRepository)
	uow := &stubUnitOfWork{invoices: invoices, payments: payments, leases: leases}
	return &stubTxManager{uow: uow}, invoices, payments, leases, &recordingAuditor{}
}
