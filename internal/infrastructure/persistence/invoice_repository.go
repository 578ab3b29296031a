package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// outstandingStatuses are the invoice statuses that carry a balance due
var outstandingStatuses = []billing.InvoiceStatus{
	billing.InvoiceStatusOpen,
	billing.InvoiceStatusOverdue,
	billing.InvoiceStatusPartiallyPaid,
}

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// isUniqueViolation reports whether err is a unique constraint violation.
// The partial unique index on (lease_id, billing_month) surfaces here
// when two transactions race to generate the same period.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// Create inserts a new invoice, mapping a duplicate (lease_id,
// billing_month) to a conflict error
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewConflictError(fmt.Sprintf(
				"Invoice already exists for lease %s and billing month %s",
				invoice.LeaseID, invoice.BillingMonth))
		}
		return err
	}
	return nil
}

// Save creates or updates an invoice
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewConflictError(fmt.Sprintf(
				"Invoice already exists for lease %s and billing month %s",
				invoice.LeaseID, invoice.BillingMonth))
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking against the expected version
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice, expectedVersion int) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", invoice.ID, expectedVersion).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("The invoice has been modified by another transaction")
	}
	return nil
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an invoice by its invoice number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("invoice_number = ?", number).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByLeaseAndMonth finds the non-void invoice for a lease and billing month
func (r *GormInvoiceRepository) FindByLeaseAndMonth(ctx context.Context, leaseID uuid.UUID, month string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("lease_id = ? AND billing_month = ? AND status <> ?", leaseID, month, billing.InvoiceStatusVoid).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindLatestBillingMonth returns the most recent non-void billing month
// for the lease, or "" when the lease has no invoices yet
func (r *GormInvoiceRepository) FindLatestBillingMonth(ctx context.Context, leaseID uuid.UUID) (string, error) {
	var month string
	err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("billing_month").
		Where("lease_id = ? AND status <> ?", leaseID, billing.InvoiceStatusVoid).
		Order("billing_month DESC").
		Limit(1).
		Pluck("billing_month", &month).Error
	if err != nil {
		return "", err
	}
	return month, nil
}

// FindByLease finds all invoices for a lease with pagination
func (r *GormInvoiceRepository) FindByLease(ctx context.Context, leaseID uuid.UUID, filter shared.Filter) ([]*billing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("lease_id = ?", leaseID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyFilter(query, filter, InvoiceSortFields, "billing_month", "DESC")

	var invoiceModels []models.InvoiceModel
	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, 0, err
	}

	invoices := make([]*billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = model.ToDomain()
	}
	return invoices, total, nil
}

// FindOutstandingForUpdate returns the lease's outstanding invoices in
// allocation order (due date, then id), row-locked until the
// surrounding transaction commits
func (r *GormInvoiceRepository) FindOutstandingForUpdate(ctx context.Context, leaseID uuid.UUID) ([]*billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("lease_id = ? AND status IN ?", leaseID, outstandingStatuses).
		Order("due_date ASC, id ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}

	invoices := make([]*billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = model.ToDomain()
	}
	return invoices, nil
}

// FindOverdueCandidates returns issued, unpaid invoices whose due date
// plus grace days has elapsed as of the given date
func (r *GormInvoiceRepository) FindOverdueCandidates(ctx context.Context, asOf string) ([]*billing.Invoice, error) {
	cutoff, err := time.Parse("2006-01-02", asOf)
	if err != nil {
		return nil, shared.NewValidationError(fmt.Sprintf("Invalid date %q, want YYYY-MM-DD", asOf))
	}

	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("is_issued = ? AND status IN ?", true,
			[]billing.InvoiceStatus{billing.InvoiceStatusOpen, billing.InvoiceStatusPartiallyPaid}).
		Where("due_date IS NOT NULL").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}

	// the grace window varies per invoice, so filter in memory
	invoices := make([]*billing.Invoice, 0, len(invoiceModels))
	for _, model := range invoiceModels {
		inv := model.ToDomain()
		if inv.IsOverdue(cutoff) {
			invoices = append(invoices, inv)
		}
	}
	return invoices, nil
}

// GenerateInvoiceNumber generates a unique invoice number
func (r *GormInvoiceRepository) GenerateInvoiceNumber(ctx context.Context) (string, error) {
	// Format: INV-YYYYMMDD-XXXXX
	date := time.Now().Format("20060102")
	prefix := fmt.Sprintf("INV-%s-", date)

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("invoice_number").
		Where("invoice_number LIKE ?", prefix+"%").
		Order("invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &maxNumber).Error; err != nil {
		return "", err
	}

	var nextNum int
	if maxNumber != "" {
		parts := strings.Split(maxNumber, "-")
		if len(parts) == 3 {
			fmt.Sscanf(parts[2], "%d", &nextNum)
		}
	}
	nextNum++

	return fmt.Sprintf("%s%05d", prefix, nextNum), nil
}

// applyFilter applies pagination and whitelisted ordering to a query.
// Sort fields outside allowedFields fall back to defaultField so caller
// input never reaches the ORDER BY clause unchecked.
func applyFilter(query *gorm.DB, filter shared.Filter, allowedFields map[string]bool, defaultField, defaultDir string) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	field := ValidateSortField(filter.OrderBy, allowedFields, defaultField)
	dir := defaultDir
	if filter.OrderDir != "" {
		dir = ValidateSortOrder(filter.OrderDir)
	}
	return query.Order(field + " " + dir)
}

// Ensure GormInvoiceRepository implements billing.InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
