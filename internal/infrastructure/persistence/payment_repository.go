package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements billing.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// Create inserts a new payment and its application rows
func (r *GormPaymentRepository) Create(ctx context.Context, payment *billing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewConflictError(fmt.Sprintf(
				"Payment %s already exists", payment.PaymentNumber))
		}
		return err
	}
	return nil
}

// Save creates or updates a payment. Application rows are upserted so
// that newly allocated splits are written alongside existing ones.
func (r *GormPaymentRepository) Save(ctx context.Context, payment *billing.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	return r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(model).Error
}

// FindByID finds a payment by its ID, applications included
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Preload("Applications").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds a payment by its payment number
func (r *GormPaymentRepository) FindByNumber(ctx context.Context, number string) (*billing.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).
		Preload("Applications").
		Where("payment_number = ?", number).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByLease finds all payments for a lease with pagination
func (r *GormPaymentRepository) FindByLease(ctx context.Context, leaseID uuid.UUID, filter shared.Filter) ([]*billing.Payment, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("lease_id = ?", leaseID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyFilter(query, filter, PaymentSortFields, "received_date", "DESC")

	var paymentModels []models.PaymentModel
	if err := query.Preload("Applications").Find(&paymentModels).Error; err != nil {
		return nil, 0, err
	}

	payments := make([]*billing.Payment, len(paymentModels))
	for i, model := range paymentModels {
		payments[i] = model.ToDomain()
	}
	return payments, total, nil
}

// FindApplicationsByInvoice returns all payment splits applied to an invoice
func (r *GormPaymentRepository) FindApplicationsByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]billing.PaymentApplication, error) {
	var appModels []models.PaymentApplicationModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("applied_at ASC").
		Find(&appModels).Error; err != nil {
		return nil, err
	}

	apps := make([]billing.PaymentApplication, len(appModels))
	for i, model := range appModels {
		apps[i] = *model.ToDomain()
	}
	return apps, nil
}

// GeneratePaymentNumber generates a unique payment number
func (r *GormPaymentRepository) GeneratePaymentNumber(ctx context.Context) (string, error) {
	// Format: PAY-YYYYMMDD-XXXXX
	date := time.Now().Format("20060102")
	prefix := fmt.Sprintf("PAY-%s-", date)

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Select("payment_number").
		Where("payment_number LIKE ?", prefix+"%").
		Order("payment_number DESC").
		Limit(1).
		Pluck("payment_number", &maxNumber).Error; err != nil {
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

// Ensure GormPaymentRepository implements billing.PaymentRepository
var _ billing.PaymentRepository = (*GormPaymentRepository)(nil)
