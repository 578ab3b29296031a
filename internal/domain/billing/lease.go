package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// LeaseStatus represents the lifecycle state of a lease
type LeaseStatus string

const (
	LeaseStatusActive     LeaseStatus = "active"
	LeaseStatusTerminated LeaseStatus = "terminated"
	LeaseStatusExpired    LeaseStatus = "expired"
)

// Lease is the billing view of a lease agreement. Invoices are
// generated against it; it owns the rent amount, billing day and grace
// window that drive the schedule.
type Lease struct {
	shared.BaseEntity
	UnitID      uuid.UUID       `json:"unit_id" gorm:"type:uuid;not null;index"`
	PortfolioID uuid.UUID       `json:"portfolio_id" gorm:"type:uuid;index"`
	TenantName  string          `json:"tenant_name" gorm:"not null"`
	Status      LeaseStatus     `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	StartDate   time.Time       `json:"start_date" gorm:"not null"`
	EndDate     *time.Time      `json:"end_date"`
	Rent        decimal.Decimal `json:"rent" gorm:"type:decimal(15,2);not null"`
	Deposit     decimal.Decimal `json:"deposit" gorm:"type:decimal(15,2);not null;default:0"`
	Currency    string          `json:"currency" gorm:"type:varchar(3);not null;default:'USD'"`
	BillingDay  int             `json:"billing_day" gorm:"not null;default:1"`
	GraceDays   int             `json:"grace_days" gorm:"not null;default:5"`
}

// IsActive reports whether the lease can still be billed
func (l *Lease) IsActive() bool {
	return l.Status == LeaseStatusActive
}

// GetRentMoney returns the monthly rent as a money value
func (l *Lease) GetRentMoney() valueobject.Money {
	m, _ := valueobject.NewMoney(l.Rent, valueobject.Currency(l.Currency))
	return m
}

// LeaseRepository reads lease data for billing
type LeaseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Lease, error)
	Save(ctx context.Context, lease *Lease) error
}

// PortfolioRepository answers referential-integrity checks against the
// portfolio a lease belongs to. Portfolios are owned elsewhere; the
// billing core only needs to know the referenced one still exists.
type PortfolioRepository interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// NopPortfolioRepository treats every portfolio as existing. Used when
// no portfolio store is wired in.
type NopPortfolioRepository struct{}

func (NopPortfolioRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return true, nil
}
