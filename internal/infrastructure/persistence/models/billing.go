package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/billing"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LeaseModel is the persistence model for the Lease entity.
type LeaseModel struct {
	BaseModel
	UnitID      uuid.UUID           `gorm:"type:uuid;not null;index"`
	PortfolioID uuid.UUID           `gorm:"type:uuid;index"`
	TenantName  string              `gorm:"type:varchar(200);not null"`
	Status      billing.LeaseStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	StartDate   time.Time           `gorm:"not null"`
	EndDate     *time.Time
	Rent        decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	Deposit     decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	Currency    string          `gorm:"type:varchar(3);not null;default:'USD'"`
	BillingDay  int             `gorm:"not null;default:1"`
	GraceDays   int             `gorm:"not null;default:5"`
}

// TableName returns the table name for GORM
func (LeaseModel) TableName() string {
	return "leases"
}

// ToDomain converts the persistence model to a domain Lease entity.
func (m *LeaseModel) ToDomain() *billing.Lease {
	return &billing.Lease{
		BaseEntity:  m.BaseModel.ToDomain(),
		UnitID:      m.UnitID,
		PortfolioID: m.PortfolioID,
		TenantName:  m.TenantName,
		Status:      m.Status,
		StartDate:   m.StartDate,
		EndDate:     m.EndDate,
		Rent:        m.Rent,
		Deposit:     m.Deposit,
		Currency:    m.Currency,
		BillingDay:  m.BillingDay,
		GraceDays:   m.GraceDays,
	}
}

// FromDomain populates the persistence model from a domain Lease entity.
func (m *LeaseModel) FromDomain(l *billing.Lease) {
	m.FromDomainBaseEntity(l.BaseEntity)
	m.UnitID = l.UnitID
	m.PortfolioID = l.PortfolioID
	m.TenantName = l.TenantName
	m.Status = l.Status
	m.StartDate = l.StartDate
	m.EndDate = l.EndDate
	m.Rent = l.Rent
	m.Deposit = l.Deposit
	m.Currency = l.Currency
	m.BillingDay = l.BillingDay
	m.GraceDays = l.GraceDays
}

// LeaseModelFromDomain creates a new persistence model from a domain Lease.
func LeaseModelFromDomain(l *billing.Lease) *LeaseModel {
	m := &LeaseModel{}
	m.FromDomain(l)
	return m
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Uniqueness of (lease_id, billing_month) among non-void invoices is
// enforced by a partial unique index created in the migrations.
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber string                `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_number"`
	LeaseID       uuid.UUID             `gorm:"type:uuid;not null;index"`
	BillingMonth  string                `gorm:"type:varchar(7);not null;index"`
	PeriodStart   time.Time             `gorm:"not null"`
	PeriodEnd     time.Time             `gorm:"not null"`
	IssueDate     *time.Time            `gorm:"index"`
	DueDate       *time.Time            `gorm:"index"`
	GraceDays     int                   `gorm:"not null;default:0"`
	Status        billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	LineItems     billing.LineItems     `gorm:"type:jsonb;default:'[]'"`
	Subtotal      decimal.Decimal       `gorm:"type:decimal(15,2);not null"`
	TaxAmount     decimal.Decimal       `gorm:"type:decimal(15,2);not null;default:0"`
	TotalAmount   decimal.Decimal       `gorm:"type:decimal(15,2);not null"`
	AmountPaid    decimal.Decimal       `gorm:"type:decimal(15,2);not null;default:0"`
	BalanceDue    decimal.Decimal       `gorm:"type:decimal(15,2);not null;index"`
	IsIssued      bool                  `gorm:"not null;default:false"`
	Notes         string                `gorm:"type:text"`
	PaidAt        *time.Time
	VoidedAt      *time.Time
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		InvoiceNumber: m.InvoiceNumber,
		LeaseID:       m.LeaseID,
		BillingMonth:  m.BillingMonth,
		PeriodStart:   m.PeriodStart,
		PeriodEnd:     m.PeriodEnd,
		IssueDate:     m.IssueDate,
		DueDate:       m.DueDate,
		GraceDays:     m.GraceDays,
		Status:        m.Status,
		LineItems:     m.LineItems,
		Subtotal:      m.Subtotal,
		TaxAmount:     m.TaxAmount,
		TotalAmount:   m.TotalAmount,
		AmountPaid:    m.AmountPaid,
		BalanceDue:    m.BalanceDue,
		IsIssued:      m.IsIssued,
		Notes:         m.Notes,
		PaidAt:        m.PaidAt,
		VoidedAt:      m.VoidedAt,
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.LeaseID = inv.LeaseID
	m.BillingMonth = inv.BillingMonth
	m.PeriodStart = inv.PeriodStart
	m.PeriodEnd = inv.PeriodEnd
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.GraceDays = inv.GraceDays
	m.Status = inv.Status
	m.LineItems = inv.LineItems
	m.Subtotal = inv.Subtotal
	m.TaxAmount = inv.TaxAmount
	m.TotalAmount = inv.TotalAmount
	m.AmountPaid = inv.AmountPaid
	m.BalanceDue = inv.BalanceDue
	m.IsIssued = inv.IsIssued
	m.Notes = inv.Notes
	m.PaidAt = inv.PaidAt
	m.VoidedAt = inv.VoidedAt
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	AggregateModel
	PaymentNumber   string                    `gorm:"type:varchar(50);not null;uniqueIndex:idx_payments_number"`
	LeaseID         uuid.UUID                 `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal           `gorm:"type:decimal(15,2);not null"`
	Currency        string                    `gorm:"type:varchar(3);not null;default:'USD'"`
	AppliedAmount   decimal.Decimal           `gorm:"type:decimal(15,2);not null;default:0"`
	UnappliedAmount decimal.Decimal           `gorm:"type:decimal(15,2);not null;default:0"`
	Method          billing.PaymentMethod     `gorm:"type:varchar(20);not null"`
	ReceivedDate    time.Time                 `gorm:"not null;index"`
	Reference       string                    `gorm:"type:varchar(200)"`
	Notes           string                    `gorm:"type:text"`
	Applications    []PaymentApplicationModel `gorm:"foreignKey:PaymentID;references:ID"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *billing.Payment {
	apps := make([]billing.PaymentApplication, len(m.Applications))
	for i, app := range m.Applications {
		apps[i] = *app.ToDomain()
	}
	return &billing.Payment{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		PaymentNumber:   m.PaymentNumber,
		LeaseID:         m.LeaseID,
		Amount:          m.Amount,
		Currency:        m.Currency,
		AppliedAmount:   m.AppliedAmount,
		UnappliedAmount: m.UnappliedAmount,
		Method:          m.Method,
		ReceivedDate:    m.ReceivedDate,
		Reference:       m.Reference,
		Notes:           m.Notes,
		Applications:    apps,
	}
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *billing.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.PaymentNumber = p.PaymentNumber
	m.LeaseID = p.LeaseID
	m.Amount = p.Amount
	m.Currency = p.Currency
	m.AppliedAmount = p.AppliedAmount
	m.UnappliedAmount = p.UnappliedAmount
	m.Method = p.Method
	m.ReceivedDate = p.ReceivedDate
	m.Reference = p.Reference
	m.Notes = p.Notes
	m.Applications = make([]PaymentApplicationModel, len(p.Applications))
	for i := range p.Applications {
		m.Applications[i].FromDomain(&p.Applications[i])
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment.
func PaymentModelFromDomain(p *billing.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentApplicationModel is the persistence model for a payment split
// applied to a single invoice.
type PaymentApplicationModel struct {
	BaseModel
	PaymentID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	InvoiceID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	AppliedAmount decimal.Decimal `gorm:"type:decimal(15,2);not null"`
	AppliedAt     time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentApplicationModel) TableName() string {
	return "payment_applications"
}

// ToDomain converts the persistence model to a domain PaymentApplication entity.
func (m *PaymentApplicationModel) ToDomain() *billing.PaymentApplication {
	return &billing.PaymentApplication{
		BaseEntity:    m.BaseModel.ToDomain(),
		PaymentID:     m.PaymentID,
		InvoiceID:     m.InvoiceID,
		AppliedAmount: m.AppliedAmount,
		AppliedAt:     m.AppliedAt,
	}
}

// FromDomain populates the persistence model from a domain PaymentApplication.
func (m *PaymentApplicationModel) FromDomain(app *billing.PaymentApplication) {
	m.FromDomainBaseEntity(app.BaseEntity)
	m.PaymentID = app.PaymentID
	m.InvoiceID = app.InvoiceID
	m.AppliedAmount = app.AppliedAmount
	m.AppliedAt = app.AppliedAt
}
