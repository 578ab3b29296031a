package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"          // Created but not yet issued
	InvoiceStatusOpen          InvoiceStatus = "open"           // Issued, no payment applied
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid" // 0 < amount_paid < total_amount
	InvoiceStatusPaid          InvoiceStatus = "paid"           // Fully paid, balance_due = 0
	InvoiceStatusOverdue       InvoiceStatus = "overdue"        // Past due date + grace, not paid
	InvoiceStatusVoid          InvoiceStatus = "void"           // Voided, terminal
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusOpen, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoid:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the invoice is in a terminal state
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusVoid
}

// CanApplyPayment returns true if payments can be applied in this status
func (s InvoiceStatus) CanApplyPayment() bool {
	return s != InvoiceStatusVoid
}

// IsOutstanding returns true if the status counts toward a lease's
// outstanding balance for payment allocation
func (s InvoiceStatus) IsOutstanding() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusOverdue || s == InvoiceStatusPartiallyPaid
}

// statusTransitions encodes the allowed explicit transitions.
// Derived transitions (via recalculation) always pass through this table.
var statusTransitions = map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:         {InvoiceStatusOpen, InvoiceStatusVoid},
	InvoiceStatusOpen:          {InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusVoid, InvoiceStatusOverdue},
	InvoiceStatusPartiallyPaid: {InvoiceStatusPaid, InvoiceStatusVoid, InvoiceStatusOverdue},
	InvoiceStatusOverdue:       {InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusVoid},
	InvoiceStatusPaid:          {InvoiceStatusVoid},
	InvoiceStatusVoid:          {},
}

// CanTransitionTo returns true if the status may move to the target status
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	if s == target {
		return true
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// LineItemType represents the kind of charge a line item carries
type LineItemType string

const (
	LineItemTypeRent     LineItemType = "rent"
	LineItemTypeLateFee  LineItemType = "late_fee"
	LineItemTypeDeposit  LineItemType = "deposit"
	LineItemTypeOther    LineItemType = "other"
	LineItemTypeCredit   LineItemType = "credit"
	LineItemTypeDiscount LineItemType = "discount"
)

// IsValid checks if the line item type is valid
func (t LineItemType) IsValid() bool {
	switch t {
	case LineItemTypeRent, LineItemTypeLateFee, LineItemTypeDeposit,
		LineItemTypeOther, LineItemTypeCredit, LineItemTypeDiscount:
		return true
	}
	return false
}

// LineItem represents a single charge on an invoice.
// Amount is always recomputed from Qty × UnitPrice, never trusted from input.
type LineItem struct {
	ID          uuid.UUID        `json:"id"`
	Type        LineItemType     `json:"type"`
	Name        string           `json:"name"`
	Qty         decimal.Decimal  `json:"qty"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Amount      decimal.Decimal  `json:"amount"`
	TaxRate     *decimal.Decimal `json:"tax_rate,omitempty"`
	TaxAmount   decimal.Decimal  `json:"tax_amount"`
	PeriodStart *time.Time       `json:"period_start,omitempty"`
	PeriodEnd   *time.Time       `json:"period_end,omitempty"`
}

// LineItemInput carries caller-supplied values for a new line item
type LineItemInput struct {
	Type        LineItemType
	Name        string
	Qty         decimal.Decimal
	UnitPrice   decimal.Decimal
	TaxRate     *decimal.Decimal
	PeriodStart *time.Time
	PeriodEnd   *time.Time
}

// NewLineItem validates the input and builds a line item with derived amounts
func NewLineItem(in LineItemInput) (*LineItem, error) {
	if !in.Type.IsValid() {
		return nil, shared.NewValidationError(fmt.Sprintf("Invalid line item type %q", in.Type))
	}
	if in.Name == "" {
		return nil, shared.NewValidationError("Line item name cannot be empty")
	}
	if in.Qty.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError(fmt.Sprintf("Line item %q quantity must be positive", in.Name))
	}
	if in.UnitPrice.IsNegative() {
		return nil, shared.NewValidationError(fmt.Sprintf("Line item %q unit price cannot be negative", in.Name))
	}

	item := &LineItem{
		ID:          uuid.New(),
		Type:        in.Type,
		Name:        in.Name,
		Qty:         in.Qty,
		UnitPrice:   in.UnitPrice,
		TaxRate:     in.TaxRate,
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
	}
	item.recompute()
	return item, nil
}

// recompute derives Amount and TaxAmount from Qty, UnitPrice and TaxRate,
// rounding half-up to two decimal places.
func (li *LineItem) recompute() {
	li.Amount = li.Qty.Mul(li.UnitPrice).Round(2)
	if li.TaxRate != nil {
		li.TaxAmount = li.Amount.Mul(*li.TaxRate).Round(2)
	} else {
		li.TaxAmount = decimal.Zero
	}
}

// GetAmountMoney returns the line amount as Money
func (li *LineItem) GetAmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(li.Amount)
}

// LineItems is an ordered slice of LineItem that implements GORM
// Scanner/Valuer for JSONB storage
type LineItems []LineItem

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}

	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// Invoice is the aggregate root for a single billing-period invoice.
// It owns its line items, derived totals and status transitions.
// Invoices are never deleted, only voided.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber string
	LeaseID       uuid.UUID
	BillingMonth  string // YYYY-MM, unique per lease among non-void invoices
	PeriodStart   time.Time
	PeriodEnd     time.Time
	IssueDate     *time.Time
	DueDate       *time.Time
	GraceDays     int
	Status        InvoiceStatus
	LineItems     LineItems
	Subtotal      decimal.Decimal
	TaxAmount     decimal.Decimal
	TotalAmount   decimal.Decimal
	AmountPaid    decimal.Decimal
	BalanceDue    decimal.Decimal
	IsIssued      bool
	Notes         string
	PaidAt        *time.Time
	VoidedAt      *time.Time
}

// NewInvoice creates a new invoice in draft status.
// All validation happens before any field is set: period ordering,
// billing month format, and per-item quantity/price checks.
func NewInvoice(
	leaseID uuid.UUID,
	invoiceNumber string,
	billingMonth string,
	periodStart, periodEnd time.Time,
	graceDays int,
	items []LineItemInput,
) (*Invoice, error) {
	if leaseID == uuid.Nil {
		return nil, shared.NewValidationError("Lease ID cannot be empty")
	}
	if invoiceNumber == "" {
		return nil, shared.NewValidationError("Invoice number cannot be empty")
	}
	if _, err := ParseBillingMonth(billingMonth); err != nil {
		return nil, shared.NewValidationError(fmt.Sprintf("Invalid billing month %q, want YYYY-MM", billingMonth))
	}
	if periodEnd.Before(periodStart) {
		return nil, shared.NewValidationError("Period start must not be after period end")
	}
	if graceDays < 0 {
		return nil, shared.NewValidationError("Grace days cannot be negative")
	}

	lineItems := make(LineItems, 0, len(items))
	for _, in := range items {
		item, err := NewLineItem(in)
		if err != nil {
			return nil, err
		}
		lineItems = append(lineItems, *item)
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     invoiceNumber,
		LeaseID:           leaseID,
		BillingMonth:      billingMonth,
		PeriodStart:       periodStart,
		PeriodEnd:         periodEnd,
		GraceDays:         graceDays,
		Status:            InvoiceStatusDraft,
		LineItems:         lineItems,
		AmountPaid:        decimal.Zero,
	}
	inv.Recalculate()

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// Recalculate re-derives subtotal, tax, total and balance from the current
// line items and amount paid, then derives the status. It performs no I/O
// and must be called after any item mutation.
func (inv *Invoice) Recalculate() {
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, item := range inv.LineItems {
		subtotal = subtotal.Add(item.Amount)
		tax = tax.Add(item.TaxAmount)
	}
	inv.Subtotal = subtotal.Round(2)
	inv.TaxAmount = tax.Round(2)
	inv.TotalAmount = inv.Subtotal.Add(inv.TaxAmount)

	balance := inv.TotalAmount.Sub(inv.AmountPaid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	inv.BalanceDue = balance

	inv.Status = inv.deriveStatus(time.Now())
}

// deriveStatus computes the status from the invoice's own state.
// Transitions are derived, never caller-chosen.
func (inv *Invoice) deriveStatus(now time.Time) InvoiceStatus {
	switch {
	case inv.VoidedAt != nil:
		return InvoiceStatusVoid
	case inv.BalanceDue.LessThanOrEqual(decimal.Zero) && inv.TotalAmount.IsPositive():
		return InvoiceStatusPaid
	case inv.AmountPaid.IsPositive() && inv.BalanceDue.IsPositive():
		return InvoiceStatusPartiallyPaid
	case inv.isPastGrace(now):
		return InvoiceStatusOverdue
	case inv.IsIssued:
		return InvoiceStatusOpen
	default:
		return InvoiceStatusDraft
	}
}

// isPastGrace reports whether due date plus grace days has elapsed
func (inv *Invoice) isPastGrace(now time.Time) bool {
	if inv.DueDate == nil {
		return false
	}
	return inv.DueDate.AddDate(0, 0, inv.GraceDays).Before(now)
}

// transitionTo performs an explicit transition, validating it against the
// state machine table
func (inv *Invoice) transitionTo(target InvoiceStatus) error {
	if !inv.Status.CanTransitionTo(target) {
		return shared.NewStateError(fmt.Sprintf("Cannot transition invoice from %s to %s", inv.Status, target))
	}
	inv.Status = target
	return nil
}

// Issue marks the invoice as issued. Issuing an already-issued invoice is
// a no-op. The issue date defaults to today and the due date to issue
// date + 30 days when unset.
func (inv *Invoice) Issue(issueDate time.Time) error {
	if inv.IsIssued {
		return nil
	}
	if inv.Status == InvoiceStatusVoid {
		return shared.NewStateError("Cannot issue a void invoice")
	}

	if issueDate.IsZero() {
		issueDate = time.Now()
	}
	inv.IssueDate = &issueDate
	if inv.DueDate == nil {
		due := issueDate.AddDate(0, 0, 30)
		inv.DueDate = &due
	}
	if err := inv.transitionTo(InvoiceStatusOpen); err != nil {
		return err
	}
	inv.IsIssued = true
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceIssuedEvent(inv))

	return nil
}

// ApplyPayment applies a payment amount to the invoice: amount paid is
// incremented, balance due recomputed (floored at zero) and the status
// derived. PaidAt is set once the balance reaches zero.
func (inv *Invoice) ApplyPayment(amount valueobject.Money, date time.Time) error {
	if !inv.Status.CanApplyPayment() {
		return shared.NewStateError(fmt.Sprintf("Cannot apply payment to invoice in %s status", inv.Status))
	}
	if !amount.IsPositive() {
		return shared.NewValidationError("Payment amount must be positive")
	}

	inv.AmountPaid = inv.AmountPaid.Add(amount.Amount())
	balance := inv.TotalAmount.Sub(inv.AmountPaid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	inv.BalanceDue = balance

	target := inv.deriveStatus(date)
	if err := inv.transitionTo(target); err != nil {
		return err
	}

	if inv.BalanceDue.IsZero() && inv.PaidAt == nil {
		paidAt := date
		if paidAt.IsZero() {
			paidAt = time.Now()
		}
		inv.PaidAt = &paidAt
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	} else {
		inv.AddDomainEvent(NewInvoicePartiallyPaidEvent(inv, amount))
	}

	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()

	return nil
}

// Void voids the invoice. Invoices with applied payments cannot be voided.
// Void is terminal: no further mutation is allowed.
func (inv *Invoice) Void() error {
	if inv.Status == InvoiceStatusVoid {
		return shared.NewStateError("Invoice is already void")
	}
	if inv.AmountPaid.IsPositive() {
		return shared.NewStateError("Cannot void an invoice with applied payments")
	}
	if err := inv.transitionTo(InvoiceStatusVoid); err != nil {
		return err
	}

	now := time.Now()
	inv.VoidedAt = &now
	inv.BalanceDue = decimal.Zero
	inv.UpdatedAt = now
	inv.IncrementVersion()

	inv.AddDomainEvent(NewInvoiceVoidedEvent(inv))

	return nil
}

// AddItem appends a line item and recalculates totals
func (inv *Invoice) AddItem(in LineItemInput) (*LineItem, error) {
	if inv.Status.IsTerminal() {
		return nil, shared.NewStateError("Cannot modify a void invoice")
	}
	item, err := NewLineItem(in)
	if err != nil {
		return nil, err
	}
	inv.LineItems = append(inv.LineItems, *item)
	inv.Recalculate()
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	return item, nil
}

// RemoveItem removes a line item by id and recalculates totals
func (inv *Invoice) RemoveItem(itemID uuid.UUID) error {
	if inv.Status.IsTerminal() {
		return shared.NewStateError("Cannot modify a void invoice")
	}
	for i, item := range inv.LineItems {
		if item.ID == itemID {
			inv.LineItems = append(inv.LineItems[:i], inv.LineItems[i+1:]...)
			inv.Recalculate()
			inv.UpdatedAt = time.Now()
			inv.IncrementVersion()
			return nil
		}
	}
	return shared.NewNotFoundError(fmt.Sprintf("Line item %s not found on invoice %s", itemID, inv.InvoiceNumber))
}

// MarkOverdue transitions an unpaid invoice past its grace period to
// overdue. Returns true if the status changed.
func (inv *Invoice) MarkOverdue(asOf time.Time) (bool, error) {
	if inv.Status.IsTerminal() || inv.Status == InvoiceStatusPaid || inv.Status == InvoiceStatusOverdue {
		return false, nil
	}
	if !inv.IsIssued || !inv.isPastGrace(asOf) {
		return false, nil
	}
	if err := inv.transitionTo(InvoiceStatusOverdue); err != nil {
		return false, err
	}
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
	inv.AddDomainEvent(NewInvoiceOverdueEvent(inv, asOf))
	return true, nil
}

// Helper methods

// GetSubtotalMoney returns the subtotal as Money
func (inv *Invoice) GetSubtotalMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(inv.Subtotal)
}

// GetTotalAmountMoney returns the total amount as Money
func (inv *Invoice) GetTotalAmountMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(inv.TotalAmount)
}

// GetAmountPaidMoney returns the amount paid as Money
func (inv *Invoice) GetAmountPaidMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(inv.AmountPaid)
}

// GetBalanceDueMoney returns the balance due as Money
func (inv *Invoice) GetBalanceDueMoney() valueobject.Money {
	return valueobject.NewMoneyUSD(inv.BalanceDue)
}

// IsVoid returns true if the invoice is void
func (inv *Invoice) IsVoid() bool {
	return inv.Status == InvoiceStatusVoid
}

// IsPaid returns true if the invoice is fully paid
func (inv *Invoice) IsPaid() bool {
	return inv.Status == InvoiceStatusPaid
}

// IsOverdue returns true if the invoice is past due date + grace and unpaid
func (inv *Invoice) IsOverdue(asOf time.Time) bool {
	if inv.Status.IsTerminal() || inv.Status == InvoiceStatusPaid {
		return false
	}
	return inv.isPastGrace(asOf)
}

// DaysOverdue returns the number of days past the due date (0 if not overdue)
func (inv *Invoice) DaysOverdue(asOf time.Time) int {
	if !inv.IsOverdue(asOf) || inv.DueDate == nil {
		return 0
	}
	return int(asOf.Sub(*inv.DueDate).Hours() / 24)
}

// PaidPercentage returns the percentage of the total that has been paid (0-100)
func (inv *Invoice) PaidPercentage() decimal.Decimal {
	if inv.TotalAmount.IsZero() {
		return decimal.NewFromInt(100)
	}
	return inv.AmountPaid.Div(inv.TotalAmount).Mul(decimal.NewFromInt(100)).Round(2)
}
