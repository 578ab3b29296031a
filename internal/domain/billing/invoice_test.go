package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers

func rentItem(amount string) LineItemInput {
	return LineItemInput{
		Type:      LineItemTypeRent,
		Name:      "Monthly rent",
		Qty:       decimal.NewFromInt(1),
		UnitPrice: decimal.RequireFromString(amount),
	}
}

func createTestInvoice(t *testing.T, amount string) *Invoice {
	inv, err := NewInvoice(
		uuid.New(),
		"INV-20260301-00001",
		"2026-03",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		5,
		[]LineItemInput{rentItem(amount)},
	)
	require.NoError(t, err)
	return inv
}

func createIssuedInvoice(t *testing.T, amount string) *Invoice {
	inv := createTestInvoice(t, amount)
	require.NoError(t, inv.Issue(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	return inv
}

// ============================================
// InvoiceStatus Tests
// ============================================

func TestInvoiceStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  InvoiceStatus
		isValid bool
	}{
		{InvoiceStatusDraft, true},
		{InvoiceStatusOpen, true},
		{InvoiceStatusPartiallyPaid, true},
		{InvoiceStatusPaid, true},
		{InvoiceStatusOverdue, true},
		{InvoiceStatusVoid, true},
		{InvoiceStatus("INVALID"), false},
		{InvoiceStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}

func TestInvoiceStatus_IsTerminal(t *testing.T) {
	assert.True(t, InvoiceStatusVoid.IsTerminal())
	assert.False(t, InvoiceStatusPaid.IsTerminal())
	assert.False(t, InvoiceStatusOverdue.IsTerminal())
	assert.False(t, InvoiceStatusDraft.IsTerminal())
}

func TestInvoiceStatus_CanApplyPayment(t *testing.T) {
	tests := []struct {
		status   InvoiceStatus
		canApply bool
	}{
		{InvoiceStatusDraft, true},
		{InvoiceStatusOpen, true},
		{InvoiceStatusPartiallyPaid, true},
		{InvoiceStatusOverdue, true},
		{InvoiceStatusPaid, true},
		{InvoiceStatusVoid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.canApply, tt.status.CanApplyPayment())
		})
	}
}

func TestInvoiceStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    InvoiceStatus
		to      InvoiceStatus
		allowed bool
	}{
		{InvoiceStatusDraft, InvoiceStatusOpen, true},
		{InvoiceStatusDraft, InvoiceStatusVoid, true},
		{InvoiceStatusDraft, InvoiceStatusPaid, false},
		{InvoiceStatusOpen, InvoiceStatusPartiallyPaid, true},
		{InvoiceStatusOpen, InvoiceStatusPaid, true},
		{InvoiceStatusOpen, InvoiceStatusOverdue, true},
		{InvoiceStatusOverdue, InvoiceStatusPaid, true},
		{InvoiceStatusOverdue, InvoiceStatusOpen, false},
		{InvoiceStatusPaid, InvoiceStatusVoid, true},
		{InvoiceStatusPaid, InvoiceStatusOpen, false},
		{InvoiceStatusVoid, InvoiceStatusOpen, false},
		{InvoiceStatusVoid, InvoiceStatusPaid, false},
		{InvoiceStatusOpen, InvoiceStatusOpen, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

// ============================================
// LineItem Tests
// ============================================

func TestNewLineItem_Success(t *testing.T) {
	item, err := NewLineItem(LineItemInput{
		Type:      LineItemTypeRent,
		Name:      "Monthly rent",
		Qty:       decimal.NewFromInt(1),
		UnitPrice: decimal.RequireFromString("1500.00"),
	})

	require.NoError(t, err)
	assert.Equal(t, "1500.00", item.Amount.StringFixed(2))
	assert.True(t, item.TaxAmount.IsZero())
	assert.NotEqual(t, uuid.Nil, item.ID)
}

func TestNewLineItem_AmountDerivedNotTrusted(t *testing.T) {
	item, err := NewLineItem(LineItemInput{
		Type:      LineItemTypeOther,
		Name:      "Parking",
		Qty:       decimal.NewFromInt(3),
		UnitPrice: decimal.RequireFromString("33.333"),
	})

	require.NoError(t, err)
	// 3 × 33.333 = 99.999 rounds half-up to 100.00
	assert.Equal(t, "100.00", item.Amount.StringFixed(2))
}

func TestNewLineItem_WithTax(t *testing.T) {
	taxRate := decimal.RequireFromString("0.0825")
	item, err := NewLineItem(LineItemInput{
		Type:      LineItemTypeOther,
		Name:      "Cleaning fee",
		Qty:       decimal.NewFromInt(1),
		UnitPrice: decimal.RequireFromString("100.00"),
		TaxRate:   &taxRate,
	})

	require.NoError(t, err)
	assert.Equal(t, "8.25", item.TaxAmount.StringFixed(2))
}

func TestNewLineItem_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input LineItemInput
	}{
		{"invalid type", LineItemInput{Type: "bogus", Name: "x", Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)}},
		{"empty name", LineItemInput{Type: LineItemTypeRent, Name: "", Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(1)}},
		{"zero qty", LineItemInput{Type: LineItemTypeRent, Name: "x", Qty: decimal.Zero, UnitPrice: decimal.NewFromInt(1)}},
		{"negative qty", LineItemInput{Type: LineItemTypeRent, Name: "x", Qty: decimal.NewFromInt(-1), UnitPrice: decimal.NewFromInt(1)}},
		{"negative price", LineItemInput{Type: LineItemTypeRent, Name: "x", Qty: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(-5)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLineItem(tt.input)
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

// ============================================
// NewInvoice Tests
// ============================================

func TestNewInvoice_Success(t *testing.T) {
	inv := createTestInvoice(t, "1500.00")

	assert.Equal(t, InvoiceStatusDraft, inv.Status)
	assert.Equal(t, "1500.00", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "1500.00", inv.TotalAmount.StringFixed(2))
	assert.Equal(t, "1500.00", inv.BalanceDue.StringFixed(2))
	assert.True(t, inv.AmountPaid.IsZero())
	assert.False(t, inv.IsIssued)
	assert.Len(t, inv.GetDomainEvents(), 1)
}

func TestNewInvoice_Validation(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	items := []LineItemInput{rentItem("1000")}

	tests := []struct {
		name string
		fn   func() (*Invoice, error)
	}{
		{"nil lease", func() (*Invoice, error) {
			return NewInvoice(uuid.Nil, "INV-1", "2026-03", start, end, 5, items)
		}},
		{"empty number", func() (*Invoice, error) {
			return NewInvoice(uuid.New(), "", "2026-03", start, end, 5, items)
		}},
		{"bad billing month", func() (*Invoice, error) {
			return NewInvoice(uuid.New(), "INV-1", "March 2026", start, end, 5, items)
		}},
		{"period reversed", func() (*Invoice, error) {
			return NewInvoice(uuid.New(), "INV-1", "2026-03", end, start, 5, items)
		}},
		{"negative grace", func() (*Invoice, error) {
			return NewInvoice(uuid.New(), "INV-1", "2026-03", start, end, -1, items)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.fn()
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}

func TestInvoice_Recalculate_SumsItemsAndTax(t *testing.T) {
	taxRate := decimal.RequireFromString("0.10")
	inv, err := NewInvoice(
		uuid.New(), "INV-20260301-00002", "2026-03",
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		5,
		[]LineItemInput{
			rentItem("1200.00"),
			{Type: LineItemTypeOther, Name: "Pet fee", Qty: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("50.00"), TaxRate: &taxRate},
		},
	)
	require.NoError(t, err)

	assert.Equal(t, "1250.00", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "5.00", inv.TaxAmount.StringFixed(2))
	assert.Equal(t, "1255.00", inv.TotalAmount.StringFixed(2))
	assert.Equal(t, "1255.00", inv.BalanceDue.StringFixed(2))
}

// ============================================
// Issue Tests
// ============================================

func TestInvoice_Issue(t *testing.T) {
	inv := createTestInvoice(t, "1000.00")
	issueDate := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	err := inv.Issue(issueDate)

	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusOpen, inv.Status)
	assert.True(t, inv.IsIssued)
	require.NotNil(t, inv.IssueDate)
	require.NotNil(t, inv.DueDate)
	assert.Equal(t, issueDate.AddDate(0, 0, 30), *inv.DueDate)
}

func TestInvoice_Issue_Idempotent(t *testing.T) {
	inv := createIssuedInvoice(t, "1000.00")
	firstDue := *inv.DueDate

	err := inv.Issue(time.Now())

	require.NoError(t, err)
	assert.Equal(t, firstDue, *inv.DueDate)
	assert.Equal(t, InvoiceStatusOpen, inv.Status)
}

func TestInvoice_Issue_KeepsPresetDueDate(t *testing.T) {
	inv := createTestInvoice(t, "1000.00")
	due := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	inv.DueDate = &due

	require.NoError(t, inv.Issue(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, due, *inv.DueDate)
}

// ============================================
// ApplyPayment Tests
// ============================================

func TestInvoice_ApplyPayment_Partial(t *testing.T) {
	inv := createIssuedInvoice(t, "1000.00")

	err := inv.ApplyPayment(valueobject.NewMoneyUSD(decimal.RequireFromString("400.00")), time.Now())

	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
	assert.Equal(t, "400.00", inv.AmountPaid.StringFixed(2))
	assert.Equal(t, "600.00", inv.BalanceDue.StringFixed(2))
	assert.Nil(t, inv.PaidAt)
}

func TestInvoice_ApplyPayment_Full(t *testing.T) {
	inv := createIssuedInvoice(t, "1000.00")

	err := inv.ApplyPayment(valueobject.NewMoneyUSD(decimal.RequireFromString("1000.00")), time.Now())

	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.BalanceDue.IsZero())
	assert.NotNil(t, inv.PaidAt)
}

func TestInvoice_ApplyPayment_BalanceInvariant(t *testing.T) {
	inv := createIssuedInvoice(t, "1000.00")

	require.NoError(t, inv.ApplyPayment(valueobject.NewMoneyUSD(decimal.RequireFromString("333.33")), time.Now()))
	require.NoError(t, inv.ApplyPayment(valueobject.NewMoneyUSD(decimal.RequireFromString("333.33")), time.Now()))

	// balance_due == total_amount − amount_paid at every step
	assert.Equal(t, inv.TotalAmount.Sub(inv.AmountPaid).StringFixed(2), inv.BalanceDue.StringFixed(2))
	assert.Equal(t, "333.34", inv.BalanceDue.StringFixed(2))
}

func TestInvoice_ApplyPayment_VoidRejected(t *testing.T) {
	inv := createTestInvoice(t, "1000.00")
	require.NoError(t, inv.Void())

	err := inv.ApplyPayment(valueobject.NewMoneyUSD(decimal.RequireFromString("100.00")), time.Now())

	require.Error(t, err)
	assert.True(t, shared.IsStateError(err))
}

func TestInvoice_ApplyPayment_NonPositiveRejected(t *testing.T) {
	inv := createIssuedInvoice(t, "1000.00")

	err := inv.ApplyPayment(valueobject.ZeroUSD(), time.Now())

	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestInvoice_ApplyPayment_ToDraft(t *testing.T) {
	// a draft invoice has no legal transition to paid or partially_paid,
	// so payments are rejected until it is issued
	inv := createTestInvoice(t, "1000.00")

	err := inv.ApplyPayment(valueobject.NewMoneyUSD(decimal.RequireFromString("1000.00")), time.Now())

	require.Error(t, err)
	assert.True(t, shared.IsStateError(err))
}

// ============================================
// Void Tests
// ============================================

func TestInvoice_Void(t *testing.T) {
	inv := createIssuedInvoice(t, "1000.00")

	err := inv.Void()

	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusVoid, inv.Status)
	assert.NotNil(t, inv.VoidedAt)
	assert.True(t, inv.BalanceDue.IsZero())
}

func TestInvoice_Void_WithPaymentsRejected(t *testing.T) {
	inv := createIssuedInvoice(t, "1000.00")
	require.NoError(t, inv.ApplyPayment(valueobject.NewMoneyUSD(decimal.RequireFromString("100.00")), time.Now()))

	err := inv.Void()

	require.Error(t, err)
	assert.True(t, shared.IsStateError(err))
	assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
}

func TestInvoice_Void_AlreadyVoidRejected(t *testing.T) {
	inv := createTestInvoice(t, "1000.00")
	require.NoError(t, inv.Void())

	err := inv.Void()

	require.Error(t, err)
	assert.True(t, shared.IsStateError(err))
}

// ============================================
// Item mutation Tests
// ============================================

func TestInvoice_AddItem_Recalculates(t *testing.T) {
	inv := createTestInvoice(t, "1000.00")

	_, err := inv.AddItem(LineItemInput{
		Type:      LineItemTypeLateFee,
		Name:      "Late fee",
		Qty:       decimal.NewFromInt(1),
		UnitPrice: decimal.RequireFromString("50.00"),
	})

	require.NoError(t, err)
	assert.Equal(t, "1050.00", inv.TotalAmount.StringFixed(2))
	assert.Equal(t, "1050.00", inv.BalanceDue.StringFixed(2))
}

func TestInvoice_RemoveItem(t *testing.T) {
	inv := createTestInvoice(t, "1000.00")
	item, err := inv.AddItem(LineItemInput{
		Type:      LineItemTypeOther,
		Name:      "Parking",
		Qty:       decimal.NewFromInt(1),
		UnitPrice: decimal.RequireFromString("75.00"),
	})
	require.NoError(t, err)

	require.NoError(t, inv.RemoveItem(item.ID))
	assert.Equal(t, "1000.00", inv.TotalAmount.StringFixed(2))

	err = inv.RemoveItem(uuid.New())
	require.Error(t, err)
	assert.True(t, shared.IsNotFound(err))
}

func TestInvoice_AddItem_VoidRejected(t *testing.T) {
	inv := createTestInvoice(t, "1000.00")
	require.NoError(t, inv.Void())

	_, err := inv.AddItem(rentItem("10"))

	require.Error(t, err)
	assert.True(t, shared.IsStateError(err))
}

// ============================================
// Overdue Tests
// ============================================

func TestInvoice_MarkOverdue(t *testing.T) {
	inv := createIssuedInvoice(t, "1000.00")
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	inv.DueDate = &due

	// inside the grace window: no change
	changed, err := inv.MarkOverdue(due.AddDate(0, 0, inv.GraceDays))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, InvoiceStatusOpen, inv.Status)

	// one day past the window
	changed, err = inv.MarkOverdue(due.AddDate(0, 0, inv.GraceDays+1))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, InvoiceStatusOverdue, inv.Status)

	// idempotent
	changed, err = inv.MarkOverdue(due.AddDate(0, 0, inv.GraceDays+2))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestInvoice_MarkOverdue_PaidUnaffected(t *testing.T) {
	inv := createIssuedInvoice(t, "1000.00")
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	inv.DueDate = &due
	require.NoError(t, inv.ApplyPayment(valueobject.NewMoneyUSD(decimal.RequireFromString("1000.00")), time.Now()))

	changed, err := inv.MarkOverdue(due.AddDate(0, 0, 30))

	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
}

func TestInvoice_OverduePaymentTransitions(t *testing.T) {
	inv := createIssuedInvoice(t, "1000.00")
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	inv.DueDate = &due
	asOf := due.AddDate(0, 0, 10)
	_, err := inv.MarkOverdue(asOf)
	require.NoError(t, err)

	// partial payment on an overdue invoice with a remaining balance
	require.NoError(t, inv.ApplyPayment(valueobject.NewMoneyUSD(decimal.RequireFromString("400.00")), asOf))
	assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)

	// settling it
	require.NoError(t, inv.ApplyPayment(valueobject.NewMoneyUSD(decimal.RequireFromString("600.00")), asOf))
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
}
