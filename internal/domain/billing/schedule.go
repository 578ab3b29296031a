package billing

import (
	"fmt"
	"time"

	"github.com/propman/backend/internal/domain/shared"
	"github.com/propman/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// billingMonthLayout is the canonical YYYY-MM form stored on invoices
const billingMonthLayout = "2006-01"

// ParseBillingMonth validates a YYYY-MM billing month string and
// returns the first day of that month in UTC.
func ParseBillingMonth(month string) (time.Time, error) {
	t, err := time.ParseInLocation(billingMonthLayout, month, time.UTC)
	if err != nil {
		return time.Time{}, shared.NewValidationError(
			fmt.Sprintf("Invalid billing month %q, want YYYY-MM", month))
	}
	return t, nil
}

// FormatBillingMonth renders a date as its YYYY-MM billing month
func FormatBillingMonth(t time.Time) string {
	return t.Format(billingMonthLayout)
}

// MonthBounds returns the first and last day of the month containing t
func MonthBounds(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first, last
}

// DaysInMonth returns the number of calendar days in the month of t
func DaysInMonth(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}

// BillingPeriod is one month (or partial month) a lease is billed for
type BillingPeriod struct {
	Month       string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Prorated    bool
}

// FirstBillingPeriod returns the lease's initial billing period. A
// lease starting mid-month produces a partial period from the start
// date to month end, which is billed prorated.
func FirstBillingPeriod(leaseStart time.Time) BillingPeriod {
	first, last := MonthBounds(leaseStart)
	start := leaseStart
	if start.Before(first) {
		start = first
	}
	return BillingPeriod{
		Month:       FormatBillingMonth(leaseStart),
		PeriodStart: time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		PeriodEnd:   last,
		Prorated:    start.Day() != 1,
	}
}

// NextBillingPeriod returns the full-month period following the given
// billing month.
func NextBillingPeriod(lastMonth string) (BillingPeriod, error) {
	t, err := ParseBillingMonth(lastMonth)
	if err != nil {
		return BillingPeriod{}, err
	}
	next := t.AddDate(0, 1, 0)
	first, last := MonthBounds(next)
	return BillingPeriod{
		Month:       FormatBillingMonth(next),
		PeriodStart: first,
		PeriodEnd:   last,
		Prorated:    false,
	}, nil
}

// PeriodForDate returns the billing period of the month containing the
// given date. When that month is the lease's first month the period is
// the lease's initial (possibly prorated) one. Dates before the lease
// start are rejected.
func PeriodForDate(leaseStart, date time.Time) (BillingPeriod, error) {
	first := FirstBillingPeriod(leaseStart)
	month := FormatBillingMonth(date)
	if month == first.Month {
		return first, nil
	}
	start, _ := ParseBillingMonth(first.Month)
	if date.Before(start) {
		return BillingPeriod{}, shared.NewValidationError(fmt.Sprintf(
			"Billing date %s precedes lease start %s",
			date.Format("2006-01-02"), leaseStart.Format("2006-01-02")))
	}
	mFirst, mLast := MonthBounds(date)
	return BillingPeriod{
		Month:       month,
		PeriodStart: mFirst,
		PeriodEnd:   mLast,
		Prorated:    false,
	}, nil
}

// PeriodAfterLease reports whether the period starts after the lease end
func (p BillingPeriod) PeriodAfterLease(leaseEnd *time.Time) bool {
	if leaseEnd == nil {
		return false
	}
	return p.PeriodStart.After(*leaseEnd)
}

// ClampToLeaseEnd shortens the period to the lease end date if the
// lease ends inside it, marking the result prorated.
func (p BillingPeriod) ClampToLeaseEnd(leaseEnd *time.Time) BillingPeriod {
	if leaseEnd == nil || !leaseEnd.Before(p.PeriodEnd) {
		return p
	}
	clamped := p
	clamped.PeriodEnd = time.Date(leaseEnd.Year(), leaseEnd.Month(), leaseEnd.Day(), 0, 0, 0, 0, time.UTC)
	clamped.Prorated = true
	return clamped
}

// OccupiedDays returns the inclusive day count of the period
func (p BillingPeriod) OccupiedDays() int {
	return int(p.PeriodEnd.Sub(p.PeriodStart).Hours()/24) + 1
}

// ProratedRent computes rent for a partial period: the monthly rent
// scaled by occupied days over days in the month, rounded half-up to
// cents. A full month returns the rent unchanged.
func ProratedRent(monthlyRent valueobject.Money, period BillingPeriod) valueobject.Money {
	if !period.Prorated {
		return monthlyRent
	}
	days := decimal.NewFromInt(int64(period.OccupiedDays()))
	inMonth := decimal.NewFromInt(int64(DaysInMonth(period.PeriodStart)))
	amount := monthlyRent.Amount().Mul(days).Div(inMonth).Round(2)
	m, _ := valueobject.NewMoney(amount, monthlyRent.Currency())
	return m
}

// DueDateFor computes the invoice due date: period start advanced to
// the lease's billing day, plus nothing more. Grace days are tracked on
// the invoice and only affect when it turns overdue.
func DueDateFor(period BillingPeriod, billingDay int) time.Time {
	if billingDay < 1 {
		billingDay = 1
	}
	last := DaysInMonth(period.PeriodStart)
	if billingDay > last {
		billingDay = last
	}
	return time.Date(period.PeriodStart.Year(), period.PeriodStart.Month(), billingDay, 0, 0, 0, 0, time.UTC)
}
