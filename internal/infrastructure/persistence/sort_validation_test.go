package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"uppercase ASC", "ASC", "ASC"},
		{"lowercase asc", "asc", "ASC"},
		{"padded asc", "  asc  ", "ASC"},
		{"uppercase DESC", "DESC", "DESC"},
		{"empty defaults to DESC", "", "DESC"},
		{"garbage defaults to DESC", "sideways", "DESC"},
		{"injection attempt defaults to DESC", "ASC; DROP TABLE invoices", "DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortOrder(tt.input))
		})
	}
}

func TestValidateSortField(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		allowed  map[string]bool
		expected string
	}{
		{"allowed field passes", "due_date", InvoiceSortFields, "due_date"},
		{"empty falls back", "", InvoiceSortFields, "billing_month"},
		{"unknown field falls back", "secret_column", InvoiceSortFields, "billing_month"},
		{"injection attempt falls back", "due_date; DROP TABLE invoices", InvoiceSortFields, "billing_month"},
		{"payment field passes", "received_date", PaymentSortFields, "received_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ValidateSortField(tt.input, tt.allowed, "billing_month"))
		})
	}
}
