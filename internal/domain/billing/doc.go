// Package billing contains the billing ledger core of the property
// management backend: the Invoice and Payment aggregates, recurring
// invoice generation with proration, and FIFO payment allocation.
//
// The package owns all writes to invoices, payments and payment
// applications. Leases and portfolios are external collaborators
// referenced by id only; the REST/CRUD layer that calls into this core
// lives elsewhere.
package billing
