package billing

// Services bundles the billing application services a composition root
// wires up. The API layer that fronts them lives outside this module;
// anything embedding the billing core consumes the services from here.
type Services struct {
	Invoices *InvoiceService
	Payments *PaymentService
}
