package handlers

import (
	"github.com/go-chi/chi/v5"
	"github.com/satheeshds/receivables/config"
)

// Routes mounts the API under the router it is given.
func Routes(auth config.AuthConfig) func(r chi.Router) {
	return func(r chi.Router) {
		r.Use(BasicAuth(auth))

		// Accounts
		r.Get("/accounts", ListAccounts)
		r.Post("/accounts", CreateAccount)
		r.Get("/accounts/{id}", GetAccount)
		r.Put("/accounts/{id}", UpdateAccount)
		r.Delete("/accounts/{id}", DeleteAccount)

		// Customers
		r.Get("/customers", ListCustomers)
		r.Post("/customers", CreateCustomer)
		r.Get("/customers/{id}", GetCustomer)
		r.Put("/customers/{id}", UpdateCustomer)
		r.Delete("/customers/{id}", DeleteCustomer)

		// Allocation
		r.Get("/customers/{id}/outstanding", GetCustomerOutstanding)
		r.Post("/customers/{id}/allocations/preview", PreviewAllocation)

		// Ledger
		r.Get("/customers/{id}/ledger", GetCustomerLedger)
		r.Post("/customers/{id}/ledger/reconcile", ReconcileLedger)
		r.Post("/customers/{id}/discounts", CreateDiscount)
		r.Post("/customers/{id}/adjustments", CreateAdjustment)

		// Invoices
		r.Get("/invoices", ListInvoices)
		r.Post("/invoices", CreateInvoice)
		r.Get("/invoices/{id}", GetInvoice)
		r.Put("/invoices/{id}", UpdateInvoice)
		r.Delete("/invoices/{id}", DeleteInvoice)
		r.Post("/invoices/{id}/issue", IssueInvoice)
		r.Post("/invoices/{id}/cancel", CancelInvoice)
		r.Get("/invoices/{id}/payments", GetInvoicePayments)

		// Payments
		r.Get("/payments", ListPayments)
		r.Post("/payments", CreatePayment)
		r.Get("/payments/{id}", GetPayment)
		r.Post("/payments/{id}/void", VoidPayment)

		// Reports
		r.Get("/reports/aging", GetAgingReport)
		r.Get("/dashboard", GetDashboard)
	}
}
