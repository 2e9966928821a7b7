package allocation

import (
	"sort"
	"strconv"
	"time"

	"github.com/satheeshds/receivables/models"
)

// Kind distinguishes the opening balance from invoice obligations.
type Kind string

const (
	KindOpeningBalance Kind = "opening_balance"
	KindInvoice        Kind = "invoice"
)

// OpeningBalanceKey addresses the opening-balance target of a plan.
const OpeningBalanceKey = "opening_balance"

// InvoiceKey addresses an invoice target of a plan.
func InvoiceKey(invoiceID int) string {
	return "invoice:" + strconv.Itoa(invoiceID)
}

// Target is one outstanding obligation a payment can be applied to.
type Target struct {
	Kind        Kind         `json:"kind"`
	InvoiceID   int          `json:"invoice_id,omitempty"`
	Number      string       `json:"number,omitempty"`
	DueDate     *models.Date `json:"due_date,omitempty"`
	CreatedAt   time.Time    `json:"-"`
	Outstanding models.Money `json:"outstanding"`
}

// Key identifies the target within a plan.
func (t Target) Key() string {
	if t.Kind == KindOpeningBalance {
		return OpeningBalanceKey
	}
	return InvoiceKey(t.InvoiceID)
}

// Targets builds the allocation targets for a customer: the unpaid part of a
// debit opening balance first, then every open invoice with a pending amount.
func Targets(c *models.Customer, invoices []models.Invoice) []Target {
	targets := make([]Target, 0, len(invoices)+1)
	if remaining := c.RemainingOpening(); remaining > 0 {
		asOf := c.AsOfDate
		targets = append(targets, Target{
			Kind:        KindOpeningBalance,
			Number:      "Opening balance",
			DueDate:     &asOf,
			CreatedAt:   c.CreatedAt,
			Outstanding: remaining,
		})
	}
	for i := range invoices {
		inv := &invoices[i]
		if inv.CustomerID != c.ID || !inv.Open() {
			continue
		}
		targets = append(targets, Target{
			Kind:        KindInvoice,
			InvoiceID:   inv.ID,
			Number:      inv.InvoiceNumber,
			DueDate:     inv.DueDate,
			CreatedAt:   inv.CreatedAt,
			Outstanding: inv.Pending(),
		})
	}
	return targets
}

// TotalOutstanding sums what the targets still owe.
func TotalOutstanding(targets []Target) models.Money {
	var total models.Money
	for _, t := range targets {
		total += t.Outstanding.Positive()
	}
	return total
}

// Order returns the targets in settlement order: the opening balance first,
// then invoices by ascending due date. Undated invoices follow dated ones and
// ties keep their input order.
func Order(targets []Target) []Target {
	sorted := make([]Target, 0, len(targets))
	var invoices []Target
	for _, t := range targets {
		if t.Kind == KindOpeningBalance {
			sorted = append(sorted, t)
			continue
		}
		invoices = append(invoices, t)
	}
	sort.SliceStable(invoices, func(i, j int) bool {
		a, b := invoices[i].DueDate, invoices[j].DueDate
		switch {
		case a != nil && b != nil:
			return a.Before(b.Time)
		case a != nil:
			return true
		default:
			return false
		}
	})
	return append(sorted, invoices...)
}
