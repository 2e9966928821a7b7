package ledger

import (
	"fmt"

	"github.com/satheeshds/receivables/models"
)

func ref(kind string, id int) (*string, *int) {
	return &kind, &id
}

// Opening returns the synthetic opening-balance entry for a new customer.
// A zero opening balance posts nothing.
func Opening(c *models.Customer) (models.LedgerEntry, bool) {
	if c.OpeningBalance == 0 {
		return models.LedgerEntry{}, false
	}
	e := models.LedgerEntry{
		CustomerID:  c.ID,
		EntryDate:   c.AsOfDate,
		Type:        models.EntryOpeningBalance,
		Description: "Opening balance",
	}
	if c.OpeningBalance > 0 {
		e.Debit = c.OpeningBalance
	} else {
		e.Credit = -c.OpeningBalance
	}
	return e, true
}

// Invoice debits the customer for an issued invoice.
func Invoice(inv *models.Invoice) models.LedgerEntry {
	e := models.LedgerEntry{
		CustomerID:  inv.CustomerID,
		EntryDate:   inv.IssueDate,
		Type:        models.EntryInvoice,
		Debit:       inv.TotalAmount,
		Description: "Invoice " + inv.InvoiceNumber,
	}
	e.ReferenceType, e.ReferenceID = ref("invoice", inv.ID)
	return e
}

// Cancellation credits back an issued invoice that was cancelled.
func Cancellation(inv *models.Invoice, on models.Date) models.LedgerEntry {
	e := models.LedgerEntry{
		CustomerID:  inv.CustomerID,
		EntryDate:   on,
		Type:        models.EntryAdjustment,
		Credit:      inv.TotalAmount,
		Description: "Cancelled invoice " + inv.InvoiceNumber,
	}
	e.ReferenceType, e.ReferenceID = ref("invoice", inv.ID)
	return e
}

// Payment credits the customer for money received.
func Payment(p *models.Payment) models.LedgerEntry {
	desc := "Payment received (" + p.Method + ")"
	if p.Reference != nil && *p.Reference != "" {
		desc += " ref " + *p.Reference
	}
	e := models.LedgerEntry{
		CustomerID:  p.CustomerID,
		EntryDate:   p.PaymentDate,
		Type:        models.EntryPayment,
		Credit:      p.TotalReceived,
		Description: desc,
	}
	e.ReferenceType, e.ReferenceID = ref("payment", p.ID)
	return e
}

// Reversal debits back a voided payment. The original entry stays posted.
func Reversal(p *models.Payment, on models.Date, reason string) models.LedgerEntry {
	e := models.LedgerEntry{
		CustomerID:  p.CustomerID,
		EntryDate:   on,
		Type:        models.EntryAdjustment,
		Debit:       p.TotalReceived,
		Description: fmt.Sprintf("Voided payment #%d: %s", p.ID, reason),
	}
	e.ReferenceType, e.ReferenceID = ref("payment", p.ID)
	return e
}

// Discount credits the customer, optionally against an invoice.
func Discount(customerID int, in *models.DiscountInput) models.LedgerEntry {
	e := models.LedgerEntry{
		CustomerID:  customerID,
		EntryDate:   *in.EntryDate,
		Type:        models.EntryDiscount,
		Credit:      in.Amount,
		Description: in.Description,
	}
	if in.InvoiceID != nil {
		e.ReferenceType, e.ReferenceID = ref("invoice", *in.InvoiceID)
	}
	return e
}

// Adjustment posts a manual debit or credit.
func Adjustment(customerID int, in *models.AdjustmentInput) models.LedgerEntry {
	return models.LedgerEntry{
		CustomerID:  customerID,
		EntryDate:   *in.EntryDate,
		Type:        models.EntryAdjustment,
		Debit:       in.Debit,
		Credit:      in.Credit,
		Description: in.Description,
	}
}
