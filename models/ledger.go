package models

import "time"

// Ledger entry types.
const (
	EntryOpeningBalance = "opening_balance"
	EntryInvoice        = "invoice"
	EntryPayment        = "payment"
	EntryAdjustment     = "adjustment"
	EntryDiscount       = "discount"
)

// LedgerEntry is one posted row of a customer's running account.
// Rows are never updated once written.
type LedgerEntry struct {
	ID            int       `json:"id"`
	CustomerID    int       `json:"customer_id"`
	EntryDate     Date      `json:"entry_date"`
	Type          string    `json:"type"`
	Debit         Money     `json:"debit"`
	Credit        Money     `json:"credit"`
	Balance       Money     `json:"balance"`
	ReferenceType *string   `json:"reference_type"`
	ReferenceID   *int      `json:"reference_id"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

// Net is the entry's effect on the balance.
func (e *LedgerEntry) Net() Money {
	return e.Debit - e.Credit
}

// DiscountInput grants a discount to a customer, optionally against one invoice.
type DiscountInput struct {
	Amount      Money  `json:"amount" validate:"gt=0"`
	InvoiceID   *int   `json:"invoice_id" validate:"omitempty,gt=0"`
	EntryDate   *Date  `json:"entry_date"`
	Description string `json:"description" validate:"max=500"`
}

func (d *DiscountInput) Validate() string {
	if msg := firstViolation(d); msg != "" {
		return msg
	}
	if d.EntryDate == nil || d.EntryDate.IsZero() {
		today := Today()
		d.EntryDate = &today
	}
	if d.Description == "" {
		d.Description = "Discount"
	}
	return ""
}

// AdjustmentInput posts a manual debit or credit correction.
type AdjustmentInput struct {
	Debit       Money  `json:"debit" validate:"gte=0"`
	Credit      Money  `json:"credit" validate:"gte=0"`
	EntryDate   *Date  `json:"entry_date"`
	Description string `json:"description" validate:"required,max=500"`
}

func (a *AdjustmentInput) Validate() string {
	if msg := firstViolation(a); msg != "" {
		return msg
	}
	if (a.Debit == 0) == (a.Credit == 0) {
		return "exactly one of debit or credit must be positive"
	}
	if a.EntryDate == nil || a.EntryDate.IsZero() {
		today := Today()
		a.EntryDate = &today
	}
	return ""
}
