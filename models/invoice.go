package models

import "time"

// Invoice statuses.
const (
	InvoiceDraft     = "draft"
	InvoiceSent      = "sent"
	InvoicePartial   = "partial"
	InvoicePaid      = "paid"
	InvoiceOverdue   = "overdue"
	InvoiceCancelled = "cancelled"
)

// Invoice represents a receivable invoice to a customer.
type Invoice struct {
	ID            int       `json:"id"`
	CustomerID    int       `json:"customer_id"`
	InvoiceNumber string    `json:"invoice_number"`
	IssueDate     Date      `json:"issue_date"`
	DueDate       *Date     `json:"due_date"`
	TotalAmount   Money     `json:"total_amount"`
	PaidAmount    Money     `json:"paid_amount"`
	Status        string    `json:"status"`
	Notes         *string   `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	// Computed fields
	CustomerName  *string `json:"customer_name,omitempty"`
	PendingAmount Money   `json:"pending_amount"`
}

// Pending is total minus paid, never negative.
func (i *Invoice) Pending() Money {
	return (i.TotalAmount - i.PaidAmount).Positive()
}

// Open reports whether the invoice can still receive payments.
func (i *Invoice) Open() bool {
	switch i.Status {
	case InvoiceDraft, InvoiceCancelled, InvoicePaid:
		return false
	}
	return i.Pending() > 0
}

// EffectiveStatus marks issued invoices past their due date as overdue.
func (i *Invoice) EffectiveStatus(today Date) string {
	if i.DueDate == nil || i.Pending() == 0 {
		return i.Status
	}
	switch i.Status {
	case InvoiceSent, InvoicePartial:
		if i.DueDate.Before(today.Time) {
			return InvoiceOverdue
		}
	}
	return i.Status
}

// SettledStatus derives the status after paid changes on an issued invoice.
func SettledStatus(total, paid Money, current string) string {
	switch current {
	case InvoiceDraft, InvoiceCancelled:
		return current
	}
	switch {
	case paid >= total:
		return InvoicePaid
	case paid > 0:
		return InvoicePartial
	case current == InvoiceOverdue:
		return InvoiceOverdue
	default:
		return InvoiceSent
	}
}

// InvoiceInput is used for creating/updating invoices.
type InvoiceInput struct {
	CustomerID    int     `json:"customer_id" validate:"required,gt=0"`
	InvoiceNumber string  `json:"invoice_number" validate:"required,max=64"`
	IssueDate     *Date   `json:"issue_date"`
	DueDate       *Date   `json:"due_date"`
	TotalAmount   Money   `json:"total_amount" validate:"gte=0"`
	Status        string  `json:"status" validate:"omitempty,oneof=draft sent"`
	Notes         *string `json:"notes"`
}

func (i *InvoiceInput) Validate() string {
	if msg := firstViolation(i); msg != "" {
		return msg
	}
	if i.Status == "" {
		i.Status = InvoiceDraft
	}
	if i.IssueDate == nil || i.IssueDate.IsZero() {
		today := Today()
		i.IssueDate = &today
	}
	if i.DueDate != nil && i.DueDate.IsZero() {
		i.DueDate = nil
	}
	if i.DueDate != nil && i.DueDate.Before(i.IssueDate.Time) {
		return "due_date must not be before issue_date"
	}
	return ""
}
