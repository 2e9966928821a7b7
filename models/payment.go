package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment statuses.
const (
	PaymentPosted = "posted"
	PaymentVoided = "voided"
)

// Allocation modes accepted on payment creation.
const (
	AllocateFIFO   = "fifo"
	AllocateManual = "manual"
)

// Payment is money received from a customer.
type Payment struct {
	ID                       int        `json:"id"`
	CustomerID               int        `json:"customer_id"`
	PaymentDate              Date       `json:"payment_date"`
	TotalReceived            Money      `json:"total_received"`
	Method                   string     `json:"method"`
	AccountID                *int       `json:"account_id"`
	Reference                *string    `json:"reference"`
	Notes                    *string    `json:"notes"`
	IdempotencyKey           *string    `json:"idempotency_key,omitempty"`
	OpeningBalanceAllocation Money      `json:"opening_balance_allocation"`
	Status                   string     `json:"status"`
	VoidedAt                 *time.Time `json:"voided_at,omitempty"`
	CreatedAt                time.Time  `json:"created_at"`
	// Computed fields
	CustomerName *string             `json:"customer_name,omitempty"`
	AccountName  *string             `json:"account_name,omitempty"`
	Allocated    Money               `json:"allocated"`
	Unapplied    Money               `json:"unapplied"`
	Allocations  []PaymentAllocation `json:"allocations"`
}

// PaymentAllocation is the part of a payment applied to one invoice.
type PaymentAllocation struct {
	ID            int       `json:"id"`
	PaymentID     int       `json:"payment_id"`
	InvoiceID     int       `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Amount        Money     `json:"amount"`
	CreatedAt     time.Time `json:"created_at"`
}

// AllocationInput is one manual line of a payment.
type AllocationInput struct {
	InvoiceID int   `json:"invoice_id" validate:"required,gt=0"`
	Amount    Money `json:"amount" validate:"gte=0"`
}

// PaymentInput is used for recording a payment.
type PaymentInput struct {
	CustomerID    int     `json:"customer_id" validate:"required,gt=0"`
	PaymentDate   *Date   `json:"payment_date"`
	TotalReceived Money   `json:"total_received" validate:"gt=0"`
	Method        string  `json:"method" validate:"omitempty,oneof=cash bank_transfer cheque card upi other"`
	AccountID     *int    `json:"account_id" validate:"omitempty,gt=0"`
	Reference     *string `json:"reference" validate:"omitempty,max=128"`
	Notes         *string `json:"notes"`
	// Mode is fifo (default) or manual.
	Mode                     string            `json:"mode" validate:"omitempty,oneof=fifo manual"`
	OpeningBalanceAllocation Money             `json:"opening_balance_allocation" validate:"gte=0"`
	Allocations              []AllocationInput `json:"allocations" validate:"dive"`
	// ExpectedVersion is the customer version seen when the allocation was previewed.
	ExpectedVersion *int    `json:"expected_version"`
	IdempotencyKey  *string `json:"idempotency_key"`
}

func (p *PaymentInput) Validate() string {
	if msg := firstViolation(p); msg != "" {
		return msg
	}
	if p.Mode == "" {
		p.Mode = AllocateFIFO
	}
	if p.Method == "" {
		p.Method = "cash"
	}
	if p.PaymentDate == nil || p.PaymentDate.IsZero() {
		today := Today()
		p.PaymentDate = &today
	}
	if p.Mode == AllocateFIFO && (len(p.Allocations) > 0 || p.OpeningBalanceAllocation > 0) {
		return "allocations are only accepted in manual mode"
	}
	if p.IdempotencyKey != nil {
		// Any RFC 4122 spelling is accepted; the canonical form is what gets stored.
		u, err := uuid.Parse(*p.IdempotencyKey)
		if err != nil {
			return "idempotency_key must be a UUID"
		}
		key := u.String()
		p.IdempotencyKey = &key
	}
	return ""
}

// VoidInput carries the reason for voiding a payment.
type VoidInput struct {
	Reason   string `json:"reason" validate:"required,max=500"`
	VoidDate *Date  `json:"void_date"`
}

func (v *VoidInput) Validate() string {
	if msg := firstViolation(v); msg != "" {
		return msg
	}
	if v.VoidDate == nil || v.VoidDate.IsZero() {
		today := Today()
		v.VoidDate = &today
	}
	return ""
}
