package models

import (
	"strings"
	"time"
)

// Customer is a party that owes (or is owed) money on a running account.
type Customer struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
	// OpeningBalance is positive when the customer owes.
	OpeningBalance Money `json:"opening_balance"`
	// OpeningBalancePaid is the part of a positive opening balance settled by payments.
	OpeningBalancePaid Money     `json:"opening_balance_paid"`
	CurrentBalance     Money     `json:"current_balance"`
	AsOfDate           Date      `json:"as_of_date"`
	Version            int       `json:"version"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	// Computed fields
	RemainingOpeningBalance Money `json:"remaining_opening_balance"`
}

// RemainingOpening reports how much of a debit opening balance is still unpaid.
func (c *Customer) RemainingOpening() Money {
	if c.OpeningBalance <= 0 {
		return 0
	}
	return (c.OpeningBalance - c.OpeningBalancePaid).Positive()
}

// CustomerInput is used for creating customers. Opening balance fields are
// only honoured on create; they are posted to the ledger once.
type CustomerInput struct {
	Name           string  `json:"name" validate:"required,max=200"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Phone          *string `json:"phone" validate:"omitempty,max=32"`
	OpeningBalance Money   `json:"opening_balance"`
	AsOfDate       *Date   `json:"as_of_date"`
}

func (c *CustomerInput) Validate() string {
	c.Name = strings.TrimSpace(c.Name)
	if c.Email != nil && *c.Email == "" {
		c.Email = nil
	}
	return firstViolation(c)
}
