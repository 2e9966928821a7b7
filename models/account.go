package models

import "time"

// Account is a bank account, cash box, or card into which payments are deposited.
type Account struct {
	ID             int       `json:"id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"` // bank, cash, credit_card
	OpeningBalance Money     `json:"opening_balance"`
	Balance        Money     `json:"balance"` // Computed
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AccountInput is used for creating/updating accounts.
type AccountInput struct {
	Name           string `json:"name" validate:"required,max=200"`
	Type           string `json:"type" validate:"oneof=bank cash credit_card"`
	OpeningBalance Money  `json:"opening_balance"`
}

func (a *AccountInput) Validate() string {
	return firstViolation(a)
}
