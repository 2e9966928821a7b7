package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney(t *testing.T) {
	t.Run("parses decimal strings", func(t *testing.T) {
		m, err := ParseMoney("1250.5")
		require.NoError(t, err)
		assert.Equal(t, Money(125050), m)
		assert.Equal(t, "1250.50", m.String())
	})

	t.Run("rejects sub-paise precision", func(t *testing.T) {
		_, err := ParseMoney("1.005")
		assert.Error(t, err)
	})

	t.Run("decodes integers and decimal strings", func(t *testing.T) {
		var in struct {
			Raw     Money `json:"raw"`
			Decimal Money `json:"decimal"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"raw":2500,"decimal":"1250.50"}`), &in))
		assert.Equal(t, Money(2500), in.Raw)
		assert.Equal(t, Money(125050), in.Decimal)

		var m Money
		assert.Error(t, json.Unmarshal([]byte(`"1.005"`), &m))
		assert.Error(t, json.Unmarshal([]byte(`12.5`), &m))
	})

	t.Run("renders negatives", func(t *testing.T) {
		assert.Equal(t, "-0.05", Money(-5).String())
		assert.Equal(t, Money(0), Money(-5).Positive())
	})
}

func TestDate(t *testing.T) {
	t.Run("round trips through JSON", func(t *testing.T) {
		var in struct {
			D  Date  `json:"d"`
			P  *Date `json:"p"`
			NP *Date `json:"np"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"d":"2024-02-29","p":"2024-03-01","np":null}`), &in))
		assert.Equal(t, "2024-02-29", in.D.String())
		require.NotNil(t, in.P)
		assert.Nil(t, in.NP)

		out, err := json.Marshal(in)
		require.NoError(t, err)
		assert.JSONEq(t, `{"d":"2024-02-29","p":"2024-03-01","np":null}`, string(out))
	})

	t.Run("rejects other layouts", func(t *testing.T) {
		var d Date
		assert.Error(t, json.Unmarshal([]byte(`"01/02/2024"`), &d))
	})

	t.Run("scans driver values", func(t *testing.T) {
		var d Date
		require.NoError(t, d.Scan(time.Date(2024, 5, 6, 23, 0, 0, 0, time.UTC)))
		assert.Equal(t, "2024-05-06", d.String())
		require.NoError(t, d.Scan("2024-05-07T00:00:00Z"))
		assert.Equal(t, "2024-05-07", d.String())
		v, err := d.Value()
		require.NoError(t, err)
		assert.Equal(t, "2024-05-07", v)
	})

	t.Run("counts days", func(t *testing.T) {
		assert.Equal(t, 31, NewDate(2024, 2, 1).DaysSince(NewDate(2024, 1, 1)))
	})
}

func TestInvoiceStatus(t *testing.T) {
	due := NewDate(2024, 1, 31)

	t.Run("pending never goes negative", func(t *testing.T) {
		inv := Invoice{TotalAmount: 100, PaidAmount: 150}
		assert.Equal(t, Money(0), inv.Pending())
	})

	t.Run("issued invoice past due is overdue", func(t *testing.T) {
		inv := Invoice{TotalAmount: 100, PaidAmount: 40, Status: InvoicePartial, DueDate: &due}
		assert.Equal(t, InvoiceOverdue, inv.EffectiveStatus(NewDate(2024, 2, 1)))
		assert.Equal(t, InvoicePartial, inv.EffectiveStatus(NewDate(2024, 1, 31)))
	})

	t.Run("drafts are never overdue", func(t *testing.T) {
		inv := Invoice{TotalAmount: 100, Status: InvoiceDraft, DueDate: &due}
		assert.Equal(t, InvoiceDraft, inv.EffectiveStatus(NewDate(2024, 6, 1)))
		assert.False(t, inv.Open())
	})

	t.Run("settled status follows paid amount", func(t *testing.T) {
		assert.Equal(t, InvoicePaid, SettledStatus(100, 100, InvoicePartial))
		assert.Equal(t, InvoicePartial, SettledStatus(100, 1, InvoiceSent))
		assert.Equal(t, InvoiceSent, SettledStatus(100, 0, InvoicePartial))
		assert.Equal(t, InvoiceOverdue, SettledStatus(100, 0, InvoiceOverdue))
		assert.Equal(t, InvoiceCancelled, SettledStatus(100, 0, InvoiceCancelled))
		assert.Equal(t, InvoicePaid, SettledStatus(0, 0, InvoiceSent))
		assert.Equal(t, InvoiceDraft, SettledStatus(0, 0, InvoiceDraft))
	})
}

func TestCustomerRemainingOpening(t *testing.T) {
	assert.Equal(t, Money(700), (&Customer{OpeningBalance: 1000, OpeningBalancePaid: 300}).RemainingOpening())
	assert.Equal(t, Money(0), (&Customer{OpeningBalance: 1000, OpeningBalancePaid: 1000}).RemainingOpening())
	assert.Equal(t, Money(0), (&Customer{OpeningBalance: -50}).RemainingOpening())
}

func TestValidate(t *testing.T) {
	t.Run("customer name is required", func(t *testing.T) {
		in := CustomerInput{Name: "  "}
		assert.Equal(t, "name is required", in.Validate())
	})

	t.Run("customer email must parse", func(t *testing.T) {
		bad := "not-an-email"
		in := CustomerInput{Name: "Asha Traders", Email: &bad}
		assert.Equal(t, "email must be a valid email address", in.Validate())
	})

	t.Run("invoice defaults", func(t *testing.T) {
		in := InvoiceInput{CustomerID: 1, InvoiceNumber: "INV-1", TotalAmount: 500}
		assert.Empty(t, in.Validate())
		assert.Equal(t, InvoiceDraft, in.Status)
		require.NotNil(t, in.IssueDate)
	})

	t.Run("invoice status is limited to draft or sent", func(t *testing.T) {
		in := InvoiceInput{CustomerID: 1, InvoiceNumber: "INV-1", Status: "paid"}
		assert.Equal(t, "status must be one of: draft, sent", in.Validate())
	})

	t.Run("invoice due before issue", func(t *testing.T) {
		issue, due := NewDate(2024, 2, 1), NewDate(2024, 1, 1)
		in := InvoiceInput{CustomerID: 1, InvoiceNumber: "INV-1", IssueDate: &issue, DueDate: &due}
		assert.Equal(t, "due_date must not be before issue_date", in.Validate())
	})

	t.Run("payment must be positive", func(t *testing.T) {
		in := PaymentInput{CustomerID: 1}
		assert.Equal(t, "total_received must be positive", in.Validate())
	})

	t.Run("fifo payments take no manual lines", func(t *testing.T) {
		in := PaymentInput{CustomerID: 1, TotalReceived: 100, Allocations: []AllocationInput{{InvoiceID: 1, Amount: 100}}}
		assert.Equal(t, "allocations are only accepted in manual mode", in.Validate())
	})

	t.Run("manual line amounts are non-negative", func(t *testing.T) {
		in := PaymentInput{CustomerID: 1, TotalReceived: 100, Mode: AllocateManual, Allocations: []AllocationInput{{InvoiceID: 1, Amount: -1}}}
		assert.Equal(t, "amount must be non-negative", in.Validate())
	})

	t.Run("payment defaults", func(t *testing.T) {
		in := PaymentInput{CustomerID: 1, TotalReceived: 100}
		assert.Empty(t, in.Validate())
		assert.Equal(t, AllocateFIFO, in.Mode)
		assert.Equal(t, "cash", in.Method)
		require.NotNil(t, in.PaymentDate)
	})

	t.Run("idempotency key must be a UUID", func(t *testing.T) {
		key := "abc"
		in := PaymentInput{CustomerID: 1, TotalReceived: 100, IdempotencyKey: &key}
		assert.Equal(t, "idempotency_key must be a UUID", in.Validate())
	})

	t.Run("idempotency key spellings normalise", func(t *testing.T) {
		for _, key := range []string{
			"A0EEBC99-9C0B-4EF8-BB6D-6BB9BD380A11",
			"{a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11}",
			"urn:uuid:a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11",
			"a0eebc999c0b4ef8bb6d6bb9bd380a11",
		} {
			k := key
			in := PaymentInput{CustomerID: 1, TotalReceived: 100, IdempotencyKey: &k}
			require.Empty(t, in.Validate(), key)
			assert.Equal(t, "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11", *in.IdempotencyKey, key)
		}
	})

	t.Run("adjustment takes exactly one side", func(t *testing.T) {
		in := AdjustmentInput{Debit: 10, Credit: 10, Description: "fix"}
		assert.Equal(t, "exactly one of debit or credit must be positive", in.Validate())
		in = AdjustmentInput{Credit: 10, Description: "fix"}
		assert.Empty(t, in.Validate())
	})

	t.Run("account type", func(t *testing.T) {
		in := AccountInput{Name: "HDFC", Type: "wallet"}
		assert.Equal(t, "type must be one of: bank, cash, credit_card", in.Validate())
	})
}
