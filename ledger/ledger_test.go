package ledger

import (
	"testing"
	"time"

	"github.com/satheeshds/receivables/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func entry(id int, day int, typ string, debit, credit models.Money) models.LedgerEntry {
	return models.LedgerEntry{
		ID:         id,
		CustomerID: 1,
		EntryDate:  models.NewDate(2024, 1, day),
		Type:       typ,
		Debit:      debit,
		Credit:     credit,
		CreatedAt:  base.Add(time.Duration(id) * time.Minute),
	}
}

func balances(entries []models.LedgerEntry) []models.Money {
	out := make([]models.Money, len(entries))
	for i, e := range entries {
		out[i] = e.Balance
	}
	return out
}

func TestRecompute(t *testing.T) {
	entries := []models.LedgerEntry{
		entry(3, 10, models.EntryPayment, 0, 1500),
		entry(2, 5, models.EntryInvoice, 2000, 0),
		entry(1, 1, models.EntryOpeningBalance, 1000, 0),
		entry(4, 10, models.EntryDiscount, 0, 100),
	}

	got := Recompute(entries)

	require.Len(t, got, 4)
	assert.Equal(t, []int{1, 2, 3, 4}, []int{got[0].ID, got[1].ID, got[2].ID, got[3].ID})
	assert.Equal(t, []models.Money{1000, 3000, 1500, 1400}, balances(got))
	assert.Equal(t, models.Money(1400), Closing(entries))
	// input is left untouched
	assert.Equal(t, 3, entries[0].ID)
	assert.Zero(t, entries[0].Balance)
}

func TestOpeningEntryLeadsEvenWhenBackdated(t *testing.T) {
	entries := []models.LedgerEntry{
		entry(2, 1, models.EntryInvoice, 500, 0),
		entry(1, 20, models.EntryOpeningBalance, 0, 200),
	}
	got := Recompute(entries)
	assert.Equal(t, models.EntryOpeningBalance, got[0].Type)
	assert.Equal(t, []models.Money{-200, 300}, balances(got))
}

func TestSameDayOrdersByCreation(t *testing.T) {
	a := entry(9, 3, models.EntryInvoice, 100, 0)
	b := entry(8, 3, models.EntryPayment, 0, 100)
	b.CreatedAt = a.CreatedAt.Add(time.Second)
	got := Recompute([]models.LedgerEntry{b, a})
	assert.Equal(t, []int{9, 8}, []int{got[0].ID, got[1].ID})
}

func TestDrift(t *testing.T) {
	entries := []models.LedgerEntry{
		entry(1, 1, models.EntryOpeningBalance, 1000, 0),
		entry(2, 2, models.EntryPayment, 0, 400),
	}
	assert.Equal(t, models.Money(0), Drift(entries, 600))
	assert.Equal(t, models.Money(-400), Drift(entries, 200))
}

func TestBuildStatement(t *testing.T) {
	entries := []models.LedgerEntry{
		entry(1, 1, models.EntryOpeningBalance, 1000, 0),
		entry(2, 5, models.EntryInvoice, 2000, 0),
		entry(3, 12, models.EntryPayment, 0, 2500),
		entry(4, 20, models.EntryInvoice, 700, 0),
		entry(5, 28, models.EntryAdjustment, 50, 0),
	}
	from := models.NewDate(2024, 1, 5)
	to := models.NewDate(2024, 1, 20)

	st := BuildStatement(entries, &from, &to)

	assert.Equal(t, models.Money(1000), st.BroughtForward)
	require.Len(t, st.Entries, 3)
	assert.Equal(t, []models.Money{3000, 500, 1200}, balances(st.Entries))
	assert.Equal(t, models.Money(2700), st.TotalDebit)
	assert.Equal(t, models.Money(2500), st.TotalCredit)
	assert.Equal(t, models.Money(1200), st.Closing)

	t.Run("open bounds cover the whole account", func(t *testing.T) {
		all := BuildStatement(entries, nil, nil)
		assert.Zero(t, all.BroughtForward)
		assert.Len(t, all.Entries, 5)
		assert.Equal(t, Closing(entries), all.Closing)
	})
}

func TestOpening(t *testing.T) {
	t.Run("debit balance", func(t *testing.T) {
		e, ok := Opening(&models.Customer{ID: 3, OpeningBalance: 1200, AsOfDate: models.NewDate(2024, 4, 1)})
		require.True(t, ok)
		assert.Equal(t, models.Money(1200), e.Debit)
		assert.Zero(t, e.Credit)
		assert.Equal(t, "2024-04-01", e.EntryDate.String())
	})
	t.Run("credit balance", func(t *testing.T) {
		e, ok := Opening(&models.Customer{ID: 3, OpeningBalance: -300})
		require.True(t, ok)
		assert.Equal(t, models.Money(300), e.Credit)
		assert.Equal(t, models.Money(-300), e.Net())
	})
	t.Run("zero posts nothing", func(t *testing.T) {
		_, ok := Opening(&models.Customer{ID: 3})
		assert.False(t, ok)
	})
}

func TestPaymentAndReversalCancelOut(t *testing.T) {
	ref := "UTR123"
	p := &models.Payment{ID: 11, CustomerID: 1, PaymentDate: models.NewDate(2024, 2, 1), TotalReceived: 900, Method: "upi", Reference: &ref}
	pay := Payment(p)
	rev := Reversal(p, models.NewDate(2024, 2, 2), "bounced")

	assert.Equal(t, "Payment received (upi) ref UTR123", pay.Description)
	assert.Equal(t, models.Money(0), pay.Net()+rev.Net())
	require.NotNil(t, rev.ReferenceID)
	assert.Equal(t, 11, *rev.ReferenceID)
	assert.Equal(t, "payment", *rev.ReferenceType)
}
