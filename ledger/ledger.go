// Package ledger computes running balances over a customer's posted entries.
package ledger

import (
	"sort"

	"github.com/satheeshds/receivables/models"
)

// Less orders entries by (entry date, created at, id), except that the
// opening-balance entry always starts the account.
func Less(a, b *models.LedgerEntry) bool {
	if ao, bo := a.Type == models.EntryOpeningBalance, b.Type == models.EntryOpeningBalance; ao != bo {
		return ao
	}
	if !a.EntryDate.Equal(b.EntryDate.Time) {
		return a.EntryDate.Before(b.EntryDate.Time)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Sort orders entries in statement order.
func Sort(entries []models.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Less(&entries[i], &entries[j])
	})
}

// Apply returns the balance after posting e on top of balance.
func Apply(balance models.Money, e *models.LedgerEntry) models.Money {
	return balance + e.Net()
}

// Recompute returns a sorted copy of entries with every Balance rewritten as
// the running sum from the first entry.
func Recompute(entries []models.LedgerEntry) []models.LedgerEntry {
	return recomputeFrom(0, entries)
}

func recomputeFrom(start models.Money, entries []models.LedgerEntry) []models.LedgerEntry {
	out := make([]models.LedgerEntry, len(entries))
	copy(out, entries)
	Sort(out)
	balance := start
	for i := range out {
		balance = Apply(balance, &out[i])
		out[i].Balance = balance
	}
	return out
}

// Closing is the balance after every entry.
func Closing(entries []models.LedgerEntry) models.Money {
	var balance models.Money
	for i := range entries {
		balance = Apply(balance, &entries[i])
	}
	return balance
}

// Drift is how far a recorded balance has wandered from the entries.
func Drift(entries []models.LedgerEntry, recorded models.Money) models.Money {
	return recorded - Closing(entries)
}

// Statement is a customer's account for a period.
type Statement struct {
	From           *models.Date         `json:"from"`
	To             *models.Date         `json:"to"`
	BroughtForward models.Money         `json:"brought_forward"`
	Entries        []models.LedgerEntry `json:"entries"`
	TotalDebit     models.Money         `json:"total_debit"`
	TotalCredit    models.Money         `json:"total_credit"`
	Closing        models.Money         `json:"closing"`
}

// BuildStatement splits entries into the balance brought forward before
// from and the in-range rows. Either bound may be nil.
func BuildStatement(entries []models.LedgerEntry, from, to *models.Date) Statement {
	sorted := make([]models.LedgerEntry, len(entries))
	copy(sorted, entries)
	Sort(sorted)

	st := Statement{From: from, To: to}
	var inRange []models.LedgerEntry
	for i := range sorted {
		e := &sorted[i]
		switch {
		case from != nil && e.EntryDate.Before(from.Time):
			st.BroughtForward = Apply(st.BroughtForward, e)
		case to != nil && e.EntryDate.After(to.Time):
		default:
			inRange = append(inRange, *e)
		}
	}

	st.Entries = recomputeFrom(st.BroughtForward, inRange)
	for i := range st.Entries {
		st.TotalDebit += st.Entries[i].Debit
		st.TotalCredit += st.Entries[i].Credit
	}
	st.Closing = st.BroughtForward + st.TotalDebit - st.TotalCredit
	return st
}
