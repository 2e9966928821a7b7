package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/satheeshds/receivables/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ledgerCols = []string{"id", "customer_id", "entry_date", "type", "debit", "credit", "balance",
	"reference_type", "reference_id", "description", "created_at"}

type row struct {
	id            int
	on            time.Time
	kind          string
	debit, credit int64
}

func ledgerRows(entries ...row) *sqlmock.Rows {
	rows := sqlmock.NewRows(ledgerCols)
	for _, e := range entries {
		// Stored balances are deliberately wrong; reads recompute them.
		rows.AddRow(e.id, 1, e.on, e.kind, e.debit, e.credit, int64(-1), nil, nil, e.kind, stamp.Add(time.Duration(e.id)*time.Second))
	}
	return rows
}

func acmeEntries() *sqlmock.Rows {
	return ledgerRows(
		row{1, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), models.EntryOpeningBalance, 1000, 0},
		row{2, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), models.EntryInvoice, 2000, 0},
		row{3, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), models.EntryInvoice, 3000, 0},
		row{4, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), models.EntryPayment, 0, 4500},
	)
}

func TestGetCustomerLedger(t *testing.T) {
	mock := setupMock(t)
	c, _ := acme()
	c.CurrentBalance = 1500
	mock.ExpectQuery(`FROM customers WHERE id = \$1`).WithArgs(1).WillReturnRows(customerRows(c))
	mock.ExpectQuery(`FROM ledger_entries WHERE customer_id = \$1`).WithArgs(1).WillReturnRows(acmeEntries())

	rec := do(t, http.MethodGet, "/customers/1/ledger?from=2024-02-01", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	d := decodeData[statementData](t, rec)
	assert.Equal(t, models.Money(3000), d.BroughtForward)
	require.Len(t, d.Entries, 2)
	assert.Equal(t, models.Money(6000), d.Entries[0].Balance)
	assert.Equal(t, models.Money(1500), d.Entries[1].Balance)
	assert.Equal(t, models.Money(1500), d.Closing)
	assert.Equal(t, models.Money(3000), d.TotalDebit)
	assert.Equal(t, models.Money(4500), d.TotalCredit)
}

func TestReconcileLedger(t *testing.T) {
	c, _ := acme()

	t.Run("drift is repaired", func(t *testing.T) {
		mock := setupMock(t)
		c.CurrentBalance = 1750
		mock.ExpectBegin()
		expectLockCustomer(mock, c)
		mock.ExpectQuery(`FROM ledger_entries WHERE customer_id = \$1`).WithArgs(1).WillReturnRows(acmeEntries())
		mock.ExpectExec(`UPDATE customers SET current_balance = \$1`).
			WithArgs(int64(1500), 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		rec := do(t, http.MethodPost, "/customers/1/ledger/reconcile", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		d := decodeData[reconcileData](t, rec)
		assert.Equal(t, models.Money(250), d.Drift)
		assert.Equal(t, models.Money(1500), d.Computed)
		assert.True(t, d.Repaired)
		assert.Equal(t, 4, d.Entries)
		assert.Equal(t, 4, d.Restated)
	})

	t.Run("consistent", func(t *testing.T) {
		mock := setupMock(t)
		c.CurrentBalance = 1500
		mock.ExpectBegin()
		expectLockCustomer(mock, c)
		mock.ExpectQuery(`FROM ledger_entries WHERE customer_id = \$1`).WithArgs(1).WillReturnRows(acmeEntries())
		mock.ExpectCommit()

		rec := do(t, http.MethodPost, "/customers/1/ledger/reconcile", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeData[reconcileData](t, rec).Repaired)
	})

	t.Run("backdated entry restates later rows", func(t *testing.T) {
		mock := setupMock(t)
		c.CurrentBalance = 2500
		mock.ExpectBegin()
		expectLockCustomer(mock, c)
		rows := sqlmock.NewRows(ledgerCols).
			AddRow(1, 1, time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), models.EntryOpeningBalance, int64(1000), int64(0), int64(1000), nil, nil, "Opening", stamp).
			AddRow(3, 1, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), models.EntryPayment, int64(0), int64(500), int64(2500), nil, nil, "Backdated", stamp.Add(2*time.Second)).
			AddRow(2, 1, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), models.EntryInvoice, int64(2000), int64(0), int64(3000), nil, nil, "Invoice", stamp.Add(time.Second))
		mock.ExpectQuery(`FROM ledger_entries WHERE customer_id = \$1`).WithArgs(1).WillReturnRows(rows)
		mock.ExpectCommit()

		rec := do(t, http.MethodPost, "/customers/1/ledger/reconcile", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		d := decodeData[reconcileData](t, rec)
		assert.False(t, d.Repaired)
		assert.Equal(t, models.Money(2500), d.Computed)
		assert.Equal(t, 2, d.Restated)
	})
}

func TestCreateAdjustment(t *testing.T) {
	mock := setupMock(t)
	c, _ := acme()
	mock.ExpectBegin()
	expectLockCustomer(mock, c)
	expectPostEntry(mock, 1, models.EntryAdjustment, 5900)
	mock.ExpectCommit()

	rec := do(t, http.MethodPost, "/customers/1/adjustments", `{"credit":100,"description":"Bank charges absorbed"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	e := decodeData[models.LedgerEntry](t, rec)
	assert.Equal(t, models.Money(100), e.Credit)
	assert.Equal(t, models.Money(5900), e.Balance)
}

func TestCreateDiscount(t *testing.T) {
	c, invs := acme()

	t.Run("against an invoice", func(t *testing.T) {
		mock := setupMock(t)
		mock.ExpectBegin()
		expectLockCustomer(mock, c)
		mock.ExpectQuery(`FROM invoices i .* WHERE i.id = \$1 FOR UPDATE OF i`).WithArgs(11).WillReturnRows(invoiceRows(invs[0]))
		mock.ExpectExec(`UPDATE invoices SET paid_amount = \$1, status = \$2`).
			WithArgs(int64(200), models.InvoicePartial, 11).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectPostEntry(mock, 1, models.EntryDiscount, 5800)
		mock.ExpectCommit()

		rec := do(t, http.MethodPost, "/customers/1/discounts", `{"amount":200,"invoice_id":11}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		e := decodeData[models.LedgerEntry](t, rec)
		assert.Equal(t, "Discount", e.Description)
		require.NotNil(t, e.ReferenceID)
		assert.Equal(t, 11, *e.ReferenceID)
	})

	t.Run("above pending", func(t *testing.T) {
		mock := setupMock(t)
		mock.ExpectBegin()
		expectLockCustomer(mock, c)
		mock.ExpectQuery(`FROM invoices i .* WHERE i.id = \$1 FOR UPDATE OF i`).WithArgs(11).WillReturnRows(invoiceRows(invs[0]))
		mock.ExpectRollback()

		rec := do(t, http.MethodPost, "/customers/1/discounts", `{"amount":2001,"invoice_id":11}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("another customer's invoice", func(t *testing.T) {
		other := invs[0]
		other.CustomerID = 2
		mock := setupMock(t)
		mock.ExpectBegin()
		expectLockCustomer(mock, c)
		mock.ExpectQuery(`FROM invoices i .* WHERE i.id = \$1 FOR UPDATE OF i`).WithArgs(11).WillReturnRows(invoiceRows(other))
		mock.ExpectRollback()

		rec := do(t, http.MethodPost, "/customers/1/discounts", `{"amount":10,"invoice_id":11}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
