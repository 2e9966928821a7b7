package handlers

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/satheeshds/receivables/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateInvoice(t *testing.T) {
	c, _ := acme()
	draft := models.Invoice{ID: 20, CustomerID: 1, InvoiceNumber: "INV-20", IssueDate: models.NewDate(2024, 3, 1),
		DueDate: day(2024, 3, 31), TotalAmount: 1200, Status: models.InvoiceDraft}

	t.Run("draft posts nothing", func(t *testing.T) {
		mock := setupMock(t)
		mock.ExpectBegin()
		expectLockCustomer(mock, c)
		mock.ExpectQuery(`INSERT INTO invoices`).
			WithArgs(1, "INV-20", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1200), models.InvoiceDraft, nil).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))
		mock.ExpectQuery(`FROM invoices i .* WHERE i.id = \$1`).WithArgs(20).WillReturnRows(invoiceRows(draft))
		mock.ExpectCommit()

		rec := do(t, http.MethodPost, "/invoices",
			`{"customer_id":1,"invoice_number":"INV-20","issue_date":"2024-03-01","due_date":"2024-03-31","total_amount":1200}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		inv := decodeData[models.Invoice](t, rec)
		assert.Equal(t, models.InvoiceDraft, inv.Status)
		assert.Equal(t, models.Money(1200), inv.PendingAmount)
	})

	t.Run("sent debits the ledger", func(t *testing.T) {
		mock := setupMock(t)
		mock.ExpectBegin()
		expectLockCustomer(mock, c)
		mock.ExpectQuery(`INSERT INTO invoices`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))
		mock.ExpectQuery(`FROM invoices i .* WHERE i.id = \$1`).WithArgs(20).WillReturnRows(invoiceRows(draft))
		mock.ExpectExec(`UPDATE invoices SET status = \$1`).
			WithArgs(models.InvoiceSent, 20).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectPostEntry(mock, 1, models.EntryInvoice, 7200)
		mock.ExpectCommit()

		rec := do(t, http.MethodPost, "/invoices",
			`{"customer_id":1,"invoice_number":"INV-20","issue_date":"2024-03-01","total_amount":1200,"status":"sent"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, models.InvoiceSent, decodeData[models.Invoice](t, rec).Status)
	})

	t.Run("due before issue", func(t *testing.T) {
		setupMock(t)
		rec := do(t, http.MethodPost, "/invoices",
			`{"customer_id":1,"invoice_number":"X","issue_date":"2024-03-10","due_date":"2024-03-01"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "due_date must not be before issue_date", decodeError(t, rec))
	})
}

func TestUpdateInvoiceRejectsIssued(t *testing.T) {
	mock := setupMock(t)
	c, invs := acme()

	mock.ExpectBegin()
	expectLockCustomer(mock, c)
	mock.ExpectQuery(`FROM invoices i .* WHERE i.id = \$1 FOR UPDATE OF i`).WithArgs(11).WillReturnRows(invoiceRows(invs[0]))
	mock.ExpectRollback()

	rec := do(t, http.MethodPut, "/invoices/11", `{"customer_id":1,"invoice_number":"INV-1","total_amount":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "only draft invoices can be edited", decodeError(t, rec))
}

func TestDeleteInvoice(t *testing.T) {
	_, invs := acme()

	t.Run("draft", func(t *testing.T) {
		mock := setupMock(t)
		mock.ExpectExec(`DELETE FROM invoices WHERE id = \$1 AND status = \$2`).
			WithArgs(5, models.InvoiceDraft).
			WillReturnResult(sqlmock.NewResult(0, 1))
		rec := do(t, http.MethodDelete, "/invoices/5", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("issued", func(t *testing.T) {
		mock := setupMock(t)
		mock.ExpectExec(`DELETE FROM invoices`).WithArgs(11, models.InvoiceDraft).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`FROM invoices i .* WHERE i.id = \$1`).WithArgs(11).WillReturnRows(invoiceRows(invs[0]))
		rec := do(t, http.MethodDelete, "/invoices/11", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing", func(t *testing.T) {
		mock := setupMock(t)
		mock.ExpectExec(`DELETE FROM invoices`).WithArgs(99, models.InvoiceDraft).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`FROM invoices i .* WHERE i.id = \$1`).WithArgs(99).WillReturnRows(sqlmock.NewRows(invoiceCols))
		rec := do(t, http.MethodDelete, "/invoices/99", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "invoice not found", decodeError(t, rec))
	})
}

func expectLockCustomerInvoice(mock sqlmock.Sqlmock, c models.Customer, inv models.Invoice) {
	mock.ExpectQuery(`SELECT customer_id FROM invoices WHERE id = \$1`).
		WithArgs(inv.ID).
		WillReturnRows(sqlmock.NewRows([]string{"customer_id"}).AddRow(c.ID))
	expectLockCustomer(mock, c)
	mock.ExpectQuery(`FROM invoices i .* WHERE i.id = \$1 FOR UPDATE OF i`).
		WithArgs(inv.ID).
		WillReturnRows(invoiceRows(inv))
}

func TestIssueInvoice(t *testing.T) {
	c, invs := acme()
	draft := invs[0]
	draft.Status = models.InvoiceDraft

	t.Run("draft", func(t *testing.T) {
		mock := setupMock(t)
		mock.ExpectBegin()
		expectLockCustomerInvoice(mock, c, draft)
		mock.ExpectExec(`UPDATE invoices SET status = \$1`).
			WithArgs(models.InvoiceSent, 11).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectPostEntry(mock, 1, models.EntryInvoice, 8000)
		mock.ExpectCommit()

		rec := do(t, http.MethodPost, "/invoices/11/issue", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("zero total is paid on issue", func(t *testing.T) {
		mock := setupMock(t)
		free := draft
		free.TotalAmount = 0
		mock.ExpectBegin()
		expectLockCustomerInvoice(mock, c, free)
		mock.ExpectExec(`UPDATE invoices SET status = \$1`).
			WithArgs(models.InvoicePaid, 11).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectPostEntry(mock, 1, models.EntryInvoice, 6000)
		mock.ExpectCommit()

		rec := do(t, http.MethodPost, "/invoices/11/issue", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		inv := decodeData[models.Invoice](t, rec)
		assert.Equal(t, models.InvoicePaid, inv.Status)
		assert.Equal(t, models.Money(0), inv.PendingAmount)
	})

	t.Run("already sent", func(t *testing.T) {
		mock := setupMock(t)
		mock.ExpectBegin()
		expectLockCustomerInvoice(mock, c, invs[0])
		mock.ExpectRollback()

		rec := do(t, http.MethodPost, "/invoices/11/issue", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestCancelInvoice(t *testing.T) {
	c, invs := acme()

	t.Run("issued credits the ledger", func(t *testing.T) {
		mock := setupMock(t)
		mock.ExpectBegin()
		expectLockCustomerInvoice(mock, c, invs[1])
		mock.ExpectExec(`UPDATE invoices SET status = \$1`).
			WithArgs(models.InvoiceCancelled, 12).
			WillReturnResult(sqlmock.NewResult(0, 1))
		expectPostEntry(mock, 1, models.EntryAdjustment, 3000)
		mock.ExpectCommit()

		rec := do(t, http.MethodPost, "/invoices/12/cancel", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, models.InvoiceCancelled, decodeData[models.Invoice](t, rec).Status)
	})

	t.Run("draft posts nothing", func(t *testing.T) {
		draft := invs[1]
		draft.Status = models.InvoiceDraft
		mock := setupMock(t)
		mock.ExpectBegin()
		expectLockCustomerInvoice(mock, c, draft)
		mock.ExpectExec(`UPDATE invoices SET status = \$1`).
			WithArgs(models.InvoiceCancelled, 12).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		rec := do(t, http.MethodPost, "/invoices/12/cancel", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("with payments", func(t *testing.T) {
		partial := invs[1]
		partial.PaidAmount = 100
		partial.Status = models.InvoicePartial
		mock := setupMock(t)
		mock.ExpectBegin()
		expectLockCustomerInvoice(mock, c, partial)
		mock.ExpectRollback()

		rec := do(t, http.MethodPost, "/invoices/12/cancel", "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, decodeError(t, rec), "void them first")
	})
}

func TestListInvoicesOverdueFilter(t *testing.T) {
	mock := setupMock(t)
	_, invs := acme()

	mock.ExpectQuery(`WHERE \(i.status = 'overdue' OR \(i.status IN \('sent', 'partial'\) AND i.due_date < \$1\)\) AND i.customer_id = \$2`).
		WithArgs(sqlmock.AnyArg(), 1).
		WillReturnRows(invoiceRows(invs...))

	rec := do(t, http.MethodGet, "/invoices?status=overdue&customer_id=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	list := decodeData[[]models.Invoice](t, rec)
	require.Len(t, list, 2)
	// Both due dates are long past, so the read applies the overdue rule.
	assert.Equal(t, models.InvoiceOverdue, list[0].Status)
	assert.Equal(t, models.InvoiceOverdue, list[1].Status)
}

func TestListInvoicesBadDate(t *testing.T) {
	setupMock(t)
	rec := do(t, http.MethodGet, "/invoices?from=2024-13-01", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
