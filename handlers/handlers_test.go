package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/satheeshds/receivables/allocation"
	"github.com/satheeshds/receivables/config"
	"github.com/satheeshds/receivables/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stamp = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

// setupMock points the package DB at a fresh sqlmock and verifies every
// expectation was met when the test ends.
func setupMock(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	DB = db
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return mock
}

func newRouter() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", Routes(config.AuthConfig{}))
	return r
}

func do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "/api/v1"+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newRouter().ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var resp struct {
		Data  T      `json:"data"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

var customerCols = []string{"id", "name", "email", "phone", "opening_balance", "opening_balance_paid",
	"current_balance", "as_of_date", "version", "created_at", "updated_at"}

func customerRows(cs ...models.Customer) *sqlmock.Rows {
	rows := sqlmock.NewRows(customerCols)
	for _, c := range cs {
		rows.AddRow(c.ID, c.Name, nil, nil, int64(c.OpeningBalance), int64(c.OpeningBalancePaid),
			int64(c.CurrentBalance), c.AsOfDate.Time, c.Version, stamp, stamp)
	}
	return rows
}

var invoiceCols = []string{"id", "customer_id", "invoice_number", "issue_date", "due_date",
	"total_amount", "paid_amount", "status", "notes", "created_at", "updated_at", "name"}

func invoiceRows(invs ...models.Invoice) *sqlmock.Rows {
	rows := sqlmock.NewRows(invoiceCols)
	for _, inv := range invs {
		var due any
		if inv.DueDate != nil {
			due = inv.DueDate.Time
		}
		rows.AddRow(inv.ID, inv.CustomerID, inv.InvoiceNumber, inv.IssueDate.Time, due,
			int64(inv.TotalAmount), int64(inv.PaidAmount), inv.Status, nil, stamp, stamp, "Acme")
	}
	return rows
}

func day(y int, m time.Month, d int) *models.Date {
	dt := models.NewDate(y, m, d)
	return &dt
}

// expectLockCustomer expects the FOR UPDATE read of customer c.
func expectLockCustomer(mock sqlmock.Sqlmock, c models.Customer) {
	mock.ExpectQuery(`SELECT .* FROM customers WHERE id = \$1 FOR UPDATE`).
		WithArgs(c.ID).
		WillReturnRows(customerRows(c))
}

// expectPostEntry expects one ledger insert and the balance update that follows it.
func expectPostEntry(mock sqlmock.Sqlmock, customerID int, entryType string, balance models.Money) {
	mock.ExpectQuery(`INSERT INTO ledger_entries`).
		WithArgs(customerID, sqlmock.AnyArg(), entryType, sqlmock.AnyArg(), sqlmock.AnyArg(), int64(balance),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(99, stamp))
	mock.ExpectExec(`UPDATE customers SET current_balance = \$1, version = version \+ 1`).
		WithArgs(int64(balance), customerID).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestBasicAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	t.Run("disabled without credentials", func(t *testing.T) {
		rec := httptest.NewRecorder()
		BasicAuth(config.AuthConfig{})(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	h := BasicAuth(config.AuthConfig{User: "admin", Pass: "secret"})(ok)
	tests := []struct {
		name       string
		user, pass string
		setAuth    bool
		want       int
	}{
		{"missing", "", "", false, http.StatusUnauthorized},
		{"wrong password", "admin", "nope", true, http.StatusUnauthorized},
		{"wrong user", "root", "secret", true, http.StatusUnauthorized},
		{"valid", "admin", "secret", true, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.setAuth {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestWriteFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"status error", conflict("busy"), http.StatusConflict},
		{"wrapped status error", fmt.Errorf("outer: %w", notFound("invoice")), http.StatusNotFound},
		{"no rows", sql.ErrNoRows, http.StatusNotFound},
		{"allocation rule", fmt.Errorf("%w: 10 > 5", allocation.ErrExceedsOutstanding), http.StatusUnprocessableEntity},
		{"unique violation", &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "invoices_customer_id_invoice_number_key"}, http.StatusConflict},
		{"foreign key", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgForeignKeyViolation, Message: "violates"}), http.StatusConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeFailure(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.want, rec.Code)
			assert.NotEmpty(t, decodeError(t, rec))
		})
	}
}

func TestWhereBuilder(t *testing.T) {
	var b whereBuilder
	assert.Equal(t, "", b.String())

	b.add("a = ?", 1)
	b.add("(b ILIKE ? OR c ILIKE ?)", "x", "y")
	b.add("d IS NULL")
	assert.Equal(t, " WHERE a = $1 AND (b ILIKE $2 OR c ILIKE $3) AND d IS NULL", b.String())
	assert.Equal(t, []any{1, "x", "y"}, b.args)
}

func TestPathID(t *testing.T) {
	setupMock(t)
	for _, path := range []string{"/customers/abc", "/customers/0", "/invoices/-3"} {
		rec := do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Contains(t, decodeError(t, rec), "invalid id")
	}
}

func TestInvalidBodies(t *testing.T) {
	setupMock(t)
	tests := []struct {
		method, path, body, want string
	}{
		{http.MethodPost, "/customers", `{`, "invalid JSON"},
		{http.MethodPost, "/customers", `{"name":"  "}`, "name is required"},
		{http.MethodPost, "/invoices", `{"customer_id":1}`, "invoice_number is required"},
		{http.MethodPost, "/payments", `{"customer_id":1,"total_received":0}`, "total_received must be positive"},
		{http.MethodPost, "/payments", `{"customer_id":1,"total_received":10,"allocations":[{"invoice_id":1,"amount":10}]}`, "allocations are only accepted in manual mode"},
		{http.MethodPost, "/payments/1/void", `{}`, "reason is required"},
		{http.MethodPost, "/customers/1/adjustments", `{"debit":5,"credit":5,"description":"x"}`, "exactly one of debit or credit must be positive"},
		{http.MethodPost, "/customers/1/discounts", `{"amount":-1}`, "amount must be positive"},
	}
	for _, tt := range tests {
		rec := do(t, tt.method, tt.path, tt.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tt.path)
		assert.Equal(t, tt.want, decodeError(t, rec), tt.path)
	}
}
