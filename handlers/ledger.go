package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/satheeshds/receivables/allocation"
	"github.com/satheeshds/receivables/ledger"
	"github.com/satheeshds/receivables/models"
)

const ledgerColumns = `id, customer_id, entry_date, type, debit, credit, balance,
	reference_type, reference_id, description, created_at`

func scanLedgerEntry(scanner interface{ Scan(...any) error }) (models.LedgerEntry, error) {
	var e models.LedgerEntry
	err := scanner.Scan(&e.ID, &e.CustomerID, &e.EntryDate, &e.Type, &e.Debit, &e.Credit, &e.Balance,
		&e.ReferenceType, &e.ReferenceID, &e.Description, &e.CreatedAt)
	return e, err
}

// postEntry appends e to the customer's ledger and moves current_balance and
// version with it. The caller must hold the customer lock.
func postEntry(ctx context.Context, tx *sql.Tx, c *models.Customer, e models.LedgerEntry) (models.LedgerEntry, error) {
	e.CustomerID = c.ID
	e.Balance = ledger.Apply(c.CurrentBalance, &e)

	err := tx.QueryRowContext(ctx,
		`INSERT INTO ledger_entries (customer_id, entry_date, type, debit, credit, balance, reference_type, reference_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id, created_at`,
		e.CustomerID, e.EntryDate, e.Type, e.Debit, e.Credit, e.Balance, e.ReferenceType, e.ReferenceID, e.Description,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return e, fmt.Errorf("inserting %s ledger entry: %w", e.Type, err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE customers SET current_balance = $1, version = version + 1, updated_at = now() WHERE id = $2",
		e.Balance, c.ID); err != nil {
		return e, fmt.Errorf("updating customer balance: %w", err)
	}
	c.CurrentBalance = e.Balance
	c.Version++
	return e, nil
}

func customerEntries(ctx context.Context, q queryer, customerID int) ([]models.LedgerEntry, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+ledgerColumns+" FROM ledger_entries WHERE customer_id = $1 ORDER BY entry_date, created_at, id",
		customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type statementData struct {
	Customer models.Customer `json:"customer"`
	ledger.Statement
}

// GetCustomerLedger returns a customer's statement
// @Summary      Get customer ledger
// @Description  Ledger rows with running balances. Rows before from are folded into brought_forward.
// @Tags         ledger
// @Produce      json
// @Param        id    path      int     true   "Customer ID"
// @Param        from  query     string  false  "Start date (YYYY-MM-DD)"
// @Param        to    query     string  false  "End date (YYYY-MM-DD)"
// @Success      200  {object}  Response{data=statementData}
// @Failure      404  {object}  Response{error=string}
// @Router       /customers/{id}/ledger [get]
// @Security     BasicAuth
func GetCustomerLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	c, err := getCustomer(r.Context(), DB, id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	entries, err := customerEntries(r.Context(), DB, id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	st := ledger.BuildStatement(entries, from, to)
	if st.Entries == nil {
		st.Entries = []models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, statementData{Customer: c, Statement: st})
}

// CreateDiscount records a discount
// @Summary      Create discount
// @Description  Credit the customer's ledger. With invoice_id the discount also settles that much of the invoice.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        id        path      int                   true  "Customer ID"
// @Param        discount  body      models.DiscountInput  true  "Discount"
// @Success      201       {object}  Response{data=models.LedgerEntry}
// @Failure      400       {object}  Response{error=string}
// @Failure      422       {object}  Response{error=string}
// @Router       /customers/{id}/discounts [post]
// @Security     BasicAuth
func CreateDiscount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input models.DiscountInput
	if !decodeJSON(w, r, &input) {
		return
	}

	var entry models.LedgerEntry
	err := withTx(r.Context(), func(tx *sql.Tx) error {
		c, err := lockCustomer(r.Context(), tx, id)
		if err != nil {
			return err
		}
		if input.InvoiceID != nil {
			inv, err := lockInvoice(r.Context(), tx, *input.InvoiceID)
			if err != nil {
				return err
			}
			if inv.CustomerID != c.ID {
				return badRequest("invoice belongs to another customer")
			}
			if !inv.Open() {
				return conflict("invoice " + inv.InvoiceNumber + " is not open")
			}
			if input.Amount > inv.Pending() {
				return fmt.Errorf("%w: discount %s on %s pending %s",
					allocation.ErrLineExceedsOutstanding, input.Amount, inv.InvoiceNumber, inv.Pending())
			}
			if err := settleInvoice(r.Context(), tx, &inv, input.Amount); err != nil {
				return err
			}
		}
		entry, err = postEntry(r.Context(), tx, &c, ledger.Discount(c.ID, &input))
		return err
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// CreateAdjustment records a manual ledger correction
// @Summary      Create adjustment
// @Description  Post a debit or credit adjustment to the customer's ledger.
// @Tags         ledger
// @Accept       json
// @Produce      json
// @Param        id          path      int                     true  "Customer ID"
// @Param        adjustment  body      models.AdjustmentInput  true  "Adjustment"
// @Success      201         {object}  Response{data=models.LedgerEntry}
// @Failure      400         {object}  Response{error=string}
// @Router       /customers/{id}/adjustments [post]
// @Security     BasicAuth
func CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input models.AdjustmentInput
	if !decodeJSON(w, r, &input) {
		return
	}

	var entry models.LedgerEntry
	err := withTx(r.Context(), func(tx *sql.Tx) error {
		c, err := lockCustomer(r.Context(), tx, id)
		if err != nil {
			return err
		}
		entry, err = postEntry(r.Context(), tx, &c, ledger.Adjustment(c.ID, &input))
		return err
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type reconcileData struct {
	CustomerID int          `json:"customer_id"`
	Recorded   models.Money `json:"recorded"`
	Computed   models.Money `json:"computed"`
	Drift      models.Money `json:"drift"`
	Repaired   bool         `json:"repaired"`
	Entries    int          `json:"entries"`
	// Restated counts rows whose balance at posting differs from the running
	// balance in statement order, as happens after backdated entries.
	Restated int `json:"restated"`
}

// ReconcileLedger recomputes a customer's balance from the ledger
// @Summary      Reconcile ledger
// @Description  Recompute the balance from every ledger row and repair current_balance if it drifted. Rows whose posted balance differs from statement order are counted as restated.
// @Tags         ledger
// @Produce      json
// @Param        id   path      int  true  "Customer ID"
// @Success      200  {object}  Response{data=reconcileData}
// @Failure      404  {object}  Response{error=string}
// @Router       /customers/{id}/ledger/reconcile [post]
// @Security     BasicAuth
func ReconcileLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var out reconcileData
	err := withTx(r.Context(), func(tx *sql.Tx) error {
		c, err := lockCustomer(r.Context(), tx, id)
		if err != nil {
			return err
		}
		entries, err := customerEntries(r.Context(), tx, id)
		if err != nil {
			return err
		}
		out = reconcileData{
			CustomerID: id,
			Recorded:   c.CurrentBalance,
			Drift:      ledger.Drift(entries, c.CurrentBalance),
			Entries:    len(entries),
		}
		posted := make(map[int]models.Money, len(entries))
		for _, e := range entries {
			posted[e.ID] = e.Balance
		}
		for _, e := range ledger.Recompute(entries) {
			if posted[e.ID] != e.Balance {
				out.Restated++
			}
			out.Computed = e.Balance
		}
		if out.Drift == 0 {
			return nil
		}
		if _, err := tx.ExecContext(r.Context(),
			"UPDATE customers SET current_balance = $1, version = version + 1, updated_at = now() WHERE id = $2",
			out.Computed, id); err != nil {
			return fmt.Errorf("repairing balance: %w", err)
		}
		out.Repaired = true
		return nil
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if out.Repaired {
		slog.Warn("ledger drift repaired", "customer_id", id,
			"recorded", out.Recorded.String(), "computed", out.Computed.String())
	}
	writeJSON(w, http.StatusOK, out)
}

// dateRange reads the optional from and to query parameters.
func dateRange(w http.ResponseWriter, r *http.Request) (from, to *models.Date, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  **models.Date
	}{{"from", &from}, {"to", &to}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		d, err := models.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+p.name+" date, expected YYYY-MM-DD")
			return nil, nil, false
		}
		*p.dst = &d
	}
	if from != nil && to != nil && to.Before(from.Time) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return nil, nil, false
	}
	return from, to, true
}
