package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/satheeshds/receivables/allocation"
	"github.com/satheeshds/receivables/ledger"
	"github.com/satheeshds/receivables/models"
)

const paymentSelectQuery = `SELECT p.id, p.customer_id, p.payment_date, p.total_received, p.method,
		p.account_id, p.reference, p.notes, p.idempotency_key, p.opening_balance_allocation,
		p.status, p.voided_at, p.created_at, c.name, a.name,
		COALESCE((SELECT SUM(pa.amount) FROM payment_allocations pa WHERE pa.payment_id = p.id), 0)::BIGINT
		FROM payments p
		LEFT JOIN customers c ON p.customer_id = c.id
		LEFT JOIN accounts a ON p.account_id = a.id`

func scanPayment(scanner interface{ Scan(...any) error }) (models.Payment, error) {
	var p models.Payment
	var invoiced models.Money
	err := scanner.Scan(&p.ID, &p.CustomerID, &p.PaymentDate, &p.TotalReceived, &p.Method,
		&p.AccountID, &p.Reference, &p.Notes, &p.IdempotencyKey, &p.OpeningBalanceAllocation,
		&p.Status, &p.VoidedAt, &p.CreatedAt, &p.CustomerName, &p.AccountName, &invoiced)
	p.Allocated = invoiced + p.OpeningBalanceAllocation
	p.Unapplied = p.TotalReceived - p.Allocated
	return p, err
}

func getPayment(ctx context.Context, q queryer, id int) (models.Payment, error) {
	p, err := scanPayment(q.QueryRowContext(ctx, paymentSelectQuery+" WHERE p.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, notFound("payment")
	}
	if err != nil {
		return p, err
	}
	p.Allocations, err = paymentAllocations(ctx, q, id)
	return p, err
}

func paymentAllocations(ctx context.Context, q queryer, paymentID int) ([]models.PaymentAllocation, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT pa.id, pa.payment_id, pa.invoice_id, i.invoice_number, pa.amount, pa.created_at
		FROM payment_allocations pa JOIN invoices i ON pa.invoice_id = i.id
		WHERE pa.payment_id = $1 ORDER BY pa.id`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("loading allocations: %w", err)
	}
	defer rows.Close()

	allocs := []models.PaymentAllocation{}
	for rows.Next() {
		var a models.PaymentAllocation
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.InvoiceID, &a.InvoiceNumber, &a.Amount, &a.CreatedAt); err != nil {
			return nil, err
		}
		allocs = append(allocs, a)
	}
	return allocs, rows.Err()
}

// previewInput asks for a FIFO plan, optionally with per-target edits.
type previewInput struct {
	Amount    models.Money          `json:"amount"`
	Overrides []allocation.Override `json:"overrides"`
}

func (p *previewInput) Validate() string {
	if p.Amount < 0 {
		return "amount must be non-negative"
	}
	return ""
}

type previewData struct {
	CustomerID int                `json:"customer_id"`
	Version    int                `json:"version"`
	Plan       *allocation.Plan   `json:"plan"`
	Summary    allocation.Summary `json:"summary"`
}

// PreviewAllocation proposes how a payment would be applied
// @Summary      Preview allocation
// @Description  FIFO-allocate amount across the customer's outstanding obligations. With overrides, each listed target is set to its amount and the payment total becomes the sum of all lines. Nothing is saved; post the returned version as expected_version.
// @Tags         allocations
// @Accept       json
// @Produce      json
// @Param        id       path      int           true  "Customer ID"
// @Param        preview  body      previewInput  true  "Amount and overrides"
// @Success      200      {object}  Response{data=previewData}
// @Failure      404      {object}  Response{error=string}
// @Failure      422      {object}  Response{error=string}
// @Router       /customers/{id}/allocations/preview [post]
// @Security     BasicAuth
func PreviewAllocation(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input previewInput
	if !decodeJSON(w, r, &input) {
		return
	}

	c, targets, err := customerTargets(r.Context(), DB, id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	plan, err := allocation.FIFO(input.Amount, targets)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	amount := input.Amount
	if len(input.Overrides) > 0 {
		seen := make(map[string]bool, len(input.Overrides))
		for _, o := range input.Overrides {
			if seen[o.Key] {
				writeFailure(w, r, fmt.Errorf("%w: %s", allocation.ErrDuplicateTarget, o.Key))
				return
			}
			seen[o.Key] = true
			if err := plan.Set(o.Key, o.Amount); err != nil {
				writeFailure(w, r, err)
				return
			}
		}
		amount = plan.Total()
	}
	writeJSON(w, http.StatusOK, previewData{
		CustomerID: c.ID,
		Version:    c.Version,
		Plan:       plan,
		Summary:    plan.Summarize(amount),
	})
}

// ListPayments lists payments
// @Summary      List payments
// @Tags         payments
// @Produce      json
// @Param        customer_id  query     int     false  "Filter by customer"
// @Param        status       query     string  false  "Filter by status"  Enums(posted, voided)
// @Param        from         query     string  false  "Received on or after (YYYY-MM-DD)"
// @Param        to           query     string  false  "Received on or before (YYYY-MM-DD)"
// @Success      200  {object}  Response{data=[]models.Payment}
// @Router       /payments [get]
// @Security     BasicAuth
func ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	var where whereBuilder
	if cid := q.Get("customer_id"); cid != "" {
		id, err := strconv.Atoi(cid)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid customer_id")
			return
		}
		where.add("p.customer_id = ?", id)
	}
	if s := q.Get("status"); s != "" {
		where.add("p.status = ?", s)
	}
	if from != nil {
		where.add("p.payment_date >= ?", *from)
	}
	if to != nil {
		where.add("p.payment_date <= ?", *to)
	}

	rows, err := DB.QueryContext(r.Context(),
		paymentSelectQuery+where.String()+" ORDER BY p.payment_date DESC, p.id DESC", where.args...)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer rows.Close()

	payments := []models.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// GetPayment retrieves a payment with its allocations
// @Summary      Get payment
// @Tags         payments
// @Produce      json
// @Param        id   path      int  true  "Payment ID"
// @Success      200  {object}  Response{data=models.Payment}
// @Failure      404  {object}  Response{error=string}
// @Router       /payments/{id} [get]
// @Security     BasicAuth
func GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := getPayment(r.Context(), DB, id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// buildPlan turns the payment input into an allocation plan over targets.
func buildPlan(input *models.PaymentInput, targets []allocation.Target) (*allocation.Plan, error) {
	if input.Mode == models.AllocateFIFO {
		return allocation.FIFO(input.TotalReceived, targets)
	}
	overrides := make([]allocation.Override, 0, len(input.Allocations)+1)
	if input.OpeningBalanceAllocation > 0 {
		overrides = append(overrides, allocation.Override{
			Key: allocation.OpeningBalanceKey, Amount: input.OpeningBalanceAllocation,
		})
	}
	for _, a := range input.Allocations {
		overrides = append(overrides, allocation.Override{Key: allocation.InvoiceKey(a.InvoiceID), Amount: a.Amount})
	}
	return allocation.Manual(input.TotalReceived, targets, overrides)
}

// CreatePayment records a payment and applies it
// @Summary      Create payment
// @Description  Record money received and allocate it FIFO or by explicit lines. The whole posting is atomic. A repeated idempotency_key returns the original payment with 200. A stale expected_version is rejected with 409.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        payment  body      models.PaymentInput  true  "Payment"
// @Success      200      {object}  Response{data=models.Payment}
// @Success      201      {object}  Response{data=models.Payment}
// @Failure      400      {object}  Response{error=string}
// @Failure      404      {object}  Response{error=string}
// @Failure      409      {object}  Response{error=string}
// @Failure      422      {object}  Response{error=string}
// @Router       /payments [post]
// @Security     BasicAuth
func CreatePayment(w http.ResponseWriter, r *http.Request) {
	var input models.PaymentInput
	if !decodeJSON(w, r, &input) {
		return
	}
	ctx := r.Context()

	var p models.Payment
	replayed := false
	err := withTx(ctx, func(tx *sql.Tx) error {
		c, err := lockCustomer(ctx, tx, input.CustomerID)
		if err != nil {
			return err
		}

		if input.IdempotencyKey != nil {
			var existing int
			err := tx.QueryRowContext(ctx, "SELECT id FROM payments WHERE idempotency_key = $1", *input.IdempotencyKey).Scan(&existing)
			switch {
			case err == nil:
				if p, err = getPayment(ctx, tx, existing); err != nil {
					return err
				}
				if p.CustomerID != c.ID {
					return conflict("idempotency_key was already used for another customer")
				}
				replayed = true
				return nil
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("checking idempotency key: %w", err)
			}
		}

		if input.ExpectedVersion != nil && *input.ExpectedVersion != c.Version {
			return conflict(fmt.Sprintf("customer balance changed (version %d, expected %d); refresh the allocation and retry",
				c.Version, *input.ExpectedVersion))
		}
		if input.AccountID != nil {
			var exists bool
			if err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)", *input.AccountID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return badRequest("account not found")
			}
		}

		invoices, err := openInvoices(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		plan, err := buildPlan(&input, allocation.Targets(&c, invoices))
		if err != nil {
			return err
		}

		p = models.Payment{
			CustomerID:               c.ID,
			PaymentDate:              *input.PaymentDate,
			TotalReceived:            input.TotalReceived,
			Method:                   input.Method,
			AccountID:                input.AccountID,
			Reference:                input.Reference,
			Notes:                    input.Notes,
			IdempotencyKey:           input.IdempotencyKey,
			OpeningBalanceAllocation: plan.OpeningBalance(),
			Status:                   models.PaymentPosted,
			CustomerName:             &c.Name,
			Allocations:              []models.PaymentAllocation{},
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO payments (customer_id, payment_date, total_received, method, account_id, reference, notes,
				idempotency_key, opening_balance_allocation, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, created_at`,
			p.CustomerID, p.PaymentDate, p.TotalReceived, p.Method, p.AccountID, p.Reference, p.Notes,
			p.IdempotencyKey, p.OpeningBalanceAllocation, p.Status).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting payment: %w", err)
		}

		byID := make(map[int]*models.Invoice, len(invoices))
		for i := range invoices {
			byID[invoices[i].ID] = &invoices[i]
		}
		for _, line := range plan.Invoices() {
			a := models.PaymentAllocation{PaymentID: p.ID, InvoiceID: line.InvoiceID, InvoiceNumber: line.Number, Amount: line.Amount}
			if err := tx.QueryRowContext(ctx,
				"INSERT INTO payment_allocations (payment_id, invoice_id, amount) VALUES ($1, $2, $3) RETURNING id, created_at",
				a.PaymentID, a.InvoiceID, a.Amount).Scan(&a.ID, &a.CreatedAt); err != nil {
				return fmt.Errorf("inserting allocation: %w", err)
			}
			if err := settleInvoice(ctx, tx, byID[line.InvoiceID], line.Amount); err != nil {
				return err
			}
			p.Allocations = append(p.Allocations, a)
		}
		if p.OpeningBalanceAllocation > 0 {
			if _, err := tx.ExecContext(ctx,
				"UPDATE customers SET opening_balance_paid = opening_balance_paid + $1 WHERE id = $2",
				p.OpeningBalanceAllocation, c.ID); err != nil {
				return fmt.Errorf("settling opening balance: %w", err)
			}
		}
		p.Allocated = plan.Total()
		p.Unapplied = p.TotalReceived - p.Allocated

		_, err = postEntry(ctx, tx, &c, ledger.Payment(&p))
		return err
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	if replayed {
		slog.Info("payment replayed", "payment_id", p.ID, "idempotency_key", *input.IdempotencyKey)
		writeJSON(w, http.StatusOK, p)
		return
	}
	slog.Info("payment posted", "payment_id", p.ID, "customer_id", p.CustomerID,
		"amount", p.TotalReceived.String(), "allocated", p.Allocated.String(), "mode", input.Mode)
	writeJSON(w, http.StatusCreated, p)
}

// VoidPayment reverses a payment
// @Summary      Void payment
// @Description  Undo a payment's allocations and post a reversing ledger entry. The payment is kept with status voided.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id    path      int               true  "Payment ID"
// @Param        void  body      models.VoidInput  true  "Reason"
// @Success      200   {object}  Response{data=models.Payment}
// @Failure      404   {object}  Response{error=string}
// @Failure      409   {object}  Response{error=string}
// @Router       /payments/{id}/void [post]
// @Security     BasicAuth
func VoidPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input models.VoidInput
	if !decodeJSON(w, r, &input) {
		return
	}
	ctx := r.Context()

	var p models.Payment
	err := withTx(ctx, func(tx *sql.Tx) error {
		var customerID int
		err := tx.QueryRowContext(ctx, "SELECT customer_id FROM payments WHERE id = $1", id).Scan(&customerID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("payment")
		}
		if err != nil {
			return err
		}
		c, err := lockCustomer(ctx, tx, customerID)
		if err != nil {
			return err
		}
		if p, err = getPayment(ctx, tx, id); err != nil {
			return err
		}
		if p.Status == models.PaymentVoided {
			return conflict("payment is already voided")
		}

		for _, a := range p.Allocations {
			inv, err := lockInvoice(ctx, tx, a.InvoiceID)
			if err != nil {
				return err
			}
			if err := settleInvoice(ctx, tx, &inv, -a.Amount); err != nil {
				return err
			}
		}
		if p.OpeningBalanceAllocation > 0 {
			if _, err := tx.ExecContext(ctx,
				"UPDATE customers SET opening_balance_paid = opening_balance_paid - $1 WHERE id = $2",
				p.OpeningBalanceAllocation, c.ID); err != nil {
				return fmt.Errorf("restoring opening balance: %w", err)
			}
		}
		if err := tx.QueryRowContext(ctx,
			"UPDATE payments SET status = $1, voided_at = now() WHERE id = $2 RETURNING voided_at",
			models.PaymentVoided, id).Scan(&p.VoidedAt); err != nil {
			return fmt.Errorf("voiding payment: %w", err)
		}
		p.Status = models.PaymentVoided

		_, err = postEntry(ctx, tx, &c, ledger.Reversal(&p, *input.VoidDate, input.Reason))
		return err
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	slog.Info("payment voided", "payment_id", p.ID, "customer_id", p.CustomerID, "reason", input.Reason)
	writeJSON(w, http.StatusOK, p)
}
