package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/satheeshds/receivables/ledger"
	"github.com/satheeshds/receivables/models"
)

const invoiceSelectQuery = `SELECT i.id, i.customer_id, i.invoice_number, i.issue_date, i.due_date,
		i.total_amount, i.paid_amount, i.status, i.notes, i.created_at, i.updated_at, c.name
		FROM invoices i
		LEFT JOIN customers c ON i.customer_id = c.id`

func scanInvoice(scanner interface{ Scan(...any) error }) (models.Invoice, error) {
	var inv models.Invoice
	err := scanner.Scan(&inv.ID, &inv.CustomerID, &inv.InvoiceNumber, &inv.IssueDate, &inv.DueDate,
		&inv.TotalAmount, &inv.PaidAmount, &inv.Status, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt,
		&inv.CustomerName)
	inv.PendingAmount = inv.Pending()
	return inv, err
}

// present applies the read-time overdue rule.
func present(inv *models.Invoice, today models.Date) {
	inv.Status = inv.EffectiveStatus(today)
}

func getInvoice(ctx context.Context, q queryer, id int) (models.Invoice, error) {
	inv, err := scanInvoice(q.QueryRowContext(ctx, invoiceSelectQuery+" WHERE i.id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return inv, notFound("invoice")
	}
	return inv, err
}

// lockInvoice loads an invoice FOR UPDATE. Callers lock the owning customer first.
func lockInvoice(ctx context.Context, tx *sql.Tx, id int) (models.Invoice, error) {
	inv, err := scanInvoice(tx.QueryRowContext(ctx, invoiceSelectQuery+" WHERE i.id = $1 FOR UPDATE OF i", id))
	if errors.Is(err, sql.ErrNoRows) {
		return inv, notFound("invoice")
	}
	if err != nil {
		return inv, fmt.Errorf("locking invoice %d: %w", id, err)
	}
	return inv, nil
}

// openInvoices returns the customer's issued invoices that still have a
// pending amount, oldest due date first.
func openInvoices(ctx context.Context, q queryer, customerID int) ([]models.Invoice, error) {
	rows, err := q.QueryContext(ctx, invoiceSelectQuery+`
		WHERE i.customer_id = $1 AND i.status IN ('sent', 'partial', 'overdue') AND i.paid_amount < i.total_amount
		ORDER BY i.due_date NULLS LAST, i.created_at, i.id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("loading open invoices: %w", err)
	}
	defer rows.Close()

	var invoices []models.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// settleInvoice moves paid_amount by delta and re-derives the status.
func settleInvoice(ctx context.Context, tx *sql.Tx, inv *models.Invoice, delta models.Money) error {
	inv.PaidAmount += delta
	inv.Status = models.SettledStatus(inv.TotalAmount, inv.PaidAmount, inv.Status)
	inv.PendingAmount = inv.Pending()
	_, err := tx.ExecContext(ctx,
		"UPDATE invoices SET paid_amount = $1, status = $2, updated_at = now() WHERE id = $3",
		inv.PaidAmount, inv.Status, inv.ID)
	if err != nil {
		return fmt.Errorf("settling invoice %s: %w", inv.InvoiceNumber, err)
	}
	return nil
}

// issue moves a draft to sent and debits the customer. A zero-value invoice
// is settled on issue.
func issue(ctx context.Context, tx *sql.Tx, c *models.Customer, inv *models.Invoice) error {
	status := models.SettledStatus(inv.TotalAmount, inv.PaidAmount, models.InvoiceSent)
	if _, err := tx.ExecContext(ctx,
		"UPDATE invoices SET status = $1, updated_at = now() WHERE id = $2", status, inv.ID); err != nil {
		return fmt.Errorf("issuing invoice: %w", err)
	}
	inv.Status = status
	inv.PendingAmount = inv.Pending()
	_, err := postEntry(ctx, tx, c, ledger.Invoice(inv))
	return err
}

// ListInvoices lists all invoices
// @Summary      List invoices
// @Description  Get a list of receivable invoices with paid and pending amounts.
// @Tags         invoices
// @Produce      json
// @Param        status       query     string  false  "Filter by status"  Enums(draft, sent, partial, paid, overdue, cancelled)
// @Param        customer_id  query     int     false  "Filter by customer"
// @Param        from         query     string  false  "Issued on or after (YYYY-MM-DD)"
// @Param        to           query     string  false  "Issued on or before (YYYY-MM-DD)"
// @Param        search       query     string  false  "Search by invoice number, notes, or customer name"
// @Success      200          {object}  Response{data=[]models.Invoice}
// @Router       /invoices [get]
// @Security     BasicAuth
func ListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}

	var where whereBuilder
	switch s := q.Get("status"); s {
	case "":
	case models.InvoiceOverdue:
		where.add("(i.status = 'overdue' OR (i.status IN ('sent', 'partial') AND i.due_date < ?))", models.Today())
	case models.InvoiceSent, models.InvoicePartial:
		where.add("i.status = ? AND (i.due_date IS NULL OR i.due_date >= ?)", s, models.Today())
	default:
		where.add("i.status = ?", s)
	}
	if cid := q.Get("customer_id"); cid != "" {
		id, err := strconv.Atoi(cid)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid customer_id")
			return
		}
		where.add("i.customer_id = ?", id)
	}
	if from != nil {
		where.add("i.issue_date >= ?", *from)
	}
	if to != nil {
		where.add("i.issue_date <= ?", *to)
	}
	if search := q.Get("search"); search != "" {
		p := "%" + search + "%"
		where.add("(i.invoice_number ILIKE ? OR i.notes ILIKE ? OR c.name ILIKE ?)", p, p, p)
	}

	rows, err := DB.QueryContext(r.Context(),
		invoiceSelectQuery+where.String()+" ORDER BY i.issue_date DESC, i.id DESC", where.args...)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer rows.Close()

	today := models.Today()
	invoices := []models.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		present(&inv, today)
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

// GetInvoice retrieves a single invoice by ID
// @Summary      Get invoice
// @Tags         invoices
// @Produce      json
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  Response{data=models.Invoice}
// @Failure      404  {object}  Response{error=string}
// @Router       /invoices/{id} [get]
// @Security     BasicAuth
func GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inv, err := getInvoice(r.Context(), DB, id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	present(&inv, models.Today())
	writeJSON(w, http.StatusOK, inv)
}

// CreateInvoice creates a new invoice
// @Summary      Create invoice
// @Description  Create a draft invoice, or a sent one that is posted to the customer's ledger immediately.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        invoice  body      models.InvoiceInput  true  "Invoice contents"
// @Success      201      {object}  Response{data=models.Invoice}
// @Failure      400      {object}  Response{error=string}
// @Failure      404      {object}  Response{error=string}
// @Failure      409      {object}  Response{error=string}
// @Router       /invoices [post]
// @Security     BasicAuth
func CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var input models.InvoiceInput
	if !decodeJSON(w, r, &input) {
		return
	}

	var inv models.Invoice
	err := withTx(r.Context(), func(tx *sql.Tx) error {
		c, err := lockCustomer(r.Context(), tx, input.CustomerID)
		if err != nil {
			return err
		}
		var id int
		err = tx.QueryRowContext(r.Context(),
			`INSERT INTO invoices (customer_id, invoice_number, issue_date, due_date, total_amount, status, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			input.CustomerID, input.InvoiceNumber, *input.IssueDate, input.DueDate, input.TotalAmount,
			models.InvoiceDraft, input.Notes).Scan(&id)
		if err != nil {
			return fmt.Errorf("inserting invoice: %w", err)
		}
		if inv, err = getInvoice(r.Context(), tx, id); err != nil {
			return err
		}
		if input.Status == models.InvoiceSent {
			return issue(r.Context(), tx, &c, &inv)
		}
		return nil
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	slog.Info("invoice created", "invoice_id", inv.ID, "number", inv.InvoiceNumber, "status", inv.Status)
	writeJSON(w, http.StatusCreated, inv)
}

// UpdateInvoice updates a draft invoice
// @Summary      Update invoice
// @Description  Edit a draft invoice. Setting status to sent issues it.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id       path      int                  true  "Invoice ID"
// @Param        invoice  body      models.InvoiceInput  true  "Updated invoice contents"
// @Success      200      {object}  Response{data=models.Invoice}
// @Failure      400      {object}  Response{error=string}
// @Failure      404      {object}  Response{error=string}
// @Failure      409      {object}  Response{error=string}
// @Router       /invoices/{id} [put]
// @Security     BasicAuth
func UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input models.InvoiceInput
	if !decodeJSON(w, r, &input) {
		return
	}

	var inv models.Invoice
	err := withTx(r.Context(), func(tx *sql.Tx) error {
		c, err := lockCustomer(r.Context(), tx, input.CustomerID)
		if err != nil {
			return err
		}
		current, err := lockInvoice(r.Context(), tx, id)
		if err != nil {
			return err
		}
		if current.Status != models.InvoiceDraft {
			return conflict("only draft invoices can be edited")
		}
		if _, err := tx.ExecContext(r.Context(),
			`UPDATE invoices SET customer_id = $1, invoice_number = $2, issue_date = $3, due_date = $4,
			total_amount = $5, notes = $6, updated_at = now() WHERE id = $7`,
			input.CustomerID, input.InvoiceNumber, *input.IssueDate, input.DueDate, input.TotalAmount,
			input.Notes, id); err != nil {
			return fmt.Errorf("updating invoice: %w", err)
		}
		if inv, err = getInvoice(r.Context(), tx, id); err != nil {
			return err
		}
		if input.Status == models.InvoiceSent {
			return issue(r.Context(), tx, &c, &inv)
		}
		return nil
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// DeleteInvoice deletes a draft invoice
// @Summary      Delete invoice
// @Description  Remove a draft invoice. Issued invoices must be cancelled instead.
// @Tags         invoices
// @Produce      json
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  Response{data=map[string]string}
// @Failure      404  {object}  Response{error=string}
// @Failure      409  {object}  Response{error=string}
// @Router       /invoices/{id} [delete]
// @Security     BasicAuth
func DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := DB.ExecContext(r.Context(), "DELETE FROM invoices WHERE id = $1 AND status = $2", id, models.InvoiceDraft)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := getInvoice(r.Context(), DB, id); err != nil {
			writeFailure(w, r, err)
			return
		}
		writeError(w, http.StatusConflict, "only draft invoices can be deleted; cancel it instead")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

// lockCustomerInvoice locks an invoice together with its customer, customer first.
func lockCustomerInvoice(ctx context.Context, tx *sql.Tx, invoiceID int) (models.Customer, models.Invoice, error) {
	var customerID int
	err := tx.QueryRowContext(ctx, "SELECT customer_id FROM invoices WHERE id = $1", invoiceID).Scan(&customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Customer{}, models.Invoice{}, notFound("invoice")
	}
	if err != nil {
		return models.Customer{}, models.Invoice{}, err
	}
	c, err := lockCustomer(ctx, tx, customerID)
	if err != nil {
		return c, models.Invoice{}, err
	}
	inv, err := lockInvoice(ctx, tx, invoiceID)
	if err != nil {
		return c, inv, err
	}
	if inv.CustomerID != c.ID {
		return c, inv, conflict("invoice changed customer concurrently, retry")
	}
	return c, inv, nil
}

// IssueInvoice sends a draft invoice
// @Summary      Issue invoice
// @Description  Move a draft invoice to sent and debit the customer's ledger.
// @Tags         invoices
// @Produce      json
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  Response{data=models.Invoice}
// @Failure      404  {object}  Response{error=string}
// @Failure      409  {object}  Response{error=string}
// @Router       /invoices/{id}/issue [post]
// @Security     BasicAuth
func IssueInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var inv models.Invoice
	err := withTx(r.Context(), func(tx *sql.Tx) error {
		c, locked, err := lockCustomerInvoice(r.Context(), tx, id)
		if err != nil {
			return err
		}
		inv = locked
		if inv.Status != models.InvoiceDraft {
			return conflict("invoice is already " + inv.Status)
		}
		return issue(r.Context(), tx, &c, &inv)
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	present(&inv, models.Today())
	writeJSON(w, http.StatusOK, inv)
}

// CancelInvoice cancels an invoice
// @Summary      Cancel invoice
// @Description  Cancel an invoice with nothing paid against it. Issued invoices are credited back on the ledger.
// @Tags         invoices
// @Produce      json
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  Response{data=models.Invoice}
// @Failure      404  {object}  Response{error=string}
// @Failure      409  {object}  Response{error=string}
// @Router       /invoices/{id}/cancel [post]
// @Security     BasicAuth
func CancelInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var inv models.Invoice
	err := withTx(r.Context(), func(tx *sql.Tx) error {
		c, locked, err := lockCustomerInvoice(r.Context(), tx, id)
		if err != nil {
			return err
		}
		inv = locked
		if inv.Status == models.InvoiceCancelled {
			return conflict("invoice is already cancelled")
		}
		if inv.PaidAmount > 0 {
			return conflict("invoice has payments applied; void them first")
		}
		wasIssued := inv.Status != models.InvoiceDraft
		if _, err := tx.ExecContext(r.Context(),
			"UPDATE invoices SET status = $1, updated_at = now() WHERE id = $2", models.InvoiceCancelled, id); err != nil {
			return fmt.Errorf("cancelling invoice: %w", err)
		}
		inv.Status = models.InvoiceCancelled
		if wasIssued {
			_, err = postEntry(r.Context(), tx, &c, ledger.Cancellation(&inv, models.Today()))
		}
		return err
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	slog.Info("invoice cancelled", "invoice_id", inv.ID, "number", inv.InvoiceNumber)
	writeJSON(w, http.StatusOK, inv)
}

type invoicePayment struct {
	models.PaymentAllocation
	PaymentDate   models.Date `json:"payment_date"`
	Method        string      `json:"method"`
	PaymentStatus string      `json:"payment_status"`
}

// GetInvoicePayments lists the payments applied to an invoice
// @Summary      List invoice payments
// @Tags         invoices
// @Produce      json
// @Param        id   path      int  true  "Invoice ID"
// @Success      200  {object}  Response{data=[]invoicePayment}
// @Failure      404  {object}  Response{error=string}
// @Router       /invoices/{id}/payments [get]
// @Security     BasicAuth
func GetInvoicePayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := getInvoice(r.Context(), DB, id); err != nil {
		writeFailure(w, r, err)
		return
	}

	rows, err := DB.QueryContext(r.Context(),
		`SELECT pa.id, pa.payment_id, pa.invoice_id, i.invoice_number, pa.amount, pa.created_at,
			p.payment_date, p.method, p.status
		FROM payment_allocations pa
		JOIN payments p ON pa.payment_id = p.id
		JOIN invoices i ON pa.invoice_id = i.id
		WHERE pa.invoice_id = $1
		ORDER BY p.payment_date, pa.id`, id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer rows.Close()

	payments := []invoicePayment{}
	for rows.Next() {
		var p invoicePayment
		if err := rows.Scan(&p.ID, &p.PaymentID, &p.InvoiceID, &p.InvoiceNumber, &p.Amount, &p.CreatedAt,
			&p.PaymentDate, &p.Method, &p.PaymentStatus); err != nil {
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
