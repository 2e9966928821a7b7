package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/satheeshds/receivables/allocation"
	"github.com/satheeshds/receivables/ledger"
	"github.com/satheeshds/receivables/models"
)

const customerColumns = `id, name, email, phone, opening_balance, opening_balance_paid,
	current_balance, as_of_date, version, created_at, updated_at`

const customerSelectQuery = `SELECT ` + customerColumns + ` FROM customers`

func scanCustomer(scanner interface{ Scan(...any) error }) (models.Customer, error) {
	var c models.Customer
	err := scanner.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.OpeningBalance, &c.OpeningBalancePaid,
		&c.CurrentBalance, &c.AsOfDate, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	c.RemainingOpeningBalance = c.RemainingOpening()
	return c, err
}

func getCustomer(ctx context.Context, q queryer, id int) (models.Customer, error) {
	c, err := scanCustomer(q.QueryRowContext(ctx, customerSelectQuery+" WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return c, notFound("customer")
	}
	return c, err
}

// lockCustomer loads a customer and holds its row lock for the rest of tx.
// Every change to a customer's balance goes through this lock.
func lockCustomer(ctx context.Context, tx *sql.Tx, id int) (models.Customer, error) {
	c, err := scanCustomer(tx.QueryRowContext(ctx, customerSelectQuery+" WHERE id = $1 FOR UPDATE", id))
	if errors.Is(err, sql.ErrNoRows) {
		return c, notFound("customer")
	}
	if err != nil {
		return c, fmt.Errorf("locking customer %d: %w", id, err)
	}
	return c, nil
}

// ListCustomers lists all customers
// @Summary      List customers
// @Description  Get a list of customers with their current balances.
// @Tags         customers
// @Produce      json
// @Param        search  query     string  false  "Search by name, email or phone"
// @Success      200  {object}  Response{data=[]models.Customer}
// @Router       /customers [get]
// @Security     BasicAuth
func ListCustomers(w http.ResponseWriter, r *http.Request) {
	var where whereBuilder
	if search := r.URL.Query().Get("search"); search != "" {
		p := "%" + search + "%"
		where.add("(name ILIKE ? OR email ILIKE ? OR phone ILIKE ?)", p, p, p)
	}

	rows, err := DB.QueryContext(r.Context(), customerSelectQuery+where.String()+" ORDER BY name, id", where.args...)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

// GetCustomer retrieves a single customer by ID
// @Summary      Get customer
// @Tags         customers
// @Produce      json
// @Param        id   path      int  true  "Customer ID"
// @Success      200  {object}  Response{data=models.Customer}
// @Failure      404  {object}  Response{error=string}
// @Router       /customers/{id} [get]
// @Security     BasicAuth
func GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := getCustomer(r.Context(), DB, id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// CreateCustomer creates a new customer
// @Summary      Create customer
// @Description  Create a customer. A non-zero opening balance is posted to the ledger as of as_of_date.
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        customer  body      models.CustomerInput  true  "Customer contents"
// @Success      201       {object}  Response{data=models.Customer}
// @Failure      400       {object}  Response{error=string}
// @Router       /customers [post]
// @Security     BasicAuth
func CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var input models.CustomerInput
	if !decodeJSON(w, r, &input) {
		return
	}
	asOf := models.Today()
	if input.AsOfDate != nil && !input.AsOfDate.IsZero() {
		asOf = *input.AsOfDate
	}

	var c models.Customer
	err := withTx(r.Context(), func(tx *sql.Tx) error {
		var err error
		c, err = scanCustomer(tx.QueryRowContext(r.Context(),
			`INSERT INTO customers (name, email, phone, opening_balance, as_of_date)
			VALUES ($1, $2, $3, $4, $5) RETURNING `+customerColumns,
			input.Name, input.Email, input.Phone, input.OpeningBalance, asOf))
		if err != nil {
			return fmt.Errorf("inserting customer: %w", err)
		}
		if entry, ok := ledger.Opening(&c); ok {
			if _, err := postEntry(r.Context(), tx, &c, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	slog.Info("customer created", "customer_id", c.ID, "opening_balance", c.OpeningBalance.String())
	writeJSON(w, http.StatusCreated, c)
}

// UpdateCustomer updates an existing customer
// @Summary      Update customer
// @Description  Update contact details. The opening balance and its date are fixed at creation; use an adjustment to correct them.
// @Tags         customers
// @Accept       json
// @Produce      json
// @Param        id        path      int                   true  "Customer ID"
// @Param        customer  body      models.CustomerInput  true  "Updated customer contents"
// @Success      200       {object}  Response{data=models.Customer}
// @Failure      400       {object}  Response{error=string}
// @Failure      404       {object}  Response{error=string}
// @Router       /customers/{id} [put]
// @Security     BasicAuth
func UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input models.CustomerInput
	if !decodeJSON(w, r, &input) {
		return
	}

	c, err := scanCustomer(DB.QueryRowContext(r.Context(),
		`UPDATE customers SET name = $1, email = $2, phone = $3, updated_at = now()
		WHERE id = $4 RETURNING `+customerColumns,
		input.Name, input.Email, input.Phone, id))
	if errors.Is(err, sql.ErrNoRows) {
		err = notFound("customer")
	}
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCustomer deletes a customer
// @Summary      Delete customer
// @Description  Remove a customer that has no invoices and no payments.
// @Tags         customers
// @Produce      json
// @Param        id   path      int  true  "Customer ID"
// @Success      200  {object}  Response{data=map[string]string}
// @Failure      404  {object}  Response{error=string}
// @Failure      409  {object}  Response{error=string}
// @Router       /customers/{id} [delete]
// @Security     BasicAuth
func DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	err := withTx(r.Context(), func(tx *sql.Tx) error {
		if _, err := lockCustomer(r.Context(), tx, id); err != nil {
			return err
		}
		var invoices, payments int
		err := tx.QueryRowContext(r.Context(),
			`SELECT (SELECT COUNT(*) FROM invoices WHERE customer_id = $1),
			        (SELECT COUNT(*) FROM payments WHERE customer_id = $1)`, id).Scan(&invoices, &payments)
		if err != nil {
			return fmt.Errorf("counting customer documents: %w", err)
		}
		if invoices > 0 || payments > 0 {
			return conflict(fmt.Sprintf("customer has %d invoices and %d payments", invoices, payments))
		}
		_, err = tx.ExecContext(r.Context(), "DELETE FROM customers WHERE id = $1", id)
		return err
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

type outstandingData struct {
	CustomerID     int                 `json:"customer_id"`
	Version        int                 `json:"version"`
	CurrentBalance models.Money        `json:"current_balance"`
	Total          models.Money        `json:"total"`
	Targets        []allocation.Target `json:"targets"`
}

// GetCustomerOutstanding lists what a customer still owes
// @Summary      Get outstanding obligations
// @Description  The unpaid opening balance followed by open invoices in FIFO order.
// @Tags         allocations
// @Produce      json
// @Param        id   path      int  true  "Customer ID"
// @Success      200  {object}  Response{data=outstandingData}
// @Failure      404  {object}  Response{error=string}
// @Router       /customers/{id}/outstanding [get]
// @Security     BasicAuth
func GetCustomerOutstanding(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, targets, err := customerTargets(r.Context(), DB, id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outstandingData{
		CustomerID:     c.ID,
		Version:        c.Version,
		CurrentBalance: c.CurrentBalance,
		Total:          allocation.TotalOutstanding(targets),
		Targets:        allocation.Order(targets),
	})
}

// customerTargets loads a customer and its allocation targets in FIFO order.
func customerTargets(ctx context.Context, q queryer, id int) (models.Customer, []allocation.Target, error) {
	c, err := getCustomer(ctx, q, id)
	if err != nil {
		return c, nil, err
	}
	invoices, err := openInvoices(ctx, q, id)
	if err != nil {
		return c, nil, err
	}
	return c, allocation.Targets(&c, invoices), nil
}
