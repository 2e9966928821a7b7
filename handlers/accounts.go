package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/satheeshds/receivables/models"
)

const accountSelectQuery = `SELECT id, name, type, opening_balance, created_at, updated_at,
	(opening_balance +
	 COALESCE((SELECT SUM(total_received) FROM payments WHERE account_id = accounts.id AND status = 'posted'), 0)
	)::BIGINT AS balance
	FROM accounts`

func scanAccount(scanner interface{ Scan(...any) error }) (models.Account, error) {
	var a models.Account
	err := scanner.Scan(&a.ID, &a.Name, &a.Type, &a.OpeningBalance, &a.CreatedAt, &a.UpdatedAt, &a.Balance)
	if errors.Is(err, sql.ErrNoRows) {
		err = notFound("account")
	}
	return a, err
}

// ListAccounts lists all accounts
// @Summary      List accounts
// @Description  Get the bank, cash and card accounts payments are deposited to, with current balances.
// @Tags         accounts
// @Produce      json
// @Param        search  query     string  false  "Search by name"
// @Success      200  {object}  Response{data=[]models.Account}
// @Router       /accounts [get]
// @Security     BasicAuth
func ListAccounts(w http.ResponseWriter, r *http.Request) {
	var where whereBuilder
	if search := r.URL.Query().Get("search"); search != "" {
		where.add("name ILIKE ?", "%"+search+"%")
	}
	rows, err := DB.QueryContext(r.Context(), accountSelectQuery+where.String()+" ORDER BY name", where.args...)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	defer rows.Close()

	accounts := []models.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// GetAccount retrieves a single account by ID
// @Summary      Get account
// @Tags         accounts
// @Produce      json
// @Param        id   path      int  true  "Account ID"
// @Success      200  {object}  Response{data=models.Account}
// @Failure      404  {object}  Response{error=string}
// @Router       /accounts/{id} [get]
// @Security     BasicAuth
func GetAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	a, err := scanAccount(DB.QueryRowContext(r.Context(), accountSelectQuery+" WHERE id = $1", id))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CreateAccount creates a new account
// @Summary      Create account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        account  body      models.AccountInput  true  "Account contents"
// @Success      201      {object}  Response{data=models.Account}
// @Failure      400      {object}  Response{error=string}
// @Router       /accounts [post]
// @Security     BasicAuth
func CreateAccount(w http.ResponseWriter, r *http.Request) {
	var input models.AccountInput
	if !decodeJSON(w, r, &input) {
		return
	}

	var id int
	err := DB.QueryRowContext(r.Context(),
		"INSERT INTO accounts (name, type, opening_balance) VALUES ($1, $2, $3) RETURNING id",
		input.Name, input.Type, input.OpeningBalance).Scan(&id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}

	a, err := scanAccount(DB.QueryRowContext(r.Context(), accountSelectQuery+" WHERE id = $1", id))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// UpdateAccount updates an existing account
// @Summary      Update account
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        id       path      int                 true  "Account ID"
// @Param        account  body      models.AccountInput true  "Updated account contents"
// @Success      200      {object}  Response{data=models.Account}
// @Failure      400      {object}  Response{error=string}
// @Failure      404      {object}  Response{error=string}
// @Router       /accounts/{id} [put]
// @Security     BasicAuth
func UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input models.AccountInput
	if !decodeJSON(w, r, &input) {
		return
	}

	res, err := DB.ExecContext(r.Context(),
		"UPDATE accounts SET name = $1, type = $2, opening_balance = $3, updated_at = now() WHERE id = $4",
		input.Name, input.Type, input.OpeningBalance, id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	a, err := scanAccount(DB.QueryRowContext(r.Context(), accountSelectQuery+" WHERE id = $1", id))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAccount deletes an account
// @Summary      Delete account
// @Description  Remove an account no payment was deposited to.
// @Tags         accounts
// @Produce      json
// @Param        id   path      int  true  "Account ID"
// @Success      200  {object}  Response{data=map[string]string}
// @Failure      404  {object}  Response{error=string}
// @Failure      409  {object}  Response{error=string}
// @Router       /accounts/{id} [delete]
// @Security     BasicAuth
func DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var used bool
	if err := DB.QueryRowContext(r.Context(),
		"SELECT EXISTS (SELECT 1 FROM payments WHERE account_id = $1)", id).Scan(&used); err != nil {
		writeFailure(w, r, err)
		return
	}
	if used {
		writeError(w, http.StatusConflict, "account has payments deposited to it")
		return
	}

	res, err := DB.ExecContext(r.Context(), "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}
