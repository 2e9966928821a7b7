package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/satheeshds/receivables/allocation"
)

// Postgres error codes the API translates.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// statusError carries the HTTP status a failure should be reported with.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

func notFound(what string) error {
	return &statusError{status: http.StatusNotFound, msg: what + " not found"}
}

func conflict(msg string) error {
	return &statusError{status: http.StatusConflict, msg: msg}
}

func badRequest(msg string) error {
	return &statusError{status: http.StatusBadRequest, msg: msg}
}

// writeFailure maps err onto a response.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var se *statusError
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &se):
		writeError(w, se.status, se.msg)
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "not found")
	case allocation.IsRuleViolation(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		writeError(w, http.StatusConflict, "duplicate value violates "+pgErr.ConstraintName)
	case errors.As(err, &pgErr) && (pgErr.Code == pgForeignKeyViolation || pgErr.Code == pgCheckViolation):
		writeError(w, http.StatusConflict, pgErr.Message)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
