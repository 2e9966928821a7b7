package handlers

import (
	"context"
	"database/sql"
	"fmt"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, committing only if fn succeeds.
func withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// whereBuilder accumulates AND-ed conditions with numbered placeholders.
type whereBuilder struct {
	conditions []string
	args       []any
}

// add appends a condition; each "?" in cond becomes the next $n placeholder.
func (b *whereBuilder) add(cond string, args ...any) {
	var out []byte
	i := 0
	for j := 0; j < len(cond); j++ {
		if cond[j] == '?' && i < len(args) {
			b.args = append(b.args, args[i])
			i++
			out = fmt.Appendf(out, "$%d", len(b.args))
			continue
		}
		out = append(out, cond[j])
	}
	b.conditions = append(b.conditions, string(out))
}

func (b *whereBuilder) String() string {
	if len(b.conditions) == 0 {
		return ""
	}
	s := " WHERE " + b.conditions[0]
	for _, c := range b.conditions[1:] {
		s += " AND " + c
	}
	return s
}
