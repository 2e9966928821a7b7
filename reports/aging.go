// Package reports runs analytical queries over receivables snapshots in an
// embedded DuckDB database.
package reports

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/satheeshds/receivables/models"
)

// Exposure is one open amount owed by a customer.
type Exposure struct {
	CustomerID   int
	CustomerName string
	Reference    string
	DueDate      *models.Date
	Amount       models.Money
}

// Buckets splits an amount by days past due.
type Buckets struct {
	Current models.Money `json:"current"`
	Days30  models.Money `json:"1_30"`
	Days60  models.Money `json:"31_60"`
	Days90  models.Money `json:"61_90"`
	Over90  models.Money `json:"90_plus"`
	Total   models.Money `json:"total"`
}

func (b *Buckets) add(o Buckets) {
	b.Current += o.Current
	b.Days30 += o.Days30
	b.Days60 += o.Days60
	b.Days90 += o.Days90
	b.Over90 += o.Over90
	b.Total += o.Total
}

// CustomerAging is one customer's row of the aging report.
type CustomerAging struct {
	CustomerID   int    `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Items        int    `json:"items"`
	Buckets
}

// Aging is the receivables aging report.
type Aging struct {
	AsOf      models.Date     `json:"as_of"`
	Customers []CustomerAging `json:"customers"`
	Totals    Buckets         `json:"totals"`
}

// Engine owns the in-memory DuckDB instance.
type Engine struct {
	db *sql.DB
}

// NewEngine opens an in-memory DuckDB database.
func NewEngine() (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging duckdb: %w", err)
	}
	return &Engine{db: db}, nil
}

// Close releases the DuckDB instance.
func (e *Engine) Close() error {
	return e.db.Close()
}

const agingQuery = `SELECT customer_id, customer_name, COUNT(*),
	CAST(COALESCE(SUM(amount) FILTER (WHERE age <= 0), 0) AS BIGINT),
	CAST(COALESCE(SUM(amount) FILTER (WHERE age BETWEEN 1 AND 30), 0) AS BIGINT),
	CAST(COALESCE(SUM(amount) FILTER (WHERE age BETWEEN 31 AND 60), 0) AS BIGINT),
	CAST(COALESCE(SUM(amount) FILTER (WHERE age BETWEEN 61 AND 90), 0) AS BIGINT),
	CAST(COALESCE(SUM(amount) FILTER (WHERE age > 90), 0) AS BIGINT),
	CAST(SUM(amount) AS BIGINT)
	FROM (
		SELECT customer_id, customer_name, amount,
			COALESCE(date_diff('day', due_date, CAST(? AS DATE)), 0) AS age
		FROM exposures
	)
	GROUP BY customer_id, customer_name
	ORDER BY customer_name, customer_id`

// Aging buckets exposures by days past due on asOf. Exposures without a due
// date count as current.
func (e *Engine) Aging(ctx context.Context, asOf models.Date, exposures []Exposure) (*Aging, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring duckdb connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `CREATE OR REPLACE TEMP TABLE exposures (
		customer_id INTEGER, customer_name VARCHAR, reference VARCHAR, due_date DATE, amount BIGINT)`); err != nil {
		return nil, fmt.Errorf("creating exposures table: %w", err)
	}
	defer conn.ExecContext(context.WithoutCancel(ctx), "DROP TABLE IF EXISTS exposures")

	if err := load(ctx, conn, exposures); err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, agingQuery, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("running aging query: %w", err)
	}
	defer rows.Close()

	report := &Aging{AsOf: asOf, Customers: []CustomerAging{}}
	for rows.Next() {
		var c CustomerAging
		if err := rows.Scan(&c.CustomerID, &c.CustomerName, &c.Items,
			&c.Current, &c.Days30, &c.Days60, &c.Days90, &c.Over90, &c.Total); err != nil {
			return nil, fmt.Errorf("scanning aging row: %w", err)
		}
		report.Totals.add(c.Buckets)
		report.Customers = append(report.Customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slog.Debug("aging report built", "as_of", asOf.String(), "exposures", len(exposures), "customers", len(report.Customers))
	return report, nil
}

func load(ctx context.Context, conn *sql.Conn, exposures []Exposure) error {
	stmt, err := conn.PrepareContext(ctx, "INSERT INTO exposures VALUES (?, ?, ?, CAST(? AS DATE), ?)")
	if err != nil {
		return fmt.Errorf("preparing exposure insert: %w", err)
	}
	defer stmt.Close()

	for _, x := range exposures {
		if x.Amount <= 0 {
			continue
		}
		var due any
		if x.DueDate != nil && !x.DueDate.IsZero() {
			due = x.DueDate.String()
		}
		if _, err := stmt.ExecContext(ctx, x.CustomerID, x.CustomerName, x.Reference, due, int64(x.Amount)); err != nil {
			return fmt.Errorf("loading exposure %s: %w", x.Reference, err)
		}
	}
	return nil
}
