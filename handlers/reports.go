package handlers

import (
	"context"
	"net/http"

	"github.com/satheeshds/receivables/models"
	"github.com/satheeshds/receivables/reports"
)

// Reports is the analytics engine used by report handlers.
var Reports *reports.Engine

const exposuresQuery = `SELECT c.id, c.name, i.invoice_number, i.due_date, i.total_amount - i.paid_amount
	FROM invoices i JOIN customers c ON i.customer_id = c.id
	WHERE i.status IN ('sent', 'partial', 'overdue') AND i.paid_amount < i.total_amount AND i.issue_date <= $1
	UNION ALL
	SELECT c.id, c.name, 'Opening balance', c.as_of_date, c.opening_balance - c.opening_balance_paid
	FROM customers c
	WHERE c.opening_balance > 0 AND c.opening_balance > c.opening_balance_paid AND c.as_of_date <= $1`

func loadExposures(ctx context.Context, q queryer, asOf models.Date) ([]reports.Exposure, error) {
	rows, err := q.QueryContext(ctx, exposuresQuery, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reports.Exposure
	for rows.Next() {
		var x reports.Exposure
		if err := rows.Scan(&x.CustomerID, &x.CustomerName, &x.Reference, &x.DueDate, &x.Amount); err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

// GetAgingReport buckets open receivables by age
// @Summary      Aging report
// @Description  Pending invoice amounts and unpaid opening balances by days past due: current, 1-30, 31-60, 61-90, 90+.
// @Tags         reports
// @Produce      json
// @Param        as_of  query     string  false  "Report date (YYYY-MM-DD), defaults to today"
// @Success      200  {object}  Response{data=reports.Aging}
// @Failure      400  {object}  Response{error=string}
// @Router       /reports/aging [get]
// @Security     BasicAuth
func GetAgingReport(w http.ResponseWriter, r *http.Request) {
	asOf := models.Today()
	if v := r.URL.Query().Get("as_of"); v != "" {
		d, err := models.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid as_of date, expected YYYY-MM-DD")
			return
		}
		asOf = d
	}

	exposures, err := loadExposures(r.Context(), DB, asOf)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	report, err := Reports.Aging(r.Context(), asOf, exposures)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
