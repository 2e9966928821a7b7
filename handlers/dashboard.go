package handlers

import (
	"net/http"

	"github.com/satheeshds/receivables/models"
	"golang.org/x/sync/errgroup"
)

type recentPayment struct {
	ID            int          `json:"id"`
	CustomerName  string       `json:"customer_name"`
	PaymentDate   models.Date  `json:"payment_date"`
	TotalReceived models.Money `json:"total_received"`
	Method        string       `json:"method"`
	Status        string       `json:"status"`
}

type dashboardData struct {
	TotalCustomers int `json:"total_customers"`
	TotalInvoices  int `json:"total_invoices"`
	TotalPayments  int `json:"total_payments"`

	TotalReceivable    models.Money `json:"total_receivable"`
	OverdueInvoices    int          `json:"overdue_invoices"`
	CollectedThisMonth models.Money `json:"collected_this_month"`
	UnappliedPayments  models.Money `json:"unapplied_payments"`

	RecentPayments []recentPayment `json:"recent_payments"`
}

// GetDashboard retrieves dashboard summary statistics
// @Summary      Get dashboard
// @Description  Get receivable totals, overdue counts and recent payments.
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  Response{data=dashboardData}
// @Router       /dashboard [get]
// @Security     BasicAuth
func GetDashboard(w http.ResponseWriter, r *http.Request) {
	var d dashboardData
	today := models.Today()
	monthStart := models.NewDate(today.Year(), today.Month(), 1)

	g, ctx := errgroup.WithContext(r.Context())
	scalar := func(dst any, query string, args ...any) {
		g.Go(func() error {
			return DB.QueryRowContext(ctx, query, args...).Scan(dst)
		})
	}
	scalar(&d.TotalCustomers, "SELECT COUNT(*) FROM customers")
	scalar(&d.TotalInvoices, "SELECT COUNT(*) FROM invoices WHERE status <> 'cancelled'")
	scalar(&d.TotalPayments, "SELECT COUNT(*) FROM payments WHERE status = 'posted'")
	scalar(&d.TotalReceivable, "SELECT COALESCE(SUM(current_balance), 0)::BIGINT FROM customers WHERE current_balance > 0")
	scalar(&d.OverdueInvoices, `SELECT COUNT(*) FROM invoices
		WHERE status = 'overdue' OR (status IN ('sent', 'partial') AND due_date < $1 AND paid_amount < total_amount)`, today)
	scalar(&d.CollectedThisMonth, `SELECT COALESCE(SUM(total_received), 0)::BIGINT FROM payments
		WHERE status = 'posted' AND payment_date >= $1`, monthStart)
	scalar(&d.UnappliedPayments, `SELECT COALESCE(SUM(p.total_received - p.opening_balance_allocation -
		COALESCE((SELECT SUM(pa.amount) FROM payment_allocations pa WHERE pa.payment_id = p.id), 0)), 0)::BIGINT
		FROM payments p WHERE p.status = 'posted'`)

	g.Go(func() error {
		rows, err := DB.QueryContext(ctx, `SELECT p.id, c.name, p.payment_date, p.total_received, p.method, p.status
			FROM payments p JOIN customers c ON p.customer_id = c.id
			ORDER BY p.created_at DESC, p.id DESC LIMIT 5`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p recentPayment
			if err := rows.Scan(&p.ID, &p.CustomerName, &p.PaymentDate, &p.TotalReceived, &p.Method, &p.Status); err != nil {
				return err
			}
			d.RecentPayments = append(d.RecentPayments, p)
		}
		return rows.Err()
	})

	if err := g.Wait(); err != nil {
		writeFailure(w, r, err)
		return
	}
	if d.RecentPayments == nil {
		d.RecentPayments = []recentPayment{}
	}
	writeJSON(w, http.StatusOK, d)
}
