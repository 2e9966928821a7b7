package reports

import (
	"context"
	"testing"
	"time"

	"github.com/satheeshds/receivables/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *models.Date {
	dt := models.NewDate(y, m, d)
	return &dt
}

func TestAging(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	asOf := models.NewDate(2024, 6, 30)
	exposures := []Exposure{
		{CustomerID: 1, CustomerName: "Acme", Reference: "Opening balance", DueDate: date(2024, 1, 1), Amount: 1000},
		{CustomerID: 1, CustomerName: "Acme", Reference: "INV-1", DueDate: date(2024, 6, 30), Amount: 200},
		{CustomerID: 1, CustomerName: "Acme", Reference: "INV-2", DueDate: date(2024, 6, 29), Amount: 300},
		{CustomerID: 2, CustomerName: "Beta", Reference: "INV-3", DueDate: date(2024, 5, 31), Amount: 400},
		{CustomerID: 2, CustomerName: "Beta", Reference: "INV-4", DueDate: date(2024, 4, 30), Amount: 500},
		{CustomerID: 2, CustomerName: "Beta", Reference: "INV-5", Amount: 600},
		{CustomerID: 2, CustomerName: "Beta", Reference: "INV-6", DueDate: date(2024, 7, 15), Amount: 0},
	}

	report, err := engine.Aging(context.Background(), asOf, exposures)
	require.NoError(t, err)
	require.Len(t, report.Customers, 2)

	acme := report.Customers[0]
	assert.Equal(t, "Acme", acme.CustomerName)
	assert.Equal(t, 3, acme.Items)
	assert.Equal(t, models.Money(200), acme.Current)
	assert.Equal(t, models.Money(300), acme.Days30)
	assert.Equal(t, models.Money(1000), acme.Over90)
	assert.Equal(t, models.Money(1500), acme.Total)

	beta := report.Customers[1]
	assert.Equal(t, 3, beta.Items, "zero amounts are not loaded")
	assert.Equal(t, models.Money(600), beta.Current, "no due date counts as current")
	assert.Equal(t, models.Money(400), beta.Days30)
	assert.Equal(t, models.Money(500), beta.Days90)

	assert.Equal(t, models.Money(3000), report.Totals.Total)
	assert.Equal(t, models.Money(800), report.Totals.Current)
}

func TestAgingEmpty(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	report, err := engine.Aging(context.Background(), models.NewDate(2024, 1, 1), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Customers)
	assert.Zero(t, report.Totals.Total)

	// The scratch table is rebuilt per call.
	report, err = engine.Aging(context.Background(), models.NewDate(2024, 1, 1), []Exposure{
		{CustomerID: 9, CustomerName: "Solo", Reference: "INV-9", DueDate: date(2023, 12, 1), Amount: 50},
	})
	require.NoError(t, err)
	require.Len(t, report.Customers, 1)
	assert.Equal(t, models.Money(50), report.Customers[0].Days60)
}
