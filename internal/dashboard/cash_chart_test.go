package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-backend/internal/httperr"
	"pos-backend/internal/ledger"
	"pos-backend/internal/ledger/memstore"
	"pos-backend/internal/models"
)

func newChartApp(t *testing.T) (*fiber.App, *ledger.Service, *memstore.Store) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memstore.New()
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC) // Friday
	svc := ledger.NewService(store, ledger.WithLogger(log), ledger.WithClock(func() time.Time { return now }))

	app := fiber.New(fiber.Config{ErrorHandler: httperr.Handler(log)})
	app.Get("/cash-chart", CashChartHandler(svc))
	return app, svc, store
}

func post(t *testing.T, svc *ledger.Service, date civil.Date, kind models.PostingKind, src string, id, method uint, amount string) {
	t.Helper()
	ctx := context.Background()
	day, err := svc.ResolveDay(ctx, date, "tester")
	require.NoError(t, err)
	_, err = svc.Post(ctx, ledger.PostRequest{
		DayID: day.ID, Kind: kind, SourceKind: src, SourceID: id,
		PaymentMethodID: method, Amount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
}

func getChart(t *testing.T, app *fiber.App, query string) (int, CashChartResponse) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", "/cash-chart"+query, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out CashChartResponse
	if resp.StatusCode == fiber.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestCashChartDaily(t *testing.T) {
	app, svc, store := newChartApp(t)
	cash := store.AddPaymentMethod("Cash")
	card := store.AddPaymentMethod("Card")

	post(t, svc, civil.Date{Year: 2025, Month: 1, Day: 9}, models.PostingKindSale, ledger.SourceSale, 1, cash.ID, "100")
	post(t, svc, civil.Date{Year: 2025, Month: 1, Day: 10}, models.PostingKindSale, ledger.SourceSale, 2, card.ID, "40")
	post(t, svc, civil.Date{Year: 2025, Month: 1, Day: 10}, models.PostingKindExpense, ledger.SourceExpense, 1, cash.ID, "15")

	status, chart := getChart(t, app, "?count=3")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "daily", chart.Period)
	assert.Equal(t, "2025-01-08", chart.From)
	assert.Equal(t, "2025-01-10", chart.To)
	require.Len(t, chart.Points, 3)

	assert.Equal(t, "2025-01-08", chart.Points[0].Label)
	assert.True(t, chart.Points[0].Total.IsZero())
	assert.True(t, decimal.NewFromInt(100).Equal(chart.Points[1].Cash))
	assert.True(t, decimal.NewFromInt(40).Equal(chart.Points[2].Online))
	assert.True(t, decimal.NewFromInt(25).Equal(chart.Points[2].Net))

	assert.True(t, decimal.NewFromInt(140).Equal(chart.GrandTotals.Total))
	assert.True(t, decimal.NewFromInt(15).Equal(chart.GrandTotals.Expenses))
	assert.True(t, decimal.NewFromInt(125).Equal(chart.GrandTotals.Net))
}

func TestCashChartWeeklyBucketsStartOnMonday(t *testing.T) {
	app, svc, store := newChartApp(t)
	cash := store.AddPaymentMethod("Cash")

	post(t, svc, civil.Date{Year: 2025, Month: 1, Day: 6}, models.PostingKindSale, ledger.SourceSale, 1, cash.ID, "10")
	post(t, svc, civil.Date{Year: 2025, Month: 1, Day: 8}, models.PostingKindSale, ledger.SourceSale, 2, cash.ID, "20")
	post(t, svc, civil.Date{Year: 2025, Month: 1, Day: 3}, models.PostingKindSale, ledger.SourceSale, 3, cash.ID, "5")

	status, chart := getChart(t, app, "?period=weekly&count=2")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "2024-12-30", chart.From)
	require.Len(t, chart.Points, 2)
	assert.Equal(t, "2024-12-30", chart.Points[0].Label)
	assert.Equal(t, "2025-01-06", chart.Points[1].Label)
	assert.True(t, decimal.NewFromInt(5).Equal(chart.Points[0].Cash))
	assert.True(t, decimal.NewFromInt(30).Equal(chart.Points[1].Cash))
}

func TestCashChartMonthlyWindow(t *testing.T) {
	app, _, _ := newChartApp(t)

	status, chart := getChart(t, app, "?period=monthly&count=2")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "2024-12-01", chart.From)
	assert.Equal(t, "2025-01-31", chart.To)
	require.Len(t, chart.Points, 2)
	assert.Equal(t, "2025-01-01", chart.Points[1].Label)
}

func TestCashChartRejectsBadInput(t *testing.T) {
	app, _, _ := newChartApp(t)

	for _, q := range []string{"?period=yearly", "?count=0", "?count=abc", "?count=400"} {
		status, _ := getChart(t, app, q)
		assert.Equal(t, fiber.StatusBadRequest, status, q)
	}
}
