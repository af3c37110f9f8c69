package dashboard

import (
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"pos-backend/internal/ledger"
)

type CashChartPoint struct {
	Label    string          `json:"label"` // date / week start / month start
	Cash     decimal.Decimal `json:"cash"`
	Online   decimal.Decimal `json:"online"`
	Total    decimal.Decimal `json:"total"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

type CashChartGrandTotals struct {
	Cash     decimal.Decimal `json:"cash"`
	Online   decimal.Decimal `json:"online"`
	Total    decimal.Decimal `json:"total"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

type CashChartResponse struct {
	Period      string               `json:"period"` // daily | weekly | monthly
	From        string               `json:"from"`
	To          string               `json:"to"`
	Points      []CashChartPoint     `json:"points"`
	GrandTotals CashChartGrandTotals `json:"grand_totals"`
}

// addMonths expects a first-of-month date so no day overflow occurs.
func addMonths(d civil.Date, n int) civil.Date {
	return civil.DateOf(d.In(time.UTC).AddDate(0, n, 0))
}

// chartWindow returns the first date of the window and the bucket start of
// every date for the given period.
func chartWindow(period string, count int, today civil.Date) (civil.Date, func(civil.Date) civil.Date) {
	switch period {
	case "weekly":
		weekStart := func(d civil.Date) civil.Date {
			offset := (int(d.In(time.UTC).Weekday()) + 6) % 7 // Monday = 0
			return d.AddDays(-offset)
		}
		return weekStart(today).AddDays(-7 * (count - 1)), weekStart
	case "monthly":
		monthStart := func(d civil.Date) civil.Date {
			return civil.Date{Year: d.Year, Month: d.Month, Day: 1}
		}
		return addMonths(monthStart(today), -(count - 1)), monthStart
	default:
		return today.AddDays(-(count - 1)), func(d civil.Date) civil.Date { return d }
	}
}

// buildChart folds day summaries into period buckets; buckets without days
// are still emitted with zero amounts.
func buildChart(period string, from, to civil.Date, bucket func(civil.Date) civil.Date, days []ledger.DaySummary) CashChartResponse {
	resp := CashChartResponse{
		Period: period,
		From:   from.String(),
		To:     to.String(),
		Points: []CashChartPoint{},
		GrandTotals: CashChartGrandTotals{
			Cash: decimal.Zero, Online: decimal.Zero, Total: decimal.Zero,
			Expenses: decimal.Zero, Net: decimal.Zero,
		},
	}

	index := make(map[civil.Date]int)
	for d := from; !d.After(to); d = d.AddDays(1) {
		b := bucket(d)
		if _, ok := index[b]; ok {
			continue
		}
		index[b] = len(resp.Points)
		resp.Points = append(resp.Points, CashChartPoint{
			Label: b.String(), Cash: decimal.Zero, Online: decimal.Zero, Total: decimal.Zero,
			Expenses: decimal.Zero, Net: decimal.Zero,
		})
	}

	for _, ds := range days {
		i, ok := index[bucket(ds.Date)]
		if !ok {
			continue
		}
		p := &resp.Points[i]
		exp := ds.Expenses.Cash.Add(ds.Expenses.Online)
		p.Cash = p.Cash.Add(ds.Sales.Cash)
		p.Online = p.Online.Add(ds.Sales.Online)
		p.Total = p.Cash.Add(p.Online)
		p.Expenses = p.Expenses.Add(exp)
		p.Net = p.Total.Sub(p.Expenses)

		g := &resp.GrandTotals
		g.Cash = g.Cash.Add(ds.Sales.Cash)
		g.Online = g.Online.Add(ds.Sales.Online)
		g.Total = g.Cash.Add(g.Online)
		g.Expenses = g.Expenses.Add(exp)
		g.Net = g.Total.Sub(g.Expenses)
	}
	return resp
}

// GET /api/dashboard/cash-chart?period=daily&count=7
func CashChartHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		period := c.Query("period", "daily")
		var count int
		switch period {
		case "weekly":
			count = 8
		case "monthly":
			count = 12
		case "daily":
			count = 7
		default:
			return fiber.NewError(fiber.StatusBadRequest, "period must be daily, weekly or monthly")
		}
		if countStr := c.Query("count"); countStr != "" {
			n, err := strconv.Atoi(countStr)
			if err != nil || n <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid count")
			}
			count = n
		}

		today := svc.TodayDate()
		from, bucket := chartWindow(period, count, today)
		to := today
		if period == "monthly" {
			to = addMonths(bucket(today), 1).AddDays(-1)
		}

		sum, err := svc.SummaryRange(c.UserContext(), from, to)
		if err != nil {
			return ledger.HTTPError(err)
		}
		return c.JSON(buildChart(period, from, to, bucket, sum.Days))
	}
}
