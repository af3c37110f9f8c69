package admin

import (
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"pos-backend/internal/ledger"
	"pos-backend/internal/models"
)

type MonthlyReportResponse struct {
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	From           string          `json:"from"`
	To             string          `json:"to"`
	DaysOpen       int             `json:"days_open"`
	DaysClosed     int             `json:"days_closed"`
	OpeningBalance ledger.Amounts  `json:"opening_balance"`
	Sales          ledger.Flow     `json:"sales"`
	Expenses       ledger.Flow     `json:"expenses"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	TotalExpenses  decimal.Decimal `json:"total_expenses"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	// Closing balance of the last closed day in the month, if any.
	ClosingBalance *ledger.Amounts `json:"closing_balance,omitempty"`
}

func monthBounds(yearStr, monthStr string) (civil.Date, civil.Date, error) {
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 2000 || year > 9999 {
		return civil.Date{}, civil.Date{}, fiber.NewError(fiber.StatusBadRequest, "invalid year")
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return civil.Date{}, civil.Date{}, fiber.NewError(fiber.StatusBadRequest, "invalid month")
	}
	first := civil.Date{Year: year, Month: time.Month(month), Day: 1}
	next := civil.Date{Year: year, Month: time.Month(month%12 + 1), Day: 1}
	if month == 12 {
		next.Year++
	}
	return first, next.AddDays(-1), nil
}

func buildMonthlyReport(first civil.Date, sum *ledger.RangeSummary) MonthlyReportResponse {
	resp := MonthlyReportResponse{
		Year:           first.Year,
		Month:          int(first.Month),
		From:           sum.From.String(),
		To:             sum.To.String(),
		OpeningBalance: sum.Opening,
		Sales:          sum.Sales,
		Expenses:       sum.Expenses,
		TotalRevenue:   sum.Sales.Cash.Add(sum.Sales.Online),
		TotalExpenses:  sum.Expenses.Cash.Add(sum.Expenses.Online),
	}
	resp.NetProfit = resp.TotalRevenue.Sub(resp.TotalExpenses)

	for i := range sum.Days {
		d := &sum.Days[i]
		switch d.Status {
		case models.LedgerDayOpen:
			resp.DaysOpen++
		case models.LedgerDayClosed:
			resp.DaysClosed++
			if d.Closing != nil {
				resp.ClosingBalance = d.Closing
			}
		}
	}
	return resp
}

// GET /api/admin/monthly-report?year=2025&month=1
func MonthlyReportHandler(svc *ledger.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		first, last, err := monthBounds(c.Query("year"), c.Query("month"))
		if err != nil {
			return err
		}
		sum, err := svc.SummaryRange(c.UserContext(), first, last)
		if err != nil {
			return ledger.HTTPError(err)
		}
		return c.JSON(buildMonthlyReport(first, sum))
	}
}
