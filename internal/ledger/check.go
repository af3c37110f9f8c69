package ledger

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"pos-backend/internal/models"
)

type Balances struct {
	CashSales      decimal.Decimal `json:"cash_sales"`
	OnlineSales    decimal.Decimal `json:"online_sales"`
	CashExpenses   decimal.Decimal `json:"cash_expenses"`
	OnlineExpenses decimal.Decimal `json:"online_expenses"`
	CashBalance    decimal.Decimal `json:"cash_balance"`
	OnlineBalance  decimal.Decimal `json:"online_balance"`
}

// DriftReport compares a day's stored totals with totals re-derived from its
// postings.
type DriftReport struct {
	DayID   uint                   `json:"day_id"`
	Date    civil.Date             `json:"date"`
	Status  models.LedgerDayStatus `json:"status"`
	Stored  Balances               `json:"stored"`
	Derived Balances               `json:"derived"`
	Fields  []string               `json:"drifted_fields"`
	InSync  bool                   `json:"in_sync"`
}

// CheckDay is read only; it never repairs a drifted day.
func (s *Service) CheckDay(ctx context.Context, dayID uint) (*DriftReport, error) {
	day, err := s.store.GetDay(ctx, dayID)
	if err != nil {
		return nil, err
	}
	totals, err := s.store.SumPostings(ctx, day.ID)
	if err != nil {
		return nil, err
	}

	derivedDay := *day
	applyTotals(&derivedDay, tallyOf(totals))

	report := &DriftReport{
		DayID:   day.ID,
		Date:    day.CivilDate(),
		Status:  day.Status,
		Stored:  balancesOf(day),
		Derived: balancesOf(&derivedDay),
		Fields:  []string{},
	}
	diff := func(name string, stored, derived decimal.Decimal) {
		if !stored.Equal(derived) {
			report.Fields = append(report.Fields, name)
		}
	}
	diff("total_cash_sales", report.Stored.CashSales, report.Derived.CashSales)
	diff("total_online_sales", report.Stored.OnlineSales, report.Derived.OnlineSales)
	diff("total_cash_expenses", report.Stored.CashExpenses, report.Derived.CashExpenses)
	diff("total_online_expenses", report.Stored.OnlineExpenses, report.Derived.OnlineExpenses)
	diff("total_cash_balance", report.Stored.CashBalance, report.Derived.CashBalance)
	diff("total_online_balance", report.Stored.OnlineBalance, report.Derived.OnlineBalance)
	if day.IsClosed() {
		cash, online := closingBalances(day)
		diff("closing_cash_balance", cash, report.Derived.CashBalance)
		diff("closing_online_balance", online, report.Derived.OnlineBalance)
	}
	report.InSync = len(report.Fields) == 0
	return report, nil
}

func balancesOf(d *models.LedgerDay) Balances {
	return Balances{
		CashSales:      d.TotalCashSales,
		OnlineSales:    d.TotalOnlineSales,
		CashExpenses:   d.TotalCashExpenses,
		OnlineExpenses: d.TotalOnlineExpenses,
		CashBalance:    d.TotalCashBalance,
		OnlineBalance:  d.TotalOnlineBalance,
	}
}
