package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"pos-backend/internal/models"
)

// tally is a day's sale and expense postings folded by payment mode.
type tally struct {
	CashSales      decimal.Decimal
	OnlineSales    decimal.Decimal
	SaleCount      int64
	CashExpenses   decimal.Decimal
	OnlineExpenses decimal.Decimal
	ExpenseCount   int64
}

func tallyOf(totals []PostingTotal) tally {
	var t tally
	for _, pt := range totals {
		switch pt.Kind {
		case models.PostingKindSale:
			t.SaleCount += pt.Count
			if pt.PaymentMode == models.PaymentModeCash {
				t.CashSales = t.CashSales.Add(pt.Amount)
			} else {
				t.OnlineSales = t.OnlineSales.Add(pt.Amount)
			}
		case models.PostingKindExpense:
			t.ExpenseCount += pt.Count
			if pt.PaymentMode == models.PaymentModeCash {
				t.CashExpenses = t.CashExpenses.Add(pt.Amount)
			} else {
				t.OnlineExpenses = t.OnlineExpenses.Add(pt.Amount)
			}
		}
	}
	return t
}

// applyTotals overwrites the day's totals and running balances from t.
func applyTotals(day *models.LedgerDay, t tally) {
	day.TotalCashSales = t.CashSales
	day.TotalOnlineSales = t.OnlineSales
	day.TotalCashExpenses = t.CashExpenses
	day.TotalOnlineExpenses = t.OnlineExpenses
	day.TotalCashBalance = day.OpeningCashBalance.Add(t.CashSales).Sub(t.CashExpenses)
	day.TotalOnlineBalance = day.OpeningOnlineBalance.Add(t.OnlineSales).Sub(t.OnlineExpenses)
}

// recompute re-derives the day's totals from its full posting set and saves
// the day. The caller must hold the day lock.
func recompute(ctx context.Context, tx Tx, day *models.LedgerDay) error {
	totals, err := tx.SumPostings(ctx, day.ID)
	if err != nil {
		return err
	}
	applyTotals(day, tallyOf(totals))
	return tx.SaveDay(ctx, day)
}
