package ledger

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"pos-backend/internal/models"
)

// maxRangeDays bounds SummaryRange to roughly a year of days.
const maxRangeDays = 366

type Amounts struct {
	Cash   decimal.Decimal `json:"cash"`
	Online decimal.Decimal `json:"online"`
}

type Flow struct {
	Cash   decimal.Decimal `json:"cash"`
	Online decimal.Decimal `json:"online"`
	Count  int64           `json:"count"`
}

// DaySummary is the read model of one calendar date. Status is empty when
// no day exists for the date.
type DaySummary struct {
	Date      civil.Date             `json:"date"`
	DayID     uint                   `json:"day_id,omitempty"`
	Status    models.LedgerDayStatus `json:"status"`
	Opening   Amounts                `json:"opening_balance"`
	Sales     Flow                   `json:"sales"`
	Expenses  Flow                   `json:"expenses"`
	NetCash   decimal.Decimal        `json:"net_cash"`
	NetOnline decimal.Decimal        `json:"net_online"`
	TotalNet  decimal.Decimal        `json:"total_net"`
	Closing   *Amounts               `json:"closing_balance,omitempty"`
}

type RangeSummary struct {
	From      civil.Date      `json:"from"`
	To        civil.Date      `json:"to"`
	Days      []DaySummary    `json:"days"`
	Opening   Amounts         `json:"opening_balance"`
	Sales     Flow            `json:"sales"`
	Expenses  Flow            `json:"expenses"`
	NetCash   decimal.Decimal `json:"net_cash"`
	NetOnline decimal.Decimal `json:"net_online"`
	TotalNet  decimal.Decimal `json:"total_net"`
}

func emptySummary(date civil.Date) *DaySummary {
	return &DaySummary{
		Date:      date,
		NetCash:   decimal.Zero,
		NetOnline: decimal.Zero,
		TotalNet:  decimal.Zero,
	}
}

func (sum *DaySummary) setNet() {
	sum.NetCash = sum.Opening.Cash.Add(sum.Sales.Cash).Sub(sum.Expenses.Cash)
	sum.NetOnline = sum.Opening.Online.Add(sum.Sales.Online).Sub(sum.Expenses.Online)
	sum.TotalNet = sum.NetCash.Add(sum.NetOnline)
}

// Summary aggregates the postings of date. A date without a day yields a
// zero summary, not ErrNotFound.
func (s *Service) Summary(ctx context.Context, date civil.Date) (*DaySummary, error) {
	if cached, ok := s.cachedSummary(ctx, date); ok {
		return cached, nil
	}
	day, err := s.store.FindDayByDate(ctx, date)
	if errors.Is(err, ErrNotFound) {
		return emptySummary(date), nil
	}
	if err != nil {
		return nil, err
	}
	return s.summarizeDay(ctx, day)
}

// SummaryRange returns one summary per calendar date in [from, to] and their
// aggregate. The aggregate opening balance is that of the earliest day in
// the range that exists.
func (s *Service) SummaryRange(ctx context.Context, from, to civil.Date) (*RangeSummary, error) {
	if !from.IsValid() || !to.IsValid() || to.Before(from) {
		return nil, ErrInvalidRange
	}
	if span := to.DaysSince(from) + 1; span > maxRangeDays {
		return nil, fmt.Errorf("%w: %d days exceeds %d", ErrInvalidRange, span, maxRangeDays)
	}

	days, err := s.store.ListDays(ctx, DayFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	byDate := make(map[civil.Date]*models.LedgerDay, len(days))
	for i := range days {
		byDate[days[i].CivilDate()] = &days[i]
	}

	out := &RangeSummary{From: from, To: to, Days: make([]DaySummary, 0, to.DaysSince(from)+1)}
	openingSet := false
	for d := from; !d.After(to); d = d.AddDays(1) {
		sum := emptySummary(d)
		if day, ok := byDate[d]; ok {
			if sum, err = s.summarizeDay(ctx, day); err != nil {
				return nil, err
			}
			if !openingSet {
				out.Opening = sum.Opening
				openingSet = true
			}
		}
		out.Sales.Cash = out.Sales.Cash.Add(sum.Sales.Cash)
		out.Sales.Online = out.Sales.Online.Add(sum.Sales.Online)
		out.Sales.Count += sum.Sales.Count
		out.Expenses.Cash = out.Expenses.Cash.Add(sum.Expenses.Cash)
		out.Expenses.Online = out.Expenses.Online.Add(sum.Expenses.Online)
		out.Expenses.Count += sum.Expenses.Count
		out.Days = append(out.Days, *sum)
	}
	out.NetCash = out.Opening.Cash.Add(out.Sales.Cash).Sub(out.Expenses.Cash)
	out.NetOnline = out.Opening.Online.Add(out.Sales.Online).Sub(out.Expenses.Online)
	out.TotalNet = out.NetCash.Add(out.NetOnline)
	return out, nil
}

func (s *Service) summarizeDay(ctx context.Context, day *models.LedgerDay) (*DaySummary, error) {
	date := day.CivilDate()
	if day.IsClosed() {
		if cached, ok := s.cachedSummary(ctx, date); ok {
			return cached, nil
		}
	}

	totals, err := s.store.SumPostings(ctx, day.ID)
	if err != nil {
		return nil, err
	}
	t := tallyOf(totals)
	sum := &DaySummary{
		Date:     date,
		DayID:    day.ID,
		Status:   day.Status,
		Opening:  Amounts{Cash: day.OpeningCashBalance, Online: day.OpeningOnlineBalance},
		Sales:    Flow{Cash: t.CashSales, Online: t.OnlineSales, Count: t.SaleCount},
		Expenses: Flow{Cash: t.CashExpenses, Online: t.OnlineExpenses, Count: t.ExpenseCount},
	}
	sum.setNet()

	if day.IsClosed() {
		cash, online := closingBalances(day)
		sum.Closing = &Amounts{Cash: cash, Online: online}
		if err := s.cache.Set(ctx, sum); err != nil {
			s.logger("Summary").WithError(err).WithField("date", date.String()).Warn("summary cache write failed")
		}
	}
	return sum, nil
}

func (s *Service) cachedSummary(ctx context.Context, date civil.Date) (*DaySummary, bool) {
	sum, ok, err := s.cache.Get(ctx, date)
	if err != nil {
		s.logger("Summary").WithError(err).WithField("date", date.String()).Warn("summary cache read failed")
		return nil, false
	}
	return sum, ok
}
