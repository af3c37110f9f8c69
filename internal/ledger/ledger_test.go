package ledger_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-backend/internal/ledger"
	"pos-backend/internal/ledger/memstore"
	"pos-backend/internal/models"
)

type fixture struct {
	store  *memstore.Store
	svc    *ledger.Service
	cash   models.PaymentMethod
	card   models.PaymentMethod
	credit models.PaymentMethod
	now    time.Time
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T, opts ...ledger.Option) *fixture {
	t.Helper()
	f := &fixture{store: memstore.New(), now: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}
	f.cash = f.store.AddPaymentMethod("Cash")
	f.card = f.store.AddPaymentMethod("Card")
	f.credit = f.store.AddPaymentMethod("Credit")
	base := []ledger.Option{ledger.WithLogger(quietLogger()), ledger.WithClock(func() time.Time { return f.now })}
	f.svc = ledger.NewService(f.store, append(base, opts...)...)
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y int, m time.Month, d int) civil.Date { return civil.Date{Year: y, Month: m, Day: d} }

func assertDec(t *testing.T, want string, got decimal.Decimal, msg string) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "%s: want %s, got %s", msg, want, got)
}

func (f *fixture) day(t *testing.T, d civil.Date) *models.LedgerDay {
	t.Helper()
	day, err := f.svc.ResolveDay(context.Background(), d, "tester")
	require.NoError(t, err)
	return day
}

func (f *fixture) sale(t *testing.T, dayID, saleID uint, pm models.PaymentMethod, amount string) ledger.PostResult {
	t.Helper()
	res, err := f.svc.Post(context.Background(), ledger.PostRequest{
		DayID: dayID, Kind: models.PostingKindSale, SourceKind: ledger.SourceSale, SourceID: saleID,
		PaymentMethodID: pm.ID, Amount: dec(amount),
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) expense(t *testing.T, dayID, expenseID uint, pm models.PaymentMethod, amount string) ledger.PostResult {
	t.Helper()
	res, err := f.svc.Post(context.Background(), ledger.PostRequest{
		DayID: dayID, Kind: models.PostingKindExpense, SourceKind: ledger.SourceExpense, SourceID: expenseID,
		PaymentMethodID: pm.ID, Amount: dec(amount),
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) reload(t *testing.T, id uint) *models.LedgerDay {
	t.Helper()
	d, err := f.svc.GetDay(context.Background(), id)
	require.NoError(t, err)
	return d
}

func TestResolveDay_CreatesOnceWithZeroOpening(t *testing.T) {
	f := newFixture(t)
	d1 := f.day(t, date(2025, 1, 1))
	assert.Equal(t, models.LedgerDayOpen, d1.Status)
	assertDec(t, "0", d1.OpeningCashBalance, "opening cash")
	assertDec(t, "0", d1.OpeningOnlineBalance, "opening online")
	assert.Equal(t, "tester", d1.OpenedBy)

	again := f.day(t, date(2025, 1, 1))
	assert.Equal(t, d1.ID, again.ID)
}

func TestToday_UsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	f := newFixture(t, ledger.WithLocation(loc))
	f.now = time.Date(2025, 1, 10, 21, 0, 0, 0, time.UTC)

	d, err := f.svc.Today(context.Background(), "tester")
	require.NoError(t, err)
	assert.Equal(t, date(2025, 1, 11), d.CivilDate())
}

func TestPost_Idempotent(t *testing.T) {
	f := newFixture(t)
	day := f.day(t, date(2025, 1, 1))

	first := f.sale(t, day.ID, 7, f.cash, "150")
	assert.Equal(t, ledger.OutcomeCreated, first.Outcome)
	second := f.sale(t, day.ID, 7, f.cash, "150")
	assert.Equal(t, ledger.OutcomeExisting, second.Outcome)
	assert.Equal(t, first.Posting.ID, second.Posting.ID)

	postings, err := f.svc.ListPostings(context.Background(), day.ID)
	require.NoError(t, err)
	assert.Len(t, postings, 1)
	assertDec(t, "150", f.reload(t, day.ID).TotalCashSales, "cash sales")
}

func TestPost_SameSourceDifferentKindsAreDistinct(t *testing.T) {
	f := newFixture(t)
	day := f.day(t, date(2025, 1, 1))
	f.sale(t, day.ID, 1, f.cash, "10")
	res, err := f.svc.Post(context.Background(), ledger.PostRequest{
		DayID: day.ID, Kind: models.PostingKindExpense, SourceKind: ledger.SourceSale, SourceID: 1,
		PaymentMethodID: f.cash.ID, Amount: dec("4"),
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.OutcomeCreated, res.Outcome)
}

func TestPost_BalanceIdentity(t *testing.T) {
	f := newFixture(t)
	day := f.day(t, date(2025, 1, 1))
	f.sale(t, day.ID, 1, f.cash, "100.10")
	f.sale(t, day.ID, 2, f.card, "49.90")
	f.expense(t, day.ID, 1, f.cash, "30")
	f.expense(t, day.ID, 2, f.card, "9.90")

	d := f.reload(t, day.ID)
	assertDec(t, "100.10", d.TotalCashSales, "cash sales")
	assertDec(t, "49.90", d.TotalOnlineSales, "online sales")
	assertDec(t, "30", d.TotalCashExpenses, "cash expenses")
	assertDec(t, "9.90", d.TotalOnlineExpenses, "online expenses")
	assert.True(t, d.TotalCashBalance.Equal(d.OpeningCashBalance.Add(d.TotalCashSales).Sub(d.TotalCashExpenses)))
	assert.True(t, d.TotalOnlineBalance.Equal(d.OpeningOnlineBalance.Add(d.TotalOnlineSales).Sub(d.TotalOnlineExpenses)))
}

func TestPost_CreditIsSkipped(t *testing.T) {
	f := newFixture(t)
	day := f.day(t, date(2025, 1, 1))

	res := f.sale(t, day.ID, 1, f.credit, "75")
	assert.Equal(t, ledger.OutcomeSkippedCredit, res.Outcome)
	assert.Nil(t, res.Posting)

	postings, err := f.svc.ListPostings(context.Background(), day.ID)
	require.NoError(t, err)
	assert.Empty(t, postings)
	d := f.reload(t, day.ID)
	assertDec(t, "0", d.TotalCashSales, "cash sales")
	assertDec(t, "0", d.TotalOnlineSales, "online sales")
}

func TestPost_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.day(t, date(2025, 1, 1))

	_, err := f.svc.Post(ctx, ledger.PostRequest{DayID: day.ID, Kind: models.PostingKindSale, SourceKind: ledger.SourceSale, SourceID: 1, PaymentMethodID: f.cash.ID, Amount: decimal.Zero})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = f.svc.Post(ctx, ledger.PostRequest{DayID: day.ID, Kind: models.PostingKindSale, SourceKind: ledger.SourceSale, SourceID: 1, PaymentMethodID: f.cash.ID, Amount: dec("0.004")})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)

	_, err = f.svc.Post(ctx, ledger.PostRequest{DayID: day.ID, Kind: models.PostingKindSale, SourceKind: ledger.SourceSale, SourceID: 1, PaymentMethodID: 999, Amount: dec("1")})
	assert.ErrorIs(t, err, ledger.ErrUnresolvablePaymentMethod)

	_, err = f.svc.Post(ctx, ledger.PostRequest{DayID: 999, Kind: models.PostingKindSale, SourceKind: ledger.SourceSale, SourceID: 1, PaymentMethodID: f.cash.ID, Amount: dec("1")})
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.svc.Post(ctx, ledger.PostRequest{DayID: day.ID, Kind: "refund", SourceKind: "sale", SourceID: 1, PaymentMethodID: f.cash.ID, Amount: dec("1")})
	assert.ErrorIs(t, err, ledger.ErrInvalidKind)

	_, err = f.svc.Post(ctx, ledger.PostRequest{DayID: day.ID, Kind: models.PostingKindExpense, PaymentMethodID: f.cash.ID, Amount: dec("1")})
	assert.ErrorIs(t, err, ledger.ErrMissingSource)

	postings, err := f.svc.ListPostings(ctx, day.ID)
	require.NoError(t, err)
	assert.Empty(t, postings)
}

func TestPost_ClosedDayGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.day(t, date(2025, 1, 1))
	f.sale(t, day.ID, 1, f.cash, "50")

	closed, err := f.svc.CloseDay(ctx, day.ID, "manager", "")
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, ledger.PostRequest{DayID: day.ID, Kind: models.PostingKindSale, SourceKind: ledger.SourceSale, SourceID: 2, PaymentMethodID: f.cash.ID, Amount: dec("10")})
	assert.ErrorIs(t, err, ledger.ErrDayClosed)

	_, err = f.svc.Post(ctx, ledger.PostRequest{DayID: day.ID, Kind: models.PostingKindSale, SourceKind: ledger.SourceSale, SourceID: 3, PaymentMethodID: f.credit.ID, Amount: dec("10")})
	assert.ErrorIs(t, err, ledger.ErrDayClosed)

	// A replay of an event posted before the close still resolves.
	res := f.sale(t, day.ID, 1, f.cash, "50")
	assert.Equal(t, ledger.OutcomeExisting, res.Outcome)

	after := f.reload(t, day.ID)
	assert.True(t, closed.ClosingCashBalance.Equal(*after.ClosingCashBalance))
	assertDec(t, "50", after.TotalCashSales, "cash sales")
}

func TestPost_ConcurrentSameSourceYieldsOnePosting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.day(t, date(2025, 1, 1))

	const workers = 20
	var wg sync.WaitGroup
	results := make(chan ledger.PostResult, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Post(ctx, ledger.PostRequest{
				DayID: day.ID, Kind: models.PostingKindSale, SourceKind: ledger.SourceSale, SourceID: 99,
				PaymentMethodID: f.card.ID, Amount: dec("25"),
			})
			assert.NoError(t, err)
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	var postingID uint
	for res := range results {
		if res.Outcome == ledger.OutcomeCreated {
			created++
		}
		if postingID == 0 {
			postingID = res.Posting.ID
		}
		assert.Equal(t, postingID, res.Posting.ID)
	}
	assert.Equal(t, 1, created)
	assertDec(t, "25", f.reload(t, day.ID).TotalOnlineSales, "online sales")
}

func TestPost_ConcurrentDistinctSourcesAllCounted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.day(t, date(2025, 1, 1))

	const workers = 30
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := f.svc.Post(ctx, ledger.PostRequest{
				DayID: day.ID, Kind: models.PostingKindSale, SourceKind: ledger.SourceSale, SourceID: id,
				PaymentMethodID: f.cash.ID, Amount: dec("2.50"),
			})
			assert.NoError(t, err)
		}(uint(i + 1))
	}
	wg.Wait()

	d := f.reload(t, day.ID)
	assertDec(t, "75", d.TotalCashSales, "cash sales")
	assertDec(t, "75", d.TotalCashBalance, "cash balance")
}

func TestResolveDay_ConcurrentCallersShareOneDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	ids := make(chan uint, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := f.svc.ResolveDay(ctx, date(2025, 2, 1), "tester")
			if assert.NoError(t, err) {
				ids <- d.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[uint]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)

	days, err := f.svc.ListDays(ctx, ledger.DayFilter{})
	require.NoError(t, err)
	assert.Len(t, days, 1)
}

func TestCloseDay_SnapshotsRunningBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.day(t, date(2025, 1, 1))
	f.sale(t, day.ID, 1, f.cash, "300")
	f.expense(t, day.ID, 1, f.card, "40")

	closed, err := f.svc.CloseDay(ctx, day.ID, "manager", "all counted")
	require.NoError(t, err)
	assert.Equal(t, models.LedgerDayClosed, closed.Status)
	require.NotNil(t, closed.ClosingCashBalance)
	require.NotNil(t, closed.ClosingOnlineBalance)
	assertDec(t, "300", *closed.ClosingCashBalance, "closing cash")
	assertDec(t, "-40", *closed.ClosingOnlineBalance, "closing online")
	require.NotNil(t, closed.ClosedBy)
	assert.Equal(t, "manager", *closed.ClosedBy)
	assert.NotNil(t, closed.ClosedAt)
	assert.Equal(t, "all counted", closed.Notes)

	_, err = f.svc.CloseDay(ctx, day.ID, "manager", "")
	assert.ErrorIs(t, err, ledger.ErrAlreadyClosed)

	_, err = f.svc.CloseDay(ctx, 999, "manager", "")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCloseDay_ConcurrentClosesSucceedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.day(t, date(2025, 1, 1))
	f.sale(t, day.ID, 1, f.cash, "10")

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CloseDay(ctx, day.ID, "manager", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ledger.ErrAlreadyClosed)
	}
	assert.Equal(t, 1, ok)
}

// Two days with activity, the first closed: the second opens with the
// first one's closing balances.
func TestScenario_CarryForward(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d1 := f.day(t, date(2025, 1, 1))
	f.sale(t, d1.ID, 1, f.cash, "1000")
	f.sale(t, d1.ID, 2, f.card, "500")
	f.expense(t, d1.ID, 1, f.cash, "200")
	_, err := f.svc.CloseDay(ctx, d1.ID, "manager", "")
	require.NoError(t, err)

	d2 := f.day(t, date(2025, 1, 2))
	assertDec(t, "800", d2.OpeningCashBalance, "opening cash")
	assertDec(t, "500", d2.OpeningOnlineBalance, "opening online")
	assertDec(t, "800", d2.TotalCashBalance, "running cash")

	f.sale(t, d2.ID, 3, f.cash, "50")
	got := f.reload(t, d2.ID)
	assertDec(t, "850", got.TotalCashBalance, "running cash after sale")
}

// An unclosed day in between is skipped; the opening comes from the most
// recent closed day.
func TestScenario_CarryForwardSkipsUnclosedDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d1 := f.day(t, date(2025, 1, 1))
	f.sale(t, d1.ID, 1, f.cash, "100")
	_, err := f.svc.CloseDay(ctx, d1.ID, "manager", "")
	require.NoError(t, err)

	d2 := f.day(t, date(2025, 1, 2))
	f.sale(t, d2.ID, 2, f.cash, "70")

	d3 := f.day(t, date(2025, 1, 3))
	assertDec(t, "100", d3.OpeningCashBalance, "opening cash")
	assertDec(t, "0", d3.OpeningOnlineBalance, "opening online")
}

// Closing a day does not rewrite days that were already opened after it.
func TestScenario_LaterDayKeepsOpeningAfterEarlierClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d1 := f.day(t, date(2025, 1, 1))
	d2 := f.day(t, date(2025, 1, 2))
	f.sale(t, d1.ID, 1, f.cash, "40")
	_, err := f.svc.CloseDay(ctx, d1.ID, "manager", "")
	require.NoError(t, err)

	assertDec(t, "0", f.reload(t, d2.ID).OpeningCashBalance, "opening cash")
}

// A paid sale, a credit sale and an expense on one day, summarised.
func TestScenario_MixedDaySummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.day(t, date(2025, 1, 1))

	f.sale(t, day.ID, 1, f.cash, "120")
	f.sale(t, day.ID, 2, f.credit, "60")
	f.sale(t, day.ID, 3, f.card, "80")
	f.expense(t, day.ID, 1, f.cash, "20")

	sum, err := f.svc.Summary(ctx, date(2025, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, models.LedgerDayOpen, sum.Status)
	assert.Equal(t, day.ID, sum.DayID)
	assertDec(t, "120", sum.Sales.Cash, "cash sales")
	assertDec(t, "80", sum.Sales.Online, "online sales")
	assert.Equal(t, int64(2), sum.Sales.Count)
	assertDec(t, "20", sum.Expenses.Cash, "cash expenses")
	assert.Equal(t, int64(1), sum.Expenses.Count)
	assertDec(t, "100", sum.NetCash, "net cash")
	assertDec(t, "80", sum.NetOnline, "net online")
	assertDec(t, "180", sum.TotalNet, "total net")
	assert.Nil(t, sum.Closing)
}

func TestSummary_MissingDayIsZero(t *testing.T) {
	f := newFixture(t)
	sum, err := f.svc.Summary(context.Background(), date(2030, 5, 5))
	require.NoError(t, err)
	assert.Equal(t, models.LedgerDayStatus(""), sum.Status)
	assert.Zero(t, sum.DayID)
	assert.True(t, sum.TotalNet.IsZero())
	assert.Zero(t, sum.Sales.Count)
}

func TestSummaryRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d1 := f.day(t, date(2025, 1, 2))
	f.sale(t, d1.ID, 1, f.cash, "100")
	_, err := f.svc.CloseDay(ctx, d1.ID, "manager", "")
	require.NoError(t, err)
	d2 := f.day(t, date(2025, 1, 4))
	f.sale(t, d2.ID, 2, f.card, "30")
	f.expense(t, d2.ID, 1, f.cash, "10")

	rng, err := f.svc.SummaryRange(ctx, date(2025, 1, 1), date(2025, 1, 5))
	require.NoError(t, err)
	require.Len(t, rng.Days, 5)
	assert.Equal(t, date(2025, 1, 1), rng.Days[0].Date)
	assert.Equal(t, models.LedgerDayStatus(""), rng.Days[0].Status)
	assert.Equal(t, models.LedgerDayClosed, rng.Days[1].Status)
	assert.NotNil(t, rng.Days[1].Closing)
	assert.Equal(t, models.LedgerDayOpen, rng.Days[3].Status)
	assertDec(t, "100", rng.Days[3].Opening.Cash, "day 4 opening")

	assertDec(t, "0", rng.Opening.Cash, "aggregate opening")
	assertDec(t, "100", rng.Sales.Cash, "aggregate cash sales")
	assertDec(t, "30", rng.Sales.Online, "aggregate online sales")
	assert.Equal(t, int64(2), rng.Sales.Count)
	assertDec(t, "90", rng.NetCash, "aggregate net cash")
	assertDec(t, "120", rng.TotalNet, "aggregate total net")

	_, err = f.svc.SummaryRange(ctx, date(2025, 1, 5), date(2025, 1, 1))
	assert.ErrorIs(t, err, ledger.ErrInvalidRange)
	_, err = f.svc.SummaryRange(ctx, date(2024, 1, 1), date(2025, 6, 1))
	assert.ErrorIs(t, err, ledger.ErrInvalidRange)
}

func TestReverse_RecomputesAndGuardsClosedDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.day(t, date(2025, 1, 1))
	keep := f.sale(t, day.ID, 1, f.cash, "60")
	drop := f.sale(t, day.ID, 2, f.cash, "40")

	removed, err := f.svc.Reverse(ctx, drop.Posting.ID, "manager")
	require.NoError(t, err)
	assert.Equal(t, drop.Posting.ID, removed.ID)
	assertDec(t, "60", f.reload(t, day.ID).TotalCashSales, "cash sales")

	_, err = f.svc.Reverse(ctx, drop.Posting.ID, "manager")
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	// The reversed event can be posted again.
	res := f.sale(t, day.ID, 2, f.cash, "45")
	assert.Equal(t, ledger.OutcomeCreated, res.Outcome)
	assertDec(t, "105", f.reload(t, day.ID).TotalCashSales, "cash sales after repost")

	_, err = f.svc.CloseDay(ctx, day.ID, "manager", "")
	require.NoError(t, err)
	_, err = f.svc.Reverse(ctx, keep.Posting.ID, "manager")
	assert.ErrorIs(t, err, ledger.ErrDayClosed)
}

func TestOpenDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.svc.OpenDay(ctx, date(2025, 3, 1), "manager")
	require.NoError(t, err)
	assert.Equal(t, "manager", d.OpenedBy)

	_, err = f.svc.OpenDay(ctx, date(2025, 3, 1), "manager")
	assert.ErrorIs(t, err, ledger.ErrDayExists)
}

func TestPurgeDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.day(t, date(2025, 1, 1))
	p := f.sale(t, day.ID, 1, f.cash, "10")

	purged, err := f.svc.PurgeDay(ctx, day.ID)
	require.NoError(t, err)
	assert.Equal(t, day.ID, purged.ID)

	_, err = f.svc.GetDay(ctx, day.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = f.store.GetPosting(ctx, p.Posting.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.svc.PurgeDay(ctx, day.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestListDaysAndPostingsByKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	d1 := f.day(t, date(2025, 1, 1))
	d2 := f.day(t, date(2025, 1, 2))
	d3 := f.day(t, date(2025, 1, 3))
	f.sale(t, d1.ID, 1, f.cash, "1")
	f.expense(t, d2.ID, 1, f.cash, "2")
	f.sale(t, d3.ID, 2, f.card, "3")
	_, err := f.svc.CloseDay(ctx, d1.ID, "manager", "")
	require.NoError(t, err)

	all, err := f.svc.ListDays(ctx, ledger.DayFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, d3.ID, all[0].ID)
	assert.Equal(t, d1.ID, all[2].ID)

	closed, err := f.svc.ListDays(ctx, ledger.DayFilter{Status: models.LedgerDayClosed})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, d1.ID, closed[0].ID)

	from, to := date(2025, 1, 2), date(2025, 1, 3)
	bounded, err := f.svc.ListDays(ctx, ledger.DayFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Len(t, bounded, 2)

	_, err = f.svc.ListDays(ctx, ledger.DayFilter{Status: "archived"})
	assert.ErrorIs(t, err, ledger.ErrInvalidStatus)

	sales, err := f.svc.ListPostingsByKind(ctx, models.PostingKindSale, nil, nil)
	require.NoError(t, err)
	assert.Len(t, sales, 2)

	late, err := f.svc.ListPostingsByKind(ctx, models.PostingKindSale, &from, &to)
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, d3.ID, late[0].DayID)

	_, err = f.svc.ListPostingsByKind(ctx, "refund", nil, nil)
	assert.ErrorIs(t, err, ledger.ErrInvalidKind)
}

func TestListPostings_OrderedByPostedAt(t *testing.T) {
	f := newFixture(t)
	day := f.day(t, date(2025, 1, 1))
	f.now = time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)
	f.sale(t, day.ID, 1, f.cash, "1")
	f.now = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	f.sale(t, day.ID, 2, f.cash, "2")

	postings, err := f.svc.ListPostings(context.Background(), day.ID)
	require.NoError(t, err)
	require.Len(t, postings, 2)
	assert.Equal(t, uint(2), postings[0].SourceID)
	assert.Equal(t, uint(1), postings[1].SourceID)

	_, err = f.svc.ListPostings(context.Background(), 999)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCheckDay_DetectsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.day(t, date(2025, 1, 1))
	f.sale(t, day.ID, 1, f.cash, "10")

	report, err := f.svc.CheckDay(ctx, day.ID)
	require.NoError(t, err)
	assert.True(t, report.InSync)
	assert.Empty(t, report.Fields)

	err = f.store.Tx(ctx, func(tx ledger.Tx) error {
		d, err := tx.LockDay(ctx, day.ID)
		if err != nil {
			return err
		}
		d.TotalCashSales = dec("999")
		return tx.SaveDay(ctx, d)
	})
	require.NoError(t, err)

	report, err = f.svc.CheckDay(ctx, day.ID)
	require.NoError(t, err)
	assert.False(t, report.InSync)
	assert.Contains(t, report.Fields, "total_cash_sales")
	assertDec(t, "10", report.Derived.CashSales, "derived cash sales")

	_, err = f.svc.CheckDay(ctx, 999)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestMemstoreTx_RollsBackOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := f.day(t, date(2025, 1, 1))

	// Writes of a failed transaction must not survive it.
	boom := assert.AnError
	err := f.store.Tx(ctx, func(tx ledger.Tx) error {
		if err := tx.CreatePosting(ctx, &models.LedgerPosting{DayID: day.ID, Kind: models.PostingKindSale, SourceKind: "sale", SourceID: 5, PaymentMode: models.PaymentModeCash, Amount: dec("1")}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	postings, err := f.svc.ListPostings(ctx, day.ID)
	require.NoError(t, err)
	assert.Empty(t, postings)
}
