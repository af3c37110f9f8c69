// Package memstore is an in-memory ledger.Store. Transactions are serialized
// by one mutex and run against a copy of the state that replaces the
// original only on commit.
package memstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"pos-backend/internal/ledger"
	"pos-backend/internal/models"
)

type state struct {
	nextDayID     uint
	nextPostingID uint
	nextMethodID  uint

	days     map[uint]models.LedgerDay
	postings map[uint]models.LedgerPosting
	methods  map[uint]models.PaymentMethod
}

func (st *state) clone() *state {
	return &state{
		nextDayID:     st.nextDayID,
		nextPostingID: st.nextPostingID,
		nextMethodID:  st.nextMethodID,
		days:          maps.Clone(st.days),
		postings:      maps.Clone(st.postings),
		methods:       maps.Clone(st.methods),
	}
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: &state{
		days:     map[uint]models.LedgerDay{},
		postings: map[uint]models.LedgerPosting{},
		methods:  map[uint]models.PaymentMethod{},
	}}
}

// AddPaymentMethod registers a payment method and returns it with its id.
func (s *Store) AddPaymentMethod(name string) models.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.nextMethodID++
	now := time.Now()
	pm := models.PaymentMethod{ID: s.st.nextMethodID, Name: name, IsActive: true, CreatedAt: now, UpdatedAt: now}
	s.st.methods[pm.ID] = pm
	return pm
}

func (s *Store) Tx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(&tx{view{work}}); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) read() view {
	return view{s.st}
}

func (s *Store) GetDay(ctx context.Context, id uint) (*models.LedgerDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().GetDay(ctx, id)
}

func (s *Store) FindDayByDate(ctx context.Context, date civil.Date) (*models.LedgerDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().FindDayByDate(ctx, date)
}

func (s *Store) LatestClosedDayBefore(ctx context.Context, date civil.Date) (*models.LedgerDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().LatestClosedDayBefore(ctx, date)
}

func (s *Store) ListDays(ctx context.Context, filter ledger.DayFilter) ([]models.LedgerDay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().ListDays(ctx, filter)
}

func (s *Store) GetPosting(ctx context.Context, id uint) (*models.LedgerPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().GetPosting(ctx, id)
}

func (s *Store) FindPosting(ctx context.Context, key ledger.PostingKey) (*models.LedgerPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().FindPosting(ctx, key)
}

func (s *Store) ListPostings(ctx context.Context, dayID uint) ([]models.LedgerPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().ListPostings(ctx, dayID)
}

func (s *Store) FilterPostings(ctx context.Context, filter ledger.PostingFilter) ([]models.LedgerPosting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().FilterPostings(ctx, filter)
}

func (s *Store) SumPostings(ctx context.Context, dayID uint) ([]ledger.PostingTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SumPostings(ctx, dayID)
}

func (s *Store) FindPaymentMethod(ctx context.Context, id uint) (*models.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().FindPaymentMethod(ctx, id)
}

// view implements the read side over one state. Callers hold the mutex.
type view struct {
	st *state
}

func (v view) GetDay(_ context.Context, id uint) (*models.LedgerDay, error) {
	d, ok := v.st.days[id]
	if !ok {
		return nil, fmt.Errorf("day %d: %w", id, ledger.ErrNotFound)
	}
	return &d, nil
}

func (v view) FindDayByDate(_ context.Context, date civil.Date) (*models.LedgerDay, error) {
	for _, d := range v.st.days {
		if d.CivilDate() == date {
			return &d, nil
		}
	}
	return nil, fmt.Errorf("day %s: %w", date, ledger.ErrNotFound)
}

func (v view) LatestClosedDayBefore(_ context.Context, date civil.Date) (*models.LedgerDay, error) {
	var best *models.LedgerDay
	for _, d := range v.st.days {
		if !d.IsClosed() || !d.CivilDate().Before(date) {
			continue
		}
		if best == nil || d.CivilDate().After(best.CivilDate()) {
			best = &d
		}
	}
	if best == nil {
		return nil, fmt.Errorf("closed day before %s: %w", date, ledger.ErrNotFound)
	}
	return best, nil
}

func inRange(date civil.Date, from, to *civil.Date) bool {
	if from != nil && date.Before(*from) {
		return false
	}
	if to != nil && date.After(*to) {
		return false
	}
	return true
}

func (v view) ListDays(_ context.Context, filter ledger.DayFilter) ([]models.LedgerDay, error) {
	out := []models.LedgerDay{}
	for _, d := range v.st.days {
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if !inRange(d.CivilDate(), filter.From, filter.To) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (v view) GetPosting(_ context.Context, id uint) (*models.LedgerPosting, error) {
	p, ok := v.st.postings[id]
	if !ok {
		return nil, fmt.Errorf("posting %d: %w", id, ledger.ErrNotFound)
	}
	return &p, nil
}

func keyOf(p models.LedgerPosting) ledger.PostingKey {
	return ledger.PostingKey{DayID: p.DayID, Kind: p.Kind, SourceKind: p.SourceKind, SourceID: p.SourceID}
}

func (v view) FindPosting(_ context.Context, key ledger.PostingKey) (*models.LedgerPosting, error) {
	for _, p := range v.st.postings {
		if keyOf(p) == key {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("posting %+v: %w", key, ledger.ErrNotFound)
}

func sortPostings(ps []models.LedgerPosting) {
	sort.Slice(ps, func(i, j int) bool {
		if !ps[i].PostedAt.Equal(ps[j].PostedAt) {
			return ps[i].PostedAt.Before(ps[j].PostedAt)
		}
		return ps[i].ID < ps[j].ID
	})
}

func (v view) ListPostings(_ context.Context, dayID uint) ([]models.LedgerPosting, error) {
	out := []models.LedgerPosting{}
	for _, p := range v.st.postings {
		if p.DayID == dayID {
			out = append(out, p)
		}
	}
	sortPostings(out)
	return out, nil
}

func (v view) FilterPostings(_ context.Context, filter ledger.PostingFilter) ([]models.LedgerPosting, error) {
	out := []models.LedgerPosting{}
	for _, p := range v.st.postings {
		if filter.Kind != "" && p.Kind != filter.Kind {
			continue
		}
		day, ok := v.st.days[p.DayID]
		if !ok || !inRange(day.CivilDate(), filter.From, filter.To) {
			continue
		}
		out = append(out, p)
	}
	sortPostings(out)
	return out, nil
}

func (v view) SumPostings(_ context.Context, dayID uint) ([]ledger.PostingTotal, error) {
	type group struct {
		kind models.PostingKind
		mode models.PaymentMode
	}
	sums := map[group]*ledger.PostingTotal{}
	for _, p := range v.st.postings {
		if p.DayID != dayID {
			continue
		}
		g := group{p.Kind, p.PaymentMode}
		t, ok := sums[g]
		if !ok {
			t = &ledger.PostingTotal{Kind: p.Kind, PaymentMode: p.PaymentMode}
			sums[g] = t
		}
		t.Amount = t.Amount.Add(p.Amount)
		t.Count++
	}
	out := make([]ledger.PostingTotal, 0, len(sums))
	for _, t := range sums {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].PaymentMode < out[j].PaymentMode
	})
	return out, nil
}

func (v view) FindPaymentMethod(_ context.Context, id uint) (*models.PaymentMethod, error) {
	pm, ok := v.st.methods[id]
	if !ok {
		return nil, fmt.Errorf("payment method %d: %w", id, ledger.ErrNotFound)
	}
	return &pm, nil
}

type tx struct {
	view
}

func (t *tx) LockDay(ctx context.Context, id uint) (*models.LedgerDay, error) {
	// The store mutex is already held for the whole transaction.
	return t.GetDay(ctx, id)
}

func (t *tx) CreateDay(_ context.Context, day *models.LedgerDay) error {
	date := day.CivilDate()
	for _, d := range t.st.days {
		if d.CivilDate() == date {
			return fmt.Errorf("day %s: %w", date, ledger.ErrDuplicate)
		}
	}
	t.st.nextDayID++
	now := time.Now()
	day.ID = t.st.nextDayID
	day.CreatedAt, day.UpdatedAt = now, now
	stored := *day
	stored.Postings = nil
	t.st.days[day.ID] = stored
	return nil
}

func (t *tx) SaveDay(_ context.Context, day *models.LedgerDay) error {
	if _, ok := t.st.days[day.ID]; !ok {
		return fmt.Errorf("day %d: %w", day.ID, ledger.ErrNotFound)
	}
	day.UpdatedAt = time.Now()
	stored := *day
	stored.Postings = nil
	t.st.days[day.ID] = stored
	return nil
}

func (t *tx) DeleteDay(_ context.Context, id uint) error {
	if _, ok := t.st.days[id]; !ok {
		return fmt.Errorf("day %d: %w", id, ledger.ErrNotFound)
	}
	delete(t.st.days, id)
	for pid, p := range t.st.postings {
		if p.DayID == id {
			delete(t.st.postings, pid)
		}
	}
	return nil
}

func (t *tx) CreatePosting(_ context.Context, posting *models.LedgerPosting) error {
	if _, ok := t.st.days[posting.DayID]; !ok {
		return fmt.Errorf("day %d: %w", posting.DayID, ledger.ErrNotFound)
	}
	key := keyOf(*posting)
	for _, p := range t.st.postings {
		if keyOf(p) == key {
			return fmt.Errorf("posting %+v: %w", key, ledger.ErrDuplicate)
		}
	}
	t.st.nextPostingID++
	posting.ID = t.st.nextPostingID
	posting.CreatedAt = time.Now()
	t.st.postings[posting.ID] = *posting
	return nil
}

func (t *tx) DeletePosting(_ context.Context, id uint) error {
	if _, ok := t.st.postings[id]; !ok {
		return fmt.Errorf("posting %d: %w", id, ledger.ErrNotFound)
	}
	delete(t.st.postings, id)
	return nil
}
