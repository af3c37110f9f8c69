// Package gormstore is the postgres ledger.Store. Unique keys live in the
// schema; inserts run inside a savepoint so a collision leaves the
// surrounding transaction usable for the re-read.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pos-backend/internal/ledger"
	"pos-backend/internal/models"
)

const uniqueViolation = "23505"

type Store struct {
	reader
}

var _ ledger.Store = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{reader{db}}
}

// Migrate creates or updates the ledger tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.LedgerDay{}, &models.LedgerPosting{})
}

func (s *Store) Tx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&tx{reader{gtx}})
	})
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ledger.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", what, ledger.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", what, err)
}

type reader struct {
	db *gorm.DB
}

func (r reader) GetDay(ctx context.Context, id uint) (*models.LedgerDay, error) {
	var d models.LedgerDay
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, wrap(err, "get day %d", id)
	}
	return &d, nil
}

func (r reader) FindDayByDate(ctx context.Context, date civil.Date) (*models.LedgerDay, error) {
	var d models.LedgerDay
	if err := r.db.WithContext(ctx).Where("date = ?", date.String()).First(&d).Error; err != nil {
		return nil, wrap(err, "find day %s", date)
	}
	return &d, nil
}

func (r reader) LatestClosedDayBefore(ctx context.Context, date civil.Date) (*models.LedgerDay, error) {
	var d models.LedgerDay
	err := r.db.WithContext(ctx).
		Where("status = ? AND date < ?", models.LedgerDayClosed, date.String()).
		Order("date desc").
		First(&d).Error
	if err != nil {
		return nil, wrap(err, "closed day before %s", date)
	}
	return &d, nil
}

func (r reader) ListDays(ctx context.Context, filter ledger.DayFilter) ([]models.LedgerDay, error) {
	q := r.db.WithContext(ctx).Model(&models.LedgerDay{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		q = q.Where("date >= ?", filter.From.String())
	}
	if filter.To != nil {
		q = q.Where("date <= ?", filter.To.String())
	}
	days := []models.LedgerDay{}
	if err := q.Order("date desc").Find(&days).Error; err != nil {
		return nil, wrap(err, "list days")
	}
	return days, nil
}

func (r reader) GetPosting(ctx context.Context, id uint) (*models.LedgerPosting, error) {
	var p models.LedgerPosting
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, wrap(err, "get posting %d", id)
	}
	return &p, nil
}

func (r reader) FindPosting(ctx context.Context, key ledger.PostingKey) (*models.LedgerPosting, error) {
	var p models.LedgerPosting
	err := r.db.WithContext(ctx).
		Where("day_id = ? AND kind = ? AND source_kind = ? AND source_id = ?", key.DayID, key.Kind, key.SourceKind, key.SourceID).
		First(&p).Error
	if err != nil {
		return nil, wrap(err, "find posting %s/%s/%d on day %d", key.Kind, key.SourceKind, key.SourceID, key.DayID)
	}
	return &p, nil
}

func (r reader) ListPostings(ctx context.Context, dayID uint) ([]models.LedgerPosting, error) {
	postings := []models.LedgerPosting{}
	err := r.db.WithContext(ctx).
		Where("day_id = ?", dayID).
		Order("posted_at asc, id asc").
		Find(&postings).Error
	if err != nil {
		return nil, wrap(err, "list postings of day %d", dayID)
	}
	return postings, nil
}

func (r reader) FilterPostings(ctx context.Context, filter ledger.PostingFilter) ([]models.LedgerPosting, error) {
	q := r.db.WithContext(ctx).
		Model(&models.LedgerPosting{}).
		Joins("JOIN ledger_days ON ledger_days.id = ledger_postings.day_id")
	if filter.Kind != "" {
		q = q.Where("ledger_postings.kind = ?", filter.Kind)
	}
	if filter.From != nil {
		q = q.Where("ledger_days.date >= ?", filter.From.String())
	}
	if filter.To != nil {
		q = q.Where("ledger_days.date <= ?", filter.To.String())
	}
	postings := []models.LedgerPosting{}
	err := q.Order("ledger_postings.posted_at asc, ledger_postings.id asc").Find(&postings).Error
	if err != nil {
		return nil, wrap(err, "filter postings")
	}
	return postings, nil
}

func (r reader) SumPostings(ctx context.Context, dayID uint) ([]ledger.PostingTotal, error) {
	totals := []ledger.PostingTotal{}
	err := r.db.WithContext(ctx).
		Model(&models.LedgerPosting{}).
		Select("kind, payment_mode, COALESCE(SUM(amount), 0) AS amount, COUNT(*) AS count").
		Where("day_id = ?", dayID).
		Group("kind, payment_mode").
		Order("kind, payment_mode").
		Scan(&totals).Error
	if err != nil {
		return nil, wrap(err, "sum postings of day %d", dayID)
	}
	return totals, nil
}

func (r reader) FindPaymentMethod(ctx context.Context, id uint) (*models.PaymentMethod, error) {
	var pm models.PaymentMethod
	if err := r.db.WithContext(ctx).First(&pm, id).Error; err != nil {
		return nil, wrap(err, "payment method %d", id)
	}
	return &pm, nil
}

type tx struct {
	reader
}

func (t *tx) LockDay(ctx context.Context, id uint) (*models.LedgerDay, error) {
	var d models.LedgerDay
	err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&d, id).Error
	if err != nil {
		return nil, wrap(err, "lock day %d", id)
	}
	return &d, nil
}

func (t *tx) CreateDay(ctx context.Context, day *models.LedgerDay) error {
	err := t.db.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return sp.Omit(clause.Associations).Create(day).Error
	})
	return wrap(err, "create day %s", day.CivilDate())
}

func (t *tx) SaveDay(ctx context.Context, day *models.LedgerDay) error {
	err := t.db.WithContext(ctx).Omit(clause.Associations).Save(day).Error
	return wrap(err, "save day %d", day.ID)
}

func (t *tx) DeleteDay(ctx context.Context, id uint) error {
	db := t.db.WithContext(ctx)
	if err := db.Where("day_id = ?", id).Delete(&models.LedgerPosting{}).Error; err != nil {
		return wrap(err, "delete postings of day %d", id)
	}
	res := db.Delete(&models.LedgerDay{}, id)
	if res.Error != nil {
		return wrap(res.Error, "delete day %d", id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete day %d: %w", id, ledger.ErrNotFound)
	}
	return nil
}

func (t *tx) CreatePosting(ctx context.Context, posting *models.LedgerPosting) error {
	err := t.db.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
		return sp.Create(posting).Error
	})
	return wrap(err, "create posting %s/%s/%d", posting.Kind, posting.SourceKind, posting.SourceID)
}

func (t *tx) DeletePosting(ctx context.Context, id uint) error {
	res := t.db.WithContext(ctx).Delete(&models.LedgerPosting{}, id)
	if res.Error != nil {
		return wrap(res.Error, "delete posting %d", id)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("delete posting %d: %w", id, ledger.ErrNotFound)
	}
	return nil
}
