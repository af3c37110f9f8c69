package ledger

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"pos-backend/internal/models"
)

// PostingKey identifies the business event behind a posting.
type PostingKey struct {
	DayID      uint
	Kind       models.PostingKind
	SourceKind string
	SourceID   uint
}

// PostingTotal is one (kind, payment mode) group of a day's postings.
type PostingTotal struct {
	Kind        models.PostingKind `gorm:"column:kind"`
	PaymentMode models.PaymentMode `gorm:"column:payment_mode"`
	Amount      decimal.Decimal    `gorm:"column:amount"`
	Count       int64              `gorm:"column:count"`
}

type DayFilter struct {
	Status models.LedgerDayStatus
	From   *civil.Date
	To     *civil.Date
}

type PostingFilter struct {
	Kind models.PostingKind
	From *civil.Date
	To   *civil.Date
}

// Reader is the read side shared by a Store and its transactions. Lookups of
// a single row return ErrNotFound when nothing matches.
type Reader interface {
	GetDay(ctx context.Context, id uint) (*models.LedgerDay, error)
	FindDayByDate(ctx context.Context, date civil.Date) (*models.LedgerDay, error)
	// LatestClosedDayBefore returns the most recent closed day strictly
	// before date.
	LatestClosedDayBefore(ctx context.Context, date civil.Date) (*models.LedgerDay, error)
	ListDays(ctx context.Context, filter DayFilter) ([]models.LedgerDay, error)

	GetPosting(ctx context.Context, id uint) (*models.LedgerPosting, error)
	FindPosting(ctx context.Context, key PostingKey) (*models.LedgerPosting, error)
	// ListPostings orders by posted_at, then id.
	ListPostings(ctx context.Context, dayID uint) ([]models.LedgerPosting, error)
	FilterPostings(ctx context.Context, filter PostingFilter) ([]models.LedgerPosting, error)
	SumPostings(ctx context.Context, dayID uint) ([]PostingTotal, error)

	FindPaymentMethod(ctx context.Context, id uint) (*models.PaymentMethod, error)
}

// Tx is a single atomic unit of work. Inserts that collide with a unique key
// return ErrDuplicate and leave the transaction usable.
type Tx interface {
	Reader

	// LockDay reads the day and holds a write lock on it until the
	// transaction ends.
	LockDay(ctx context.Context, id uint) (*models.LedgerDay, error)
	CreateDay(ctx context.Context, day *models.LedgerDay) error
	SaveDay(ctx context.Context, day *models.LedgerDay) error
	// DeleteDay removes the day together with its postings.
	DeleteDay(ctx context.Context, id uint) error

	CreatePosting(ctx context.Context, posting *models.LedgerPosting) error
	DeletePosting(ctx context.Context, id uint) error
}

type Store interface {
	Reader
	// Tx runs fn in a transaction, committing when fn returns nil.
	Tx(ctx context.Context, fn func(tx Tx) error) error
}
