package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PostingKind string

const (
	PostingKindSale           PostingKind = "sale"
	PostingKindExpense        PostingKind = "expense"
	PostingKindOpeningBalance PostingKind = "opening_balance"
	PostingKindClosingBalance PostingKind = "closing_balance"
)

func (k PostingKind) Valid() bool {
	switch k {
	case PostingKindSale, PostingKindExpense, PostingKindOpeningBalance, PostingKindClosingBalance:
		return true
	}
	return false
}

// RequiresSource reports whether postings of this kind must reference a
// business event.
func (k PostingKind) RequiresSource() bool {
	return k == PostingKindSale || k == PostingKindExpense
}

type PaymentMode string

const (
	PaymentModeCash   PaymentMode = "cash"
	PaymentModeOnline PaymentMode = "online"
	// Credit is a classification result only; it is never stored on a posting.
	PaymentModeCredit PaymentMode = "credit"
)

// LedgerPosting is immutable once written. The unique index on
// (day_id, kind, source_kind, source_id) is what makes posting idempotent.
type LedgerPosting struct {
	ID              uint            `gorm:"primaryKey"`
	DayID           uint            `gorm:"not null;uniqueIndex:idx_ledger_posting_source,priority:1"`
	Kind            PostingKind     `gorm:"size:20;not null;uniqueIndex:idx_ledger_posting_source,priority:2"`
	SourceKind      string          `gorm:"size:30;not null;default:'';uniqueIndex:idx_ledger_posting_source,priority:3"`
	SourceID        uint            `gorm:"not null;default:0;uniqueIndex:idx_ledger_posting_source,priority:4"`
	PaymentMode     PaymentMode     `gorm:"size:10;not null"`
	PaymentMethodID uint            `gorm:"index"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Description     string          `gorm:"type:text"`
	PostedAt        time.Time       `gorm:"not null;index"`
	CreatedAt       time.Time
}
