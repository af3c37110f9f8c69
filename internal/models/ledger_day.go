package models

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

type LedgerDayStatus string

const (
	LedgerDayOpen   LedgerDayStatus = "open"
	LedgerDayClosed LedgerDayStatus = "closed"
)

// LedgerDay is the daybook row for one calendar date. Running totals are
// always re-derived from the day's postings, never patched in place.
type LedgerDay struct {
	ID   uint      `gorm:"primaryKey"`
	Date time.Time `gorm:"type:date;uniqueIndex;not null"`

	OpeningCashBalance   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	OpeningOnlineBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	TotalCashSales      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TotalOnlineSales    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TotalCashExpenses   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TotalOnlineExpenses decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TotalCashBalance    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	TotalOnlineBalance  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	// Set once, by the close.
	ClosingCashBalance   *decimal.Decimal `gorm:"type:numeric(12,2)"`
	ClosingOnlineBalance *decimal.Decimal `gorm:"type:numeric(12,2)"`

	Status   LedgerDayStatus `gorm:"size:10;not null;default:'open';index"`
	Notes    string          `gorm:"type:text"`
	OpenedAt time.Time       `gorm:"not null"`
	OpenedBy string          `gorm:"size:100;not null"`
	ClosedAt *time.Time
	ClosedBy *string `gorm:"size:100"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Postings []LedgerPosting `gorm:"foreignKey:DayID;constraint:OnDelete:CASCADE"`
}

func (d *LedgerDay) IsClosed() bool {
	return d.Status == LedgerDayClosed
}

func (d *LedgerDay) CivilDate() civil.Date {
	return civil.DateOf(d.Date)
}
