package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ExpenseCategory struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"size:100;uniqueIndex;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Expense struct {
	ID              uint   `gorm:"primaryKey"`
	Title           string `gorm:"size:150;not null"`
	CategoryID      uint   `gorm:"index;not null"`
	Category        ExpenseCategory
	PaymentMethodID uint `gorm:"index;not null"`
	PaymentMethod   PaymentMethod
	Date            time.Time       `gorm:"index;not null"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Description     string          `gorm:"size:255"`
	CreatedBy       uint            `gorm:"index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
