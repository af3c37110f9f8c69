package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type Sale struct {
	ID              uint   `gorm:"primaryKey"`
	InvoiceNo       string `gorm:"size:30;index"`
	TableLabel      string `gorm:"size:50"`
	PaymentMethodID uint   `gorm:"index;not null"`
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus   `gorm:"size:20;not null"`
	SubTotal        decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedBy       uint            `gorm:"index"`
	PaidAt          *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
