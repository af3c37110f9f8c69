package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"pos-backend/internal/models"
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// Writer records audit entries.
type Writer interface {
	WriteLog(ctx context.Context, opts LogOptions) error
}

type DBWriter struct {
	db *gorm.DB
}

func NewDBWriter(db *gorm.DB) *DBWriter {
	return &DBWriter{db: db}
}

// jsonb columns need a JSON value, so absent data is stored as null.
func toJSON(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func (w *DBWriter) WriteLog(ctx context.Context, opts LogOptions) error {
	entry := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  toJSON(opts.Before),
		AfterData:   toJSON(opts.After),
	}
	if err := w.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
