package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pos-backend/internal/config"
	"pos-backend/internal/ledger/gormstore"
	"pos-backend/internal/models"
)

const maxConnectAttempts = 5

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger: logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// Open connects to Postgres, retrying with backoff, and tunes the pool.
func Open(cfg *config.Config) (*gorm.DB, error) {
	lg := config.GetLogger()

	var (
		db  *gorm.DB
		err error
	)
	for attempt := 1; ; attempt++ {
		db, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), gormConfig())
		if err == nil {
			break
		}
		if attempt == maxConnectAttempts {
			return nil, fmt.Errorf("connect database after %d attempts: %w", attempt, err)
		}
		sleep := time.Second * time.Duration(1<<attempt)
		lg.WithError(err).WithField("attempt", attempt).Warnf("database connection failed, retrying in %s", sleep)
		time.Sleep(sleep)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	if cfg.DBMaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns >= 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
	if cfg.DBConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	}

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		lg.WithError(err).Warn("db connected but failed to install otelgorm plugin")
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.PaymentMethod{},
		&models.Sale{},
		&models.ExpenseCategory{},
		&models.Expense{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := gormstore.Migrate(db); err != nil {
		return fmt.Errorf("migrate ledger: %w", err)
	}
	return nil
}
