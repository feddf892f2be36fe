package database

import (
	"database/sql"
	"fmt"
	"strings"

	"hvac-booking-core/config"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Open connects per DB_DIALECT and runs migrations. The sqlite DSN acquires
// write locks eagerly (_txlock=immediate) so the hold transaction serializes
// writers at BEGIN rather than at first write.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch cfg.Dialect {
	case DialectSQLite:
		dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on", cfg.SQLitePath)
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	case DialectPostgres:
		db, err = gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	default:
		return nil, fmt.Errorf("unsupported dialect %q", cfg.Dialect)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	if cfg.Dialect == DialectSQLite {
		// One writer at a time; extra connections only add busy errors.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}

	if err := Migrate(db, cfg.Dialect); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logrus.Infof("Database connected (dialect=%s)", cfg.Dialect)
	return db, nil
}

// WriteTxOptions returns the isolation for ledger write transactions. sqlite is
// always serializable; postgres is asked for it explicitly.
func WriteTxOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelSerializable}
}

// UniqueViolationTarget classifies a uniqueness error by the index it hit:
// "idempotency", "slot", "dedupe", or "" when err is not a unique violation.
func UniqueViolationTarget(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") &&
		!strings.Contains(msg, "duplicate key value violates unique constraint") {
		return ""
	}
	switch {
	case strings.Contains(msg, "idempotency_key") || strings.Contains(msg, "idx_bookings_active_idem"):
		return "idempotency"
	case strings.Contains(msg, "slot_key") || strings.Contains(msg, "idx_bookings_active_slot"):
		return "slot"
	case strings.Contains(msg, "dedupe_key"):
		return "dedupe"
	default:
		return "other"
	}
}
