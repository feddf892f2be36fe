package repository

import (
	"testing"
	"time"

	"hvac-booking-core/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB gives each test its own in-memory sqlite ledger with the schema
// loaded. Single connection, like production sqlite.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_txlock=immediate&_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&entity.Business{},
		&entity.BusinessProfile{},
		&entity.Booking{},
		&entity.GoogleTokenRecord{},
		&entity.OAuthFlow{},
		&entity.SmsLog{},
		&entity.CallLog{},
		&entity.EmergencyLog{},
		&entity.RetryTask{},
	))
	return db
}

func newTestBooking(businessID string, start, end time.Time, status entity.BookingStatus, holdExpiry *time.Time) *entity.Booking {
	return &entity.Booking{
		ID:               uuid.New(),
		BusinessID:       businessID,
		StartUTC:         start,
		EndUTC:           end,
		OverlapStartUTC:  start,
		OverlapEndUTC:    end,
		Status:           status,
		HoldExpiresAtUTC: holdExpiry,
		CustomerName:     "Jane Doe",
		CustomerPhone:    "+15550001111",
		SlotKey:          entity.SlotKey(businessID, start),
		IdempotencyKey:   entity.IdempotencyKey(businessID, start, int(end.Sub(start).Minutes()), "+15550001111"),
	}
}
