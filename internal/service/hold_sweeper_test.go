package service

import (
	"testing"
	"time"

	"hvac-booking-core/internal/domain/entity"
	"hvac-booking-core/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepCancelsExpiredHolds(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	expired := now.Add(-time.Minute)
	live := now.Add(10 * time.Minute)

	makeBooking := func(businessID string, hold *time.Time, offset time.Duration) *entity.Booking {
		start := now.Add(offset)
		return &entity.Booking{
			ID:               uuid.New(),
			BusinessID:       businessID,
			StartUTC:         start,
			EndUTC:           start.Add(time.Hour),
			OverlapStartUTC:  start,
			OverlapEndUTC:    start.Add(time.Hour),
			Status:           entity.BookingStatusPending,
			HoldExpiresAtUTC: hold,
			SlotKey:          entity.SlotKey(businessID, start),
			IdempotencyKey:   entity.IdempotencyKey(businessID, start, 60, "+15550001111"),
		}
	}

	stale1 := makeBooking("biz1", &expired, 2*time.Hour)
	stale2 := makeBooking("biz2", &expired, 4*time.Hour)
	fresh := makeBooking("biz1", &live, 6*time.Hour)
	for _, b := range []*entity.Booking{stale1, stale2, fresh} {
		require.NoError(t, db.Create(b).Error)
	}

	sweeper := NewHoldSweeper(db, testLogger(), repository.NewBookingRepository(), time.Minute)
	sweeper.Sweep()

	var cancelled int64
	require.NoError(t, db.Model(&entity.Booking{}).Where("status = ?", entity.BookingStatusCancelled).Count(&cancelled).Error)
	assert.Equal(t, int64(2), cancelled)

	var got entity.Booking
	require.NoError(t, db.Where("id = ?", fresh.ID).First(&got).Error)
	assert.Equal(t, entity.BookingStatusPending, got.Status)
}
