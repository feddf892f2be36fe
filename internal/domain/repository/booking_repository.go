package repository

import (
	"time"

	"hvac-booking-core/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingRepository is the reservation ledger. The hold transaction and the
// status machine live here; callers never mutate status columns directly.
type BookingRepository interface {
	// CreatePendingHoldIfAvailable runs the critical section: sweep expired holds,
	// probe for an active overlap, insert the pending row. Returns ok=false when
	// the slot is taken (overlap probe hit or uniqueness constraint lost the race).
	CreatePendingHoldIfAvailable(db *gorm.DB, booking *entity.Booking, now time.Time) (bool, error)

	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Booking, error)
	// FindActiveByIdempotencyKey returns the confirmed or live-pending row for the
	// key, nil when no active row exists.
	FindActiveByIdempotencyKey(db *gorm.DB, businessID, key string, now time.Time) (*entity.Booking, error)
	// FindOverlappingActive returns one active booking whose buffered interval
	// strictly overlaps [overlapStart, overlapEnd), nil when the window is clear.
	FindOverlappingActive(db *gorm.DB, businessID string, overlapStart, overlapEnd time.Time, now time.Time) (*entity.Booking, error)
	FindConfirmedInWindow(db *gorm.DB, businessID string, from, to time.Time) ([]entity.Booking, error)

	// UpdateStatus enforces the status machine; ErrInvalidStatusTransition on a
	// disallowed move. Extra fields are applied in the same UPDATE.
	UpdateStatus(db *gorm.DB, id uuid.UUID, newStatus entity.BookingStatus, fields map[string]interface{}) error
	ConfirmBooking(db *gorm.DB, id uuid.UUID, eventID string) error
	FailBooking(db *gorm.DB, id uuid.UUID, reason string) error
	CancelBooking(db *gorm.DB, id uuid.UUID) error

	// CleanupExpiredHolds cancels pending rows whose hold expired; idempotent.
	CleanupExpiredHolds(db *gorm.DB, businessID string, now time.Time) (int64, error)
	// CleanupAllExpiredHolds is the timer-driven variant across all tenants.
	CleanupAllExpiredHolds(db *gorm.DB, now time.Time) (int64, error)
}
