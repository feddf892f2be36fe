package repository

import (
	"errors"
	"time"

	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/internal/infrastructure/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// activePredicate matches the partial-unique-index contract: a row reserves
// its slot while confirmed, or while pending with a live hold.
const activePredicate = "(status = 'confirmed' OR (status = 'pending' AND hold_expires_at_utc IS NOT NULL AND hold_expires_at_utc > ?))"

// errSlotTaken aborts the hold transaction when the overlap probe finds an
// active row. Internal to the transaction; callers see ok=false.
var errSlotTaken = errors.New("slot taken")

type bookingRepository struct{}

func NewBookingRepository() domainRepo.BookingRepository {
	return &bookingRepository{}
}

// CreatePendingHoldIfAvailable is the critical section.
//
// 1. BEGIN a serializable write transaction (sqlite: immediate via DSN).
// 2. Cancel this tenant's expired pending holds.
// 3. Probe for one active row overlapping the buffered interval.
// 4. Found → roll back, ok=false.
// 5. Otherwise insert the pending row; the partial unique indexes on slot-key
//    and idempotency-key are the second line of defense against a racing
//    writer that slipped past the probe.
func (r *bookingRepository) CreatePendingHoldIfAvailable(db *gorm.DB, booking *entity.Booking, now time.Time) (bool, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := sweepExpiredHolds(tx, booking.BusinessID, now); err != nil {
			return err
		}

		var existing entity.Booking
		err := tx.Where("business_id = ?", booking.BusinessID).
			Where(activePredicate, now).
			Where("overlap_start_utc < ? AND overlap_end_utc > ?", booking.OverlapEndUTC, booking.OverlapStartUTC).
			Take(&existing).Error
		if err == nil {
			return errSlotTaken
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Create(booking).Error
	}, database.WriteTxOptions())

	if errors.Is(err, errSlotTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *bookingRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Booking, error) {
	var booking entity.Booking
	err := db.Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindActiveByIdempotencyKey(db *gorm.DB, businessID, key string, now time.Time) (*entity.Booking, error) {
	var booking entity.Booking
	err := db.Where("business_id = ? AND idempotency_key = ?", businessID, key).
		Where(activePredicate, now).
		Take(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindOverlappingActive(db *gorm.DB, businessID string, overlapStart, overlapEnd time.Time, now time.Time) (*entity.Booking, error) {
	var booking entity.Booking
	err := db.Where("business_id = ?", businessID).
		Where(activePredicate, now).
		Where("overlap_start_utc < ? AND overlap_end_utc > ?", overlapEnd, overlapStart).
		Take(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) FindConfirmedInWindow(db *gorm.DB, businessID string, from, to time.Time) ([]entity.Booking, error) {
	var bookings []entity.Booking
	err := db.Where("business_id = ? AND status = ?", businessID, entity.BookingStatusConfirmed).
		Where("overlap_start_utc < ? AND overlap_end_utc > ?", to, from).
		Order("start_utc ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// UpdateStatus reads the row, checks the transition table, and applies the new
// status plus extra fields in one UPDATE with updated_at bumped.
func (r *bookingRepository) UpdateStatus(db *gorm.DB, id uuid.UUID, newStatus entity.BookingStatus, fields map[string]interface{}) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var booking entity.Booking
		if err := tx.Where("id = ?", id).First(&booking).Error; err != nil {
			return err
		}
		if !booking.Status.CanTransitionTo(newStatus) {
			return domainRepo.ErrInvalidStatusTransition
		}

		updates := map[string]interface{}{
			"status":     newStatus,
			"updated_at": time.Now().UTC(),
		}
		for k, v := range fields {
			updates[k] = v
		}
		return tx.Model(&entity.Booking{}).Where("id = ?", id).Updates(updates).Error
	}, database.WriteTxOptions())
}

func (r *bookingRepository) ConfirmBooking(db *gorm.DB, id uuid.UUID, eventID string) error {
	return r.UpdateStatus(db, id, entity.BookingStatusConfirmed, map[string]interface{}{
		"gcal_event_id":       eventID,
		"hold_expires_at_utc": nil,
	})
}

func (r *bookingRepository) FailBooking(db *gorm.DB, id uuid.UUID, reason string) error {
	return r.UpdateStatus(db, id, entity.BookingStatusFailed, map[string]interface{}{
		"failure_reason":      reason,
		"hold_expires_at_utc": nil,
	})
}

func (r *bookingRepository) CancelBooking(db *gorm.DB, id uuid.UUID) error {
	return r.UpdateStatus(db, id, entity.BookingStatusCancelled, map[string]interface{}{
		"hold_expires_at_utc": nil,
	})
}

func (r *bookingRepository) CleanupExpiredHolds(db *gorm.DB, businessID string, now time.Time) (int64, error) {
	var affected int64
	err := db.Transaction(func(tx *gorm.DB) error {
		res := expiredHoldsQuery(tx, now).Where("business_id = ?", businessID).
			Updates(cancelledHoldUpdates(now))
		affected = res.RowsAffected
		return res.Error
	}, database.WriteTxOptions())
	return affected, err
}

func (r *bookingRepository) CleanupAllExpiredHolds(db *gorm.DB, now time.Time) (int64, error) {
	var affected int64
	err := db.Transaction(func(tx *gorm.DB) error {
		res := expiredHoldsQuery(tx, now).Updates(cancelledHoldUpdates(now))
		affected = res.RowsAffected
		return res.Error
	}, database.WriteTxOptions())
	return affected, err
}

func sweepExpiredHolds(tx *gorm.DB, businessID string, now time.Time) error {
	return expiredHoldsQuery(tx, now).Where("business_id = ?", businessID).
		Updates(cancelledHoldUpdates(now)).Error
}

func expiredHoldsQuery(tx *gorm.DB, now time.Time) *gorm.DB {
	return tx.Model(&entity.Booking{}).
		Where("status = ? AND hold_expires_at_utc IS NOT NULL AND hold_expires_at_utc <= ?", entity.BookingStatusPending, now)
}

func cancelledHoldUpdates(now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"status":              entity.BookingStatusCancelled,
		"hold_expires_at_utc": nil,
		"updated_at":          now,
	}
}
