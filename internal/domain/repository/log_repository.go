package repository

import (
	"hvac-booking-core/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SmsLogRepository interface {
	Create(db *gorm.DB, log *entity.SmsLog) error
	ExistsByDedupeKey(db *gorm.DB, key string) (bool, error)
	FindByBookingID(db *gorm.DB, bookingID uuid.UUID) ([]entity.SmsLog, error)
}

type CallLogRepository interface {
	Create(db *gorm.DB, log *entity.CallLog) error
}

type EmergencyLogRepository interface {
	Create(db *gorm.DB, log *entity.EmergencyLog) error
	FindByBookingID(db *gorm.DB, bookingID uuid.UUID) ([]entity.EmergencyLog, error)
}
