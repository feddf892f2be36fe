package repository

import (
	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type smsLogRepository struct{}

func NewSmsLogRepository() domainRepo.SmsLogRepository {
	return &smsLogRepository{}
}

func (r *smsLogRepository) Create(db *gorm.DB, log *entity.SmsLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return db.Create(log).Error
}

func (r *smsLogRepository) ExistsByDedupeKey(db *gorm.DB, key string) (bool, error) {
	var count int64
	err := db.Model(&entity.SmsLog{}).Where("dedupe_key = ?", key).Count(&count).Error
	return count > 0, err
}

func (r *smsLogRepository) FindByBookingID(db *gorm.DB, bookingID uuid.UUID) ([]entity.SmsLog, error) {
	var logs []entity.SmsLog
	err := db.Where("booking_id = ?", bookingID).Order("created_at ASC").Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

type callLogRepository struct{}

func NewCallLogRepository() domainRepo.CallLogRepository {
	return &callLogRepository{}
}

func (r *callLogRepository) Create(db *gorm.DB, log *entity.CallLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return db.Create(log).Error
}

type emergencyLogRepository struct{}

func NewEmergencyLogRepository() domainRepo.EmergencyLogRepository {
	return &emergencyLogRepository{}
}

func (r *emergencyLogRepository) Create(db *gorm.DB, log *entity.EmergencyLog) error {
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	return db.Create(log).Error
}

func (r *emergencyLogRepository) FindByBookingID(db *gorm.DB, bookingID uuid.UUID) ([]entity.EmergencyLog, error) {
	var logs []entity.EmergencyLog
	err := db.Where("booking_id = ?", bookingID).Order("created_at ASC").Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
