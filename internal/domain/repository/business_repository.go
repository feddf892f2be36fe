package repository

import (
	"hvac-booking-core/internal/domain/entity"

	"gorm.io/gorm"
)

type BusinessRepository interface {
	Create(db *gorm.DB, business *entity.Business) error
	FindByID(db *gorm.DB, id string) (*entity.Business, error)
	FindProfile(db *gorm.DB, businessID string) (*entity.BusinessProfile, error)
	UpsertProfile(db *gorm.DB, profile *entity.BusinessProfile) error
}
