package repository

import (
	"errors"

	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type businessRepository struct{}

func NewBusinessRepository() domainRepo.BusinessRepository {
	return &businessRepository{}
}

func (r *businessRepository) Create(db *gorm.DB, business *entity.Business) error {
	return db.Create(business).Error
}

func (r *businessRepository) FindByID(db *gorm.DB, id string) (*entity.Business, error) {
	var business entity.Business
	err := db.Where("id = ?", id).First(&business).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &business, nil
}

func (r *businessRepository) FindProfile(db *gorm.DB, businessID string) (*entity.BusinessProfile, error) {
	var profile entity.BusinessProfile
	err := db.Where("business_id = ?", businessID).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}

func (r *businessRepository) UpsertProfile(db *gorm.DB, profile *entity.BusinessProfile) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}},
		UpdateAll: true,
	}).Create(profile).Error
}
