package repository

import (
	"errors"

	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type tokenRepository struct{}

func NewTokenRepository() domainRepo.TokenRepository {
	return &tokenRepository{}
}

func (r *tokenRepository) FindByBusinessID(db *gorm.DB, businessID string) (*entity.GoogleTokenRecord, error) {
	var record entity.GoogleTokenRecord
	err := db.Where("business_id = ?", businessID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *tokenRepository) Upsert(db *gorm.DB, record *entity.GoogleTokenRecord) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_id"}},
		UpdateAll: true,
	}).Create(record).Error
}

func (r *tokenRepository) FindLegacyPlaintext(db *gorm.DB, limit int) ([]entity.GoogleTokenRecord, error) {
	var records []entity.GoogleTokenRecord
	err := db.Where("refresh_token_plain IS NOT NULL AND refresh_token_plain != ''").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
