package repository

import (
	"hvac-booking-core/internal/domain/entity"

	"gorm.io/gorm"
)

type TokenRepository interface {
	FindByBusinessID(db *gorm.DB, businessID string) (*entity.GoogleTokenRecord, error)
	Upsert(db *gorm.DB, record *entity.GoogleTokenRecord) error
	// FindLegacyPlaintext returns rows still carrying a plaintext refresh token.
	FindLegacyPlaintext(db *gorm.DB, limit int) ([]entity.GoogleTokenRecord, error)
}
