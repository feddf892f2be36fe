package repository

import (
	"errors"
	"time"

	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/internal/infrastructure/database"

	"gorm.io/gorm"
)

type oauthFlowRepository struct{}

func NewOAuthFlowRepository() domainRepo.OAuthFlowRepository {
	return &oauthFlowRepository{}
}

func (r *oauthFlowRepository) Create(db *gorm.DB, flow *entity.OAuthFlow) error {
	return db.Create(flow).Error
}

// Consume fetches and deletes inside one write transaction. A lookup-then-
// delete pair outside a transaction would admit replay.
func (r *oauthFlowRepository) Consume(db *gorm.DB, nonce string, now time.Time) (*entity.OAuthFlow, error) {
	var flow entity.OAuthFlow
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("nonce = ? AND expires_at > ?", nonce, now).First(&flow).Error
		if err != nil {
			return err
		}
		return tx.Where("nonce = ?", nonce).Delete(&entity.OAuthFlow{}).Error
	}, database.WriteTxOptions())

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flow, nil
}

func (r *oauthFlowRepository) DeleteExpired(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Where("expires_at <= ?", now).Delete(&entity.OAuthFlow{})
	return res.RowsAffected, res.Error
}
