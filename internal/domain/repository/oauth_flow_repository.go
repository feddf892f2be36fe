package repository

import (
	"time"

	"hvac-booking-core/internal/domain/entity"

	"gorm.io/gorm"
)

type OAuthFlowRepository interface {
	Create(db *gorm.DB, flow *entity.OAuthFlow) error
	// Consume atomically fetches and deletes the flow by nonce. Expired flows are
	// not returned. A second consume of the same nonce yields nil.
	Consume(db *gorm.DB, nonce string, now time.Time) (*entity.OAuthFlow, error)
	DeleteExpired(db *gorm.DB, now time.Time) (int64, error)
}
