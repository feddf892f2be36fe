package entity

import (
	"time"
)

// OAuthFlow is a single-use PKCE consent record keyed by nonce. Consumption is
// atomic consume-and-delete; a nonce is valid at most once.
type OAuthFlow struct {
	Nonce        string    `gorm:"type:varchar(64);primaryKey" json:"nonce"`
	BusinessID   string    `gorm:"type:varchar(64);not null" json:"business_id"`
	CodeVerifier string    `gorm:"type:varchar(128);not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
}

func (OAuthFlow) TableName() string {
	return "oauth_flows"
}
