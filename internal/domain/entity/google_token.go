package entity

import (
	"time"
)

// GoogleTokenRecord is the per-tenant calendar credential. The refresh token is
// stored encrypted (ciphertext + iv + tag); RefreshTokenPlain only exists for
// legacy rows and is nulled by the one-time re-encryption sweep.
type GoogleTokenRecord struct {
	BusinessID        string    `gorm:"type:varchar(64);primaryKey" json:"business_id"`
	AccessToken       string    `gorm:"type:text" json:"-"`
	RefreshCiphertext *string   `gorm:"type:text" json:"-"`
	RefreshIV         *string   `gorm:"type:varchar(32)" json:"-"`
	RefreshTag        *string   `gorm:"type:varchar(48)" json:"-"`
	RefreshTokenPlain *string   `gorm:"type:text" json:"-"`
	Scope             string    `gorm:"type:varchar(512)" json:"scope"`
	TokenType         string    `gorm:"type:varchar(32)" json:"token_type"`
	ExpiryUTC         time.Time `json:"expiry_utc"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GoogleTokenRecord) TableName() string {
	return "google_tokens"
}

// HasEncryptedRefresh reports whether the encrypted triple is fully present.
// Partial triples are treated as absent; the invariant is all-or-nothing.
func (t *GoogleTokenRecord) HasEncryptedRefresh() bool {
	return t.RefreshCiphertext != nil && t.RefreshIV != nil && t.RefreshTag != nil
}
