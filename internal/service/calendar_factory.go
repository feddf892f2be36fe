package service

import (
	"context"

	"hvac-booking-core/config"
	domainRepo "hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/internal/infrastructure/google"
	"hvac-booking-core/pkg/crypto"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// CalendarProvider hands out a per-tenant calendar client. Implementations
// must build a fresh client per call; the refresh listener inside is bound to
// one tenant and must never be shared.
type CalendarProvider interface {
	ForBusiness(ctx context.Context, businessID string) (google.Calendar, error)
}

type calendarFactory struct {
	db        *gorm.DB
	log       *logrus.Logger
	cfg       config.GoogleConfig
	vault     *crypto.Vault
	tokenRepo domainRepo.TokenRepository
}

func NewCalendarFactory(db *gorm.DB, log *logrus.Logger, cfg config.GoogleConfig, vault *crypto.Vault, tokenRepo domainRepo.TokenRepository) CalendarProvider {
	return &calendarFactory{db: db, log: log, cfg: cfg, vault: vault, tokenRepo: tokenRepo}
}

func (f *calendarFactory) ForBusiness(ctx context.Context, businessID string) (google.Calendar, error) {
	conf, err := google.OAuthConfig(f.cfg)
	if err != nil {
		return nil, err
	}

	record, err := f.tokenRepo.FindByBusinessID(f.db.WithContext(ctx), businessID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, google.ErrNoTokens
	}

	refreshToken := ""
	switch {
	case record.HasEncryptedRefresh():
		refreshToken, err = f.vault.Decrypt(*record.RefreshCiphertext, *record.RefreshIV, *record.RefreshTag)
		if err != nil {
			return nil, err
		}
	case record.RefreshTokenPlain != nil:
		// Legacy row the migration sweep has not reached yet.
		refreshToken = *record.RefreshTokenPlain
	}

	onRefresh := func(tok *oauth2.Token) {
		record.AccessToken = tok.AccessToken
		record.ExpiryUTC = tok.Expiry.UTC()
		if tok.RefreshToken != "" && tok.RefreshToken != refreshToken {
			ct, iv, tag, encErr := f.vault.Encrypt(tok.RefreshToken)
			if encErr == nil {
				record.RefreshCiphertext, record.RefreshIV, record.RefreshTag = &ct, &iv, &tag
				record.RefreshTokenPlain = nil
			}
		}
		if err := f.tokenRepo.Upsert(f.db, record); err != nil {
			f.log.WithFields(logrus.Fields{"business_id": businessID}).
				Warnf("Failed to persist refreshed token: %v", err)
		}
	}

	ts := google.NewTokenSource(ctx, conf, record.AccessToken, refreshToken, record.ExpiryUTC, onRefresh)
	return google.NewClient(ctx, ts, f.log), nil
}
