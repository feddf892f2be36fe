package service

import (
	"hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/pkg/crypto"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const tokenMigrationBatch = 100

// MigrateLegacyTokens re-encrypts plaintext refresh tokens left behind by
// earlier deployments: each legacy row gets the AES-GCM triple and its
// plaintext column nulled. Runs once at startup when enabled; safe to re-run
// because migrated rows no longer match the legacy query.
func MigrateLegacyTokens(db *gorm.DB, log *logrus.Logger, tokenRepo repository.TokenRepository, vault *crypto.Vault) (int, error) {
	migrated := 0
	for {
		rows, err := tokenRepo.FindLegacyPlaintext(db, tokenMigrationBatch)
		if err != nil {
			return migrated, err
		}
		if len(rows) == 0 {
			return migrated, nil
		}

		progressed := false
		for i := range rows {
			record := &rows[i]
			ct, iv, tag, err := vault.Encrypt(*record.RefreshTokenPlain)
			if err != nil {
				log.WithField("business_id", record.BusinessID).
					Errorf("Token migration: encrypt failed: %v", err)
				continue
			}
			record.RefreshCiphertext, record.RefreshIV, record.RefreshTag = &ct, &iv, &tag
			record.RefreshTokenPlain = nil
			if err := tokenRepo.Upsert(db, record); err != nil {
				log.WithField("business_id", record.BusinessID).
					Errorf("Token migration: persist failed: %v", err)
				continue
			}
			migrated++
			progressed = true
		}

		// A batch where every row failed would loop forever; stop and let the
		// next startup retry.
		if !progressed {
			return migrated, nil
		}
	}
}
