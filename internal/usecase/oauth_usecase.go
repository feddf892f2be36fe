package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hvac-booking-core/config"
	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/internal/infrastructure/google"
	"hvac-booking-core/pkg/crypto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

var (
	ErrInvalidState     = errors.New("Invalid state")
	ErrOAuthFlowExpired = errors.New("OAuth flow expired")
)

// stateSkew tolerates small clock drift between issue and verification.
const stateSkew = 60 * time.Second

// stateClaims is the signed consent-redirect state: which tenant started the
// flow, the single-use nonce keying the stored verifier, and the issue time.
type stateClaims struct {
	BusinessID string `json:"businessId"`
	Nonce      string `json:"nonce"`
	jwt.RegisteredClaims
}

// OAuthUsecase runs the PKCE consent flow: StartFlow issues the consent URL,
// HandleCallback exchanges the code and stores encrypted tokens.
type OAuthUsecase struct {
	db           *gorm.DB
	log          *logrus.Logger
	googleCfg    config.GoogleConfig
	stateCfg     config.OAuthStateConfig
	vault        *crypto.Vault
	flowRepo     domainRepo.OAuthFlowRepository
	tokenRepo    domainRepo.TokenRepository
	businessRepo domainRepo.BusinessRepository
	now          func() time.Time
}

func NewOAuthUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	googleCfg config.GoogleConfig,
	stateCfg config.OAuthStateConfig,
	vault *crypto.Vault,
	flowRepo domainRepo.OAuthFlowRepository,
	tokenRepo domainRepo.TokenRepository,
	businessRepo domainRepo.BusinessRepository,
) *OAuthUsecase {
	return &OAuthUsecase{
		db:           db,
		log:          log,
		googleCfg:    googleCfg,
		stateCfg:     stateCfg,
		vault:        vault,
		flowRepo:     flowRepo,
		tokenRepo:    tokenRepo,
		businessRepo: businessRepo,
		now:          time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (u *OAuthUsecase) WithClock(now func() time.Time) *OAuthUsecase {
	u.now = now
	return u
}

// StartFlow creates the single-use PKCE flow and returns the consent URL:
//
//  1. Generate the code verifier; only its S256 challenge leaves the process.
//  2. Persist {nonce, businessId, verifier} with the state TTL.
//  3. Sign the state payload {businessId, nonce, ts} with the state secret.
func (u *OAuthUsecase) StartFlow(ctx context.Context, businessID string) (string, error) {
	if businessID == "" {
		return "", validationErrorf("Missing business_id")
	}
	business, err := u.businessRepo.FindByID(u.db.WithContext(ctx), businessID)
	if err != nil {
		return "", err
	}
	if business == nil {
		return "", ErrBusinessNotFound
	}

	conf, err := google.OAuthConfig(u.googleCfg)
	if err != nil {
		return "", err
	}

	verifier := oauth2.GenerateVerifier()
	nonce := uuid.NewString()
	now := u.now().UTC()

	flow := &entity.OAuthFlow{
		Nonce:        nonce,
		BusinessID:   businessID,
		CodeVerifier: verifier,
		ExpiresAt:    now.Add(u.stateTTL()),
	}
	if err := u.flowRepo.Create(u.db, flow); err != nil {
		return "", err
	}

	state, err := u.signState(businessID, nonce, now)
	if err != nil {
		return "", err
	}

	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.S256ChallengeOption(verifier),
	), nil
}

// HandleCallback settles the consent redirect:
//
//  1. Verify the state signature and TTL.
//  2. Atomically consume the flow by nonce; a replayed nonce finds nothing.
//  3. The tenant in the state must match the stored flow.
//  4. Exchange the code with the stored verifier.
//  5. Encrypt the refresh token and upsert the credential row.
func (u *OAuthUsecase) HandleCallback(ctx context.Context, code, state string) (string, error) {
	if code == "" || state == "" {
		return "", ErrInvalidState
	}

	claims, err := u.verifyState(state)
	if err != nil {
		return "", err
	}

	flow, err := u.flowRepo.Consume(u.db.WithContext(ctx), claims.Nonce, u.now().UTC())
	if err != nil {
		return "", err
	}
	if flow == nil {
		return "", ErrOAuthFlowExpired
	}
	if flow.BusinessID != claims.BusinessID {
		return "", ErrInvalidState
	}

	conf, err := google.OAuthConfig(u.googleCfg)
	if err != nil {
		return "", err
	}
	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(flow.CodeVerifier))
	if err != nil {
		return "", fmt.Errorf("code exchange failed: %w", err)
	}

	record := &entity.GoogleTokenRecord{
		BusinessID:  flow.BusinessID,
		AccessToken: token.AccessToken,
		Scope:       google.CalendarScope,
		TokenType:   token.TokenType,
		ExpiryUTC:   token.Expiry.UTC(),
	}
	if token.RefreshToken != "" {
		ct, iv, tag, err := u.vault.Encrypt(token.RefreshToken)
		if err != nil {
			return "", err
		}
		record.RefreshCiphertext, record.RefreshIV, record.RefreshTag = &ct, &iv, &tag
	}
	if err := u.tokenRepo.Upsert(u.db, record); err != nil {
		return "", err
	}

	u.log.WithField("business_id", flow.BusinessID).Info("Google Calendar connected")
	return flow.BusinessID, nil
}

func (u *OAuthUsecase) stateTTL() time.Duration {
	if u.stateCfg.TTL > 0 {
		return u.stateCfg.TTL
	}
	return 600 * time.Second
}

func (u *OAuthUsecase) signState(businessID, nonce string, issuedAt time.Time) (string, error) {
	claims := stateClaims{
		BusinessID: businessID,
		Nonce:      nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(u.stateCfg.Secret))
}

// verifyState checks the HMAC signature and enforces the TTL with a small
// negative skew tolerance. jwt's own exp handling is bypassed; the TTL is a
// property of the flow, not of the token.
func (u *OAuthUsecase) verifyState(state string) (*stateClaims, error) {
	claims := &stateClaims{}
	token, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(u.stateCfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidState
	}
	if claims.BusinessID == "" || claims.Nonce == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidState
	}

	age := u.now().UTC().Sub(claims.IssuedAt.Time)
	if age < -stateSkew {
		return nil, ErrInvalidState
	}
	if age > u.stateTTL() {
		return nil, ErrOAuthFlowExpired
	}
	return claims, nil
}
