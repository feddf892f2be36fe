package google

import (
	"context"
	"time"

	"hvac-booking-core/config"

	"golang.org/x/oauth2"
)

const (
	authURL       = "https://accounts.google.com/o/oauth2/auth"
	tokenURL      = "https://oauth2.googleapis.com/token"
	CalendarScope = "https://www.googleapis.com/auth/calendar"
)

// OAuthConfig builds a fresh oauth2.Config. A new instance is constructed per
// flow; sharing one across tenants would attach refresh listeners cross-tenant.
func OAuthConfig(cfg config.GoogleConfig) (*oauth2.Config, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURI == "" {
		return nil, ErrNotConfigured
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       []string{CalendarScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  authURL,
			TokenURL: tokenURL,
		},
	}, nil
}

// persistingSource wraps a TokenSource and invokes onRefresh whenever the
// access token rotates, so refreshed credentials reach storage. The callback
// is bound to one tenant at construction time.
type persistingSource struct {
	src       oauth2.TokenSource
	last      string
	onRefresh func(*oauth2.Token)
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.onRefresh != nil && tok.AccessToken != s.last {
		s.last = tok.AccessToken
		s.onRefresh(tok)
	}
	return tok, nil
}

// NewTokenSource builds the per-tenant refreshing token source.
func NewTokenSource(ctx context.Context, conf *oauth2.Config, accessToken, refreshToken string, expiry time.Time, onRefresh func(*oauth2.Token)) oauth2.TokenSource {
	seed := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       expiry,
		TokenType:    "Bearer",
	}
	return &persistingSource{
		src:       conf.TokenSource(ctx, seed),
		last:      accessToken,
		onRefresh: onRefresh,
	}
}
