package handler

import (
	"errors"
	"net/http"

	"hvac-booking-core/internal/delivery/http/middleware"
	"hvac-booking-core/internal/usecase"
	"hvac-booking-core/pkg/response"

	"github.com/sirupsen/logrus"
)

type OAuthHandler struct {
	oauthUsecase *usecase.OAuthUsecase
	log          *logrus.Logger
}

func NewOAuthHandler(oauthUsecase *usecase.OAuthUsecase, log *logrus.Logger) *OAuthHandler {
	return &OAuthHandler{
		oauthUsecase: oauthUsecase,
		log:          log,
	}
}

// StartFlow serves GET /auth/google-business: creates the PKCE flow and
// redirects the operator to the consent screen.
func (h *OAuthHandler) StartFlow(w http.ResponseWriter, r *http.Request) {
	businessID := r.URL.Query().Get("business_id")

	consentURL, err := h.oauthUsecase.StartFlow(r.Context(), businessID)
	if err != nil {
		var verr *usecase.ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(w, verr.Message)
		case errors.Is(err, usecase.ErrBusinessNotFound):
			response.NotFound(w, "Business not found")
		default:
			h.logInternal(r, err)
			response.InternalError(w)
		}
		return
	}

	http.Redirect(w, r, consentURL, http.StatusFound)
}

// HandleCallback serves GET /auth/google/callback.
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	businessID, err := h.oauthUsecase.HandleCallback(r.Context(), q.Get("code"), q.Get("state"))
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrInvalidState):
			response.BadRequest(w, "Invalid state")
		case errors.Is(err, usecase.ErrOAuthFlowExpired):
			response.BadRequest(w, "OAuth flow expired")
		default:
			h.logInternal(r, err)
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]interface{}{
		"ok":         true,
		"businessId": businessID,
		"message":    "Google Calendar connected",
	})
}

func (h *OAuthHandler) logInternal(r *http.Request, err error) {
	h.log.WithFields(logrus.Fields{
		"request_id": middleware.RequestIDFromContext(r.Context()),
		"path":       r.URL.Path,
	}).Errorf("OAuth request failed: %v", err)
}
