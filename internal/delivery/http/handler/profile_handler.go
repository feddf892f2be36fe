package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"hvac-booking-core/internal/delivery/dto"
	"hvac-booking-core/internal/delivery/http/middleware"
	"hvac-booking-core/internal/usecase"
	"hvac-booking-core/pkg/response"
	"hvac-booking-core/pkg/validator"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type ProfileHandler struct {
	profileUsecase *usecase.ProfileUsecase
	validator      *validator.CustomValidator
	log            *logrus.Logger
}

func NewProfileHandler(profileUsecase *usecase.ProfileUsecase, validator *validator.CustomValidator, log *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{
		profileUsecase: profileUsecase,
		validator:      validator,
		log:            log,
	}
}

// GetProfile serves GET /api/businesses/{businessId}/profile.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["businessId"]

	eff, err := h.profileUsecase.GetEffectiveProfile(r.Context(), businessID)
	if err != nil {
		h.writeProfileError(w, r, err)
		return
	}
	response.OK(w, dto.FromEffectiveProfile(eff))
}

// UpdateProfile serves PUT /api/businesses/{businessId}/profile.
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	businessID := mux.Vars(r)["businessId"]

	var req dto.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "Invalid profile", h.validator.FormatValidationErrors(err))
		return
	}

	eff, err := h.profileUsecase.UpdateProfile(r.Context(), businessID, req.ToPatch())
	if err != nil {
		h.writeProfileError(w, r, err)
		return
	}
	response.OK(w, dto.FromEffectiveProfile(eff))
}

func (h *ProfileHandler) writeProfileError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *usecase.ValidationError
	switch {
	case errors.As(err, &verr):
		response.ErrorWithDetails(w, http.StatusBadRequest, verr.Message, verr.Details)
	case errors.Is(err, usecase.ErrBusinessNotFound):
		response.NotFound(w, "Business not found")
	default:
		h.log.WithFields(logrus.Fields{
			"request_id": middleware.RequestIDFromContext(r.Context()),
		}).Errorf("Profile request failed: %v", err)
		response.InternalError(w)
	}
}
