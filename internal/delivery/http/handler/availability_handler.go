package handler

import (
	"errors"
	"net/http"
	"strconv"

	"hvac-booking-core/internal/delivery/dto"
	"hvac-booking-core/internal/delivery/http/middleware"
	"hvac-booking-core/internal/usecase"
	"hvac-booking-core/pkg/response"

	"github.com/sirupsen/logrus"
)

type AvailabilityHandler struct {
	availabilityUsecase *usecase.AvailabilityUsecase
	log                 *logrus.Logger
}

func NewAvailabilityHandler(availabilityUsecase *usecase.AvailabilityUsecase, log *logrus.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		availabilityUsecase: availabilityUsecase,
		log:                 log,
	}
}

// AvailableSlots serves GET /api/available-slots.
func (h *AvailabilityHandler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := usecase.AvailabilityQuery{
		BusinessID:  q.Get("business_id"),
		From:        q.Get("from"),
		Days:        atoiOrZero(q.Get("days")),
		DurationMin: atoiOrZero(q.Get("duration_min")),
	}

	result, err := h.availabilityUsecase.AvailableSlots(r.Context(), query)
	if err != nil {
		var verr *usecase.ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(w, verr.Message)
		case errors.Is(err, usecase.ErrBusinessNotFound):
			response.NotFound(w, "Business not found")
		default:
			h.log.WithFields(logrus.Fields{
				"request_id": middleware.RequestIDFromContext(r.Context()),
			}).Errorf("Availability failed: %v", err)
			response.InternalError(w)
		}
		return
	}
	response.OK(w, dto.FromAvailabilityResult(result))
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
