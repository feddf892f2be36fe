package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"hvac-booking-core/internal/usecase"
	"hvac-booking-core/pkg/response"
	"hvac-booking-core/pkg/sanitize"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// DebugHandler exposes inspection endpoints for operators. Payloads pass
// through the PII sanitizer; customer data never leaves unmasked.
type DebugHandler struct {
	bookingUsecase *usecase.BookingUsecase
	log            *logrus.Logger
	adminKey       string
}

func NewDebugHandler(bookingUsecase *usecase.BookingUsecase, log *logrus.Logger, adminKey string) *DebugHandler {
	return &DebugHandler{
		bookingUsecase: bookingUsecase,
		log:            log,
		adminKey:       adminKey,
	}
}

// BookingPayload serves GET /api/debug/bookings/{id}: the full booking row
// with PII masked.
func (h *DebugHandler) BookingPayload(w http.ResponseWriter, r *http.Request) {
	if h.adminKey != "" {
		supplied := r.Header.Get("X-Debug-Admin-Key")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(h.adminKey)) != 1 {
			response.Forbidden(w, "Forbidden")
			return
		}
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.BadRequest(w, "Invalid booking id")
		return
	}

	booking, err := h.bookingUsecase.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, usecase.ErrBookingNotFound) {
			response.NotFound(w, "Booking not found")
			return
		}
		h.log.Errorf("Debug booking lookup failed: %v", err)
		response.InternalError(w)
		return
	}

	raw, err := json.Marshal(booking)
	if err != nil {
		response.InternalError(w)
		return
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{
		"ok":      true,
		"booking": sanitize.Sanitize(payload),
	})
}
