package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"hvac-booking-core/internal/delivery/dto"
	"hvac-booking-core/internal/delivery/http/middleware"
	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/internal/usecase"
	"hvac-booking-core/pkg/response"
	"hvac-booking-core/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type BookingHandler struct {
	bookingUsecase *usecase.BookingUsecase
	validator      *validator.CustomValidator
	log            *logrus.Logger
}

func NewBookingHandler(bookingUsecase *usecase.BookingUsecase, validator *validator.CustomValidator, log *logrus.Logger) *BookingHandler {
	return &BookingHandler{
		bookingUsecase: bookingUsecase,
		validator:      validator,
		log:            log,
	}
}

// CreateBooking serves POST /api/bookings (and the legacy /api/book alias).
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		response.ErrorWithDetails(w, http.StatusBadRequest, "Invalid booking request", h.validator.FormatValidationErrors(err))
		return
	}

	requestID := middleware.RequestIDFromContext(r.Context())
	result, err := h.bookingUsecase.CreateBooking(r.Context(), req.ToInput(requestID))
	if err != nil {
		h.writeBookingError(w, requestID, err)
		return
	}

	status := http.StatusOK
	if result.Replay && result.Status == entity.BookingStatusPending {
		status = http.StatusAccepted
	}
	response.JSON(w, status, dto.FromBookingResult(result))
}

// GetBooking serves GET /api/bookings/{id}.
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
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
		h.logInternal(r, err)
		response.InternalError(w)
		return
	}
	response.OK(w, dto.FromBookingEntity(booking))
}

// CancelBooking serves POST /api/bookings/{id}/cancel.
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.BadRequest(w, "Invalid booking id")
		return
	}

	booking, err := h.bookingUsecase.CancelBooking(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrBookingNotFound):
			response.NotFound(w, "Booking not found")
		case errors.Is(err, domainRepo.ErrInvalidStatusTransition):
			response.Conflict(w, "Booking cannot be cancelled")
		default:
			h.logInternal(r, err)
			response.InternalError(w)
		}
		return
	}
	response.OK(w, dto.FromBookingEntity(booking))
}

func (h *BookingHandler) writeBookingError(w http.ResponseWriter, requestID string, err error) {
	var verr *usecase.ValidationError
	switch {
	case errors.As(err, &verr):
		if len(verr.Details) > 0 {
			response.ErrorWithDetails(w, http.StatusBadRequest, verr.Message, verr.Details)
		} else {
			response.BadRequest(w, verr.Message)
		}
	case errors.Is(err, usecase.ErrBusinessNotFound):
		response.NotFound(w, "Business not found")
	case errors.Is(err, usecase.ErrSlotAlreadyBooked):
		response.Conflict(w, "SLOT_ALREADY_BOOKED")
	case errors.Is(err, usecase.ErrCalendarNotConnected):
		response.Forbidden(w, "Google Calendar is not connected")
	default:
		h.log.WithFields(logrus.Fields{"request_id": requestID}).
			Errorf("Booking failed: %v", err)
		response.InternalError(w)
	}
}

func (h *BookingHandler) logInternal(r *http.Request, err error) {
	h.log.WithFields(logrus.Fields{
		"request_id": middleware.RequestIDFromContext(r.Context()),
		"path":       r.URL.Path,
	}).Errorf("Request failed: %v", err)
}
