package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"hvac-booking-core/internal/domain/entity"
	"hvac-booking-core/internal/usecase"
)

// FlexBool accepts JSON true/false, 0/1, and their string forms. Set reports
// whether the field appeared at all, so patches can distinguish false from absent.
type FlexBool struct {
	Value bool
	Set   bool
}

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", "1", `"true"`, `"1"`:
		b.Value, b.Set = true, true
		return nil
	case "false", "0", `"false"`, `"0"`:
		b.Value, b.Set = false, true
		return nil
	case "null":
		return nil
	}
	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	b.Value, b.Set = v, true
	return nil
}

type CustomerPayload struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address"`
}

// CreateBookingRequest tolerates both camelCase and snake_case field names.
// Address may arrive nested or as one of three top-level aliases.
type CreateBookingRequest struct {
	BusinessID       string           `json:"businessId"`
	BusinessIDSnake  string           `json:"business_id"`
	StartLocal       string           `json:"startLocal"`
	StartLocalSnake  string           `json:"start_local"`
	Timezone         string           `json:"timezone"`
	DurationMins     int              `json:"durationMins"`
	DurationMinSnake int              `json:"duration_min"`
	BufferMins       *int             `json:"bufferMins"`
	BufferMinSnake   *int             `json:"buffer_min"`
	Service          string           `json:"service"`
	IsEmergency      FlexBool         `json:"isEmergency"`
	IsEmergencySnake FlexBool         `json:"is_emergency"`
	Customer         *CustomerPayload `json:"customer"`
	Notes            string           `json:"notes"`
	ServiceAddress   string           `json:"service_address"`
	CustomerAddress  string           `json:"customer_address"`
	Address          string           `json:"address"`
}

// ToInput coalesces the aliases into the canonical orchestrator input.
func (r *CreateBookingRequest) ToInput(requestID string) usecase.CreateBookingInput {
	input := usecase.CreateBookingInput{
		BusinessID:  firstNonEmpty(r.BusinessID, r.BusinessIDSnake),
		StartLocal:  firstNonEmpty(r.StartLocal, r.StartLocalSnake),
		Timezone:    r.Timezone,
		DurationMin: r.DurationMins,
		BufferMin:   r.BufferMins,
		Service:     r.Service,
		IsEmergency: r.IsEmergency.Value || r.IsEmergencySnake.Value,
		Notes:       r.Notes,
		RequestID:   requestID,
	}
	if input.DurationMin == 0 {
		input.DurationMin = r.DurationMinSnake
	}
	if input.BufferMin == nil {
		input.BufferMin = r.BufferMinSnake
	}
	if r.Customer != nil {
		input.Customer = usecase.CustomerInput{
			Name:    r.Customer.Name,
			Phone:   r.Customer.Phone,
			Email:   r.Customer.Email,
			Address: r.Customer.Address,
		}
	}
	if input.Customer.Address == "" {
		input.Customer.Address = firstNonEmpty(r.ServiceAddress, r.CustomerAddress, r.Address)
	}
	return input
}

// BookingResponse is the createBooking/getBooking success body.
type BookingResponse struct {
	Ok                 bool      `json:"ok"`
	BookingID          string    `json:"bookingId"`
	Status             string    `json:"status"`
	GcalEventID        string    `json:"gcalEventId,omitempty"`
	StartUTC           time.Time `json:"startUtc"`
	EndUTC             time.Time `json:"endUtc"`
	IsEmergency        bool      `json:"isEmergency"`
	EmergencyEscalated bool      `json:"emergencyEscalated"`
}

func FromBookingResult(res *usecase.BookingResult) BookingResponse {
	return BookingResponse{
		Ok:                 true,
		BookingID:          res.BookingID.String(),
		Status:             string(res.Status),
		GcalEventID:        res.GcalEventID,
		StartUTC:           res.StartUTC,
		EndUTC:             res.EndUTC,
		IsEmergency:        res.IsEmergency,
		EmergencyEscalated: res.EmergencyEscalated,
	}
}

func FromBookingEntity(b *entity.Booking) BookingResponse {
	out := BookingResponse{
		Ok:          true,
		BookingID:   b.ID.String(),
		Status:      string(b.Status),
		StartUTC:    b.StartUTC,
		EndUTC:      b.EndUTC,
		IsEmergency: b.IsEmergency,
	}
	if b.GcalEventID != nil {
		out.GcalEventID = *b.GcalEventID
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
