package dto

import (
	"time"

	"hvac-booking-core/internal/usecase"
)

// SlotResponse is one bookable slot, local and UTC.
type SlotResponse struct {
	StartLocal string `json:"start_local"`
	EndLocal   string `json:"end_local"`
	StartUTC   string `json:"start_utc"`
	EndUTC     string `json:"end_utc"`
}

// AvailableSlotsResponse is the available-slots success body.
type AvailableSlotsResponse struct {
	Ok          bool           `json:"ok"`
	BusinessID  string         `json:"businessId"`
	Timezone    string         `json:"timezone"`
	FromLocal   string         `json:"from_local"`
	Days        int            `json:"days"`
	DurationMin int            `json:"durationMin"`
	Count       int            `json:"count"`
	Slots       []SlotResponse `json:"slots"`
}

func FromAvailabilityResult(res *usecase.AvailabilityResult) AvailableSlotsResponse {
	slots := make([]SlotResponse, 0, len(res.Slots))
	for _, s := range res.Slots {
		slots = append(slots, SlotResponse{
			StartLocal: s.StartLocal.Format("2006-01-02T15:04:05"),
			EndLocal:   s.EndLocal.Format("2006-01-02T15:04:05"),
			StartUTC:   s.StartUTC.Format(time.RFC3339),
			EndUTC:     s.EndUTC.Format(time.RFC3339),
		})
	}
	return AvailableSlotsResponse{
		Ok:          true,
		BusinessID:  res.BusinessID,
		Timezone:    res.Timezone,
		FromLocal:   res.FromLocal,
		Days:        res.Days,
		DurationMin: res.DurationMin,
		Count:       len(slots),
		Slots:       slots,
	}
}
