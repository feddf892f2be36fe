package service

import (
	"fmt"
	"strings"

	"hvac-booking-core/internal/domain/entity"
	"hvac-booking-core/internal/infrastructure/google"
)

// eventInputForBooking builds the calendar payload for a booking. The
// idempotency key rides along as a private extended property so replays and
// the second-attempt lookup can find the event.
func eventInputForBooking(b *entity.Booking, timezone string) google.EventInput {
	summary := fmt.Sprintf("%s - %s", b.ServiceType, b.CustomerName)
	if b.IsEmergency {
		summary = "[EMERGENCY] " + summary
	}

	var desc strings.Builder
	fmt.Fprintf(&desc, "Customer: %s\nPhone: %s\n", b.CustomerName, b.CustomerPhone)
	if b.CustomerAddress != "" {
		fmt.Fprintf(&desc, "Address: %s\n", b.CustomerAddress)
	}
	if b.JobSummary != "" {
		fmt.Fprintf(&desc, "Job: %s\n", b.JobSummary)
	}
	if b.Notes != "" {
		fmt.Fprintf(&desc, "Notes: %s\n", b.Notes)
	}
	fmt.Fprintf(&desc, "Booking: %s", b.ID)

	return google.EventInput{
		Summary:        summary,
		Description:    desc.String(),
		Start:          b.StartUTC,
		End:            b.EndUTC,
		Timezone:       timezone,
		IdempotencyKey: b.IdempotencyKey,
	}
}
