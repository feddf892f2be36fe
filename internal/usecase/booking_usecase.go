package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hvac-booking-core/config"
	"hvac-booking-core/internal/availability"
	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/internal/infrastructure/database"
	"hvac-booking-core/internal/infrastructure/google"
	"hvac-booking-core/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrBusinessNotFound     = errors.New("Business not found")
	ErrBookingNotFound      = errors.New("Booking not found")
	ErrSlotAlreadyBooked    = errors.New("SLOT_ALREADY_BOOKED")
	ErrCalendarNotConnected = errors.New("Google Calendar is not connected")
	ErrEventInsertFailed    = errors.New("GOOGLE_EVENTS_INSERT_FAILED")
)

// ValidationError carries the 400 payload: a joined message plus optional
// machine-readable details.
type ValidationError struct {
	Message string
	Details []map[string]interface{}
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// CustomerInput is the customer block of a booking request, already
// normalized from its wire aliases.
type CustomerInput struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// CreateBookingInput is the normalized booking request.
type CreateBookingInput struct {
	BusinessID  string
	StartLocal  string
	Timezone    string
	DurationMin int  // 0 means tenant default
	BufferMin   *int // nil means tenant default
	Service     string
	IsEmergency bool
	Customer    CustomerInput
	Notes       string
	RequestID   string
}

// BookingResult is what createBooking hands the HTTP layer. Replay is set when
// an existing active booking answered the request; a pending replay maps to 202.
type BookingResult struct {
	BookingID          uuid.UUID
	Status             entity.BookingStatus
	Replay             bool
	GcalEventID        string
	StartUTC           time.Time
	EndUTC             time.Time
	IsEmergency        bool
	EmergencyEscalated bool
}

// BookingUsecase is the booking orchestrator: request validation, idempotent
// slot allocation, external revalidation, event commit, confirmation, and
// side-effect dispatch.
type BookingUsecase struct {
	db           *gorm.DB
	log          *logrus.Logger
	bookingCfg   config.BookingConfig
	businessRepo domainRepo.BusinessRepository
	bookingRepo  domainRepo.BookingRepository
	retryRepo    domainRepo.RetryTaskRepository
	smsLogRepo   domainRepo.SmsLogRepository
	calendars    service.CalendarProvider
	notifier     *service.NotificationService

	// runAsync spawns fire-and-forget work; tests swap in a synchronous runner.
	runAsync func(fn func())
	now      func() time.Time
}

func NewBookingUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	bookingCfg config.BookingConfig,
	businessRepo domainRepo.BusinessRepository,
	bookingRepo domainRepo.BookingRepository,
	retryRepo domainRepo.RetryTaskRepository,
	smsLogRepo domainRepo.SmsLogRepository,
	calendars service.CalendarProvider,
	notifier *service.NotificationService,
) *BookingUsecase {
	return &BookingUsecase{
		db:           db,
		log:          log,
		bookingCfg:   bookingCfg,
		businessRepo: businessRepo,
		bookingRepo:  bookingRepo,
		retryRepo:    retryRepo,
		smsLogRepo:   smsLogRepo,
		calendars:    calendars,
		notifier:     notifier,
		runAsync:     func(fn func()) { go fn() },
		now:          time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (u *BookingUsecase) WithClock(now func() time.Time) *BookingUsecase {
	u.now = now
	return u
}

// WithAsyncRunner overrides the fire-and-forget spawner. Test hook.
func (u *BookingUsecase) WithAsyncRunner(run func(fn func())) *BookingUsecase {
	u.runAsync = run
	return u
}

// CreateBooking runs the orchestration sequence:
//
//  1. Validate the request against the effective tenant profile.
//  2. Idempotency lookup; an active row replays without side effects.
//  3. Credential preflight; no calendar connection means no transaction opens.
//  4. Inline freebusy revalidation with the short budget.
//  5. Emergency classification.
//  6. Hold transaction (pending row with live hold, slot/idempotency unique).
//  7. Calendar event insert, two attempts with the idempotent lookup between.
//  8. Confirm, then dispatch SMS/emergency work without blocking the response.
//
// Any failure after the hold row exists fails the booking; a pending hold
// never survives an exception path.
func (u *BookingUsecase) CreateBooking(ctx context.Context, input CreateBookingInput) (*BookingResult, error) {
	var missing []string
	if input.BusinessID == "" {
		missing = append(missing, "businessId")
	}
	if input.StartLocal == "" {
		missing = append(missing, "startLocal")
	}
	if input.Timezone == "" {
		missing = append(missing, "timezone")
	}
	if len(missing) > 0 {
		return nil, validationErrorf("Missing %s", joinFields(missing))
	}

	business, err := u.businessRepo.FindByID(u.db.WithContext(ctx), input.BusinessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, ErrBusinessNotFound
	}

	profile, err := u.businessRepo.FindProfile(u.db.WithContext(ctx), input.BusinessID)
	if err != nil {
		return nil, err
	}
	eff := entity.Effective(business, profile)

	startLocal, loc, dur, bufBefore, bufAfter, verr := u.validateRequest(input, eff)
	if verr != nil {
		return nil, verr
	}

	startUTC := startLocal.UTC()
	endUTC := startUTC.Add(time.Duration(dur) * time.Minute)
	idemKey := entity.IdempotencyKey(input.BusinessID, startUTC, dur, input.Customer.Phone)
	now := u.now().UTC()

	// Idempotency lookup: client retries of an in-flight or settled request
	// replay the prior outcome instead of re-orchestrating.
	if existing, err := u.bookingRepo.FindActiveByIdempotencyKey(u.db.WithContext(ctx), input.BusinessID, idemKey, now); err != nil {
		return nil, err
	} else if existing != nil {
		return replayResult(existing), nil
	}

	// Credential preflight before any transaction opens.
	cal, err := u.calendars.ForBusiness(ctx, input.BusinessID)
	if err != nil {
		if errors.Is(err, google.ErrNoTokens) {
			return nil, ErrCalendarNotConnected
		}
		return nil, err
	}

	busy, err := cal.FreeBusy(ctx, startUTC, endUTC)
	if err != nil {
		return nil, err
	}
	requested := availability.Interval{Start: startUTC, End: endUTC}
	for _, b := range busy {
		if requested.Overlaps(availability.Interval{Start: b.Start, End: b.End}) {
			return nil, ErrSlotAlreadyBooked
		}
	}

	isEmergency := input.IsEmergency ||
		input.Service == "emergency" ||
		availability.IsOutsideBusinessHours(startUTC, loc, eff.WorkingHours)

	jobSummary := input.Service
	if jobSummary == "" {
		jobSummary = "service call"
	}
	if isEmergency {
		jobSummary = "[EMERGENCY] " + jobSummary
	}

	holdExpiry := now.Add(time.Duration(u.holdMinutes()) * time.Minute)
	booking := &entity.Booking{
		ID:               uuid.New(),
		BusinessID:       input.BusinessID,
		StartUTC:         startUTC,
		EndUTC:           endUTC,
		OverlapStartUTC:  startUTC.Add(-time.Duration(bufBefore) * time.Minute),
		OverlapEndUTC:    endUTC.Add(time.Duration(bufAfter) * time.Minute),
		Status:           entity.BookingStatusPending,
		HoldExpiresAtUTC: &holdExpiry,
		CustomerName:     input.Customer.Name,
		CustomerPhone:    input.Customer.Phone,
		CustomerEmail:    input.Customer.Email,
		CustomerAddress:  input.Customer.Address,
		ServiceType:      input.Service,
		Notes:            input.Notes,
		IsEmergency:      isEmergency,
		JobSummary:       jobSummary,
		SlotKey:          entity.SlotKey(input.BusinessID, startUTC),
		IdempotencyKey:   idemKey,
	}

	ok, err := u.bookingRepo.CreatePendingHoldIfAvailable(u.db.WithContext(ctx), booking, now)
	if err != nil {
		switch database.UniqueViolationTarget(err) {
		case "idempotency":
			// Lost the race to our own duplicate; replay it.
			existing, lookupErr := u.bookingRepo.FindActiveByIdempotencyKey(u.db.WithContext(ctx), input.BusinessID, idemKey, u.now().UTC())
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing != nil {
				return replayResult(existing), nil
			}
			return nil, ErrSlotAlreadyBooked
		case "":
			return nil, err
		default:
			return nil, ErrSlotAlreadyBooked
		}
	}
	if !ok {
		return nil, ErrSlotAlreadyBooked
	}

	// The hold row exists from here on; every failure path must settle it.
	eventID, err := u.insertEventWithRecovery(ctx, cal, booking, eff.Timezone, dur)
	if err != nil {
		u.failBooking(booking.ID, "GOOGLE_EVENTS_INSERT_FAILED")
		if google.IsRetryable(err) {
			u.enqueueEventRecovery(booking)
		}
		return nil, ErrEventInsertFailed
	}

	if err := u.bookingRepo.ConfirmBooking(u.db, booking.ID, eventID); err != nil {
		u.failBooking(booking.ID, "CONFIRM_FAILED")
		return nil, err
	}
	booking.Status = entity.BookingStatusConfirmed
	booking.GcalEventID = &eventID
	booking.HoldExpiresAtUTC = nil

	escalated := u.dispatchSideEffects(booking, eff)

	return &BookingResult{
		BookingID:          booking.ID,
		Status:             entity.BookingStatusConfirmed,
		GcalEventID:        eventID,
		StartUTC:           startUTC,
		EndUTC:             endUTC,
		IsEmergency:        isEmergency,
		EmergencyEscalated: escalated,
	}, nil
}

// GetBooking returns the booking by id, ErrBookingNotFound when absent.
func (u *BookingUsecase) GetBooking(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	booking, err := u.bookingRepo.FindByID(u.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	return booking, nil
}

// CancelBooking cancels a pending or confirmed booking. A confirmed booking's
// calendar event is removed through the durable outbox, not inline, so the
// cancel response never waits on the calendar API.
func (u *BookingUsecase) CancelBooking(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	booking, err := u.bookingRepo.FindByID(u.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	if err := u.bookingRepo.CancelBooking(u.db, id); err != nil {
		return nil, err
	}

	if booking.IsConfirmed() && booking.GcalEventID != nil {
		payload := fmt.Sprintf(`{"eventId":%q}`, *booking.GcalEventID)
		task := &entity.RetryTask{
			ID:               uuid.New(),
			BusinessID:       booking.BusinessID,
			BookingID:        &booking.ID,
			Kind:             entity.RetryKindGcalDelete,
			Payload:          []byte(payload),
			MaxAttempts:      entity.DefaultMaxAttempts,
			NextAttemptAtUTC: u.now().UTC(),
			Status:           entity.RetryStatusPending,
		}
		if err := u.retryRepo.Enqueue(u.db, task); err != nil {
			u.log.Errorf("Cancel booking %s: failed to enqueue calendar delete: %v", id, err)
		}
	}

	booking.Status = entity.BookingStatusCancelled
	booking.HoldExpiresAtUTC = nil
	return booking, nil
}

func (u *BookingUsecase) holdMinutes() int {
	if u.bookingCfg.HoldMinutes > 0 {
		return u.bookingCfg.HoldMinutes
	}
	return 5
}

// validateRequest applies the pre-state-change checks: required fields, value
// ranges, timezone parse, and the lead-time/horizon window policy.
func (u *BookingUsecase) validateRequest(input CreateBookingInput, eff entity.EffectiveProfile) (startLocal time.Time, loc *time.Location, dur, bufBefore, bufAfter int, verr *ValidationError) {
	dur = input.DurationMin
	if dur == 0 {
		dur = eff.DurationMin
	}
	if dur <= 0 || dur > 480 {
		return time.Time{}, nil, 0, 0, 0, validationErrorf("Invalid durationMins")
	}

	bufBefore, bufAfter = eff.BufferBeforeMin, eff.BufferAfterMin
	if input.BufferMin != nil {
		if *input.BufferMin < 0 || *input.BufferMin > 1440 {
			return time.Time{}, nil, 0, 0, 0, validationErrorf("Invalid bufferMins")
		}
		bufBefore, bufAfter = *input.BufferMin, *input.BufferMin
	}

	loc, err := time.LoadLocation(input.Timezone)
	if err != nil {
		return time.Time{}, nil, 0, 0, 0, validationErrorf("Invalid startLocal/timezone")
	}
	startLocal, err = parseLocal(input.StartLocal, loc)
	if err != nil {
		return time.Time{}, nil, 0, 0, 0, validationErrorf("Invalid startLocal/timezone")
	}

	nowLocal := u.now().In(loc)
	earliest := nowLocal.Add(time.Duration(eff.LeadTimeMin) * time.Minute)
	if startLocal.Before(earliest) {
		return time.Time{}, nil, 0, 0, 0, &ValidationError{
			Message: "INVALID_BOOKING_TIME_WINDOW",
			Details: []map[string]interface{}{{
				"reason":         "START_TOO_SOON",
				"earliest_local": earliest.Format(time.RFC3339),
			}},
		}
	}
	horizon := endOfDay(nowLocal.AddDate(0, 0, eff.MaxDaysAhead))
	if startLocal.After(horizon) {
		return time.Time{}, nil, 0, 0, 0, &ValidationError{
			Message: "INVALID_BOOKING_TIME_WINDOW",
			Details: []map[string]interface{}{{
				"reason":       "START_TOO_FAR",
				"latest_local": horizon.Format(time.RFC3339),
			}},
		}
	}

	return startLocal, loc, dur, bufBefore, bufAfter, nil
}

// insertEventWithRecovery commits the calendar event with a two-attempt
// policy: if the first insert fails with a retryable error, look for an event
// that already carries our idempotency key (the insert may have landed before
// the failure surfaced) inside a padded window; only when the lookup proves
// nothing landed do we insert again.
func (u *BookingUsecase) insertEventWithRecovery(ctx context.Context, cal google.Calendar, booking *entity.Booking, timezone string, dur int) (string, error) {
	input := google.EventInput{
		Summary:        eventSummary(booking),
		Description:    eventDescription(booking),
		Start:          booking.StartUTC,
		End:            booking.EndUTC,
		Timezone:       timezone,
		IdempotencyKey: booking.IdempotencyKey,
	}

	eventID, err := cal.InsertEvent(ctx, input)
	if err == nil {
		return eventID, nil
	}
	if !google.IsRetryable(err) {
		return "", err
	}

	padMin := dur + 60
	if padMin < 60 {
		padMin = 60
	}
	pad := time.Duration(padMin) * time.Minute
	events, lookupErr := cal.ListEventsByIdempotencyKey(ctx, booking.StartUTC.Add(-pad), booking.EndUTC.Add(pad), booking.IdempotencyKey)
	if lookupErr == nil {
		for _, ev := range events {
			if eventMatchesBooking(ev, booking) {
				u.log.WithFields(logrus.Fields{
					"booking_id": booking.ID,
					"event_id":   ev.ID,
				}).Info("Calendar insert recovered via idempotency lookup")
				return ev.ID, nil
			}
		}
	}

	return cal.InsertEvent(ctx, input)
}

// dispatchSideEffects fires the confirmation SMS and emergency escalation
// without blocking the response. The SMS retry intent is enqueued durably
// before the best-effort immediate send, so a crash mid-dispatch degrades to
// eventual delivery rather than loss; the immediate send marks the task
// succeeded to prevent a duplicate message.
func (u *BookingUsecase) dispatchSideEffects(booking *entity.Booking, eff entity.EffectiveProfile) bool {
	loc := eff.Location()

	if booking.CustomerPhone != "" {
		body := u.notifier.ConfirmationBody(booking, loc)

		queued := &entity.SmsLog{
			BusinessID: booking.BusinessID,
			BookingID:  &booking.ID,
			ToNumber:   booking.CustomerPhone,
			Body:       body,
			Kind:       entity.SmsKindConfirmation,
			Status:     entity.SmsStatusQueued,
		}
		if err := u.smsLogRepo.Create(u.db, queued); err != nil {
			u.log.Warnf("Booking %s: failed to write queued sms log: %v", booking.ID, err)
		}

		payload, _ := encodeSmsPayload(booking.CustomerPhone, body)
		task := &entity.RetryTask{
			ID:               uuid.New(),
			BusinessID:       booking.BusinessID,
			BookingID:        &booking.ID,
			Kind:             entity.RetryKindTwilioSms,
			Payload:          payload,
			MaxAttempts:      entity.DefaultMaxAttempts,
			NextAttemptAtUTC: u.now().UTC().Add(entity.BackoffDelay(1)),
			Status:           entity.RetryStatusPending,
		}
		if err := u.retryRepo.Enqueue(u.db, task); err != nil {
			u.log.Errorf("Booking %s: failed to enqueue sms retry intent: %v", booking.ID, err)
			task = nil
		}

		snapshot := *booking
		u.runAsync(func() {
			result := u.notifier.SendBookingConfirmation(context.Background(), &snapshot, loc)
			terminal := &entity.SmsLog{
				BusinessID: snapshot.BusinessID,
				BookingID:  &snapshot.ID,
				ToNumber:   snapshot.CustomerPhone,
				Body:       body,
				Kind:       entity.SmsKindConfirmation,
			}
			switch {
			case result.Ok:
				terminal.Status = entity.SmsStatusSent
				terminal.ProviderMessageID = result.SID
				if task != nil {
					if err := u.retryRepo.MarkSucceeded(u.db, task.ID, 0); err != nil {
						u.log.Warnf("Booking %s: sms sent but retry intent not settled: %v", snapshot.ID, err)
					}
				}
			case result.Skipped:
				return
			default:
				terminal.Status = entity.SmsStatusFailed
				if result.Err != nil {
					terminal.ErrorMessage = result.Err.Error()
				}
				u.log.Warnf("Booking %s: confirmation sms failed, retry queued: %v", snapshot.ID, result.Err)
			}
			if err := u.smsLogRepo.Create(u.db, terminal); err != nil {
				u.log.Warnf("Booking %s: failed to write sms log: %v", snapshot.ID, err)
			}
		})
	}

	escalated := false
	if booking.IsEmergency {
		// Escalation is dispatched when a technician phone exists; the sends
		// themselves are best-effort and never gate the confirmation.
		escalated = eff.EmergencyPhone != "" || u.notifier.FallbackPhone() != ""
		snapshot := *booking
		u.runAsync(func() {
			u.notifier.HandleEmergency(context.Background(), &snapshot, eff)
		})
	}
	return escalated
}

// enqueueEventRecovery records the durable intent to create the calendar event
// after a retryable insert failure; the retry worker's gcal_create executor
// picks it up and confirms the failed booking once the insert lands.
func (u *BookingUsecase) enqueueEventRecovery(booking *entity.Booking) {
	payload, _ := json.Marshal(service.GcalCreatePayload{BookingID: booking.ID.String()})
	task := &entity.RetryTask{
		ID:               uuid.New(),
		BusinessID:       booking.BusinessID,
		BookingID:        &booking.ID,
		Kind:             entity.RetryKindGcalCreate,
		Payload:          payload,
		MaxAttempts:      entity.DefaultMaxAttempts,
		NextAttemptAtUTC: u.now().UTC().Add(entity.BackoffDelay(1)),
		Status:           entity.RetryStatusPending,
	}
	if err := u.retryRepo.Enqueue(u.db, task); err != nil {
		u.log.Errorf("Booking %s: failed to enqueue calendar create intent: %v", booking.ID, err)
	}
}

func (u *BookingUsecase) failBooking(id uuid.UUID, reason string) {
	if err := u.bookingRepo.FailBooking(u.db, id, reason); err != nil {
		u.log.Errorf("Booking %s: failed to settle hold after error (%s): %v", id, reason, err)
	}
}

func replayResult(b *entity.Booking) *BookingResult {
	res := &BookingResult{
		BookingID:   b.ID,
		Status:      b.Status,
		Replay:      true,
		StartUTC:    b.StartUTC,
		EndUTC:      b.EndUTC,
		IsEmergency: b.IsEmergency,
	}
	if b.GcalEventID != nil {
		res.GcalEventID = *b.GcalEventID
	}
	return res
}

// eventMatchesBooking accepts an event whose key matches and whose window is
// within 2 minutes of the expected UTC bounds, or whose all-day dates equal
// the expected dates.
func eventMatchesBooking(ev google.Event, b *entity.Booking) bool {
	if ev.IdempotencyKey != b.IdempotencyKey {
		return false
	}
	if ev.StartDate != "" || ev.EndDate != "" {
		return ev.StartDate == b.StartUTC.UTC().Format("2006-01-02") &&
			ev.EndDate == b.EndUTC.UTC().Format("2006-01-02")
	}
	const tolerance = 2 * time.Minute
	return absDuration(ev.Start.Sub(b.StartUTC)) <= tolerance &&
		absDuration(ev.End.Sub(b.EndUTC)) <= tolerance
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func eventSummary(b *entity.Booking) string {
	service := b.ServiceType
	if service == "" {
		service = "Service call"
	}
	summary := fmt.Sprintf("%s - %s", service, b.CustomerName)
	if b.IsEmergency {
		summary = "[EMERGENCY] " + summary
	}
	return summary
}

func eventDescription(b *entity.Booking) string {
	desc := fmt.Sprintf("Booking: %s\nCustomer: %s\nPhone: %s", b.ID, b.CustomerName, b.CustomerPhone)
	if b.CustomerAddress != "" {
		desc += "\nAddress: " + b.CustomerAddress
	}
	if b.Notes != "" {
		desc += "\nNotes: " + b.Notes
	}
	return desc
}

func parseLocal(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable start %q", s)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

func joinFields(fields []string) string {
	out := fields[0]
	for _, f := range fields[1:] {
		out += "/" + f
	}
	return out
}

func encodeSmsPayload(to, body string) ([]byte, error) {
	return json.Marshal(service.SmsPayload{
		To:           to,
		Body:         body,
		Kind:         entity.SmsKindConfirmation,
		LogOnSuccess: true,
	})
}
