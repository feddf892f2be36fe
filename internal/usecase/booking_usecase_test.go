package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/internal/infrastructure/google"
	"hvac-booking-core/internal/repository"
	"hvac-booking-core/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func retryableInsertErr() error {
	return &google.APIError{Op: "calendar.events.insert", StatusCode: 503, Retryable: true, Err: errors.New("backend error")}
}

func permanentInsertErr() error {
	return &google.APIError{Op: "calendar.events.insert", StatusCode: 400, Retryable: false, Err: errors.New("bad request")}
}

func TestCreateBookingHappyPath(t *testing.T) {
	f := newBookingFixture(t)

	res, err := f.uc.CreateBooking(context.Background(), baseInput())
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusConfirmed, res.Status)
	assert.False(t, res.Replay)
	assert.Equal(t, "evt_1", res.GcalEventID)
	assert.False(t, res.IsEmergency)
	assert.False(t, res.EmergencyEscalated)

	// Monday 09:00 Chicago in January is 15:00 UTC.
	assert.Equal(t, time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC), res.StartUTC)
	assert.Equal(t, time.Date(2026, 1, 12, 16, 0, 0, 0, time.UTC), res.EndUTC)

	rows := f.bookingRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.BookingStatusConfirmed, rows[0].Status)
	assert.Nil(t, rows[0].HoldExpiresAtUTC)
	require.NotNil(t, rows[0].GcalEventID)
	assert.Equal(t, "evt_1", *rows[0].GcalEventID)

	// Confirmation SMS went out once and its durable retry intent was settled.
	require.Len(t, f.provider.sent, 1)
	assert.Equal(t, "+15550001111", f.provider.sent[0].To)

	tasks := f.retryTasks(t, entity.RetryKindTwilioSms)
	require.Len(t, tasks, 1)
	assert.Equal(t, entity.RetryStatusSucceeded, tasks[0].Status)

	var smsLogs []entity.SmsLog
	require.NoError(t, f.db.Order("created_at ASC").Find(&smsLogs).Error)
	require.Len(t, smsLogs, 2)
	assert.Equal(t, entity.SmsStatusQueued, smsLogs[0].Status)
	assert.Equal(t, entity.SmsStatusSent, smsLogs[1].Status)
}

func TestCreateBookingValidation(t *testing.T) {
	f := newBookingFixture(t)

	var verr *ValidationError

	in := baseInput()
	in.BusinessID = ""
	_, err := f.uc.CreateBooking(context.Background(), in)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Missing businessId", verr.Message)

	// All missing fields are reported together.
	_, err = f.uc.CreateBooking(context.Background(), CreateBookingInput{})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Missing businessId/startLocal/timezone", verr.Message)

	in = baseInput()
	in.StartLocal = ""
	in.Timezone = ""
	_, err = f.uc.CreateBooking(context.Background(), in)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Missing startLocal/timezone", verr.Message)

	in = baseInput()
	in.Timezone = "Not/AZone"
	_, err = f.uc.CreateBooking(context.Background(), in)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid startLocal/timezone", verr.Message)

	in = baseInput()
	in.DurationMin = 481
	_, err = f.uc.CreateBooking(context.Background(), in)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid durationMins", verr.Message)

	bad := -1
	in = baseInput()
	in.BufferMin = &bad
	_, err = f.uc.CreateBooking(context.Background(), in)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid bufferMins", verr.Message)
}

func TestCreateBookingUnknownBusiness(t *testing.T) {
	f := newBookingFixture(t)

	in := baseInput()
	in.BusinessID = "nope"
	_, err := f.uc.CreateBooking(context.Background(), in)
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}

func TestCreateBookingStartTooSoon(t *testing.T) {
	f := newBookingFixture(t)

	in := baseInput()
	in.StartLocal = "2026-01-10T07:30:00" // 30 minutes out, lead time is 60

	_, err := f.uc.CreateBooking(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "INVALID_BOOKING_TIME_WINDOW", verr.Message)
	require.Len(t, verr.Details, 1)
	assert.Equal(t, "START_TOO_SOON", verr.Details[0]["reason"])
	assert.Contains(t, verr.Details[0], "earliest_local")

	assert.Empty(t, f.bookingRows(t))
	assert.Zero(t, f.calendar.insertCalls)
}

func TestCreateBookingStartTooFar(t *testing.T) {
	f := newBookingFixture(t)

	in := baseInput()
	in.StartLocal = "2026-02-15T09:00:00" // horizon is 14 days

	_, err := f.uc.CreateBooking(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "INVALID_BOOKING_TIME_WINDOW", verr.Message)
	require.Len(t, verr.Details, 1)
	assert.Equal(t, "START_TOO_FAR", verr.Details[0]["reason"])
}

func TestCreateBookingCalendarNotConnected(t *testing.T) {
	f := newBookingFixture(t)
	f.cals.err = google.ErrNoTokens

	_, err := f.uc.CreateBooking(context.Background(), baseInput())
	assert.ErrorIs(t, err, ErrCalendarNotConnected)
	assert.Empty(t, f.bookingRows(t))
}

func TestCreateBookingFreebusyConflict(t *testing.T) {
	f := newBookingFixture(t)
	f.calendar.busy = []google.BusyInterval{{
		Start: time.Date(2026, 1, 12, 15, 30, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 12, 16, 30, 0, 0, time.UTC),
	}}

	_, err := f.uc.CreateBooking(context.Background(), baseInput())
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	// Rejected before any state change: no row, no event, no sms.
	assert.Empty(t, f.bookingRows(t))
	assert.Zero(t, f.calendar.insertCalls)
	assert.Empty(t, f.provider.sent)
}

func TestCreateBookingTouchingBusyIntervalIsFree(t *testing.T) {
	f := newBookingFixture(t)
	f.calendar.busy = []google.BusyInterval{{
		Start: time.Date(2026, 1, 12, 16, 0, 0, 0, time.UTC), // ends exactly at our end
		End:   time.Date(2026, 1, 12, 17, 0, 0, 0, time.UTC),
	}}

	res, err := f.uc.CreateBooking(context.Background(), baseInput())
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, res.Status)
}

func TestCreateBookingLedgerConflict(t *testing.T) {
	f := newBookingFixture(t)

	start := time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC)
	existing := &entity.Booking{
		ID:              uuid.New(),
		BusinessID:      "biz1",
		StartUTC:        start,
		EndUTC:          start.Add(time.Hour),
		OverlapStartUTC: start,
		OverlapEndUTC:   start.Add(time.Hour),
		Status:          entity.BookingStatusConfirmed,
		CustomerPhone:   "+15550002222",
		SlotKey:         entity.SlotKey("biz1", start),
		IdempotencyKey:  entity.IdempotencyKey("biz1", start, 60, "+15550002222"),
	}
	require.NoError(t, f.db.Create(existing).Error)

	_, err := f.uc.CreateBooking(context.Background(), baseInput())
	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)

	rows := f.bookingRows(t)
	assert.Len(t, rows, 1) // only the pre-existing row
}

func TestCreateBookingReplaysIdempotentRetry(t *testing.T) {
	f := newBookingFixture(t)

	first, err := f.uc.CreateBooking(context.Background(), baseInput())
	require.NoError(t, err)

	second, err := f.uc.CreateBooking(context.Background(), baseInput())
	require.NoError(t, err)

	assert.True(t, second.Replay)
	assert.Equal(t, first.BookingID, second.BookingID)
	assert.Equal(t, entity.BookingStatusConfirmed, second.Status)
	assert.Equal(t, "evt_1", second.GcalEventID)

	// No second orchestration: one event, one sms, one row.
	assert.Equal(t, 1, f.calendar.insertCalls)
	assert.Len(t, f.provider.sent, 1)
	assert.Len(t, f.bookingRows(t), 1)
}

func TestCreateBookingInsertFailureSettlesHold(t *testing.T) {
	f := newBookingFixture(t)
	f.calendar.insertErrs = []error{permanentInsertErr()}

	_, err := f.uc.CreateBooking(context.Background(), baseInput())
	assert.ErrorIs(t, err, ErrEventInsertFailed)

	// Non-retryable: exactly one attempt, no lookup recovery.
	assert.Equal(t, 1, f.calendar.insertCalls)

	rows := f.bookingRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.BookingStatusFailed, rows[0].Status)
	assert.Equal(t, "GOOGLE_EVENTS_INSERT_FAILED", rows[0].FailureReason)
	assert.Nil(t, rows[0].HoldExpiresAtUTC)
	assert.Empty(t, f.provider.sent)

	// A permanent error will never succeed later; no recovery intent.
	assert.Empty(t, f.retryTasks(t, entity.RetryKindGcalCreate))
}

func TestCreateBookingRecoversViaIdempotencyLookup(t *testing.T) {
	f := newBookingFixture(t)

	startUTC := time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC)
	key := entity.IdempotencyKey("biz1", startUTC, 60, "+15550001111")

	f.calendar.insertErrs = []error{retryableInsertErr()}
	f.calendar.listEvents = []google.Event{{
		ID:             "evt_recovered",
		Start:          startUTC,
		End:            startUTC.Add(time.Hour),
		IdempotencyKey: key,
	}}

	res, err := f.uc.CreateBooking(context.Background(), baseInput())
	require.NoError(t, err)

	// The first insert landed despite the error; the lookup found it and no
	// second insert happened.
	assert.Equal(t, "evt_recovered", res.GcalEventID)
	assert.Equal(t, 1, f.calendar.insertCalls)
	assert.Equal(t, entity.BookingStatusConfirmed, res.Status)
}

func TestCreateBookingSecondInsertAfterEmptyLookup(t *testing.T) {
	f := newBookingFixture(t)
	f.calendar.insertErrs = []error{retryableInsertErr()}

	res, err := f.uc.CreateBooking(context.Background(), baseInput())
	require.NoError(t, err)

	assert.Equal(t, 2, f.calendar.insertCalls)
	assert.Equal(t, "evt_2", res.GcalEventID)
}

func TestCreateBookingBothInsertsFailing(t *testing.T) {
	f := newBookingFixture(t)
	f.calendar.insertErrs = []error{retryableInsertErr(), retryableInsertErr()}

	_, err := f.uc.CreateBooking(context.Background(), baseInput())
	assert.ErrorIs(t, err, ErrEventInsertFailed)
	assert.Equal(t, 2, f.calendar.insertCalls)

	rows := f.bookingRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.BookingStatusFailed, rows[0].Status)

	// Retryable failure leaves a durable create intent for the worker.
	tasks := f.retryTasks(t, entity.RetryKindGcalCreate)
	require.Len(t, tasks, 1)
	assert.Equal(t, entity.RetryStatusPending, tasks[0].Status)
	require.NotNil(t, tasks[0].BookingID)
	assert.Equal(t, rows[0].ID, *tasks[0].BookingID)
	assert.JSONEq(t, fmt.Sprintf(`{"bookingId":%q}`, rows[0].ID), string(tasks[0].Payload))
}

func TestCreateBookingInsertFailureRecoversThroughWorker(t *testing.T) {
	f := newBookingFixture(t)
	f.calendar.insertErrs = []error{retryableInsertErr(), retryableInsertErr()}

	_, err := f.uc.CreateBooking(context.Background(), baseInput())
	require.ErrorIs(t, err, ErrEventInsertFailed)

	// The calendar came back; the worker drains the create intent and the
	// failed booking is confirmed with the late event.
	worker := service.NewRetryWorker(f.db, testLogger(),
		repository.NewRetryTaskRepository(), repository.NewBookingRepository(),
		repository.NewBusinessRepository(), repository.NewSmsLogRepository(),
		f.provider, f.cals, nil, time.Minute, 10)
	worker.Tick(context.Background())

	rows := f.bookingRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.BookingStatusConfirmed, rows[0].Status)
	assert.Empty(t, rows[0].FailureReason)
	require.NotNil(t, rows[0].GcalEventID)
	assert.Equal(t, "evt_3", *rows[0].GcalEventID)

	tasks := f.retryTasks(t, entity.RetryKindGcalCreate)
	require.Len(t, tasks, 1)
	assert.Equal(t, entity.RetryStatusSucceeded, tasks[0].Status)
}

func TestCreateBookingConcurrentDuplicatesSingleWinner(t *testing.T) {
	f := newBookingFixture(t)

	const callers = 8
	results := make([]*BookingResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.uc.CreateBooking(context.Background(), baseInput())
		}(i)
	}
	wg.Wait()

	winners := 0
	var winnerID uuid.UUID
	for i := range results {
		switch {
		case errs[i] == nil && !results[i].Replay:
			winners++
			winnerID = results[i].BookingID
			assert.Equal(t, entity.BookingStatusConfirmed, results[i].Status)
		case errs[i] == nil:
			// replay handled below once the winner is known
		default:
			assert.ErrorIs(t, errs[i], ErrSlotAlreadyBooked)
		}
	}
	require.Equal(t, 1, winners)
	for i := range results {
		if errs[i] == nil && results[i].Replay {
			assert.Equal(t, winnerID, results[i].BookingID)
		}
	}

	// Exactly one row, and exactly one row satisfying the active predicate.
	rows := f.bookingRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, entity.BookingStatusConfirmed, rows[0].Status)

	var active int64
	require.NoError(t, f.db.Model(&entity.Booking{}).
		Where("status = ? OR (status = ? AND hold_expires_at_utc IS NOT NULL AND hold_expires_at_utc > ?)",
			entity.BookingStatusConfirmed, entity.BookingStatusPending, fixedNow.UTC()).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)

	assert.Equal(t, 1, f.calendar.insertCalls)
	assert.Len(t, f.provider.sent, 1)
}

func TestCreateBookingOutsideHoursBecomesEmergency(t *testing.T) {
	f := newBookingFixture(t)

	in := baseInput()
	in.StartLocal = "2026-01-12T19:00:00" // Monday evening, hours end 17:00

	res, err := f.uc.CreateBooking(context.Background(), in)
	require.NoError(t, err)

	assert.True(t, res.IsEmergency)
	assert.True(t, res.EmergencyEscalated)

	rows := f.bookingRows(t)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsEmergency)
	assert.Equal(t, "[EMERGENCY] repair", rows[0].JobSummary)

	// Customer confirmation plus technician escalation.
	require.Len(t, f.provider.sent, 2)
	assert.Equal(t, "+15550009999", f.provider.sent[1].To)

	var escLogs []entity.EmergencyLog
	require.NoError(t, f.db.Find(&escLogs).Error)
	assert.Len(t, escLogs, 1)
}

func TestCreateBookingExplicitEmergencyFlag(t *testing.T) {
	f := newBookingFixture(t)

	in := baseInput()
	in.IsEmergency = true

	res, err := f.uc.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.IsEmergency)
}

func TestCreateBookingEmergencyServiceKeyword(t *testing.T) {
	f := newBookingFixture(t)

	in := baseInput()
	in.Service = "emergency"

	res, err := f.uc.CreateBooking(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.IsEmergency)

	rows := f.bookingRows(t)
	require.Len(t, rows, 1)
	assert.Equal(t, "[EMERGENCY] emergency", rows[0].JobSummary)
}

func TestCreateBookingSmsFailureLeavesRetryIntent(t *testing.T) {
	f := newBookingFixture(t)
	f.provider.smsErr = errProviderDown

	res, err := f.uc.CreateBooking(context.Background(), baseInput())
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusConfirmed, res.Status)

	// The inline send failed; the durable intent stays pending for the worker.
	tasks := f.retryTasks(t, entity.RetryKindTwilioSms)
	require.Len(t, tasks, 1)
	assert.Equal(t, entity.RetryStatusPending, tasks[0].Status)
	assert.WithinDuration(t, fixedNow.UTC().Add(30*time.Second), tasks[0].NextAttemptAtUTC, time.Second)

	var smsLogs []entity.SmsLog
	require.NoError(t, f.db.Where("status = ?", entity.SmsStatusFailed).Find(&smsLogs).Error)
	assert.Len(t, smsLogs, 1)
}

func TestGetBooking(t *testing.T) {
	f := newBookingFixture(t)

	res, err := f.uc.CreateBooking(context.Background(), baseInput())
	require.NoError(t, err)

	got, err := f.uc.GetBooking(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, res.BookingID, got.ID)

	_, err = f.uc.GetBooking(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestCancelBookingEnqueuesCalendarDelete(t *testing.T) {
	f := newBookingFixture(t)

	res, err := f.uc.CreateBooking(context.Background(), baseInput())
	require.NoError(t, err)

	cancelled, err := f.uc.CancelBooking(context.Background(), res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, cancelled.Status)

	tasks := f.retryTasks(t, entity.RetryKindGcalDelete)
	require.Len(t, tasks, 1)
	assert.Equal(t, entity.RetryStatusPending, tasks[0].Status)
	assert.JSONEq(t, `{"eventId":"evt_1"}`, string(tasks[0].Payload))

	// Cancelling twice hits the terminal state.
	_, err = f.uc.CancelBooking(context.Background(), res.BookingID)
	assert.ErrorIs(t, err, domainRepo.ErrInvalidStatusTransition)
}
