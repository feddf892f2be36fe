package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/internal/infrastructure/cache"
	"hvac-booking-core/internal/infrastructure/twilio"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Retry task payloads, JSON-encoded into retry_tasks.payload.

type SmsPayload struct {
	To           string         `json:"to"`
	Body         string         `json:"body"`
	Kind         entity.SmsKind `json:"kind"`
	LogOnSuccess bool           `json:"logOnSuccess"`
}

type GcalCreatePayload struct {
	BookingID string `json:"bookingId"`
}

type GcalDeletePayload struct {
	EventID string `json:"eventId"`
}

// RetryWorker drains the durable outbox: every tick it claims due tasks and
// runs the kind-specific executor with exponential-backoff accounting. It is
// idempotent across restarts; a succeeded task is never re-applied.
type RetryWorker struct {
	db           *gorm.DB
	log          *logrus.Logger
	retryRepo    domainRepo.RetryTaskRepository
	bookingRepo  domainRepo.BookingRepository
	businessRepo domainRepo.BusinessRepository
	smsLogRepo   domainRepo.SmsLogRepository
	provider     twilio.Provider
	calendars    CalendarProvider
	lock         *cache.WorkerLock
	interval     time.Duration
	batchSize    int
	now          func() time.Time

	mu       sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

func NewRetryWorker(
	db *gorm.DB,
	log *logrus.Logger,
	retryRepo domainRepo.RetryTaskRepository,
	bookingRepo domainRepo.BookingRepository,
	businessRepo domainRepo.BusinessRepository,
	smsLogRepo domainRepo.SmsLogRepository,
	provider twilio.Provider,
	calendars CalendarProvider,
	lock *cache.WorkerLock,
	interval time.Duration,
	batchSize int,
) *RetryWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 20
	}
	return &RetryWorker{
		db:           db,
		log:          log,
		retryRepo:    retryRepo,
		bookingRepo:  bookingRepo,
		businessRepo: businessRepo,
		smsLogRepo:   smsLogRepo,
		provider:     provider,
		calendars:    calendars,
		lock:         lock,
		interval:     interval,
		batchSize:    batchSize,
		now:          time.Now,
		stopChan:     make(chan struct{}),
	}
}

// Start launches the ticker goroutine. Call Stop during shutdown.
func (w *RetryWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.Tick(context.Background())
			case <-w.stopChan:
				return
			}
		}
	}()
	w.log.Infof("Retry worker started (interval=%s, batch=%d)", w.interval, w.batchSize)
}

// Stop shuts the worker down. Safe to call multiple times.
func (w *RetryWorker) Stop() {
	if w.stopped.CompareAndSwap(false, true) {
		close(w.stopChan)
		w.wg.Wait()
		w.log.Info("Retry worker stopped")
	}
}

// Tick claims and runs one batch of due tasks. The in-process mutex prevents
// overlapping ticks; the optional redis lock prevents concurrent workers
// across processes. No error escapes a tick.
func (w *RetryWorker) Tick(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.lock != nil {
		if !w.lock.TryAcquire(ctx) {
			return
		}
		defer w.lock.Release(ctx)
	}

	now := w.now().UTC()
	tasks, err := w.retryRepo.FindDue(w.db.WithContext(ctx), now, w.batchSize)
	if err != nil {
		w.log.Errorf("Retry tick: failed to fetch due tasks: %v", err)
		return
	}

	for i := range tasks {
		w.executeTask(ctx, &tasks[i])
	}
}

func (w *RetryWorker) executeTask(ctx context.Context, task *entity.RetryTask) {
	attempt := task.AttemptCount + 1
	err := w.dispatch(ctx, task)

	if err == nil {
		if markErr := w.retryRepo.MarkSucceeded(w.db, task.ID, attempt); markErr != nil {
			w.log.Errorf("Retry task %s: succeeded but could not be marked: %v", task.ID, markErr)
		}
		return
	}

	w.log.WithFields(logrus.Fields{
		"retry_id": task.ID,
		"kind":     task.Kind,
		"attempt":  attempt,
	}).Warnf("Retry task failed: %v", err)

	if attempt >= task.MaxAttempts {
		if markErr := w.retryRepo.MarkFailed(w.db, task.ID, attempt, err.Error()); markErr != nil {
			w.log.Errorf("Retry task %s: could not be marked failed: %v", task.ID, markErr)
		}
		return
	}

	next := w.now().UTC().Add(entity.BackoffDelay(attempt))
	if markErr := w.retryRepo.Reschedule(w.db, task.ID, attempt, next, err.Error()); markErr != nil {
		w.log.Errorf("Retry task %s: could not be rescheduled: %v", task.ID, markErr)
	}
}

func (w *RetryWorker) dispatch(ctx context.Context, task *entity.RetryTask) error {
	switch task.Kind {
	case entity.RetryKindTwilioSms:
		return w.runSms(ctx, task)
	case entity.RetryKindGcalCreate:
		return w.runGcalCreate(ctx, task)
	case entity.RetryKindGcalDelete:
		return w.runGcalDelete(ctx, task)
	default:
		return fmt.Errorf("UNSUPPORTED_KIND: %s", task.Kind)
	}
}

func (w *RetryWorker) runSms(ctx context.Context, task *entity.RetryTask) error {
	var payload SmsPayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("malformed twilio_sms payload: %w", err)
	}

	sid, err := w.provider.SendSMS(ctx, payload.To, payload.Body)
	if err != nil {
		return err
	}

	if payload.LogOnSuccess {
		row := &entity.SmsLog{
			BusinessID:        task.BusinessID,
			BookingID:         task.BookingID,
			ToNumber:          payload.To,
			FromNumber:        w.provider.FromNumber(),
			Body:              payload.Body,
			ProviderMessageID: sid,
			Kind:              payload.Kind,
			Status:            entity.SmsStatusSent,
		}
		if err := w.smsLogRepo.Create(w.db, row); err != nil {
			w.log.Warnf("Retry task %s: sms sent but log write failed: %v", task.ID, err)
		}
	}
	return nil
}

func (w *RetryWorker) runGcalCreate(ctx context.Context, task *entity.RetryTask) error {
	var payload GcalCreatePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("malformed gcal_create payload: %w", err)
	}
	if task.BookingID == nil {
		return fmt.Errorf("gcal_create task %s has no booking", task.ID)
	}

	booking, err := w.bookingRepo.FindByID(w.db.WithContext(ctx), *task.BookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		return fmt.Errorf("booking %s not found", *task.BookingID)
	}

	business, err := w.businessRepo.FindByID(w.db.WithContext(ctx), booking.BusinessID)
	if err != nil {
		return err
	}
	timezone := "UTC"
	if business != nil {
		timezone = business.Timezone
	}

	cal, err := w.calendars.ForBusiness(ctx, booking.BusinessID)
	if err != nil {
		return err
	}

	eventID, err := cal.InsertEvent(ctx, eventInputForBooking(booking, timezone))
	if err != nil {
		return err
	}

	if booking.Status == entity.BookingStatusFailed {
		return w.bookingRepo.UpdateStatus(w.db, booking.ID, entity.BookingStatusConfirmed, map[string]interface{}{
			"gcal_event_id":  eventID,
			"failure_reason": "",
		})
	}
	return nil
}

func (w *RetryWorker) runGcalDelete(ctx context.Context, task *entity.RetryTask) error {
	var payload GcalDeletePayload
	if err := json.Unmarshal(task.Payload, &payload); err != nil {
		return fmt.Errorf("malformed gcal_delete payload: %w", err)
	}

	cal, err := w.calendars.ForBusiness(ctx, task.BusinessID)
	if err != nil {
		return err
	}
	return cal.DeleteEvent(ctx, payload.EventID)
}
