package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hvac-booking-core/config"
	"hvac-booking-core/internal/domain/entity"
	"hvac-booking-core/internal/infrastructure/google"
	"hvac-booking-core/internal/repository"
	"hvac-booking-core/internal/service"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?_txlock=immediate&_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&entity.Business{},
		&entity.BusinessProfile{},
		&entity.Booking{},
		&entity.GoogleTokenRecord{},
		&entity.OAuthFlow{},
		&entity.SmsLog{},
		&entity.CallLog{},
		&entity.EmergencyLog{},
		&entity.RetryTask{},
	))
	return db
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

var errProviderDown = errors.New("provider unavailable")

type fakeProvider struct {
	smsErr   error
	sent     []sentMessage
	calls    []sentMessage
	sidCount int
}

type sentMessage struct {
	To   string
	Body string
}

func (p *fakeProvider) SendSMS(_ context.Context, to, body string) (string, error) {
	if p.smsErr != nil {
		return "", p.smsErr
	}
	p.sent = append(p.sent, sentMessage{To: to, Body: body})
	p.sidCount++
	return fmt.Sprintf("SM%04d", p.sidCount), nil
}

func (p *fakeProvider) MakeCall(_ context.Context, to, twiml string) (string, error) {
	p.calls = append(p.calls, sentMessage{To: to, Body: twiml})
	p.sidCount++
	return fmt.Sprintf("CA%04d", p.sidCount), nil
}

func (p *fakeProvider) FromNumber() string { return "+15550000000" }

type fakeCalendar struct {
	busy        []google.BusyInterval
	freeBusyErr error

	insertErrs  []error
	insertCalls int

	listEvents []google.Event
	listErr    error

	deleted []string
}

func (c *fakeCalendar) FreeBusy(_ context.Context, _, _ time.Time) ([]google.BusyInterval, error) {
	return c.busy, c.freeBusyErr
}

func (c *fakeCalendar) InsertEvent(_ context.Context, _ google.EventInput) (string, error) {
	c.insertCalls++
	if len(c.insertErrs) > 0 {
		err := c.insertErrs[0]
		c.insertErrs = c.insertErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("evt_%d", c.insertCalls), nil
}

func (c *fakeCalendar) ListEventsByIdempotencyKey(_ context.Context, _, _ time.Time, _ string) ([]google.Event, error) {
	return c.listEvents, c.listErr
}

func (c *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	c.deleted = append(c.deleted, eventID)
	return nil
}

type fakeCalendars struct {
	cal google.Calendar
	err error
}

func (f *fakeCalendars) ForBusiness(_ context.Context, _ string) (google.Calendar, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.cal, nil
}

var chicago, _ = time.LoadLocation("America/Chicago")

// fixedNow is a Saturday morning; the default request books Monday 09:00.
var fixedNow = time.Date(2026, 1, 10, 7, 0, 0, 0, chicago)

func seedBusiness(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&entity.Business{
		ID:       "biz1",
		Name:     "Comfort Air",
		Timezone: "America/Chicago",
		WorkingHours: entity.WorkingHours{
			"mon": {{Start: "08:00", End: "17:00"}},
			"tue": {{Start: "08:00", End: "17:00"}},
			"wed": {{Start: "08:00", End: "17:00"}},
			"thu": {{Start: "08:00", End: "17:00"}},
			"fri": {{Start: "08:00", End: "17:00"}},
		},
		DefaultDurationMin: 60,
		SlotGranularityMin: 15,
		LeadTimeMin:        60,
		MaxDaysAhead:       14,
		EmergencyPhone:     "+15550009999",
		AutoSMSEnabled:     true,
	}).Error)
}

type bookingFixture struct {
	db       *gorm.DB
	uc       *BookingUsecase
	provider *fakeProvider
	calendar *fakeCalendar
	cals     *fakeCalendars
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	db := openTestDB(t)
	seedBusiness(t, db)

	log := testLogger()
	provider := &fakeProvider{}
	calendar := &fakeCalendar{}
	cals := &fakeCalendars{cal: calendar}

	smsLogRepo := repository.NewSmsLogRepository()
	notifier := service.NewNotificationService(db, log, provider, smsLogRepo,
		repository.NewCallLogRepository(), repository.NewEmergencyLogRepository(), "")

	uc := NewBookingUsecase(
		db,
		log,
		config.BookingConfig{HoldMinutes: 5},
		repository.NewBusinessRepository(),
		repository.NewBookingRepository(),
		repository.NewRetryTaskRepository(),
		smsLogRepo,
		cals,
		notifier,
	).WithClock(func() time.Time { return fixedNow }).
		WithAsyncRunner(func(fn func()) { fn() })

	return &bookingFixture{db: db, uc: uc, provider: provider, calendar: calendar, cals: cals}
}

func baseInput() CreateBookingInput {
	return CreateBookingInput{
		BusinessID: "biz1",
		StartLocal: "2026-01-12T09:00:00",
		Timezone:   "America/Chicago",
		Service:    "repair",
		Customer: CustomerInput{
			Name:    "Jane Doe",
			Phone:   "+15550001111",
			Email:   "jane@example.com",
			Address: "12 Main St",
		},
		Notes:     "gate code 1234",
		RequestID: "req-1",
	}
}

func (f *bookingFixture) bookingRows(t *testing.T) []entity.Booking {
	t.Helper()
	var rows []entity.Booking
	require.NoError(t, f.db.Find(&rows).Error)
	return rows
}

func (f *bookingFixture) retryTasks(t *testing.T, kind entity.RetryKind) []entity.RetryTask {
	t.Helper()
	var rows []entity.RetryTask
	require.NoError(t, f.db.Where("kind = ?", kind).Find(&rows).Error)
	return rows
}
