package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"hvac-booking-core/internal/domain/entity"
	"hvac-booking-core/internal/infrastructure/google"

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

// fakeProvider records SMS/voice sends and fails on demand.
type fakeProvider struct {
	smsErr   error
	callErr  error
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
	if p.callErr != nil {
		return "", p.callErr
	}
	p.calls = append(p.calls, sentMessage{To: to, Body: twiml})
	p.sidCount++
	return fmt.Sprintf("CA%04d", p.sidCount), nil
}

func (p *fakeProvider) FromNumber() string { return "+15550000000" }

// fakeCalendar is a scripted google.Calendar.
type fakeCalendar struct {
	busy        []google.BusyInterval
	freeBusyErr error

	insertErrs  []error // consumed one per InsertEvent call
	insertCalls int
	insertedIDs []string

	listEvents []google.Event
	listErr    error

	deleted   []string
	deleteErr error
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
	id := fmt.Sprintf("evt_%d", c.insertCalls)
	c.insertedIDs = append(c.insertedIDs, id)
	return id, nil
}

func (c *fakeCalendar) ListEventsByIdempotencyKey(_ context.Context, _, _ time.Time, _ string) ([]google.Event, error) {
	return c.listEvents, c.listErr
}

func (c *fakeCalendar) DeleteEvent(_ context.Context, eventID string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, eventID)
	return nil
}

// fakeCalendars hands out one shared fake for every tenant.
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

var errProviderDown = errors.New("provider unavailable")
