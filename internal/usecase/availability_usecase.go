package usecase

import (
	"context"
	"errors"
	"time"

	"hvac-booking-core/internal/availability"
	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/internal/infrastructure/google"
	"hvac-booking-core/internal/service"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultAvailabilityDays = 7

// AvailabilityQuery is the normalized slot request. Zero Days/DurationMin fall
// back to tenant defaults; empty From means "today".
type AvailabilityQuery struct {
	BusinessID  string
	From        string
	Days        int
	DurationMin int
}

// AvailabilityResult mirrors the available-slots response shape.
type AvailabilityResult struct {
	BusinessID  string
	Timezone    string
	FromLocal   string
	Days        int
	DurationMin int
	Slots       []availability.Slot
}

// AvailabilityUsecase enumerates bookable slots from the ledger's confirmed
// bookings merged with external-calendar busy intervals.
type AvailabilityUsecase struct {
	db           *gorm.DB
	log          *logrus.Logger
	businessRepo domainRepo.BusinessRepository
	bookingRepo  domainRepo.BookingRepository
	calendars    service.CalendarProvider
	now          func() time.Time
}

func NewAvailabilityUsecase(
	db *gorm.DB,
	log *logrus.Logger,
	businessRepo domainRepo.BusinessRepository,
	bookingRepo domainRepo.BookingRepository,
	calendars service.CalendarProvider,
) *AvailabilityUsecase {
	return &AvailabilityUsecase{
		db:           db,
		log:          log,
		businessRepo: businessRepo,
		bookingRepo:  bookingRepo,
		calendars:    calendars,
		now:          time.Now,
	}
}

// WithClock overrides the time source. Test hook.
func (u *AvailabilityUsecase) WithClock(now func() time.Time) *AvailabilityUsecase {
	u.now = now
	return u
}

// AvailableSlots resolves the effective profile, collects busy intervals from
// the confirmed ledger plus calendar freebusy, normalizes them, and runs the
// slot generator. A missing or failing calendar connection degrades to
// ledger-only availability rather than an error.
func (u *AvailabilityUsecase) AvailableSlots(ctx context.Context, q AvailabilityQuery) (*AvailabilityResult, error) {
	if q.BusinessID == "" {
		return nil, validationErrorf("Missing business_id")
	}

	business, err := u.businessRepo.FindByID(u.db.WithContext(ctx), q.BusinessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, ErrBusinessNotFound
	}
	profile, err := u.businessRepo.FindProfile(u.db.WithContext(ctx), q.BusinessID)
	if err != nil {
		return nil, err
	}
	eff := entity.Effective(business, profile)
	loc := eff.Location()
	now := u.now()

	fromLocal := now.In(loc)
	if q.From != "" {
		parsed, err := parseFromDate(q.From, loc)
		if err != nil {
			return nil, validationErrorf("Invalid from date")
		}
		fromLocal = parsed
	}

	days := q.Days
	if days <= 0 {
		days = defaultAvailabilityDays
	}
	if eff.MaxDaysAhead > 0 && days > eff.MaxDaysAhead {
		days = eff.MaxDaysAhead
	}

	duration := q.DurationMin
	if duration <= 0 {
		duration = eff.DurationMin
	}
	if duration <= 0 || duration > 480 {
		return nil, validationErrorf("Invalid duration_min")
	}

	dayStart := time.Date(fromLocal.Year(), fromLocal.Month(), fromLocal.Day(), 0, 0, 0, 0, loc)
	windowStartUTC := dayStart.UTC()
	windowEndUTC := dayStart.AddDate(0, 0, days).UTC()

	busy, err := u.collectBusy(ctx, q.BusinessID, windowStartUTC, windowEndUTC)
	if err != nil {
		return nil, err
	}

	slots := availability.Slots(availability.Params{
		Location:       loc,
		WorkingHours:   eff.WorkingHours,
		GranularityMin: eff.GranularityMin,
		DurationMin:    duration,
		LeadTimeMin:    eff.LeadTimeMin,
		Now:            now,
		WindowStart:    dayStart,
		Days:           days,
		Busy: availability.NormalizeBusy(busy,
			time.Duration(eff.BufferBeforeMin)*time.Minute,
			time.Duration(eff.BufferAfterMin)*time.Minute),
	})

	return &AvailabilityResult{
		BusinessID:  q.BusinessID,
		Timezone:    eff.Timezone,
		FromLocal:   dayStart.Format("2006-01-02"),
		Days:        days,
		DurationMin: duration,
		Slots:       slots,
	}, nil
}

func (u *AvailabilityUsecase) collectBusy(ctx context.Context, businessID string, fromUTC, toUTC time.Time) ([]availability.Interval, error) {
	confirmed, err := u.bookingRepo.FindConfirmedInWindow(u.db.WithContext(ctx), businessID, fromUTC, toUTC)
	if err != nil {
		return nil, err
	}
	busy := make([]availability.Interval, 0, len(confirmed))
	for _, b := range confirmed {
		busy = append(busy, availability.Interval{Start: b.StartUTC, End: b.EndUTC})
	}

	cal, err := u.calendars.ForBusiness(ctx, businessID)
	if err != nil {
		if errors.Is(err, google.ErrNoTokens) || errors.Is(err, google.ErrNotConfigured) {
			return busy, nil
		}
		return nil, err
	}
	intervals, err := cal.FreeBusy(ctx, fromUTC, toUTC)
	if err != nil {
		// Availability degrades to the ledger view; booking still revalidates
		// against freebusy on its own path.
		u.log.WithField("business_id", businessID).Warnf("Freebusy unavailable, using ledger only: %v", err)
		return busy, nil
	}
	for _, iv := range intervals {
		busy = append(busy, availability.Interval{Start: iv.Start, End: iv.End})
	}
	return busy, nil
}

func parseFromDate(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unparseable date")
}
