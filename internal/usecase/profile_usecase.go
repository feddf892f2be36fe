package usecase

import (
	"context"
	"fmt"
	"time"

	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var weekdayKeys = map[string]bool{
	"sun": true, "mon": true, "tue": true, "wed": true,
	"thu": true, "fri": true, "sat": true,
}

// ProfilePatch is a partial operator edit; nil fields are left untouched.
type ProfilePatch struct {
	Timezone         *string
	WorkingHours     *entity.WorkingHours
	SlotDurationMin  *int
	BufferMin        *int
	EmergencyEnabled *bool
	EmergencyPhone   *string
	ServiceArea      *entity.ServiceArea
}

// ProfileUsecase reads and patches the per-tenant profile overlay.
type ProfileUsecase struct {
	db           *gorm.DB
	log          *logrus.Logger
	businessRepo domainRepo.BusinessRepository
}

func NewProfileUsecase(db *gorm.DB, log *logrus.Logger, businessRepo domainRepo.BusinessRepository) *ProfileUsecase {
	return &ProfileUsecase{db: db, log: log, businessRepo: businessRepo}
}

// GetEffectiveProfile returns the merged business + profile view.
func (u *ProfileUsecase) GetEffectiveProfile(ctx context.Context, businessID string) (*entity.EffectiveProfile, error) {
	business, err := u.businessRepo.FindByID(u.db.WithContext(ctx), businessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, ErrBusinessNotFound
	}
	profile, err := u.businessRepo.FindProfile(u.db.WithContext(ctx), businessID)
	if err != nil {
		return nil, err
	}
	eff := entity.Effective(business, profile)
	return &eff, nil
}

// UpdateProfile validates and applies a partial patch, then returns the new
// effective profile. Validation failures carry per-field details.
func (u *ProfileUsecase) UpdateProfile(ctx context.Context, businessID string, patch ProfilePatch) (*entity.EffectiveProfile, error) {
	business, err := u.businessRepo.FindByID(u.db.WithContext(ctx), businessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, ErrBusinessNotFound
	}

	if verr := validatePatch(patch); verr != nil {
		return nil, verr
	}

	profile, err := u.businessRepo.FindProfile(u.db.WithContext(ctx), businessID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		profile = &entity.BusinessProfile{BusinessID: businessID}
	}

	if patch.Timezone != nil {
		profile.Timezone = patch.Timezone
	}
	if patch.WorkingHours != nil {
		profile.WorkingHours = patch.WorkingHours
	}
	if patch.SlotDurationMin != nil {
		profile.SlotDurationMin = patch.SlotDurationMin
	}
	if patch.BufferMin != nil {
		profile.BufferMin = patch.BufferMin
	}
	if patch.EmergencyEnabled != nil {
		profile.EmergencyEnabled = patch.EmergencyEnabled
	}
	if patch.EmergencyPhone != nil {
		profile.EmergencyPhone = patch.EmergencyPhone
	}
	if patch.ServiceArea != nil {
		profile.ServiceArea = patch.ServiceArea
	}

	if err := u.businessRepo.UpsertProfile(u.db, profile); err != nil {
		return nil, err
	}

	eff := entity.Effective(business, profile)
	return &eff, nil
}

func validatePatch(patch ProfilePatch) *ValidationError {
	var details []map[string]interface{}
	addDetail := func(field, msg string) {
		details = append(details, map[string]interface{}{"field": field, "message": msg})
	}

	if patch.Timezone != nil && *patch.Timezone != "" {
		if _, err := time.LoadLocation(*patch.Timezone); err != nil {
			addDetail("timezone", "unknown timezone")
		}
	}
	if patch.SlotDurationMin != nil && (*patch.SlotDurationMin < 15 || *patch.SlotDurationMin > 240) {
		addDetail("slot_duration_min", "must be between 15 and 240")
	}
	if patch.BufferMin != nil && (*patch.BufferMin < 0 || *patch.BufferMin > 120) {
		addDetail("buffer_min", "must be between 0 and 120")
	}
	if patch.EmergencyPhone != nil && *patch.EmergencyPhone != "" {
		if len(entity.NormalizePhoneDigits(*patch.EmergencyPhone)) < 7 {
			addDetail("emergency_phone", "must contain at least 7 digits")
		}
	}
	if patch.WorkingHours != nil {
		for day, windows := range *patch.WorkingHours {
			if !weekdayKeys[day] {
				addDetail("working_hours", fmt.Sprintf("unknown weekday key %q", day))
				continue
			}
			for _, w := range windows {
				if !validClockWindow(w.Start, w.End) {
					addDetail("working_hours", fmt.Sprintf("invalid window %s-%s on %s", w.Start, w.End, day))
				}
			}
		}
	}
	if patch.ServiceArea != nil {
		switch patch.ServiceArea.Mode {
		case "radius":
			if patch.ServiceArea.RadiusKm <= 0 {
				addDetail("service_area", "radius mode requires a positive radius_km")
			}
		case "zip":
			if len(patch.ServiceArea.Zips) == 0 {
				addDetail("service_area", "zip mode requires a non-empty zips list")
			}
		default:
			addDetail("service_area", `mode must be "radius" or "zip"`)
		}
	}

	if len(details) > 0 {
		return &ValidationError{Message: "Invalid profile", Details: details}
	}
	return nil
}

func validClockWindow(start, end string) bool {
	sm, ok1 := clockMinutes(start)
	em, ok2 := clockMinutes(end)
	return ok1 && ok2 && sm < em
}

func clockMinutes(s string) (int, bool) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, false
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
