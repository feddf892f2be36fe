package usecase

import (
	"context"
	"testing"

	"hvac-booking-core/internal/domain/entity"
	"hvac-booking-core/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileUsecase(t *testing.T) *ProfileUsecase {
	t.Helper()
	db := openTestDB(t)
	seedBusiness(t, db)
	return NewProfileUsecase(db, testLogger(), repository.NewBusinessRepository())
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestGetEffectiveProfile(t *testing.T) {
	uc := newProfileUsecase(t)

	eff, err := uc.GetEffectiveProfile(context.Background(), "biz1")
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", eff.Timezone)
	assert.Equal(t, 60, eff.DurationMin)

	_, err = uc.GetEffectiveProfile(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}

func TestUpdateProfileAppliesPatch(t *testing.T) {
	uc := newProfileUsecase(t)

	eff, err := uc.UpdateProfile(context.Background(), "biz1", ProfilePatch{
		Timezone:        strPtr("America/New_York"),
		SlotDurationMin: intPtr(90),
		BufferMin:       intPtr(15),
	})
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", eff.Timezone)
	assert.Equal(t, 90, eff.DurationMin)
	assert.Equal(t, 15, eff.BufferBeforeMin)

	// A later patch leaves earlier overrides in place.
	eff, err = uc.UpdateProfile(context.Background(), "biz1", ProfilePatch{
		EmergencyEnabled: boolPtr(true),
	})
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", eff.Timezone)
	assert.True(t, eff.EmergencyEnabled)
}

func TestUpdateProfileValidationDetails(t *testing.T) {
	uc := newProfileUsecase(t)

	_, err := uc.UpdateProfile(context.Background(), "biz1", ProfilePatch{
		Timezone:        strPtr("Not/AZone"),
		SlotDurationMin: intPtr(10),
		BufferMin:       intPtr(500),
		EmergencyPhone:  strPtr("12345"),
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid profile", verr.Message)
	require.Len(t, verr.Details, 4)

	fields := make(map[string]bool)
	for _, d := range verr.Details {
		fields[d["field"].(string)] = true
	}
	assert.True(t, fields["timezone"])
	assert.True(t, fields["slot_duration_min"])
	assert.True(t, fields["buffer_min"])
	assert.True(t, fields["emergency_phone"])
}

func TestUpdateProfileWorkingHoursValidation(t *testing.T) {
	uc := newProfileUsecase(t)

	bad := entity.WorkingHours{
		"funday": {{Start: "08:00", End: "17:00"}},
		"mon":    {{Start: "17:00", End: "08:00"}},
	}
	_, err := uc.UpdateProfile(context.Background(), "biz1", ProfilePatch{WorkingHours: &bad})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Details, 2)

	good := entity.WorkingHours{"sat": {{Start: "09:00", End: "13:00"}}}
	eff, err := uc.UpdateProfile(context.Background(), "biz1", ProfilePatch{WorkingHours: &good})
	require.NoError(t, err)
	assert.Contains(t, eff.WorkingHours, "sat")
}

func TestUpdateProfileServiceAreaValidation(t *testing.T) {
	uc := newProfileUsecase(t)

	var verr *ValidationError

	_, err := uc.UpdateProfile(context.Background(), "biz1", ProfilePatch{
		ServiceArea: &entity.ServiceArea{Mode: "radius"},
	})
	require.ErrorAs(t, err, &verr)

	_, err = uc.UpdateProfile(context.Background(), "biz1", ProfilePatch{
		ServiceArea: &entity.ServiceArea{Mode: "zip"},
	})
	require.ErrorAs(t, err, &verr)

	_, err = uc.UpdateProfile(context.Background(), "biz1", ProfilePatch{
		ServiceArea: &entity.ServiceArea{Mode: "teleport"},
	})
	require.ErrorAs(t, err, &verr)

	eff, err := uc.UpdateProfile(context.Background(), "biz1", ProfilePatch{
		ServiceArea: &entity.ServiceArea{Mode: "radius", RadiusKm: 30, CenterZip: "60601"},
	})
	require.NoError(t, err)
	require.NotNil(t, eff.ServiceArea)
	assert.Equal(t, 30.0, eff.ServiceArea.RadiusKm)
}

func TestUpdateProfileUnknownBusiness(t *testing.T) {
	uc := newProfileUsecase(t)

	_, err := uc.UpdateProfile(context.Background(), "nope", ProfilePatch{})
	assert.ErrorIs(t, err, ErrBusinessNotFound)
}
