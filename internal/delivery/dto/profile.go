package dto

import (
	"hvac-booking-core/internal/domain/entity"
	"hvac-booking-core/internal/usecase"
)

// UpdateProfileRequest is the PUT profile body: every field optional, absent
// fields untouched. emergency_enabled additionally accepts 0/1.
type UpdateProfileRequest struct {
	Timezone         *string              `json:"timezone"`
	WorkingHours     *entity.WorkingHours `json:"working_hours"`
	SlotDurationMin  *int                 `json:"slot_duration_min" validate:"omitempty,gte=15,lte=240"`
	BufferMin        *int                 `json:"buffer_min" validate:"omitempty,gte=0,lte=120"`
	EmergencyEnabled FlexBool             `json:"emergency_enabled"`
	EmergencyPhone   *string              `json:"emergency_phone"`
	ServiceArea      *entity.ServiceArea  `json:"service_area"`
}

func (r *UpdateProfileRequest) ToPatch() usecase.ProfilePatch {
	patch := usecase.ProfilePatch{
		Timezone:        r.Timezone,
		WorkingHours:    r.WorkingHours,
		SlotDurationMin: r.SlotDurationMin,
		BufferMin:       r.BufferMin,
		EmergencyPhone:  r.EmergencyPhone,
		ServiceArea:     r.ServiceArea,
	}
	if r.EmergencyEnabled.Set {
		v := r.EmergencyEnabled.Value
		patch.EmergencyEnabled = &v
	}
	return patch
}

// EffectiveProfileResponse is the GET/PUT profile success body.
type EffectiveProfileResponse struct {
	Ok               bool                `json:"ok"`
	BusinessID       string              `json:"businessId"`
	Timezone         string              `json:"timezone"`
	WorkingHours     entity.WorkingHours `json:"working_hours"`
	SlotDurationMin  int                 `json:"slot_duration_min"`
	GranularityMin   int                 `json:"granularity_min"`
	BufferBeforeMin  int                 `json:"buffer_before_min"`
	BufferAfterMin   int                 `json:"buffer_after_min"`
	LeadTimeMin      int                 `json:"lead_time_min"`
	MaxDaysAhead     int                 `json:"max_days_ahead"`
	EmergencyEnabled bool                `json:"emergency_enabled"`
	EmergencyPhone   string              `json:"emergency_phone,omitempty"`
	ServiceArea      *entity.ServiceArea `json:"service_area,omitempty"`
	AutoSMSEnabled   bool                `json:"auto_sms_enabled"`
}

func FromEffectiveProfile(eff *entity.EffectiveProfile) EffectiveProfileResponse {
	return EffectiveProfileResponse{
		Ok:               true,
		BusinessID:       eff.BusinessID,
		Timezone:         eff.Timezone,
		WorkingHours:     eff.WorkingHours,
		SlotDurationMin:  eff.DurationMin,
		GranularityMin:   eff.GranularityMin,
		BufferBeforeMin:  eff.BufferBeforeMin,
		BufferAfterMin:   eff.BufferAfterMin,
		LeadTimeMin:      eff.LeadTimeMin,
		MaxDaysAhead:     eff.MaxDaysAhead,
		EmergencyEnabled: eff.EmergencyEnabled,
		EmergencyPhone:   eff.EmergencyPhone,
		ServiceArea:      eff.ServiceArea,
		AutoSMSEnabled:   eff.AutoSMSEnabled,
	}
}
