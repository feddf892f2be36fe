package entity

import (
	"time"
)

// ServiceArea describes where a tenant accepts jobs, either by radius or zip list.
type ServiceArea struct {
	Mode      string   `json:"mode"` // "radius" or "zip"
	RadiusKm  float64  `json:"radius_km,omitempty"`
	CenterZip string   `json:"center_zip,omitempty"`
	Zips      []string `json:"zips,omitempty"`
}

// BusinessProfile holds operator edits layered over Business. Nil pointer fields
// mean "not set here, fall through to the business record".
type BusinessProfile struct {
	BusinessID       string        `gorm:"type:varchar(64);primaryKey" json:"business_id"`
	Timezone         *string       `gorm:"type:varchar(64)" json:"timezone,omitempty"`
	WorkingHours     *WorkingHours `gorm:"serializer:json" json:"working_hours,omitempty"`
	SlotDurationMin  *int          `json:"slot_duration_min,omitempty"`
	BufferMin        *int          `json:"buffer_min,omitempty"`
	EmergencyEnabled *bool         `json:"emergency_enabled,omitempty"`
	EmergencyPhone   *string       `gorm:"type:varchar(32)" json:"emergency_phone,omitempty"`
	ServiceArea      *ServiceArea  `gorm:"serializer:json" json:"service_area,omitempty"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BusinessProfile) TableName() string {
	return "business_profiles"
}

// EffectiveProfile is the merged tenant settings view: profile fields win over
// business fields when both exist.
type EffectiveProfile struct {
	BusinessID             string
	Timezone               string
	WorkingHours           WorkingHours
	DurationMin            int
	GranularityMin         int
	BufferBeforeMin        int
	BufferAfterMin         int
	LeadTimeMin            int
	MaxDaysAhead           int
	MaxDailyJobs           *int
	EmergencyEnabled       bool
	EmergencyPhone         string
	EmergencyCallPhone     string
	EmergencyRetries       int
	EmergencyRetryDelaySec int
	AutoSMSEnabled         bool
	ServiceArea            *ServiceArea
}

// Effective merges a business with its optional profile overlay.
func Effective(b *Business, p *BusinessProfile) EffectiveProfile {
	e := EffectiveProfile{
		BusinessID:             b.ID,
		Timezone:               b.Timezone,
		WorkingHours:           b.WorkingHours,
		DurationMin:            b.DefaultDurationMin,
		GranularityMin:         b.SlotGranularityMin,
		BufferBeforeMin:        b.BufferBeforeMin,
		BufferAfterMin:         b.BufferAfterMin,
		LeadTimeMin:            b.LeadTimeMin,
		MaxDaysAhead:           b.MaxDaysAhead,
		MaxDailyJobs:           b.MaxDailyJobs,
		EmergencyEnabled:       b.EmergencyEnabled,
		EmergencyPhone:         b.EmergencyPhone,
		EmergencyCallPhone:     b.EmergencyCallPhone,
		EmergencyRetries:       b.EmergencyRetries,
		EmergencyRetryDelaySec: b.EmergencyRetryDelaySec,
		AutoSMSEnabled:         b.AutoSMSEnabled,
	}
	if e.GranularityMin <= 0 {
		e.GranularityMin = 15
	}
	if p == nil {
		return e
	}
	if p.Timezone != nil && *p.Timezone != "" {
		e.Timezone = *p.Timezone
	}
	if p.WorkingHours != nil {
		e.WorkingHours = *p.WorkingHours
	}
	if p.SlotDurationMin != nil {
		e.DurationMin = *p.SlotDurationMin
	}
	if p.BufferMin != nil {
		e.BufferBeforeMin = *p.BufferMin
		e.BufferAfterMin = *p.BufferMin
	}
	if p.EmergencyEnabled != nil {
		e.EmergencyEnabled = *p.EmergencyEnabled
	}
	if p.EmergencyPhone != nil && *p.EmergencyPhone != "" {
		e.EmergencyPhone = *p.EmergencyPhone
	}
	if p.ServiceArea != nil {
		e.ServiceArea = p.ServiceArea
	}
	return e
}

// Location resolves the effective timezone, falling back to UTC on bad data.
func (e EffectiveProfile) Location() *time.Location {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
