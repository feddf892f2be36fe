package entity

import (
	"time"
)

// WorkingWindow is one local-time window within a weekday, "HH:MM" bounds with start < end.
type WorkingWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WorkingHours maps weekday keys ("sun".."sat") to ordered local windows.
type WorkingHours map[string][]WorkingWindow

// WeekdayKey returns the working-hours map key for a weekday.
func WeekdayKey(d time.Weekday) string {
	return [...]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}[d]
}

// Business is the tenant record. Operator-editable overrides live in BusinessProfile;
// use EffectiveProfile to read merged settings.
type Business struct {
	ID                     string       `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name                   string       `gorm:"type:varchar(255);not null" json:"name"`
	Timezone               string       `gorm:"type:varchar(64);not null" json:"timezone"`
	WorkingHours           WorkingHours `gorm:"serializer:json" json:"working_hours"`
	DefaultDurationMin     int          `gorm:"not null;default:60" json:"default_duration_min"`
	SlotGranularityMin     int          `gorm:"not null;default:15" json:"slot_granularity_min"`
	BufferBeforeMin        int          `gorm:"not null;default:0" json:"buffer_before_min"`
	BufferAfterMin         int          `gorm:"not null;default:0" json:"buffer_after_min"`
	LeadTimeMin            int          `gorm:"not null;default:60" json:"lead_time_min"`
	MaxDaysAhead           int          `gorm:"not null;default:14" json:"max_days_ahead"`
	MaxDailyJobs           *int         `json:"max_daily_jobs,omitempty"`
	EmergencyEnabled       bool         `gorm:"not null;default:false" json:"emergency_enabled"`
	EmergencyPhone         string       `gorm:"type:varchar(32)" json:"emergency_phone"`
	EmergencyCallPhone     string       `gorm:"type:varchar(32)" json:"emergency_call_phone"`
	EmergencyRetries       int          `gorm:"not null;default:2" json:"emergency_retries"`
	EmergencyRetryDelaySec int          `gorm:"not null;default:60" json:"emergency_retry_delay_sec"`
	AutoSMSEnabled         bool         `gorm:"not null;default:true" json:"auto_sms_enabled"`
	CreatedAt              time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Business) TableName() string {
	return "businesses"
}

// Location resolves the tenant timezone, falling back to UTC on bad data.
func (b *Business) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
