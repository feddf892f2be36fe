package entity

import (
	"time"

	"github.com/google/uuid"
)

type CallStatus string

const (
	CallStatusStarted   CallStatus = "started"
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
)

// CallLog is append-only.
type CallLog struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID   string     `gorm:"type:varchar(64);not null;index" json:"business_id"`
	CallSID      string     `gorm:"type:varchar(64);index" json:"call_sid"`
	FromNumber   string     `gorm:"type:varchar(32)" json:"from_number"`
	ToNumber     string     `gorm:"type:varchar(32)" json:"to_number"`
	Direction    string     `gorm:"type:varchar(16)" json:"direction"`
	Status       CallStatus `gorm:"type:varchar(16);not null" json:"status"`
	DurationSec  int        `json:"duration_sec"`
	RecordingURL string     `gorm:"type:varchar(512)" json:"recording_url,omitempty"`
	Metadata     string     `gorm:"type:text" json:"metadata,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (CallLog) TableName() string {
	return "call_logs"
}

// NormalizeCallStatus folds provider call statuses into the three-valued model:
// completed stays completed, the failure family becomes failed, anything else started.
func NormalizeCallStatus(raw string) CallStatus {
	switch raw {
	case "completed":
		return CallStatusCompleted
	case "failed", "busy", "no-answer", "canceled":
		return CallStatusFailed
	default:
		return CallStatusStarted
	}
}
