package entity

import (
	"time"

	"github.com/google/uuid"
)

type RetryKind string

const (
	RetryKindTwilioSms  RetryKind = "twilio_sms"
	RetryKindTwilioCall RetryKind = "twilio_call"
	RetryKindGcalCreate RetryKind = "gcal_create"
	RetryKindGcalUpdate RetryKind = "gcal_update"
	RetryKindGcalDelete RetryKind = "gcal_delete"
)

type RetryStatus string

const (
	RetryStatusPending   RetryStatus = "pending"
	RetryStatusSucceeded RetryStatus = "succeeded"
	RetryStatusFailed    RetryStatus = "failed"
)

const (
	// DefaultMaxAttempts before a task becomes terminally failed.
	DefaultMaxAttempts = 5

	retryBackoffBaseSec = 30
	retryBackoffCapSec  = 1800
)

// RetryTask is a durable outbox row describing one deferred side-effect.
type RetryTask struct {
	ID               uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID       string      `gorm:"type:varchar(64);not null;index" json:"business_id"`
	BookingID        *uuid.UUID  `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	Kind             RetryKind   `gorm:"type:varchar(16);not null" json:"kind"`
	Payload          []byte      `gorm:"type:text" json:"-"`
	AttemptCount     int         `gorm:"not null;default:0" json:"attempt_count"`
	MaxAttempts      int         `gorm:"not null;default:5" json:"max_attempts"`
	NextAttemptAtUTC time.Time   `gorm:"not null;index" json:"next_attempt_at_utc"`
	LastError        string      `gorm:"type:varchar(512)" json:"last_error,omitempty"`
	Status           RetryStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	CreatedAt        time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RetryTask) TableName() string {
	return "retry_tasks"
}

// BackoffDelay returns the wait after attempt k (1-based): min(30·2^(k-1), 1800) seconds.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	sec := retryBackoffBaseSec << (attempt - 1)
	if sec > retryBackoffCapSec || sec <= 0 {
		sec = retryBackoffCapSec
	}
	return time.Duration(sec) * time.Second
}
