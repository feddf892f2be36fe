package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type SmsKind string

const (
	SmsKindConfirmation    SmsKind = "confirmation"
	SmsKindAutoSms         SmsKind = "auto_sms"
	SmsKindEmergencyNotify SmsKind = "emergency_notify"
	SmsKindMissedCall      SmsKind = "missed_call"
	SmsKindUnavailable     SmsKind = "unavailable"
)

type SmsStatus string

const (
	SmsStatusQueued SmsStatus = "queued"
	SmsStatusSent   SmsStatus = "sent"
	SmsStatusFailed SmsStatus = "failed"
)

// SmsLog is append-only. DedupeKey is unique when present; duplicate sends for
// the same (business, request, kind) are skipped.
type SmsLog struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID        string     `gorm:"type:varchar(64);not null;index" json:"business_id"`
	BookingID         *uuid.UUID `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	ToNumber          string     `gorm:"type:varchar(32)" json:"to_number"`
	FromNumber        string     `gorm:"type:varchar(32)" json:"from_number"`
	Body              string     `gorm:"type:text" json:"body"`
	ProviderMessageID string     `gorm:"type:varchar(64)" json:"provider_message_id"`
	Kind              SmsKind    `gorm:"type:varchar(32);not null" json:"kind"`
	Status            SmsStatus  `gorm:"type:varchar(16);not null" json:"status"`
	ErrorMessage      string     `gorm:"type:varchar(512)" json:"error_message,omitempty"`
	DedupeKey         *string    `gorm:"type:varchar(160);uniqueIndex" json:"dedupe_key,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (SmsLog) TableName() string {
	return "sms_logs"
}

// SmsDedupeKey builds "{business}:{requestId}:{kind}" with an optional reason suffix.
func SmsDedupeKey(businessID, requestID string, kind SmsKind, reason string) string {
	key := fmt.Sprintf("%s:%s:%s", businessID, requestID, kind)
	if reason != "" {
		key += ":" + reason
	}
	return key
}
