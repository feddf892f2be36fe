package entity

import (
	"time"

	"github.com/google/uuid"
)

type EscalationType string

const (
	EscalationSms  EscalationType = "sms"
	EscalationCall EscalationType = "call"
)

type EscalationStatus string

const (
	EscalationSent   EscalationStatus = "sent"
	EscalationFailed EscalationStatus = "failed"
)

// EmergencyLog is append-only: one row per escalation attempt.
type EmergencyLog struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID      string           `gorm:"type:varchar(64);not null;index" json:"business_id"`
	BookingID       *uuid.UUID       `gorm:"type:uuid;index" json:"booking_id,omitempty"`
	TechnicianPhone string           `gorm:"type:varchar(32)" json:"technician_phone"`
	EscalationType  EscalationType   `gorm:"type:varchar(8);not null" json:"escalation_type"`
	Status          EscalationStatus `gorm:"type:varchar(8);not null" json:"status"`
	ErrorMessage    string           `gorm:"type:varchar(512)" json:"error_message,omitempty"`
	CreatedAt       time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (EmergencyLog) TableName() string {
	return "emergency_logs"
}
