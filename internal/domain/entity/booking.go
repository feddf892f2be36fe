package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the lifecycle state of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusFailed    BookingStatus = "failed"
)

// allowedTransitions is the booking status machine. cancelled is terminal;
// failed admits one recovery edge: the retry worker confirms a failed booking
// when its deferred calendar insert eventually lands.
var allowedTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusFailed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCancelled},
	BookingStatusFailed:    {BookingStatusConfirmed},
}

// CanTransitionTo reports whether the status machine allows from → to.
func (s BookingStatus) CanTransitionTo(to BookingStatus) bool {
	for _, next := range allowedTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Booking is the central reservation row. A pending booking with a live
// hold_expires_at_utc reserves its slot against concurrent writers.
type Booking struct {
	ID               uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID       string        `gorm:"type:varchar(64);not null;index" json:"business_id"`
	StartUTC         time.Time     `gorm:"not null" json:"start_utc"`
	EndUTC           time.Time     `gorm:"not null" json:"end_utc"`
	OverlapStartUTC  time.Time     `gorm:"not null;index" json:"overlap_start_utc"`
	OverlapEndUTC    time.Time     `gorm:"not null" json:"overlap_end_utc"`
	Status           BookingStatus `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	HoldExpiresAtUTC *time.Time    `json:"hold_expires_at_utc,omitempty"`
	CustomerName     string        `gorm:"type:varchar(255)" json:"customer_name"`
	CustomerPhone    string        `gorm:"type:varchar(32)" json:"customer_phone"`
	CustomerEmail    string        `gorm:"type:varchar(255)" json:"customer_email"`
	CustomerAddress  string        `gorm:"type:varchar(512)" json:"customer_address"`
	ServiceType      string        `gorm:"type:varchar(64)" json:"service_type"`
	Notes            string        `gorm:"type:text" json:"notes"`
	IsEmergency      bool          `gorm:"not null;default:false" json:"is_emergency"`
	JobSummary       string        `gorm:"type:varchar(512)" json:"job_summary"`
	GcalEventID      *string       `gorm:"type:varchar(255)" json:"gcal_event_id,omitempty"`
	SlotKey          string        `gorm:"type:varchar(128);not null" json:"slot_key"`
	IdempotencyKey   string        `gorm:"type:varchar(64);not null" json:"idempotency_key"`
	FailureReason    string        `gorm:"type:varchar(128)" json:"failure_reason,omitempty"`
	CreatedAt        time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

// IsActiveAt reports whether the booking satisfies the active predicate:
// confirmed, or pending with a live hold.
func (b *Booking) IsActiveAt(now time.Time) bool {
	if b.Status == BookingStatusConfirmed {
		return true
	}
	return b.Status == BookingStatusPending && b.HoldExpiresAtUTC != nil && b.HoldExpiresAtUTC.After(now)
}

func (b *Booking) IsPending() bool {
	return b.Status == BookingStatusPending
}

func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// SlotKey is the natural identifier of a time slot: "{businessId}:{startUtc}".
func SlotKey(businessID string, startUTC time.Time) string {
	return fmt.Sprintf("%s:%s", businessID, startUTC.UTC().Format(time.RFC3339))
}

// IdempotencyKey is the first 128 bits of SHA-256 over
// "{businessId}|{startUtc}|{duration}|{normalizedPhoneDigits}", hex encoded.
func IdempotencyKey(businessID string, startUTC time.Time, durationMin int, phone string) string {
	material := fmt.Sprintf("%s|%s|%d|%s",
		businessID, startUTC.UTC().Format(time.RFC3339), durationMin, NormalizePhoneDigits(phone))
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:16])
}

// NormalizePhoneDigits strips everything but digits from a phone number.
func NormalizePhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
