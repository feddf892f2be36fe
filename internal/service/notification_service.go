package service

import (
	"context"
	"fmt"
	"time"

	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"
	"hvac-booking-core/internal/infrastructure/twilio"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const notifyTimeout = 10 * time.Second

// SendResult reports one notification attempt. Skipped sends are not errors:
// a missing phone or a non-confirmed booking simply produces no SMS.
type SendResult struct {
	Ok      bool
	Skipped bool
	SID     string
	Err     error
}

// NotificationService formats and sends SMS/voice notifications and applies
// the emergency escalation policy. All sends are logged; emergency attempts
// additionally land in the emergency log.
type NotificationService struct {
	db               *gorm.DB
	log              *logrus.Logger
	provider         twilio.Provider
	smsLogRepo       domainRepo.SmsLogRepository
	callLogRepo      domainRepo.CallLogRepository
	emergencyLogRepo domainRepo.EmergencyLogRepository
	fallbackPhone    string // technician phone when the tenant has none configured
}

func NewNotificationService(
	db *gorm.DB,
	log *logrus.Logger,
	provider twilio.Provider,
	smsLogRepo domainRepo.SmsLogRepository,
	callLogRepo domainRepo.CallLogRepository,
	emergencyLogRepo domainRepo.EmergencyLogRepository,
	fallbackPhone string,
) *NotificationService {
	return &NotificationService{
		db:               db,
		log:              log,
		provider:         provider,
		smsLogRepo:       smsLogRepo,
		callLogRepo:      callLogRepo,
		emergencyLogRepo: emergencyLogRepo,
		fallbackPhone:    fallbackPhone,
	}
}

// FallbackPhone is the technician phone used when the tenant has none configured.
func (s *NotificationService) FallbackPhone() string {
	return s.fallbackPhone
}

// SendBookingConfirmation sends the post-confirmation SMS. Callers own the
// SmsLog bookkeeping around it (queued row before, terminal row after).
func (s *NotificationService) SendBookingConfirmation(ctx context.Context, booking *entity.Booking, loc *time.Location) SendResult {
	if !booking.IsConfirmed() || booking.CustomerPhone == "" {
		return SendResult{Skipped: true}
	}

	localized := booking.StartUTC.In(loc).Format("Monday, Jan 2 at 3:04 PM")
	body := fmt.Sprintf("Hi %s, your HVAC appointment is confirmed for %s. Confirmation ID: %s",
		booking.CustomerName, localized, booking.ID)

	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	sid, err := s.provider.SendSMS(sendCtx, booking.CustomerPhone, body)
	if err != nil {
		return SendResult{Err: err}
	}
	return SendResult{Ok: true, SID: sid}
}

// ConfirmationBody is the exact SMS text for a booking, exposed so the retry
// payload carries the same message the inline attempt used.
func (s *NotificationService) ConfirmationBody(booking *entity.Booking, loc *time.Location) string {
	localized := booking.StartUTC.In(loc).Format("Monday, Jan 2 at 3:04 PM")
	return fmt.Sprintf("Hi %s, your HVAC appointment is confirmed for %s. Confirmation ID: %s",
		booking.CustomerName, localized, booking.ID)
}

// HandleEmergency escalates a booking to the technician: emergency SMS, and a
// voice call when the tenant enables auto-call. Every attempt is logged.
// Failure here never affects the booking.
func (s *NotificationService) HandleEmergency(ctx context.Context, booking *entity.Booking, eff entity.EffectiveProfile) bool {
	phone := eff.EmergencyPhone
	if phone == "" {
		phone = s.fallbackPhone
	}
	if phone == "" {
		s.log.WithField("business_id", booking.BusinessID).Warn("Emergency escalation skipped: no technician phone")
		return false
	}

	body := fmt.Sprintf("EMERGENCY: %s at %s, phone %s. %s",
		booking.ServiceType, booking.CustomerAddress, booking.CustomerPhone, booking.JobSummary)

	escalated := false

	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	_, err := s.provider.SendSMS(sendCtx, phone, body)
	s.logEscalation(booking, phone, entity.EscalationSms, err)
	if err == nil {
		escalated = true
	}

	if eff.EmergencyCallPhone != "" {
		twiml := fmt.Sprintf("<Response><Say>Emergency HVAC call. %s. Check your messages for details.</Say></Response>", booking.ServiceType)
		sid, callErr := s.provider.MakeCall(sendCtx, eff.EmergencyCallPhone, twiml)
		s.logEscalation(booking, eff.EmergencyCallPhone, entity.EscalationCall, callErr)
		s.logOutboundCall(booking.BusinessID, eff.EmergencyCallPhone, sid, callErr)
		if callErr == nil {
			escalated = true
		}
	}

	return escalated
}

// SendAutoSMS sends an automated SMS to a caller, deduped on
// "{business}:{requestId}:{kind}[:{reason}]". Duplicate sends are skipped.
func (s *NotificationService) SendAutoSMS(ctx context.Context, businessID, requestID, to, body string, kind entity.SmsKind, reason string) SendResult {
	dedupeKey := entity.SmsDedupeKey(businessID, requestID, kind, reason)

	exists, err := s.smsLogRepo.ExistsByDedupeKey(s.db.WithContext(ctx), dedupeKey)
	if err != nil {
		return SendResult{Err: err}
	}
	if exists {
		return SendResult{Skipped: true}
	}

	sendCtx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	sid, sendErr := s.provider.SendSMS(sendCtx, to, body)

	logRow := &entity.SmsLog{
		BusinessID: businessID,
		ToNumber:   to,
		FromNumber: s.provider.FromNumber(),
		Body:       body,
		Kind:       kind,
		Status:     entity.SmsStatusSent,
		DedupeKey:  &dedupeKey,
	}
	if sendErr != nil {
		logRow.Status = entity.SmsStatusFailed
		logRow.ErrorMessage = sendErr.Error()
	} else {
		logRow.ProviderMessageID = sid
	}
	if err := s.smsLogRepo.Create(s.db, logRow); err != nil {
		s.log.Warnf("Failed to write sms log (business=%s, kind=%s): %v", businessID, kind, err)
	}

	if sendErr != nil {
		return SendResult{Err: sendErr}
	}
	return SendResult{Ok: true, SID: sid}
}

func (s *NotificationService) logOutboundCall(businessID, to, sid string, callErr error) {
	row := &entity.CallLog{
		BusinessID: businessID,
		CallSID:    sid,
		FromNumber: s.provider.FromNumber(),
		ToNumber:   to,
		Direction:  "outbound",
		Status:     entity.CallStatusStarted,
	}
	if callErr != nil {
		row.Status = entity.CallStatusFailed
	}
	if err := s.callLogRepo.Create(s.db, row); err != nil {
		s.log.Warnf("Failed to write call log (business=%s): %v", businessID, err)
	}
}

func (s *NotificationService) logEscalation(booking *entity.Booking, phone string, escType entity.EscalationType, sendErr error) {
	row := &entity.EmergencyLog{
		BusinessID:      booking.BusinessID,
		BookingID:       &booking.ID,
		TechnicianPhone: phone,
		EscalationType:  escType,
		Status:          entity.EscalationSent,
	}
	if sendErr != nil {
		row.Status = entity.EscalationFailed
		row.ErrorMessage = sendErr.Error()
	}
	if err := s.emergencyLogRepo.Create(s.db, row); err != nil {
		s.log.Warnf("Failed to write emergency log (booking=%s): %v", booking.ID, err)
	}
}
