package service

import (
	"hvac-booking-core/internal/domain/entity"
)

// VoiceAction classifies what follow-up an inbound call should trigger.
type VoiceAction string

const (
	VoiceNoSms       VoiceAction = "NO_SMS"
	VoiceMissedCall  VoiceAction = "MISSED_CALL"
	VoiceUnavailable VoiceAction = "UNAVAILABLE"
	VoiceBoth        VoiceAction = "BOTH"
)

// VoiceContext is the inbound-call state fed to the reducer.
type VoiceContext struct {
	BusinessID     string
	CallStatus     string // raw provider status
	AutoSMSEnabled bool
	ShuttingDown   bool
	Ready          bool
	AfterHours     bool
}

// VoiceDecision is the reducer output: the action plus the reason that won.
type VoiceDecision struct {
	Action VoiceAction
	Reason string
}

// DecideVoiceCall reduces an inbound-call context to a follow-up action.
// Missed-call SMS fires iff the normalized status is failed and a tenant is
// known. Unavailable SMS fires iff a tenant is known, auto-SMS is enabled,
// and the system is shutting down, not ready, or after hours, in that
// priority order. Both conditions together yield BOTH.
func DecideVoiceCall(ctx VoiceContext) VoiceDecision {
	missed := entity.NormalizeCallStatus(ctx.CallStatus) == entity.CallStatusFailed && ctx.BusinessID != ""

	unavailableReason := ""
	if ctx.BusinessID != "" && ctx.AutoSMSEnabled {
		switch {
		case ctx.ShuttingDown:
			unavailableReason = "shutting_down"
		case !ctx.Ready:
			unavailableReason = "not_ready"
		case ctx.AfterHours:
			unavailableReason = "after_hours"
		}
	}

	switch {
	case missed && unavailableReason != "":
		return VoiceDecision{Action: VoiceBoth, Reason: unavailableReason}
	case missed:
		return VoiceDecision{Action: VoiceMissedCall, Reason: "missed_call"}
	case unavailableReason != "":
		return VoiceDecision{Action: VoiceUnavailable, Reason: unavailableReason}
	default:
		return VoiceDecision{Action: VoiceNoSms, Reason: ""}
	}
}
