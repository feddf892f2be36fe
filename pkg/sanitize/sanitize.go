// Package sanitize masks PII in debug payloads before they are logged or
// exposed on debug endpoints.
package sanitize

import (
	"strings"
)

const (
	redactedAddress = "[REDACTED_ADDRESS]"
	redactedName    = "[REDACTED_NAME]"
	redactedText    = "[REDACTED_TEXT]"
)

// Sanitize walks maps and slices recursively, masking values whose keys look
// like PII. Scalars and unknown keys pass through unchanged.
func Sanitize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			if masked, ok := maskByKey(k, item); ok {
				out[k] = masked
			} else {
				out[k] = Sanitize(item)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = Sanitize(item)
		}
		return out
	default:
		return v
	}
}

func maskByKey(key string, value interface{}) (interface{}, bool) {
	s, isString := value.(string)
	lower := strings.ToLower(key)

	switch {
	case strings.Contains(lower, "phone"):
		if !isString {
			return value, false
		}
		return MaskPhone(s), true
	case strings.Contains(lower, "email"):
		if !isString {
			return value, false
		}
		return MaskEmail(s), true
	case strings.Contains(lower, "address"):
		return redactedAddress, true
	case lower == "name" || strings.HasSuffix(lower, "_name"):
		return redactedName, true
	case lower == "notes" || lower == "description" || lower == "transcript":
		return redactedText, true
	default:
		return value, false
	}
}

// MaskPhone keeps the last two digits: "+15550001111" → "*********11".
func MaskPhone(phone string) string {
	if len(phone) <= 2 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-2) + phone[len(phone)-2:]
}

// MaskEmail keeps the first character and the domain: "jane@x.com" → "j***@x.com".
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return redactedText
	}
	return email[:1] + "***" + email[at:]
}
