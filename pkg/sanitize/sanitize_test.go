package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMasksKnownKeys(t *testing.T) {
	in := map[string]interface{}{
		"phone":            "+15550001111",
		"email":            "jane@example.com",
		"customer_address": "12 Main St",
		"first_name":       "Jane",
		"notes":            "gate code 1234",
		"status":           "confirmed",
	}

	out, ok := Sanitize(in).(map[string]interface{})
	require.True(t, ok)

	assert.Equal(t, "**********11", out["phone"])
	assert.Equal(t, "j***@example.com", out["email"])
	assert.Equal(t, "[REDACTED_ADDRESS]", out["customer_address"])
	assert.Equal(t, "[REDACTED_NAME]", out["first_name"])
	assert.Equal(t, "[REDACTED_TEXT]", out["notes"])
	assert.Equal(t, "confirmed", out["status"])
}

func TestSanitizeTraversesNestedStructures(t *testing.T) {
	in := map[string]interface{}{
		"bookings": []interface{}{
			map[string]interface{}{
				"customer": map[string]interface{}{
					"name":  "Jane Doe",
					"phone": "+15550001111",
				},
				"description": "furnace out",
			},
		},
	}

	out := Sanitize(in).(map[string]interface{})
	bookings := out["bookings"].([]interface{})
	first := bookings[0].(map[string]interface{})
	customer := first["customer"].(map[string]interface{})

	assert.Equal(t, "[REDACTED_NAME]", customer["name"])
	assert.Equal(t, "**********11", customer["phone"])
	assert.Equal(t, "[REDACTED_TEXT]", first["description"])
}

func TestSanitizeLeavesScalarsAlone(t *testing.T) {
	assert.Equal(t, 42, Sanitize(42))
	assert.Equal(t, "plain", Sanitize("plain"))
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "**********11", MaskPhone("+15550001111"))
	assert.Equal(t, "**", MaskPhone("12"))
	assert.Equal(t, "", MaskPhone(""))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***@x.com", MaskEmail("jane@x.com"))
	assert.Equal(t, "[REDACTED_TEXT]", MaskEmail("not-an-email"))
}
