package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 30*time.Second, BackoffDelay(1))
	assert.Equal(t, 60*time.Second, BackoffDelay(2))
	assert.Equal(t, 120*time.Second, BackoffDelay(3))
	assert.Equal(t, 240*time.Second, BackoffDelay(4))
	assert.Equal(t, 480*time.Second, BackoffDelay(5))

	// Capped at 30 minutes.
	assert.Equal(t, 1800*time.Second, BackoffDelay(7))
	assert.Equal(t, 1800*time.Second, BackoffDelay(50))

	// Out-of-range input clamps to the first step.
	assert.Equal(t, 30*time.Second, BackoffDelay(0))
	assert.Equal(t, 30*time.Second, BackoffDelay(-3))
}
