package repository

import (
	"testing"
	"time"

	"hvac-booking-core/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTask(kind entity.RetryKind, due time.Time) *entity.RetryTask {
	return &entity.RetryTask{
		ID:               uuid.New(),
		BusinessID:       "biz1",
		Kind:             kind,
		Payload:          []byte(`{}`),
		MaxAttempts:      entity.DefaultMaxAttempts,
		NextAttemptAtUTC: due,
		Status:           entity.RetryStatusPending,
	}
}

func TestEnqueueAppliesDefaults(t *testing.T) {
	db := openTestDB(t)
	repo := NewRetryTaskRepository()

	task := &entity.RetryTask{
		BusinessID:       "biz1",
		Kind:             entity.RetryKindTwilioSms,
		Payload:          []byte(`{}`),
		NextAttemptAtUTC: testNow,
	}
	require.NoError(t, repo.Enqueue(db, task))

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, entity.DefaultMaxAttempts, task.MaxAttempts)
	assert.Equal(t, entity.RetryStatusPending, task.Status)
}

func TestFindDueOrderingAndFiltering(t *testing.T) {
	db := openTestDB(t)
	repo := NewRetryTaskRepository()

	late := newTestTask(entity.RetryKindTwilioSms, testNow.Add(-time.Minute))
	early := newTestTask(entity.RetryKindGcalDelete, testNow.Add(-time.Hour))
	future := newTestTask(entity.RetryKindTwilioSms, testNow.Add(time.Hour))
	done := newTestTask(entity.RetryKindTwilioSms, testNow.Add(-time.Hour))
	done.Status = entity.RetryStatusSucceeded

	for _, task := range []*entity.RetryTask{late, early, future, done} {
		require.NoError(t, repo.Enqueue(db, task))
	}

	due, err := repo.FindDue(db, testNow, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Equal(t, late.ID, due[1].ID)

	// Limit respected.
	due, err = repo.FindDue(db, testNow, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].ID)
}

func TestRetryTaskStateUpdates(t *testing.T) {
	db := openTestDB(t)
	repo := NewRetryTaskRepository()

	task := newTestTask(entity.RetryKindTwilioSms, testNow)
	require.NoError(t, repo.Enqueue(db, task))

	next := testNow.Add(30 * time.Second)
	require.NoError(t, repo.Reschedule(db, task.ID, 1, next, "provider unavailable"))

	reloaded, err := repo.FindByID(db, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RetryStatusPending, reloaded.Status)
	assert.Equal(t, 1, reloaded.AttemptCount)
	assert.Equal(t, "provider unavailable", reloaded.LastError)
	assert.WithinDuration(t, next, reloaded.NextAttemptAtUTC, time.Second)

	require.NoError(t, repo.MarkSucceeded(db, task.ID, 2))
	reloaded, err = repo.FindByID(db, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RetryStatusSucceeded, reloaded.Status)
	assert.Equal(t, 2, reloaded.AttemptCount)
	assert.Empty(t, reloaded.LastError)

	other := newTestTask(entity.RetryKindGcalCreate, testNow)
	require.NoError(t, repo.Enqueue(db, other))
	require.NoError(t, repo.MarkFailed(db, other.ID, 5, "exhausted"))
	reloaded, err = repo.FindByID(db, other.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RetryStatusFailed, reloaded.Status)
	assert.Equal(t, "exhausted", reloaded.LastError)
}
