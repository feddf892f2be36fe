package repository

import (
	"time"

	"hvac-booking-core/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RetryTaskRepository interface {
	Enqueue(db *gorm.DB, task *entity.RetryTask) error
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.RetryTask, error)
	// FindDue returns up to limit pending tasks with next_attempt_at_utc <= now,
	// ordered by next_attempt_at_utc then created_at.
	FindDue(db *gorm.DB, now time.Time, limit int) ([]entity.RetryTask, error)
	MarkSucceeded(db *gorm.DB, id uuid.UUID, attemptCount int) error
	MarkFailed(db *gorm.DB, id uuid.UUID, attemptCount int, lastError string) error
	Reschedule(db *gorm.DB, id uuid.UUID, attemptCount int, nextAttempt time.Time, lastError string) error
}
