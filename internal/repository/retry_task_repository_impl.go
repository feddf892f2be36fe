package repository

import (
	"errors"
	"time"

	"hvac-booking-core/internal/domain/entity"
	domainRepo "hvac-booking-core/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type retryTaskRepository struct{}

func NewRetryTaskRepository() domainRepo.RetryTaskRepository {
	return &retryTaskRepository{}
}

func (r *retryTaskRepository) Enqueue(db *gorm.DB, task *entity.RetryTask) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = entity.DefaultMaxAttempts
	}
	if task.Status == "" {
		task.Status = entity.RetryStatusPending
	}
	return db.Create(task).Error
}

func (r *retryTaskRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.RetryTask, error) {
	var task entity.RetryTask
	err := db.Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *retryTaskRepository) FindDue(db *gorm.DB, now time.Time, limit int) ([]entity.RetryTask, error) {
	var tasks []entity.RetryTask
	err := db.Where("status = ? AND next_attempt_at_utc <= ?", entity.RetryStatusPending, now).
		Order("next_attempt_at_utc ASC, created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *retryTaskRepository) MarkSucceeded(db *gorm.DB, id uuid.UUID, attemptCount int) error {
	return db.Model(&entity.RetryTask{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        entity.RetryStatusSucceeded,
		"attempt_count": attemptCount,
		"last_error":    "",
		"updated_at":    time.Now().UTC(),
	}).Error
}

func (r *retryTaskRepository) MarkFailed(db *gorm.DB, id uuid.UUID, attemptCount int, lastError string) error {
	return db.Model(&entity.RetryTask{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        entity.RetryStatusFailed,
		"attempt_count": attemptCount,
		"last_error":    lastError,
		"updated_at":    time.Now().UTC(),
	}).Error
}

func (r *retryTaskRepository) Reschedule(db *gorm.DB, id uuid.UUID, attemptCount int, nextAttempt time.Time, lastError string) error {
	return db.Model(&entity.RetryTask{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":              entity.RetryStatusPending,
		"attempt_count":       attemptCount,
		"next_attempt_at_utc": nextAttempt,
		"last_error":          lastError,
		"updated_at":          time.Now().UTC(),
	}).Error
}
