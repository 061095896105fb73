package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storehook/webhook-svc/internal/models"
)

// CreateTask inserts a new notification task in pending state
func (s *Store) CreateTask(ctx context.Context, task *models.NotificationTask) error {
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create notification task: %w", err)
	}
	return nil
}

// ClaimPendingBatch atomically claims up to limit pending tasks, oldest
// first, flipping them to in_flight. SKIP LOCKED keeps two concurrent sweeps
// from claiming the same task, so each physical delivery is attempted by at
// most one invocation.
func (s *Store) ClaimPendingBatch(ctx context.Context, limit int) ([]models.NotificationTask, error) {
	var tasks []models.NotificationTask

	err := s.db.WithContext(ctx).Raw(`
		UPDATE notification_tasks
		SET status = ?, updated_at = now()
		WHERE id IN (
			SELECT id FROM notification_tasks
			WHERE status = ?
			ORDER BY created_at ASC
			LIMIT ?
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *
	`, models.StatusInFlight, models.StatusPending, limit).Scan(&tasks).Error

	if err != nil {
		return nil, fmt.Errorf("failed to claim pending tasks: %w", err)
	}

	return tasks, nil
}

// ClaimTask claims a single pending task by id with a conditional update.
// Returns nil if the task does not exist or is not claimable (already
// in_flight, completed, or failed).
func (s *Store) ClaimTask(ctx context.Context, id uuid.UUID) (*models.NotificationTask, error) {
	result := s.db.WithContext(ctx).
		Model(&models.NotificationTask{}).
		Where("id = ? AND status = ?", id, models.StatusPending).
		Updates(map[string]interface{}{
			"status":     models.StatusInFlight,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return nil, fmt.Errorf("failed to claim task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var task models.NotificationTask
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("failed to load claimed task: %w", err)
	}
	return &task, nil
}

// FinalizeTask releases a claimed task to its post-pass state. The in_flight
// guard keeps a stale invocation from overwriting a newer pass.
func (s *Store) FinalizeTask(ctx context.Context, id uuid.UUID, status string, attempts int, lastError *string) error {
	updates := map[string]interface{}{
		"status":          status,
		"attempts":        attempts,
		"last_attempt_at": time.Now(),
		"updated_at":      time.Now(),
	}
	if lastError != nil {
		updates["last_error"] = *lastError
	}

	err := s.db.WithContext(ctx).
		Model(&models.NotificationTask{}).
		Where("id = ? AND status = ?", id, models.StatusInFlight).
		Updates(updates).Error

	if err != nil {
		return fmt.Errorf("failed to finalize task: %w", err)
	}
	return nil
}
