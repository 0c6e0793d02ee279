package services

import (
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"quicktask/backend/internal/models"
)

// authorizeTaskOwner is the single ownership check shared by every task
// operation that addresses one task. Existence is decided before ownership,
// so callers never see ErrForbidden for a task that does not exist.
func authorizeTaskOwner(tx *gorm.DB, ownerID uuid.UUID, taskID string) (*models.Task, error) {
	id, err := uuid.FromString(taskID)
	if err != nil || id.IsNil() {
		return nil, ErrTaskNotFound
	}

	var task models.Task
	if err := tx.Where("id = ?", id).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("load task: %w", err)
	}

	if task.UserID != ownerID {
		return nil, ErrForbidden
	}
	return &task, nil
}
