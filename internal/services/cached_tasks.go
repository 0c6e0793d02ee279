package services

import (
	"context"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"quicktask/backend/internal/models"
)

// SummaryScheduler queues a background recomputation of an owner's
// dashboard summary.
type SummaryScheduler interface {
	ScheduleSummaryRefresh(ctx context.Context, ownerID uuid.UUID) error
}

// CachedTaskService keeps the cached dashboard summary coherent with task
// writes: every successful mutation drops the owner's summary and, when a
// scheduler is configured, queues a refresh.
type CachedTaskService struct {
	taskService TaskService
	dashboard   DashboardService
	scheduler   SummaryScheduler
	logger      zerolog.Logger
}

func NewCachedTaskService(taskService TaskService, dashboard DashboardService, scheduler SummaryScheduler, logger zerolog.Logger) *CachedTaskService {
	return &CachedTaskService{
		taskService: taskService,
		dashboard:   dashboard,
		scheduler:   scheduler,
		logger:      logger.With().Str("component", "tasks").Logger(),
	}
}

func (s *CachedTaskService) ListTasks(ctx context.Context, ownerID uuid.UUID, query models.TaskQuery) ([]models.Task, error) {
	return s.taskService.ListTasks(ctx, ownerID, query)
}

func (s *CachedTaskService) GetTask(ctx context.Context, ownerID uuid.UUID, taskID string) (*models.Task, error) {
	return s.taskService.GetTask(ctx, ownerID, taskID)
}

func (s *CachedTaskService) CreateTask(ctx context.Context, ownerID uuid.UUID, input models.TaskInput) (*models.Task, error) {
	task, err := s.taskService.CreateTask(ctx, ownerID, input)
	if err != nil {
		return nil, err
	}
	s.tasksChanged(ctx, ownerID)
	return task, nil
}

func (s *CachedTaskService) UpdateTask(ctx context.Context, ownerID uuid.UUID, taskID string, patch models.TaskPatch) (*models.Task, error) {
	task, err := s.taskService.UpdateTask(ctx, ownerID, taskID, patch)
	if err != nil {
		return nil, err
	}
	if !patch.IsEmpty() {
		s.tasksChanged(ctx, ownerID)
	}
	return task, nil
}

func (s *CachedTaskService) DeleteTask(ctx context.Context, ownerID uuid.UUID, taskID string) error {
	if err := s.taskService.DeleteTask(ctx, ownerID, taskID); err != nil {
		return err
	}
	s.tasksChanged(ctx, ownerID)
	return nil
}

// tasksChanged never fails the request; a stale summary expires on its own.
func (s *CachedTaskService) tasksChanged(ctx context.Context, ownerID uuid.UUID) {
	if s.dashboard != nil {
		if err := s.dashboard.Invalidate(ctx, ownerID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", ownerID.String()).Msg("failed to invalidate dashboard summary")
		}
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleSummaryRefresh(ctx, ownerID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", ownerID.String()).Msg("failed to schedule summary refresh")
		}
	}
}
