package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"quicktask/backend/internal/analytics"
	"quicktask/backend/internal/cache"
	"quicktask/backend/internal/models"
)

const summaryCacheTTL = 5 * time.Minute

type ProductivitySource interface {
	Productivity(ctx context.Context, userID string, days int) (*analytics.Productivity, error)
}

type Dashboard struct {
	Summary            models.TaskSummary      `json:"summary"`
	Productivity       *analytics.Productivity `json:"productivity"`
	AnalyticsAvailable bool                    `json:"analyticsAvailable"`
}

type DashboardService interface {
	Summary(ctx context.Context, ownerID uuid.UUID) (*models.TaskSummary, error)
	Dashboard(ctx context.Context, ownerID uuid.UUID) (*Dashboard, error)
	Invalidate(ctx context.Context, ownerID uuid.UUID) error
	RefreshSummary(ctx context.Context, ownerID uuid.UUID) (*models.TaskSummary, error)
}

type DashboardServiceImpl struct {
	db               *gorm.DB
	cache            cache.Cache
	productivity     ProductivitySource
	productivityDays int
	logger           zerolog.Logger

	// generations counts invalidations per owner so a summary computed
	// before a task write is never cached after that write.
	mu          sync.Mutex
	generations map[uuid.UUID]uint64
}

// NewDashboardService accepts a nil cache and a nil productivity source;
// either one simply turns its feature off.
func NewDashboardService(db *gorm.DB, c cache.Cache, productivity ProductivitySource, productivityDays int, logger zerolog.Logger) *DashboardServiceImpl {
	if productivityDays <= 0 {
		productivityDays = 14
	}
	return &DashboardServiceImpl{
		db:               db,
		cache:            c,
		productivity:     productivity,
		productivityDays: productivityDays,
		logger:           logger.With().Str("component", "dashboard").Logger(),
		generations:      make(map[uuid.UUID]uint64),
	}
}

func SummaryCacheKey(ownerID uuid.UUID) string {
	return "dashboard:summary:" + ownerID.String()
}

func (s *DashboardServiceImpl) Summary(ctx context.Context, ownerID uuid.UUID) (*models.TaskSummary, error) {
	if s.cache != nil {
		var cached models.TaskSummary
		err := s.cache.Get(ctx, SummaryCacheKey(ownerID), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("summary cache read failed")
		}
	}

	return s.RefreshSummary(ctx, ownerID)
}

func (s *DashboardServiceImpl) RefreshSummary(ctx context.Context, ownerID uuid.UUID) (*models.TaskSummary, error) {
	s.mu.Lock()
	generation := s.generations[ownerID]
	s.mu.Unlock()

	summary, err := s.computeSummary(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.generations[ownerID] != generation {
			s.logger.Debug().Str("user_id", ownerID.String()).Msg("tasks changed during summary, not caching")
			return summary, nil
		}
		if err := s.cache.Set(ctx, SummaryCacheKey(ownerID), summary, summaryCacheTTL); err != nil {
			s.logger.Warn().Err(err).Msg("summary cache write failed")
		}
	}
	return summary, nil
}

// Invalidate drops the owner's cached summary and any cached productivity
// figures, which also change when tasks are completed.
func (s *DashboardServiceImpl) Invalidate(ctx context.Context, ownerID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}

	s.mu.Lock()
	s.generations[ownerID]++
	err := s.cache.Delete(ctx, SummaryCacheKey(ownerID))
	s.mu.Unlock()
	if err != nil {
		return err
	}

	return s.cache.DeletePattern(ctx, analytics.ProductivityCachePattern(ownerID.String()))
}

func (s *DashboardServiceImpl) Dashboard(ctx context.Context, ownerID uuid.UUID) (*Dashboard, error) {
	summary, err := s.Summary(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	result := &Dashboard{Summary: *summary}
	if s.productivity == nil {
		return result, nil
	}

	productivity, err := s.productivity.Productivity(ctx, ownerID.String(), s.productivityDays)
	if err != nil {
		if !errors.Is(err, analytics.ErrDisabled) {
			s.logger.Warn().Err(err).Str("user_id", ownerID.String()).Msg("analytics unavailable")
		}
		return result, nil
	}

	result.Productivity = productivity
	result.AnalyticsAvailable = true
	return result, nil
}

type summaryRow struct {
	Status   models.Status
	Priority models.Priority
	Count    int64
}

func (s *DashboardServiceImpl) computeSummary(ctx context.Context, ownerID uuid.UUID) (*models.TaskSummary, error) {
	var rows []summaryRow
	err := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Select("status, priority, COUNT(*) AS count").
		Where("user_id = ?", ownerID).
		Group("status, priority").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("summarize tasks: %w", err)
	}

	summary := &models.TaskSummary{}
	for _, row := range rows {
		summary.TotalTasks += row.Count

		switch row.Status {
		case models.StatusCompleted:
			summary.Completed += row.Count
		case models.StatusInProgress:
			summary.InProgress += row.Count
		case models.StatusTodo:
			summary.Todo += row.Count
		}

		switch row.Priority {
		case models.PriorityHigh:
			summary.HighPriority += row.Count
		case models.PriorityMedium:
			summary.MediumPriority += row.Count
		case models.PriorityLow:
			summary.LowPriority += row.Count
		}
	}

	if summary.TotalTasks > 0 {
		rate := float64(summary.Completed) / float64(summary.TotalTasks) * 100
		summary.CompletionRate = math.Round(rate*10) / 10
	}
	return summary, nil
}
