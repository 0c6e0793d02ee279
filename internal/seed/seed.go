package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"quicktask/backend/internal/models"
	"quicktask/backend/internal/services"
)

const (
	DemoName     = "Demo User"
	DemoEmail    = "demo@quicktask.com"
	DemoPassword = "password123"
)

type sampleTask struct {
	title       string
	description string
	priority    models.Priority
	status      models.Status
	dueDate     string
}

var sampleTasks = []sampleTask{
	{"Set up project repository", "Initialize Git repo and push to GitHub", models.PriorityHigh, models.StatusCompleted, "2026-02-10"},
	{"Design database schema", "Create the schema for users and tasks", models.PriorityHigh, models.StatusCompleted, "2026-02-11"},
	{"Implement authentication", "JWT-based auth with register and login", models.PriorityHigh, models.StatusCompleted, "2026-02-12"},
	{"Build task CRUD API", "Create REST endpoints for task management", models.PriorityHigh, models.StatusInProgress, "2026-02-13"},
	{"Create React frontend", "Build the UI with React and Vite", models.PriorityHigh, models.StatusInProgress, "2026-02-14"},
	{"Add filtering and search", "Enable filtering by status, priority, and search by title", models.PriorityMedium, models.StatusTodo, "2026-02-15"},
	{"Implement dashboard charts", "Add charts to the dashboard", models.PriorityMedium, models.StatusTodo, "2026-02-16"},
	{"Build analytics service", "Microservice for productivity analytics", models.PriorityMedium, models.StatusTodo, "2026-02-17"},
	{"Write unit tests", "Add tests for API endpoints", models.PriorityLow, models.StatusTodo, "2026-02-18"},
	{"Deploy application", "Deploy all services to cloud platform", models.PriorityLow, models.StatusTodo, "2026-02-20"},
}

type Result struct {
	User      *models.User
	TaskCount int
}

type Seeder struct {
	db     *gorm.DB
	hasher services.PasswordHasher
	logger zerolog.Logger
}

func NewSeeder(db *gorm.DB, hasher services.PasswordHasher, logger zerolog.Logger) *Seeder {
	return &Seeder{
		db:     db,
		hasher: hasher,
		logger: logger.With().Str("component", "seed").Logger(),
	}
}

// Run replaces the demo user and their tasks. Other users are untouched.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	hashedPassword, err := s.hasher.Hash(DemoPassword)
	if err != nil {
		return nil, fmt.Errorf("hash demo password: %w", err)
	}

	result := &Result{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.Select("id").Where("email = ?", DemoEmail).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Where("user_id = ?", existing.ID).Delete(&models.Task{}).Error; err != nil {
				return fmt.Errorf("delete demo tasks: %w", err)
			}
			if err := tx.Delete(&models.User{}, "id = ?", existing.ID).Error; err != nil {
				return fmt.Errorf("delete demo user: %w", err)
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("find demo user: %w", err)
		}

		user := models.User{Name: DemoName, Email: DemoEmail, Password: hashedPassword}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("create demo user: %w", err)
		}

		tasks := make([]models.Task, 0, len(sampleTasks))
		for _, sample := range sampleTasks {
			due, err := time.Parse(time.DateOnly, sample.dueDate)
			if err != nil {
				return err
			}
			tasks = append(tasks, models.Task{
				UserID:      user.ID,
				Title:       sample.title,
				Description: sample.description,
				Priority:    sample.priority,
				Status:      sample.status,
				DueDate:     &due,
			})
		}
		if err := tx.Create(&tasks).Error; err != nil {
			return fmt.Errorf("create demo tasks: %w", err)
		}

		result.User = &user
		result.TaskCount = len(tasks)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("email", DemoEmail).
		Int("tasks", result.TaskCount).
		Msg("seeded demo data")
	return result, nil
}
