package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quicktask/backend/internal/models"
)

const filterAll = "All"

type TaskService interface {
	ListTasks(ctx context.Context, ownerID uuid.UUID, query models.TaskQuery) ([]models.Task, error)
	GetTask(ctx context.Context, ownerID uuid.UUID, taskID string) (*models.Task, error)
	CreateTask(ctx context.Context, ownerID uuid.UUID, input models.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, ownerID uuid.UUID, taskID string, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, ownerID uuid.UUID, taskID string) error
}

type TaskServiceImpl struct {
	db *gorm.DB
}

func NewTaskService(db *gorm.DB) *TaskServiceImpl {
	return &TaskServiceImpl{db: db}
}

var sortColumns = map[string]string{
	"createdAt": "created_at",
	"dueDate":   "due_date",
	"priority":  "priority",
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, ownerID uuid.UUID, query models.TaskQuery) ([]models.Task, error) {
	db := s.db.WithContext(ctx).Model(&models.Task{}).Where("user_id = ?", ownerID)

	if query.Status != "" && query.Status != filterAll {
		db = db.Where("status = ?", query.Status)
	}
	if query.Priority != "" && query.Priority != filterAll {
		db = db.Where("priority = ?", query.Priority)
	}
	// SQLite's LOWER only folds ASCII, so outside PostgreSQL the title match
	// happens after the query.
	search := strings.TrimSpace(query.Search)
	matchInQuery := s.db.Dialector.Name() == "postgres"
	if search != "" && matchInQuery {
		db = db.Where(`title ILIKE ? ESCAPE '\'`, "%"+escapeLike(search)+"%")
	}

	for _, order := range orderBy(query.SortBy, query.Order) {
		db = db.Order(order)
	}

	tasks := make([]models.Task, 0)
	if err := db.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	if search != "" && !matchInQuery {
		tasks = filterByTitle(tasks, search)
	}
	return tasks, nil
}

func filterByTitle(tasks []models.Task, search string) []models.Task {
	needle := strings.ToLower(search)
	matched := tasks[:0]
	for _, task := range tasks {
		if strings.Contains(strings.ToLower(task.Title), needle) {
			matched = append(matched, task)
		}
	}
	return matched
}

// orderBy sorts priority by its stored string, not by severity. Tasks without
// a due date come first ascending and last descending on every driver.
func orderBy(sortBy, order string) []interface{} {
	column, ok := sortColumns[sortBy]
	if !ok {
		return []interface{}{clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}}
	}

	desc := order != "asc"
	orders := make([]interface{}, 0, 3)
	if column == "due_date" {
		if desc {
			orders = append(orders, "due_date IS NULL ASC")
		} else {
			orders = append(orders, "due_date IS NULL DESC")
		}
	}
	orders = append(orders, clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	if column != "created_at" {
		orders = append(orders, clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true})
	}
	return orders
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, ownerID uuid.UUID, taskID string) (*models.Task, error) {
	return authorizeTaskOwner(s.db.WithContext(ctx), ownerID, taskID)
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, ownerID uuid.UUID, input models.TaskInput) (*models.Task, error) {
	title := strings.TrimSpace(input.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(input.Description)
	if err := validateDescription(description); err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, invalidPriority()
	}

	status := input.Status
	if status == "" {
		status = models.StatusTodo
	}
	if !status.Valid() {
		return nil, invalidStatus()
	}

	var dueDate *time.Time
	if input.DueDate != nil {
		parsed, err := models.ParseDueDate(*input.DueDate)
		if err != nil {
			return nil, invalidDueDate()
		}
		dueDate = parsed
	}

	task := models.Task{
		UserID:      ownerID,
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      status,
		DueDate:     dueDate,
	}
	if err := s.db.WithContext(ctx).Create(&task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &task, nil
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, ownerID uuid.UUID, taskID string, patch models.TaskPatch) (*models.Task, error) {
	var updated *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := authorizeTaskOwner(tx, ownerID, taskID)
		if err != nil {
			return err
		}

		columns, err := applyPatch(task, patch)
		if err != nil {
			return err
		}

		if len(columns) > 0 {
			task.UpdatedAt = time.Now()
			columns = append(columns, "updated_at")
			if err := tx.Model(task).Select(columns).Updates(task).Error; err != nil {
				return fmt.Errorf("update task: %w", err)
			}
		}

		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, ownerID uuid.UUID, taskID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := authorizeTaskOwner(tx, ownerID, taskID)
		if err != nil {
			return err
		}

		if err := tx.Delete(&models.Task{}, "id = ?", task.ID).Error; err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	})
}

// applyPatch validates every present field before touching task, then
// applies them and returns the columns whose value actually changed.
func applyPatch(task *models.Task, patch models.TaskPatch) ([]string, error) {
	var title, description string
	if patch.Title != nil {
		title = strings.TrimSpace(*patch.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		description = strings.TrimSpace(*patch.Description)
		if err := validateDescription(description); err != nil {
			return nil, err
		}
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return nil, invalidPriority()
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, invalidStatus()
	}
	var dueDate *time.Time
	if patch.DueDateSet && patch.DueDate != nil {
		parsed, err := models.ParseDueDate(*patch.DueDate)
		if err != nil {
			return nil, invalidDueDate()
		}
		dueDate = parsed
	}

	var columns []string
	if patch.Title != nil && title != task.Title {
		task.Title = title
		columns = append(columns, "title")
	}
	if patch.Description != nil && description != task.Description {
		task.Description = description
		columns = append(columns, "description")
	}
	if patch.Priority != nil && *patch.Priority != task.Priority {
		task.Priority = *patch.Priority
		columns = append(columns, "priority")
	}
	if patch.Status != nil && *patch.Status != task.Status {
		task.Status = *patch.Status
		columns = append(columns, "status")
	}
	if patch.DueDateSet && !sameTime(task.DueDate, dueDate) {
		task.DueDate = dueDate
		columns = append(columns, "due_date")
	}
	return columns, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func validateTitle(title string) error {
	if title == "" {
		return newValidationError("title", "Title is required")
	}
	if utf8.RuneCountInString(title) > models.MaxTitleLength {
		return newValidationError("title", fmt.Sprintf("Title cannot exceed %d characters", models.MaxTitleLength))
	}
	return nil
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > models.MaxDescriptionLength {
		return newValidationError("description", fmt.Sprintf("Description cannot exceed %d characters", models.MaxDescriptionLength))
	}
	return nil
}

func invalidPriority() error {
	return newValidationError("priority", "Priority must be one of Low, Medium, High")
}

func invalidStatus() error {
	return newValidationError("status", "Status must be one of Todo, In Progress, Completed")
}

func invalidDueDate() error {
	return newValidationError("dueDate", "Due date must be a valid date")
}
