package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 1000
)

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Status string

const (
	StatusTodo       Status = "Todo"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

var Statuses = []Status{StatusTodo, StatusInProgress, StatusCompleted}

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID      uuid.UUID  `json:"user" gorm:"type:uuid;not null;index:idx_tasks_user_status,priority:1;index:idx_tasks_user_priority,priority:1"`
	Title       string     `json:"title" gorm:"size:200;not null"`
	Description string     `json:"description" gorm:"size:1000;not null"`
	Priority    Priority   `json:"priority" gorm:"size:20;not null;index:idx_tasks_user_priority,priority:2"`
	Status      Status     `json:"status" gorm:"size:20;not null;index:idx_tasks_user_status,priority:2"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID.IsNil() {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		t.ID = id
	}
	return nil
}

// TaskInput is the body accepted when creating a task.
type TaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
	DueDate     *string  `json:"dueDate"`
}

// TaskPatch records which fields a partial update carries. A field that is
// present with a null value is still present.
type TaskPatch struct {
	Title       *string
	Description *string
	Priority    *Priority
	Status      *Status
	DueDate     *string
	DueDateSet  bool
}

type PatchFieldError struct {
	Field string
}

func (e *PatchFieldError) Error() string {
	return fmt.Sprintf("%s must be a string", e.Field)
}

func (p *TaskPatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, value := range raw {
		switch key {
		case "title":
			s, err := decodeNullableString(key, value)
			if err != nil {
				return err
			}
			p.Title = &s
		case "description":
			s, err := decodeNullableString(key, value)
			if err != nil {
				return err
			}
			p.Description = &s
		case "priority":
			s, err := decodeNullableString(key, value)
			if err != nil {
				return err
			}
			priority := Priority(s)
			p.Priority = &priority
		case "status":
			s, err := decodeNullableString(key, value)
			if err != nil {
				return err
			}
			status := Status(s)
			p.Status = &status
		case "dueDate":
			p.DueDateSet = true
			if isJSONNull(value) {
				p.DueDate = nil
				continue
			}
			s, err := decodeNullableString(key, value)
			if err != nil {
				return err
			}
			p.DueDate = &s
		}
	}
	return nil
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil && p.Status == nil && !p.DueDateSet
}

func decodeNullableString(field string, value json.RawMessage) (string, error) {
	if isJSONNull(value) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", &PatchFieldError{Field: field}
	}
	return s, nil
}

func isJSONNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

// ParseDueDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates. An
// empty string means no due date.
func ParseDueDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid due date %q", value)
}

type TaskQuery struct {
	Status   string `form:"status"`
	Priority string `form:"priority"`
	Search   string `form:"search"`
	SortBy   string `form:"sortBy"`
	Order    string `form:"order"`
}

type TaskSummary struct {
	TotalTasks     int64   `json:"totalTasks"`
	Completed      int64   `json:"completed"`
	InProgress     int64   `json:"inProgress"`
	Todo           int64   `json:"todo"`
	HighPriority   int64   `json:"highPriority"`
	MediumPriority int64   `json:"mediumPriority"`
	LowPriority    int64   `json:"lowPriority"`
	CompletionRate float64 `json:"completionRate"`
}
