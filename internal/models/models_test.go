package models_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"quicktask/backend/internal/models"

	"github.com/gofrs/uuid"
)

func TestPriority_Valid(t *testing.T) {
	for _, p := range models.Priorities {
		if !p.Valid() {
			t.Errorf("Expected priority %q to be valid", p)
		}
	}

	for _, p := range []models.Priority{"", "low", "Urgent"} {
		if p.Valid() {
			t.Errorf("Expected priority %q to be invalid", p)
		}
	}
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range models.Statuses {
		if !s.Valid() {
			t.Errorf("Expected status %q to be valid", s)
		}
	}

	for _, s := range []models.Status{"", "pending", "InProgress", "completed"} {
		if s.Valid() {
			t.Errorf("Expected status %q to be invalid", s)
		}
	}
}

func TestTaskPatch_PresenceNotTruthiness(t *testing.T) {
	var patch models.TaskPatch
	body := `{"description": "", "dueDate": null, "status": "Completed"}`
	if err := json.Unmarshal([]byte(body), &patch); err != nil {
		t.Fatalf("Failed to unmarshal patch: %v", err)
	}

	if patch.Title != nil {
		t.Error("Expected absent title to stay nil")
	}
	if patch.Priority != nil {
		t.Error("Expected absent priority to stay nil")
	}
	if patch.Description == nil || *patch.Description != "" {
		t.Error("Expected empty description to be present")
	}
	if !patch.DueDateSet || patch.DueDate != nil {
		t.Error("Expected null dueDate to be present and cleared")
	}
	if patch.Status == nil || *patch.Status != models.StatusCompleted {
		t.Error("Expected status to be Completed")
	}
	if patch.IsEmpty() {
		t.Error("Expected patch to be non-empty")
	}
}

func TestTaskPatch_NullTitleIsPresent(t *testing.T) {
	var patch models.TaskPatch
	if err := json.Unmarshal([]byte(`{"title": null}`), &patch); err != nil {
		t.Fatalf("Failed to unmarshal patch: %v", err)
	}

	if patch.Title == nil || *patch.Title != "" {
		t.Error("Expected null title to be present as empty string")
	}
}

func TestTaskPatch_IgnoresUnknownAndOwnerFields(t *testing.T) {
	var patch models.TaskPatch
	body := `{"user": "` + uuid.Must(uuid.NewV4()).String() + `", "color": "blue"}`
	if err := json.Unmarshal([]byte(body), &patch); err != nil {
		t.Fatalf("Failed to unmarshal patch: %v", err)
	}

	if !patch.IsEmpty() {
		t.Error("Expected patch with only unknown fields to be empty")
	}
}

func TestTaskPatch_WrongType(t *testing.T) {
	var patch models.TaskPatch
	err := json.Unmarshal([]byte(`{"title": 42}`), &patch)
	if err == nil {
		t.Fatal("Expected error for numeric title")
	}
	if !strings.Contains(err.Error(), "title must be a string") {
		t.Errorf("Unexpected error message: %v", err)
	}
}

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *time.Time
		wantErr  bool
	}{
		{name: "empty", input: "", expected: nil},
		{name: "whitespace", input: "  ", expected: nil},
		{name: "date only", input: "2026-02-10", expected: ptrTime(time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC))},
		{name: "rfc3339", input: "2026-02-10T15:04:05Z", expected: ptrTime(time.Date(2026, 2, 10, 15, 4, 5, 0, time.UTC))},
		{name: "offset converted to utc", input: "2026-02-10T12:00:00+02:00", expected: ptrTime(time.Date(2026, 2, 10, 10, 0, 0, 0, time.UTC))},
		{name: "garbage", input: "next tuesday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := models.ParseDueDate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.expected == nil {
				if got != nil {
					t.Errorf("Expected nil, got %v", got)
				}
				return
			}
			if got == nil || !got.Equal(*tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestUser_PasswordNeverSerialized(t *testing.T) {
	user := models.User{
		ID:       uuid.Must(uuid.NewV4()),
		Name:     "Demo",
		Email:    "demo@x.com",
		Password: "$2a$10$hashed",
	}

	data, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("Failed to marshal user: %v", err)
	}
	if strings.Contains(string(data), "hashed") || strings.Contains(string(data), "password") {
		t.Errorf("Password leaked in JSON: %s", data)
	}

	profile := user.Profile()
	if profile.ID != user.ID.String() || profile.Name != "Demo" || profile.Email != "demo@x.com" {
		t.Errorf("Unexpected profile: %+v", profile)
	}
}

func TestTask_BeforeCreateAssignsID(t *testing.T) {
	task := models.Task{Title: "Buy milk"}
	if err := task.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate failed: %v", err)
	}
	if task.ID.IsNil() {
		t.Error("Expected ID to be generated")
	}

	existing := uuid.Must(uuid.NewV4())
	task = models.Task{ID: existing}
	_ = task.BeforeCreate(nil)
	if task.ID != existing {
		t.Error("Expected existing ID to be kept")
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
