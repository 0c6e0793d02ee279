package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"quicktask/backend/internal/models"
)

type TaskHandlerTestSuite struct {
	suite.Suite
	env   *testEnv
	alice string
	bob   string
}

func (s *TaskHandlerTestSuite) SetupTest() {
	s.env = newTestEnv(s.T(), false)
	s.alice = s.env.register(s.T(), "Alice", "alice@x.com").Token
	s.bob = s.env.register(s.T(), "Bob", "bob@x.com").Token
}

func (s *TaskHandlerTestSuite) createTask(token string, body gin.H) models.Task {
	w := s.env.do(s.T(), http.MethodPost, "/api/tasks", token, body)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var task models.Task
	decodeBody(s.T(), w, &task)
	return task
}

func (s *TaskHandlerTestSuite) TestCreateTask_Defaults() {
	task := s.createTask(s.alice, gin.H{"title": "  Buy milk  "})

	s.Equal("Buy milk", task.Title)
	s.Equal("", task.Description)
	s.Equal(models.PriorityMedium, task.Priority)
	s.Equal(models.StatusTodo, task.Status)
	s.Nil(task.DueDate)
	s.False(task.ID.IsNil())
}

func (s *TaskHandlerTestSuite) TestCreateTask_IgnoresClientOwner() {
	foreign := uuid.Must(uuid.NewV4())
	task := s.createTask(s.alice, gin.H{"title": "Mine", "user": foreign.String()})

	s.NotEqual(foreign, task.UserID)

	w := s.env.do(s.T(), http.MethodGet, "/api/tasks/"+task.ID.String(), s.alice, nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *TaskHandlerTestSuite) TestCreateTask_Validation() {
	tests := []struct {
		name    string
		body    interface{}
		message string
	}{
		{"missing title", gin.H{"description": "x"}, "Title is required"},
		{"blank title", gin.H{"title": "   "}, "Title is required"},
		{"long title", gin.H{"title": strings.Repeat("a", 201)}, "Title cannot exceed 200 characters"},
		{"long description", gin.H{"title": "ok", "description": strings.Repeat("d", 1001)}, "Description cannot exceed 1000 characters"},
		{"bad priority", gin.H{"title": "ok", "priority": "Urgent"}, "Priority must be one of Low, Medium, High"},
		{"bad status", gin.H{"title": "ok", "status": "pending"}, "Status must be one of Todo, In Progress, Completed"},
		{"bad due date", gin.H{"title": "ok", "dueDate": "someday"}, "Due date must be a valid date"},
		{"malformed json", "invalid json", "Invalid request body"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.env.do(s.T(), http.MethodPost, "/api/tasks", s.alice, tt.body)
			s.Equal(http.StatusBadRequest, w.Code)
			s.Equal(tt.message, errorMessage(s.T(), w))
		})
	}
}

func (s *TaskHandlerTestSuite) TestCreateTask_RequiresAuth() {
	w := s.env.do(s.T(), http.MethodPost, "/api/tasks", "", gin.H{"title": "x"})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *TaskHandlerTestSuite) TestGetTasks_ScopedFilteredAndSorted() {
	s.createTask(s.alice, gin.H{"title": "Write report", "priority": "High", "status": "Completed"})
	s.createTask(s.alice, gin.H{"title": "Read book", "priority": "Low", "status": "Todo"})
	s.createTask(s.alice, gin.H{"title": "Report taxes", "priority": "Medium", "status": "Todo"})
	s.createTask(s.bob, gin.H{"title": "Bob report", "status": "Todo"})

	var all []models.Task
	w := s.env.do(s.T(), http.MethodGet, "/api/tasks", s.alice, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	decodeBody(s.T(), w, &all)
	s.Len(all, 3)

	var todo []models.Task
	w = s.env.do(s.T(), http.MethodGet, "/api/tasks?status=Todo&priority=All", s.alice, nil)
	decodeBody(s.T(), w, &todo)
	s.Len(todo, 2)
	for _, task := range todo {
		s.Equal(models.StatusTodo, task.Status)
	}

	var searched []models.Task
	w = s.env.do(s.T(), http.MethodGet, "/api/tasks?search=REPORT&sortBy=priority&order=asc", s.alice, nil)
	decodeBody(s.T(), w, &searched)
	s.Require().Len(searched, 2)
	s.Equal("Write report", searched[0].Title)
	s.Equal("Report taxes", searched[1].Title)
}

func (s *TaskHandlerTestSuite) TestGetTasks_EmptyListIsArray() {
	w := s.env.do(s.T(), http.MethodGet, "/api/tasks", s.bob, nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`[]`, w.Body.String())
}

func (s *TaskHandlerTestSuite) TestGetTaskByID_NotFoundBeforeForbidden() {
	task := s.createTask(s.alice, gin.H{"title": "Private"})

	w := s.env.do(s.T(), http.MethodGet, "/api/tasks/"+task.ID.String(), s.bob, nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("Not authorized", errorMessage(s.T(), w))

	w = s.env.do(s.T(), http.MethodGet, "/api/tasks/"+uuid.Must(uuid.NewV4()).String(), s.bob, nil)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("Task not found", errorMessage(s.T(), w))

	w = s.env.do(s.T(), http.MethodGet, "/api/tasks/not-a-uuid", s.alice, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *TaskHandlerTestSuite) TestUpdateTask_Presence() {
	task := s.createTask(s.alice, gin.H{
		"title":       "Plan trip",
		"description": "Book flights",
		"dueDate":     "2026-02-10",
	})
	s.Require().NotNil(task.DueDate)

	w := s.env.do(s.T(), http.MethodPut, "/api/tasks/"+task.ID.String(), s.alice, `{"description": null, "dueDate": null, "status": "In Progress"}`)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var updated models.Task
	decodeBody(s.T(), w, &updated)
	s.Equal("Plan trip", updated.Title)
	s.Equal("", updated.Description)
	s.Nil(updated.DueDate)
	s.Equal(models.StatusInProgress, updated.Status)
	s.Equal(models.PriorityMedium, updated.Priority)
}

func (s *TaskHandlerTestSuite) TestUpdateTask_InvalidFieldsWriteNothing() {
	task := s.createTask(s.alice, gin.H{"title": "Keep me"})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"null title", `{"title": null}`, "Title is required"},
		{"bad status with valid title", `{"title": "Changed", "status": "Done"}`, "Status must be one of Todo, In Progress, Completed"},
		{"wrong type", `{"title": 42}`, "title must be a string"},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.env.do(s.T(), http.MethodPut, "/api/tasks/"+task.ID.String(), s.alice, tt.body)
			s.Equal(http.StatusBadRequest, w.Code)
			s.Equal(tt.message, errorMessage(s.T(), w))
		})
	}

	w := s.env.do(s.T(), http.MethodGet, "/api/tasks/"+task.ID.String(), s.alice, nil)
	var current models.Task
	decodeBody(s.T(), w, &current)
	s.Equal("Keep me", current.Title)
	s.Equal(models.StatusTodo, current.Status)
}

func (s *TaskHandlerTestSuite) TestUpdateTask_CrossOwnerForbiddenAndUnchanged() {
	task := s.createTask(s.alice, gin.H{"title": "Alice's"})

	w := s.env.do(s.T(), http.MethodPut, "/api/tasks/"+task.ID.String(), s.bob, gin.H{"title": "Hacked"})
	s.Equal(http.StatusForbidden, w.Code)

	var stored models.Task
	s.Require().NoError(s.env.pool.DB.First(&stored, "id = ?", task.ID).Error)
	s.Equal("Alice's", stored.Title)
}

func (s *TaskHandlerTestSuite) TestDeleteTask() {
	task := s.createTask(s.alice, gin.H{"title": "Temporary"})

	w := s.env.do(s.T(), http.MethodDelete, "/api/tasks/"+task.ID.String(), s.bob, nil)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.env.do(s.T(), http.MethodDelete, "/api/tasks/"+task.ID.String(), s.alice, nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"message":"Task deleted"}`, w.Body.String())

	w = s.env.do(s.T(), http.MethodDelete, "/api/tasks/"+task.ID.String(), s.alice, nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func TestTaskHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(TaskHandlerTestSuite))
}

func TestDashboard_SummaryWithoutAnalytics(t *testing.T) {
	env := newTestEnv(t, false)
	token := env.register(t, "Demo", "demo@x.com").Token

	for _, body := range []gin.H{
		{"title": "a", "status": "Completed", "priority": "High"},
		{"title": "b", "status": "In Progress", "priority": "Low"},
		{"title": "c"},
	} {
		w := env.do(t, http.MethodPost, "/api/tasks", token, body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := env.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var dashboard struct {
		Summary            models.TaskSummary `json:"summary"`
		Productivity       interface{}        `json:"productivity"`
		AnalyticsAvailable bool               `json:"analyticsAvailable"`
	}
	decodeBody(t, w, &dashboard)
	assert.Equal(t, int64(3), dashboard.Summary.TotalTasks)
	assert.Equal(t, int64(1), dashboard.Summary.Completed)
	assert.Equal(t, int64(1), dashboard.Summary.InProgress)
	assert.Equal(t, int64(1), dashboard.Summary.Todo)
	assert.Equal(t, 33.3, dashboard.Summary.CompletionRate)
	assert.Nil(t, dashboard.Productivity)
	assert.False(t, dashboard.AnalyticsAvailable)

	w = env.do(t, http.MethodGet, "/api/dashboard/summary", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"totalTasks":3`)

	w = env.do(t, http.MethodGet, "/api/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
