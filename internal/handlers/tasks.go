package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"

	"quicktask/backend/internal/middleware"
	"quicktask/backend/internal/models"
	"quicktask/backend/internal/services"
)

type TaskHandler struct {
	taskService services.TaskService
	logger      zerolog.Logger
}

func NewTaskHandler(taskService services.TaskService, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		logger:      logger.With().Str("component", "task_handler").Logger(),
	}
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	var query models.TaskQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindingError(c, err)
		return
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), ownerID, query)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), ownerID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	var input models.TaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindingError(c, err)
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), ownerID, input)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	var patch models.TaskPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBindingError(c, err)
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), ownerID, c.Param("id"), patch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	ownerID, ok := ownerFromContext(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), ownerID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

func ownerFromContext(c *gin.Context) (uuid.UUID, bool) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthorized", "Not authorized, no token")
		return uuid.Nil, false
	}
	return user.ID, true
}
