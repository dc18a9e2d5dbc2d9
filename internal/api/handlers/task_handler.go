package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"golang-task-scheduler-core/internal/models"
	"golang-task-scheduler-core/internal/repository"
)

type TaskHandler struct {
	taskRepo      repository.TaskRepository
	executionRepo repository.TaskExecutionRepository
	logger        *logrus.Logger
}

func NewTaskHandler(taskRepo repository.TaskRepository, executionRepo repository.TaskExecutionRepository, logger *logrus.Logger) *TaskHandler {
	return &TaskHandler{
		taskRepo:      taskRepo,
		executionRepo: executionRepo,
		logger:        logger,
	}
}

// HealthCheck handles GET /health
func (h *TaskHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "task-scheduler-core",
	})
}

// ListTasks handles GET /api/v1/tasks, optionally scoped by ?user=
func (h *TaskHandler) ListTasks(c *gin.Context) {
	var (
		tasks []models.Task
		err   error
	)
	if user, ok := c.GetQuery("user"); ok {
		tasks, err = h.taskRepo.ListByUser(c.Request.Context(), user)
	} else {
		tasks, err = h.taskRepo.ListAll(c.Request.Context())
	}
	if err != nil {
		h.storeFailure(c, err, "Failed to list tasks")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"count": len(tasks),
	})
}

// GetTask handles GET /api/v1/tasks/:id
func (h *TaskHandler) GetTask(c *gin.Context) {
	id := c.Param("id")
	task, err := h.taskRepo.Get(c.Request.Context(), id)
	if err != nil {
		h.storeFailure(c, err, "Failed to get task")
		return
	}
	if task == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "task " + id + " not found",
			Code:    http.StatusNotFound,
		})
		return
	}
	c.JSON(http.StatusOK, task)
}

// ListTaskExecutions handles GET /api/v1/tasks/:id/executions?limit=
func (h *TaskHandler) ListTaskExecutions(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	executions, err := h.executionRepo.ListForTask(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.storeFailure(c, err, "Failed to list task executions")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"executions": executions,
		"count":      len(executions),
	})
}

// ListUserExecutions handles GET /api/v1/users/:id/executions?limit=
func (h *TaskHandler) ListUserExecutions(c *gin.Context) {
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	executions, err := h.executionRepo.ListForUser(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.storeFailure(c, err, "Failed to list user executions")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"executions": executions,
		"count":      len(executions),
	})
}

func (h *TaskHandler) storeFailure(c *gin.Context, err error, message string) {
	h.logger.WithError(err).WithField("path", c.FullPath()).Error(message)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: message,
		Code:    http.StatusInternalServerError,
	})
}

// queryInt parses an optional integer query parameter, answering 400 when it is malformed.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_request",
			Message: key + " must be an integer",
			Code:    http.StatusBadRequest,
		})
		return 0, false
	}
	return value, true
}
