package jobs

import (
	"context"
	"fmt"
	"time"

	"golang-task-scheduler-core/internal/config"
	"golang-task-scheduler-core/internal/models"
	"golang-task-scheduler-core/internal/repository"
	"golang-task-scheduler-core/internal/utils"

	"github.com/sirupsen/logrus"
)

// Notifier is the part of the result notifier used to report recovered executions.
type Notifier interface {
	DeliverNotification(ctx context.Context, notification models.TaskNotification) bool
}

type JobService interface {
	// RecoverStaleExecutions fails executions a previous process left running, resets their
	// tasks and tells the owners. It returns the number of executions marked failed.
	RecoverStaleExecutions(ctx context.Context) (int64, error)
}

type jobService struct {
	cfg           *config.JobsConfig
	log           *logrus.Logger
	taskRepo      repository.TaskRepository
	executionRepo repository.TaskExecutionRepository
	notifier      Notifier
	now           func() time.Time
}

func NewJobService(cfg *config.JobsConfig, log *logrus.Logger, taskRepo repository.TaskRepository, executionRepo repository.TaskExecutionRepository, notifier Notifier) JobService {
	return &jobService{
		cfg:           cfg,
		log:           log,
		taskRepo:      taskRepo,
		executionRepo: executionRepo,
		notifier:      notifier,
		now:           utils.TimeNowUTC,
	}
}

func (s *jobService) RecoverStaleExecutions(ctx context.Context) (int64, error) {
	if s.cfg.StaleExecutionAfter <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.cfg.StaleExecutionAfter)

	stale, err := s.executionRepo.ListRunning(ctx, cutoff, 0)
	if err != nil {
		s.log.WithError(err).Error("failed to list stale executions")
		return 0, fmt.Errorf("failed to list stale executions: %w", err)
	}
	if len(stale) == 0 {
		return 0, nil
	}

	failed, err := s.executionRepo.FailStaleRunning(ctx, cutoff, s.cfg.StaleExecutionNote)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale executions: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"count":  failed,
		"cutoff": cutoff,
	}).Warn("Marked stale executions as failed")

	seen := make(map[string]struct{}, len(stale))
	for _, execution := range stale {
		if _, ok := seen[execution.TaskID]; ok {
			continue
		}
		seen[execution.TaskID] = struct{}{}
		s.recoverTask(ctx, execution)
	}
	return failed, nil
}

func (s *jobService) recoverTask(ctx context.Context, execution models.TaskExecution) {
	logger := s.log.WithFields(logrus.Fields{
		"task_id":      execution.TaskID,
		"execution_id": execution.ID,
	})

	task, err := s.taskRepo.Get(ctx, execution.TaskID)
	if err != nil {
		logger.WithError(err).Warn("failed to load task of stale execution")
		return
	}
	if task == nil {
		logger.Debug("stale execution belongs to a deleted task")
		return
	}

	if task.Status == models.TaskStatusRunning {
		status := models.TaskStatusFailed
		if _, err := s.taskRepo.Patch(ctx, task.ID, models.TaskPatch{Status: &status}); err != nil {
			logger.WithError(err).Warn("failed to reset task status")
		}
	}

	s.notifier.DeliverNotification(ctx, models.TaskNotification{
		UserID:           task.User,
		ConversationID:   task.ConversationID,
		TaskName:         task.Name,
		TaskID:           task.ID,
		NotificationType: models.NotificationFailed,
		Details:          s.cfg.StaleExecutionNote,
	})
}
