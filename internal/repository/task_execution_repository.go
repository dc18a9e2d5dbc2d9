package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang-task-scheduler-core/internal/models"
	"golang-task-scheduler-core/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultTaskExecutionLimit = 10
	DefaultUserExecutionLimit = 50
)

type TaskExecutionRepository interface {
	// Save inserts the execution or replaces the stored record with the same ID as a whole.
	Save(ctx context.Context, execution *models.TaskExecution, opts ...utils.DBOption) error
	// Get returns nil, nil when no execution has the ID.
	Get(ctx context.Context, id string, opts ...utils.DBOption) (*models.TaskExecution, error)
	// ListForTask returns the newest executions of a task first, at most limit of them
	// (DefaultTaskExecutionLimit when limit <= 0). Equal start times are ordered by ID descending.
	ListForTask(ctx context.Context, taskID string, limit int, opts ...utils.DBOption) ([]models.TaskExecution, error)
	// ListForUser is ListForTask scoped by user, defaulting to DefaultUserExecutionLimit.
	ListForUser(ctx context.Context, userID string, limit int, opts ...utils.DBOption) ([]models.TaskExecution, error)
	// ListRunning returns executions still running that started before the cutoff, oldest first.
	ListRunning(ctx context.Context, startedBefore time.Time, limit int, opts ...utils.DBOption) ([]models.TaskExecution, error)
	// FailStaleRunning marks executions still running that started before the cutoff as failed.
	FailStaleRunning(ctx context.Context, startedBefore time.Time, reason string, opts ...utils.DBOption) (int64, error)
}

type taskExecutionRepository struct {
	db  *gorm.DB
	log *logrus.Logger
	now func() time.Time
}

func NewTaskExecutionRepository(db *gorm.DB, log *logrus.Logger) TaskExecutionRepository {
	return &taskExecutionRepository{
		db:  db,
		log: log,
		now: utils.TimeNowUTC,
	}
}

func (r *taskExecutionRepository) Save(ctx context.Context, execution *models.TaskExecution, opts ...utils.DBOption) error {
	if execution == nil || execution.ID == "" {
		return errors.New("save execution: execution without id")
	}
	if !execution.Status.Valid() {
		return fmt.Errorf("save execution %s: %w", execution.ID, &models.ValidationError{Field: "status", Value: string(execution.Status)})
	}

	entity := execution.ToEntity()
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(entity).Error
	if err != nil {
		r.log.WithError(err).WithFields(logrus.Fields{
			"execution_id": execution.ID,
			"task_id":      execution.TaskID,
		}).Error("failed to save execution")
		return storeError("save execution", err)
	}

	execution.StartTime = entity.StartTime
	if entity.EndTime.Valid {
		end := entity.EndTime.Time
		execution.EndTime = &end
	}
	return nil
}

func (r *taskExecutionRepository) Get(ctx context.Context, id string, opts ...utils.DBOption) (*models.TaskExecution, error) {
	var entity models.TaskExecutionEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)

	result := db.Where("id = ?", id).Take(&entity)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError("get execution", result.Error)
	}

	execution, err := entity.ToTaskExecution()
	if err != nil {
		r.log.WithError(err).WithField("execution_id", id).Warn("stored execution has invalid fields")
		return nil, fmt.Errorf("get execution %s: %w", id, err)
	}
	return execution, nil
}

func (r *taskExecutionRepository) ListForTask(ctx context.Context, taskID string, limit int, opts ...utils.DBOption) ([]models.TaskExecution, error) {
	if limit <= 0 {
		limit = DefaultTaskExecutionLimit
	}
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	db = db.Where(clause.Eq{Column: clause.Column{Name: "task_id"}, Value: taskID})
	return r.listNewestFirst(db, limit, "list executions for task")
}

func (r *taskExecutionRepository) ListForUser(ctx context.Context, userID string, limit int, opts ...utils.DBOption) ([]models.TaskExecution, error) {
	if limit <= 0 {
		limit = DefaultUserExecutionLimit
	}
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	db = db.Where(clause.Eq{Column: clause.Column{Name: "user"}, Value: userID})
	return r.listNewestFirst(db, limit, "list executions for user")
}

func (r *taskExecutionRepository) listNewestFirst(db *gorm.DB, limit int, op string) ([]models.TaskExecution, error) {
	var entities []models.TaskExecutionEntity
	err := db.Model(&models.TaskExecutionEntity{}).
		Order("start_time DESC").
		Order("id DESC").
		Limit(limit).
		Find(&entities).Error
	if err != nil {
		return nil, storeError(op, err)
	}

	executions := make([]models.TaskExecution, 0, len(entities))
	for i := range entities {
		execution, err := entities[i].ToTaskExecution()
		if err != nil {
			r.log.WithError(err).WithField("execution_id", entities[i].ID).Warn("skipping stored execution with invalid fields")
			continue
		}
		executions = append(executions, *execution)
	}
	return executions, nil
}

func (r *taskExecutionRepository) ListRunning(ctx context.Context, startedBefore time.Time, limit int, opts ...utils.DBOption) ([]models.TaskExecution, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	db = db.Model(&models.TaskExecutionEntity{}).
		Where("status = ? AND start_time < ?", string(models.TaskStatusRunning), models.NormalizeTime(startedBefore)).
		Order("start_time ASC").
		Order("id ASC")
	if limit > 0 {
		db = db.Limit(limit)
	}

	var entities []models.TaskExecutionEntity
	if err := db.Find(&entities).Error; err != nil {
		return nil, storeError("list running executions", err)
	}

	executions := make([]models.TaskExecution, 0, len(entities))
	for i := range entities {
		execution, err := entities[i].ToTaskExecution()
		if err != nil {
			r.log.WithError(err).WithField("execution_id", entities[i].ID).Warn("skipping running execution with invalid fields")
			continue
		}
		executions = append(executions, *execution)
	}
	return executions, nil
}

func (r *taskExecutionRepository) FailStaleRunning(ctx context.Context, startedBefore time.Time, reason string, opts ...utils.DBOption) (int64, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&models.TaskExecutionEntity{}).
		Where("status = ? AND start_time < ?", string(models.TaskStatusRunning), models.NormalizeTime(startedBefore)).
		Updates(map[string]any{
			"status":   string(models.TaskStatusFailed),
			"error":    reason,
			"end_time": models.NormalizeTime(r.now()),
		})
	if result.Error != nil {
		r.log.WithError(result.Error).Error("failed to mark stale executions as failed")
		return 0, storeError("fail stale executions", result.Error)
	}
	return result.RowsAffected, nil
}
