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

type TaskRepository interface {
	// Save inserts the task or replaces the stored record with the same ID as a whole.
	// UpdatedAt is advanced and written back into task.
	Save(ctx context.Context, task *models.Task, opts ...utils.DBOption) error
	// Get returns nil, nil when no task has the ID.
	Get(ctx context.Context, id string, opts ...utils.DBOption) (*models.Task, error)
	List(ctx context.Context, param models.TaskQueryParam, opts ...utils.DBOption) ([]models.Task, error)
	ListAll(ctx context.Context, opts ...utils.DBOption) ([]models.Task, error)
	ListByUser(ctx context.Context, userID string, opts ...utils.DBOption) ([]models.Task, error)
	// Patch updates only the non-nil fields of patch and reports whether the task exists.
	Patch(ctx context.Context, id string, patch models.TaskPatch, opts ...utils.DBOption) (bool, error)
	// Delete reports whether a record was removed. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string, opts ...utils.DBOption) (bool, error)
}

type taskRepository struct {
	db  *gorm.DB
	log *logrus.Logger
	now func() time.Time
}

func NewTaskRepository(db *gorm.DB, log *logrus.Logger) TaskRepository {
	return &taskRepository{
		db:  db,
		log: log,
		now: utils.TimeNowUTC,
	}
}

func (r *taskRepository) Save(ctx context.Context, task *models.Task, opts ...utils.DBOption) error {
	if err := validateTask(task); err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}

	updatedAt := utils.NextAfter(models.NormalizeTime(task.UpdatedAt), models.NormalizeTime(r.now()))
	entity := task.ToEntity()
	entity.UpdatedAt = updatedAt
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = updatedAt
	}

	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(entity).Error
	if err != nil {
		r.log.WithError(err).WithField("task_id", task.ID).Error("failed to save task")
		return storeError("save task", err)
	}

	task.Payload = models.NormalizePayload(task.Payload)
	task.CreatedAt = entity.CreatedAt
	task.UpdatedAt = entity.UpdatedAt
	task.LastRun = entity.LastRun
	task.NextRun = entity.NextRun
	return nil
}

func validateTask(task *models.Task) error {
	if task == nil {
		return fmt.Errorf("%w: nil task", models.ErrInvalidTask)
	}
	if task.ID == "" {
		return fmt.Errorf("%w: empty id", models.ErrInvalidTask)
	}
	if task.Payload == nil {
		return fmt.Errorf("%w: task %s has no payload", models.ErrInvalidTask, task.ID)
	}
	if task.Status != "" && !task.Status.Valid() {
		return fmt.Errorf("%w: task %s has status %q", models.ErrInvalidTask, task.ID, task.Status)
	}
	return nil
}

func (r *taskRepository) Get(ctx context.Context, id string, opts ...utils.DBOption) (*models.Task, error) {
	var entity models.TaskEntity
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)

	result := db.Where("id = ?", id).Take(&entity)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError("get task", result.Error)
	}

	task, err := entity.ToTask()
	if err != nil {
		r.log.WithError(err).WithField("task_id", id).Warn("stored task has invalid fields")
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

func (r *taskRepository) List(ctx context.Context, param models.TaskQueryParam, opts ...utils.DBOption) ([]models.Task, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	db = db.Model(&models.TaskEntity{})

	if param.Enabled != nil {
		db = db.Where(clause.Eq{Column: clause.Column{Name: "enabled"}, Value: *param.Enabled})
	}
	if len(param.Statuses) > 0 {
		statuses := make([]string, 0, len(param.Statuses))
		for _, s := range param.Statuses {
			statuses = append(statuses, string(s))
		}
		db = db.Where("status IN ?", statuses)
	}
	if param.User != nil {
		db = db.Where(clause.Eq{Column: clause.Column{Name: "user"}, Value: *param.User})
	}
	if param.DueBefore != nil {
		db = db.Where("next_run IS NOT NULL AND next_run <= ?", models.NormalizeTime(*param.DueBefore)).
			Order("next_run ASC")
	}
	if param.Limit > 0 {
		db = db.Limit(param.Limit)
	}

	var entities []models.TaskEntity
	if err := db.Order("id ASC").Find(&entities).Error; err != nil {
		return nil, storeError("list tasks", err)
	}

	tasks := make([]models.Task, 0, len(entities))
	for i := range entities {
		task, err := entities[i].ToTask()
		if err != nil {
			r.log.WithError(err).WithField("task_id", entities[i].ID).Warn("skipping stored task with invalid fields")
			continue
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

func (r *taskRepository) ListAll(ctx context.Context, opts ...utils.DBOption) ([]models.Task, error) {
	return r.List(ctx, models.TaskQueryParam{}, opts...)
}

func (r *taskRepository) ListByUser(ctx context.Context, userID string, opts ...utils.DBOption) ([]models.Task, error) {
	return r.List(ctx, models.TaskQueryParam{User: &userID}, opts...)
}

func (r *taskRepository) Patch(ctx context.Context, id string, patch models.TaskPatch, opts ...utils.DBOption) (bool, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return false, fmt.Errorf("patch task %s: %w: status %q", id, models.ErrInvalidTask, *patch.Status)
	}

	updates := map[string]any{
		"updated_at": models.NormalizeTime(r.now()),
	}
	if patch.Enabled != nil {
		updates["enabled"] = *patch.Enabled
	}
	if patch.Status != nil {
		updates["status"] = string(*patch.Status)
	}
	if patch.LastRun != nil {
		updates["last_run"] = models.NormalizeTime(*patch.LastRun)
	}
	if patch.NextRun != nil {
		updates["next_run"] = models.NormalizeTime(*patch.NextRun)
	} else if patch.ClearNextRun {
		updates["next_run"] = nil
	}

	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Model(&models.TaskEntity{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		r.log.WithError(result.Error).WithField("task_id", id).Error("failed to patch task")
		return false, storeError("patch task", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *taskRepository) Delete(ctx context.Context, id string, opts ...utils.DBOption) (bool, error) {
	db := utils.ApplyOptions(r.db.WithContext(ctx), opts...)
	result := db.Where("id = ?", id).Delete(&models.TaskEntity{})
	if result.Error != nil {
		r.log.WithError(result.Error).WithField("task_id", id).Error("failed to delete task")
		return false, storeError("delete task", result.Error)
	}
	return result.RowsAffected > 0, nil
}
