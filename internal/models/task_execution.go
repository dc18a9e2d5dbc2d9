package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TaskExecution is one run of a task. It is created when the run starts and updated in place
// when the run ends.
type TaskExecution struct {
	ID        string     `json:"id"`
	TaskID    string     `json:"task_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Status    TaskStatus `json:"status"`
	Output    string     `json:"output"`
	Error     string     `json:"error"`
	User      string     `json:"user"`
}

// NewTaskExecution starts a running execution for task. The owning user is copied so
// executions can be listed per user without reading the task.
func NewTaskExecution(task *Task, now time.Time) *TaskExecution {
	return &TaskExecution{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		StartTime: NormalizeTime(now),
		Status:    TaskStatusRunning,
		User:      task.User,
	}
}

// Finish records the terminal outcome of the run.
func (e *TaskExecution) Finish(status TaskStatus, output, errText string, now time.Time) {
	end := NormalizeTime(now)
	e.EndTime = &end
	e.Status = status
	e.Output = output
	e.Error = errText
}

type TaskExecutionEntity struct {
	ID        string         `gorm:"column:id;primaryKey;type:varchar(128)"`
	TaskID    string         `gorm:"column:task_id;type:varchar(128);not null;index:idx_schedulerexecutions_task_id;index:idx_schedulerexecutions_task_start,priority:1"`
	StartTime time.Time      `gorm:"column:start_time;not null;index:idx_schedulerexecutions_task_start,priority:2,sort:desc"`
	EndTime   sql.NullTime   `gorm:"column:end_time"`
	Status    TaskStatus     `gorm:"column:status;type:varchar(20);not null"`
	Output    sql.NullString `gorm:"column:output;type:text"`
	Error     sql.NullString `gorm:"column:error;type:text"`
	User      sql.NullString `gorm:"column:user;type:varchar(128);index:idx_schedulerexecutions_user"`
}

func (TaskExecutionEntity) TableName() string {
	return "schedulerexecutions"
}

func (e *TaskExecution) ToEntity() *TaskExecutionEntity {
	entity := &TaskExecutionEntity{
		ID:        e.ID,
		TaskID:    e.TaskID,
		StartTime: NormalizeTime(e.StartTime),
		Status:    e.Status,
		Output:    sql.NullString{String: e.Output, Valid: e.Output != ""},
		Error:     sql.NullString{String: e.Error, Valid: e.Error != ""},
		User:      sql.NullString{String: e.User, Valid: e.User != ""},
	}
	if e.EndTime != nil {
		entity.EndTime = sql.NullTime{Time: NormalizeTime(*e.EndTime), Valid: true}
	}
	return entity
}

func (e *TaskExecutionEntity) ToTaskExecution() (*TaskExecution, error) {
	if !e.Status.Valid() {
		return nil, &ValidationError{Field: "status", Value: string(e.Status)}
	}
	exec := &TaskExecution{
		ID:        e.ID,
		TaskID:    e.TaskID,
		StartTime: NormalizeTime(e.StartTime),
		Status:    e.Status,
		Output:    e.Output.String,
		Error:     e.Error.String,
		User:      e.User.String,
	}
	if e.EndTime.Valid {
		end := NormalizeTime(e.EndTime.Time)
		exec.EndTime = &end
	}
	return exec, nil
}
