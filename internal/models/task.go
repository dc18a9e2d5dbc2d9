package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type TaskType string

const (
	TaskTypeShellCommand TaskType = "shell_command"
	TaskTypeAPICall      TaskType = "api_call"
	TaskTypeAI           TaskType = "ai"
	TaskTypeReminder     TaskType = "reminder"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeShellCommand, TaskTypeAPICall, TaskTypeAI, TaskTypeReminder:
		return true
	}
	return false
}

// TaskStatus is shared by tasks and their executions.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusRunning, TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected for the status.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// ErrInvalidTask is returned when a task cannot be persisted as given.
var ErrInvalidTask = errors.New("invalid task")

// ValidationError reports an enumerated column holding a value this build does not know.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value %q", e.Field, e.Value)
}

// TaskPayload is the type-specific part of a task. Exactly one variant exists per TaskType.
type TaskPayload interface {
	Type() TaskType
}

type CommandPayload struct {
	Command string
}

func (CommandPayload) Type() TaskType { return TaskTypeShellCommand }

// APIPayload is an outbound HTTP call. Body holds JSON values in encoding/json's generic
// form: numbers are float64, arrays are []any and objects are map[string]any. Empty Headers
// and Body are stored as absent and read back as nil. Saving a task writes the normalized
// payload back, so a saved task and the one read back compare equal.
type APIPayload struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    map[string]any
}

func (APIPayload) Type() TaskType { return TaskTypeAPICall }

// Normalize returns the payload in the form it has after a save and a read.
func (p APIPayload) Normalize() APIPayload {
	out := APIPayload{URL: p.URL, Method: p.Method}
	if len(p.Headers) > 0 {
		out.Headers = make(map[string]string, len(p.Headers))
		for k, v := range p.Headers {
			out.Headers[k] = v
		}
	}
	if len(p.Body) > 0 {
		out.Body = normalizeJSONObject(p.Body)
	}
	return out
}

// NormalizePayload returns p as it reads back from storage.
func NormalizePayload(p TaskPayload) TaskPayload {
	if api, ok := p.(APIPayload); ok {
		return api.Normalize()
	}
	return p
}

type AIPromptPayload struct {
	Prompt string
}

func (AIPromptPayload) Type() TaskType { return TaskTypeAI }

type ReminderPayload struct {
	Title   string
	Message string
}

func (ReminderPayload) Type() TaskType { return TaskTypeReminder }

// Task is a scheduled unit of work.
//
// Saving a Task replaces the stored record as a whole: any field left at its zero value is
// written as such. Use TaskPatch for scheduler bookkeeping on a subset of fields.
type Task struct {
	ID             string
	Name           string
	Schedule       string
	Payload        TaskPayload
	Description    string
	Enabled        bool
	DoOnlyOnce     bool
	LastRun        *time.Time
	NextRun        *time.Time
	Status         TaskStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	User           string
	ConversationID string
}

// Type returns the payload's task type, or an empty string for a task without payload.
func (t *Task) Type() TaskType {
	if t.Payload == nil {
		return ""
	}
	return t.Payload.Type()
}

func (t Task) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ToEntity())
}

// TaskEntity is the stored row of a task. Column names are the storage contract shared with
// existing data and must not change.
type TaskEntity struct {
	ID              string            `gorm:"column:id;primaryKey;type:varchar(128)" json:"id"`
	Name            string            `gorm:"column:name;not null" json:"name"`
	Schedule        string            `gorm:"column:schedule;not null" json:"schedule"`
	Type            TaskType          `gorm:"column:type;type:varchar(32);not null" json:"type"`
	Command         *string           `gorm:"column:command;type:text" json:"command"`
	APIURL          *string           `gorm:"column:api_url;type:text" json:"api_url"`
	APIMethod       *string           `gorm:"column:api_method;type:varchar(16)" json:"api_method"`
	APIHeaders      datatypes.JSONMap `gorm:"column:api_headers" json:"api_headers"`
	APIBody         datatypes.JSONMap `gorm:"column:api_body" json:"api_body"`
	Prompt          *string           `gorm:"column:prompt;type:text" json:"prompt"`
	Description     *string           `gorm:"column:description;type:text" json:"description"`
	Enabled         bool              `gorm:"column:enabled;not null;index:idx_schedulertasks_enabled_status,priority:1" json:"enabled"`
	DoOnlyOnce      bool              `gorm:"column:do_only_once;not null" json:"do_only_once"`
	LastRun         *time.Time        `gorm:"column:last_run" json:"last_run"`
	NextRun         *time.Time        `gorm:"column:next_run;index:idx_schedulertasks_next_run" json:"next_run"`
	Status          TaskStatus        `gorm:"column:status;type:varchar(20);not null;index:idx_schedulertasks_enabled_status,priority:2" json:"status"`
	CreatedAt       time.Time         `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	ReminderTitle   *string           `gorm:"column:reminder_title;type:text" json:"reminder_title"`
	ReminderMessage *string           `gorm:"column:reminder_message;type:text" json:"reminder_message"`
	User            *string           `gorm:"column:user;type:varchar(128);index:idx_schedulertasks_user" json:"user"`
	ConversationID  *string           `gorm:"column:conversation_id;type:varchar(128)" json:"conversation_id"`
}

func (TaskEntity) TableName() string {
	return "schedulertasks"
}

// ToEntity flattens the task into its stored row. Only the columns of the payload's own
// variant are populated.
func (t *Task) ToEntity() *TaskEntity {
	e := &TaskEntity{
		ID:             t.ID,
		Name:           t.Name,
		Schedule:       t.Schedule,
		Type:           t.Type(),
		Description:    nullString(t.Description),
		Enabled:        t.Enabled,
		DoOnlyOnce:     t.DoOnlyOnce,
		LastRun:        normalizeTimePtr(t.LastRun),
		NextRun:        normalizeTimePtr(t.NextRun),
		Status:         t.Status,
		CreatedAt:      NormalizeTime(t.CreatedAt),
		UpdatedAt:      NormalizeTime(t.UpdatedAt),
		User:           nullString(t.User),
		ConversationID: nullString(t.ConversationID),
	}

	switch p := t.Payload.(type) {
	case CommandPayload:
		e.Command = nullString(p.Command)
	case APIPayload:
		p = p.Normalize()
		e.APIURL = nullString(p.URL)
		e.APIMethod = nullString(p.Method)
		if len(p.Headers) > 0 {
			e.APIHeaders = make(datatypes.JSONMap, len(p.Headers))
			for k, v := range p.Headers {
				e.APIHeaders[k] = v
			}
		}
		if len(p.Body) > 0 {
			e.APIBody = datatypes.JSONMap(p.Body)
		}
	case AIPromptPayload:
		e.Prompt = nullString(p.Prompt)
	case ReminderPayload:
		e.ReminderTitle = nullString(p.Title)
		e.ReminderMessage = nullString(p.Message)
	}
	return e
}

// ToTask rebuilds the domain task. Unknown type or status values yield a *ValidationError.
func (e *TaskEntity) ToTask() (*Task, error) {
	if !e.Status.Valid() {
		return nil, &ValidationError{Field: "status", Value: string(e.Status)}
	}

	t := &Task{
		ID:             e.ID,
		Name:           e.Name,
		Schedule:       e.Schedule,
		Description:    derefString(e.Description),
		Enabled:        e.Enabled,
		DoOnlyOnce:     e.DoOnlyOnce,
		LastRun:        normalizeTimePtr(e.LastRun),
		NextRun:        normalizeTimePtr(e.NextRun),
		Status:         e.Status,
		CreatedAt:      NormalizeTime(e.CreatedAt),
		UpdatedAt:      NormalizeTime(e.UpdatedAt),
		User:           derefString(e.User),
		ConversationID: derefString(e.ConversationID),
	}

	switch e.Type {
	case TaskTypeShellCommand:
		t.Payload = CommandPayload{Command: derefString(e.Command)}
	case TaskTypeAPICall:
		p := APIPayload{URL: derefString(e.APIURL), Method: derefString(e.APIMethod)}
		if len(e.APIHeaders) > 0 {
			p.Headers = make(map[string]string, len(e.APIHeaders))
			for k, v := range e.APIHeaders {
				p.Headers[k] = fmt.Sprint(v)
			}
		}
		if len(e.APIBody) > 0 {
			p.Body = normalizeJSONObject(e.APIBody)
		}
		t.Payload = p
	case TaskTypeAI:
		t.Payload = AIPromptPayload{Prompt: derefString(e.Prompt)}
	case TaskTypeReminder:
		t.Payload = ReminderPayload{Title: derefString(e.ReminderTitle), Message: derefString(e.ReminderMessage)}
	default:
		return nil, &ValidationError{Field: "type", Value: string(e.Type)}
	}
	return t, nil
}

// TaskPatch updates scheduler-owned fields without touching the rest of the record.
// Nil fields are left unchanged.
type TaskPatch struct {
	Enabled *bool
	Status  *TaskStatus
	LastRun *time.Time
	NextRun *time.Time
	// ClearNextRun sets next_run to NULL when NextRun is nil.
	ClearNextRun bool
}

type TaskQueryParam struct {
	Enabled   *bool
	Statuses  []TaskStatus
	User      *string
	DueBefore *time.Time
	Limit     int
}
