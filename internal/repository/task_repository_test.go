package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang-task-scheduler-core/internal/models"
	"golang-task-scheduler-core/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var clockStart = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

func TestTaskRepositorySaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestTaskRepository(t, newTestDB(t), clockStart)

	lastRun := time.Date(2026, 5, 3, 9, 0, 0, 250000000, time.FixedZone("CET", 3600))
	task := reminderTask("t1", "u1")
	task.Description = "daily stand-up"
	task.LastRun = &lastRun

	require.NoError(t, repo.Save(ctx, task))
	assert.Equal(t, clockStart, task.UpdatedAt)
	assert.Equal(t, clockStart, task.CreatedAt)
	require.NotNil(t, task.LastRun)
	assert.Equal(t, time.UTC, task.LastRun.Location())

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task, got)
}

func TestTaskRepositorySaveEveryPayload(t *testing.T) {
	ctx := context.Background()
	repo := newTestTaskRepository(t, newTestDB(t), clockStart)

	tests := []struct {
		id      string
		payload models.TaskPayload
		want    models.TaskPayload
	}{
		{
			id:      "cmd",
			payload: models.CommandPayload{Command: "backup.sh --full"},
			want:    models.CommandPayload{Command: "backup.sh --full"},
		},
		{
			id:      "ai",
			payload: models.AIPromptPayload{Prompt: "what is on my calendar"},
			want:    models.AIPromptPayload{Prompt: "what is on my calendar"},
		},
		{
			id:      "reminder",
			payload: models.ReminderPayload{Title: "Water", Message: "drink"},
			want:    models.ReminderPayload{Title: "Water", Message: "drink"},
		},
		{
			id: "api",
			payload: models.APIPayload{
				URL:     "https://example.com/hook",
				Method:  "POST",
				Headers: map[string]string{"Authorization": "Bearer x"},
				Body:    map[string]any{"name": "scheduler", "nested": map[string]any{"ok": true}},
			},
			want: models.APIPayload{
				URL:     "https://example.com/hook",
				Method:  "POST",
				Headers: map[string]string{"Authorization": "Bearer x"},
				Body:    map[string]any{"name": "scheduler", "nested": map[string]any{"ok": true}},
			},
		},
		{
			id: "api-numbers",
			payload: models.APIPayload{
				URL:     "https://example.com/metrics",
				Method:  "PUT",
				Headers: map[string]string{},
				Body: map[string]any{
					"n":      1,
					"ratio":  0.5,
					"nested": []int{1, 2},
					"deep":   map[string]any{"count": int64(3), "tags": []string{"a"}},
				},
			},
			want: models.APIPayload{
				URL:    "https://example.com/metrics",
				Method: "PUT",
				Body: map[string]any{
					"n":      float64(1),
					"ratio":  0.5,
					"nested": []any{float64(1), float64(2)},
					"deep":   map[string]any{"count": float64(3), "tags": []any{"a"}},
				},
			},
		},
		{
			id:      "api-empty",
			payload: models.APIPayload{URL: "https://example.com", Method: "GET", Headers: map[string]string{}, Body: map[string]any{}},
			want:    models.APIPayload{URL: "https://example.com", Method: "GET"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			task := reminderTask(tt.id, "u1")
			task.Payload = tt.payload
			require.NoError(t, repo.Save(ctx, task))
			assert.Equal(t, tt.want, task.Payload)

			got, err := repo.Get(ctx, tt.id)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Payload)
			assert.Equal(t, task, got)
			assert.Equal(t, tt.want.Type(), got.Type())
		})
	}
}

func TestTaskRepositorySaveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newTestTaskRepository(t, db, clockStart)

	task := reminderTask("t1", "u1")
	require.NoError(t, repo.Save(ctx, task))
	require.NoError(t, repo.Save(ctx, task))

	var count int64
	require.NoError(t, db.Model(&models.TaskEntity{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task.Name, got.Name)
	assert.Equal(t, clockStart.Add(time.Second), got.UpdatedAt)
	assert.Equal(t, clockStart, got.CreatedAt)
}

func TestTaskRepositorySaveKeepsUpdatedAtMonotonic(t *testing.T) {
	ctx := context.Background()
	repo := newTestTaskRepository(t, newTestDB(t), clockStart)

	task := reminderTask("t1", "u1")
	task.UpdatedAt = clockStart.Add(time.Hour)
	require.NoError(t, repo.Save(ctx, task))
	assert.Equal(t, clockStart.Add(time.Hour+time.Microsecond), task.UpdatedAt)
}

func TestTaskRepositorySaveReplacesWholeRecord(t *testing.T) {
	ctx := context.Background()
	repo := newTestTaskRepository(t, newTestDB(t), clockStart)

	next := clockStart.Add(time.Hour)
	task := reminderTask("t1", "u1")
	task.Description = "first"
	task.NextRun = &next
	require.NoError(t, repo.Save(ctx, task))

	replacement := &models.Task{
		ID:       "t1",
		Name:     "renamed",
		Schedule: "@hourly",
		Payload:  models.CommandPayload{Command: "date"},
	}
	require.NoError(t, repo.Save(ctx, replacement))

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, models.CommandPayload{Command: "date"}, got.Payload)
	assert.Empty(t, got.Description)
	assert.Empty(t, got.User)
	assert.Empty(t, got.ConversationID)
	assert.Nil(t, got.NextRun)
	assert.False(t, got.Enabled)
	assert.Equal(t, models.TaskStatusPending, got.Status)
}

func TestTaskRepositorySaveInvalid(t *testing.T) {
	ctx := context.Background()
	repo := newTestTaskRepository(t, newTestDB(t), clockStart)

	tests := []struct {
		name string
		task *models.Task
	}{
		{name: "nil task", task: nil},
		{name: "empty id", task: &models.Task{Payload: models.AIPromptPayload{Prompt: "x"}}},
		{name: "no payload", task: &models.Task{ID: "t1"}},
		{name: "unknown status", task: &models.Task{ID: "t1", Payload: models.AIPromptPayload{}, Status: "paused"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.Save(ctx, tt.task)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidTask))
		})
	}
}

func TestTaskRepositoryGetMissing(t *testing.T) {
	repo := newTestTaskRepository(t, newTestDB(t), clockStart)

	got, err := repo.Get(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestTaskRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestTaskRepository(t, newTestDB(t), clockStart)
	require.NoError(t, repo.Save(ctx, reminderTask("t1", "u1")))

	deleted, err := repo.Delete(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, deleted)

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)

	deleted, err = repo.Delete(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestTaskRepositoryListByUser(t *testing.T) {
	ctx := context.Background()
	repo := newTestTaskRepository(t, newTestDB(t), clockStart)

	require.NoError(t, repo.Save(ctx, reminderTask("b", "u1")))
	require.NoError(t, repo.Save(ctx, reminderTask("a", "u1")))
	require.NoError(t, repo.Save(ctx, reminderTask("c", "u2")))
	require.NoError(t, repo.Save(ctx, reminderTask("d", "")))

	tasks, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].ID)
	assert.Equal(t, "b", tasks[1].ID)

	tasks, err = repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestTaskRepositoryListDue(t *testing.T) {
	ctx := context.Background()
	repo := newTestTaskRepository(t, newTestDB(t), clockStart)

	at := func(d time.Duration) *time.Time {
		v := clockStart.Add(d)
		return &v
	}
	fixtures := []struct {
		id      string
		enabled bool
		status  models.TaskStatus
		nextRun *time.Time
	}{
		{id: "due-late", enabled: true, status: models.TaskStatusPending, nextRun: at(-time.Minute)},
		{id: "due-early", enabled: true, status: models.TaskStatusPending, nextRun: at(-time.Hour)},
		{id: "future", enabled: true, status: models.TaskStatusPending, nextRun: at(time.Hour)},
		{id: "disabled", enabled: false, status: models.TaskStatusPending, nextRun: at(-time.Hour)},
		{id: "running", enabled: true, status: models.TaskStatusRunning, nextRun: at(-time.Hour)},
		{id: "unscheduled", enabled: true, status: models.TaskStatusPending},
	}
	for _, f := range fixtures {
		task := reminderTask(f.id, "u1")
		task.Enabled = f.enabled
		task.Status = f.status
		task.NextRun = f.nextRun
		require.NoError(t, repo.Save(ctx, task))
	}

	tasks, err := repo.List(ctx, models.TaskQueryParam{
		Enabled:   utils.ToPointer(true),
		Statuses:  []models.TaskStatus{models.TaskStatusPending, models.TaskStatusFailed},
		DueBefore: utils.ToPointer(clockStart),
	})
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "due-early", tasks[0].ID)
	assert.Equal(t, "due-late", tasks[1].ID)

	tasks, err = repo.List(ctx, models.TaskQueryParam{
		Enabled:   utils.ToPointer(true),
		DueBefore: utils.ToPointer(clockStart),
		Limit:     1,
	})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "due-early", tasks[0].ID)
}

func TestTaskRepositoryPatch(t *testing.T) {
	ctx := context.Background()
	repo := newTestTaskRepository(t, newTestDB(t), clockStart)

	next := clockStart.Add(time.Hour)
	task := reminderTask("t1", "u1")
	task.Description = "keep me"
	task.NextRun = &next
	require.NoError(t, repo.Save(ctx, task))

	ran := clockStart.Add(2 * time.Hour)
	running := models.TaskStatusRunning
	found, err := repo.Patch(ctx, "t1", models.TaskPatch{Status: &running, LastRun: &ran})
	require.NoError(t, err)
	assert.True(t, found)

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusRunning, got.Status)
	require.NotNil(t, got.LastRun)
	assert.Equal(t, ran, *got.LastRun)
	assert.Equal(t, "keep me", got.Description)
	require.NotNil(t, got.NextRun)
	assert.Equal(t, next, *got.NextRun)
	assert.Equal(t, task.Payload, got.Payload)
	assert.True(t, got.UpdatedAt.After(task.UpdatedAt))

	found, err = repo.Patch(ctx, "t1", models.TaskPatch{Enabled: utils.ToPointer(false), ClearNextRun: true})
	require.NoError(t, err)
	assert.True(t, found)

	got, err = repo.Get(ctx, "t1")
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Nil(t, got.NextRun)

	found, err = repo.Patch(ctx, "missing", models.TaskPatch{Status: &running})
	require.NoError(t, err)
	assert.False(t, found)

	bogus := models.TaskStatus("paused")
	_, err = repo.Patch(ctx, "t1", models.TaskPatch{Status: &bogus})
	assert.True(t, errors.Is(err, models.ErrInvalidTask))
}

func TestTaskRepositoryWithTxRollback(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newTestTaskRepository(t, db, clockStart)

	errRollback := errors.New("rollback")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.Save(ctx, reminderTask("t1", "u1"), utils.WithTx(tx)); err != nil {
			return err
		}
		got, err := repo.Get(ctx, "t1", utils.WithTx(tx))
		if err != nil {
			return err
		}
		assert.NotNil(t, got)
		return errRollback
	})
	require.ErrorIs(t, err, errRollback)

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTaskRepositoryInvalidStoredRecord(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newTestTaskRepository(t, db, clockStart)

	require.NoError(t, repo.Save(ctx, reminderTask("good", "u1")))
	require.NoError(t, repo.Save(ctx, reminderTask("bad", "u1")))
	require.NoError(t, db.Exec("UPDATE schedulertasks SET status = ? WHERE id = ?", "paused", "bad").Error)

	tasks, err := repo.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "good", tasks[0].ID)

	got, err := repo.Get(ctx, "bad")
	assert.Nil(t, got)
	var validationErr *models.ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "status", validationErr.Field)
	assert.False(t, IsStoreError(err))
}

func TestTaskRepositoryStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := newTestTaskRepository(t, db, clockStart)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = repo.Get(ctx, "t1")
	assert.True(t, IsStoreError(err))

	err = repo.Save(ctx, reminderTask("t1", "u1"))
	assert.True(t, IsStoreError(err))

	_, err = repo.ListAll(ctx)
	assert.True(t, IsStoreError(err))

	_, err = repo.Delete(ctx, "t1")
	assert.True(t, IsStoreError(err))
}
