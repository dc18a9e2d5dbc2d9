package repository

import (
	"context"
	"testing"
	"time"

	"golang-task-scheduler-core/internal/models"
	"golang-task-scheduler-core/internal/testutil"
	"golang-task-scheduler-core/internal/utils"
	"golang-task-scheduler-core/pkg/postgres"
	"golang-task-scheduler-core/pkg/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresRepositories(t *testing.T) {
	ctx := context.Background()
	url := testutil.StartPostgres(t)

	db, err := postgres.NewDB(postgres.Config{URL: url, Namespace: "scheduler_it", LogLevel: "Silent"}, newTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, ProvisionSchema(ctx, db.DB))
	require.NoError(t, ProvisionSchema(ctx, db.DB))

	tasks := NewTaskRepository(db.DB, newTestLogger())
	executions := NewTaskExecutionRepository(db.DB, newTestLogger())

	next := time.Now().Add(-time.Minute)
	task := &models.Task{
		ID:             "t1",
		Name:           "api ping",
		Schedule:       "*/5 * * * *",
		Payload:        models.APIPayload{URL: "https://example.com", Method: "GET", Headers: map[string]string{"Accept": "text/plain"}},
		Enabled:        true,
		NextRun:        &next,
		User:           "u1",
		ConversationID: "c1",
	}
	require.NoError(t, tasks.Save(ctx, task))

	got, err := tasks.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, task, got)

	due, err := tasks.List(ctx, models.TaskQueryParam{
		Enabled:   &task.Enabled,
		Statuses:  []models.TaskStatus{models.TaskStatusPending},
		DueBefore: utils.ToPointer(time.Now()),
	})
	require.NoError(t, err)
	require.Len(t, due, 1)

	t0 := time.Now()
	first := models.NewTaskExecution(task, t0)
	second := models.NewTaskExecution(task, t0.Add(time.Second))
	require.NoError(t, executions.Save(ctx, first))
	require.NoError(t, executions.Save(ctx, second))
	second.Finish(models.TaskStatusCompleted, "200 OK", "", t0.Add(2*time.Second))
	require.NoError(t, executions.Save(ctx, second))

	list, err := executions.ListForTask(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, *second, list[0])

	byUser, err := executions.ListForUser(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	deleted, err := tasks.Delete(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestRedisDeliveryJournal(t *testing.T) {
	ctx := context.Background()
	host, port := testutil.StartRedis(t)

	client, err := redis.NewClient(ctx, redis.Config{Host: host, Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	journal := NewDeliveryJournalRepository(client.Client, 100)
	for _, success := range []bool{true, false, true} {
		require.NoError(t, journal.Append(ctx, &models.DeliveryRecord{
			Kind:    models.DeliveryKindResult,
			TaskID:  "t1",
			UserID:  "u1",
			Success: success,
			Time:    time.Now().UTC(),
		}))
	}

	records, err := journal.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Success)
	assert.False(t, records[1].Success)
	assert.NotEmpty(t, records[0].StreamID)
}
