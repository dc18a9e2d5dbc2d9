package repository

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"golang-task-scheduler-core/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newTestDB opens a fresh SQLite database with the task schema provisioned.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "scheduler.db")), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, ProvisionSchema(context.Background(), db))
	return db
}

// fixedClock returns a clock advancing by one second on every call.
func fixedClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		now := current
		current = current.Add(time.Second)
		return now
	}
}

func newTestTaskRepository(t *testing.T, db *gorm.DB, start time.Time) *taskRepository {
	t.Helper()
	repo := NewTaskRepository(db, newTestLogger()).(*taskRepository)
	repo.now = fixedClock(start)
	return repo
}

func reminderTask(id, user string) *models.Task {
	return &models.Task{
		ID:             id,
		Name:           "reminder " + id,
		Schedule:       "0 9 * * *",
		Payload:        models.ReminderPayload{Title: "Stand-up", Message: "in 5 minutes"},
		Enabled:        true,
		Status:         models.TaskStatusPending,
		User:           user,
		ConversationID: "conv-" + user,
	}
}
