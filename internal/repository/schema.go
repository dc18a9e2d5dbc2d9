package repository

import (
	"context"
	"fmt"

	"golang-task-scheduler-core/internal/models"

	"gorm.io/gorm"
)

var schemaIndexes = []struct {
	model   any
	indexes []string
}{
	{
		model: &models.TaskEntity{},
		indexes: []string{
			"idx_schedulertasks_enabled_status",
			"idx_schedulertasks_next_run",
			"idx_schedulertasks_user",
		},
	},
	{
		model: &models.TaskExecutionEntity{},
		indexes: []string{
			"idx_schedulerexecutions_task_id",
			"idx_schedulerexecutions_user",
			"idx_schedulerexecutions_task_start",
		},
	},
}

// ProvisionSchema creates the task and execution tables and their indexes when missing.
// Existing tables and indexes are left as they are; columns are never altered.
func ProvisionSchema(ctx context.Context, db *gorm.DB) error {
	migrator := db.WithContext(ctx).Migrator()
	for _, s := range schemaIndexes {
		if !migrator.HasTable(s.model) {
			if err := migrator.CreateTable(s.model); err != nil {
				return storeError("provision schema", fmt.Errorf("create table: %w", err))
			}
		}
		for _, name := range s.indexes {
			if migrator.HasIndex(s.model, name) {
				continue
			}
			if err := migrator.CreateIndex(s.model, name); err != nil {
				return storeError("provision schema", fmt.Errorf("create index %s: %w", name, err))
			}
		}
	}
	return nil
}
