// Package journal keeps an append-only log of job lifecycle events. It is an
// audit trail only: write failures are logged and never reach a job.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
)

// Journal records job events through gorm. A Journal without a database
// accepts every call and stores nothing.
type Journal struct {
	db     *gorm.DB
	logger hclog.Logger
}

// New creates a journal and migrates its table
func New(db *gorm.DB, logger hclog.Logger) (*Journal, error) {
	if err := db.AutoMigrate(&JobEvent{}); err != nil {
		return nil, fmt.Errorf("failed to migrate job journal: %w", err)
	}
	return &Journal{db: db, logger: logger.Named("job-journal")}, nil
}

// Disabled returns a journal that stores nothing
func Disabled(logger hclog.Logger) *Journal {
	return &Journal{logger: logger.Named("job-journal")}
}

// Enabled reports whether events are persisted
func (j *Journal) Enabled() bool {
	return j.db != nil
}

// Record appends an event. Errors are logged and returned for callers that
// care; the pipeline ignores them.
func (j *Journal) Record(ctx context.Context, event JobEvent) error {
	if j.db == nil {
		return nil
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	if err := j.db.WithContext(ctx).Create(&event).Error; err != nil {
		j.logger.Warn("failed to record job event", "job_id", event.JobID, "type", event.Type, "error", err)
		return err
	}
	return nil
}

// Events returns every event of a job in the order they were recorded
func (j *Journal) Events(ctx context.Context, jobID string) ([]JobEvent, error) {
	if j.db == nil {
		return []JobEvent{}, nil
	}

	var events []JobEvent
	err := j.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load job events: %w", err)
	}
	return events, nil
}

// Clear removes every event
func (j *Journal) Clear(ctx context.Context) error {
	if j.db == nil {
		return nil
	}

	result := j.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&JobEvent{})
	if result.Error != nil {
		return fmt.Errorf("failed to clear job journal: %w", result.Error)
	}
	j.logger.Debug("cleared job journal", "removed", result.RowsAffected)
	return nil
}
