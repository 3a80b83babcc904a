package journal

import "time"

// EventType names a job lifecycle event
type EventType string

const (
	EventCreated      EventType = "created"
	EventStageStarted EventType = "stage_started"
	EventCompleted    EventType = "completed"
	EventFailed       EventType = "failed"
)

// JobEvent is one row of the job journal
type JobEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	JobID     string    `gorm:"index;not null" json:"jobId"`
	Type      EventType `gorm:"not null" json:"type"`
	Stage     string    `json:"stage,omitempty"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName pins the table name
func (JobEvent) TableName() string {
	return "job_events"
}
