package job

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrJobNotFound is returned when an id has no record in the registry
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a mutation breaks the job state machine
	ErrInvalidTransition = errors.New("invalid job transition")
)

// Status is the coarse lifecycle state of a job
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition is allowed
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage is the pipeline step a job is in
type Stage string

const (
	StageDetectingKills    Stage = "detecting_kills"
	StageExtractingClips   Stage = "extracting_clips"
	StageGeneratingMontage Stage = "generating_montage"
)

var stageOrder = map[Stage]int{
	StageDetectingKills:    0,
	StageExtractingClips:   1,
	StageGeneratingMontage: 2,
}

// Progress checkpoints reported by the pipeline
const (
	ProgressCreated    = 0
	ProgressDetecting  = 10
	ProgressExtracting = 30
	ProgressAssembling = 50
	ProgressDone       = 100
)

// Job is one montage request and its state machine. Values handed out by the
// registry are independent copies.
type Job struct {
	ID             string     `json:"jobId"`
	Status         Status     `json:"status"`
	Stage          Stage      `json:"stage"`
	Progress       int        `json:"progress"`
	StartedAt      time.Time  `json:"startedAt"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
	OutputFilename string     `json:"outputFilename"`
	Error          string     `json:"error,omitempty"`
	KillCount      *int       `json:"killCount,omitempty"`
	ClipCount      *int       `json:"clipCount,omitempty"`
	VideoFilename  string     `json:"videoFilename"`
	AudioFilename  string     `json:"audioFilename"`
}

// OutputFilenameFor returns the artifact name reserved for a job id
func OutputFilenameFor(id string) string {
	return fmt.Sprintf("montage_%s.mp4", id)
}

// Clone returns a deep copy of the job
func (j Job) Clone() Job {
	c := j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.KillCount != nil {
		n := *j.KillCount
		c.KillCount = &n
	}
	if j.ClipCount != nil {
		n := *j.ClipCount
		c.ClipCount = &n
	}
	return c
}

// Advance moves a processing job to a later stage and checkpoint
func (j *Job) Advance(stage Stage, progress int) {
	j.Stage = stage
	j.Progress = progress
}

// Complete marks the job as finished with its counts
func (j *Job) Complete(killCount, clipCount int) {
	now := time.Now()
	j.Status = StatusCompleted
	j.Progress = ProgressDone
	j.CompletedAt = &now
	j.KillCount = &killCount
	j.ClipCount = &clipCount
}

// Fail marks the job as failed with the collaborator error text
func (j *Job) Fail(err error) {
	now := time.Now()
	j.Status = StatusFailed
	j.CompletedAt = &now
	j.Error = err.Error()
}

// validateTransition checks that next is a legal successor of prev
func validateTransition(prev, next Job) error {
	switch {
	case prev.Status.IsTerminal():
		return fmt.Errorf("%w: job %s is already %s", ErrInvalidTransition, prev.ID, prev.Status)
	case next.ID != prev.ID || next.OutputFilename != prev.OutputFilename || !next.StartedAt.Equal(prev.StartedAt):
		return fmt.Errorf("%w: identity fields of job %s are immutable", ErrInvalidTransition, prev.ID)
	case next.Status != StatusProcessing && !next.Status.IsTerminal():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next.Status)
	}

	nextRank, ok := stageOrder[next.Stage]
	if !ok {
		return fmt.Errorf("%w: unknown stage %q", ErrInvalidTransition, next.Stage)
	}
	if nextRank < stageOrder[prev.Stage] {
		return fmt.Errorf("%w: stage %s cannot follow %s", ErrInvalidTransition, next.Stage, prev.Stage)
	}
	if next.Progress < prev.Progress || next.Progress > ProgressDone {
		return fmt.Errorf("%w: progress %d cannot follow %d", ErrInvalidTransition, next.Progress, prev.Progress)
	}
	if next.Status != StatusFailed && next.Error != "" {
		return fmt.Errorf("%w: only failed jobs carry an error", ErrInvalidTransition)
	}
	if next.Status == StatusFailed && next.Error == "" {
		return fmt.Errorf("%w: failed job %s has no error", ErrInvalidTransition, prev.ID)
	}
	return nil
}
