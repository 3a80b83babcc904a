// Package pipeline runs the detect, extract and assemble stages for a job
// and reports every checkpoint through the job registry.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/job"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/journal"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/storage"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/types"
	apptypes "github.com/mantonx/fragreel/internal/types"
)

// Executor drives jobs through the pipeline, one goroutine per job
type Executor struct {
	ctx      context.Context
	registry *job.Registry
	areas    *storage.Areas
	stages   types.Collaborators
	journal  *journal.Journal
	logger   hclog.Logger

	wg sync.WaitGroup
}

// NewExecutor creates an executor. ctx outlives every HTTP request and is
// only cancelled when the process gives up waiting for jobs on shutdown.
func NewExecutor(ctx context.Context, registry *job.Registry, areas *storage.Areas, stages types.Collaborators, jrnl *journal.Journal, logger hclog.Logger) *Executor {
	return &Executor{
		ctx:      ctx,
		registry: registry,
		areas:    areas,
		stages:   stages,
		journal:  jrnl,
		logger:   logger.Named("pipeline"),
	}
}

// Launch runs the pipeline for j in the background and returns immediately
func (e *Executor) Launch(j job.Job) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.Run(e.ctx, j)
	}()
}

// Wait blocks until every launched job has finished
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Run executes the pipeline for j synchronously
func (e *Executor) Run(ctx context.Context, j job.Job) {
	logger := e.logger.With("job_id", j.ID)
	run := &jobRun{
		Executor:  e,
		recordCtx: context.WithoutCancel(ctx),
		id:        j.ID,
		stage:     job.StageDetectingKills,
		logger:    logger,
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panicked", "stage", run.stage, "panic", r)
			run.fail(fmt.Errorf("internal error during %s: %v", run.stage, r))
		}
	}()

	videoPath := e.areas.IncomingPath(j.VideoFilename)
	audioPath := e.areas.IncomingPath(j.AudioFilename)
	timestampsPath := e.areas.TimestampsPath(j.ID)
	outputPath := e.areas.ArtifactPath(j.OutputFilename)

	logger.Info("pipeline started", "video", j.VideoFilename, "audio", j.AudioFilename)

	// Detect
	if !run.advance(job.StageDetectingKills, job.ProgressDetecting) {
		return
	}
	timestamps, err := e.stages.Detector.Detect(ctx, videoPath, timestampsPath)
	if err != nil {
		run.removeTimestamps()
		run.fail(err)
		return
	}
	logger.Info("kills detected", "count", len(timestamps))

	// Extract
	if !run.advance(job.StageExtractingClips, job.ProgressExtracting) {
		run.removeTimestamps()
		return
	}
	clipsDir, err := e.areas.JobClipsDir(j.ID)
	if err != nil {
		run.removeTimestamps()
		run.fail(err)
		return
	}
	clips, err := e.stages.Extractor.Extract(ctx, videoPath, timestampsPath, clipsDir)
	run.removeTimestamps()
	if err != nil {
		run.fail(err)
		return
	}
	logger.Info("clips extracted", "count", len(clips), "dir", clipsDir)

	// Assemble
	if !run.advance(job.StageGeneratingMontage, job.ProgressAssembling) {
		return
	}
	if err := e.stages.Assembler.Assemble(ctx, clipsDir, audioPath, outputPath); err != nil {
		run.fail(err)
		return
	}

	run.complete(len(timestamps), len(clips))
}

// jobRun carries the per-job state of one pipeline execution
type jobRun struct {
	*Executor
	// recordCtx stays live after cancellation so the final event of a
	// cancelled job still reaches the journal.
	recordCtx context.Context
	id        string
	stage     job.Stage
	logger    hclog.Logger
}

// advance moves the record to the next checkpoint. It returns false when
// the record is gone, which happens when storage was purged mid-run.
func (r *jobRun) advance(stage job.Stage, progress int) bool {
	r.stage = stage
	_, err := r.registry.Mutate(r.id, func(j *job.Job) error {
		j.Advance(stage, progress)
		return nil
	})
	if err != nil {
		r.logger.Warn("abandoning job", "stage", stage, "error", err)
		return false
	}

	r.logger.Debug("stage started", "stage", stage, "progress", progress)
	r.journal.Record(r.recordCtx, journal.JobEvent{
		JobID:    r.id,
		Type:     journal.EventStageStarted,
		Stage:    string(stage),
		Progress: progress,
	})
	return true
}

func (r *jobRun) complete(killCount, clipCount int) {
	snap, err := r.registry.Mutate(r.id, func(j *job.Job) error {
		j.Complete(killCount, clipCount)
		return nil
	})
	if err != nil {
		r.logger.Warn("could not mark job completed", "error", err)
		return
	}

	r.logger.Info("pipeline completed",
		"kills", killCount,
		"clips", clipCount,
		"output", snap.OutputFilename,
		"elapsed", snap.CompletedAt.Sub(snap.StartedAt).String())
	r.journal.Record(r.recordCtx, journal.JobEvent{
		JobID:    r.id,
		Type:     journal.EventCompleted,
		Stage:    string(r.stage),
		Progress: job.ProgressDone,
		Message:  snap.OutputFilename,
	})
}

// fail records err verbatim on the job. No retry is attempted and earlier
// side effects stay on disk until the next purge.
func (r *jobRun) fail(err error) {
	snap, mutateErr := r.registry.Mutate(r.id, func(j *job.Job) error {
		j.Fail(err)
		return nil
	})
	if mutateErr != nil {
		r.logger.Warn("could not mark job failed", "error", mutateErr, "cause", err)
		return
	}

	stageErr := apptypes.NewStageFailedError(string(r.stage), err)
	fields := []interface{}{"error_code", stageErr.Code, "error", stageErr.Message}
	for k, v := range stageErr.Context {
		fields = append(fields, k, v)
	}
	r.logger.Error("pipeline failed", fields...)
	r.journal.Record(r.recordCtx, journal.JobEvent{
		JobID:    r.id,
		Type:     journal.EventFailed,
		Stage:    string(r.stage),
		Progress: snap.Progress,
		Message:  stageErr.Message,
	})
}

func (r *jobRun) removeTimestamps() {
	if err := r.areas.RemoveTimestamps(r.id); err != nil {
		r.logger.Warn("failed to remove timestamps file", "error", err)
	}
}
