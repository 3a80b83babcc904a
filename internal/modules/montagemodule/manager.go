package montagemodule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/job"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/journal"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/pipeline"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/storage"
	mtypes "github.com/mantonx/fragreel/internal/modules/montagemodule/types"
	"github.com/mantonx/fragreel/internal/types"
	"github.com/mantonx/fragreel/internal/utils"
)

// Manager is the service façade the HTTP layer talks to. It validates
// inputs, owns the storage areas and hands jobs to the pipeline executor.
type Manager struct {
	areas           *storage.Areas
	registry        *job.Registry
	executor        *pipeline.Executor
	journal         *journal.Journal
	videoExtensions []string
	audioExtensions []string
	logger          hclog.Logger
}

// NewManager wires the façade over already constructed components
func NewManager(areas *storage.Areas, registry *job.Registry, executor *pipeline.Executor, jrnl *journal.Journal, videoExtensions, audioExtensions []string, logger hclog.Logger) *Manager {
	return &Manager{
		areas:           areas,
		registry:        registry,
		executor:        executor,
		journal:         jrnl,
		videoExtensions: videoExtensions,
		audioExtensions: audioExtensions,
		logger:          logger.Named("montage-manager"),
	}
}

// UploadVideo stores a gameplay video. The intermediate clips area is reset
// first so clips from an earlier run never leak into the next montage.
func (m *Manager) UploadVideo(ctx context.Context, filename string, r io.Reader) (*mtypes.UploadResult, error) {
	name, err := m.validateUpload(filename, m.videoExtensions)
	if err != nil {
		return nil, err
	}

	if err := m.areas.ResetClips(); err != nil {
		return nil, types.NewInternalError("Failed to reset clips area", err)
	}

	size, err := m.store(ctx, name, r)
	if err != nil {
		return nil, err
	}

	m.logger.Info("video uploaded", "filename", name, "size", humanize.Bytes(uint64(size)))
	return &mtypes.UploadResult{Filename: name, Size: size}, nil
}

// UploadAudio stores a music track and reports its embedded title and
// artist when the file carries tags
func (m *Manager) UploadAudio(ctx context.Context, filename string, r io.Reader) (*mtypes.UploadResult, error) {
	name, err := m.validateUpload(filename, m.audioExtensions)
	if err != nil {
		return nil, err
	}

	size, err := m.store(ctx, name, r)
	if err != nil {
		return nil, err
	}

	result := &mtypes.UploadResult{Filename: name, Size: size}
	if tags, err := readAudioTags(m.areas.IncomingPath(name)); err == nil {
		result.Title = tags.Title
		result.Artist = tags.Artist
	} else {
		m.logger.Debug("no audio tags", "filename", name, "error", err)
	}

	m.logger.Info("audio uploaded", "filename", name, "size", humanize.Bytes(uint64(size)), "title", result.Title)
	return result, nil
}

// Submit starts a montage job for two previously uploaded files and returns
// its id without waiting for the pipeline
func (m *Manager) Submit(ctx context.Context, videoFilename, audioFilename string) (string, error) {
	video := utils.SanitizeFilename(videoFilename)
	audio := utils.SanitizeFilename(audioFilename)

	if !m.areas.HasIncoming(video) {
		return "", types.NewNotFoundError("Video file not found").WithContext("filename", videoFilename)
	}
	if !m.areas.HasIncoming(audio) {
		return "", types.NewNotFoundError("Audio file not found").WithContext("filename", audioFilename)
	}

	j := m.registry.Create(video, audio)
	m.journal.Record(ctx, journal.JobEvent{
		JobID:    j.ID,
		Type:     journal.EventCreated,
		Stage:    string(j.Stage),
		Progress: j.Progress,
		Message:  fmt.Sprintf("%s + %s", video, audio),
	})
	m.executor.Launch(j)

	m.logger.Info("job submitted", "job_id", j.ID, "video", video, "audio", audio)
	return j.ID, nil
}

// Status returns a snapshot of a job
func (m *Manager) Status(id string) (job.Job, error) {
	if !utils.IsValidUUID(id) {
		return job.Job{}, types.NewNotFoundError("Job not found").WithContext("job_id", id)
	}
	j, err := m.registry.Get(id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return job.Job{}, types.NewNotFoundError("Job not found").WithContext("job_id", id)
		}
		return job.Job{}, types.NewInternalError("Failed to read job", err)
	}
	return j, nil
}

// ListJobs returns every known job, oldest first
func (m *Manager) ListJobs() []job.Job {
	return m.registry.List()
}

// JobEvents returns the journal of a known job
func (m *Manager) JobEvents(ctx context.Context, id string) ([]journal.JobEvent, error) {
	if _, err := m.Status(id); err != nil {
		return nil, err
	}

	events, err := m.journal.Events(ctx, id)
	if err != nil {
		return nil, types.NewInternalError("Failed to load job events", err)
	}
	return events, nil
}

// OpenArtifact resolves a finished artifact name to its path
func (m *Manager) OpenArtifact(filename string) (string, error) {
	name := utils.SanitizeFilename(filename)
	if !m.areas.HasArtifact(name) {
		return "", types.NewNotFoundError("File not found").WithContext("filename", filename)
	}
	return m.areas.ArtifactPath(name), nil
}

// PurgeAll empties every storage area and forgets every job. Jobs still
// running when this is called will fail or be abandoned; callers purge
// between runs, not during them.
func (m *Manager) PurgeAll(ctx context.Context) error {
	if err := m.areas.PurgeAll(ctx); err != nil {
		return types.NewInternalError("Cleanup failed", err)
	}

	removed := m.registry.Clear()
	if err := m.journal.Clear(ctx); err != nil {
		m.logger.Warn("failed to clear job journal", "error", err)
	}

	m.logger.Info("cleanup completed", "jobs_removed", removed)
	return nil
}

// Wait blocks until every launched job has finished
func (m *Manager) Wait() {
	m.executor.Wait()
}

// ModelAvailable reports whether the detector model file is present
func ModelAvailable(modelPath string) bool {
	info, err := os.Stat(modelPath)
	return err == nil && !info.IsDir()
}

func (m *Manager) validateUpload(filename string, allowed []string) (string, error) {
	if filename == "" {
		return "", types.NewValidationError("No selected file")
	}

	invalid := types.NewValidationError("Invalid file type. Allowed types: " + allowedList(allowed))
	if !utils.HasAllowedExtension(filename, allowed) {
		return "", invalid.WithContext("filename", filename)
	}

	name := utils.SanitizeFilename(filename)
	if !utils.HasAllowedExtension(name, allowed) {
		return "", invalid.WithContext("filename", filename)
	}
	return name, nil
}

func (m *Manager) store(ctx context.Context, name string, r io.Reader) (int64, error) {
	size, err := m.areas.StoreIncoming(ctx, name, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return 0, types.NewPayloadTooLargeError(maxErr.Limit)
		}
		return 0, types.NewInternalError("Failed to store upload", err)
	}
	return size, nil
}

func allowedList(exts []string) string {
	upper := make([]string, len(exts))
	for i, e := range exts {
		upper[i] = strings.ToUpper(e)
	}
	return strings.Join(upper, ", ")
}
