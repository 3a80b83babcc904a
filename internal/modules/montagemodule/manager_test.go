package montagemodule

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/fragreel/internal/config"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/job"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/journal"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/montagetest"
	"github.com/mantonx/fragreel/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestModule(t *testing.T, fake *montagetest.Pipeline) *Module {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Journal.DSN = ":memory:"
	cfg.Pipeline.ModelPath = filepath.Join(cfg.Storage.DataDir, "best.pt")

	m, err := NewModuleWithStages(context.Background(), cfg, fake.Collaborators(), hclog.NewNullLogger())
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func waitForTerminal(t *testing.T, mgr *Manager, id string) job.Job {
	t.Helper()
	var last job.Job
	require.Eventually(t, func() bool {
		j, err := mgr.Status(id)
		if err != nil {
			return false
		}
		last = j
		return j.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return last
}

func TestUploadVideo_StoresSanitizedName(t *testing.T) {
	m := setupTestModule(t, montagetest.NewPipeline())

	result, err := m.Manager().UploadVideo(context.Background(), "../My Match.MP4", strings.NewReader("video-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "My_Match.MP4", result.Filename)
	assert.Equal(t, int64(len("video-bytes")), result.Size)
	data, err := os.ReadFile(m.Areas().IncomingPath("My_Match.MP4"))
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
}

func TestUploadVideo_RejectsExtension(t *testing.T) {
	m := setupTestModule(t, montagetest.NewPipeline())

	_, err := m.Manager().UploadVideo(context.Background(), "clip.exe", strings.NewReader("MZ"))
	require.Error(t, err)

	assert.True(t, types.IsCode(err, types.ErrorCodeValidation))
	assert.Contains(t, err.Error(), "Invalid file type. Allowed types: MP4, MOV, AVI")
	assert.Empty(t, dirEntries(t, m.Areas().IncomingDir()))
}

func TestUploadVideo_RejectsEmptyName(t *testing.T) {
	m := setupTestModule(t, montagetest.NewPipeline())

	_, err := m.Manager().UploadVideo(context.Background(), "", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No selected file")
}

func TestUploadVideo_EmptiesClipsArea(t *testing.T) {
	m := setupTestModule(t, montagetest.NewPipeline())

	leftover := filepath.Join(m.Areas().ClipsDir(), "old-job")
	require.NoError(t, os.MkdirAll(leftover, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(leftover, "kill_clip_001.mp4"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(m.Areas().ClipsDir(), "kill_clip_002.mp4"), []byte("x"), 0644))

	_, err := m.Manager().UploadVideo(context.Background(), "match.mp4", strings.NewReader("video"))
	require.NoError(t, err)

	assert.DirExists(t, m.Areas().ClipsDir())
	assert.Empty(t, dirEntries(t, m.Areas().ClipsDir()))
}

func TestUpload_CancelledContext(t *testing.T) {
	m := setupTestModule(t, montagetest.NewPipeline())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Manager().UploadVideo(ctx, "match.mp4", strings.NewReader("video"))
	require.ErrorIs(t, err, context.Canceled)
	_, err = m.Manager().UploadAudio(ctx, "track.mp3", strings.NewReader("audio"))
	require.ErrorIs(t, err, context.Canceled)

	assert.Empty(t, dirEntries(t, m.Areas().IncomingDir()))
}

func TestUploadAudio(t *testing.T) {
	m := setupTestModule(t, montagetest.NewPipeline())

	result, err := m.Manager().UploadAudio(context.Background(), "track.WAV", strings.NewReader("not really audio"))
	require.NoError(t, err)
	assert.Equal(t, "track.WAV", result.Filename)
	assert.Empty(t, result.Title)
	assert.Empty(t, result.Artist)

	_, err = m.Manager().UploadAudio(context.Background(), "track.flac", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Allowed types: MP3, WAV")
}

func TestSubmit_MissingInputs(t *testing.T) {
	m := setupTestModule(t, montagetest.NewPipeline())
	mgr := m.Manager()

	_, err := mgr.Submit(context.Background(), "missing.mp4", "track.mp3")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrorCodeNotFound))
	assert.Contains(t, err.Error(), "Video file not found")

	_, err = mgr.UploadVideo(context.Background(), "match.mp4", strings.NewReader("video"))
	require.NoError(t, err)
	_, err = mgr.Submit(context.Background(), "match.mp4", "missing.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Audio file not found")

	assert.Empty(t, mgr.ListJobs())
}

func TestSubmit_RunsToCompletion(t *testing.T) {
	m := setupTestModule(t, montagetest.NewPipeline())
	mgr := m.Manager()
	ctx := context.Background()

	_, err := mgr.UploadVideo(ctx, "match.mp4", strings.NewReader("video"))
	require.NoError(t, err)
	_, err = mgr.UploadAudio(ctx, "track.mp3", strings.NewReader("audio"))
	require.NoError(t, err)

	id, err := mgr.Submit(ctx, "match.mp4", "track.mp3")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	j := waitForTerminal(t, mgr, id)
	mgr.Wait()
	assert.Equal(t, job.StatusCompleted, j.Status)
	assert.Equal(t, 100, j.Progress)
	assert.Equal(t, job.OutputFilenameFor(id), j.OutputFilename)

	path, err := mgr.OpenArtifact(j.OutputFilename)
	require.NoError(t, err)
	assert.FileExists(t, path)

	events, err := mgr.JobEvents(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, journal.EventCreated, events[0].Type)
	assert.Equal(t, journal.EventCompleted, events[len(events)-1].Type)
}

func TestStatus_NotFound(t *testing.T) {
	m := setupTestModule(t, montagetest.NewPipeline())

	_, err := m.Manager().Status("does-not-exist")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrorCodeNotFound))

	_, err = m.Manager().JobEvents(context.Background(), "does-not-exist")
	assert.True(t, types.IsCode(err, types.ErrorCodeNotFound))
}

func TestOpenArtifact(t *testing.T) {
	m := setupTestModule(t, montagetest.NewPipeline())
	mgr := m.Manager()

	_, err := mgr.OpenArtifact("montage_nope.mp4")
	assert.True(t, types.IsCode(err, types.ErrorCodeNotFound))

	require.NoError(t, os.WriteFile(m.Areas().ArtifactPath("montage_abc.mp4"), []byte("mp4"), 0644))
	secret := filepath.Join(m.Areas().DataDir(), "secret.mp4")
	require.NoError(t, os.WriteFile(secret, []byte("secret"), 0644))

	path, err := mgr.OpenArtifact("montage_abc.mp4")
	require.NoError(t, err)
	assert.Equal(t, m.Areas().ArtifactPath("montage_abc.mp4"), path)

	_, err = mgr.OpenArtifact("../secret.mp4")
	assert.True(t, types.IsCode(err, types.ErrorCodeNotFound))
}

func TestPurgeAll(t *testing.T) {
	m := setupTestModule(t, montagetest.NewPipeline())
	mgr := m.Manager()
	ctx := context.Background()

	_, err := mgr.UploadVideo(ctx, "match.mp4", strings.NewReader("video"))
	require.NoError(t, err)
	_, err = mgr.UploadAudio(ctx, "track.mp3", strings.NewReader("audio"))
	require.NoError(t, err)
	id, err := mgr.Submit(ctx, "match.mp4", "track.mp3")
	require.NoError(t, err)
	j := waitForTerminal(t, mgr, id)
	m.Manager().Wait()

	require.NoError(t, mgr.PurgeAll(ctx))

	_, err = mgr.Status(id)
	assert.True(t, types.IsCode(err, types.ErrorCodeNotFound))
	_, err = mgr.OpenArtifact(j.OutputFilename)
	assert.True(t, types.IsCode(err, types.ErrorCodeNotFound))

	assert.Empty(t, dirEntries(t, m.Areas().IncomingDir()))
	assert.Empty(t, dirEntries(t, m.Areas().ClipsDir()))
	assert.Empty(t, dirEntries(t, m.Areas().ArtifactsDir()))
	assert.Empty(t, mgr.ListJobs())
}

func TestModelAvailable(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "best.pt")

	assert.False(t, ModelAvailable(model))
	assert.False(t, ModelAvailable(dir))

	require.NoError(t, os.WriteFile(model, []byte("weights"), 0644))
	assert.True(t, ModelAvailable(model))
}

func TestModule_DisabledJournal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Journal.Enabled = false

	m, err := NewModuleWithStages(context.Background(), cfg, montagetest.NewPipeline().Collaborators(), hclog.NewNullLogger())
	require.NoError(t, err)

	assert.Equal(t, ModuleID, m.ID())
	events, err := m.Manager().journal.Events(context.Background(), "any")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.NoError(t, m.Shutdown(context.Background()))
}

func TestModule_ShutdownCancelsRunningJobs(t *testing.T) {
	fake := montagetest.NewPipeline()
	fake.Hold = make(chan struct{})
	m := setupTestModule(t, fake)
	mgr := m.Manager()
	ctx := context.Background()

	_, err := mgr.UploadVideo(ctx, "match.mp4", strings.NewReader("video"))
	require.NoError(t, err)
	_, err = mgr.UploadAudio(ctx, "track.mp3", strings.NewReader("audio"))
	require.NoError(t, err)
	id, err := mgr.Submit(ctx, "match.mp4", "track.mp3")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return fake.DetectCalls.Load() == 1 }, 5*time.Second, 5*time.Millisecond)

	expired, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, m.Shutdown(expired))

	j, err := mgr.Status(id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusFailed, j.Status)
	assert.Equal(t, job.StageDetectingKills, j.Stage)
}
