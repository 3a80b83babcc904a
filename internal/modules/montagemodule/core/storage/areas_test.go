package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/fragreel/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAreas(t *testing.T, isolate bool) *Areas {
	t.Helper()
	cfg := config.DefaultConfig().Storage
	cfg.DataDir = t.TempDir()
	cfg.IsolateJobClips = isolate

	areas, err := NewAreas(cfg, hclog.NewNullLogger())
	require.NoError(t, err)
	return areas
}

func TestNewAreas_CreatesDirectories(t *testing.T) {
	areas := newTestAreas(t, true)

	assert.DirExists(t, areas.IncomingDir())
	assert.DirExists(t, areas.ClipsDir())
	assert.DirExists(t, areas.ArtifactsDir())
	assert.Equal(t, filepath.Join(areas.DataDir(), "uploads"), areas.IncomingDir())
}

func TestNewAreas_RejectsOverlap(t *testing.T) {
	cfg := config.DefaultConfig().Storage
	cfg.DataDir = t.TempDir()
	cfg.ClipsDir = "uploads"

	_, err := NewAreas(cfg, hclog.NewNullLogger())
	assert.Error(t, err)
}

func TestAreas_StoreIncoming(t *testing.T) {
	areas := newTestAreas(t, true)

	n, err := areas.StoreIncoming(context.Background(), "gameplay.mp4", strings.NewReader("video-bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.True(t, areas.HasIncoming("gameplay.mp4"))
	assert.False(t, areas.HasIncoming("other.mp4"))
	assert.False(t, areas.HasIncoming(""))
}

func TestAreas_JobClipsDir(t *testing.T) {
	t.Run("isolated", func(t *testing.T) {
		areas := newTestAreas(t, true)
		dir, err := areas.JobClipsDir("job-1")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(areas.ClipsDir(), "job-1"), dir)
		assert.DirExists(t, dir)
	})

	t.Run("shared", func(t *testing.T) {
		areas := newTestAreas(t, false)
		dir, err := areas.JobClipsDir("job-1")
		require.NoError(t, err)
		assert.Equal(t, areas.ClipsDir(), dir)
	})
}

func TestAreas_ResetClips(t *testing.T) {
	areas := newTestAreas(t, true)
	dir, err := areas.JobClipsDir("job-1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kill_clip_001.mp4"), []byte("clip"), 0644))

	require.NoError(t, areas.ResetClips())

	entries, err := os.ReadDir(areas.ClipsDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAreas_RemoveTimestamps(t *testing.T) {
	areas := newTestAreas(t, true)
	path := areas.TimestampsPath("job-1")
	assert.Equal(t, filepath.Join(areas.IncomingDir(), "kill_timestamps_job-1.txt"), path)

	require.NoError(t, os.WriteFile(path, []byte("1.5\n"), 0644))
	require.NoError(t, areas.RemoveTimestamps("job-1"))
	assert.NoFileExists(t, path)

	// already gone is fine
	assert.NoError(t, areas.RemoveTimestamps("job-1"))
}

func TestAreas_PurgeAll(t *testing.T) {
	areas := newTestAreas(t, true)
	require.NoError(t, areas.Lock())
	defer areas.Unlock()

	_, err := areas.StoreIncoming(context.Background(), "gameplay.mp4", strings.NewReader("v"))
	require.NoError(t, err)
	dir, err := areas.JobClipsDir("job-1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "kill_clip_001.mp4"), []byte("c"), 0644))
	require.NoError(t, os.WriteFile(areas.ArtifactPath("montage_job-1.mp4"), []byte("m"), 0644))

	require.NoError(t, areas.PurgeAll(context.Background()))

	for _, d := range []string{areas.IncomingDir(), areas.ClipsDir(), areas.ArtifactsDir()} {
		entries, err := os.ReadDir(d)
		require.NoError(t, err)
		assert.Empty(t, entries, d)
	}
	assert.FileExists(t, filepath.Join(areas.DataDir(), LockFileName))
	assert.False(t, areas.HasArtifact("montage_job-1.mp4"))
}

func TestAreas_Lock(t *testing.T) {
	cfg := config.DefaultConfig().Storage
	cfg.DataDir = t.TempDir()

	first, err := NewAreas(cfg, hclog.NewNullLogger())
	require.NoError(t, err)
	second, err := NewAreas(cfg, hclog.NewNullLogger())
	require.NoError(t, err)

	require.NoError(t, first.Lock())
	assert.ErrorIs(t, second.Lock(), ErrDataDirLocked)

	require.NoError(t, first.Unlock())
	require.NoError(t, second.Lock())
	require.NoError(t, second.Unlock())
}
