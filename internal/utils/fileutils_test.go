package utils

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gameplay.mp4", "gameplay.mp4"},
		{"My Clip Final.mov", "My_Clip_Final.mov"},
		{"../../etc/passwd", "etc_passwd"},
		{`..\..\windows\system32.avi`, "windows_system32.avi"},
		{"Café del Mar.mp3", "Cafe_del_Mar.mp3"},
		{"  spaced   out .wav", "spaced_out_.wav"},
		{"weird$%^&chars.mp4", "weirdchars.mp4"},
		{".hidden", "hidden"},
		{"__init__.py", "init__.py"},
		{"...", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestHasAllowedExtension(t *testing.T) {
	video := []string{"mp4", "mov", "avi"}

	assert.True(t, HasAllowedExtension("gameplay.mp4", video))
	assert.True(t, HasAllowedExtension("GAMEPLAY.MOV", video))
	assert.True(t, HasAllowedExtension("archive.tar.avi", video))
	assert.False(t, HasAllowedExtension("clip.exe", video))
	assert.False(t, HasAllowedExtension("mp4", video))
	assert.False(t, HasAllowedExtension("clip.", video))
	assert.False(t, HasAllowedExtension("clip.mp4.exe", video))
}

func TestResetDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "clips")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "job"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job", "kill_clip_001.mp4"), []byte("x"), 0644))

	require.NoError(t, ResetDir(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClearDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mp4"), []byte("x"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	require.NoError(t, ClearDir(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	missing := filepath.Join(dir, "missing")
	require.NoError(t, ClearDir(missing))
	assert.DirExists(t, missing)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")

	n, err := WriteFileAtomic(context.Background(), path, strings.NewReader("ID3 data"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.True(t, FileExists(path))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

type cancelAfterRead struct {
	cancel context.CancelFunc
}

func (r *cancelAfterRead) Read(p []byte) (int, error) {
	r.cancel()
	return copy(p, "partial"), nil
}

func TestWriteFileAtomic_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gameplay.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WriteFileAtomic(ctx, path, strings.NewReader("video"))
	require.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithCancel(context.Background())
	_, err = WriteFileAtomic(ctx, path, &cancelAfterRead{cancel: cancel})
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID(GenerateUUID()))
	assert.False(t, IsValidUUID("not-a-uuid"))
}
