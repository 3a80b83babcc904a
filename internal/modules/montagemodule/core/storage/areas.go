// Package storage manages the three on-disk areas a montage moves through:
// incoming uploads, intermediate clips and finished artifacts.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/fragreel/internal/config"
	"github.com/mantonx/fragreel/internal/utils"
	"golang.org/x/sync/errgroup"
)

// LockFileName is created in the data directory while a server owns it
const LockFileName = ".fragreel.lock"

// ErrDataDirLocked is returned when another process holds the data directory
var ErrDataDirLocked = errors.New("data directory is in use by another process")

// Areas resolves and maintains the storage directories
type Areas struct {
	dataDir      string
	incomingDir  string
	clipsDir     string
	artifactsDir string
	isolateClips bool

	lock   *flock.Flock
	logger hclog.Logger
}

// NewAreas resolves the configured directories and creates them
func NewAreas(cfg config.StorageConfig, logger hclog.Logger) (*Areas, error) {
	a := &Areas{
		dataDir:      cfg.DataDir,
		incomingDir:  cfg.AreaPath(cfg.IncomingDir),
		clipsDir:     cfg.AreaPath(cfg.ClipsDir),
		artifactsDir: cfg.AreaPath(cfg.ArtifactsDir),
		isolateClips: cfg.IsolateJobClips,
		logger:       logger.Named("storage"),
	}
	a.lock = flock.New(filepath.Join(a.dataDir, LockFileName))

	seen := map[string]bool{filepath.Clean(a.dataDir): true}
	for _, dir := range []string{a.incomingDir, a.clipsDir, a.artifactsDir} {
		clean := filepath.Clean(dir)
		if seen[clean] {
			return nil, fmt.Errorf("storage areas must be distinct directories: %s", dir)
		}
		seen[clean] = true
	}

	for _, dir := range []string{a.dataDir, a.incomingDir, a.clipsDir, a.artifactsDir} {
		if err := utils.EnsureDir(dir); err != nil {
			return nil, err
		}
	}

	a.logger.Debug("storage areas ready",
		"incoming", a.incomingDir,
		"clips", a.clipsDir,
		"artifacts", a.artifactsDir,
		"isolate_job_clips", a.isolateClips)
	return a, nil
}

// Lock takes the exclusive data directory lock without blocking
func (a *Areas) Lock() error {
	ok, err := a.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDataDirLocked, a.lock.Path())
	}
	a.logger.Debug("acquired data directory lock", "path", a.lock.Path())
	return nil
}

// Unlock releases the data directory lock
func (a *Areas) Unlock() error {
	return a.lock.Unlock()
}

// DataDir is the root all areas live under by default
func (a *Areas) DataDir() string { return a.dataDir }

// IncomingDir holds uploaded inputs and timestamp artifacts
func (a *Areas) IncomingDir() string { return a.incomingDir }

// ClipsDir holds extracted clips
func (a *Areas) ClipsDir() string { return a.clipsDir }

// ArtifactsDir holds finished montages
func (a *Areas) ArtifactsDir() string { return a.artifactsDir }

// IncomingPath returns the path of a sanitized upload name
func (a *Areas) IncomingPath(name string) string {
	return filepath.Join(a.incomingDir, name)
}

// ArtifactPath returns the path of a sanitized artifact name
func (a *Areas) ArtifactPath(name string) string {
	return filepath.Join(a.artifactsDir, name)
}

// TimestampsPath is where the detector writes kill times for a job
func (a *Areas) TimestampsPath(jobID string) string {
	return filepath.Join(a.incomingDir, fmt.Sprintf("kill_timestamps_%s.txt", jobID))
}

// JobClipsDir returns and creates the clip directory for a job. Without
// isolation every job shares the clips area itself.
func (a *Areas) JobClipsDir(jobID string) (string, error) {
	dir := a.clipsDir
	if a.isolateClips {
		dir = filepath.Join(a.clipsDir, jobID)
	}
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// StoreIncoming writes an upload into the incoming area
func (a *Areas) StoreIncoming(ctx context.Context, name string, r io.Reader) (int64, error) {
	if err := utils.EnsureDir(a.incomingDir); err != nil {
		return 0, err
	}
	return utils.WriteFileAtomic(ctx, a.IncomingPath(name), r)
}

// HasIncoming reports whether an upload with this name exists
func (a *Areas) HasIncoming(name string) bool {
	return name != "" && utils.FileExists(a.IncomingPath(name))
}

// HasArtifact reports whether a finished artifact with this name exists
func (a *Areas) HasArtifact(name string) bool {
	return name != "" && utils.FileExists(a.ArtifactPath(name))
}

// ResetClips empties the intermediate area
func (a *Areas) ResetClips() error {
	if err := utils.ResetDir(a.clipsDir); err != nil {
		return err
	}
	a.logger.Debug("reset clips area", "path", a.clipsDir)
	return nil
}

// RemoveTimestamps deletes a job's timestamps artifact if present
func (a *Areas) RemoveTimestamps(jobID string) error {
	err := os.Remove(a.TimestampsPath(jobID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// PurgeAll empties every area. The areas are independent so they are
// cleared concurrently.
func (a *Areas) PurgeAll(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { return utils.ClearDir(a.incomingDir) })
	g.Go(func() error { return utils.ResetDir(a.clipsDir) })
	g.Go(func() error { return utils.ClearDir(a.artifactsDir) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to purge storage: %w", err)
	}
	a.logger.Info("purged storage areas")
	return nil
}
