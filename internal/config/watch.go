package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

const defaultReloadDebounce = 250 * time.Millisecond

// FileWatcher reloads the configuration when its backing file changes.
// Reload failures are logged and the previous configuration stays active.
type FileWatcher struct {
	manager  *ConfigManager
	logger   hclog.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
	wg    sync.WaitGroup
}

// NewFileWatcher creates a watcher for the file the manager was loaded from
func NewFileWatcher(manager *ConfigManager, logger hclog.Logger) (*FileWatcher, error) {
	if manager.Path() == "" {
		return nil, fmt.Errorf("configuration was not loaded from a file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &FileWatcher{
		manager:  manager,
		logger:   logger.Named("config-watcher"),
		watcher:  watcher,
		debounce: defaultReloadDebounce,
	}, nil
}

// Run watches the config file until ctx is cancelled. Editors often replace
// files on save, so the parent directory is watched and events are filtered.
func (fw *FileWatcher) Run(ctx context.Context) error {
	path := fw.manager.Path()
	dir := filepath.Dir(path)
	if err := fw.watcher.Add(dir); err != nil {
		fw.watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	fw.logger.Info("watching configuration file", "path", path)
	defer fw.stop()

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				fw.schedule(path)
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return nil
			}
			fw.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (fw *FileWatcher) schedule(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.timer != nil && fw.timer.Stop() {
		fw.wg.Done()
	}
	fw.wg.Add(1)
	fw.timer = time.AfterFunc(fw.debounce, func() {
		defer fw.wg.Done()
		if err := fw.manager.LoadConfig(path); err != nil {
			fw.logger.Error("failed to reload configuration", "path", path, "error", err)
			return
		}
		fw.logger.Info("configuration reloaded", "path", path)
	})
}

func (fw *FileWatcher) stop() {
	fw.mu.Lock()
	if fw.timer != nil && fw.timer.Stop() {
		fw.wg.Done()
	}
	fw.mu.Unlock()

	fw.wg.Wait()
	fw.watcher.Close()
}

// Watch reloads the configuration on file changes until ctx is cancelled
func (cm *ConfigManager) Watch(ctx context.Context, logger hclog.Logger) error {
	fw, err := NewFileWatcher(cm, logger)
	if err != nil {
		return err
	}
	return fw.Run(ctx)
}
