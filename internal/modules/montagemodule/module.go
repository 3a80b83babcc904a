// Package montagemodule turns a gameplay video and a music track into a
// kill montage. It owns the upload areas, the in-memory job registry and the
// background pipeline that runs detection, clip extraction and assembly.
//
// Architecture:
//
//	HTTP API → Manager → Executor → Detector → Extractor → Assembler
//
// Job state lives only in memory. The optional journal records lifecycle
// events for inspection and is never read back to restore jobs.
package montagemodule

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/fragreel/internal/config"
	"github.com/mantonx/fragreel/internal/database"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/api"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/job"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/journal"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/pipeline"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/stages"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/core/storage"
	"github.com/mantonx/fragreel/internal/modules/montagemodule/types"
	"gorm.io/gorm"
)

const (
	// ModuleID is the unique identifier for the montage module
	ModuleID = "fragreel.montage"

	// ModuleName is the display name for the montage module
	ModuleName = "Montage Pipeline"

	// ModuleVersion is the version of the montage module
	ModuleVersion = "1.0.0"
)

// Module holds every component of the montage service
type Module struct {
	cfg      *config.Config
	db       *gorm.DB
	areas    *storage.Areas
	registry *job.Registry
	journal  *journal.Journal
	executor *pipeline.Executor
	manager  *Manager
	cancel   context.CancelFunc
	logger   hclog.Logger
}

// NewModule builds the module with the detector command and ffmpeg stages
// named in cfg
func NewModule(ctx context.Context, cfg *config.Config, logger hclog.Logger) (*Module, error) {
	runner := stages.NewExecRunner(logger)
	p := cfg.Pipeline
	collaborators := types.Collaborators{
		Detector:  stages.NewCommandDetector(runner, p.DetectorCommand, p.DetectorArgs, p.ModelPath, logger),
		Extractor: stages.NewFFmpegExtractor(runner, p.FFmpegPath, p.ClipBefore, p.ClipAfter, logger),
		Assembler: stages.NewFFmpegAssembler(runner, p.FFmpegPath, logger),
	}
	return NewModuleWithStages(ctx, cfg, collaborators, logger)
}

// NewModuleWithStages builds the module around the given pipeline stages
func NewModuleWithStages(ctx context.Context, cfg *config.Config, collaborators types.Collaborators, logger hclog.Logger) (*Module, error) {
	m := &Module{
		cfg:    cfg,
		logger: logger.Named("montage"),
	}

	areas, err := storage.NewAreas(cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare storage: %w", err)
	}
	m.areas = areas

	if cfg.Journal.Enabled {
		db, err := database.Open(cfg.Journal.Driver, cfg.Journal.DSN, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open job journal: %w", err)
		}
		jrnl, err := journal.New(db, logger)
		if err != nil {
			database.Close(db)
			return nil, err
		}
		m.db = db
		m.journal = jrnl
	} else {
		m.journal = journal.Disabled(logger)
	}

	// Jobs outlive the request that submitted them, so the executor gets its
	// own context that only Shutdown cancels.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.cancel = cancel

	m.registry = job.NewRegistry(logger)
	m.executor = pipeline.NewExecutor(runCtx, m.registry, areas, collaborators, m.journal, logger)
	m.manager = NewManager(areas, m.registry, m.executor, m.journal,
		cfg.Storage.VideoExtensions, cfg.Storage.AudioExtensions, logger)

	m.logger.Info("montage module initialized",
		"data_dir", areas.DataDir(),
		"journal", m.journal.Enabled(),
		"isolate_job_clips", cfg.Storage.IsolateJobClips)
	return m, nil
}

// ID returns the unique module identifier
func (m *Module) ID() string {
	return ModuleID
}

// Name returns the module display name
func (m *Module) Name() string {
	return ModuleName
}

// GetVersion returns the module version
func (m *Module) GetVersion() string {
	return ModuleVersion
}

// Manager returns the service façade
func (m *Module) Manager() *Manager {
	return m.manager
}

// Areas returns the storage areas
func (m *Module) Areas() *storage.Areas {
	return m.areas
}

// ModelAvailable reports whether the configured detector model exists
func (m *Module) ModelAvailable() bool {
	return ModelAvailable(m.cfg.Pipeline.ModelPath)
}

// RegisterRoutes mounts the montage API on router
func (m *Module) RegisterRoutes(router *gin.Engine) {
	handler := api.NewAPIHandler(m.manager, m.logger)
	api.RegisterRoutes(router, handler)
}

// Shutdown waits for running jobs until ctx expires, then cancels them and
// closes the journal
func (m *Module) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.executor.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown deadline reached, cancelling running jobs", "jobs", m.registry.Len())
		m.cancel()
		<-done
	}
	m.cancel()

	if m.db != nil {
		if err := database.Close(m.db); err != nil {
			return fmt.Errorf("failed to close job journal: %w", err)
		}
	}
	m.logger.Info("montage module stopped")
	return nil
}
