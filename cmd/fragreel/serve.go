package main

import (
	"context"
	"fmt"
	"os/signal"
	"reflect"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	"github.com/mantonx/fragreel/internal/config"
	"github.com/mantonx/fragreel/internal/logger"
	"github.com/mantonx/fragreel/internal/modules/montagemodule"
	"github.com/mantonx/fragreel/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long running jobs may take to finish once a
// signal arrives
const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the montage HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

func runServe(parent context.Context, cc *commandContext) error {
	cm, err := cc.ensureConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	cfg := cm.GetConfig()

	log, err := logger.Init(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if !log.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}
	if cm.Path() != "" {
		log.Info("configuration loaded", "path", cm.Path())
	} else {
		log.Info("using default configuration")
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	module, err := montagemodule.NewModule(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := module.Areas().Lock(); err != nil {
		shutdownModule(module, log)
		return err
	}
	defer func() {
		if err := module.Areas().Unlock(); err != nil {
			log.Warn("failed to release data directory lock", "error", err)
		}
	}()

	if !module.ModelAvailable() {
		log.Warn("detector model not found, jobs will fail at detection", "path", cfg.Pipeline.ModelPath)
	}

	cm.AddWatcher(func(oldCfg, newCfg *config.Config) {
		if oldCfg.Logging.Level != newCfg.Logging.Level {
			logger.SetLevel(newCfg.Logging.Level)
			log.Info("log level changed", "from", oldCfg.Logging.Level, "to", newCfg.Logging.Level)
		}
		if !reflect.DeepEqual(oldCfg.Server, newCfg.Server) || !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
			log.Warn("server and storage changes take effect after a restart")
		}
	})

	srv := server.New(cfg, module, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown error", "error", err)
		}
		if err := module.Shutdown(shutdownCtx); err != nil {
			log.Error("montage module shutdown error", "error", err)
		}
		return nil
	})
	if cm.Path() != "" {
		g.Go(func() error {
			if err := cm.Watch(gctx, log); err != nil {
				log.Warn("configuration hot reload disabled", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func shutdownModule(module *montagemodule.Module, log hclog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := module.Shutdown(ctx); err != nil {
		log.Error("montage module shutdown error", "error", err)
	}
}
