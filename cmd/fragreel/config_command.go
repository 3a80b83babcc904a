package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mantonx/fragreel/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source := cm.Path()
			if source == "" {
				source = "defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration source: %s\n", source)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, configRows(cm.GetConfig())))
			return nil
		},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cm, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid (port %d, data dir %s)\n",
				cm.GetConfig().Server.Port, cm.GetConfig().Storage.DataDir)
			return nil
		},
	})

	return configCmd
}

func configRows(cfg *config.Config) [][]string {
	journal := "disabled"
	if cfg.Journal.Enabled {
		journal = cfg.Journal.Driver + " " + cfg.Journal.DSN
	}

	return [][]string{
		{"server.address", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)},
		{"server.max_upload_size", humanize.IBytes(uint64(cfg.Server.MaxUploadSize))},
		{"server.read_timeout", cfg.Server.ReadTimeout.String()},
		{"server.write_timeout", cfg.Server.WriteTimeout.String()},
		{"server.download_timeout", cfg.Server.DownloadTimeout.String()},
		{"server.enable_cors", strconv.FormatBool(cfg.Server.EnableCORS)},
		{"server.allowed_origins", strings.Join(cfg.Server.AllowedOrigins, ", ")},
		{"storage.data_dir", cfg.Storage.DataDir},
		{"storage.incoming_dir", cfg.Storage.AreaPath(cfg.Storage.IncomingDir)},
		{"storage.clips_dir", cfg.Storage.AreaPath(cfg.Storage.ClipsDir)},
		{"storage.artifacts_dir", cfg.Storage.AreaPath(cfg.Storage.ArtifactsDir)},
		{"storage.isolate_job_clips", strconv.FormatBool(cfg.Storage.IsolateJobClips)},
		{"storage.video_extensions", strings.Join(cfg.Storage.VideoExtensions, ", ")},
		{"storage.audio_extensions", strings.Join(cfg.Storage.AudioExtensions, ", ")},
		{"pipeline.detector", strings.Join(append([]string{cfg.Pipeline.DetectorCommand}, cfg.Pipeline.DetectorArgs...), " ")},
		{"pipeline.model_path", cfg.Pipeline.ModelPath},
		{"pipeline.ffmpeg_path", cfg.Pipeline.FFmpegPath},
		{"pipeline.clip_window", fmt.Sprintf("-%s / +%s", cfg.Pipeline.ClipBefore, cfg.Pipeline.ClipAfter)},
		{"journal", journal},
		{"logging", fmt.Sprintf("%s %s -> %s", cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)},
	}
}
