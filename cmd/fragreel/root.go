package main

import (
	"os"

	"github.com/mantonx/fragreel/internal/config"
	"github.com/spf13/cobra"
)

// defaultConfigPaths are tried in order when neither --config nor
// FRAGREEL_CONFIG_PATH is given
var defaultConfigPaths = []string{
	"./fragreel.yaml",
	"./fragreel.yml",
	"./fragreel.toml",
	"./fragreel.json",
}

type commandContext struct {
	configFlag string
	manager    *config.ConfigManager
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "fragreel",
		Short:         "Kill montage generator service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// configPath resolves which file, if any, the configuration comes from
func (c *commandContext) configPath() string {
	if c.configFlag != "" {
		return c.configFlag
	}
	if p := os.Getenv("FRAGREEL_CONFIG_PATH"); p != "" {
		return p
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// ensureConfig loads the configuration once per invocation
func (c *commandContext) ensureConfig() (*config.ConfigManager, error) {
	if c.manager != nil {
		return c.manager, nil
	}
	cm := config.NewConfigManager()
	if err := cm.LoadConfig(c.configPath()); err != nil {
		return nil, err
	}
	c.manager = cm
	return cm, nil
}
