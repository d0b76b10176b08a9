package main

import (
	"github.com/spf13/cobra"

	"shortreel/internal/config"
	"shortreel/internal/logging"
	"shortreel/internal/store"

	"go.uber.org/zap"
)

// commandContext carries the flag values and lazily-built shared
// dependencies every subcommand needs.
type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	cfg    *config.Config
	logger *zap.Logger
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*zap.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	logger, err := logging.New(*c.verboseFlag)
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

func (c *commandContext) openStore() (*store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return store.Open(cfg.Paths.StateDB)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	var verboseFlag bool

	ctx := &commandContext{configFlag: &configFlag, verboseFlag: &verboseFlag}

	rootCmd := &cobra.Command{
		Use:           "shortreel",
		Short:         "Turn a topic into a short vertical video",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "config.yaml", "Configuration file path")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newResumeCommand(ctx))
	rootCmd.AddCommand(newApproveCommand(ctx))
	rootCmd.AddCommand(newRejectCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))

	return rootCmd
}
