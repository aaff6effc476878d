package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joshu-sajeev/lorequeue/internal/config"
	"github.com/joshu-sajeev/lorequeue/internal/logging"
	"github.com/joshu-sajeev/lorequeue/internal/queueapi"
	"github.com/joshu-sajeev/lorequeue/internal/storage"
	"github.com/spf13/cobra"
)

type commandContext struct {
	configFlag *string
	cfg        *config.Config
}

func (c *commandContext) ensureConfig(ctx context.Context) (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}

	var (
		cfg *config.Config
		err error
	)
	if path := strings.TrimSpace(*c.configFlag); path != "" {
		cfg, err = config.LoadFile(ctx, path)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

// withBackend opens the configured store without running migrations or
// listening for notifications, and hands fn the queues over it.
func (c *commandContext) withBackend(cmd *cobra.Command, fn func(*config.Config, *storage.Backend, queueapi.Registry, *slog.Logger) error) error {
	ctx := cmd.Context()
	cfg, err := c.ensureConfig(ctx)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	opts := cfg.StorageOptions()
	opts.Migrate = false
	opts.Listen = false

	backend, err := storage.Open(ctx, opts, logger)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", opts.Kind, err)
	}
	defer backend.Close()

	registry := queueapi.NewRegistry(backend.Repo, cfg.BatchSize, backend.Notifier, logger)
	return fn(cfg, backend, registry, logger)
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "queuectl",
		Short:         "Inspect and maintain lorequeue storage",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $"+config.FileEnv+")")

	rootCmd.AddCommand(newMigrateCommand(ctx))
	rootCmd.AddCommand(newStatsCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newSweepCommand(ctx))

	return rootCmd
}
