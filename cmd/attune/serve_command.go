package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"attune/internal/convert"
	"attune/internal/daemon"
	"attune/internal/deps"
	"attune/internal/fetch"
	"attune/internal/logging"
	"attune/internal/queue"
	"attune/internal/workflow"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the conversion daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	}
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, status := range deps.CheckBinaries(deps.DefaultRequirements(cfg)) {
		if !status.Available && !status.Optional {
			logger.Warn("required binary missing",
				logging.String("name", status.Name),
				logging.String("command", status.Command),
				logging.String(logging.FieldErrorHint, "install it or point the tools section of the config at it"),
			)
		}
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	defer store.Close()

	workflowManager := workflow.NewManager(cfg, store, logger)
	workflowManager.Configure(workflow.StageSet{
		Fetcher:   fetch.NewFetcher(cfg, store, logger),
		Converter: convert.NewConverter(cfg, store, logger),
	})

	d, err := daemon.New(cfg, store, logger, workflowManager)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("attune daemon shutting down")
	return nil
}
