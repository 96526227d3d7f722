package main

import (
	"log/slog"

	"attune/internal/config"
	"attune/internal/convert"
	"attune/internal/fetch"
	"attune/internal/queue"
	"attune/internal/workflow"
)

func registerStages(mgr *workflow.Manager, cfg *config.Config, store *queue.Store, logger *slog.Logger) {
	if mgr == nil || cfg == nil {
		return
	}

	mgr.Configure(workflow.StageSet{
		Fetcher:   fetch.NewFetcher(cfg, store, logger),
		Converter: convert.NewConverter(cfg, store, logger),
	})
}
