package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"attune/internal/api"
	"attune/internal/deps"
	"attune/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client *api.Client, store *queue.Store) error {
				if client != nil {
					status, err := client.Status(cmd.Context())
					if err != nil {
						return err
					}
					if jsonOutput {
						return writeJSON(cmd, status)
					}
					renderDaemonStatus(cmd, status)
					return nil
				}
				return renderOfflineStatus(cmd, ctx, store, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func renderDaemonStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	runningKind := statusError
	if status.Running {
		runningKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Running", runningKind, fmt.Sprintf("pid %d", status.PID), colorize))
	fmt.Fprintln(out, renderStatusLine("Queue database", statusInfo, status.QueueDBPath, colorize))
	if status.WorkDirUsage != nil {
		detail := fmt.Sprintf("%.1f%% free", status.WorkDirUsage.FreeRatio*100)
		kind := statusOK
		if status.WorkDirUsage.FreeRatio < 0.1 {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine("Work dir space", kind, detail, colorize))
	}

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, dep := range status.Dependencies {
		kind := statusOK
		message := dep.Command
		if !dep.Available {
			kind = statusError
			if dep.Optional {
				kind = statusWarn
			}
			message = dep.Detail
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, kind, message, colorize))
	}

	for _, line := range renderSectionHeader("Workflow", colorize) {
		fmt.Fprintln(out, line)
	}
	workflowKind := statusWarn
	if status.Workflow.Running {
		workflowKind = statusOK
	}
	fmt.Fprintln(out, renderStatusLine("Workers", workflowKind, "", colorize))
	for _, health := range status.Workflow.StageHealth {
		kind := statusOK
		if !health.Ready {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine("Stage "+health.Name, kind, health.Detail, colorize))
	}
	if status.Workflow.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, status.Workflow.LastError, colorize))
	}

	renderQueueStats(cmd, status.Workflow.QueueStats, colorize)
}

func renderOfflineStatus(cmd *cobra.Command, ctx *commandContext, store *queue.Store, jsonOutput bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}
	statuses := deps.CheckBinaries(deps.DefaultRequirements(cfg))

	if jsonOutput {
		return writeJSON(cmd, map[string]any{
			"running":      false,
			"queueStats":   api.MergeQueueStats(stats),
			"dependencies": api.FromDependencyStatuses(statuses),
		})
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running; start it with `attune serve`", colorize))

	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, dep := range statuses {
		kind := statusOK
		message := dep.Command
		if !dep.Available {
			kind = statusError
			message = dep.Detail
		}
		fmt.Fprintln(out, renderStatusLine(dep.Name, kind, message, colorize))
	}

	renderQueueStats(cmd, api.MergeQueueStats(stats), colorize)
	return nil
}

func renderQueueStats(cmd *cobra.Command, stats map[string]int, colorize bool) {
	out := cmd.OutOrStdout()
	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	if len(stats) == 0 {
		fmt.Fprintln(out, renderStatusLine("Jobs", statusInfo, "queue is empty", colorize))
		return
	}

	// Lifecycle order reads better than alphabetical: pending first,
	// terminal states last. Statuses outside the lifecycle sort after.
	names := make([]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		if _, ok := stats[string(status)]; ok {
			names = append(names, string(status))
		}
	}
	if len(names) < len(stats) {
		known := make(map[string]struct{}, len(names))
		for _, name := range names {
			known[name] = struct{}{}
		}
		extras := make([]string, 0, len(stats)-len(names))
		for name := range stats {
			if _, ok := known[name]; !ok {
				extras = append(extras, name)
			}
		}
		sort.Strings(extras)
		names = append(names, extras...)
	}
	for _, name := range names {
		kind := statusInfo
		if name == string(queue.StatusFailed) && stats[name] > 0 {
			kind = statusWarn
		}
		label := strings.ToUpper(name[:1]) + name[1:]
		fmt.Fprintln(out, renderStatusLine(label, kind, fmt.Sprintf("%d", stats[name]), colorize))
	}
}
