package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"attune/internal/api"
	"attune/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the conversion queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueResetCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check queue database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client *api.Client, store *queue.Store) error {
				var resp api.QueueHealthResponse
				if client != nil {
					fetched, err := client.QueueHealth(cmd.Context())
					if err != nil {
						return err
					}
					resp = fetched
				} else {
					summary, err := store.Health(cmd.Context())
					if err != nil {
						return err
					}
					database, err := store.CheckHealth(cmd.Context())
					if err != nil && database.Error == "" {
						database.Error = err.Error()
					}
					resp = api.QueueHealthResponse{
						Summary:  api.FromHealthSummary(summary),
						Database: api.FromDatabaseHealth(database),
					}
				}

				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				db := resp.Database
				fmt.Fprintf(out, "Database path: %s\n", db.DBPath)
				fmt.Fprintf(out, "Database exists: %s\n", yesNo(db.DatabaseExists))
				fmt.Fprintf(out, "Readable: %s\n", yesNo(db.DatabaseReadable))
				fmt.Fprintf(out, "Schema version: %s\n", db.SchemaVersion)
				fmt.Fprintf(out, "conversion_jobs table present: %s\n", yesNo(db.TableExists))
				if len(db.ColumnsPresent) > 0 {
					cols := append([]string(nil), db.ColumnsPresent...)
					sort.Strings(cols)
					fmt.Fprintf(out, "Columns: %s\n", strings.Join(cols, ", "))
				}
				if len(db.MissingColumns) > 0 {
					missing := append([]string(nil), db.MissingColumns...)
					sort.Strings(missing)
					fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
				} else {
					fmt.Fprintln(out, "Missing columns: none")
				}
				fmt.Fprintf(out, "Integrity check: %s\n", yesNo(db.IntegrityCheck))
				fmt.Fprintf(out, "Total jobs: %d\n", db.TotalJobs)
				if db.Error != "" {
					fmt.Fprintf(out, "Error: %s\n", db.Error)
				}
				fmt.Fprintf(out, "Queue: %d total (%d pending, %d processing, %d failed, %d completed)\n",
					resp.Summary.Total, resp.Summary.Pending, resp.Summary.Processing,
					resp.Summary.Failed, resp.Summary.Completed)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newQueueResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Return in-flight jobs to the start of their current stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client *api.Client, store *queue.Store) error {
				var (
					affected int64
					err      error
				)
				if client != nil {
					affected, err = client.QueueReset(cmd.Context())
				} else {
					affected, err = store.ResetStuckProcessing(cmd.Context())
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d stuck job(s)\n", affected)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(client *api.Client, store *queue.Store) error {
				var jobs []api.QueueJob
				if client != nil {
					fetched, err := client.QueueList(cmd.Context(), listStatuses...)
					if err != nil {
						return err
					}
					jobs = fetched
				} else {
					statuses, err := parseStatuses(listStatuses)
					if err != nil {
						return err
					}
					records, err := store.List(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					jobs = api.FromJobs(records)
				}

				jobs = api.SortJobsNewestFirst(jobs)
				if jsonOutput {
					return writeJSON(cmd, api.QueueListResponse{Jobs: jobs})
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Title", "Status", "Progress", "Created"},
					buildQueueRows(jobs),
					0, 3,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (pending, fetching, fetched, converting, completed, failed)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show details for a single conversion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return ctx.withQueue(cmd.Context(), func(client *api.Client, store *queue.Store) error {
				var job *api.QueueJob
				if client != nil {
					fetched, err := client.QueueDescribe(cmd.Context(), id)
					if err != nil {
						return err
					}
					job = &fetched
				} else {
					record, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if record == nil {
						return fmt.Errorf("job %d not found", id)
					}
					dto := api.FromJob(record)
					job = &dto
				}

				if jsonOutput {
					return writeJSON(cmd, api.QueueJobResponse{Job: *job})
				}
				renderJobDetail(cmd, *job)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Reset failed jobs back to pending",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid job id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withQueue(cmd.Context(), func(client *api.Client, store *queue.Store) error {
				var (
					affected int64
					err      error
				)
				switch {
				case client != nil && len(ids) == 0:
					affected, err = client.QueueRetryAll(cmd.Context())
				case client != nil:
					for _, id := range ids {
						var n int64
						n, err = client.QueueRetry(cmd.Context(), id)
						if err != nil {
							break
						}
						affected += n
					}
				default:
					affected, err = store.RetryFailed(cmd.Context(), ids...)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Reset %d job(s) for retry\n", affected)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var completedOnly bool
	var failedOnly bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if completedOnly && failedOnly {
				return fmt.Errorf("choose at most one of --completed and --failed")
			}
			scope := "all"
			if completedOnly {
				scope = "completed"
			}
			if failedOnly {
				scope = "failed"
			}
			return ctx.withQueue(cmd.Context(), func(client *api.Client, store *queue.Store) error {
				var (
					affected int64
					err      error
				)
				if client != nil {
					affected, err = client.QueueClear(cmd.Context(), scope)
				} else {
					switch scope {
					case "completed":
						affected, err = store.ClearCompleted(cmd.Context())
					case "failed":
						affected, err = store.ClearFailed(cmd.Context())
					default:
						affected, err = store.Clear(cmd.Context())
					}
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s)\n", affected)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completedOnly, "completed", false, "Only remove completed jobs")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only remove failed jobs")
	return cmd
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", trimmed)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func buildQueueRows(jobs []api.QueueJob) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		title := job.Title
		if title == "" {
			title = job.SourceURL
		}
		rows = append(rows, []string{
			strconv.FormatInt(job.ID, 10),
			truncate(title, 48),
			job.Status,
			fmt.Sprintf("%.0f%%", job.Progress.Percent),
			formatQueueTime(job.CreatedAt),
		})
	}
	return rows
}

func renderJobDetail(cmd *cobra.Command, job api.QueueJob) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job #%d\n", job.ID)
	fmt.Fprintf(out, "  Token:     %s\n", job.Token)
	fmt.Fprintf(out, "  Source:    %s\n", job.SourceURL)
	if job.Title != "" {
		fmt.Fprintf(out, "  Title:     %s\n", job.Title)
	}
	fmt.Fprintf(out, "  Status:    %s\n", job.Status)
	fmt.Fprintf(out, "  Progress:  %.1f%% %s\n", job.Progress.Percent, job.Progress.Message)
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:     %s\n", job.ErrorMessage)
	}
	if job.OriginalFile != "" {
		fmt.Fprintf(out, "  Original:  %s\n", job.OriginalFile)
	}
	if job.ConvertedFile != "" {
		fmt.Fprintf(out, "  Converted: %s\n", job.ConvertedFile)
	}
	if job.CreatedAt != "" {
		fmt.Fprintf(out, "  Created:   %s\n", formatQueueTime(job.CreatedAt))
	}
}

func formatQueueTime(value string) string {
	t := api.ParseQueueTime(value)
	if t.IsZero() {
		return value
	}
	return t.Local().Format(time.DateTime)
}

func truncate(value string, limit int) string {
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
