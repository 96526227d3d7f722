package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"attune/internal/config"
	"attune/internal/logging"
	"attune/internal/notifications"
	"attune/internal/queue"
	"attune/internal/services"
	"attune/internal/services/ytdlp"
	"attune/internal/stage"
	"attune/internal/textutil"
)

// Fetcher downloads source audio for pending jobs using yt-dlp.
type Fetcher struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	client   ytdlp.Fetcher
	notifier notifications.Service
}

// NewFetcher constructs the fetch handler using default dependencies.
func NewFetcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Fetcher {
	client, err := ytdlp.New(cfg.YtDlpBinary(), cfg.Conversion.AudioFormat, cfg.Conversion.AudioQuality, cfg.Tools.FetchTimeout)
	if err != nil {
		logger.Warn("yt-dlp client unavailable", logging.Error(err))
	}
	return NewFetcherWithDependencies(cfg, store, logger, client, notifications.NewService(cfg))
}

// NewFetcherWithDependencies allows injecting all collaborators (used in tests).
func NewFetcherWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client ytdlp.Fetcher, notifier notifications.Service) *Fetcher {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "fetcher"))
	}
	return &Fetcher{store: store, cfg: cfg, logger: stageLogger, client: client, notifier: notifier}
}

func (f *Fetcher) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, f.logger)
	job.InitProgress("Fetching", "Starting download")
	logger.Info(
		"starting fetch preparation",
		logging.String("source_url", strings.TrimSpace(job.SourceURL)),
	)
	if f.notifier != nil {
		if err := f.notifier.Publish(ctx, notifications.EventFetchStarted, notifications.Payload{"url": job.SourceURL}); err != nil {
			logger.Warn("failed to send fetch start notification", logging.Error(err))
		}
	}
	return nil
}

func (f *Fetcher) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, f.logger)
	if f.client == nil {
		return services.Wrap(
			services.ErrConfiguration,
			"fetch",
			"client unavailable",
			"yt-dlp client unavailable; check the yt-dlp installation",
			nil,
		)
	}

	destDir := f.cfg.Paths.WorkDir
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrConfiguration,
			"fetch",
			"ensure work dir",
			"Failed to create work directory; set work_dir to a writable location",
			err,
		)
	}

	logger.Info(
		"starting fetch execution",
		logging.String("source_url", strings.TrimSpace(job.SourceURL)),
		logging.String("destination_dir", destDir),
	)

	result, err := f.client.Fetch(ctx, job.SourceURL, destDir, job.Token, func(update ytdlp.ProgressUpdate) {
		f.applyProgress(ctx, job, update)
	})
	if err != nil {
		// A failed download almost always means the URL is wrong or the
		// video is unavailable, so it classifies as caller input.
		return services.Wrap(
			services.ErrValidation,
			"fetch",
			"yt-dlp download",
			"Failed to download audio. Try another URL or try again later.",
			err,
		)
	}

	job.OriginalFile = result.Path
	if title := textutil.SanitizeFileName(result.Title); title != "" {
		job.Title = title
	}
	job.SetProgressComplete("Fetched", "Audio downloaded")
	logger.Info(
		"fetch completed",
		logging.String("original_file", result.Path),
		logging.String("title", job.Title),
	)

	if f.notifier != nil {
		label := job.Title
		if label == "" {
			label = job.SourceURL
		}
		if err := f.notifier.Publish(ctx, notifications.EventFetchCompleted, notifications.Payload{"title": label}); err != nil {
			logger.Warn("fetch completion notification failed", logging.Error(err))
		}
	}

	return nil
}

// HealthCheck verifies yt-dlp download dependencies.
func (f *Fetcher) HealthCheck(ctx context.Context) stage.Health {
	const name = "fetcher"
	if f.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(f.cfg.Paths.WorkDir) == "" {
		return stage.Unhealthy(name, "work directory not configured")
	}
	if f.client == nil {
		return stage.Unhealthy(name, "yt-dlp client unavailable")
	}
	binary := strings.TrimSpace(f.cfg.YtDlpBinary())
	if binary == "" {
		return stage.Unhealthy(name, "yt-dlp binary not configured")
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("yt-dlp binary %q not found", binary))
	}
	return stage.Healthy(name)
}

func (f *Fetcher) applyProgress(ctx context.Context, job *queue.Job, update ytdlp.ProgressUpdate) {
	logger := logging.WithContext(ctx, f.logger)
	copy := *job
	if update.Percent >= 0 {
		copy.ProgressPercent = update.Percent
	}
	if update.Message != "" {
		copy.ProgressMessage = update.Message
	}
	if err := f.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist progress", logging.Error(err))
		return
	}
	*job = copy
}
