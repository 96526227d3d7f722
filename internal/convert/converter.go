package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"attune/internal/config"
	"attune/internal/logging"
	"attune/internal/notifications"
	"attune/internal/queue"
	"attune/internal/services"
	"attune/internal/services/ffmpeg"
	"attune/internal/stage"
)

// Converter retunes fetched audio from 440 Hz to 432 Hz using ffmpeg.
type Converter struct {
	store    *queue.Store
	cfg      *config.Config
	logger   *slog.Logger
	client   ffmpeg.Shifter
	notifier notifications.Service
}

// NewConverter constructs the conversion handler using default dependencies.
func NewConverter(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Converter {
	client, err := ffmpeg.New(cfg.FFmpegBinary(), cfg.FFprobeBinary(), cfg.Tools.ConvertTimeout)
	if err != nil {
		logger.Warn("ffmpeg client unavailable", logging.Error(err))
	}
	return NewConverterWithDependencies(cfg, store, logger, client, notifications.NewService(cfg))
}

// NewConverterWithDependencies allows injecting all collaborators (used in tests).
func NewConverterWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client ffmpeg.Shifter, notifier notifications.Service) *Converter {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String("component", "converter"))
	}
	return &Converter{store: store, cfg: cfg, logger: stageLogger, client: client, notifier: notifier}
}

func (c *Converter) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, c.logger)
	job.InitProgress("Converting", "Starting pitch shift")
	logger.Info(
		"starting conversion preparation",
		logging.String("title", strings.TrimSpace(job.Title)),
		logging.String("original_file", strings.TrimSpace(job.OriginalFile)),
	)
	if c.notifier != nil {
		label := job.Title
		if label == "" {
			label = job.SourceURL
		}
		if err := c.notifier.Publish(ctx, notifications.EventConversionStarted, notifications.Payload{"title": label}); err != nil {
			logger.Warn("failed to send conversion start notification", logging.Error(err))
		}
	}
	return nil
}

func (c *Converter) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, c.logger)
	if c.client == nil {
		return services.Wrap(
			services.ErrConfiguration,
			"convert",
			"client unavailable",
			"ffmpeg client unavailable; check the ffmpeg installation",
			nil,
		)
	}

	input := strings.TrimSpace(job.OriginalFile)
	if input == "" {
		return services.Wrap(
			services.ErrValidation,
			"convert",
			"missing input",
			"Job has no fetched audio file; rerun the fetch stage",
			nil,
		)
	}
	if _, err := os.Stat(input); err != nil {
		return services.Wrap(
			services.ErrTransient,
			"convert",
			"inspect input",
			"Fetched audio file is missing from the work directory",
			err,
		)
	}

	output := filepath.Join(c.cfg.Paths.WorkDir, fmt.Sprintf("%s_432hz.%s", job.Token, c.cfg.Conversion.AudioFormat))
	logger.Info(
		"starting conversion execution",
		logging.String("original_file", input),
		logging.String("converted_file", output),
	)

	if err := c.client.PitchShift(ctx, input, output, func(update ffmpeg.ProgressUpdate) {
		c.applyProgress(ctx, job, update)
	}); err != nil {
		return services.Wrap(
			services.ErrExternalTool,
			"convert",
			"ffmpeg pitch shift",
			"Failed to convert audio to 432 Hz",
			err,
		)
	}

	job.ConvertedFile = output
	job.SetProgressComplete("Converted", "Audio retuned to 432 Hz")
	logger.Info("conversion completed", logging.String("converted_file", output))

	if c.notifier != nil {
		label := job.Title
		if label == "" {
			label = job.SourceURL
		}
		if err := c.notifier.Publish(ctx, notifications.EventConversionCompleted, notifications.Payload{"title": label}); err != nil {
			logger.Warn("conversion completion notification failed", logging.Error(err))
		}
	}

	return nil
}

// HealthCheck verifies ffmpeg conversion dependencies.
func (c *Converter) HealthCheck(ctx context.Context) stage.Health {
	const name = "converter"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(c.cfg.Paths.WorkDir) == "" {
		return stage.Unhealthy(name, "work directory not configured")
	}
	if c.client == nil {
		return stage.Unhealthy(name, "ffmpeg client unavailable")
	}
	for _, binary := range []string{c.cfg.FFmpegBinary(), c.cfg.FFprobeBinary()} {
		binary = strings.TrimSpace(binary)
		if binary == "" {
			return stage.Unhealthy(name, "ffmpeg binaries not configured")
		}
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy(name, fmt.Sprintf("binary %q not found", binary))
		}
	}
	return stage.Healthy(name)
}

func (c *Converter) applyProgress(ctx context.Context, job *queue.Job, update ffmpeg.ProgressUpdate) {
	logger := logging.WithContext(ctx, c.logger)
	copy := *job
	if update.Percent >= 0 {
		copy.ProgressPercent = update.Percent
	}
	if update.Message != "" {
		copy.ProgressMessage = update.Message
	}
	if err := c.store.Update(ctx, &copy); err != nil {
		logger.Warn("failed to persist progress", logging.Error(err))
		return
	}
	*job = copy
}
