package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Reference tunings for the pitch shift. A4=440 Hz material is retuned to
// A4=432 Hz, about -0.3177 semitones, with playback duration preserved.
const (
	sourceTuningHz = 440.0
	targetTuningHz = 432.0
)

// ProgressUpdate captures ffmpeg conversion progress.
type ProgressUpdate struct {
	Percent float64
	Message string
}

// Shifter defines the behaviour required by the convert stage handler.
type Shifter interface {
	PitchShift(ctx context.Context, inputPath, outputPath string, progress func(ProgressUpdate)) error
	Probe(ctx context.Context, inputPath string) (ProbeResult, error)
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps ffmpeg and ffprobe CLI interactions.
type Client struct {
	ffmpegBinary   string
	ffprobeBinary  string
	convertTimeout time.Duration
	exec           Executor
}

// New constructs an ffmpeg client.
func New(ffmpegBinary, ffprobeBinary string, convertTimeoutSeconds int, opts ...Option) (*Client, error) {
	ffmpegBinary = strings.TrimSpace(ffmpegBinary)
	if ffmpegBinary == "" {
		return nil, errors.New("ffmpeg binary required")
	}
	ffprobeBinary = strings.TrimSpace(ffprobeBinary)
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	client := &Client{
		ffmpegBinary:   ffmpegBinary,
		ffprobeBinary:  ffprobeBinary,
		convertTimeout: time.Duration(convertTimeoutSeconds) * time.Second,
		exec:           commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// PitchShift retunes inputPath from 440 Hz to 432 Hz into outputPath.
//
// The filter chain lowers the sample rate interpretation by 432/440 (shifting
// pitch down), resamples back to the original rate, and compensates the tempo
// by 440/432 so the output duration matches the input.
func (c *Client) PitchShift(ctx context.Context, inputPath, outputPath string, progress func(ProgressUpdate)) error {
	if strings.TrimSpace(inputPath) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(outputPath) == "" {
		return errors.New("output path required")
	}

	probe, err := c.Probe(ctx, inputPath)
	if err != nil {
		return fmt.Errorf("probe input: %w", err)
	}
	if probe.SampleRate <= 0 {
		return fmt.Errorf("input %q has no audio stream", inputPath)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	convertCtx := ctx
	if c.convertTimeout > 0 {
		var cancel context.CancelFunc
		convertCtx, cancel = context.WithTimeout(ctx, c.convertTimeout)
		defer cancel()
	}

	filter := fmt.Sprintf(
		"asetrate=%d*%g/%g,aresample=%d,atempo=%g/%g",
		probe.SampleRate, targetTuningHz, sourceTuningHz,
		probe.SampleRate, sourceTuningHz, targetTuningHz,
	)
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-filter:a", filter,
		"-progress", "pipe:1",
		"-loglevel", "error",
		outputPath,
	}

	parser := newProgressParser(probe.Duration)
	if err := c.exec.Run(convertCtx, c.ffmpegBinary, args, func(line string) {
		if progress == nil {
			return
		}
		if update, ok := parser.parse(line); ok {
			progress(update)
		}
	}); err != nil {
		return fmt.Errorf("ffmpeg pitch shift: %w", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errors.New("ffmpeg produced no output file")
		}
		return fmt.Errorf("inspect output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("ffmpeg produced an empty file")
	}
	return nil
}

var _ Shifter = (*Client)(nil)
