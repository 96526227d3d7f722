package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ProgressUpdate captures yt-dlp download progress output.
type ProgressUpdate struct {
	Percent float64
	Message string
}

// Result describes a completed download.
type Result struct {
	Path  string
	Title string
}

// Fetcher defines the behaviour required by the fetch stage handler.
type Fetcher interface {
	Fetch(ctx context.Context, url, destDir, token string, progress func(ProgressUpdate)) (Result, error)
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

// Client wraps yt-dlp CLI interactions.
type Client struct {
	binary       string
	audioFormat  string
	audioQuality string
	fetchTimeout time.Duration
	exec         Executor
}

// New constructs a yt-dlp client.
func New(binary, audioFormat, audioQuality string, fetchTimeoutSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	audioFormat = strings.TrimSpace(audioFormat)
	if audioFormat == "" {
		audioFormat = "mp3"
	}
	audioQuality = strings.TrimSpace(audioQuality)
	if audioQuality == "" {
		audioQuality = "192K"
	}
	client := &Client{
		binary:       binary,
		audioFormat:  audioFormat,
		audioQuality: audioQuality,
		fetchTimeout: time.Duration(fetchTimeoutSeconds) * time.Second,
		exec:         commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Fetch downloads the audio track of a URL into destDir as
// <token>_original.<format>, returning the resulting file path and the
// media title reported by yt-dlp.
func (c *Client) Fetch(ctx context.Context, url, destDir, token string, progress func(ProgressUpdate)) (Result, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Result{}, errors.New("url required")
	}
	destDir = strings.TrimSpace(destDir)
	if destDir == "" {
		return Result{}, errors.New("destination directory required")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Result{}, errors.New("token required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create destination: %w", err)
	}

	fetchCtx := ctx
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	// yt-dlp appends the post-processed extension itself.
	outputTemplate := filepath.Join(destDir, token+"_original.%(ext)s")
	args := []string{
		"--no-playlist",
		"--newline",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", c.audioFormat,
		"--audio-quality", c.audioQuality,
		"--print", "after_move:title",
		"--no-simulate",
		"-o", outputTemplate,
		url,
	}

	var title string
	if err := c.exec.Run(fetchCtx, c.binary, args, func(line string) {
		if update, ok := parseProgress(line); ok {
			if progress != nil {
				progress(update)
			}
			return
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "[") ||
			strings.HasPrefix(trimmed, "WARNING") || strings.HasPrefix(trimmed, "ERROR") {
			return
		}
		title = trimmed
	}); err != nil {
		return Result{}, fmt.Errorf("yt-dlp fetch: %w", err)
	}

	destPath := filepath.Join(destDir, token+"_original."+c.audioFormat)
	info, err := os.Stat(destPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, errors.New("yt-dlp produced no output file")
		}
		return Result{}, fmt.Errorf("inspect download: %w", err)
	}
	if info.Size() == 0 {
		return Result{}, errors.New("yt-dlp produced an empty file")
	}

	return Result{Path: destPath, Title: title}, nil
}

// parseProgress extracts a percentage from "[download]  42.3% of ..." lines.
func parseProgress(line string) (ProgressUpdate, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "[download]") {
		return ProgressUpdate{}, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "[download]"))
	fields := strings.Fields(rest)
	if len(fields) == 0 || !strings.HasSuffix(fields[0], "%") {
		return ProgressUpdate{}, false
	}
	percent, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "%"), 64)
	if err != nil {
		return ProgressUpdate{}, false
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return ProgressUpdate{Percent: percent, Message: rest}, true
}

var _ Fetcher = (*Client)(nil)
