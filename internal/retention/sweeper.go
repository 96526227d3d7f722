package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"attune/internal/config"
	"attune/internal/logging"
	"attune/internal/queue"
)

// Sweeper removes aged conversion artifacts from the work directory together
// with their queue rows. Jobs still being processed are never touched.
type Sweeper struct {
	store    *queue.Store
	logger   *slog.Logger
	workDir  string
	maxAge   time.Duration
	interval time.Duration
}

// Summary reports the outcome of a single sweep.
type Summary struct {
	JobsRemoved  int
	FilesRemoved int
	BytesFreed   int64
}

// DiskUsage describes free space on the filesystem backing the work directory.
type DiskUsage struct {
	TotalBytes uint64
	FreeBytes  uint64
	FreeRatio  float64
}

// NewSweeper builds a sweeper when retention is enabled; returns nil when
// disabled or misconfigured.
func NewSweeper(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Sweeper {
	if cfg == nil || !cfg.Retention.Enabled {
		return nil
	}
	workDir := strings.TrimSpace(cfg.Paths.WorkDir)
	if workDir == "" || cfg.Retention.MaxAgeHours <= 0 {
		return nil
	}
	interval := time.Duration(cfg.Retention.SweepIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Sweeper{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "retention"),
		workDir:  workDir,
		maxAge:   time.Duration(cfg.Retention.MaxAgeHours) * time.Hour,
		interval: interval,
	}
}

// Run sweeps periodically until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	if s == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary, err := s.SweepOnce(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				s.logger.Warn("retention sweep failed", logging.Error(err))
				continue
			}
			if summary.JobsRemoved > 0 || summary.FilesRemoved > 0 {
				s.logger.Info("retention sweep completed",
					logging.Int("jobs_removed", summary.JobsRemoved),
					logging.Int("files_removed", summary.FilesRemoved),
					logging.Int64("bytes_freed", summary.BytesFreed),
				)
			}
		}
	}
}

// SweepOnce removes jobs and work files older than the retention window.
func (s *Sweeper) SweepOnce(ctx context.Context) (Summary, error) {
	if s == nil {
		return Summary{}, nil
	}
	cutoff := time.Now().UTC().Add(-s.maxAge)

	removed, err := s.store.RemoveOlderThan(ctx, cutoff)
	if err != nil {
		return Summary{}, fmt.Errorf("remove aged jobs: %w", err)
	}

	summary := Summary{JobsRemoved: len(removed)}
	for _, job := range removed {
		for _, path := range []string{job.OriginalFile, job.ConvertedFile} {
			summary.accumulate(s.removeFile(path))
		}
	}

	orphanFiles, orphanBytes, err := s.sweepOrphans(ctx, cutoff)
	if err != nil {
		return summary, err
	}
	summary.FilesRemoved += orphanFiles
	summary.BytesFreed += orphanBytes

	return summary, nil
}

// sweepOrphans deletes work files older than the cutoff whose queue rows are
// already gone, catching leftovers from crashed runs.
func (s *Sweeper) sweepOrphans(ctx context.Context, cutoff time.Time) (int, int64, error) {
	entries, err := os.ReadDir(s.workDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("read work dir: %w", err)
	}

	files := 0
	var bytes int64
	for _, entry := range entries {
		if ctx.Err() != nil {
			return files, bytes, ctx.Err()
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		token := tokenFromFileName(entry.Name())
		if token == "" {
			continue
		}
		job, err := s.store.GetByToken(ctx, token)
		if err != nil {
			return files, bytes, fmt.Errorf("look up token %q: %w", token, err)
		}
		if job != nil {
			continue
		}
		removedFiles, removedBytes := s.removeFile(filepath.Join(s.workDir, entry.Name()))
		files += removedFiles
		bytes += removedBytes
	}
	return files, bytes, nil
}

func (s *Sweeper) removeFile(path string) (int, int64) {
	path = strings.TrimSpace(path)
	if path == "" {
		return 0, 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0
	}
	if err := os.Remove(path); err != nil {
		s.logger.Warn("failed to remove work file", logging.String("path", path), logging.Error(err))
		return 0, 0
	}
	return 1, info.Size()
}

func (s *Summary) accumulate(files int, bytes int64) {
	s.FilesRemoved += files
	s.BytesFreed += bytes
}

// Usage reports free space on the filesystem backing the work directory.
func (s *Sweeper) Usage() (DiskUsage, error) {
	return UsageForPath(s.workDir)
}

// UsageForPath reports free space for an arbitrary directory.
func UsageForPath(path string) (DiskUsage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return DiskUsage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	usage := DiskUsage{TotalBytes: total, FreeBytes: free}
	if total > 0 {
		usage.FreeRatio = float64(free) / float64(total)
	}
	return usage, nil
}

// tokenFromFileName extracts the job token from a work file name such as
// "<token>_original.mp3" or "<token>_432hz.mp3".
func tokenFromFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for _, suffix := range []string{"_original", "_432hz"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return ""
}
