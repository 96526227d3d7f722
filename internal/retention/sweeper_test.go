package retention_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"attune/internal/logging"
	"attune/internal/queue"
	"attune/internal/retention"
	"attune/internal/testsupport"
)

func TestNewSweeperDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Retention.Enabled = false
	store := testsupport.MustOpenStore(t, cfg)

	if sweeper := retention.NewSweeper(cfg, store, logging.NewNop()); sweeper != nil {
		t.Fatal("expected nil sweeper when retention disabled")
	}
}

func TestSweepOnceRemovesAgedJobsAndFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Retention.Enabled = true
	cfg.Retention.MaxAgeHours = 1
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	aged := testsupport.NewJob(t, store, "https://youtu.be/aged")
	aged.Status = queue.StatusCompleted
	aged.OriginalFile = filepath.Join(cfg.Paths.WorkDir, aged.Token+"_original.mp3")
	aged.ConvertedFile = filepath.Join(cfg.Paths.WorkDir, aged.Token+"_432hz.mp3")
	testsupport.WriteFile(t, aged.OriginalFile, 128)
	testsupport.WriteFile(t, aged.ConvertedFile, 256)
	if err := store.Update(ctx, aged); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	backdateJob(t, store, aged, time.Now().UTC().Add(-2*time.Hour))

	fresh := testsupport.NewJob(t, store, "https://youtu.be/fresh")
	fresh.Status = queue.StatusCompleted
	fresh.ConvertedFile = filepath.Join(cfg.Paths.WorkDir, fresh.Token+"_432hz.mp3")
	testsupport.WriteFile(t, fresh.ConvertedFile, 64)
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	sweeper := retention.NewSweeper(cfg, store, logging.NewNop())
	if sweeper == nil {
		t.Fatal("expected sweeper when retention enabled")
	}

	summary, err := sweeper.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce failed: %v", err)
	}
	if summary.JobsRemoved != 1 {
		t.Fatalf("expected 1 job removed, got %d", summary.JobsRemoved)
	}
	if summary.FilesRemoved != 2 {
		t.Fatalf("expected 2 files removed, got %d", summary.FilesRemoved)
	}
	if summary.BytesFreed != 384 {
		t.Fatalf("expected 384 bytes freed, got %d", summary.BytesFreed)
	}

	if _, err := os.Stat(aged.OriginalFile); !os.IsNotExist(err) {
		t.Fatal("expected aged original file deleted")
	}
	if _, err := os.Stat(fresh.ConvertedFile); err != nil {
		t.Fatal("expected fresh converted file to survive")
	}

	remaining, err := store.GetByID(ctx, fresh.ID)
	if err != nil || remaining == nil {
		t.Fatalf("expected fresh job to survive, got %v %v", remaining, err)
	}
}

func TestSweepOnceRemovesOrphanedWorkFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Retention.Enabled = true
	cfg.Retention.MaxAgeHours = 1
	store := testsupport.MustOpenStore(t, cfg)

	orphan := filepath.Join(cfg.Paths.WorkDir, "deadbeef_original.mp3")
	testsupport.WriteFile(t, orphan, 32)
	old := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(orphan, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	unrelated := filepath.Join(cfg.Paths.WorkDir, "notes.txt")
	testsupport.WriteFile(t, unrelated, 16)
	if err := os.Chtimes(unrelated, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	sweeper := retention.NewSweeper(cfg, store, logging.NewNop())
	summary, err := sweeper.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("SweepOnce failed: %v", err)
	}
	if summary.FilesRemoved != 1 {
		t.Fatalf("expected 1 orphan removed, got %d", summary.FilesRemoved)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatal("expected orphan deleted")
	}
	if _, err := os.Stat(unrelated); err != nil {
		t.Fatal("expected unrelated file to survive")
	}
}

func TestUsageForPath(t *testing.T) {
	usage, err := retention.UsageForPath(t.TempDir())
	if err != nil {
		t.Fatalf("UsageForPath failed: %v", err)
	}
	if usage.TotalBytes == 0 {
		t.Fatal("expected non-zero filesystem size")
	}
	if usage.FreeRatio < 0 || usage.FreeRatio > 1 {
		t.Fatalf("free ratio out of range: %v", usage.FreeRatio)
	}
}

// backdateJob forces updated_at into the past so retention cutoffs apply.
func backdateJob(t *testing.T, store *queue.Store, job *queue.Job, when time.Time) {
	t.Helper()
	if err := store.Backdate(context.Background(), job.ID, when); err != nil {
		t.Fatalf("Backdate failed: %v", err)
	}
}
