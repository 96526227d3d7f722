package queue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"attune/internal/queue"
	"attune/internal/testsupport"
)

func TestOpenInitializesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewJob(ctx, "https://www.youtube.com/watch?v=abc123")
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Token == "" {
		t.Fatal("expected job token to be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.SourceURL != "https://www.youtube.com/watch?v=abc123" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}

	byToken, err := store.GetByToken(ctx, job.Token)
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if byToken == nil || byToken.ID != job.ID {
		t.Fatalf("expected to find inserted job, got %#v", byToken)
	}
}

func TestNewJobRequiresSourceURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.NewJob(context.Background(), "  "); err == nil {
		t.Fatal("expected error when source URL missing")
	}
}

func TestUpdatePersistsFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtu.be/xyz")
	job.Status = queue.StatusFetched
	job.Title = "Test Song"
	job.OriginalFile = "/tmp/tok_original.mp3"
	job.SetProgress("Fetching", "downloaded", 100)

	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.Status != queue.StatusFetched {
		t.Fatalf("expected fetched status, got %s", reloaded.Status)
	}
	if reloaded.Title != "Test Song" || reloaded.OriginalFile != "/tmp/tok_original.mp3" {
		t.Fatalf("unexpected reloaded job: %#v", reloaded)
	}
	if reloaded.ProgressPercent != 100 {
		t.Fatalf("expected progress 100, got %v", reloaded.ProgressPercent)
	}
}

func TestClaimIsAtomic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://youtu.be/claim")

	claimed, err := store.Claim(ctx, job.ID, queue.StatusPending, queue.StatusFetching)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if !claimed {
		t.Fatal("expected first claim to succeed")
	}

	again, err := store.Claim(ctx, job.ID, queue.StatusPending, queue.StatusFetching)
	if err != nil {
		t.Fatalf("second Claim failed: %v", err)
	}
	if again {
		t.Fatal("expected second claim to lose the race")
	}

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.Status != queue.StatusFetching {
		t.Fatalf("expected fetching status, got %s", reloaded.Status)
	}
	if reloaded.LastHeartbeat == nil {
		t.Fatal("expected heartbeat to be stamped on claim")
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"fetching", queue.StatusFetching, queue.StatusPending},
		{"converting", queue.StatusConverting, queue.StatusFetched},
	}
	var ids []int64
	for i, tc := range cases {
		job := testsupport.NewJob(t, store, fmt.Sprintf("https://youtu.be/reset-%d", i))
		job.Status = tc.initialStatus
		job.ProgressStage = tc.name
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, job.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if count != int64(len(cases)) {
		t.Fatalf("expected %d jobs reset, got %d", len(cases), count)
	}

	for i, tc := range cases {
		reloaded, err := store.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if reloaded.Status != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, reloaded.Status)
		}
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale := testsupport.NewJob(t, store, "https://youtu.be/stale")
	stale.Status = queue.StatusConverting
	old := time.Now().UTC().Add(-time.Hour)
	stale.LastHeartbeat = &old
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh := testsupport.NewJob(t, store, "https://youtu.be/fresh")
	fresh.Status = queue.StatusFetching
	now := time.Now().UTC()
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job reclaimed, got %d", count)
	}

	reloaded, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.Status != queue.StatusFetched {
		t.Fatalf("expected fetched status after reclaim, got %s", reloaded.Status)
	}
	if reloaded.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared after reclaim")
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != queue.StatusFetching {
		t.Fatalf("expected fresh job untouched, got %s", untouched.Status)
	}
}

func TestRetryFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	failed := testsupport.NewJob(t, store, "https://youtu.be/failed")
	failed.SetFailed("download blew up")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 job retried, got %d", count)
	}

	reloaded, err := store.GetByID(ctx, failed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.Status != queue.StatusPending {
		t.Fatalf("expected pending status after retry, got %s", reloaded.Status)
	}
	if reloaded.ErrorMessage != "" {
		t.Fatalf("expected error message cleared, got %q", reloaded.ErrorMessage)
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewJob(t, store, "https://youtu.be/one")

	second := testsupport.NewJob(t, store, "https://youtu.be/two")
	second.Status = queue.StatusCompleted
	if err := store.Update(ctx, second); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats[queue.StatusPending] != 1 || stats[queue.StatusCompleted] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 2 || health.Pending != 1 || health.Completed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestRemoveOlderThanSkipsProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	aged := testsupport.NewJob(t, store, "https://youtu.be/aged")
	aged.Status = queue.StatusCompleted
	if err := store.Update(ctx, aged); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	busy := testsupport.NewJob(t, store, "https://youtu.be/busy")
	busy.Status = queue.StatusConverting
	if err := store.Update(ctx, busy); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	removed, err := store.RemoveOlderThan(ctx, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("RemoveOlderThan failed: %v", err)
	}
	if len(removed) != 1 || removed[0].ID != aged.ID {
		t.Fatalf("expected only aged job removed, got %#v", removed)
	}

	remaining, err := store.GetByID(ctx, busy.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if remaining == nil {
		t.Fatal("expected converting job to survive cleanup")
	}
}

func TestRemoveOlderThanSparesClaimedJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale := testsupport.NewJob(t, store, "https://youtu.be/stale")
	claimed := testsupport.NewJob(t, store, "https://youtu.be/claimed")

	cutoff := time.Now().UTC().Add(-48 * time.Hour)
	for _, job := range []*queue.Job{stale, claimed} {
		if err := store.Backdate(ctx, job.ID, cutoff.Add(-time.Hour)); err != nil {
			t.Fatalf("Backdate failed: %v", err)
		}
	}

	// A worker picks up the second job before the sweeper runs. The delete
	// re-checks status per row, so the claimed job must survive and must not
	// be reported for file cleanup.
	ok, err := store.Claim(ctx, claimed.ID, queue.StatusPending, queue.StatusFetching)
	if err != nil || !ok {
		t.Fatalf("Claim failed: ok=%v err=%v", ok, err)
	}

	removed, err := store.RemoveOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("RemoveOlderThan failed: %v", err)
	}
	if len(removed) != 1 || removed[0].ID != stale.ID {
		t.Fatalf("expected only stale pending job removed, got %#v", removed)
	}

	survivor, err := store.GetByID(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if survivor == nil || survivor.Status != queue.StatusFetching {
		t.Fatalf("expected claimed job to survive cleanup, got %#v", survivor)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Pending "); !ok || status != queue.StatusPending {
		t.Fatalf("unexpected parse result: %s %v", status, ok)
	}
	if _, ok := queue.ParseStatus("bogus"); ok {
		t.Fatal("expected bogus status to be rejected")
	}
}
