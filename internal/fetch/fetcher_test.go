package fetch_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"attune/internal/fetch"
	"attune/internal/logging"
	"attune/internal/notifications"
	"attune/internal/queue"
	"attune/internal/services"
	"attune/internal/services/ytdlp"
	"attune/internal/testsupport"
)

type fakeFetchClient struct {
	result ytdlp.Result
	err    error

	gotURL     string
	gotDestDir string
	gotToken   string
}

func (f *fakeFetchClient) Fetch(ctx context.Context, url, destDir, token string, progress func(ytdlp.ProgressUpdate)) (ytdlp.Result, error) {
	f.gotURL = url
	f.gotDestDir = destDir
	f.gotToken = token
	if progress != nil {
		progress(ytdlp.ProgressUpdate{Percent: 42, Message: "downloading"})
	}
	return f.result, f.err
}

type recordingNotifier struct {
	events []notifications.Event
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.events = append(r.events, event)
	return nil
}

func TestFetcherExecuteRecordsResult(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "https://www.youtube.com/watch?v=abc")

	client := &fakeFetchClient{
		result: ytdlp.Result{
			Path:  filepath.Join(cfg.Paths.WorkDir, job.Token+"_original.mp3"),
			Title: "Some Song",
		},
	}
	notifier := &recordingNotifier{}
	handler := fetch.NewFetcherWithDependencies(cfg, store, logging.NewNop(), client, notifier)

	ctx := context.Background()
	if err := handler.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if client.gotURL != "https://www.youtube.com/watch?v=abc" {
		t.Fatalf("unexpected URL passed to client: %q", client.gotURL)
	}
	if client.gotDestDir != cfg.Paths.WorkDir {
		t.Fatalf("unexpected destination dir: %q", client.gotDestDir)
	}
	if client.gotToken != job.Token {
		t.Fatalf("unexpected token: %q", client.gotToken)
	}

	if job.OriginalFile != client.result.Path {
		t.Fatalf("expected original file recorded, got %q", job.OriginalFile)
	}
	if job.Title != "Some Song" {
		t.Fatalf("expected title recorded, got %q", job.Title)
	}
	if job.ProgressPercent != 100 {
		t.Fatalf("expected completed progress, got %v", job.ProgressPercent)
	}

	if len(notifier.events) != 2 ||
		notifier.events[0] != notifications.EventFetchStarted ||
		notifier.events[1] != notifications.EventFetchCompleted {
		t.Fatalf("unexpected notification events: %v", notifier.events)
	}
}

func TestFetcherExecuteSanitizesTitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "https://youtu.be/slashes")

	client := &fakeFetchClient{
		result: ytdlp.Result{
			Path:  filepath.Join(cfg.Paths.WorkDir, job.Token+"_original.mp3"),
			Title: `  AC/DC: "Live" <1991>  `,
		},
	}
	handler := fetch.NewFetcherWithDependencies(cfg, store, logging.NewNop(), client, nil)

	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if job.Title != "AC-DC- Live 1991" {
		t.Fatalf("expected sanitized title, got %q", job.Title)
	}
}

func TestFetcherExecuteWrapsClientFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "https://youtu.be/broken")

	client := &fakeFetchClient{err: errors.New("403 forbidden")}
	handler := fetch.NewFetcherWithDependencies(cfg, store, logging.NewNop(), client, nil)

	err := handler.Execute(context.Background(), job)
	if err == nil {
		t.Fatal("expected fetch failure")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation marker, got %v", err)
	}
}

func TestFetcherExecutePersistsProgress(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, "https://youtu.be/progress")

	client := &fakeFetchClient{
		result: ytdlp.Result{Path: filepath.Join(cfg.Paths.WorkDir, job.Token+"_original.mp3")},
	}
	handler := fetch.NewFetcherWithDependencies(cfg, store, logging.NewNop(), client, nil)

	ctx := context.Background()
	job.Status = queue.StatusFetching
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if err := handler.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	reloaded, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reloaded.ProgressMessage != "downloading" {
		t.Fatalf("expected progress persisted mid-fetch, got %q", reloaded.ProgressMessage)
	}
}

func TestFetcherHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)

	handler := fetch.NewFetcherWithDependencies(cfg, store, logging.NewNop(), &fakeFetchClient{}, nil)
	health := handler.HealthCheck(context.Background())
	if !health.Ready {
		t.Fatalf("expected healthy fetcher, got %#v", health)
	}

	broken := fetch.NewFetcherWithDependencies(cfg, store, logging.NewNop(), nil, nil)
	health = broken.HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected unhealthy fetcher without client")
	}
}
