package workflow_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"attune/internal/logging"
	"attune/internal/notifications"
	"attune/internal/queue"
	"attune/internal/services"
	"attune/internal/stage"
	"attune/internal/testsupport"
	"attune/internal/workflow"
)

type stubStage struct {
	name        string
	prepareHook func(*queue.Job)
	executeHook func(*queue.Job)
	prepareErr  error
	executeErr  error
	health      stage.Health
}

func newStubStage(name string) *stubStage {
	return &stubStage{name: name, health: stage.Healthy(name)}
}

func (s *stubStage) Prepare(_ context.Context, job *queue.Job) error {
	if s.prepareHook != nil {
		s.prepareHook(job)
	}
	return s.prepareErr
}

func (s *stubStage) Execute(_ context.Context, job *queue.Job) error {
	if s.executeHook != nil {
		s.executeHook(job)
	}
	return s.executeErr
}

func (s *stubStage) HealthCheck(context.Context) stage.Health {
	return s.health
}

type managerNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (n *managerNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
	return nil
}

func (n *managerNotifier) count(event notifications.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, e := range n.events {
		if e == event {
			total++
		}
	}
	return total
}

func waitForStatus(t *testing.T, store *queue.Store, id int64, want queue.Status) *queue.Job {
	t.Helper()
	deadline := time.After(30 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		default:
		}
		job, err := store.GetByID(context.Background(), id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job != nil && job.Status == want {
			return job
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func TestManagerProcessesJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenStore(t, cfg)

	fetcher := newStubStage("fetch")
	fetcher.executeHook = func(job *queue.Job) {
		job.Title = "Stub Song"
		job.OriginalFile = "/tmp/" + job.Token + "_original.mp3"
	}
	converter := newStubStage("convert")
	converter.executeHook = func(job *queue.Job) {
		job.ConvertedFile = "/tmp/" + job.Token + "_432hz.mp3"
	}

	notifier := &managerNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.Configure(workflow.StageSet{Fetcher: fetcher, Converter: converter})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	job := testsupport.NewJob(t, store, "https://youtu.be/flow")
	final := waitForStatus(t, store, job.ID, queue.StatusCompleted)

	if final.Title != "Stub Song" {
		t.Fatalf("expected fetch stage result persisted, got %q", final.Title)
	}
	if final.ConvertedFile == "" {
		t.Fatal("expected convert stage result persisted")
	}
	if final.ProgressPercent != 100 {
		t.Fatalf("expected completed progress, got %v", final.ProgressPercent)
	}

	deadline := time.After(10 * time.Second)
	for notifier.count(notifications.EventQueueCompleted) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for queue completion notification")
		default:
			time.Sleep(25 * time.Millisecond)
		}
	}
	if notifier.count(notifications.EventQueueStarted) != 1 {
		t.Fatalf("expected one queue start notification, got %d", notifier.count(notifications.EventQueueStarted))
	}
}

func TestManagerRecordsStageFailureMessage(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	store := testsupport.MustOpenStore(t, cfg)

	fetcher := newStubStage("fetch")
	fetcher.executeErr = services.Wrap(
		services.ErrExternalTool, "fetch", "yt-dlp download",
		"Failed to download audio. Try another URL or try again later.", errors.New("exit status 1"))
	converter := newStubStage("convert")

	notifier := &managerNotifier{}
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier)
	mgr.Configure(workflow.StageSet{Fetcher: fetcher, Converter: converter})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	job := testsupport.NewJob(t, store, "https://youtu.be/fail")
	failed := waitForStatus(t, store, job.ID, queue.StatusFailed)

	if failed.ErrorMessage != "Failed to download audio. Try another URL or try again later." {
		t.Fatalf("expected user-facing failure message, got %q", failed.ErrorMessage)
	}
	if failed.FailureCode != http.StatusInternalServerError {
		t.Fatalf("expected tool failure classified as 500, got %d", failed.FailureCode)
	}
	if failed.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on failure")
	}

	deadline := time.After(10 * time.Second)
	for notifier.count(notifications.EventJobFailed) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for failure notification")
		default:
			time.Sleep(25 * time.Millisecond)
		}
	}
}

func TestManagerStartRequiresConfiguredStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), nil)
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail without configured stages")
	}
}

func TestManagerStatusReportsStageHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	fetcher := newStubStage("fetch")
	converter := newStubStage("convert")
	converter.health = stage.Unhealthy("convert", "ffmpeg missing")

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), nil)
	mgr.Configure(workflow.StageSet{Fetcher: fetcher, Converter: converter})

	summary := mgr.Status(context.Background())
	if summary.Running {
		t.Fatal("expected manager to report not running")
	}
	if health, ok := summary.StageHealth["convert"]; !ok || health.Ready {
		t.Fatalf("expected unhealthy convert stage, got %#v", summary.StageHealth)
	}
	if health, ok := summary.StageHealth["fetch"]; !ok || !health.Ready {
		t.Fatalf("expected healthy fetch stage, got %#v", summary.StageHealth)
	}
}

func TestManagerWorkersDoNotDoubleClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(3))
	store := testsupport.MustOpenStore(t, cfg)

	var mu sync.Mutex
	executions := make(map[string]int)

	fetcher := newStubStage("fetch")
	fetcher.executeHook = func(job *queue.Job) {
		mu.Lock()
		executions[job.Token+":fetch"]++
		mu.Unlock()
	}
	converter := newStubStage("convert")
	converter.executeHook = func(job *queue.Job) {
		mu.Lock()
		executions[job.Token+":convert"]++
		mu.Unlock()
	}

	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), nil)
	mgr.Configure(workflow.StageSet{Fetcher: fetcher, Converter: converter})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(mgr.Stop)

	jobs := make([]*queue.Job, 0, 4)
	for i := 0; i < 4; i++ {
		jobs = append(jobs, testsupport.NewJob(t, store, "https://youtu.be/parallel"))
	}
	for _, job := range jobs {
		waitForStatus(t, store, job.ID, queue.StatusCompleted)
	}

	mu.Lock()
	defer mu.Unlock()
	for key, count := range executions {
		if count != 1 {
			t.Fatalf("stage executed %d times for %s", count, key)
		}
	}
}
