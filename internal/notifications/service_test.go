package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"attune/internal/config"
	"attune/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventFetchCompleted, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "fetch started",
			event:         notifications.EventFetchStarted,
			payload:       notifications.Payload{"title": "Some Song"},
			expectTitle:   "Attune - Fetch Started",
			expectMessage: "Fetching audio: Some Song",
			expectTags:    "attune,fetch,started",
		},
		{
			name:           "conversion completed",
			event:          notifications.EventConversionCompleted,
			payload:        notifications.Payload{"title": "Some Song"},
			expectTitle:    "Attune - Complete",
			expectMessage:  "Ready to listen at 432 Hz: Some Song",
			expectTags:     "attune,convert,completed",
			expectPriority: "high",
		},
		{
			name:           "job failed",
			event:          notifications.EventJobFailed,
			payload:        notifications.Payload{"url": "https://youtu.be/x", "error": "download blew up"},
			expectTitle:    "Attune - Failed",
			expectMessage:  "Conversion failed: https://youtu.be/x\ndownload blew up",
			expectTags:     "attune,error,alert",
			expectPriority: "high",
		},
		{
			name:          "queue completed",
			event:         notifications.EventQueueCompleted,
			payload:       notifications.Payload{"processed": "3", "failed": "1"},
			expectTitle:   "Attune - Queue Complete",
			expectMessage: "Queue drained: 3 succeeded, 1 failed",
			expectTags:    "attune,queue,completed",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var (
				gotTitle    string
				gotTags     string
				gotPriority string
				gotBody     string
			)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotTitle = r.Header.Get("Title")
				gotTags = r.Header.Get("Tags")
				gotPriority = r.Header.Get("Priority")
				body, _ := io.ReadAll(r.Body)
				gotBody = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.Conversion = true
			cfg.Notifications.Errors = true
			cfg.Notifications.Queue = true
			svc := notifications.NewService(&cfg)

			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish failed: %v", err)
			}
			if gotTitle != tc.expectTitle {
				t.Fatalf("title = %q, want %q", gotTitle, tc.expectTitle)
			}
			if gotBody != tc.expectMessage {
				t.Fatalf("body = %q, want %q", gotBody, tc.expectMessage)
			}
			if gotTags != tc.expectTags {
				t.Fatalf("tags = %q, want %q", gotTags, tc.expectTags)
			}
			if gotPriority != tc.expectPriority {
				t.Fatalf("priority = %q, want %q", gotPriority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceRespectsCategoryToggles(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Conversion = false
	cfg.Notifications.Errors = true
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.EventFetchStarted, nil); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected suppressed conversion event, got %d calls", calls)
	}

	if err := svc.Publish(context.Background(), notifications.EventJobFailed, notifications.Payload{"title": "x"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected error event delivered, got %d calls", calls)
	}
}

func TestNtfyServiceSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Queue = true
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventQueueStarted, notifications.Payload{"count": "2"})
	if err == nil {
		t.Fatal("expected error from failing ntfy endpoint")
	}
}
