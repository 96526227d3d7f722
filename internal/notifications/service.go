package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"attune/internal/config"
)

const userAgent = "Attune-Go/0.1.0"

// Event identifies a workflow milestone worth announcing.
type Event string

const (
	EventFetchStarted        Event = "fetch_started"
	EventFetchCompleted      Event = "fetch_completed"
	EventConversionStarted   Event = "conversion_started"
	EventConversionCompleted Event = "conversion_completed"
	EventJobFailed           Event = "job_failed"
	EventQueueStarted        Event = "queue_started"
	EventQueueCompleted      Event = "queue_completed"
	EventError               Event = "error"
	EventTest                Event = "test"
)

// Payload carries event-specific fields used to render the message.
type Payload map[string]string

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		conversions: cfg.Notifications.Conversion,
		errors:      cfg.Notifications.Errors,
		queue:       cfg.Notifications.Queue,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint    string
	client      *http.Client
	conversions bool
	errors      bool
	queue       bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled(event) {
		return nil
	}
	msg, ok := render(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventFetchStarted, EventFetchCompleted, EventConversionStarted, EventConversionCompleted:
		return n.conversions
	case EventJobFailed, EventError:
		return n.errors
	case EventQueueStarted, EventQueueCompleted:
		return n.queue
	default:
		return true
	}
}

func render(event Event, payload Payload) (message, bool) {
	get := func(key string) string {
		return strings.TrimSpace(payload[key])
	}
	label := get("title")
	if label == "" {
		label = get("url")
	}
	switch event {
	case EventFetchStarted:
		return message{
			title: "Attune - Fetch Started",
			body:  fmt.Sprintf("Fetching audio: %s", label),
			tags:  []string{"attune", "fetch", "started"},
		}, true
	case EventFetchCompleted:
		return message{
			title: "Attune - Fetched",
			body:  fmt.Sprintf("Audio downloaded: %s", label),
			tags:  []string{"attune", "fetch", "completed"},
		}, true
	case EventConversionStarted:
		return message{
			title: "Attune - Conversion Started",
			body:  fmt.Sprintf("Retuning to 432 Hz: %s", label),
			tags:  []string{"attune", "convert", "started"},
		}, true
	case EventConversionCompleted:
		return message{
			title:    "Attune - Complete",
			body:     fmt.Sprintf("Ready to listen at 432 Hz: %s", label),
			tags:     []string{"attune", "convert", "completed"},
			priority: "high",
		}, true
	case EventJobFailed:
		body := fmt.Sprintf("Conversion failed: %s", label)
		if reason := get("error"); reason != "" {
			body = fmt.Sprintf("%s\n%s", body, reason)
		}
		return message{
			title:    "Attune - Failed",
			body:     body,
			tags:     []string{"attune", "error", "alert"},
			priority: "high",
		}, true
	case EventQueueStarted:
		return message{
			title: "Attune - Queue Started",
			body:  fmt.Sprintf("Started processing queue with %s jobs", get("count")),
			tags:  []string{"attune", "queue", "started"},
		}, true
	case EventQueueCompleted:
		return message{
			title: "Attune - Queue Complete",
			body:  fmt.Sprintf("Queue drained: %s succeeded, %s failed", get("processed"), get("failed")),
			tags:  []string{"attune", "queue", "completed"},
		}, true
	case EventError:
		body := "Error"
		if contextLabel := get("context"); contextLabel != "" {
			body = fmt.Sprintf("%s with %s", body, contextLabel)
		}
		if reason := get("error"); reason != "" {
			body = fmt.Sprintf("%s: %s", body, reason)
		}
		return message{
			title:    "Attune - Error",
			body:     body,
			tags:     []string{"attune", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Attune - Test",
			body:     "Notification system test",
			tags:     []string{"attune", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
