package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientConvertPostsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/convert" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req ConvertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.YoutubeURL != "https://youtube.com/watch?v=abc" {
			t.Fatalf("unexpected url: %q", req.YoutubeURL)
		}
		json.NewEncoder(w).Encode(ConvertResponse{
			Success:  true,
			FileID:   "tok",
			AudioURL: "/api/listen/tok",
		})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.Convert(context.Background(), "https://youtube.com/watch?v=abc")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !resp.Success || resp.FileID != "tok" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestClientSurfacesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(ErrorResponse{Success: false, Error: "Please provide a YouTube URL"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = client.Convert(context.Background(), "")
	if err == nil || err.Error() != "Please provide a YouTube URL" {
		t.Fatalf("expected envelope error, got %v", err)
	}
}

func TestClientQueueListSendsStatusFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/queue" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		got := r.URL.Query()["status"]
		if len(got) != 2 || got[0] != "pending" || got[1] != "failed" {
			t.Fatalf("unexpected status filter: %v", got)
		}
		json.NewEncoder(w).Encode(QueueListResponse{Jobs: []QueueJob{{ID: 1}}})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	jobs, err := client.QueueList(context.Background(), "pending", "failed")
	if err != nil {
		t.Fatalf("QueueList: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != 1 {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}
}

func TestClientQueueClearScopes(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		seen = r.URL.RequestURI()
		json.NewEncoder(w).Encode(QueueMutationResponse{Affected: 3})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	affected, err := client.QueueClear(context.Background(), "completed")
	if err != nil {
		t.Fatalf("QueueClear: %v", err)
	}
	if affected != 3 {
		t.Fatalf("expected 3 affected, got %d", affected)
	}
	if !strings.Contains(seen, "scope=completed") {
		t.Fatalf("expected scope query, got %q", seen)
	}

	if _, err := client.QueueClear(context.Background(), "all"); err != nil {
		t.Fatalf("QueueClear all: %v", err)
	}
	if strings.Contains(seen, "scope=") {
		t.Fatalf("expected no scope query for all, got %q", seen)
	}
}

func TestClientQueueHealthAndReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/queue/health":
			json.NewEncoder(w).Encode(QueueHealthResponse{
				Summary:  QueueHealthSummary{Total: 4, Pending: 2},
				Database: DatabaseHealth{DatabaseExists: true, IntegrityCheck: true},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/api/queue/reset":
			json.NewEncoder(w).Encode(QueueMutationResponse{Affected: 2})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	health, err := client.QueueHealth(context.Background())
	if err != nil {
		t.Fatalf("QueueHealth: %v", err)
	}
	if health.Summary.Total != 4 || !health.Database.IntegrityCheck {
		t.Fatalf("unexpected health: %+v", health)
	}

	affected, err := client.QueueReset(context.Background())
	if err != nil {
		t.Fatalf("QueueReset: %v", err)
	}
	if affected != 2 {
		t.Fatalf("expected 2 affected, got %d", affected)
	}
}

func TestClientTestNotification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/notifications/test" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(NotificationTestResponse{Success: true, Sent: true, Message: "test notification sent"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := client.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if !resp.Sent || resp.Message != "test notification sent" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestNewClientNormalizesAddress(t *testing.T) {
	client, err := NewClient("127.0.0.1:8080/")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.baseURL != "http://127.0.0.1:8080" {
		t.Fatalf("unexpected base url: %q", client.baseURL)
	}
	if _, err := NewClient("   "); err == nil {
		t.Fatal("expected error for empty address")
	}
}
