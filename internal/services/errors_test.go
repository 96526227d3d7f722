package services_test

import (
	"errors"
	"strings"
	"testing"

	"attune/internal/services"
)

func TestWrapTagsMarkerAndDetail(t *testing.T) {
	base := errors.New("exit status 1")
	err := services.Wrap(services.ErrExternalTool, "fetch", "yt-dlp", "download failed", base)

	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatal("expected external tool marker")
	}
	if !errors.Is(err, base) {
		t.Fatal("expected wrapped base error")
	}
	if !strings.Contains(err.Error(), "fetch: yt-dlp: download failed") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "convert", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatal("expected transient marker when none provided")
	}
}

func TestMessagePrefersWrappedDetail(t *testing.T) {
	err := services.Wrap(services.ErrExternalTool, "fetch", "yt-dlp", "Failed to download audio. Try another URL or try again later.", errors.New("exit status 1"))
	if got := services.Message(err); got != "Failed to download audio. Try another URL or try again later." {
		t.Fatalf("unexpected message: %q", got)
	}
	plain := errors.New("plain failure")
	if got := services.Message(plain); got != "plain failure" {
		t.Fatalf("unexpected fallback message: %q", got)
	}
	if got := services.Message(nil); got != "" {
		t.Fatalf("expected empty message for nil error, got %q", got)
	}
}

func TestFailureStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"validation", services.Wrap(services.ErrValidation, "fetch", "", "bad URL", nil), 400},
		{"not found", services.Wrap(services.ErrNotFound, "api", "", "no such job", nil), 400},
		{"timeout", services.Wrap(services.ErrTimeout, "convert", "", "ffmpeg timed out", nil), 504},
		{"external tool", services.Wrap(services.ErrExternalTool, "convert", "", "crash", nil), 500},
		{"configuration", services.Wrap(services.ErrConfiguration, "fetch", "", "yt-dlp missing", nil), 500},
		{"plain", errors.New("boom"), 500},
	}
	for _, tc := range cases {
		if got := services.FailureStatus(tc.err); got != tc.want {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.want, got)
		}
	}
}

func TestIsRejection(t *testing.T) {
	if !services.IsRejection(services.Wrap(services.ErrValidation, "fetch", "", "missing URL", nil)) {
		t.Fatal("validation errors are rejections")
	}
	if !services.IsRejection(services.Wrap(services.ErrNotFound, "api", "", "no such job", nil)) {
		t.Fatal("not-found errors are rejections")
	}
	if services.IsRejection(services.Wrap(services.ErrExternalTool, "convert", "", "crash", nil)) {
		t.Fatal("tool errors are not rejections")
	}
}
