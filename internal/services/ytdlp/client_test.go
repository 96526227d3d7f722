package ytdlp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type fakeExecutor struct {
	lines   []string
	onRun   func(destDir string)
	binary  string
	args    []string
	destDir string
}

func (f *fakeExecutor) Run(ctx context.Context, binary string, args []string, onLine func(string)) error {
	f.binary = binary
	f.args = args
	if f.onRun != nil {
		f.onRun(f.destDir)
	}
	for _, line := range f.lines {
		onLine(line)
	}
	return nil
}

func TestFetchParsesProgressAndTitle(t *testing.T) {
	destDir := t.TempDir()
	exec := &fakeExecutor{
		destDir: destDir,
		lines: []string{
			"[download]   1.0% of 4.00MiB at 1.00MiB/s ETA 00:04",
			"[download]  55.5% of 4.00MiB at 1.00MiB/s ETA 00:02",
			"[download] 100% of 4.00MiB in 00:04",
			"Never Gonna Give You Up",
		},
		onRun: func(dir string) {
			path := filepath.Join(dir, "tok_original.mp3")
			if err := os.WriteFile(path, []byte("mp3data"), 0o644); err != nil {
				t.Fatalf("write fake output: %v", err)
			}
		},
	}

	client, err := New("yt-dlp", "mp3", "192K", 60, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var percents []float64
	result, err := client.Fetch(context.Background(), "https://youtube.com/watch?v=abc", destDir, "tok", func(u ProgressUpdate) {
		percents = append(percents, u.Percent)
	})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Path != filepath.Join(destDir, "tok_original.mp3") {
		t.Fatalf("unexpected output path: %q", result.Path)
	}
	if result.Title != "Never Gonna Give You Up" {
		t.Fatalf("unexpected title: %q", result.Title)
	}
	if len(percents) != 3 || percents[1] != 55.5 {
		t.Fatalf("unexpected progress updates: %v", percents)
	}
}

func TestFetchFailsWithoutOutputFile(t *testing.T) {
	destDir := t.TempDir()
	client, err := New("yt-dlp", "mp3", "192K", 60, WithExecutor(&fakeExecutor{destDir: destDir}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.Fetch(context.Background(), "https://youtube.com/watch?v=abc", destDir, "tok", nil); err == nil {
		t.Fatal("expected error when no output produced")
	}
}

func TestFetchValidatesArguments(t *testing.T) {
	client, err := New("yt-dlp", "mp3", "192K", 60, WithExecutor(&fakeExecutor{}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := client.Fetch(context.Background(), "", t.TempDir(), "tok", nil); err == nil {
		t.Fatal("expected error for empty url")
	}
	if _, err := client.Fetch(context.Background(), "https://example.com", "", "tok", nil); err == nil {
		t.Fatal("expected error for empty destination")
	}
	if _, err := client.Fetch(context.Background(), "https://example.com", t.TempDir(), "", nil); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestParseProgress(t *testing.T) {
	cases := []struct {
		line    string
		percent float64
		ok      bool
	}{
		{"[download]  42.3% of 4.00MiB at 512KiB/s ETA 00:05", 42.3, true},
		{"[download] 100% of 4.00MiB in 00:08", 100, true},
		{"[download] Destination: tok_original.webm", 0, false},
		{"[ExtractAudio] Destination: tok_original.mp3", 0, false},
		{"plain text", 0, false},
	}
	for _, tc := range cases {
		update, ok := parseProgress(tc.line)
		if ok != tc.ok {
			t.Fatalf("%q: expected ok=%v", tc.line, tc.ok)
		}
		if ok && update.Percent != tc.percent {
			t.Fatalf("%q: expected %v, got %v", tc.line, tc.percent, update.Percent)
		}
	}
}

func TestNewRequiresBinary(t *testing.T) {
	if _, err := New("", "mp3", "192K", 60); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
