package textutil

import "testing"

func TestSanitizeFileName(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Some Song", "Some Song"},
		{"slashes", "AC/DC: Back in Black", "AC-DC- Back in Black"},
		{"stripped chars", `What? "Why" <now>`, "What Why now"},
		{"whitespace", "  padded  ", "padded"},
		{"empty", "   ", ""},
		{"decomposed accent", "Café", "Café"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeFileName(tc.input); got != tc.want {
				t.Fatalf("SanitizeFileName(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Some Song", "some_song"},
		{"already-safe_token", "already-safe_token"},
		{"___", "unknown"},
		{"", "unknown"},
		{"Mixed 123!", "mixed_123"},
	}
	for _, tc := range cases {
		if got := SanitizeToken(tc.input); got != tc.want {
			t.Fatalf("SanitizeToken(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}
