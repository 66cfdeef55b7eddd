package popup

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"negative", -5 * time.Second, "0s"},
		{"seconds", 45 * time.Second, "45s"},
		{"minutes", 12*time.Minute + 30*time.Second, "12m"},
		{"hours", time.Hour + 5*time.Minute, "1h 05m"},
		{"long", 10*time.Hour + 59*time.Minute, "10h 59m"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatDuration(tc.in); got != tc.want {
				t.Fatalf("formatDuration(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestBar(t *testing.T) {
	if got := bar(0, 100, 10); got != "" {
		t.Fatalf("bar(0) = %q, want empty", got)
	}
	if got := []rune(bar(100, 100, 10)); len(got) != 10 {
		t.Fatalf("bar(max) = %d cells, want 10", len(got))
	}
	if got := []rune(bar(1, 1000, 10)); len(got) != 1 {
		t.Fatalf("bar(tiny) = %d cells, want 1", len(got))
	}
}

func TestPluralize(t *testing.T) {
	if got := pluralize(1, "visit", "visits"); got != "1 visit" {
		t.Fatalf("pluralize(1) = %q", got)
	}
	if got := pluralize(3, "visit", "visits"); got != "3 visits" {
		t.Fatalf("pluralize(3) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  ", 10); got != "" {
		t.Fatalf("truncate blank = %q, want empty", got)
	}
	if got := truncate("abcd", 2); got != "ab" {
		t.Fatalf("truncate limit<=3 = %q, want ab", got)
	}
	if got := truncate("subdomain.example.com", 10); got != "subdoma..." {
		t.Fatalf("truncate = %q, want subdoma...", got)
	}
}
