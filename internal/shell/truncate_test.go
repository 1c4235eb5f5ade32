package shell

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate_Identity(t *testing.T) {
	for _, content := range []string{"", "short", strings.Repeat("x", 100)} {
		if got := Truncate(content, 100); got != content {
			t.Errorf("Truncate(%q, 100) = %q, want unchanged", content, got)
		}
	}
}

func TestTruncate_NoBudget(t *testing.T) {
	content := strings.Repeat("x", 500)
	if got := Truncate(content, 0); got != content {
		t.Errorf("Truncate with zero budget modified content")
	}
}

func TestTruncate_HeadAndTail(t *testing.T) {
	head := strings.Repeat("a", 50)
	middle := strings.Repeat("m", 400)
	tail := strings.Repeat("z", 50)
	content := head + middle + tail

	got := Truncate(content, 100)

	if !strings.HasPrefix(got, head) {
		t.Errorf("truncated output does not start with the original head")
	}
	if !strings.HasSuffix(got, tail) {
		t.Errorf("truncated output does not end with the original tail")
	}
	if !strings.Contains(got, TruncateMarker) {
		t.Errorf("truncated output missing marker")
	}
	// The marker is not counted against the budget.
	if want := 100 + len(TruncateMarker); len(got) != want {
		t.Errorf("len = %d, want %d", len(got), want)
	}
	if strings.Contains(got, "m") {
		t.Errorf("middle survived truncation: %q", got)
	}
}

func TestTruncate_MultibyteRuneBoundaries(t *testing.T) {
	// Three bytes per rune: a byte-based cut at half the budget would
	// split a rune and emit invalid UTF-8.
	content := strings.Repeat("日", 200)

	got := Truncate(content, 101)

	if !utf8.ValidString(got) {
		t.Fatalf("truncated output is not valid UTF-8: %q", got)
	}
	if !strings.HasPrefix(got, strings.Repeat("日", 50)) {
		t.Errorf("head not preserved on rune boundary: %q", got)
	}
	if !strings.HasSuffix(got, strings.Repeat("日", 50)) {
		t.Errorf("tail not preserved on rune boundary: %q", got)
	}
	if want := 100 + utf8.RuneCountInString(TruncateMarker); utf8.RuneCountInString(got) != want {
		t.Errorf("rune count = %d, want %d", utf8.RuneCountInString(got), want)
	}
}

func TestTruncate_MultibyteWithinCharacterBudget(t *testing.T) {
	// 150 runes, 450 bytes: the budget counts characters, so this fits.
	content := strings.Repeat("日", 150)
	if got := Truncate(content, 200); got != content {
		t.Errorf("content within character budget was truncated: %q", got)
	}
}
