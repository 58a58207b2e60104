package chunking

import (
	"strings"
	"testing"
)

func TestSplitShortTextIsOneWindow(t *testing.T) {
	got := NewSplitter(100, 10, 3).Split("  invoice total 42  ")
	if len(got) != 1 || got[0] != "invoice total 42" {
		t.Fatalf("unexpected windows: %q", got)
	}
	if NewSplitter(100, 10, 3).Split("") != nil {
		t.Fatalf("empty text must give no windows")
	}
}

func TestSplitPrefersLineBreaks(t *testing.T) {
	text := strings.Repeat("a", 80) + "\n" + strings.Repeat("b", 80)
	got := NewSplitter(100, 0, 5).Split(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 windows, got %d: %q", len(got), got)
	}
	if got[0] != strings.Repeat("a", 80) {
		t.Fatalf("first window should stop at the line break, got %q", got[0])
	}
	if got[1] != strings.Repeat("b", 80) {
		t.Fatalf("unexpected second window %q", got[1])
	}
}

func TestSplitCapsWindowCount(t *testing.T) {
	text := strings.Repeat("x", 1000)
	got := NewSplitter(100, 20, 3).Split(text)
	if len(got) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(got))
	}
	for i, w := range got {
		if len([]rune(w)) > 100 {
			t.Fatalf("window %d has %d runes", i, len([]rune(w)))
		}
	}
}

func TestNewSplitterNormalizesSettings(t *testing.T) {
	s := NewSplitter(0, 5000, 0)
	if s.WindowSize != 3500 || s.Overlap != 875 || s.MaxWindows != 1 {
		t.Fatalf("unexpected settings: %+v", s)
	}
}
