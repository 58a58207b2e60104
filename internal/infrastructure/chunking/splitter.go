// Package chunking cuts long document text into overlapping windows that fit
// a model prompt.
package chunking

import "strings"

type Splitter struct {
	WindowSize int
	Overlap    int
	MaxWindows int
}

func NewSplitter(windowSize, overlap, maxWindows int) *Splitter {
	if windowSize <= 0 {
		windowSize = 3500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= windowSize {
		overlap = windowSize / 4
	}
	if maxWindows <= 0 {
		maxWindows = 1
	}
	return &Splitter{
		WindowSize: windowSize,
		Overlap:    overlap,
		MaxWindows: maxWindows,
	}
}

// Split returns at most MaxWindows windows in document order. A window ends
// at the last line break in its final quarter when there is one, so fields
// are rarely cut in half. Text past the last window is dropped.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, s.MaxWindows)
	for start := 0; start < len(runes) && len(out) < s.MaxWindows; {
		end := start + s.WindowSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = breakBefore(runes, start+s.WindowSize*3/4, end)
		}

		if window := strings.TrimSpace(string(runes[start:end])); window != "" {
			out = append(out, window)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func breakBefore(runes []rune, from, end int) int {
	for i := end - 1; i >= from; i-- {
		if runes[i] == '\n' {
			return i + 1
		}
	}
	return end
}
