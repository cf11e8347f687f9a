package backfill

import (
	"testing"
	"time"
)

func TestWindowsCoverSpanExactly(t *testing.T) {
	start := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2016, 6, 15, 13, 30, 0, 0, time.UTC)

	windows := Windows(start, end)
	if len(windows) == 0 {
		t.Fatal("no windows")
	}
	if !windows[0].Start.Equal(start) {
		t.Fatalf("first window starts at %v", windows[0].Start)
	}
	if !windows[len(windows)-1].End.Equal(end) {
		t.Fatalf("last window ends at %v", windows[len(windows)-1].End)
	}
	for i, w := range windows {
		if !w.Start.Before(w.End) {
			t.Fatalf("window %d is empty or inverted: %v", i, w)
		}
		if w.End.Sub(w.Start) > maxWindow {
			t.Fatalf("window %d spans %v, over the limit", i, w.End.Sub(w.Start))
		}
		if i > 0 && !windows[i-1].End.Equal(w.Start) {
			t.Fatalf("gap or overlap between window %d and %d", i-1, i)
		}
	}
}

func TestWindowsShortSpanIsSingleWindow(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(48 * time.Hour)

	windows := Windows(start, end)
	if len(windows) != 1 {
		t.Fatalf("windows = %d, want 1", len(windows))
	}
	if !windows[0].Start.Equal(start) || !windows[0].End.Equal(end) {
		t.Fatalf("window = %v", windows[0])
	}
}

func TestWindowsExactMultiple(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * maxWindow)

	windows := Windows(start, end)
	if len(windows) != 2 {
		t.Fatalf("windows = %d, want 2", len(windows))
	}
}

func TestWindowsEmptySpan(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := Windows(at, at); got != nil {
		t.Fatalf("windows = %v, want nil", got)
	}
	if got := Windows(at.Add(time.Hour), at); got != nil {
		t.Fatalf("windows = %v, want nil", got)
	}
}
