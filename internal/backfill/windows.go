package backfill

import "time"

// maxWindow is the largest span the provider's reporting API accepts for a
// single query.
const maxWindow = 31 * 24 * time.Hour

// Window is a half-open [Start, End) query span.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows tiles [start, end) into consecutive half-open windows of at most
// 31 days each, the final window truncated to end. The windows cover the
// span exactly, with no gaps and no overlaps.
func Windows(start, end time.Time) []Window {
	if !start.Before(end) {
		return nil
	}

	var windows []Window
	for cursor := start; cursor.Before(end); {
		next := cursor.Add(maxWindow)
		if next.After(end) {
			next = end
		}
		windows = append(windows, Window{Start: cursor, End: next})
		cursor = next
	}
	return windows
}
