package printer

import (
	"fmt"
	"time"
)

// TimeAgo returns a human-readable relative time string in UTC, e.g.
// "5 seconds ago (UTC)" or "2 hours ago (UTC)".
func TimeAgo(t time.Time) string {
	diff := time.Now().UTC().Sub(t.UTC())
	if diff < 0 {
		return "in the future (UTC)"
	}

	var n int
	var unit string
	switch {
	case diff < time.Minute:
		n, unit = int(diff.Seconds()), "second"
	case diff < time.Hour:
		n, unit = int(diff.Minutes()), "minute"
	case diff < 24*time.Hour:
		n, unit = int(diff.Hours()), "hour"
	default:
		n, unit = int(diff.Hours()/24), "day"
	}

	if n == 1 {
		return fmt.Sprintf("1 %s ago (UTC)", unit)
	}
	return fmt.Sprintf("%d %ss ago (UTC)", n, unit)
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
