package printer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/orq/internal/printer"
)

func TestTimeAgo(t *testing.T) {
	now := time.Now().UTC()

	tests := map[string]struct {
		time     time.Time
		expected string
	}{
		"1 second ago": {
			time:     now.Add(-1 * time.Second),
			expected: "1 second ago (UTC)",
		},
		"30 seconds ago": {
			time:     now.Add(-30 * time.Second),
			expected: "30 seconds ago (UTC)",
		},
		"1 minute ago": {
			time:     now.Add(-1 * time.Minute),
			expected: "1 minute ago (UTC)",
		},
		"45 minutes ago": {
			time:     now.Add(-45 * time.Minute),
			expected: "45 minutes ago (UTC)",
		},
		"1 hour ago": {
			time:     now.Add(-1 * time.Hour),
			expected: "1 hour ago (UTC)",
		},
		"5 hours ago": {
			time:     now.Add(-5 * time.Hour),
			expected: "5 hours ago (UTC)",
		},
		"1 day ago": {
			time:     now.Add(-25 * time.Hour),
			expected: "1 day ago (UTC)",
		},
		"3 days ago": {
			time:     now.Add(-3 * 24 * time.Hour),
			expected: "3 days ago (UTC)",
		},
		"future time": {
			time:     now.Add(1 * time.Hour),
			expected: "in the future (UTC)",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, printer.TimeAgo(test.time))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 2, 10, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-02-10 10:30:00 UTC", printer.FormatTimestamp(ts))
}
