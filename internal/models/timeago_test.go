package models

import (
	"testing"
	"time"
)

func TestTimeAgo(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		then time.Time
		want string
	}{
		{"seconds ago", now.Add(-30 * time.Second), "Just now"},
		{"exactly now", now, "Just now"},
		{"future timestamp", now.Add(2 * time.Minute), "Just now"},
		{"one minute", now.Add(-1 * time.Minute), "1m ago"},
		{"fifty nine minutes", now.Add(-59 * time.Minute), "59m ago"},
		{"one hour", now.Add(-1 * time.Hour), "1h ago"},
		{"twenty three hours", now.Add(-23 * time.Hour), "23h ago"},
		{"one day", now.Add(-24 * time.Hour), "1d ago"},
		{"twenty nine days", now.Add(-29 * 24 * time.Hour), "29d ago"},
		{"one month", now.Add(-31 * 24 * time.Hour), "1mo ago"},
		{"eleven months", now.Add(-360 * 24 * time.Hour), "12mo ago"},
		{"one year", now.Add(-365 * 24 * time.Hour), "1y ago"},
		{"two years", now.Add(-800 * 24 * time.Hour), "2y ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TimeAgo(tt.then, now); got != tt.want {
				t.Errorf("TimeAgo() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTimeAgoNeverCombinesUnits(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	then := now.Add(-(27*time.Hour + 30*time.Minute))

	if got := TimeAgo(then, now); got != "1d ago" {
		t.Errorf("expected single-unit label, got %q", got)
	}
}
