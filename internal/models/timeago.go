package models

import (
	"fmt"
	"time"
)

// TimeAgo renders the single largest nonzero unit between then and now:
// "2y ago", "3mo ago", "5d ago", "4h ago", "12m ago", or "Just now" below
// one minute. Units are never combined.
func TimeAgo(then, now time.Time) string {
	if then.After(now) {
		return "Just now"
	}

	d := now.Sub(then)
	days := int(d.Hours() / 24)

	switch {
	case days >= 365:
		return fmt.Sprintf("%dy ago", days/365)
	case days >= 30:
		return fmt.Sprintf("%dmo ago", days/30)
	case days >= 1:
		return fmt.Sprintf("%dd ago", days)
	case d >= time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d >= time.Minute:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return "Just now"
	}
}
