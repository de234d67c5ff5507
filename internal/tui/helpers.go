package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/existflow/goalpost/internal/model"
)

// Countdown renders the time left on g as "Xh Ym", "Xd Yh" past a day, or "Expired"
func Countdown(g model.Goal, now time.Time) string {
	if g.Deadline == nil {
		return "No deadline"
	}
	if g.IsExpired(now) {
		return "Expired"
	}
	left := g.Remaining(now)
	if left < time.Minute {
		return "<1m"
	}
	days := int(left / (24 * time.Hour))
	hours := int(left % (24 * time.Hour) / time.Hour)
	if days > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	minutes := int(left % time.Hour / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// truncate shortens a string to max runes with ellipsis
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// repeat creates a string by repeating s n times
func repeat(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(s, n)
}
