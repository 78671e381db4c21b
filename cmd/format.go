package cmd

import (
	"fmt"
	"time"
)

// formatUKDate formats a date in UK format: "25 Jul 2024"
func formatUKDate(t time.Time) string {
	return t.Format("2 Jan 2006")
}

// formatReleased returns "25 Jul 2024 (3 days ago)" relative to now
func formatReleased(published, now time.Time) string {
	if published.IsZero() {
		return "unknown"
	}
	daysAgo := int(now.Sub(published).Hours() / 24)
	return fmt.Sprintf("%s (%s)", formatUKDate(published), formatDaysAgo(daysAgo))
}

// formatDaysAgo returns a human-readable string for days
func formatDaysAgo(days int) string {
	if days < 0 {
		return "in " + formatDaysInFuture(-days)
	}
	if days == 0 {
		return "today"
	}
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}

// formatDaysInFuture returns a human-readable string for future days
func formatDaysInFuture(days int) string {
	if days == 0 {
		return "today"
	}
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
