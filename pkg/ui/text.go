package ui

import (
	"fmt"
	"time"

	"github.com/mattn/go-runewidth"
)

// Truncate shortens s to at most width terminal cells, counting wide CJK
// characters as two, and marks the cut with "...".
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "...")
}

// PadRight pads s with spaces to exactly width cells, truncating first if
// it is wider
func PadRight(s string, width int) string {
	return runewidth.FillRight(Truncate(s, width), width)
}

// Width returns the number of terminal cells s occupies
func Width(s string) int {
	return runewidth.StringWidth(s)
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
