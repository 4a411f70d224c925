package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "━"
	ProgressEmpty = "─"
)

// RenderBar draws current/total as a bar of width cells.
func RenderBar(current, total, width int) string {
	filled := 0
	if total > 0 {
		filled = current * width / total
	}
	filled = min(max(filled, 0), width)
	return strings.Repeat(ProgressBar, filled) + strings.Repeat(ProgressEmpty, width-filled)
}

// Rate is items per minute over elapsed.
func Rate(items int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(items) / elapsed.Minutes()
}

// ETA estimates the remaining time at the observed rate.
func ETA(current, total int, elapsed time.Duration) string {
	if current <= 0 || elapsed <= 0 {
		return "calculating..."
	}
	if current >= total {
		return FormatDuration(0)
	}
	perItem := elapsed / time.Duration(current)
	return FormatDuration(perItem * time.Duration(total-current))
}

// FormatDuration renders 42s, 3m5s or 1h20m.
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
