package monitor

import (
	"fmt"
	"strings"
)

// FormatRating formats an average rating as "X.XX / 5".
func FormatRating(avg float64) string {
	return fmt.Sprintf("%.2f / 5", avg)
}

// FormatPercentage formats a ratio (0-1) as percentage
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatCount formats counts with a K or M suffix above a thousand.
func FormatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// Bar renders a horizontal bar of width cells filled in proportion to
// count/maxCount.
func Bar(count, maxCount, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if maxCount > 0 && count > 0 {
		filled = count * width / maxCount
		if filled == 0 {
			filled = 1
		}
	}
	filled = min(filled, width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
