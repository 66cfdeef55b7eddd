package popup

import (
	"fmt"
	"time"
)

// formatDuration renders tracked time compactly: "45s", "12m", "1h 05m".
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		h := int(d.Hours())
		m := int(d.Minutes()) - h*60
		return fmt.Sprintf("%dh %02dm", h, m)
	}
}

func formatMinutes(minutes int) string {
	return formatDuration(time.Duration(minutes) * time.Minute)
}

// bar draws a proportional bar of at most width cells.
func bar(value, max int64, width int) string {
	if width <= 0 || max <= 0 || value <= 0 {
		return ""
	}
	n := int(value * int64(width) / max)
	if n == 0 {
		n = 1
	}
	if n > width {
		n = width
	}
	out := make([]rune, n)
	for i := range out {
		out[i] = '▇'
	}
	return string(out)
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
