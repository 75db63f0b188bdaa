package search

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// TruncateSnippet shortens text to at most max runes, appending an
// ellipsis. Cuts land on rune boundaries, never mid-character.
func TruncateSnippet(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}

	runes := []rune(text)
	return string(runes[:max]) + "…"
}

// RelativeTime renders a timestamp as a compact human distance from now
// ("just now", "5m ago", "3h ago", "2d ago"), falling back to a date for
// anything older than a month.
func RelativeTime(t time.Time, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
