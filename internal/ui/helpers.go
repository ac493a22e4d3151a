package ui

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/five82/hangar/internal/downloads"
)

var titleCaser = cases.Title(language.Und)

// stateLabel renders a status or job state as a title-cased label.
func stateLabel(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "Unknown"
	}
	return titleCaser.String(strings.ToLower(s))
}

func humanizeDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh %dm", h, m)
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func truncateMiddle(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 || value == "" {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	keep := limit - 1 // room for ellipsis rune
	prefix := keep / 2
	suffix := keep - prefix
	return string(runes[:prefix]) + "…" + string(runes[len(runes)-suffix:])
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// progressText summarizes a job's progress for a table cell.
func progressText(job downloads.Job) string {
	p := job.Progress
	var parts []string
	if p.Stage != nil && strings.TrimSpace(*p.Stage) != "" {
		parts = append(parts, strings.TrimSpace(*p.Stage))
	}
	if pct, ok := job.Percent(); ok {
		parts = append(parts, fmt.Sprintf("%.0f%%", pct))
	}
	if p.SpeedBytesPerSec != nil && *p.SpeedBytesPerSec > 0 {
		parts = append(parts, formatBytes(*p.SpeedBytesPerSec)+"/s")
	}
	if p.EtaSec != nil && *p.EtaSec > 0 {
		parts = append(parts, "eta "+humanizeDuration(time.Duration(*p.EtaSec)*time.Second))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

// sinceUnixMs renders the age of a millisecond timestamp relative to now.
func sinceUnixMs(ms int64, now time.Time) string {
	if ms <= 0 {
		return "-"
	}
	return humanizeDuration(now.Sub(time.UnixMilli(ms)))
}
