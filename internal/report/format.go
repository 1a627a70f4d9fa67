package report

import (
	"fmt"
	"strings"
	"time"
)

const (
	kib = 1024
	mib = 1024 * kib
	gib = 1024 * mib
)

// FormatBytes scales to GB, MB or KB using 1024-based thresholds. KB is the
// floor unit, so values under 1024 bytes still render as a fraction of a KB.
func FormatBytes(v uint64) string {
	switch {
	case v >= gib:
		return fmt.Sprintf("%.1f GB", float64(v)/gib)
	case v >= mib:
		return fmt.Sprintf("%.1f MB", float64(v)/mib)
	default:
		return fmt.Sprintf("%.1f KB", float64(v)/kib)
	}
}

// FormatUptime renders whole days, hours and minutes, dropping leading zero
// units. Minutes are always present.
func FormatUptime(seconds uint64) string {
	days := seconds / 86400
	hours := (seconds % 86400) / 3600
	minutes := (seconds % 3600) / 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

const displayLayout = "2006-01-02 15:04:05"

var isoLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02T15",
	"2006-01-02",
}

// FormatTimestamp normalizes a daemon timestamp to "YYYY-MM-DD HH:MM:SS".
//
// Sub-second precision and the zone offset are cut off by string splitting
// before parsing. When that parse fails the error is returned together with a
// best-effort rendering: date and time split on 'T', or the raw input.
func FormatTimestamp(ts string) (string, error) {
	t, err := parseStripped(ts)
	if err == nil {
		return t.Format(displayLayout), nil
	}

	if datePart, rest, ok := strings.Cut(ts, "T"); ok {
		timePart, _, _ := strings.Cut(rest, ".")
		// Only the text up to the next 'T' belongs to the time part.
		timePart, _, _ = strings.Cut(timePart, "T")
		return datePart + " " + timePart, err
	}
	return ts, err
}

func parseStripped(ts string) (time.Time, error) {
	simple, _, _ := strings.Cut(ts, ".")
	if before, _, ok := strings.Cut(simple, "+"); ok {
		simple = before
	} else if strings.Count(simple, "-") > 2 {
		simple = simple[:strings.LastIndex(simple, "-")]
	}
	simple = strings.TrimSuffix(simple, "Z")

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, simple); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unrecognized format", ts)
}
