package shared

import (
	"strings"
	"time"
)

// DefaultReportWindow is the trailing window used when no range is given.
const DefaultReportWindow = 7 * 24 * time.Hour

// DateRange is an inclusive [Start, End] window on transaction_date.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseDateTime parses caller supplied timestamps. Empty or unparseable input
// yields now. Bare dates resolve to the start of the day, or to its last
// instant when endOfDay is set.
func ParseDateTime(raw string, now time.Time, endOfDay bool) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw, now.Location()); err == nil {
			return t
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, now.Location()); err == nil {
		if endOfDay {
			return t.Add(24*time.Hour - time.Second)
		}
		return t
	}
	return now
}

// NormalizeDateRange applies the trailing seven day default.
func NormalizeDateRange(start, end string, now time.Time) DateRange {
	r := DateRange{
		Start: now.Add(-DefaultReportWindow),
		End:   now,
	}
	if strings.TrimSpace(start) != "" {
		r.Start = ParseDateTime(start, now, false)
	}
	if strings.TrimSpace(end) != "" {
		r.End = ParseDateTime(end, now, true)
	}
	return r
}
