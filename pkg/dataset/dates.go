package dataset

import (
	"time"
)

// Formats seen across the source lab and care-registry exports.
var dateFormats = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"20060102",
	"02-01-2006",
	"01/02/2006",
	time.RFC3339,
}

// ParseDate converts a cell value to a timestamp. Strings are tried against
// each known format in order; anything unparsable reports ok=false.
func ParseDate(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if t == "" {
			return time.Time{}, false
		}
		for _, format := range dateFormats {
			if parsed, err := time.Parse(format, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// ParseDateColumn rewrites a column in place to time.Time values. Unparsable
// cells become nil rather than being dropped; downstream stages treat them as
// missing. The caller owns the rows (entry points clone first).
func ParseDateColumn(rows []Row, col string) {
	for _, r := range rows {
		if parsed, ok := ParseDate(r[col]); ok {
			r[col] = parsed
		} else {
			r[col] = nil
		}
	}
}

// Normalize strips the time-of-day so admissions recorded with timestamps
// compare at date granularity.
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the whole-day difference between two timestamps.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
