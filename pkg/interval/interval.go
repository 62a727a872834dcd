// Package interval implements the closed-interval arithmetic behind the
// hospitalisation duration features: merging overlapping admission spans and
// counting covered days without double-counting.
package interval

import (
	"errors"
	"sort"
	"time"
)

// ErrNoSpans is returned when a duration is requested for an empty span set;
// the duration of nothing is undefined and callers are expected to guard.
var ErrNoSpans = errors.New("interval: no spans to merge")

const secondsPerDay = 24 * 60 * 60

// Span is a closed time interval [Start, Stop], Stop >= Start. Both endpoints
// count when measuring duration: a same-day admission is one day of care.
type Span struct {
	Start time.Time
	Stop  time.Time
}

// Overlaps reports whether two closed spans share at least one instant.
func (s Span) Overlaps(other Span) bool {
	return !s.Start.After(other.Stop) && !other.Start.After(s.Stop)
}

// Merge collapses spans into maximal non-overlapping runs. Input may be
// unsorted; adjacent spans sharing an endpoint are merged (closed intervals).
func Merge(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	merged := []Span{sorted[0]}
	for _, span := range sorted[1:] {
		last := &merged[len(merged)-1]
		if span.Start.After(last.Stop) {
			merged = append(merged, span)
			continue
		}
		if span.Stop.After(last.Stop) {
			last.Stop = span.Stop
		}
	}
	return merged
}

// TotalDuration merges the spans and returns the covered time in days,
// counting inclusively: both endpoints belong to the span, so a same-day
// admission is one day of care and Jan 1 through Jan 5 is five.
func TotalDuration(spans []Span) (float64, error) {
	if len(spans) == 0 {
		return 0, ErrNoSpans
	}

	var totalSeconds float64
	for _, span := range Merge(spans) {
		totalSeconds += span.Stop.Sub(span.Start).Seconds() + secondsPerDay
	}
	return totalSeconds / secondsPerDay, nil
}
