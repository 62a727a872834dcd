package interval

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestMergeOverlapping(t *testing.T) {
	spans := []Span{
		{Start: day(2021, 1, 1), Stop: day(2021, 1, 3)},
		{Start: day(2021, 1, 2), Stop: day(2021, 1, 5)},
	}

	merged := Merge(spans)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged span, got %d", len(merged))
	}
	if !merged[0].Start.Equal(day(2021, 1, 1)) || !merged[0].Stop.Equal(day(2021, 1, 5)) {
		t.Fatalf("unexpected merged span: %v", merged[0])
	}

	total, err := TotalDuration(spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Inclusive day counting: Jan 1 through Jan 5 is five days of care.
	if total < 4.99 || total > 5.01 {
		t.Fatalf("expected 5 days, got %f", total)
	}
}

func TestMergeUnsortedInput(t *testing.T) {
	spans := []Span{
		{Start: day(2021, 3, 10), Stop: day(2021, 3, 12)},
		{Start: day(2021, 1, 1), Stop: day(2021, 1, 2)},
		{Start: day(2021, 3, 12), Stop: day(2021, 3, 20)},
	}

	merged := Merge(spans)
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged spans, got %d", len(merged))
	}
	if !merged[1].Stop.Equal(day(2021, 3, 20)) {
		t.Fatalf("expected shared-endpoint spans to merge, got %v", merged[1])
	}
}

func TestMergeIdempotent(t *testing.T) {
	spans := []Span{
		{Start: day(2021, 1, 1), Stop: day(2021, 1, 10)},
		{Start: day(2021, 1, 5), Stop: day(2021, 1, 20)},
		{Start: day(2021, 2, 1), Stop: day(2021, 2, 3)},
	}

	once := Merge(spans)
	twice := Merge(once)
	if len(once) != len(twice) {
		t.Fatalf("merge not idempotent: %d vs %d spans", len(once), len(twice))
	}
	for i := range once {
		if !once[i].Start.Equal(twice[i].Start) || !once[i].Stop.Equal(twice[i].Stop) {
			t.Fatalf("merge not idempotent at %d: %v vs %v", i, once[i], twice[i])
		}
	}
}

func TestTotalDurationIgnoresContainedDuplicate(t *testing.T) {
	spans := []Span{
		{Start: day(2021, 1, 1), Stop: day(2021, 1, 10)},
	}
	base, err := TotalDuration(spans)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	withDuplicate := append(spans, Span{Start: day(2021, 1, 3), Stop: day(2021, 1, 7)})
	total, err := TotalDuration(withDuplicate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != base {
		t.Fatalf("contained span changed duration: %f vs %f", total, base)
	}
}

func TestTotalDurationEmptyInput(t *testing.T) {
	if _, err := TotalDuration(nil); err != ErrNoSpans {
		t.Fatalf("expected ErrNoSpans, got %v", err)
	}
}

func TestSameDaySpanCountsOneDay(t *testing.T) {
	total, err := TotalDuration([]Span{{Start: day(2021, 6, 1), Stop: day(2021, 6, 1)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Fatalf("same-day span should count as one day of care, got %f", total)
	}
}
