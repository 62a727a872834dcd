package hospitalisation

import (
	"time"

	"github.com/ErikRydengard/BSI/pkg/dataset"
	"github.com/ErikRydengard/BSI/pkg/interval"
)

type PastDurationOptions struct {
	EpisodeIDColumn string
	PatientIDColumn string
	DateColumn      string
	StartColumn     string
	StopColumn      string
	OutputColumn    string
	// TimeBefore bounds the look-back window; zero means admissions any
	// time before the baseline count.
	TimeBefore time.Duration
}

func (o *PastDurationOptions) applyDefaults() {
	if o.EpisodeIDColumn == "" {
		o.EpisodeIDColumn = "episode_id"
	}
	if o.PatientIDColumn == "" {
		o.PatientIDColumn = "patient_id"
	}
	if o.DateColumn == "" {
		o.DateColumn = "sample_date"
	}
	if o.StartColumn == "" {
		o.StartColumn = "hosp_start"
	}
	if o.StopColumn == "" {
		o.StopColumn = "hosp_stop"
	}
	if o.OutputColumn == "" {
		o.OutputColumn = "hosp_time"
	}
}

// PastDuration sums hospitalised days before each episode's baseline date.
// Admissions are clipped to [baseline−TimeBefore, baseline], overlapping
// clipped admissions are merged so no day is counted twice, and groups left
// with nothing still produce an explicit zero row.
func PastDuration(rows []dataset.Row, opts PastDurationOptions) ([]dataset.Row, error) {
	opts.applyDefaults()

	order, groups := dataset.GroupBy(rows, func(r dataset.Row) string {
		return dataset.GroupKey(r, opts.EpisodeIDColumn, opts.PatientIDColumn, opts.DateColumn)
	})

	var out []dataset.Row
	for _, key := range order {
		group := groups[key]

		baseline, ok := dataset.ParseDate(group[0][opts.DateColumn])
		if !ok {
			continue
		}
		windowStart := baseline.Add(-opts.TimeBefore)

		var spans []interval.Span
		for _, r := range group {
			start, startOK := dataset.ParseDate(r[opts.StartColumn])
			stop, stopOK := dataset.ParseDate(r[opts.StopColumn])
			if !startOK || !stopOK {
				continue
			}
			if !start.Before(baseline) && !stop.After(windowStart) {
				continue
			}
			clippedStart, clippedStop := start, stop
			if opts.TimeBefore > 0 && clippedStart.Before(windowStart) {
				clippedStart = windowStart
			}
			if clippedStop.After(baseline) {
				clippedStop = baseline
			}
			if !clippedStart.Before(clippedStop) {
				continue
			}
			spans = append(spans, interval.Span{Start: clippedStart, Stop: clippedStop})
		}

		result := dataset.Row{
			opts.EpisodeIDColumn: group[0][opts.EpisodeIDColumn],
			opts.DateColumn:      baseline,
		}
		if len(spans) == 0 {
			result[opts.OutputColumn] = float64(0)
		} else {
			total, err := interval.TotalDuration(interval.Merge(spans))
			if err != nil {
				return nil, err
			}
			result[opts.OutputColumn] = total
		}
		out = append(out, result)
	}
	return out, nil
}
