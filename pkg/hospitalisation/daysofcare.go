package hospitalisation

import (
	"fmt"
	"time"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

type DaysOfCareOptions struct {
	EpisodeIDColumn  string
	PatientIDColumn  string
	SampleDateColumn string
	InColumn         string
	OutColumn        string
}

func (o *DaysOfCareOptions) applyDefaults() {
	if o.EpisodeIDColumn == "" {
		o.EpisodeIDColumn = "episode_id"
	}
	if o.PatientIDColumn == "" {
		o.PatientIDColumn = "patient_id"
	}
	if o.SampleDateColumn == "" {
		o.SampleDateColumn = "sample_date"
	}
	if o.InColumn == "" {
		o.InColumn = "in_date"
	}
	if o.OutColumn == "" {
		o.OutColumn = "out_date"
	}
}

// admission is one joined admission with parsed dates, kept in per-episode
// sort order.
type admission struct {
	episodeID interface{}
	in        time.Time
	out       time.Time
	// prevOut is the discharge date of the admission immediately before
	// this one in the episode's full sorted sequence, captured before any
	// window filtering.
	prevOut     time.Time
	havePrevOut bool
}

// DaysOfCareAfterBaseline sums hospitalised days per episode in the window
// after the episode's first admission. The first admission anchors the window
// and is not counted itself; later admissions are kept while they start
// within daysAfter days of the anchor's discharge, their discharge clipped to
// that limit. Days already counted by the previous admission are subtracted,
// with the subtraction forced to zero for the first admission retained per
// episode. Output rows carry the episode id and
// days_of_care_{N}_days_after_baseline.
func DaysOfCareAfterBaseline(admissions, reference []dataset.Row, daysAfter int, opts DaysOfCareOptions) []dataset.Row {
	opts.applyDefaults()
	outputColumn := fmt.Sprintf("days_of_care_%d_days_after_baseline", daysAfter)

	joined := joinEpisodes(admissions, reference, opts, func(sample, out time.Time) bool {
		return !sample.After(out)
	})

	order, groups := groupAdmissions(joined, opts)

	var result []dataset.Row
	for _, key := range order {
		group := groups[key]
		if len(group) < 2 {
			continue
		}

		// The chronologically first admission is the anchor.
		limit := group[0].out.AddDate(0, 0, daysAfter)
		group = group[1:]

		total := 0
		first := true
		for _, adm := range group {
			if !adm.in.Before(limit) {
				continue
			}
			out := adm.out
			if out.After(limit) {
				out = limit
			}

			days := dataset.DaysBetween(adm.in, out) + 1
			overlap := 0
			if !first && adm.havePrevOut {
				overlap = dataset.DaysBetween(adm.in, adm.prevOut) + 1
				if overlap < 0 {
					overlap = 0
				}
			}
			first = false
			total += days - overlap
		}
		if first {
			continue
		}
		result = append(result, dataset.Row{
			opts.EpisodeIDColumn: group[0].episodeID,
			outputColumn:         total,
		})
	}
	return result
}

// DaysOfCareBeforeBaseline sums hospitalised days per episode over the
// admissions discharged strictly before the baseline date, retained while
// they start within daysBefore days of it. Overlap with the previous retained
// admission is subtracted the same way as in the after-baseline calculation.
func DaysOfCareBeforeBaseline(admissions, reference []dataset.Row, daysBefore int, opts DaysOfCareOptions) []dataset.Row {
	opts.applyDefaults()
	outputColumn := fmt.Sprintf("days_of_care_%d_days_before_baseline", daysBefore)

	joined := joinEpisodes(admissions, reference, opts, func(sample, out time.Time) bool {
		return sample.After(out)
	})

	// Window filter runs before neighbours are linked, so overlap is always
	// against the previous retained admission.
	var windowed []dataset.Row
	for _, r := range joined {
		sample, _ := dataset.ParseDate(r[opts.SampleDateColumn])
		in, _ := dataset.ParseDate(r[opts.InColumn])
		if in.After(sample.AddDate(0, 0, -daysBefore)) {
			windowed = append(windowed, r)
		}
	}

	order, groups := groupAdmissions(windowed, opts)

	var result []dataset.Row
	for _, key := range order {
		group := groups[key]

		total := 0
		for i, adm := range group {
			days := dataset.DaysBetween(adm.in, adm.out) + 1
			overlap := 0
			if i > 0 && adm.havePrevOut {
				overlap = dataset.DaysBetween(adm.in, adm.prevOut) + 1
				if overlap < 0 {
					overlap = 0
				}
			}
			total += days - overlap
		}
		result = append(result, dataset.Row{
			opts.EpisodeIDColumn: group[0].episodeID,
			outputColumn:         total,
		})
	}
	return result
}

// joinEpisodes attaches (episode id, sample date) reference pairs to the
// admissions of the same patient, keeping only pairs the keep predicate
// accepts. Admissions with an unparsable in or out date are dropped.
func joinEpisodes(admissions, reference []dataset.Row, opts DaysOfCareOptions, keep func(sample, out time.Time) bool) []dataset.Row {
	type refPair struct {
		episodeID interface{}
		sample    interface{}
	}
	refs := make(map[string][]refPair)
	seen := make(map[string]struct{})
	for _, r := range reference {
		key := dataset.GroupKey(r, opts.PatientIDColumn, opts.EpisodeIDColumn, opts.SampleDateColumn)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		patient := dataset.GroupKey(r, opts.PatientIDColumn)
		refs[patient] = append(refs[patient], refPair{
			episodeID: r[opts.EpisodeIDColumn],
			sample:    r[opts.SampleDateColumn],
		})
	}

	var joined []dataset.Row
	for _, r := range admissions {
		in, inOK := dataset.ParseDate(r[opts.InColumn])
		out, outOK := dataset.ParseDate(r[opts.OutColumn])
		if !inOK || !outOK {
			continue
		}
		for _, ref := range refs[dataset.GroupKey(r, opts.PatientIDColumn)] {
			sample, ok := dataset.ParseDate(ref.sample)
			if !ok || !keep(sample, out) {
				continue
			}
			row := dataset.CloneRow(r)
			row[opts.EpisodeIDColumn] = ref.episodeID
			row[opts.SampleDateColumn] = ref.sample
			row[opts.InColumn] = in
			row[opts.OutColumn] = out
			joined = append(joined, row)
		}
	}
	return joined
}

// groupAdmissions sorts by (episode, in, out), groups per episode and links
// each admission to its predecessor's discharge date.
func groupAdmissions(rows []dataset.Row, opts DaysOfCareOptions) ([]string, map[string][]admission) {
	sorted := dataset.SortStable(rows, dataset.LessByColumns(opts.EpisodeIDColumn, opts.InColumn, opts.OutColumn))

	var order []string
	groups := make(map[string][]admission)
	for _, r := range sorted {
		key := dataset.GroupKey(r, opts.EpisodeIDColumn)
		in, _ := dataset.ParseDate(r[opts.InColumn])
		out, _ := dataset.ParseDate(r[opts.OutColumn])

		adm := admission{episodeID: r[opts.EpisodeIDColumn], in: in, out: out}
		if prev, ok := groups[key]; ok {
			adm.prevOut = prev[len(prev)-1].out
			adm.havePrevOut = true
		} else {
			order = append(order, key)
		}
		groups[key] = append(groups[key], adm)
	}
	return order, groups
}
