// Package outcomes derives patient outcome columns: mortality within a
// follow-up window after the sample date, and readmission after an episode.
package outcomes

import (
	"time"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

type MortalityOptions struct {
	PatientIDColumn    string
	EpisodeIDColumn    string
	SampleDateColumn   string
	HospStartColumn    string
	HospStopColumn     string
	DeceasedColumn     string
	DeceasedDateColumn string
	// Window is the follow-up period after the sample date.
	Window time.Duration
	// OutputColumn names the resulting mortality column, e.g.
	// "mortality_30_days".
	OutputColumn string
}

func (o *MortalityOptions) applyDefaults() {
	if o.PatientIDColumn == "" {
		o.PatientIDColumn = "patient_id"
	}
	if o.EpisodeIDColumn == "" {
		o.EpisodeIDColumn = "episode_id"
	}
	if o.SampleDateColumn == "" {
		o.SampleDateColumn = "sample_date"
	}
	if o.HospStartColumn == "" {
		o.HospStartColumn = "hosp_start"
	}
	if o.HospStopColumn == "" {
		o.HospStopColumn = "hosp_stop"
	}
	if o.DeceasedColumn == "" {
		o.DeceasedColumn = "deceased"
	}
	if o.DeceasedDateColumn == "" {
		o.DeceasedDateColumn = "deceased_date"
	}
	if o.OutputColumn == "" {
		o.OutputColumn = "mortality"
	}
}

// AddMortality joins the deceased register onto episodes and decides
// mortality within the follow-up window. The outcome is tri-state: true when
// the death date falls inside the window, false when the patient is known
// alive through it, and missing when follow-up is insufficient — the patient
// was discharged before the window closed and no death date exists, or the
// register carries no information at all.
func AddMortality(reference, microbiology, deceased []dataset.Row, opts MortalityOptions) []dataset.Row {
	opts.applyDefaults()

	// Latest admission per patient, by start date.
	latest := make(map[string]dataset.Row)
	for _, r := range reference {
		start, ok := dataset.ParseDate(r[opts.HospStartColumn])
		if !ok {
			continue
		}
		key := dataset.GroupKey(r, opts.PatientIDColumn)
		if prev, exists := latest[key]; exists {
			if prevStart, _ := dataset.ParseDate(prev[opts.HospStartColumn]); !start.After(prevStart) {
				continue
			}
		}
		latest[key] = r
	}

	// Episode references per patient.
	type episodeRef struct {
		episodeID interface{}
		sample    interface{}
	}
	episodes := make(map[string][]episodeRef)
	for _, r := range microbiology {
		key := dataset.GroupKey(r, opts.PatientIDColumn)
		episodes[key] = append(episodes[key], episodeRef{
			episodeID: r[opts.EpisodeIDColumn],
			sample:    r[opts.SampleDateColumn],
		})
	}

	var out []dataset.Row
	for _, r := range deceased {
		key := dataset.GroupKey(r, opts.PatientIDColumn)

		var latestStop time.Time
		haveLatest := false
		if admission, ok := latest[key]; ok {
			if stop, ok := dataset.ParseDate(admission[opts.HospStopColumn]); ok {
				latestStop = dataset.Normalize(stop)
				haveLatest = true
			}
		}

		refs := episodes[key]
		if len(refs) == 0 {
			refs = []episodeRef{{}}
		}
		for _, ref := range refs {
			row := dataset.CloneRow(r)
			row[opts.EpisodeIDColumn] = ref.episodeID
			row[opts.SampleDateColumn] = ref.sample
			row[opts.OutputColumn] = mortality(row, latestStop, haveLatest, opts)
			out = append(out, row)
		}
	}
	return out
}

// mortality applies the decision ladder for one joined row. The first rule
// that fires wins.
func mortality(r dataset.Row, latestStop time.Time, haveLatest bool, opts MortalityOptions) interface{} {
	deceasedValue, deceasedKnown := r[opts.DeceasedColumn].(bool)
	deceasedDate, haveDeceasedDate := dataset.ParseDate(r[opts.DeceasedDateColumn])
	sample, haveSample := dataset.ParseDate(r[opts.SampleDateColumn])

	switch {
	case deceasedKnown && !deceasedValue:
		return false
	case !haveLatest && !deceasedKnown:
		return nil
	case haveDeceasedDate && haveSample && !deceasedDate.After(sample.Add(opts.Window)):
		return true
	case !haveDeceasedDate && !(haveLatest && haveSample && latestStop.After(sample.Add(opts.Window))):
		// No death date and the patient was not observed past the window.
		return nil
	default:
		return false
	}
}

type ReadmittedOptions struct {
	PatientIDColumn string
	EpisodeIDColumn string
	InDateColumn    string
	// DateLimitColumn holds the date a readmission must come after,
	// typically the sample date.
	DateLimitColumn string
}

func (o *ReadmittedOptions) applyDefaults() {
	if o.PatientIDColumn == "" {
		o.PatientIDColumn = "patient_id"
	}
	if o.EpisodeIDColumn == "" {
		o.EpisodeIDColumn = "episode_id"
	}
	if o.InDateColumn == "" {
		o.InDateColumn = "in_date"
	}
	if o.DateLimitColumn == "" {
		o.DateLimitColumn = "sample_date"
	}
}

// AddReadmitted flags each episode row when any admission of the patient
// starts after the limit date, and adds "time_to_readmittance" in days to the
// earliest such admission. Episodes without a readmission keep a false flag
// and a missing time.
func AddReadmitted(rows, admissions []dataset.Row, opts ReadmittedOptions) []dataset.Row {
	opts.applyDefaults()

	byPatient := make(map[string][]time.Time)
	for _, adm := range admissions {
		in, ok := dataset.ParseDate(adm[opts.InDateColumn])
		if !ok {
			continue
		}
		key := dataset.GroupKey(adm, opts.PatientIDColumn)
		byPatient[key] = append(byPatient[key], in)
	}

	out := dataset.CloneRows(rows)
	for _, r := range out {
		r["readmitted"] = false
		r["time_to_readmittance"] = nil

		limit, ok := dataset.ParseDate(r[opts.DateLimitColumn])
		if !ok {
			continue
		}

		var first time.Time
		found := false
		for _, in := range byPatient[dataset.GroupKey(r, opts.PatientIDColumn)] {
			if !in.After(limit) {
				continue
			}
			if !found || in.Before(first) {
				first = in
				found = true
			}
		}
		if found {
			r["readmitted"] = true
			r["time_to_readmittance"] = dataset.DaysBetween(limit, first)
		}
	}
	return out
}
