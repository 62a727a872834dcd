// Package episode derives clinical episodes from per-patient event streams: a
// patient's samples are clustered into one episode as long as consecutive
// samples are no further apart than the configured gap.
package episode

import (
	"strconv"
	"time"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

// DefaultGapDays is the study's episode window: samples more than 30 days
// apart belong to separate infection episodes.
const DefaultGapDays = 30

type SegmentOptions struct {
	// SortColumns defaults to (patient, date). Ties keep input order.
	SortColumns     []string
	PatientIDColumn string
	DateColumn      string
	// GapDays is the maximum day gap between consecutive samples within one
	// episode.
	GapDays int
	// Delimiter sits between the patient id and the episode number in
	// episode_id. The legacy feature tables use plain concatenation, so the
	// default is empty.
	Delimiter string
}

func (o *SegmentOptions) applyDefaults() {
	if o.PatientIDColumn == "" {
		o.PatientIDColumn = "patient_id"
	}
	if o.DateColumn == "" {
		o.DateColumn = "sample_date"
	}
	if len(o.SortColumns) == 0 {
		o.SortColumns = []string{o.PatientIDColumn, o.DateColumn}
	}
	if o.GapDays == 0 {
		o.GapDays = DefaultGapDays
	}
}

// Segment assigns every event row to an episode, adding "episode_nr" (1-based
// per patient) and "episode_id" (patient id ++ episode number). A new episode
// starts on a patient change, on a day gap above GapDays, or whenever the gap
// is undefined — the first event of a patient, or an event whose date failed
// to parse. Unparsable dates become missing but the rows are kept.
func Segment(rows []dataset.Row, opts SegmentOptions) []dataset.Row {
	opts.applyDefaults()

	out := dataset.CloneRows(rows)
	dataset.ParseDateColumn(out, opts.DateColumn)
	out = dataset.SortStable(out, dataset.LessByColumns(opts.SortColumns...))

	var (
		currentPatient string
		havePatient    bool
		prevDate       time.Time
		prevDateOK     bool
		episodeNr      int
	)

	for _, r := range out {
		patient, _ := dataset.String(r, opts.PatientIDColumn)
		date, dateOK := dataset.Time(r, opts.DateColumn)

		if !havePatient || patient != currentPatient {
			currentPatient = patient
			havePatient = true
			episodeNr = 0
			prevDateOK = false
		}

		newEpisode := true
		if prevDateOK && dateOK {
			newEpisode = dataset.DaysBetween(prevDate, date) > opts.GapDays
		}
		if newEpisode {
			episodeNr++
		}

		r["episode_nr"] = episodeNr
		r["episode_id"] = patient + opts.Delimiter + strconv.Itoa(episodeNr)

		prevDate, prevDateOK = date, dateOK
	}

	return out
}
