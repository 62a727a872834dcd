package interval

import (
	"time"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

// BlockOptions name the columns used for block assignment. Zero-value fields
// fall back to the registry export defaults.
type BlockOptions struct {
	PatientIDColumn string
	StartColumn     string
	StopColumn      string
	GapDays         int
}

func (o *BlockOptions) applyDefaults() {
	if o.PatientIDColumn == "" {
		o.PatientIDColumn = "patient_id"
	}
	if o.StartColumn == "" {
		o.StartColumn = "hosp_start"
	}
	if o.StopColumn == "" {
		o.StopColumn = "hosp_stop"
	}
}

// AssignBlocks groups transitively overlapping admission records per patient
// into blocks, adding a 1-based per-patient "block_id" column. Start/stop are
// compared at date granularity; a row joins the running block when its start
// is within GapDays of the latest stop seen so far among prior rows, and
// opens a new block otherwise. Rows are returned sorted by
// (patient, start, stop); the caller collapses duplicates using block_id as
// the grouping key.
func AssignBlocks(rows []dataset.Row, opts BlockOptions) []dataset.Row {
	opts.applyDefaults()

	out := dataset.CloneRows(rows)
	for _, r := range out {
		if t, ok := dataset.Time(r, opts.StartColumn); ok {
			r[opts.StartColumn] = dataset.Normalize(t)
		}
		if t, ok := dataset.Time(r, opts.StopColumn); ok {
			r[opts.StopColumn] = dataset.Normalize(t)
		}
	}

	out = dataset.SortStable(out, dataset.LessByColumns(opts.PatientIDColumn, opts.StartColumn, opts.StopColumn))

	gap := time.Duration(opts.GapDays) * 24 * time.Hour

	var (
		currentPatient string
		havePatient    bool
		maxStop        time.Time
		haveStop       bool
		blockID        int
	)

	for _, r := range out {
		patient, _ := dataset.String(r, opts.PatientIDColumn)
		start, startOK := dataset.Time(r, opts.StartColumn)
		stop, stopOK := dataset.Time(r, opts.StopColumn)

		if !havePatient || patient != currentPatient {
			currentPatient = patient
			havePatient = true
			haveStop = false
			blockID = 0
		}

		// Compare against strictly prior rows: the running max stop is
		// taken before this row's stop is folded in.
		newBlock := !haveStop || (startOK && start.After(maxStop.Add(gap)))
		if newBlock {
			blockID++
		}
		r["block_id"] = blockID

		if stopOK && (!haveStop || stop.After(maxStop)) {
			maxStop = stop
			haveStop = true
		}
	}

	return out
}
