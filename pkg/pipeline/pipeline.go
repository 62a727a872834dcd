// Package pipeline orchestrates the full study batch: episode segmentation,
// finding classification, hospitalisation duration features and outcome
// columns, collapsed into one feature set per episode.
package pipeline

import (
	"fmt"
	"time"

	"github.com/ErikRydengard/BSI/pkg/common/logger"
	"github.com/ErikRydengard/BSI/pkg/common/models"
	"github.com/ErikRydengard/BSI/pkg/dataset"
	"github.com/ErikRydengard/BSI/pkg/episode"
	"github.com/ErikRydengard/BSI/pkg/hospitalisation"
	"github.com/ErikRydengard/BSI/pkg/interval"
	"github.com/ErikRydengard/BSI/pkg/microbiology"
	"github.com/ErikRydengard/BSI/pkg/outcomes"
)

const day = 24 * time.Hour

type Options struct {
	GapDays         int
	RelevanceMethod microbiology.RelevanceMethod
	Catalog         microbiology.Catalog
	// PastWindowsDays are the look-back windows for hospitalised-time
	// features, one hosp_time_{N} column each.
	PastWindowsDays     []int
	DaysAfterBaseline   int
	DaysBeforeBaseline  int
	MortalityWindowDays int
}

func (o *Options) applyDefaults() {
	if o.GapDays == 0 {
		o.GapDays = episode.DefaultGapDays
	}
	if o.RelevanceMethod == "" {
		o.RelevanceMethod = microbiology.MethodBottle
	}
	if len(o.Catalog.Species) == 0 {
		o.Catalog = microbiology.DefaultCatalog()
	}
	if len(o.PastWindowsDays) == 0 {
		o.PastWindowsDays = []int{30, 90, 365}
	}
	if o.DaysAfterBaseline == 0 {
		o.DaysAfterBaseline = 365
	}
	if o.DaysBeforeBaseline == 0 {
		o.DaysBeforeBaseline = 365
	}
	if o.MortalityWindowDays == 0 {
		o.MortalityWindowDays = 30
	}
}

// Result carries the derived tables of one pipeline run.
type Result struct {
	Findings []dataset.Row
	Features []models.EpisodeFeatureSet
	Patients int
	Episodes int
}

// Run executes the batch over the submitted tables. The stages mirror the
// study protocol: contaminant flagging and episode segmentation on the
// microbiology table, relevance/mono-poly classification, block assignment
// and windowed duration features on the admissions, then outcome columns,
// all collapsed to one feature set per episode.
func Run(req models.PipelineRunRequest, opts Options) (Result, error) {
	opts.applyDefaults()
	started := time.Now()

	micro := toRows(req.Microbiology)
	hosp := toRows(req.Hospitalisations)

	micro = microbiology.FlagContaminants(micro, "", opts.Catalog)
	micro = episode.Segment(micro, episode.SegmentOptions{GapDays: opts.GapDays})

	findings, err := microbiology.Classify(micro, microbiology.ClassifyOptions{
		Method: opts.RelevanceMethod,
	})
	if err != nil {
		return Result{}, fmt.Errorf("classify findings: %w", err)
	}
	// The episode-level flag lives on its own column, computed from positive
	// rows only; the per-date polymicrobial column on the findings stays as
	// Classify wrote it.
	episodeFlags := microbiology.FlagPolymicrobialWholeEpisode(
		microbiology.PositiveRows(findings, microbiology.ClassifyOptions{}), "", "species")

	baselines := episode.BaselineMap(findings, "episode_id", "sample_date")
	features := newFeatureTable(findings, baselines)
	features.merge(episodeFlags, "polymicrobial_episode")

	if len(hosp) > 0 {
		hosp = hospitalisation.Clean(hosp, hospitalisation.CleanOptions{})
		hosp = interval.AssignBlocks(hosp, interval.BlockOptions{})

		joined := joinBaselines(hosp, findings)
		for _, window := range opts.PastWindowsDays {
			column := fmt.Sprintf("hosp_time_%d", window)
			durations, err := hospitalisation.PastDuration(joined, hospitalisation.PastDurationOptions{
				OutputColumn: column,
				TimeBefore:   time.Duration(window) * day,
			})
			if err != nil {
				return Result{}, fmt.Errorf("hospitalisation window %d: %w", window, err)
			}
			features.merge(durations, column)
		}

		admissions := renameAdmissions(hosp)
		after := hospitalisation.DaysOfCareAfterBaseline(admissions, findings, opts.DaysAfterBaseline, hospitalisation.DaysOfCareOptions{})
		features.merge(after, fmt.Sprintf("days_of_care_%d_days_after_baseline", opts.DaysAfterBaseline))
		before := hospitalisation.DaysOfCareBeforeBaseline(admissions, findings, opts.DaysBeforeBaseline, hospitalisation.DaysOfCareOptions{})
		features.merge(before, fmt.Sprintf("days_of_care_%d_days_before_baseline", opts.DaysBeforeBaseline))

		readmitted := outcomes.AddReadmitted(features.episodeRows(), admissions, outcomes.ReadmittedOptions{})
		features.merge(readmitted, "readmitted")
		features.merge(readmitted, "time_to_readmittance")

		if len(req.Deceased) > 0 {
			mortalityColumn := fmt.Sprintf("mortality_%d_days", opts.MortalityWindowDays)
			mortality := outcomes.AddMortality(hosp, findings, toRows(req.Deceased), outcomes.MortalityOptions{
				Window:       time.Duration(opts.MortalityWindowDays) * day,
				OutputColumn: mortalityColumn,
			})
			features.merge(mortality, mortalityColumn)
		}
	}

	result := Result{
		Findings: findings,
		Features: features.featureSets(),
		Patients: distinct(findings, "patient_id"),
		Episodes: len(features.order),
	}
	logger.Log.WithFields(map[string]interface{}{
		"patients": result.Patients,
		"episodes": result.Episodes,
		"findings": len(result.Findings),
		"duration": time.Since(started).Seconds(),
	}).Info("Pipeline run completed")
	return result, nil
}

func toRows(table []map[string]interface{}) []dataset.Row {
	rows := make([]dataset.Row, len(table))
	for i, r := range table {
		rows[i] = dataset.CloneRow(dataset.Row(r))
	}
	return rows
}

// joinBaselines attaches episode ids and baseline sample dates to admissions
// of the same patient, one joined row per (admission, episode) pair.
func joinBaselines(admissions, findings []dataset.Row) []dataset.Row {
	type ref struct {
		episodeID interface{}
		sample    interface{}
	}
	refs := make(map[string][]ref)
	seen := make(map[string]struct{})
	for _, f := range findings {
		key := dataset.GroupKey(f, "patient_id", "episode_id")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		patient := dataset.GroupKey(f, "patient_id")
		refs[patient] = append(refs[patient], ref{
			episodeID: f["episode_id"],
			sample:    f["sample_date"],
		})
	}

	var joined []dataset.Row
	for _, adm := range admissions {
		for _, r := range refs[dataset.GroupKey(adm, "patient_id")] {
			row := dataset.CloneRow(adm)
			row["episode_id"] = r.episodeID
			row["sample_date"] = r.sample
			joined = append(joined, row)
		}
	}
	return joined
}

// renameAdmissions maps the cleaned admission columns onto the in/out names
// the outcome calculations use.
func renameAdmissions(hosp []dataset.Row) []dataset.Row {
	out := dataset.CloneRows(hosp)
	for _, r := range out {
		r["in_date"] = r["hosp_start"]
		r["out_date"] = r["hosp_stop"]
	}
	return out
}

// featureTable accumulates one feature map per episode in first-seen order.
type featureTable struct {
	order     []string
	patients  map[string]string
	baselines map[string]time.Time
	features  map[string]map[string]interface{}
}

func newFeatureTable(findings []dataset.Row, baselines map[string]time.Time) *featureTable {
	t := &featureTable{
		patients:  make(map[string]string),
		baselines: baselines,
		features:  make(map[string]map[string]interface{}),
	}
	for _, f := range findings {
		id, ok := dataset.String(f, "episode_id")
		if !ok {
			continue
		}
		if _, exists := t.features[id]; !exists {
			t.order = append(t.order, id)
			t.features[id] = make(map[string]interface{})
			patient, _ := dataset.String(f, "patient_id")
			t.patients[id] = patient
			t.features[id]["polymicrobial_episode"] = false
		}
	}
	for _, f := range findings {
		id, ok := dataset.String(f, "episode_id")
		if !ok {
			continue
		}
		count, _ := t.features[id]["findings"].(int)
		t.features[id]["findings"] = count + 1
	}
	return t
}

// merge copies one column of a per-episode table into the feature maps.
func (t *featureTable) merge(rows []dataset.Row, column string) {
	for _, r := range rows {
		id, ok := dataset.String(r, "episode_id")
		if !ok {
			continue
		}
		features, exists := t.features[id]
		if !exists {
			continue
		}
		if value, present := r[column]; present {
			features[column] = value
		}
	}
}

// episodeRows renders the table as one row per episode for calculations that
// take episode-level input.
func (t *featureTable) episodeRows() []dataset.Row {
	rows := make([]dataset.Row, 0, len(t.order))
	for _, id := range t.order {
		row := dataset.Row{
			"episode_id": id,
			"patient_id": t.patients[id],
		}
		if baseline, ok := t.baselines[id]; ok {
			row["sample_date"] = baseline
		}
		rows = append(rows, row)
	}
	return rows
}

func (t *featureTable) featureSets() []models.EpisodeFeatureSet {
	sets := make([]models.EpisodeFeatureSet, 0, len(t.order))
	for _, id := range t.order {
		set := models.EpisodeFeatureSet{
			EpisodeID: id,
			PatientID: t.patients[id],
			Features:  t.features[id],
			Version:   1,
		}
		if baseline, ok := t.baselines[id]; ok {
			set.Baseline = baseline
		}
		sets = append(sets, set)
	}
	return sets
}

func distinct(rows []dataset.Row, column string) int {
	seen := make(map[string]struct{})
	for _, r := range rows {
		if r[column] == nil {
			continue
		}
		seen[dataset.GroupKey(r, column)] = struct{}{}
	}
	return len(seen)
}
