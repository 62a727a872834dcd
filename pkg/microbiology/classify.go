// Package microbiology classifies positive blood-culture findings: whether a
// potential contaminant is clinically relevant, whether a sample date shows a
// mono- or polymicrobial picture or contamination, and which species make an
// episode polymicrobial.
package microbiology

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

// RelevanceMethod selects the rule used to decide whether a potential
// contaminant is a relevant finding.
type RelevanceMethod string

const (
	// MethodBottle keeps a potential contaminant only when it grew in at
	// least 3 distinct bottles on the same sample date.
	MethodBottle RelevanceMethod = "bottle"
	// MethodLabNr discards a potential contaminant found in a single bottle
	// set.
	MethodLabNr RelevanceMethod = "labnr"
	// MethodPotentialContaminant discards every flagged potential
	// contaminant unconditionally.
	MethodPotentialContaminant RelevanceMethod = "potential_contaminant"
)

var (
	// ErrUnknownMethod reports a relevance method outside the three rules.
	ErrUnknownMethod = errors.New("microbiology: unknown relevance method")
	// ErrInconsistentCounts reports a finding whose sample-date group has
	// neither relevant nor non-relevant findings. The relevance stage always
	// produces at least one of the two, so this means an upstream stage was
	// skipped.
	ErrInconsistentCounts = errors.New("microbiology: finding group has no relevance counts")
)

const (
	ClassMono = "mono"
	ClassPoly = "poly"
	ClassCont = "cont"
)

type ClassifyOptions struct {
	Method                     RelevanceMethod
	OutcomeColumn              string
	PositivePrefix             string
	PatientIDColumn            string
	SampleDateColumn           string
	SpeciesColumn              string
	LabNrColumn                string
	SampleIDColumn             string
	PotentialContaminantColumn string
}

func (o *ClassifyOptions) applyDefaults() {
	if o.Method == "" {
		o.Method = MethodBottle
	}
	if o.OutcomeColumn == "" {
		o.OutcomeColumn = "bottle_outcome"
	}
	if o.PositivePrefix == "" {
		o.PositivePrefix = "pos"
	}
	if o.PatientIDColumn == "" {
		o.PatientIDColumn = "patient_id"
	}
	if o.SampleDateColumn == "" {
		o.SampleDateColumn = "sample_date"
	}
	if o.SpeciesColumn == "" {
		o.SpeciesColumn = "species"
	}
	if o.LabNrColumn == "" {
		o.LabNrColumn = "sid"
	}
	if o.SampleIDColumn == "" {
		o.SampleIDColumn = "sample_id"
	}
	if o.PotentialContaminantColumn == "" {
		o.PotentialContaminantColumn = "potential_contaminant"
	}
}

// Classify runs the full three-stage pipeline over the table: relevance,
// mono/poly/contamination, polymicrobial flags. Only rows whose outcome
// starts with the positive prefix are classified; the derived columns are
// written back onto those rows and the full table is returned.
func Classify(rows []dataset.Row, opts ClassifyOptions) ([]dataset.Row, error) {
	opts.applyDefaults()

	out := dataset.CloneRows(rows)

	positive := PositiveRows(out, opts)
	if len(positive) == 0 {
		return out, nil
	}

	if err := SetContaminantRelevant(positive, opts); err != nil {
		return nil, err
	}
	if err := SetMonoPolyContamination(positive, opts); err != nil {
		return nil, err
	}
	FlagPolymicrobial(positive, opts)

	return out, nil
}

// PositiveRows returns the rows whose outcome column starts with the positive
// prefix, case-insensitively. The returned slice shares the input rows.
func PositiveRows(rows []dataset.Row, opts ClassifyOptions) []dataset.Row {
	opts.applyDefaults()
	prefix := strings.ToLower(opts.PositivePrefix)
	return dataset.Filter(rows, func(r dataset.Row) bool {
		outcome, ok := dataset.String(r, opts.OutcomeColumn)
		return ok && strings.HasPrefix(strings.ToLower(outcome), prefix)
	})
}

// SetContaminantRelevant adds the "relevant" column. Findings not flagged as
// potential contaminants are always relevant; flagged findings are judged by
// the configured method over their (patient, sample date, species) group.
// The rows are annotated in place; callers hand in an already-cloned subset.
func SetContaminantRelevant(rows []dataset.Row, opts ClassifyOptions) error {
	opts.applyDefaults()

	switch opts.Method {
	case MethodBottle, MethodLabNr, MethodPotentialContaminant:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMethod, opts.Method)
	}

	flagged := dataset.Filter(rows, func(r dataset.Row) bool {
		return dataset.Bool(r, opts.PotentialContaminantColumn)
	})

	// Distinct bottle identifiers per (patient, sample date, species).
	distinct := make(map[string]map[string]struct{})
	for _, r := range flagged {
		key := dataset.GroupKey(r, opts.PatientIDColumn, opts.SampleDateColumn, opts.SpeciesColumn)
		if distinct[key] == nil {
			distinct[key] = make(map[string]struct{})
		}
		if labnr, ok := dataset.String(r, opts.LabNrColumn); ok {
			distinct[key][labnr] = struct{}{}
		}
	}

	for _, r := range rows {
		if !dataset.Bool(r, opts.PotentialContaminantColumn) {
			r["relevant"] = true
			continue
		}
		key := dataset.GroupKey(r, opts.PatientIDColumn, opts.SampleDateColumn, opts.SpeciesColumn)
		switch opts.Method {
		case MethodBottle:
			r["relevant"] = len(distinct[key]) >= 3
		case MethodLabNr:
			r["relevant"] = len(distinct[key]) != 1
		case MethodPotentialContaminant:
			r["relevant"] = false
		}
	}
	return nil
}

// SetMonoPolyContamination adds the "mono_poly_contamination" column. Counts
// are taken over findings deduplicated by (patient, sample date, species) so
// repeated growth of one species is not counted twice. A non-relevant finding
// is always contamination; a relevant finding is mono or poly depending on
// how many relevant findings share its sample date.
func SetMonoPolyContamination(rows []dataset.Row, opts ClassifyOptions) error {
	opts.applyDefaults()

	type counts struct {
		relevant    int
		nonRelevant int
	}

	seen := make(map[string]struct{})
	groupCounts := make(map[string]*counts)
	for _, r := range rows {
		dedupKey := dataset.GroupKey(r, opts.PatientIDColumn, opts.SampleDateColumn, opts.SpeciesColumn)
		if _, dup := seen[dedupKey]; dup {
			continue
		}
		seen[dedupKey] = struct{}{}

		groupKey := dataset.GroupKey(r, opts.PatientIDColumn, opts.SampleDateColumn)
		c := groupCounts[groupKey]
		if c == nil {
			c = &counts{}
			groupCounts[groupKey] = c
		}
		if dataset.Bool(r, "relevant") {
			c.relevant++
		} else {
			c.nonRelevant++
		}
	}

	for _, r := range rows {
		if !dataset.Bool(r, "relevant") {
			r["mono_poly_contamination"] = ClassCont
			continue
		}

		c := groupCounts[dataset.GroupKey(r, opts.PatientIDColumn, opts.SampleDateColumn)]
		switch {
		case c == nil || (c.relevant == 0 && c.nonRelevant == 0):
			return fmt.Errorf("%w: patient %v date %v",
				ErrInconsistentCounts, r[opts.PatientIDColumn], r[opts.SampleDateColumn])
		case c.relevant > 1:
			r["mono_poly_contamination"] = ClassPoly
		case c.relevant == 1:
			r["mono_poly_contamination"] = ClassMono
		default:
			r["mono_poly_contamination"] = ClassCont
		}
	}
	return nil
}

// FlagPolymicrobial adds "polymicrobial", "which_polymicrobial" and
// "which_sample_ids". A row is polymicrobial exactly when it was classified
// poly; which_polymicrobial lists the poly species of the sample date and
// which_sample_ids lists species:sample_id pairs for every row of the date.
func FlagPolymicrobial(rows []dataset.Row, opts ClassifyOptions) {
	opts.applyDefaults()

	polySpecies := make(map[string]map[string]struct{})
	samplePairs := make(map[string]map[string]struct{})

	for _, r := range rows {
		groupKey := dataset.GroupKey(r, opts.PatientIDColumn, opts.SampleDateColumn)
		poly := r["mono_poly_contamination"] == ClassPoly
		r["polymicrobial"] = poly

		species, speciesOK := dataset.String(r, opts.SpeciesColumn)
		if poly && speciesOK {
			if polySpecies[groupKey] == nil {
				polySpecies[groupKey] = make(map[string]struct{})
			}
			polySpecies[groupKey][strings.ReplaceAll(species, "&", "")] = struct{}{}
		}

		if sampleID, ok := dataset.String(r, opts.SampleIDColumn); ok && speciesOK {
			if samplePairs[groupKey] == nil {
				samplePairs[groupKey] = make(map[string]struct{})
			}
			samplePairs[groupKey][species+":"+sampleID] = struct{}{}
		}
	}

	for _, r := range rows {
		groupKey := dataset.GroupKey(r, opts.PatientIDColumn, opts.SampleDateColumn)
		if dataset.Bool(r, "polymicrobial") {
			r["which_polymicrobial"] = joinSorted(polySpecies[groupKey])
		} else {
			r["which_polymicrobial"] = nil
		}
		r["which_sample_ids"] = joinSorted(samplePairs[groupKey])
	}
}

// FlagPolymicrobialWholeEpisode writes "polymicrobial_episode" on every row
// of an episode when more than one distinct microorganism appears anywhere in
// the episode, regardless of sample date. This is the coarse episode-level
// rule; the per-date "polymicrobial" column is left untouched. Callers feed
// it positive findings only, so absent growth never counts as an organism.
func FlagPolymicrobialWholeEpisode(rows []dataset.Row, episodeIDColumn, organismColumn string) []dataset.Row {
	if episodeIDColumn == "" {
		episodeIDColumn = "episode_id"
	}
	if organismColumn == "" {
		organismColumn = "microorganism"
	}

	out := dataset.CloneRows(rows)
	organisms := make(map[string]map[string]struct{})
	for _, r := range out {
		key := dataset.GroupKey(r, episodeIDColumn)
		if organisms[key] == nil {
			organisms[key] = make(map[string]struct{})
		}
		if organism, ok := dataset.String(r, organismColumn); ok {
			organisms[key][organism] = struct{}{}
		}
	}
	for _, r := range out {
		r["polymicrobial_episode"] = len(organisms[dataset.GroupKey(r, episodeIDColumn)]) > 1
	}
	return out
}

func joinSorted(set map[string]struct{}) string {
	values := make([]string, 0, len(set))
	for v := range set {
		values = append(values, v)
	}
	sort.Strings(values)
	return strings.Join(values, " | ")
}
