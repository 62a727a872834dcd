package sir

import (
	"strings"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

type AdequacyOptions struct {
	// MergeColumns join the administration table to the susceptibility
	// table, typically patient and sample identifiers.
	MergeColumns          []string
	AdministeredColumn    string
	TestedAntibioticColum string
	EpisodeIDColumn       string
	SIRColumn             string
	// AdequateValues are the susceptibility categories that make an
	// administered antibiotic adequate.
	AdequateValues []string
	OutputColumn   string
}

func (o *AdequacyOptions) applyDefaults() {
	if len(o.MergeColumns) == 0 {
		o.MergeColumns = []string{"patient_id", "sample_id"}
	}
	if o.AdministeredColumn == "" {
		o.AdministeredColumn = "antibiotic"
	}
	if o.TestedAntibioticColum == "" {
		o.TestedAntibioticColum = "resistance_determination_antibiotic"
	}
	if o.EpisodeIDColumn == "" {
		o.EpisodeIDColumn = "episode_id"
	}
	if o.SIRColumn == "" {
		o.SIRColumn = "sir"
	}
	if len(o.AdequateValues) == 0 {
		o.AdequateValues = []string{"S", "I"}
	}
	if o.OutputColumn == "" {
		o.OutputColumn = "adequate_antibiotic_usage"
	}
}

// AdequateUsage decides per episode whether any administered antibiotic had a
// susceptible or intermediate test result. The administration rows are joined
// to the susceptibility rows, pairs where the administered and the tested
// antibiotic differ are discarded, and each episode yields one row with the
// output column set to 1 or 0.
func AdequateUsage(administrations, susceptibility []dataset.Row, opts AdequacyOptions) []dataset.Row {
	opts.applyDefaults()

	administered := make(map[string]map[string]struct{})
	for _, adm := range administrations {
		key := dataset.GroupKey(adm, opts.MergeColumns...)
		name, ok := dataset.String(adm, opts.AdministeredColumn)
		if !ok {
			continue
		}
		if administered[key] == nil {
			administered[key] = make(map[string]struct{})
		}
		administered[key][strings.ToLower(name)] = struct{}{}
	}

	adequate := make(map[string]bool)
	for _, v := range opts.AdequateValues {
		adequate[strings.ToLower(v)] = true
	}

	order := make([]string, 0)
	result := make(map[string]int)
	for _, sus := range susceptibility {
		episode := dataset.GroupKey(sus, opts.EpisodeIDColumn)
		if _, seen := result[episode]; !seen {
			order = append(order, episode)
			result[episode] = 0
		}

		tested, ok := dataset.String(sus, opts.TestedAntibioticColum)
		if !ok {
			continue
		}
		names := administered[dataset.GroupKey(sus, opts.MergeColumns...)]
		if _, given := names[strings.ToLower(tested)]; !given {
			continue
		}
		if value, ok := dataset.String(sus, opts.SIRColumn); ok && adequate[strings.ToLower(value)] {
			result[episode] = 1
		}
	}

	out := make([]dataset.Row, 0, len(order))
	for _, episode := range order {
		out = append(out, dataset.Row{
			opts.EpisodeIDColumn: episode,
			opts.OutputColumn:    result[episode],
		})
	}
	return out
}
