// Package hospitalisation derives duration features from admission records:
// cleaning raw exports, windowed hospitalisation time before a baseline date
// and days-of-care sums around it.
package hospitalisation

import (
	"strings"
	"time"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

type CleanOptions struct {
	StopColumn string
	TypeColumn string
	// RemoveType drops admissions whose type matches TypeValue, typically
	// used to exclude outpatient contacts.
	RemoveType bool
	TypeValue  string
}

func (o *CleanOptions) applyDefaults() {
	if o.StopColumn == "" {
		o.StopColumn = "hosp_stop"
	}
	if o.TypeColumn == "" {
		o.TypeColumn = "hosp_type"
	}
	if o.TypeValue == "" {
		o.TypeValue = "Öppenvård"
	}
}

// Clean drops admissions without a discharge date. Records still open at
// export time carry no stop date and cannot contribute to duration features.
func Clean(rows []dataset.Row, opts CleanOptions) []dataset.Row {
	opts.applyDefaults()

	out := dataset.Filter(dataset.CloneRows(rows), func(r dataset.Row) bool {
		_, ok := dataset.ParseDate(r[opts.StopColumn])
		return ok
	})
	if !opts.RemoveType {
		return out
	}
	lowered := strings.ToLower(opts.TypeValue)
	return dataset.Filter(out, func(r dataset.Row) bool {
		value, ok := dataset.String(r, opts.TypeColumn)
		return !ok || !strings.Contains(strings.ToLower(value), lowered)
	})
}

type MostRecentOptions struct {
	StartColumn     string
	StopColumn      string
	EpisodeIDColumn string
	SiteColumn      string
	ExcludeSites    []string
	IncludeSites    []string
}

func (o *MostRecentOptions) applyDefaults() {
	if o.StartColumn == "" {
		o.StartColumn = "hosp_start"
	}
	if o.StopColumn == "" {
		o.StopColumn = "hosp_stop"
	}
	if o.EpisodeIDColumn == "" {
		o.EpisodeIDColumn = "episode_id"
	}
	if o.SiteColumn == "" {
		o.SiteColumn = "hosp_site"
	}
}

// MostRecent reduces admissions to the latest one per episode, after the
// optional site include/exclude filters. Every episode of the input appears
// in the output: episodes whose admissions were all filtered away keep a row
// with only the episode id, so downstream joins stay total. The rows also
// carry the episode's earliest start and latest stop.
func MostRecent(rows []dataset.Row, opts MostRecentOptions) []dataset.Row {
	opts.applyDefaults()

	allEpisodes, episodeRows := dataset.GroupBy(rows, func(r dataset.Row) string {
		return dataset.GroupKey(r, opts.EpisodeIDColumn)
	})

	filtered := dataset.CloneRows(rows)
	if len(opts.ExcludeSites) > 0 {
		filtered = dataset.Filter(filtered, func(r dataset.Row) bool {
			return !siteMatches(r, opts.SiteColumn, opts.ExcludeSites)
		})
	}
	if len(opts.IncludeSites) > 0 {
		filtered = dataset.Filter(filtered, func(r dataset.Row) bool {
			return siteMatches(r, opts.SiteColumn, opts.IncludeSites)
		})
	}

	order, groups := dataset.GroupBy(filtered, func(r dataset.Row) string {
		return dataset.GroupKey(r, opts.EpisodeIDColumn)
	})

	latest := make(map[string][]dataset.Row, len(order))
	for _, key := range order {
		group := groups[key]

		var earliestStart, latestStop time.Time
		haveStart, haveStop := false, false
		for _, r := range group {
			if start, ok := dataset.ParseDate(r[opts.StartColumn]); ok {
				if !haveStart || start.Before(earliestStart) {
					earliestStart = start
					haveStart = true
				}
			}
			if stop, ok := dataset.ParseDate(r[opts.StopColumn]); ok {
				if !haveStop || stop.After(latestStop) {
					latestStop = stop
					haveStop = true
				}
			}
		}

		for _, r := range group {
			stop, ok := dataset.ParseDate(r[opts.StopColumn])
			if !haveStop || !ok || !stop.Equal(latestStop) {
				continue
			}
			picked := dataset.Row{
				opts.EpisodeIDColumn: r[opts.EpisodeIDColumn],
				opts.SiteColumn:      r[opts.SiteColumn],
				opts.StartColumn:     r[opts.StartColumn],
				opts.StopColumn:      r[opts.StopColumn],
				"latest_hosp_stop":   latestStop,
			}
			if haveStart {
				picked["earliest_hosp_start"] = earliestStart
			} else {
				picked["earliest_hosp_start"] = nil
			}
			latest[key] = append(latest[key], picked)
		}
	}

	// Right-join against the full episode list.
	var out []dataset.Row
	for _, episode := range allEpisodes {
		if picked, ok := latest[episode]; ok {
			out = append(out, picked...)
			continue
		}
		// Placeholder keeps the group's original id value, not its key
		// rendering, so the column's type stays uniform across rows.
		out = append(out, dataset.Row{opts.EpisodeIDColumn: episodeRows[episode][0][opts.EpisodeIDColumn]})
	}
	return out
}

func siteMatches(r dataset.Row, column string, sites []string) bool {
	value, ok := dataset.String(r, column)
	if !ok {
		return false
	}
	lowered := strings.ToLower(value)
	for _, site := range sites {
		if strings.Contains(lowered, strings.ToLower(site)) {
			return true
		}
	}
	return false
}
