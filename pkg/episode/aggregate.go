package episode

import (
	"time"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

// ReduceFunc collapses all rows of one episode into a single summary row. It
// must be pure and defined for any non-empty group.
type ReduceFunc func(group []dataset.Row) dataset.Row

// Summarize maps every group of rows sharing an episode id to one output row.
// Grouping is by key equality only; output follows first-seen episode order.
func Summarize(rows []dataset.Row, episodeIDColumn string, reduce ReduceFunc) []dataset.Row {
	if episodeIDColumn == "" {
		episodeIDColumn = "episode_id"
	}

	order, groups := dataset.GroupBy(rows, func(r dataset.Row) string {
		return dataset.GroupKey(r, episodeIDColumn)
	})

	out := make([]dataset.Row, 0, len(order))
	for _, key := range order {
		out = append(out, reduce(groups[key]))
	}
	return out
}

// BaselineMap maps each episode id to its baseline: the earliest sample date
// within the episode. Rows with missing dates do not contribute.
func BaselineMap(rows []dataset.Row, episodeIDColumn, dateColumn string) map[string]time.Time {
	if episodeIDColumn == "" {
		episodeIDColumn = "episode_id"
	}
	if dateColumn == "" {
		dateColumn = "sample_date"
	}

	baselines := make(map[string]time.Time)
	for _, r := range rows {
		id, ok := dataset.String(r, episodeIDColumn)
		if !ok {
			continue
		}
		date, ok := dataset.Time(r, dateColumn)
		if !ok {
			continue
		}
		if existing, seen := baselines[id]; !seen || date.Before(existing) {
			baselines[id] = date
		}
	}
	return baselines
}
