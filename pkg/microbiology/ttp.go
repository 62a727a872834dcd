package microbiology

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

type TTPOptions struct {
	ResultColumn string
	TTDColumn    string
}

func (o *TTPOptions) applyDefaults() {
	if o.ResultColumn == "" {
		o.ResultColumn = "bottle_outcome"
	}
	if o.TTDColumn == "" {
		o.TTDColumn = "ttd"
	}
}

// AddTTP derives time-to-positivity columns. When a time-to-detection value
// exists and the result is not negative (missing results count as positive),
// TTP is the TTD; "ttp_hours" carries the same value in hours for downstream
// feature tables. Rows without a usable TTD keep a missing TTP.
func AddTTP(rows []dataset.Row, opts TTPOptions) []dataset.Row {
	opts.applyDefaults()

	out := dataset.CloneRows(rows)
	for _, r := range out {
		r["ttp"] = nil
		r["ttp_hours"] = nil

		result, resultOK := dataset.String(r, opts.ResultColumn)
		if resultOK && strings.Contains(strings.ToLower(result), "neg") {
			continue
		}

		ttd, ok := durationValue(r[opts.TTDColumn])
		if !ok {
			continue
		}
		r["ttp"] = ttd
		r["ttp_hours"] = ttd.Hours()
	}
	return out
}

// FilterTTP drops rows whose TTP is at or above the limit. Rows with a
// missing TTP are kept; an absent value says nothing about growth speed.
func FilterTTP(rows []dataset.Row, ttpColumn string, limit time.Duration) []dataset.Row {
	if ttpColumn == "" {
		ttpColumn = "ttp"
	}
	return dataset.Filter(dataset.CloneRows(rows), func(r dataset.Row) bool {
		ttp, ok := durationValue(r[ttpColumn])
		return !ok || ttp < limit
	})
}

var ttdPattern = regexp.MustCompile(`(?i)(\d+)\s*([dhm])`)

// durationValue reads a duration cell: either a time.Duration or the lab
// export's "10d 18h 30m" shorthand.
func durationValue(v interface{}) (time.Duration, bool) {
	switch t := v.(type) {
	case time.Duration:
		return t, true
	case string:
		matches := ttdPattern.FindAllStringSubmatch(t, -1)
		if len(matches) == 0 {
			return 0, false
		}
		var total time.Duration
		for _, m := range matches {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, false
			}
			switch strings.ToLower(m[2]) {
			case "d":
				total += time.Duration(n) * 24 * time.Hour
			case "h":
				total += time.Duration(n) * time.Hour
			case "m":
				total += time.Duration(n) * time.Minute
			}
		}
		return total, true
	}
	return 0, false
}
