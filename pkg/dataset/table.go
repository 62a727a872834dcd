package dataset

import (
	"fmt"
	"sort"
	"time"
)

// Row is one record of a named-column table. The pipeline passes tables
// around as []Row; every transformation clones its input before touching it.
type Row map[string]interface{}

func CloneRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = CloneRow(r)
	}
	return out
}

// SortStable returns a stably sorted copy of rows. Input order is the
// tie-breaker, which segmentation relies on for same-day samples.
func SortStable(rows []Row, less func(a, b Row) bool) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func Filter(rows []Row, keep func(Row) bool) []Row {
	var out []Row
	for _, r := range rows {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// GroupBy buckets rows by key. Keys come back in first-seen order so that
// grouped output is deterministic for a given input ordering.
func GroupBy(rows []Row, key func(Row) string) ([]string, map[string][]Row) {
	var order []string
	groups := make(map[string][]Row)
	for _, r := range rows {
		k := key(r)
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], r)
	}
	return order, groups
}

// GroupKey builds a composite grouping key from column values.
func GroupKey(r Row, cols ...string) string {
	key := ""
	for i, col := range cols {
		if i > 0 {
			key += "\x1f"
		}
		key += fmt.Sprint(r[col])
	}
	return key
}

// String returns the column as a string. Missing values and nil report ok=false.
func String(r Row, col string) (string, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

func Bool(r Row, col string) bool {
	v, ok := r[col]
	if !ok || v == nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

func Float(r Row, col string) (float64, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func Int(r Row, col string) (int, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// Time returns the column as a timestamp, parsing strings on the fly with the
// known clinical export formats.
func Time(r Row, col string) (time.Time, bool) {
	v, ok := r[col]
	if !ok || v == nil {
		return time.Time{}, false
	}
	return ParseDate(v)
}

// Compare orders two column values: missing first, then timestamps, then
// numbers, then lexicographic on the printed value.
func Compare(a, b interface{}) int {
	aMissing := a == nil
	bMissing := b == nil
	if aMissing || bMissing {
		switch {
		case aMissing && bMissing:
			return 0
		case aMissing:
			return -1
		default:
			return 1
		}
	}

	if at, aok := ParseDate(a); aok {
		if bt, bok := ParseDate(b); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}

	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}

	as, bs := fmt.Sprint(a), fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

// LessByColumns builds a comparator over the given columns, for SortStable.
func LessByColumns(cols ...string) func(a, b Row) bool {
	return func(a, b Row) bool {
		for _, col := range cols {
			if c := Compare(a[col], b[col]); c != 0 {
				return c < 0
			}
		}
		return false
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
