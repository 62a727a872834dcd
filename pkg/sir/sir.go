// Package sir handles susceptibility test results: locating SIR/MIC columns
// in wide lab exports, carrying values across rows of the same finding,
// reshaping to long format and judging antibiotic adequacy per episode.
package sir

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

const (
	DefaultSIRMarker = "Sir"
	DefaultMICMarker = "Mic"
)

// Columns lists every column of the table, sorted, so column discovery is
// deterministic regardless of map iteration order.
func Columns(rows []dataset.Row) []string {
	seen := make(map[string]struct{})
	for _, r := range rows {
		for col := range r {
			seen[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for col := range seen {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// FindColumns returns the columns carrying SIR or MIC values, recognised by
// marker substring.
func FindColumns(rows []dataset.Row, sirMarker, micMarker string) []string {
	if sirMarker == "" {
		sirMarker = DefaultSIRMarker
	}
	if micMarker == "" {
		micMarker = DefaultMICMarker
	}
	sirLower, micLower := strings.ToLower(sirMarker), strings.ToLower(micMarker)

	var found []string
	for _, col := range Columns(rows) {
		lowered := strings.ToLower(col)
		if strings.Contains(lowered, sirLower) || strings.Contains(lowered, micLower) {
			found = append(found, col)
		}
	}
	return found
}

// SplitColumns divides SIR/MIC columns into the pure-SIR and the MIC groups.
// A column naming both markers counts as MIC.
func SplitColumns(columns []string, sirMarker, micMarker string) (sirCols, micCols []string) {
	if sirMarker == "" {
		sirMarker = DefaultSIRMarker
	}
	if micMarker == "" {
		micMarker = DefaultMICMarker
	}
	sirLower, micLower := strings.ToLower(sirMarker), strings.ToLower(micMarker)

	for _, col := range columns {
		lowered := strings.ToLower(col)
		switch {
		case strings.Contains(lowered, micLower):
			micCols = append(micCols, col)
		case strings.Contains(lowered, sirLower):
			sirCols = append(sirCols, col)
		}
	}
	return sirCols, micCols
}

// Separate splits the susceptibility columns out of the table. The first
// return value is the table without them; the second carries the id columns
// plus every SIR/MIC column.
func Separate(rows []dataset.Row, idColumns []string) (rest, susceptibility []dataset.Row) {
	sirMic := FindColumns(rows, "", "")
	isSusceptibility := make(map[string]struct{}, len(sirMic))
	for _, col := range sirMic {
		isSusceptibility[col] = struct{}{}
	}

	for _, r := range rows {
		restRow := dataset.Row{}
		susRow := dataset.Row{}
		for col, v := range r {
			if _, ok := isSusceptibility[col]; ok {
				susRow[col] = v
			} else {
				restRow[col] = v
			}
		}
		for _, col := range idColumns {
			susRow[col] = r[col]
		}
		rest = append(rest, restRow)
		susceptibility = append(susceptibility, susRow)
	}
	return rest, susceptibility
}

// Fill propagates susceptibility values across the rows of one group,
// forward then backward, so every bottle of a finding carries the result
// even when the lab reported it on a single row.
func Fill(rows []dataset.Row, valueColumns, groupColumns []string) []dataset.Row {
	out := dataset.CloneRows(rows)

	_, groups := dataset.GroupBy(out, func(r dataset.Row) string {
		return dataset.GroupKey(r, groupColumns...)
	})

	for _, group := range groups {
		for _, col := range valueColumns {
			var carry interface{}
			for _, r := range group {
				if v, ok := r[col]; ok && v != nil {
					carry = v
				} else if carry != nil {
					r[col] = carry
				}
			}
			carry = nil
			for i := len(group) - 1; i >= 0; i-- {
				if v, ok := group[i][col]; ok && v != nil {
					carry = v
				} else if carry != nil {
					group[i][col] = carry
				}
			}
		}
	}
	return out
}

// ToLong reshapes the table from wide to long: one output row per
// (input row, value column) pair, named by varName/valueName. Missing values
// are dropped.
func ToLong(rows []dataset.Row, idVars, valueVars []string, varName, valueName string) []dataset.Row {
	var out []dataset.Row
	for _, valueCol := range valueVars {
		for _, r := range rows {
			v, ok := r[valueCol]
			if !ok || v == nil {
				continue
			}
			long := dataset.Row{varName: valueCol, valueName: v}
			for _, id := range idVars {
				long[id] = r[id]
			}
			out = append(out, long)
		}
	}
	return out
}

// SplitTestName splits a long-format test name like "SIR Cefotaxim" into
// "resistance_determination_type" and "resistance_determination_antibiotic",
// replacing the original column.
func SplitTestName(rows []dataset.Row, testColumn string) []dataset.Row {
	out := dataset.CloneRows(rows)
	for _, r := range out {
		name, ok := dataset.String(r, testColumn)
		delete(r, testColumn)
		if !ok {
			r["resistance_determination_type"] = nil
			r["resistance_determination_antibiotic"] = nil
			continue
		}
		parts := strings.SplitN(name, " ", 2)
		r["resistance_determination_type"] = parts[0]
		if len(parts) > 1 {
			r["resistance_determination_antibiotic"] = parts[1]
		} else {
			r["resistance_determination_antibiotic"] = nil
		}
	}
	return out
}

// DeduplicateByTestType keeps one test result when the same finding was
// tested more than one way. priority orders test types best-first, e.g.
// ["SIR", "MIC"] prefers the SIR result. Rows are identical when every
// column other than the test type and the value matches.
func DeduplicateByTestType(rows []dataset.Row, priority []string, testTypeColumn, valueColumn string) []dataset.Row {
	rank := make(map[string]int, len(priority))
	for i, p := range priority {
		rank[strings.ToLower(p)] = i
	}

	sorted := dataset.SortStable(rows, func(a, b dataset.Row) bool {
		return typeRank(a, testTypeColumn, rank) < typeRank(b, testTypeColumn, rank)
	})

	subset := make([]string, 0)
	for _, col := range Columns(rows) {
		if col != testTypeColumn && col != valueColumn {
			subset = append(subset, col)
		}
	}

	seen := make(map[string]struct{})
	var out []dataset.Row
	for _, r := range sorted {
		key := dataset.GroupKey(r, subset...)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func typeRank(r dataset.Row, column string, rank map[string]int) int {
	value, ok := dataset.String(r, column)
	if !ok {
		return len(rank)
	}
	if n, found := rank[strings.ToLower(value)]; found {
		return n
	}
	return len(rank)
}

var antibioticNamePattern = regexp.MustCompile(`^([a-zåäöA-ZÅÄÖ/]+)`)

// CleanAntibioticName trims an administered-antibiotic name to its leading
// word, dropping dosage and form suffixes from the medication string.
func CleanAntibioticName(name string) string {
	return antibioticNamePattern.FindString(name)
}
