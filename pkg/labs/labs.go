// Package labs cleans laboratory and vital-sign measurements: numeric
// extraction from free-text result strings and reasonability screening
// against per-analyte ranges.
package labs

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/ErikRydengard/BSI/pkg/dataset"
	"gopkg.in/yaml.v3"
)

var (
	hasDigit   = regexp.MustCompile(`\d`)
	nonNumeric = regexp.MustCompile(`[^\d,.]`)
	edgeCommas = regexp.MustCompile(`^,+|,+$`)
)

// CleanMeasurement extracts a numeric value from each row's free-text result.
// Rows without a single digit are dropped; the rest get a
// "<column>_cleaned" float column, missing when the stripped text still does
// not parse. Units and comparison prefixes like "<0,5 mg/L" are removed and
// the decimal comma becomes a dot.
func CleanMeasurement(rows []dataset.Row, column string) []dataset.Row {
	out := dataset.Filter(dataset.CloneRows(rows), func(r dataset.Row) bool {
		value, ok := dataset.String(r, column)
		return ok && hasDigit.MatchString(value)
	})

	cleanedColumn := column + "_cleaned"
	for _, r := range out {
		value, _ := dataset.String(r, column)
		stripped := nonNumeric.ReplaceAllString(value, "")
		stripped = edgeCommas.ReplaceAllString(stripped, "")
		stripped = strings.ReplaceAll(stripped, ",", ".")

		if parsed, err := strconv.ParseFloat(stripped, 64); err == nil {
			r[cleanedColumn] = parsed
		} else {
			r[cleanedColumn] = nil
		}
	}
	return out
}

// Range bounds the physiologically plausible values of one analyte,
// inclusive on both ends.
type Range struct {
	Low  float64 `yaml:"low" json:"low"`
	High float64 `yaml:"high" json:"high"`
}

// Ranges maps analyte names to their plausible ranges.
type Ranges map[string]Range

// LoadRanges reads reasonability ranges from YAML, falling back to the
// built-in set when no path is configured.
func LoadRanges(path string) (Ranges, error) {
	if path == "" {
		return DefaultRanges(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRanges(), err
	}

	var ranges Ranges
	if err := yaml.Unmarshal(content, &ranges); err != nil {
		return nil, err
	}
	if len(ranges) == 0 {
		return nil, fmt.Errorf("reasonability ranges empty")
	}
	return ranges, nil
}

// DefaultRanges covers the analytes and vitals the study screens routinely.
func DefaultRanges() Ranges {
	return Ranges{
		"CRP":         {Low: 0, High: 1000},
		"Kreatinin":   {Low: 10, High: 2000},
		"Laktat":      {Low: 0, High: 30},
		"Leukocyter":  {Low: 0, High: 200},
		"Trombocyter": {Low: 0, High: 2000},
		"Temperatur":  {Low: 25, High: 45},
		"Puls":        {Low: 10, High: 300},
		"Systoliskt":  {Low: 30, High: 300},
		"Saturation":  {Low: 30, High: 100},
	}
}

// ScreenReasonability adds the "reasonable" column. Values of an analyte with
// a configured range are judged against it; analytes without a range, and
// rows without a numeric value, pass as reasonable.
func ScreenReasonability(rows []dataset.Row, resultColumn, nameColumn string, ranges Ranges) []dataset.Row {
	out := dataset.CloneRows(rows)
	for _, r := range out {
		r["reasonable"] = true

		name, ok := dataset.String(r, nameColumn)
		if !ok {
			continue
		}
		bounds, configured := ranges[name]
		if !configured {
			continue
		}
		value, ok := dataset.Float(r, resultColumn)
		if !ok {
			continue
		}
		r["reasonable"] = value >= bounds.Low && value <= bounds.High
	}
	return out
}
