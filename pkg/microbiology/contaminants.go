package microbiology

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ErikRydengard/BSI/pkg/dataset"
	"gopkg.in/yaml.v3"
)

// Catalog lists the species the study treats as potential skin/environment
// contaminants when grown from blood cultures.
type Catalog struct {
	Species []string `yaml:"species" json:"species"`
}

// LoadCatalog reads a contaminant catalog from YAML, falling back to the
// built-in list when no path is configured.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}

	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Species) == 0 {
		return Catalog{}, fmt.Errorf("contaminant catalog empty")
	}
	return cat, nil
}

// DefaultCatalog covers the common blood-culture contaminants.
func DefaultCatalog() Catalog {
	return Catalog{Species: []string{
		"Staphylococcus epidermidis",
		"Staphylococcus hominis",
		"Staphylococcus capitis",
		"Staphylococcus haemolyticus",
		"Cutibacterium acnes",
		"Corynebacterium species",
		"Micrococcus luteus",
		"Bacillus species",
	}}
}

func (c Catalog) contains(species string) bool {
	for _, s := range c.Species {
		if strings.EqualFold(s, species) {
			return true
		}
	}
	return false
}

// FlagContaminants adds the "potential_contaminant" boolean column by exact
// (case-insensitive) species match against the catalog.
func FlagContaminants(rows []dataset.Row, speciesColumn string, catalog Catalog) []dataset.Row {
	if speciesColumn == "" {
		speciesColumn = "species"
	}

	out := dataset.CloneRows(rows)
	for _, r := range out {
		species, ok := dataset.String(r, speciesColumn)
		r["potential_contaminant"] = ok && catalog.contains(species)
	}
	return out
}

// ExtractBloodSamples keeps the rows whose sample-type column contains the
// keyword, case-insensitively. Used to separate blood cultures from other
// culture types in the combined lab export.
func ExtractBloodSamples(rows []dataset.Row, column, keyword string) []dataset.Row {
	lowered := strings.ToLower(keyword)
	return dataset.Filter(dataset.CloneRows(rows), func(r dataset.Row) bool {
		value, ok := dataset.String(r, column)
		return ok && strings.Contains(strings.ToLower(value), lowered)
	})
}
