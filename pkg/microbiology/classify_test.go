package microbiology

import (
	"errors"
	"testing"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

func finding(patient, date, species, sid string, contaminant bool) dataset.Row {
	return dataset.Row{
		"patient_id":            patient,
		"sample_date":           date,
		"species":               species,
		"sid":                   sid,
		"sample_id":             sid,
		"bottle_outcome":        "Positive",
		"potential_contaminant": contaminant,
	}
}

func TestRelevanceBottleMethod(t *testing.T) {
	// Two distinct bottles: below the threshold of three.
	rows := []dataset.Row{
		finding("P", "2021-01-01", "S. epidermidis", "B1", true),
		finding("P", "2021-01-01", "S. epidermidis", "B2", true),
	}
	if err := SetContaminantRelevant(rows, ClassifyOptions{Method: MethodBottle}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, r := range rows {
		if dataset.Bool(r, "relevant") {
			t.Fatalf("row %d: contaminant in 2 bottles must be irrelevant", i)
		}
	}

	rows = append(rows, finding("P", "2021-01-01", "S. epidermidis", "B3", true))
	if err := SetContaminantRelevant(rows, ClassifyOptions{Method: MethodBottle}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, r := range rows {
		if !dataset.Bool(r, "relevant") {
			t.Fatalf("row %d: contaminant in 3 bottles must be relevant", i)
		}
	}
}

func TestRelevanceLabNrMethod(t *testing.T) {
	rows := []dataset.Row{
		finding("P", "2021-01-01", "S. epidermidis", "B1", true),
		finding("P", "2021-01-01", "S. epidermidis", "B1", true),
	}
	if err := SetContaminantRelevant(rows, ClassifyOptions{Method: MethodLabNr}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataset.Bool(rows[0], "relevant") {
		t.Fatal("single bottle set must be irrelevant under labnr")
	}

	rows[1]["sid"] = "B2"
	if err := SetContaminantRelevant(rows, ClassifyOptions{Method: MethodLabNr}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dataset.Bool(rows[0], "relevant") {
		t.Fatal("two bottle sets must be relevant under labnr")
	}
}

func TestRelevancePotentialContaminantMethod(t *testing.T) {
	rows := []dataset.Row{
		finding("P", "2021-01-01", "S. epidermidis", "B1", true),
		finding("P", "2021-01-01", "E. coli", "B1", false),
	}
	if err := SetContaminantRelevant(rows, ClassifyOptions{Method: MethodPotentialContaminant}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataset.Bool(rows[0], "relevant") {
		t.Fatal("flagged contaminant must be irrelevant under potential_contaminant")
	}
	if !dataset.Bool(rows[1], "relevant") {
		t.Fatal("unflagged finding must stay relevant")
	}
}

func TestRelevanceUnknownMethod(t *testing.T) {
	err := SetContaminantRelevant(nil, ClassifyOptions{Method: "guesswork"})
	if !errors.Is(err, ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestMonoPolyContamination(t *testing.T) {
	rows := []dataset.Row{
		finding("P", "2021-01-01", "E. coli", "B1", false),
		finding("P", "2021-01-01", "K. pneumoniae", "B2", false),
		finding("P", "2021-01-01", "S. epidermidis", "B3", true),
		finding("P", "2021-02-01", "E. coli", "B4", false),
	}
	if err := SetContaminantRelevant(rows, ClassifyOptions{Method: MethodPotentialContaminant}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := SetMonoPolyContamination(rows, ClassifyOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{ClassPoly, ClassPoly, ClassCont, ClassMono}
	for i, w := range want {
		if got := rows[i]["mono_poly_contamination"]; got != w {
			t.Fatalf("row %d: expected %q, got %v", i, w, got)
		}
	}
}

func TestMonoPolyDeduplicatesSpecies(t *testing.T) {
	// Same species twice on one date: counted once, so the picture is mono.
	rows := []dataset.Row{
		finding("P", "2021-01-01", "E. coli", "B1", false),
		finding("P", "2021-01-01", "E. coli", "B2", false),
	}
	if err := SetContaminantRelevant(rows, ClassifyOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := SetMonoPolyContamination(rows, ClassifyOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, r := range rows {
		if r["mono_poly_contamination"] != ClassMono {
			t.Fatalf("row %d: repeated species must classify mono, got %v", i, r["mono_poly_contamination"])
		}
	}
}

func TestMonoPolyWithoutRelevanceStage(t *testing.T) {
	// Rows that never went through the relevance stage carry no "relevant"
	// column and must all fall through to contamination.
	rows := []dataset.Row{
		finding("P", "2021-01-01", "E. coli", "B1", false),
		finding("P", "2021-01-01", "K. pneumoniae", "B2", false),
	}
	if err := SetMonoPolyContamination(rows, ClassifyOptions{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, r := range rows {
		if r["mono_poly_contamination"] != ClassCont {
			t.Fatalf("row %d: expected cont without relevance column, got %v", i, r["mono_poly_contamination"])
		}
	}
}

func TestClassifyExhaustiveAndConsistent(t *testing.T) {
	rows := []dataset.Row{
		finding("P", "2021-01-01", "E. coli", "B1", false),
		finding("P", "2021-01-01", "K. pneumoniae", "B2", false),
		finding("P", "2021-01-01", "S. epidermidis", "B3", true),
		finding("Q", "2021-01-05", "S. aureus", "B9", false),
	}
	rows = append(rows, dataset.Row{
		"patient_id":     "Q",
		"sample_date":    "2021-01-05",
		"species":        "No growth",
		"bottle_outcome": "Negative",
	})

	out, err := Classify(rows, ClassifyOptions{Method: MethodBottle})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("classification must keep every row, got %d", len(out))
	}

	for i, r := range out {
		outcome, _ := dataset.String(r, "bottle_outcome")
		if outcome == "Negative" {
			if _, ok := r["mono_poly_contamination"]; ok {
				t.Fatalf("row %d: negative rows must stay unclassified", i)
			}
			continue
		}
		class, _ := dataset.String(r, "mono_poly_contamination")
		if class != ClassMono && class != ClassPoly && class != ClassCont {
			t.Fatalf("row %d: class %q outside {mono, poly, cont}", i, class)
		}
		if !dataset.Bool(r, "relevant") && class != ClassCont {
			t.Fatalf("row %d: non-relevant finding classified %q", i, class)
		}
		if dataset.Bool(r, "polymicrobial") != (class == ClassPoly) {
			t.Fatalf("row %d: polymicrobial flag inconsistent with class %q", i, class)
		}
	}
}

func TestFlagPolymicrobialSpeciesList(t *testing.T) {
	rows := []dataset.Row{
		finding("P", "2021-01-01", "Klebsiella & pneumoniae", "B1", false),
		finding("P", "2021-01-01", "Escherichia coli", "B2", false),
	}
	out, err := Classify(rows, ClassifyOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, r := range out {
		if !dataset.Bool(r, "polymicrobial") {
			t.Fatalf("row %d: two relevant species must be polymicrobial", i)
		}
		which, _ := dataset.String(r, "which_polymicrobial")
		if which != "Escherichia coli | Klebsiella  pneumoniae" {
			t.Fatalf("row %d: unexpected which_polymicrobial %q", i, which)
		}
		ids, _ := dataset.String(r, "which_sample_ids")
		if ids != "Escherichia coli:B2 | Klebsiella & pneumoniae:B1" {
			t.Fatalf("row %d: unexpected which_sample_ids %q", i, ids)
		}
	}
}

func TestFlagPolymicrobialMonoGroup(t *testing.T) {
	rows := []dataset.Row{finding("P", "2021-01-01", "E. coli", "B1", false)}
	out, err := Classify(rows, ClassifyOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataset.Bool(out[0], "polymicrobial") {
		t.Fatal("mono finding must not be polymicrobial")
	}
	if out[0]["which_polymicrobial"] != nil {
		t.Fatalf("expected missing which_polymicrobial, got %v", out[0]["which_polymicrobial"])
	}
}

func TestFlagPolymicrobialWholeEpisode(t *testing.T) {
	rows := []dataset.Row{
		{"episode_id": "P1", "microorganism": "E. coli"},
		{"episode_id": "P1", "microorganism": "K. pneumoniae"},
		{"episode_id": "P2", "microorganism": "E. coli"},
		{"episode_id": "P2", "microorganism": "E. coli"},
	}

	out := FlagPolymicrobialWholeEpisode(rows, "", "")
	if !dataset.Bool(out[0], "polymicrobial_episode") || !dataset.Bool(out[1], "polymicrobial_episode") {
		t.Fatal("episode with two organisms must be polymicrobial")
	}
	if dataset.Bool(out[2], "polymicrobial_episode") || dataset.Bool(out[3], "polymicrobial_episode") {
		t.Fatal("episode with one organism must not be polymicrobial")
	}
	for _, r := range out {
		if _, exists := r["polymicrobial"]; exists {
			t.Fatal("episode-level flag must not touch the per-date column")
		}
	}
}
