package sir

import (
	"reflect"
	"testing"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

func TestFindAndSplitColumns(t *testing.T) {
	rows := []dataset.Row{
		{"patient_id": "P", "SIR Cefotaxim": "S", "Cefotaxim MIC": 0.5, "species": "E. coli"},
	}

	found := FindColumns(rows, "", "")
	if !reflect.DeepEqual(found, []string{"Cefotaxim MIC", "SIR Cefotaxim"}) {
		t.Fatalf("unexpected susceptibility columns: %v", found)
	}

	sirCols, micCols := SplitColumns(found, "", "")
	if !reflect.DeepEqual(sirCols, []string{"SIR Cefotaxim"}) {
		t.Fatalf("unexpected SIR columns: %v", sirCols)
	}
	if !reflect.DeepEqual(micCols, []string{"Cefotaxim MIC"}) {
		t.Fatalf("unexpected MIC columns: %v", micCols)
	}
}

func TestSeparate(t *testing.T) {
	rows := []dataset.Row{
		{"patient_id": "P", "sid": "B1", "SIR Cefotaxim": "S", "species": "E. coli"},
	}
	rest, sus := Separate(rows, []string{"patient_id", "sid"})

	if _, ok := rest[0]["SIR Cefotaxim"]; ok {
		t.Fatal("main table must not keep susceptibility columns")
	}
	if rest[0]["species"] != "E. coli" {
		t.Fatal("main table must keep its own columns")
	}
	if sus[0]["SIR Cefotaxim"] != "S" || sus[0]["patient_id"] != "P" || sus[0]["sid"] != "B1" {
		t.Fatalf("susceptibility table incomplete: %v", sus[0])
	}
}

func TestFillCarriesValuesBothWays(t *testing.T) {
	rows := []dataset.Row{
		{"patient_id": "P", "species": "E. coli", "sir": nil},
		{"patient_id": "P", "species": "E. coli", "sir": "S"},
		{"patient_id": "P", "species": "E. coli", "sir": nil},
		{"patient_id": "Q", "species": "E. coli", "sir": nil},
	}
	out := Fill(rows, []string{"sir"}, []string{"patient_id", "species"})

	if out[0]["sir"] != "S" {
		t.Fatalf("backward fill failed: %v", out[0]["sir"])
	}
	if out[2]["sir"] != "S" {
		t.Fatalf("forward fill failed: %v", out[2]["sir"])
	}
	if out[3]["sir"] != nil {
		t.Fatalf("fill must not leak across groups: %v", out[3]["sir"])
	}
}

func TestToLongDropsMissing(t *testing.T) {
	rows := []dataset.Row{
		{"patient_id": "P", "SIR Cefotaxim": "S", "SIR Meropenem": nil},
	}
	out := ToLong(rows, []string{"patient_id"}, []string{"SIR Cefotaxim", "SIR Meropenem"}, "test", "sir")

	if len(out) != 1 {
		t.Fatalf("expected 1 long row, got %d", len(out))
	}
	if out[0]["test"] != "SIR Cefotaxim" || out[0]["sir"] != "S" || out[0]["patient_id"] != "P" {
		t.Fatalf("unexpected long row: %v", out[0])
	}
}

func TestSplitTestName(t *testing.T) {
	rows := []dataset.Row{{"test": "SIR Cefotaxim"}}
	out := SplitTestName(rows, "test")

	if out[0]["resistance_determination_type"] != "SIR" {
		t.Fatalf("unexpected type: %v", out[0]["resistance_determination_type"])
	}
	if out[0]["resistance_determination_antibiotic"] != "Cefotaxim" {
		t.Fatalf("unexpected antibiotic: %v", out[0]["resistance_determination_antibiotic"])
	}
	if _, ok := out[0]["test"]; ok {
		t.Fatal("original column must be dropped")
	}
}

func TestDeduplicateByTestTypePrefersSIR(t *testing.T) {
	rows := []dataset.Row{
		{"patient_id": "P", "antibiotic": "Cefotaxim", "type": "MIC", "value": "0.5"},
		{"patient_id": "P", "antibiotic": "Cefotaxim", "type": "SIR", "value": "S"},
		{"patient_id": "P", "antibiotic": "Meropenem", "type": "MIC", "value": "1"},
	}
	out := DeduplicateByTestType(rows, []string{"SIR", "MIC"}, "type", "value")

	if len(out) != 2 {
		t.Fatalf("expected 2 deduplicated rows, got %d", len(out))
	}
	for _, r := range out {
		if r["antibiotic"] == "Cefotaxim" && r["type"] != "SIR" {
			t.Fatalf("expected the SIR result kept, got %v", r)
		}
	}
}

func TestCleanAntibioticName(t *testing.T) {
	cases := map[string]string{
		"Cefotaxim 1g iv":         "Cefotaxim",
		"Piperacillin/Tazobactam": "Piperacillin/Tazobactam",
		"Bensylpenicillin 3g x 3": "Bensylpenicillin",
	}
	for in, want := range cases {
		if got := CleanAntibioticName(in); got != want {
			t.Fatalf("CleanAntibioticName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAdequateUsage(t *testing.T) {
	administrations := []dataset.Row{
		{"patient_id": "P", "sample_id": "S1", "antibiotic": "Cefotaxim"},
		{"patient_id": "Q", "sample_id": "S2", "antibiotic": "Meropenem"},
	}
	susceptibility := []dataset.Row{
		{"patient_id": "P", "sample_id": "S1", "episode_id": "P1", "resistance_determination_antibiotic": "Cefotaxim", "sir": "S"},
		{"patient_id": "P", "sample_id": "S1", "episode_id": "P1", "resistance_determination_antibiotic": "Meropenem", "sir": "R"},
		{"patient_id": "Q", "sample_id": "S2", "episode_id": "Q1", "resistance_determination_antibiotic": "Meropenem", "sir": "R"},
	}

	out := AdequateUsage(administrations, susceptibility, AdequacyOptions{})
	if len(out) != 2 {
		t.Fatalf("expected one row per episode, got %d", len(out))
	}
	if usage, _ := dataset.Int(out[0], "adequate_antibiotic_usage"); usage != 1 {
		t.Fatalf("P1 got a susceptible match, expected 1, got %d", usage)
	}
	if usage, _ := dataset.Int(out[1], "adequate_antibiotic_usage"); usage != 0 {
		t.Fatalf("Q1 was resistant, expected 0, got %d", usage)
	}
}
