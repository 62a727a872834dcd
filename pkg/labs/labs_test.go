package labs

import (
	"testing"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

func TestCleanMeasurement(t *testing.T) {
	rows := []dataset.Row{
		{"result": "<0,5 mg/L"},
		{"result": "123"},
		{"result": "ej bedömbar"},
		{"result": "37,8 °C"},
	}
	out := CleanMeasurement(rows, "result")

	if len(out) != 3 {
		t.Fatalf("expected 3 rows with digits, got %d", len(out))
	}
	if v, _ := dataset.Float(out[0], "result_cleaned"); v != 0.5 {
		t.Fatalf("expected 0.5, got %v", out[0]["result_cleaned"])
	}
	if v, _ := dataset.Float(out[1], "result_cleaned"); v != 123 {
		t.Fatalf("expected 123, got %v", out[1]["result_cleaned"])
	}
	if v, _ := dataset.Float(out[2], "result_cleaned"); v != 37.8 {
		t.Fatalf("expected 37.8, got %v", out[2]["result_cleaned"])
	}
}

func TestCleanMeasurementUnparsableResidue(t *testing.T) {
	// A range like "0,5-1,0" collapses to "0.51.0" after stripping and must
	// come out missing, not wrong.
	rows := []dataset.Row{{"result": "0,5-1,0"}}
	out := CleanMeasurement(rows, "result")
	if len(out) != 1 {
		t.Fatalf("expected the row kept, got %d rows", len(out))
	}
	if out[0]["result_cleaned"] != nil {
		t.Fatalf("expected missing cleaned value, got %v", out[0]["result_cleaned"])
	}
}

func TestScreenReasonability(t *testing.T) {
	ranges := Ranges{"Temperatur": {Low: 25, High: 45}}
	rows := []dataset.Row{
		{"analyte": "Temperatur", "value": 37.8},
		{"analyte": "Temperatur", "value": 378.0},
		{"analyte": "CRP", "value": 5000.0},
		{"analyte": "Temperatur", "value": nil},
	}
	out := ScreenReasonability(rows, "value", "analyte", ranges)

	want := []bool{true, false, true, true}
	for i, w := range want {
		if out[i]["reasonable"] != w {
			t.Fatalf("row %d: expected reasonable=%v, got %v", i, w, out[i]["reasonable"])
		}
	}
}

func TestLoadRangesFallsBackToDefault(t *testing.T) {
	ranges, err := LoadRanges("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := ranges["Temperatur"]; !ok {
		t.Fatal("default ranges must cover temperature")
	}
}
