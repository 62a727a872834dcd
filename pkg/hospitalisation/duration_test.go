package hospitalisation

import (
	"testing"
	"time"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

func admissionRow(episode, patient, sample, start, stop string) dataset.Row {
	return dataset.Row{
		"episode_id":  episode,
		"patient_id":  patient,
		"sample_date": sample,
		"hosp_start":  start,
		"hosp_stop":   stop,
	}
}

func TestPastDurationMergesOverlaps(t *testing.T) {
	rows := []dataset.Row{
		admissionRow("P1", "P", "2021-02-01", "2021-01-01", "2021-01-03"),
		admissionRow("P1", "P", "2021-02-01", "2021-01-02", "2021-01-05"),
	}
	out, err := PastDuration(rows, PastDurationOptions{TimeBefore: 90 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 group row, got %d", len(out))
	}
	total, _ := dataset.Float(out[0], "hosp_time")
	if total != 5 {
		t.Fatalf("expected 5 merged days, got %v", total)
	}
}

func TestPastDurationClipsToWindow(t *testing.T) {
	// Long admission clipped to the look-back window [Jan 7, Jan 10]:
	// four inclusive days.
	rows := []dataset.Row{
		admissionRow("P1", "P", "2021-01-10", "2021-01-01", "2021-01-20"),
	}
	out, err := PastDuration(rows, PastDurationOptions{TimeBefore: 3 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total, _ := dataset.Float(out[0], "hosp_time")
	if total != 4 {
		t.Fatalf("expected 4 clipped days, got %v", total)
	}
}

func TestPastDurationEmitsExplicitZero(t *testing.T) {
	// Admission entirely after the baseline: filtered out, but the group
	// still yields a zero row.
	rows := []dataset.Row{
		admissionRow("P1", "P", "2021-01-01", "2021-02-01", "2021-02-05"),
	}
	out, err := PastDuration(rows, PastDurationOptions{TimeBefore: 30 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected explicit zero row, got %d rows", len(out))
	}
	total, ok := dataset.Float(out[0], "hosp_time")
	if !ok || total != 0 {
		t.Fatalf("expected zero duration, got %v", out[0]["hosp_time"])
	}
}

func TestPastDurationSkipsUnparsableDates(t *testing.T) {
	rows := []dataset.Row{
		admissionRow("P1", "P", "2021-02-01", "not a date", "2021-01-05"),
		admissionRow("P1", "P", "2021-02-01", "2021-01-01", "2021-01-03"),
	}
	out, err := PastDuration(rows, PastDurationOptions{TimeBefore: 90 * 24 * time.Hour})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	total, _ := dataset.Float(out[0], "hosp_time")
	if total != 3 {
		t.Fatalf("expected 3 days from the parsable admission, got %v", total)
	}
}

func TestCleanDropsMissingStop(t *testing.T) {
	rows := []dataset.Row{
		{"hosp_stop": "2021-01-05", "hosp_type": "Slutenvård"},
		{"hosp_stop": nil, "hosp_type": "Slutenvård"},
		{"hosp_stop": "2021-01-08", "hosp_type": "Öppenvård"},
	}

	out := Clean(rows, CleanOptions{})
	if len(out) != 2 {
		t.Fatalf("expected 2 rows after dropping missing stop, got %d", len(out))
	}

	out = Clean(rows, CleanOptions{RemoveType: true})
	if len(out) != 1 {
		t.Fatalf("expected 1 row after outpatient filter, got %d", len(out))
	}
	if kind, _ := dataset.String(out[0], "hosp_type"); kind != "Slutenvård" {
		t.Fatalf("expected inpatient row kept, got %q", kind)
	}
}

func TestMostRecentKeepsEveryEpisode(t *testing.T) {
	rows := []dataset.Row{
		{"episode_id": "P1", "hosp_site": "Infektion", "hosp_start": "2021-01-01", "hosp_stop": "2021-01-05"},
		{"episode_id": "P1", "hosp_site": "Kirurgi", "hosp_start": "2021-01-10", "hosp_stop": "2021-01-20"},
		{"episode_id": "P2", "hosp_site": "Kirurgi", "hosp_start": "2021-02-01", "hosp_stop": "2021-02-03"},
	}

	out := MostRecent(rows, MostRecentOptions{ExcludeSites: []string{"kirurgi"}})
	if len(out) != 2 {
		t.Fatalf("expected one row per episode, got %d", len(out))
	}
	if site, _ := dataset.String(out[0], "hosp_site"); site != "Infektion" {
		t.Fatalf("expected the surviving admission for P1, got %q", site)
	}
	if start, ok := dataset.ParseDate(out[0]["earliest_hosp_start"]); !ok || !start.Equal(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected earliest_hosp_start %v", out[0]["earliest_hosp_start"])
	}
	// P2 lost every admission to the filter but keeps its episode row.
	if out[1]["episode_id"] != "P2" {
		t.Fatalf("expected placeholder row for P2, got %v", out[1])
	}
	if _, ok := out[1]["hosp_stop"]; ok {
		t.Fatal("placeholder row must not carry admission columns")
	}
}

func TestMostRecentPlaceholderKeepsIDValue(t *testing.T) {
	rows := []dataset.Row{
		{"episode_id": 71, "hosp_site": "Kirurgi", "hosp_start": "2021-01-01", "hosp_stop": "2021-01-02"},
	}
	out := MostRecent(rows, MostRecentOptions{ExcludeSites: []string{"kirurgi"}})
	if len(out) != 1 {
		t.Fatalf("expected 1 placeholder row, got %d", len(out))
	}
	if id, ok := out[0]["episode_id"].(int); !ok || id != 71 {
		t.Fatalf("expected the original episode id value, got %T %v", out[0]["episode_id"], out[0]["episode_id"])
	}
}

func TestMostRecentPicksLatestStop(t *testing.T) {
	rows := []dataset.Row{
		{"episode_id": "P1", "hosp_site": "A", "hosp_start": "2021-01-01", "hosp_stop": "2021-01-05"},
		{"episode_id": "P1", "hosp_site": "B", "hosp_start": "2021-01-03", "hosp_stop": "2021-01-09"},
	}
	out := MostRecent(rows, MostRecentOptions{})
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	if site, _ := dataset.String(out[0], "hosp_site"); site != "B" {
		t.Fatalf("expected latest admission, got %q", site)
	}
}
