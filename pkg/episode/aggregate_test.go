package episode

import (
	"testing"
	"time"

	"github.com/ErikRydengard/BSI/pkg/dataset"
)

func TestSummarizeOneRowPerEpisode(t *testing.T) {
	rows := []dataset.Row{
		{"episode_id": "P1", "value": 1.0},
		{"episode_id": "P2", "value": 5.0},
		{"episode_id": "P1", "value": 3.0},
	}

	out := Summarize(rows, "", func(group []dataset.Row) dataset.Row {
		var sum float64
		for _, r := range group {
			v, _ := dataset.Float(r, "value")
			sum += v
		}
		id, _ := dataset.String(group[0], "episode_id")
		return dataset.Row{"episode_id": id, "total": sum}
	})

	if len(out) != 2 {
		t.Fatalf("expected 2 summary rows, got %d", len(out))
	}
	if total, _ := dataset.Float(out[0], "total"); total != 4.0 {
		t.Fatalf("expected P1 total 4, got %f", total)
	}
	if total, _ := dataset.Float(out[1], "total"); total != 5.0 {
		t.Fatalf("expected P2 total 5, got %f", total)
	}
}

func TestBaselineMapEarliestDate(t *testing.T) {
	rows := []dataset.Row{
		{"episode_id": "P1", "sample_date": "2021-03-05"},
		{"episode_id": "P1", "sample_date": "2021-03-01"},
		{"episode_id": "P2", "sample_date": "bad"},
	}

	baselines := BaselineMap(rows, "", "")
	want := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := baselines["P1"]; !got.Equal(want) {
		t.Fatalf("expected baseline %v, got %v", want, got)
	}
	if _, ok := baselines["P2"]; ok {
		t.Fatal("episode with only unparsable dates must have no baseline")
	}
}
