package models

import (
	"time"

	"github.com/google/uuid"
)

// Event bus models. A FindingEvent carries one raw microbiology result row
// as it arrives from the laboratory export.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // finding.raw, finding.classified, pipeline.completed
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// PipelineRunRequest is the payload accepted by the episode service. Every
// table is a list of named-column rows; column names are translated by the
// loader before submission, so the defaults in the options structs apply.
type PipelineRunRequest struct {
	Microbiology     []map[string]interface{} `json:"microbiology"`
	Hospitalisations []map[string]interface{} `json:"hospitalisations"`
	Deceased         []map[string]interface{} `json:"deceased,omitempty"`
	RelevanceMethod  string                   `json:"relevance_method,omitempty"`
	EpisodeGapDays   int                      `json:"episode_gap_days,omitempty"`
	RequestedBy      string                   `json:"requested_by,omitempty"`
}

type PipelineRunSummary struct {
	RunID         uuid.UUID `json:"run_id"`
	Status        string    `json:"status"`
	Patients      int       `json:"patients"`
	Episodes      int       `json:"episodes"`
	Findings      int       `json:"findings"`
	FeatureRows   int       `json:"feature_rows"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	CompletedAt   time.Time `json:"completed_at"`
	QueryDuration float64   `json:"query_duration_seconds"`
}

// EpisodeFeatureSet is the per-episode summary row served to study tooling.
type EpisodeFeatureSet struct {
	EpisodeID string                 `json:"episode_id"`
	PatientID string                 `json:"patient_id"`
	Baseline  time.Time              `json:"baseline"`
	Features  map[string]interface{} `json:"features"`
	Version   int                    `json:"version"`
}
