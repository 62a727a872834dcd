package storage

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

type PipelineRun struct {
	ID          uuid.UUID         `gorm:"primaryKey;type:uuid;column:id" json:"id"`
	Status      string            `gorm:"column:status" json:"status"`
	RequestedBy string            `gorm:"column:requested_by" json:"requested_by"`
	Params      datatypes.JSONMap `gorm:"column:params" json:"params"`
	Patients    int               `gorm:"column:patients" json:"patients"`
	Episodes    int               `gorm:"column:episodes" json:"episodes"`
	Findings    int               `gorm:"column:findings" json:"findings"`
	FeatureRows int               `gorm:"column:feature_rows" json:"feature_rows"`
	Error       string            `gorm:"column:error" json:"error,omitempty"`
	StartedAt   time.Time         `gorm:"column:started_at" json:"started_at"`
	CompletedAt *time.Time        `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

type EpisodeFeatureRecord struct {
	EpisodeID string            `gorm:"primaryKey;column:episode_id" json:"episode_id"`
	RunID     uuid.UUID         `gorm:"type:uuid;column:run_id" json:"run_id"`
	PatientID string            `gorm:"column:patient_id;index" json:"patient_id"`
	Baseline  *time.Time        `gorm:"column:baseline" json:"baseline,omitempty"`
	Features  datatypes.JSONMap `gorm:"column:features" json:"features"`
	Version   int               `gorm:"column:version" json:"version"`
	UpdatedAt time.Time         `gorm:"column:updated_at" json:"updated_at"`
}

func (EpisodeFeatureRecord) TableName() string {
	return "episode_features"
}

type ClassifiedFinding struct {
	ID             string            `gorm:"primaryKey;column:id" json:"id"`
	RunID          uuid.UUID         `gorm:"type:uuid;column:run_id;index" json:"run_id"`
	PatientID      string            `gorm:"column:patient_id;index" json:"patient_id"`
	EpisodeID      string            `gorm:"column:episode_id;index" json:"episode_id"`
	SampleDate     *time.Time        `gorm:"column:sample_date" json:"sample_date,omitempty"`
	Species        string            `gorm:"column:species" json:"species"`
	Relevant       bool              `gorm:"column:relevant" json:"relevant"`
	Classification string            `gorm:"column:classification" json:"classification"`
	Polymicrobial  bool              `gorm:"column:polymicrobial" json:"polymicrobial"`
	Payload        datatypes.JSONMap `gorm:"column:payload" json:"payload"`
	CreatedAt      time.Time         `gorm:"column:created_at" json:"created_at"`
}

func (ClassifiedFinding) TableName() string {
	return "classified_findings"
}
