// Package storage persists pipeline runs, classified findings and episode
// feature rows to Postgres, and serves hot feature sets from Redis.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&PipelineRun{}, &EpisodeFeatureRecord{}, &ClassifiedFinding{})
}

func (r *Repository) CreateRun(ctx context.Context, run *PipelineRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.StartedAt = time.Now().UTC()
	run.Status = RunStatusRunning
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *Repository) CompleteRun(ctx context.Context, run *PipelineRun) error {
	now := time.Now().UTC()
	run.CompletedAt = &now
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (PipelineRun, error) {
	var run PipelineRun
	err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error
	return run, err
}

func (r *Repository) ListRuns(ctx context.Context, limit int) ([]PipelineRun, error) {
	var runs []PipelineRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

// SaveEpisodeFeatures upserts the feature rows of a run; re-running a
// pipeline over the same cohort replaces the episode rows in place.
func (r *Repository) SaveEpisodeFeatures(ctx context.Context, records []EpisodeFeatureRecord) error {
	if len(records) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range records {
		records[i].UpdatedAt = now
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "episode_id"}},
			UpdateAll: true,
		}).
		Create(&records).Error
}

func (r *Repository) GetEpisodeFeatures(ctx context.Context, episodeID string) (EpisodeFeatureRecord, error) {
	var record EpisodeFeatureRecord
	err := r.db.WithContext(ctx).First(&record, "episode_id = ?", episodeID).Error
	return record, err
}

func (r *Repository) ListEpisodeFeaturesByPatient(ctx context.Context, patientID string) ([]EpisodeFeatureRecord, error) {
	var records []EpisodeFeatureRecord
	err := r.db.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("episode_id").
		Find(&records).Error
	return records, err
}

func (r *Repository) SaveFindings(ctx context.Context, findings []ClassifiedFinding) error {
	if len(findings) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range findings {
		if findings[i].ID == "" {
			findings[i].ID = uuid.NewString()
		}
		findings[i].CreatedAt = now
	}
	return r.db.WithContext(ctx).CreateInBatches(&findings, 500).Error
}

func (r *Repository) ListFindingsByEpisode(ctx context.Context, episodeID string) ([]ClassifiedFinding, error) {
	var findings []ClassifiedFinding
	err := r.db.WithContext(ctx).
		Where("episode_id = ?", episodeID).
		Order("sample_date").
		Find(&findings).Error
	return findings, err
}
