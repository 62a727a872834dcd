// Package api exposes the pipeline over HTTP: run submission, run inspection
// and cached episode feature reads.
package api

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ErikRydengard/BSI/pkg/common/kafka"
	"github.com/ErikRydengard/BSI/pkg/common/logger"
	"github.com/ErikRydengard/BSI/pkg/common/models"
	"github.com/ErikRydengard/BSI/pkg/dataset"
	"github.com/ErikRydengard/BSI/pkg/microbiology"
	"github.com/ErikRydengard/BSI/pkg/observability/metrics"
	"github.com/ErikRydengard/BSI/pkg/pipeline"
	"github.com/ErikRydengard/BSI/pkg/storage"
)

type Service struct {
	repo     *storage.Repository
	features *storage.FeatureStore
	producer *kafka.Producer
	defaults pipeline.Options
}

// NewService wires the pipeline behind its persistence. producer may be nil
// when no broker is configured; completed runs are then simply not announced.
func NewService(repo *storage.Repository, features *storage.FeatureStore, producer *kafka.Producer, defaults pipeline.Options) *Service {
	return &Service{repo: repo, features: features, producer: producer, defaults: defaults}
}

// RunPipeline executes one batch over the submitted tables and persists the
// derived findings and feature rows under a new run id.
func (s *Service) RunPipeline(ctx context.Context, req models.PipelineRunRequest) (models.PipelineRunSummary, error) {
	started := time.Now()

	opts := s.defaults
	if req.RelevanceMethod != "" {
		opts.RelevanceMethod = microbiology.RelevanceMethod(req.RelevanceMethod)
	}
	if req.EpisodeGapDays > 0 {
		opts.GapDays = req.EpisodeGapDays
	}

	run := &storage.PipelineRun{
		RequestedBy: req.RequestedBy,
		Params: datatypes.JSONMap{
			"relevance_method": string(opts.RelevanceMethod),
			"episode_gap_days": opts.GapDays,
		},
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return models.PipelineRunSummary{}, fmt.Errorf("create run: %w", err)
	}

	result, err := pipeline.Run(req, opts)
	if err != nil {
		run.Status = storage.RunStatusFailed
		run.Error = err.Error()
		if saveErr := s.repo.CompleteRun(ctx, run); saveErr != nil {
			logger.Log.WithError(saveErr).Error("Failed to record failed run")
		}
		metrics.ObserveRun(false, time.Since(started))
		return s.summary(run, started), err
	}

	if err := s.persist(ctx, run, result); err != nil {
		run.Status = storage.RunStatusFailed
		run.Error = err.Error()
		if saveErr := s.repo.CompleteRun(ctx, run); saveErr != nil {
			logger.Log.WithError(saveErr).Error("Failed to record failed run")
		}
		metrics.ObserveRun(false, time.Since(started))
		return s.summary(run, started), err
	}

	run.Status = storage.RunStatusCompleted
	run.Patients = result.Patients
	run.Episodes = result.Episodes
	run.Findings = len(result.Findings)
	run.FeatureRows = len(result.Features)
	if err := s.repo.CompleteRun(ctx, run); err != nil {
		return models.PipelineRunSummary{}, fmt.Errorf("complete run: %w", err)
	}
	metrics.ObserveRun(true, time.Since(started))
	metrics.ObservePipelineCounts(result.Patients, result.Episodes, len(result.Findings), len(result.Features))

	if s.producer != nil {
		if err := s.producer.PublishEvent(ctx, "pipeline.completed", "episode-service", map[string]interface{}{
			"run_id":   run.ID.String(),
			"episodes": result.Episodes,
			"findings": len(result.Findings),
		}); err != nil {
			logger.Log.WithError(err).Warn("Failed to announce completed run")
		}
	}

	return s.summary(run, started), nil
}

func (s *Service) persist(ctx context.Context, run *storage.PipelineRun, result pipeline.Result) error {
	findings := make([]storage.ClassifiedFinding, 0, len(result.Findings))
	for _, row := range result.Findings {
		finding := storage.ClassifiedFinding{
			RunID:         run.ID,
			Relevant:      dataset.Bool(row, "relevant"),
			Polymicrobial: dataset.Bool(row, "polymicrobial"),
			Payload:       datatypes.JSONMap(jsonSafe(row)),
		}
		finding.PatientID, _ = dataset.String(row, "patient_id")
		finding.EpisodeID, _ = dataset.String(row, "episode_id")
		finding.Species, _ = dataset.String(row, "species")
		finding.Classification, _ = dataset.String(row, "mono_poly_contamination")
		if sample, ok := dataset.ParseDate(row["sample_date"]); ok {
			finding.SampleDate = &sample
		}
		findings = append(findings, finding)
	}
	if err := s.repo.SaveFindings(ctx, findings); err != nil {
		return fmt.Errorf("save findings: %w", err)
	}

	records := make([]storage.EpisodeFeatureRecord, 0, len(result.Features))
	for _, set := range result.Features {
		record := storage.EpisodeFeatureRecord{
			EpisodeID: set.EpisodeID,
			RunID:     run.ID,
			PatientID: set.PatientID,
			Features:  datatypes.JSONMap(jsonSafe(set.Features)),
			Version:   set.Version,
		}
		if !set.Baseline.IsZero() {
			baseline := set.Baseline
			record.Baseline = &baseline
		}
		records = append(records, record)
	}
	if err := s.repo.SaveEpisodeFeatures(ctx, records); err != nil {
		return fmt.Errorf("save episode features: %w", err)
	}

	for _, set := range result.Features {
		if err := s.features.Put(ctx, set); err != nil {
			logger.Log.WithError(err).WithField("episode_id", set.EpisodeID).Warn("Failed to cache feature set")
		}
	}
	return nil
}

func (s *Service) summary(run *storage.PipelineRun, started time.Time) models.PipelineRunSummary {
	summary := models.PipelineRunSummary{
		RunID:         run.ID,
		Status:        run.Status,
		Patients:      run.Patients,
		Episodes:      run.Episodes,
		Findings:      run.Findings,
		FeatureRows:   run.FeatureRows,
		ErrorMessage:  run.Error,
		StartedAt:     run.StartedAt,
		QueryDuration: time.Since(started).Seconds(),
	}
	if run.CompletedAt != nil {
		summary.CompletedAt = *run.CompletedAt
	}
	return summary
}

// GetEpisodeFeatures reads the cache first and falls back to Postgres,
// refilling the cache on a miss.
func (s *Service) GetEpisodeFeatures(ctx context.Context, episodeID string) (models.EpisodeFeatureSet, error) {
	set, err := s.features.Get(ctx, episodeID)
	if err == nil {
		return set, nil
	}
	if err != storage.ErrFeatureSetNotCached {
		logger.Log.WithError(err).Warn("Feature cache read failed, falling back to Postgres")
	}

	record, err := s.repo.GetEpisodeFeatures(ctx, episodeID)
	if err != nil {
		return models.EpisodeFeatureSet{}, err
	}

	set = models.EpisodeFeatureSet{
		EpisodeID: record.EpisodeID,
		PatientID: record.PatientID,
		Features:  record.Features,
		Version:   record.Version,
	}
	if record.Baseline != nil {
		set.Baseline = *record.Baseline
	}
	if err := s.features.Put(ctx, set); err != nil {
		logger.Log.WithError(err).Debug("Feature cache refill failed")
	}
	return set, nil
}

func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (storage.PipelineRun, error) {
	return s.repo.GetRun(ctx, id)
}

func (s *Service) ListRuns(ctx context.Context, limit int) ([]storage.PipelineRun, error) {
	return s.repo.ListRuns(ctx, limit)
}

func (s *Service) ListEpisodeFindings(ctx context.Context, episodeID string) ([]storage.ClassifiedFinding, error) {
	return s.repo.ListFindingsByEpisode(ctx, episodeID)
}

// jsonSafe rewrites values the JSON column type cannot hold, such as
// time.Duration, into plain representations.
func jsonSafe(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case time.Duration:
			out[k] = t.String()
		case time.Time:
			out[k] = t.Format(time.RFC3339)
		default:
			out[k] = v
		}
	}
	return out
}
