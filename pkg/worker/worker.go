// Package worker consumes raw finding events from the bus, classifies them in
// small batches and publishes the classified results.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/ErikRydengard/BSI/pkg/common/kafka"
	"github.com/ErikRydengard/BSI/pkg/common/logger"
	"github.com/ErikRydengard/BSI/pkg/common/models"
	"github.com/ErikRydengard/BSI/pkg/dataset"
	"github.com/ErikRydengard/BSI/pkg/microbiology"
	"github.com/ErikRydengard/BSI/pkg/observability/metrics"
	"github.com/ErikRydengard/BSI/pkg/storage"
)

type Worker struct {
	consumer *kafka.Consumer
	producer *kafka.Producer
	repo     *storage.Repository

	method  microbiology.RelevanceMethod
	catalog microbiology.Catalog
	window  time.Duration

	mu      sync.Mutex
	batches map[string][]dataset.Row
	since   map[string]time.Time
}

func New(consumer *kafka.Consumer, producer *kafka.Producer, repo *storage.Repository, method microbiology.RelevanceMethod, catalog microbiology.Catalog, window time.Duration) *Worker {
	if method == "" {
		method = microbiology.MethodBottle
	}
	if len(catalog.Species) == 0 {
		catalog = microbiology.DefaultCatalog()
	}
	if window <= 0 {
		window = 5 * time.Second
	}
	return &Worker{
		consumer: consumer,
		producer: producer,
		repo:     repo,
		method:   method,
		catalog:  catalog,
		window:   window,
		batches:  make(map[string][]dataset.Row),
		since:    make(map[string]time.Time),
	}
}

// Run consumes until the context is cancelled. Events are buffered per run id
// so one sample date's findings are classified together, then flushed once
// the batch window has passed.
func (w *Worker) Run(ctx context.Context) error {
	flushDone := make(chan struct{})
	go func() {
		defer close(flushDone)
		ticker := time.NewTicker(w.window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				w.flushAll(context.Background())
				return
			case <-ticker.C:
				w.flushExpired(ctx)
			}
		}
	}()

	err := w.consumer.Consume(ctx, w.handleEvent)
	<-flushDone
	return err
}

func (w *Worker) handleEvent(ctx context.Context, event models.Event) error {
	metrics.ObserveFindingConsumed()

	if event.Data == nil {
		metrics.ObserveFindingRejected()
		logger.Log.WithField("event_id", event.ID).Warn("Finding event without payload")
		return nil
	}

	runID := event.Metadata["run_id"]
	if runID == "" {
		runID = uuid.Nil.String()
	}

	w.mu.Lock()
	if _, exists := w.batches[runID]; !exists {
		w.since[runID] = time.Now()
	}
	w.batches[runID] = append(w.batches[runID], dataset.CloneRow(dataset.Row(event.Data)))
	w.mu.Unlock()
	return nil
}

func (w *Worker) flushExpired(ctx context.Context) {
	w.mu.Lock()
	var expired []string
	for runID, started := range w.since {
		if time.Since(started) >= w.window {
			expired = append(expired, runID)
		}
	}
	batches := make(map[string][]dataset.Row, len(expired))
	for _, runID := range expired {
		batches[runID] = w.batches[runID]
		delete(w.batches, runID)
		delete(w.since, runID)
	}
	w.mu.Unlock()

	for runID, rows := range batches {
		w.classifyBatch(ctx, runID, rows)
	}
}

func (w *Worker) flushAll(ctx context.Context) {
	w.mu.Lock()
	batches := w.batches
	w.batches = make(map[string][]dataset.Row)
	w.since = make(map[string]time.Time)
	w.mu.Unlock()

	for runID, rows := range batches {
		w.classifyBatch(ctx, runID, rows)
	}
}

func (w *Worker) classifyBatch(ctx context.Context, runID string, rows []dataset.Row) {
	flagged := microbiology.FlagContaminants(rows, "", w.catalog)
	classified, err := microbiology.Classify(flagged, microbiology.ClassifyOptions{Method: w.method})
	if err != nil {
		metrics.ObserveFindingRejected()
		logger.Log.WithError(err).WithField("run_id", runID).Error("Failed to classify finding batch")
		return
	}

	parsedRunID, err := uuid.Parse(runID)
	if err != nil {
		parsedRunID = uuid.Nil
	}

	findings := make([]storage.ClassifiedFinding, 0, len(classified))
	for _, row := range classified {
		finding := storage.ClassifiedFinding{
			RunID:         parsedRunID,
			Relevant:      dataset.Bool(row, "relevant"),
			Polymicrobial: dataset.Bool(row, "polymicrobial"),
			Payload:       datatypes.JSONMap(row),
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

	if err := w.repo.SaveFindings(ctx, findings); err != nil {
		logger.Log.WithError(err).WithField("run_id", runID).Error("Failed to persist classified findings")
		return
	}

	for _, row := range classified {
		if err := w.producer.PublishEvent(ctx, "finding.classified", "finding-worker", row); err != nil {
			logger.Log.WithError(err).Warn("Failed to publish classified finding")
			continue
		}
		metrics.ObserveFindingClassified()
	}

	logger.Log.WithFields(map[string]interface{}{
		"run_id":   runID,
		"findings": len(classified),
	}).Info("Finding batch classified")
}
