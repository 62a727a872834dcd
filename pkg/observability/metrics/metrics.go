// Package metrics tracks pipeline counters and renders them in Prometheus
// text exposition format.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

var (
	runsCompleted atomic.Int64
	runsFailed    atomic.Int64
	runSecondsSum atomic.Int64

	patientsLastRun    atomic.Int64
	episodesLastRun    atomic.Int64
	findingsLastRun    atomic.Int64
	featureRowsLastRun atomic.Int64

	findingsConsumed   atomic.Int64
	findingsClassified atomic.Int64
	findingsRejected   atomic.Int64
)

func ObserveRun(success bool, duration time.Duration) {
	if success {
		runsCompleted.Add(1)
	} else {
		runsFailed.Add(1)
	}
	runSecondsSum.Add(int64(duration.Seconds()))
}

func ObservePipelineCounts(patients, episodes, findings, featureRows int) {
	patientsLastRun.Store(int64(patients))
	episodesLastRun.Store(int64(episodes))
	findingsLastRun.Store(int64(findings))
	featureRowsLastRun.Store(int64(featureRows))
}

func ObserveFindingConsumed()   { findingsConsumed.Add(1) }
func ObserveFindingClassified() { findingsClassified.Add(1) }
func ObserveFindingRejected()   { findingsRejected.Add(1) }

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP bsi_pipeline_runs_completed_total Number of pipeline runs completed successfully.\n")
	fmt.Fprintf(w, "# TYPE bsi_pipeline_runs_completed_total counter\n")
	fmt.Fprintf(w, "bsi_pipeline_runs_completed_total %d\n", runsCompleted.Load())

	fmt.Fprintf(w, "# HELP bsi_pipeline_runs_failed_total Number of pipeline runs that ended in error.\n")
	fmt.Fprintf(w, "# TYPE bsi_pipeline_runs_failed_total counter\n")
	fmt.Fprintf(w, "bsi_pipeline_runs_failed_total %d\n", runsFailed.Load())

	fmt.Fprintf(w, "# HELP bsi_pipeline_run_seconds_sum Total wall-clock seconds spent in pipeline runs.\n")
	fmt.Fprintf(w, "# TYPE bsi_pipeline_run_seconds_sum counter\n")
	fmt.Fprintf(w, "bsi_pipeline_run_seconds_sum %d\n", runSecondsSum.Load())

	fmt.Fprintf(w, "# HELP bsi_pipeline_patients Number of distinct patients in the latest run.\n")
	fmt.Fprintf(w, "# TYPE bsi_pipeline_patients gauge\n")
	fmt.Fprintf(w, "bsi_pipeline_patients %d\n", patientsLastRun.Load())

	fmt.Fprintf(w, "# HELP bsi_pipeline_episodes Number of episodes segmented in the latest run.\n")
	fmt.Fprintf(w, "# TYPE bsi_pipeline_episodes gauge\n")
	fmt.Fprintf(w, "bsi_pipeline_episodes %d\n", episodesLastRun.Load())

	fmt.Fprintf(w, "# HELP bsi_pipeline_findings Number of findings processed in the latest run.\n")
	fmt.Fprintf(w, "# TYPE bsi_pipeline_findings gauge\n")
	fmt.Fprintf(w, "bsi_pipeline_findings %d\n", findingsLastRun.Load())

	fmt.Fprintf(w, "# HELP bsi_pipeline_feature_rows Number of episode feature rows produced in the latest run.\n")
	fmt.Fprintf(w, "# TYPE bsi_pipeline_feature_rows gauge\n")
	fmt.Fprintf(w, "bsi_pipeline_feature_rows %d\n", featureRowsLastRun.Load())

	fmt.Fprintf(w, "# HELP bsi_worker_findings_consumed_total Number of raw finding events consumed by the worker.\n")
	fmt.Fprintf(w, "# TYPE bsi_worker_findings_consumed_total counter\n")
	fmt.Fprintf(w, "bsi_worker_findings_consumed_total %d\n", findingsConsumed.Load())

	fmt.Fprintf(w, "# HELP bsi_worker_findings_classified_total Number of finding events classified and published.\n")
	fmt.Fprintf(w, "# TYPE bsi_worker_findings_classified_total counter\n")
	fmt.Fprintf(w, "bsi_worker_findings_classified_total %d\n", findingsClassified.Load())

	fmt.Fprintf(w, "# HELP bsi_worker_findings_rejected_total Number of finding events the worker could not process.\n")
	fmt.Fprintf(w, "# TYPE bsi_worker_findings_rejected_total counter\n")
	fmt.Fprintf(w, "bsi_worker_findings_rejected_total %d\n", findingsRejected.Load())
}
