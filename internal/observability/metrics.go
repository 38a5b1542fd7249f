package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	examplesEncodedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nl2sql_examples_encoded_total",
			Help: "Total number of examples packed and labeled.",
		},
	)
	sequencesTruncatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_sequences_truncated_total",
			Help: "Total number of packed sequences shortened to the length budget, by truncated segment.",
		},
		[]string{"segment"},
	)
	conditionsUnalignedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nl2sql_conditions_unaligned_total",
			Help: "Total number of condition values not found in the tokenized question.",
		},
	)
	conditionsOutOfRangeTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nl2sql_conditions_out_of_range_total",
			Help: "Total number of conditions skipped because their column exceeds the header count.",
		},
	)
	structuralErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_structural_errors_total",
			Help: "Total number of predictions with a mismatch in the given field.",
		},
		[]string{"field"},
	)
	queriesScoredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nl2sql_queries_scored_total",
			Help: "Total number of predicted queries scored.",
		},
	)
	queriesWrongTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nl2sql_queries_wrong_total",
			Help: "Total number of predicted queries with any structural mismatch.",
		},
	)
	executionOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nl2sql_execution_outcomes_total",
			Help: "Total number of execution comparisons by outcome.",
		},
		[]string{"outcome"},
	)
	batchStageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nl2sql_batch_stage_duration_seconds",
			Help:    "Per-batch latency of each pipeline stage.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(
		examplesEncodedTotal,
		sequencesTruncatedTotal,
		conditionsUnalignedTotal,
		conditionsOutOfRangeTotal,
		structuralErrorsTotal,
		queriesScoredTotal,
		queriesWrongTotal,
		executionOutcomesTotal,
		batchStageDurationSeconds,
	)
}

func ObserveEncoded(examples, unaligned, outOfRange int) {
	examplesEncodedTotal.Add(float64(examples))
	if unaligned > 0 {
		conditionsUnalignedTotal.Add(float64(unaligned))
	}
	if outOfRange > 0 {
		conditionsOutOfRangeTotal.Add(float64(outOfRange))
	}
}

func ObserveTruncated(segment string) {
	sequencesTruncatedTotal.WithLabelValues(segment).Inc()
}

func ObserveScored(queries, wrong int) {
	queriesScoredTotal.Add(float64(queries))
	if wrong > 0 {
		queriesWrongTotal.Add(float64(wrong))
	}
}

func ObserveStructuralError(field string, n int) {
	if n > 0 {
		structuralErrorsTotal.WithLabelValues(field).Add(float64(n))
	}
}

func ObserveExecutionOutcome(outcome string) {
	executionOutcomesTotal.WithLabelValues(outcome).Inc()
}

func ObserveStage(stage string, elapsed time.Duration) {
	batchStageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// FlushTextfile writes the default registry in the node exporter textfile
// format. An empty path is a no-op.
func FlushTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
