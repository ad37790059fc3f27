package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsEnqueuedTotal, jobsProcessedTotal, jobsRetriedTotal,
		jobsRetriesExhaustedTotal, jobClaimConflictsTotal,
		generationLatencyMs, sweepBatchSize, updatesAppendedTotal)
}

var jobsEnqueuedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "jobs_enqueued_total",
		Help: "Total number of response jobs enqueued.",
	},
)

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_processed_total",
		Help: "Total number of response jobs processed, labeled by final status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var jobsRetriedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "jobs_retried_total",
		Help: "Total number of failed jobs returned to pending.",
	},
)

var jobsRetriesExhaustedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "jobs_retries_exhausted_total",
		Help: "Total number of jobs that reached the retry limit and stayed failed.",
	},
)

var jobClaimConflictsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "job_claim_conflicts_total",
		Help: "Total number of claim attempts rejected because the job was no longer pending.",
	},
)

var generationLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "generation_latency_ms",
		Help:    "Response generator call latency distribution in milliseconds.",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
	},
	[]string{"success"},
)

var sweepBatchSize = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "sweep_batch_size",
		Help:    "Number of pending jobs claimed per sweep invocation.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
	},
)

var updatesAppendedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "job_updates_appended_total",
		Help: "Streaming updates appended to job logs, labeled by kind.",
	},
	[]string{"kind"},
)

func IncEnqueued()          { jobsEnqueuedTotal.Inc() }
func IncRetried()           { jobsRetriedTotal.Inc() }
func IncRetriesExhausted()  { jobsRetriesExhaustedTotal.Inc() }
func IncClaimConflict()     { jobClaimConflictsTotal.Inc() }
func ObserveSweep(n int)    { sweepBatchSize.Observe(float64(n)) }
func IncUpdate(kind string) { updatesAppendedTotal.WithLabelValues(norm(kind)).Inc() }

func IncJobProcessed(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveGeneration(latencyMs int, success bool) {
	generationLatencyMs.WithLabelValues(strconv.FormatBool(success)).Observe(float64(latencyMs))
}
