package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg               *prometheus.Registry
	RowsEmitted       prometheus.Counter
	GapsFilled        prometheus.Counter
	DuplicatesDropped prometheus.Counter

	// Import job lifecycle
	JobsSubmitted prometheus.Counter
	JobsReused    prometheus.Counter
	JobsActive    prometheus.Counter
	JobsFailed    prometheus.Counter
	PollRequests  prometheus.Counter
	JobWaitSec    prometheus.Histogram
	LastPollTS    prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	rowsEmitted := prometheus.NewCounter(prometheus.CounterOpts{Name: "tsprep_rows_emitted_total"})
	gapsFilled := prometheus.NewCounter(prometheus.CounterOpts{Name: "tsprep_gaps_filled_total"})
	dupsDropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "tsprep_duplicates_dropped_total"})

	jobsSubmitted := prometheus.NewCounter(prometheus.CounterOpts{Name: "tsprep_jobs_submitted_total"})
	jobsReused := prometheus.NewCounter(prometheus.CounterOpts{Name: "tsprep_jobs_reused_total"})
	jobsActive := prometheus.NewCounter(prometheus.CounterOpts{Name: "tsprep_jobs_active_total"})
	jobsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "tsprep_jobs_failed_total"})
	pollRequests := prometheus.NewCounter(prometheus.CounterOpts{Name: "tsprep_poll_requests_total"})
	jobWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tsprep_job_wait_seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
	lastPoll := prometheus.NewGauge(prometheus.GaugeOpts{Name: "tsprep_last_poll_timestamp_seconds"})

	r.MustRegister(rowsEmitted, gapsFilled, dupsDropped, jobsSubmitted, jobsReused, jobsActive, jobsFailed, pollRequests, jobWait, lastPoll)
	return &Registry{
		reg:               r,
		RowsEmitted:       rowsEmitted,
		GapsFilled:        gapsFilled,
		DuplicatesDropped: dupsDropped,
		JobsSubmitted:     jobsSubmitted,
		JobsReused:        jobsReused,
		JobsActive:        jobsActive,
		JobsFailed:        jobsFailed,
		PollRequests:      pollRequests,
		JobWaitSec:        jobWait,
		LastPollTS:        lastPoll,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
