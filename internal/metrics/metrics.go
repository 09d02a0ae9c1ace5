// Package metrics defines the Prometheus collectors shared by collection and
// reporting, and flushes them to a push gateway at the end of batch runs.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rotisserie/eris"
)

// Outcome labels.
const (
	OutcomeFetched  = "fetched"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
	OutcomeComplete = "complete"
)

var (
	PagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nyc311_pages_fetched_total",
		Help: "Socrata pages fetched.",
	})

	RecordsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nyc311_records_fetched_total",
		Help: "Records fetched from Socrata.",
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nyc311_fetch_duration_seconds",
		Help:    "Time to fetch every page of one day.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3.4min
	})

	// Days counts daily collection task outcomes: fetched, skipped, failed.
	Days = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nyc311_days_total",
		Help: "Daily collection task outcomes.",
	}, []string{"outcome"})

	DaysDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nyc311_days_dropped_total",
		Help: "Days left out of a report because their extract was missing or unreadable.",
	})

	// ReportRuns counts range report outcomes: complete, skipped, failed.
	ReportRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nyc311_report_runs_total",
		Help: "Range report task outcomes.",
	}, []string{"outcome"})

	ReportRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nyc311_report_rows",
		Help: "Rows in the most recently written report.",
	})
)

// Push sends every registered metric to a Prometheus push gateway under job.
// An empty url is a no-op.
func Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	err := push.New(url, job).
		Gatherer(prometheus.DefaultGatherer).
		PushContext(ctx)
	if err != nil {
		return eris.Wrapf(err, "metrics: push to %s", url)
	}
	return nil
}
