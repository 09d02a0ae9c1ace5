// Package collect fetches and persists daily extracts, at most once per day.
package collect

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/nyc311-cli/internal/metrics"
	"github.com/sells-group/nyc311-cli/internal/model"
)

// Outcome is the terminal state of a successful collection.
type Outcome int

const (
	// Fetched means the day was retrieved upstream and written.
	Fetched Outcome = iota
	// Skipped means the extract already existed and nothing was fetched.
	Skipped
)

func (o Outcome) String() string {
	if o == Skipped {
		return metrics.OutcomeSkipped
	}
	return metrics.OutcomeFetched
}

// DayFetcher retrieves every record of a resource for one day.
type DayFetcher interface {
	FetchDay(ctx context.Context, resource string, day time.Time) ([]model.Record, error)
}

// ExtractStore is where collected days are persisted.
type ExtractStore interface {
	Exists(ctx context.Context, day time.Time) (bool, error)
	Write(ctx context.Context, day time.Time, records []model.Record) error
}

// Task collects single days. Concurrent Runs for the same day share one
// fetch.
type Task struct {
	fetcher  DayFetcher
	store    ExtractStore
	resource string
	group    singleflight.Group
}

// NewTask creates a Task collecting resource into store.
func NewTask(f DayFetcher, store ExtractStore, resource string) *Task {
	return &Task{fetcher: f, store: store, resource: resource}
}

// Run ensures day's extract exists. An existing extract is left untouched;
// otherwise the day is fetched and written, even when it has no records.
// Fetch errors are returned as-is and nothing is persisted.
func (t *Task) Run(ctx context.Context, day time.Time) (Outcome, error) {
	day = model.Day(day)
	v, err, _ := t.group.Do(model.FormatDay(day), func() (any, error) {
		return t.run(ctx, day)
	})
	if err != nil {
		return Fetched, err
	}
	return v.(Outcome), nil
}

func (t *Task) run(ctx context.Context, day time.Time) (Outcome, error) {
	log := zap.L().With(zap.String("component", "collect"), zap.String("day", model.FormatDay(day)))

	exists, err := t.store.Exists(ctx, day)
	if err != nil {
		metrics.Days.WithLabelValues(metrics.OutcomeFailed).Inc()
		return Fetched, eris.Wrapf(err, "collect: check %s", model.FormatDay(day))
	}
	if exists {
		log.Debug("extract exists, skipping")
		metrics.Days.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return Skipped, nil
	}

	records, err := t.fetcher.FetchDay(ctx, t.resource, day)
	if err != nil {
		metrics.Days.WithLabelValues(metrics.OutcomeFailed).Inc()
		return Fetched, eris.Wrapf(err, "collect: fetch %s", model.FormatDay(day))
	}
	if err := t.store.Write(ctx, day, records); err != nil {
		metrics.Days.WithLabelValues(metrics.OutcomeFailed).Inc()
		return Fetched, eris.Wrapf(err, "collect: write %s", model.FormatDay(day))
	}

	metrics.Days.WithLabelValues(metrics.OutcomeFetched).Inc()
	log.Info("day collected", zap.Int("rows", len(records)))
	return Fetched, nil
}
