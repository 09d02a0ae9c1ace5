package report

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nyc311-cli/internal/aggregate"
	"github.com/sells-group/nyc311-cli/internal/artifact"
	"github.com/sells-group/nyc311-cli/internal/extract"
	"github.com/sells-group/nyc311-cli/internal/metrics"
	"github.com/sells-group/nyc311-cli/internal/model"
	"github.com/sells-group/nyc311-cli/internal/runlog"
)

// Collector ensures the extracts for a set of days exist.
type Collector interface {
	Collect(ctx context.Context, days []time.Time) error
}

// ExtractReader loads one day's extract.
type ExtractReader interface {
	Read(ctx context.Context, day time.Time) ([]model.Record, error)
}

// AnalyzeFunc turns one day's records into report rows.
type AnalyzeFunc func(records []model.Record, day time.Time, topN int) []model.StatRow

// Result describes one report run.
type Result struct {
	Window    model.Window    `json:"window"`
	RunID     string          `json:"run_id,omitempty"`
	Skipped   bool            `json:"skipped"`
	ReportKey string          `json:"report_key"`
	Rows      []model.StatRow `json:"rows,omitempty"`
	Dropped   []string        `json:"dropped,omitempty"`
}

// Task runs range reports. A window whose marker exists is never
// recomputed.
type Task struct {
	collector Collector
	extracts  ExtractReader
	store     *Store
	runs      runlog.Log
	analyze   AnalyzeFunc
	now       func() time.Time
}

// Option configures a Task.
type Option func(*Task)

// WithRunLog records every run in l.
func WithRunLog(l runlog.Log) Option {
	return func(t *Task) { t.runs = l }
}

// WithAnalyzer replaces aggregate.Analyze.
func WithAnalyzer(fn AnalyzeFunc) Option {
	return func(t *Task) { t.analyze = fn }
}

// NewTask creates a Task.
func NewTask(c Collector, extracts ExtractReader, store *Store, opts ...Option) *Task {
	t := &Task{
		collector: c,
		extracts:  extracts,
		store:     store,
		runs:      runlog.Nop{},
		analyze:   aggregate.Analyze,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run produces w's report. An invalid window is rejected before anything
// runs. If w is already done the run is skipped without fetching or
// aggregating. Otherwise every day is collected first; any day that cannot
// be collected fails the run. Days whose extract is missing or unreadable
// are left out of the report. The marker is written only after the report.
func (t *Task) Run(ctx context.Context, w model.Window) (*Result, error) {
	if err := w.Validate(); err != nil {
		return nil, eris.Wrap(err, "report: invalid window")
	}
	w = model.NewWindow(w.Start, w.End, w.TopN)

	log := zap.L().With(zap.String("component", "report"), zap.Stringer("window", w))

	runID, err := t.runs.Start(ctx, w)
	if err != nil {
		return nil, eris.Wrap(err, "report: start run log")
	}

	done, err := t.store.Done(ctx, w)
	if err != nil {
		t.fail(ctx, runID, err)
		return nil, err
	}
	if done {
		log.Info("window already done, skipping")
		metrics.ReportRuns.WithLabelValues(metrics.OutcomeSkipped).Inc()
		if err := t.runs.Skip(ctx, runID); err != nil {
			log.Warn("failed to record skipped run", zap.Error(err))
		}
		return &Result{Window: w, RunID: runID, Skipped: true, ReportKey: t.store.ReportKey(w)}, nil
	}

	start := time.Now()
	res, err := t.run(ctx, w, runID)
	if err != nil {
		t.fail(ctx, runID, err)
		return nil, err
	}

	metrics.ReportRuns.WithLabelValues(metrics.OutcomeComplete).Inc()
	metrics.ReportRows.Set(float64(len(res.Rows)))
	if err := t.runs.Complete(ctx, runID, runlog.Summary{Rows: int64(len(res.Rows)), Dropped: res.Dropped}); err != nil {
		log.Warn("failed to record completed run", zap.Error(err))
	}
	log.Info("report complete",
		zap.Int("rows", len(res.Rows)),
		zap.Int("dropped", len(res.Dropped)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

func (t *Task) run(ctx context.Context, w model.Window, runID string) (*Result, error) {
	log := zap.L().With(zap.String("component", "report"), zap.Stringer("window", w))
	days := w.Days()

	if err := t.collector.Collect(ctx, days); err != nil {
		return nil, eris.Wrap(err, "report: collect days")
	}

	res := &Result{Window: w, RunID: runID, ReportKey: t.store.ReportKey(w), Rows: []model.StatRow{}}
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "report: aggregate")
		}

		records, err := t.extracts.Read(ctx, day)
		if err != nil {
			if errors.Is(err, artifact.ErrNotFound) || errors.Is(err, extract.ErrMalformed) {
				log.Warn("dropping day from report", zap.String("day", model.FormatDay(day)), zap.Error(err))
				metrics.DaysDropped.Inc()
				res.Dropped = append(res.Dropped, model.FormatDay(day))
				continue
			}
			return nil, eris.Wrapf(err, "report: load %s", model.FormatDay(day))
		}
		res.Rows = append(res.Rows, t.analyze(records, day, w.TopN)...)
	}

	if err := t.store.WriteReport(ctx, w, res.Rows); err != nil {
		return nil, err
	}
	marker := Marker{
		RunID:       runID,
		Start:       model.FormatDay(w.Start),
		End:         model.FormatDay(w.End),
		TopN:        w.TopN,
		Rows:        len(res.Rows),
		Dropped:     res.Dropped,
		CompletedAt: t.now().UTC(),
	}
	if err := t.store.MarkDone(ctx, w, marker); err != nil {
		return nil, err
	}
	return res, nil
}

func (t *Task) fail(ctx context.Context, runID string, err error) {
	metrics.ReportRuns.WithLabelValues(metrics.OutcomeFailed).Inc()
	// The run context may already be cancelled; record the failure regardless.
	if ferr := t.runs.Fail(context.WithoutCancel(ctx), runID, err.Error()); ferr != nil {
		zap.L().Warn("failed to record failed run", zap.String("component", "report"), zap.Error(ferr))
	}
}
