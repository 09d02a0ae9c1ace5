package collect

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/nyc311-cli/internal/model"
)

// Runner collects one day.
type Runner interface {
	Run(ctx context.Context, day time.Time) (Outcome, error)
}

// Collector runs one collection per day with bounded concurrency.
type Collector struct {
	runner      Runner
	concurrency int
}

// NewCollector creates a Collector. Concurrency below 1 means sequential.
func NewCollector(r Runner, concurrency int) *Collector {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Collector{runner: r, concurrency: concurrency}
}

// Collect ensures every day is collected. A failing day does not stop the
// others; all failures are returned together once every day has finished.
func (c *Collector) Collect(ctx context.Context, days []time.Time) error {
	log := zap.L().With(zap.String("component", "collect"))

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	var (
		mu                       sync.Mutex
		errs                     error
		fetched, skipped, failed atomic.Int64
	)

	for _, day := range days {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				failed.Add(1)
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
				return nil
			}

			outcome, err := c.runner.Run(ctx, day)
			if err != nil {
				failed.Add(1)
				log.Error("day failed", zap.String("day", model.FormatDay(day)), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
				return nil
			}
			if outcome == Skipped {
				skipped.Add(1)
			} else {
				fetched.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Info("collection complete",
		zap.Int("days", len(days)),
		zap.Int64("fetched", fetched.Load()),
		zap.Int64("skipped", skipped.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return errs
}
