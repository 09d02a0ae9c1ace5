package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/nyc311-cli/internal/artifact"
	"github.com/sells-group/nyc311-cli/internal/collect"
	"github.com/sells-group/nyc311-cli/internal/config"
	"github.com/sells-group/nyc311-cli/internal/extract"
	"github.com/sells-group/nyc311-cli/internal/fetcher"
	"github.com/sells-group/nyc311-cli/internal/metrics"
	"github.com/sells-group/nyc311-cli/internal/model"
	"github.com/sells-group/nyc311-cli/internal/report"
	"github.com/sells-group/nyc311-cli/internal/runlog"
	"github.com/sells-group/nyc311-cli/internal/socrata"
)

// appEnv holds the wired components shared by every command.
type appEnv struct {
	Extracts  *extract.Store
	Collector *collect.Collector
	Reports   *report.Store
	Runs      runlog.Log
	Task      *report.Task
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Runs != nil {
		_ = e.Runs.Close()
	}
}

// initEnv builds the Socrata client, artifact stores, run log and report
// task from cfg. Callers should defer env.Close().
func initEnv(ctx context.Context, c *config.Config) (*appEnv, error) {
	backend, err := initBackend(ctx, c.Store)
	if err != nil {
		return nil, err
	}

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   c.Socrata.UserAgent,
		Timeout:     time.Duration(c.Socrata.TimeoutSecs) * time.Second,
		MaxRetries:  c.Socrata.MaxRetries,
		RatePerHost: rate.Limit(c.Socrata.RateLimit),
	})
	client := socrata.NewClient(f, socrata.Options{
		BaseURL:   c.Socrata.BaseURL,
		AppToken:  c.Socrata.AppToken,
		TimeField: c.Socrata.TimeField,
		PageSize:  c.Socrata.PageSize,
	})
	if c.Socrata.AppToken == "" {
		zap.L().Warn("no socrata app token configured, requests are unauthenticated and throttled")
	}

	runs, err := runlog.Open(ctx, c.RunLog.Driver, c.RunLog.DSN)
	if err != nil {
		return nil, eris.Wrap(err, "open run log")
	}

	extracts := extract.NewStore(backend, c.Store.Kind)
	collector := collect.NewCollector(collect.NewTask(client, extracts, c.Socrata.Resource), c.Collect.Concurrency)
	reports := report.NewStore(backend, c.Store.Kind)

	return &appEnv{
		Extracts:  extracts,
		Collector: collector,
		Reports:   reports,
		Runs:      runs,
		Task:      report.NewTask(collector, extracts, reports, report.WithRunLog(runs)),
	}, nil
}

func initBackend(ctx context.Context, s config.StoreConfig) (artifact.Backend, error) {
	switch s.Driver {
	case "fs":
		return artifact.NewFS(s.Root), nil
	case "minio":
		return artifact.OpenMinIO(ctx, artifact.MinIOOptions{
			Endpoint:  s.MinIO.Endpoint,
			AccessKey: s.MinIO.AccessKey,
			SecretKey: s.MinIO.SecretKey,
			Bucket:    s.MinIO.Bucket,
			UseSSL:    s.MinIO.UseSSL,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", s.Driver)
	}
}

// parseDay parses a YYYY-MM-DD flag value, returning def when s is empty.
func parseDay(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return model.Day(def), nil
	}
	return model.ParseDay(s)
}

// pushMetrics flushes metrics to the configured push gateway, if any.
func pushMetrics(ctx context.Context) {
	if err := metrics.Push(context.WithoutCancel(ctx), cfg.Metrics.PushgatewayURL, cfg.Metrics.Job); err != nil {
		zap.L().Warn("metrics push failed", zap.Error(err))
	}
}
