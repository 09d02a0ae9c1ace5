package runlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nyc311-cli/internal/model"
)

// Pool is the subset of *pgxpool.Pool used by Postgres. pgxmock pools
// satisfy it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres implements Log on a pgx connection pool.
type Postgres struct {
	pool Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool Pool) *Postgres {
	return &Postgres{pool: pool}
}

// OpenPostgres connects to dsn.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: parse postgres dsn")
	}
	cfg.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "runlog: ping postgres")
	}
	return &Postgres{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS report_runs (
	id           UUID PRIMARY KEY,
	window_start TEXT NOT NULL,
	window_end   TEXT NOT NULL,
	top_n        INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	rows_written BIGINT NOT NULL DEFAULT 0,
	dropped      JSONB,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_report_runs_started_at ON report_runs(started_at DESC);
`

// Migrate creates the run table.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "runlog: migrate postgres")
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Start records a running entry for w and returns its id.
func (p *Postgres) Start(ctx context.Context, w model.Window) (string, error) {
	id := uuid.New().String()
	_, err := p.pool.Exec(ctx,
		`INSERT INTO report_runs (id, window_start, window_end, top_n, status, started_at)
		 VALUES ($1, $2, $3, $4, 'running', now())`,
		id, model.FormatDay(w.Start), model.FormatDay(w.End), w.TopN,
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start %s", w)
	}
	return id, nil
}

// Complete marks a run complete.
func (p *Postgres) Complete(ctx context.Context, id string, sum Summary) error {
	dropped, err := json.Marshal(sum.Dropped)
	if err != nil {
		return eris.Wrap(err, "runlog: marshal dropped days")
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE report_runs
		 SET status = 'complete', completed_at = now(), rows_written = $1, dropped = $2
		 WHERE id = $3`,
		sum.Rows, dropped, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete %s", id)
	}
	return checkTag(tag, id)
}

// Skip marks a run skipped because its window was already done.
func (p *Postgres) Skip(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE report_runs SET status = 'skipped', completed_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: skip %s", id)
	}
	return checkTag(tag, id)
}

// Fail marks a run failed with msg.
func (p *Postgres) Fail(ctx context.Context, id string, msg string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE report_runs SET status = 'failed', completed_at = now(), error = $1 WHERE id = $2`,
		msg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail %s", id)
	}
	return checkTag(tag, id)
}

// List returns up to limit entries, most recent first.
func (p *Postgres) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id::text, window_start, window_end, top_n, status, started_at, completed_at, rows_written, dropped, error
		 FROM report_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			completedAt *time.Time
			dropped     []byte
			errStr      *string
		)
		if err := rows.Scan(&e.ID, &e.Start, &e.End, &e.TopN, &e.Status, &e.StartedAt,
			&completedAt, &e.Rows, &dropped, &errStr); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		e.CompletedAt = completedAt
		if dropped != nil {
			_ = json.Unmarshal(dropped, &e.Dropped)
		}
		if errStr != nil {
			e.Error = *errStr
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "runlog: iterate entries")
}

func checkTag(tag pgconn.CommandTag, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Errorf("runlog: run not found: %s", id)
	}
	return nil
}
