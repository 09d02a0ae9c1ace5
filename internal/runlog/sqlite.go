package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/nyc311-cli/internal/model"
)

// SQLite implements Log using modernc.org/sqlite.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens the database at path, creating its directory, and
// configures WAL mode.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "runlog: mkdir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open sqlite")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	return &SQLite{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS report_runs (
	id           TEXT PRIMARY KEY,
	window_start TEXT NOT NULL,
	window_end   TEXT NOT NULL,
	top_n        INTEGER NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	rows_written INTEGER NOT NULL DEFAULT 0,
	dropped      TEXT,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_report_runs_started_at ON report_runs(started_at);
`

// Migrate creates the run table.
func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "runlog: migrate sqlite")
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Start records a running entry for w and returns its id.
func (s *SQLite) Start(ctx context.Context, w model.Window) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO report_runs (id, window_start, window_end, top_n, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, model.FormatDay(w.Start), model.FormatDay(w.End), w.TopN, StatusRunning, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start %s", w)
	}
	return id, nil
}

// Complete marks a run complete.
func (s *SQLite) Complete(ctx context.Context, id string, sum Summary) error {
	dropped, err := json.Marshal(sum.Dropped)
	if err != nil {
		return eris.Wrap(err, "runlog: marshal dropped days")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE report_runs SET status = ?, completed_at = ?, rows_written = ?, dropped = ? WHERE id = ?`,
		StatusComplete, time.Now().UTC(), sum.Rows, string(dropped), id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete %s", id)
	}
	return checkRowsAffected(res, id)
}

// Skip marks a run skipped because its window was already done.
func (s *SQLite) Skip(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE report_runs SET status = ?, completed_at = ? WHERE id = ?`,
		StatusSkipped, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: skip %s", id)
	}
	return checkRowsAffected(res, id)
}

// Fail marks a run failed with msg.
func (s *SQLite) Fail(ctx context.Context, id string, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE report_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		StatusFailed, time.Now().UTC(), msg, id,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail %s", id)
	}
	return checkRowsAffected(res, id)
}

// List returns up to limit entries, most recent first.
func (s *SQLite) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, window_start, window_end, top_n, status, started_at, completed_at, rows_written, dropped, error
		 FROM report_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var (
			e           Entry
			completedAt sql.NullTime
			dropped     sql.NullString
			errStr      sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Start, &e.End, &e.TopN, &e.Status, &e.StartedAt,
			&completedAt, &e.Rows, &dropped, &errStr); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		if dropped.Valid {
			_ = json.Unmarshal([]byte(dropped.String), &e.Dropped)
		}
		e.Error = errStr.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "runlog: iterate entries")
}

func checkRowsAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "runlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("runlog: run not found: %s", id)
	}
	return nil
}
