// Package runlog records the history of range report runs.
package runlog

import (
	"context"
	"time"

	"github.com/sells-group/nyc311-cli/internal/model"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusSkipped  = "skipped"
	StatusFailed   = "failed"
)

// Entry is one recorded report run.
type Entry struct {
	ID          string     `json:"id" yaml:"id"`
	Start       string     `json:"start" yaml:"start"`
	End         string     `json:"end" yaml:"end"`
	TopN        int        `json:"top_n" yaml:"top_n"`
	Status      string     `json:"status" yaml:"status"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Rows        int64      `json:"rows" yaml:"rows"`
	Dropped     []string   `json:"dropped,omitempty" yaml:"dropped,omitempty"`
	Error       string     `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary is the outcome of a completed run, passed to Complete.
type Summary struct {
	Rows    int64    `json:"rows"`
	Dropped []string `json:"dropped,omitempty"`
}

// Log persists run history.
type Log interface {
	Migrate(ctx context.Context) error
	Start(ctx context.Context, w model.Window) (string, error)
	Complete(ctx context.Context, id string, s Summary) error
	Skip(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, msg string) error
	List(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// Nop is a Log that records nothing.
type Nop struct{}

func (Nop) Migrate(context.Context) error                       { return nil }
func (Nop) Start(context.Context, model.Window) (string, error) { return "", nil }
func (Nop) Complete(context.Context, string, Summary) error     { return nil }
func (Nop) Skip(context.Context, string) error                  { return nil }
func (Nop) Fail(context.Context, string, string) error          { return nil }
func (Nop) List(context.Context, int) ([]Entry, error)          { return nil, nil }
func (Nop) Close() error                                        { return nil }
