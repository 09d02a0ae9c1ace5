package model

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// DateLayout is the canonical day format used in keys, rows and flags.
const DateLayout = "2006-01-02"

// Bounds on the top-N size of a report.
const (
	MinTopN = 1
	MaxTopN = 100
)

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a Day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "model: parse day %q", s)
	}
	return t, nil
}

// FormatDay renders a day as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(DateLayout)
}

// Window is the parameter set of a range report: the inclusive day range
// [Start, End] and the top-N size.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	TopN  int       `json:"top_n"`
}

// NewWindow builds a Window with both bounds truncated to calendar days.
func NewWindow(start, end time.Time, topN int) Window {
	return Window{Start: Day(start), End: Day(end), TopN: topN}
}

// Validate rejects windows that no run can be launched for.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return eris.New("model: window start and end are required")
	}
	if w.End.Before(w.Start) {
		return eris.Errorf("model: window end %s is before start %s", FormatDay(w.End), FormatDay(w.Start))
	}
	if w.TopN < MinTopN || w.TopN > MaxTopN {
		return eris.Errorf("model: top-N must be between %d and %d, got %d", MinTopN, MaxTopN, w.TopN)
	}
	return nil
}

// Days enumerates every calendar day in the window, oldest first.
func (w Window) Days() []time.Time {
	start, end := Day(w.Start), Day(w.End)
	if end.Before(start) {
		return nil
	}
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// String renders the window for logs.
func (w Window) String() string {
	return fmt.Sprintf("%s..%s/top%d", FormatDay(w.Start), FormatDay(w.End), w.TopN)
}
