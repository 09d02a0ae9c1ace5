// Package artifact stores durable, write-once artifacts (daily extracts,
// reports and completion markers) under slash-separated keys.
package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nyc311-cli/internal/model"
)

// ErrNotFound is returned by Get when no artifact exists under the key.
var ErrNotFound = eris.New("artifact: not found")

// Backend is a key/blob store. Put must publish atomically: a concurrent
// Exists or Get never observes a partially written artifact.
type Backend interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// ExtractKey is the location of one day's raw extract: {kind}/YYYY/MM/DD.csv.
func ExtractKey(kind string, day time.Time) string {
	return fmt.Sprintf("%s/%s.csv", kind, day.Format("2006/01/02"))
}

// ReportKey is the location of a window's report. Start, end and N all take
// part, so windows differing in any of them never share a report.
func ReportKey(kind string, w model.Window) string {
	return fmt.Sprintf("%s/reports/%s/top%d_from_%s.csv",
		kind, w.End.Format("2006/01/02"), w.TopN, w.Start.Format("20060102"))
}

// MarkerKey is the location of a window's completion marker.
func MarkerKey(kind string, w model.Window) string {
	return fmt.Sprintf("%s/_flags/%s_%d_from_%s.flag",
		kind, w.End.Format("2006/01/02"), w.TopN, w.Start.Format("20060102"))
}
