// Package report builds rolling top-N reports over a window of daily
// extracts and tracks which windows are done.
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/nyc311-cli/internal/artifact"
	"github.com/sells-group/nyc311-cli/internal/model"
)

// ErrBadMarker is returned by Store.Marker when a marker payload cannot be decoded.
var ErrBadMarker = eris.New("report: unreadable marker")

// Marker is the completion marker payload. Only its existence matters for
// the done check; the fields are informational.
type Marker struct {
	RunID       string    `json:"run_id,omitempty"`
	Start       string    `json:"start"`
	End         string    `json:"end"`
	TopN        int       `json:"top_n"`
	Rows        int       `json:"rows"`
	Dropped     []string  `json:"dropped,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Store persists reports and completion markers.
type Store struct {
	backend artifact.Backend
	kind    string
}

// NewStore creates a Store for the given dataset kind.
func NewStore(backend artifact.Backend, kind string) *Store {
	return &Store{backend: backend, kind: kind}
}

// ReportKey returns the artifact key of w's report.
func (s *Store) ReportKey(w model.Window) string {
	return artifact.ReportKey(s.kind, w)
}

// MarkerKey returns the artifact key of w's completion marker.
func (s *Store) MarkerKey(w model.Window) string {
	return artifact.MarkerKey(s.kind, w)
}

// Done reports whether w's completion marker exists.
func (s *Store) Done(ctx context.Context, w model.Window) (bool, error) {
	ok, err := s.backend.Exists(ctx, s.MarkerKey(w))
	if err != nil {
		return false, eris.Wrapf(err, "report: check marker %s", w)
	}
	return ok, nil
}

// WriteReport writes rows as w's report, replacing any previous one.
func (s *Store) WriteReport(ctx context.Context, w model.Window, rows []model.StatRow) error {
	data, err := EncodeRows(rows)
	if err != nil {
		return eris.Wrapf(err, "report: encode %s", w)
	}
	if err := s.backend.Put(ctx, s.ReportKey(w), data); err != nil {
		return eris.Wrapf(err, "report: write %s", w)
	}
	return nil
}

// ReadReport loads w's report. It fails with artifact.ErrNotFound when no
// report was written.
func (s *Store) ReadReport(ctx context.Context, w model.Window) ([]model.StatRow, error) {
	data, err := s.backend.Get(ctx, s.ReportKey(w))
	if err != nil {
		return nil, eris.Wrapf(err, "report: read %s", w)
	}
	rows, err := DecodeRows(data)
	if err != nil {
		return nil, eris.Wrapf(err, "report: decode %s", w)
	}
	return rows, nil
}

// MarkDone writes w's completion marker.
func (s *Store) MarkDone(ctx context.Context, w model.Window, m Marker) error {
	data, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "report: marshal marker")
	}
	if err := s.backend.Put(ctx, s.MarkerKey(w), data); err != nil {
		return eris.Wrapf(err, "report: mark done %s", w)
	}
	return nil
}

// Marker reads w's completion marker. An empty marker yields an empty Marker;
// a payload that is not a marker fails with ErrBadMarker. Either way the
// window still counts as done.
func (s *Store) Marker(ctx context.Context, w model.Window) (*Marker, error) {
	data, err := s.backend.Get(ctx, s.MarkerKey(w))
	if err != nil {
		return nil, eris.Wrapf(err, "report: read marker %s", w)
	}
	var m Marker
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, eris.Wrapf(ErrBadMarker, "%s: %v", w, err)
		}
	}
	return &m, nil
}

// EncodeRows renders rows as CSV with a date,boro,metric,value header. The
// header is written even when rows is empty.
func EncodeRows(rows []model.StatRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	enc := csvutil.NewEncoder(w)
	if err := enc.EncodeHeader(model.StatRow{}); err != nil {
		return nil, err
	}
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeRows parses a report written by EncodeRows.
func DecodeRows(data []byte) ([]model.StatRow, error) {
	rows := []model.StatRow{}
	dec, err := csvutil.NewDecoder(csv.NewReader(bytes.NewReader(data)))
	if err != nil {
		if err == io.EOF {
			return rows, nil
		}
		return nil, err
	}
	for {
		var r model.StatRow
		if err := dec.Decode(&r); err != nil {
			if err == io.EOF {
				return rows, nil
			}
			return nil, err
		}
		rows = append(rows, r)
	}
}
