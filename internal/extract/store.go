// Package extract persists one day's raw records as a CSV artifact.
package extract

import (
	"bytes"
	"context"
	"encoding/csv"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/nyc311-cli/internal/artifact"
	"github.com/sells-group/nyc311-cli/internal/fetcher"
	"github.com/sells-group/nyc311-cli/internal/model"
)

// ErrMalformed is returned by Read when a stored extract cannot be parsed.
var ErrMalformed = eris.New("extract: malformed")

// Store reads and writes daily extracts through an artifact backend.
type Store struct {
	backend artifact.Backend
	kind    string
}

// NewStore creates a Store for the given dataset kind (e.g. "311").
func NewStore(backend artifact.Backend, kind string) *Store {
	return &Store{backend: backend, kind: kind}
}

// Key returns the artifact key of day's extract.
func (s *Store) Key(day time.Time) string {
	return artifact.ExtractKey(s.kind, day)
}

// Exists reports whether day has been collected.
func (s *Store) Exists(ctx context.Context, day time.Time) (bool, error) {
	ok, err := s.backend.Exists(ctx, s.Key(day))
	if err != nil {
		return false, eris.Wrapf(err, "extract: exists %s", model.FormatDay(day))
	}
	return ok, nil
}

// Write persists records as day's extract. Zero records produce an empty
// artifact, which still marks the day as collected.
func (s *Store) Write(ctx context.Context, day time.Time, records []model.Record) error {
	data, err := Encode(records)
	if err != nil {
		return eris.Wrapf(err, "extract: encode %s", model.FormatDay(day))
	}
	if err := s.backend.Put(ctx, s.Key(day), data); err != nil {
		return eris.Wrapf(err, "extract: write %s", model.FormatDay(day))
	}
	return nil
}

// Read loads day's extract. It fails with artifact.ErrNotFound when the day
// was never collected and ErrMalformed when the artifact cannot be parsed.
func (s *Store) Read(ctx context.Context, day time.Time) ([]model.Record, error) {
	data, err := s.backend.Get(ctx, s.Key(day))
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read %s", model.FormatDay(day))
	}
	records, err := Decode(ctx, data)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read %s", model.FormatDay(day))
	}
	return records, nil
}

// RowColumn is the leading ordinal column of every extract. It keeps rows of
// all-empty records from encoding as blank lines, which CSV readers skip.
const RowColumn = "_row"

// Encode renders records as CSV. The header is RowColumn followed by the
// sorted union of every record's fields; absent fields are empty cells.
func Encode(records []model.Record) ([]byte, error) {
	if len(records) == 0 {
		return []byte{}, nil
	}

	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append([]string{RowColumn}, fields...)); err != nil {
		return nil, err
	}
	row := make([]string, len(fields)+1)
	for n, rec := range records {
		row[0] = strconv.Itoa(n + 1)
		for i, k := range fields {
			row[i+1] = rec[k]
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses an extract produced by Encode. Empty cells decode as absent
// fields. Row ordinals must run 1..n without gaps.
func Decode(ctx context.Context, data []byte) ([]model.Record, error) {
	records := []model.Record{}
	if len(bytes.TrimSpace(data)) == 0 {
		return records, nil
	}

	var header []string
	_, err := fetcher.StreamCSV(ctx, bytes.NewReader(data), fetcher.CSVOptions{
		HasHeader: true,
		OnHeader: func(h []string) error {
			if len(h) == 0 || h[0] != RowColumn {
				return eris.Wrapf(ErrMalformed, "header must start with %s", RowColumn)
			}
			header = append([]string(nil), h...)
			return nil
		},
	}, func(row []string) error {
		want := len(records) + 1
		if len(row) != len(header) {
			return eris.Wrapf(ErrMalformed, "row %d has %d fields, header has %d", want, len(row), len(header))
		}
		if got, err := strconv.Atoi(row[0]); err != nil || got != want {
			return eris.Wrapf(ErrMalformed, "row %d has ordinal %q", want, row[0])
		}
		rec := make(model.Record, len(row)-1)
		for i := 1; i < len(row); i++ {
			if row[i] != "" {
				rec[header[i]] = row[i]
			}
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "extract: decode")
		}
		if eris.Is(err, ErrMalformed) {
			return nil, err
		}
		return nil, eris.Wrapf(ErrMalformed, "%v", err)
	}
	return records, nil
}
