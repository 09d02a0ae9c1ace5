package fetcher

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	HasHeader bool                        // if true, the first row goes to OnHeader instead of fn
	OnHeader  func(header []string) error // optional
}

// StreamCSV reads r row by row and calls fn for every data row. It returns
// the number of data rows read. Rows may have a variable number of fields;
// callers validate width.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions, fn func(row []string) error) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	first := true
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, eris.Wrap(err, "csv: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, eris.Wrap(err, "csv: read row")
		}

		if first && opts.HasHeader {
			first = false
			if opts.OnHeader != nil {
				if err := opts.OnHeader(record); err != nil {
					return n, err
				}
			}
			continue
		}
		first = false

		if err := fn(record); err != nil {
			return n, err
		}
		n++
	}
}
