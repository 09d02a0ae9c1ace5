package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray decodes a JSON array of the form [{...},{...}] one element
// at a time, calling fn for each. It returns the number of elements decoded.
// An empty body decodes as zero elements.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader, fn func(T) error) (int, error) {
	decoder := json.NewDecoder(r)

	tok, err := decoder.Token()
	if err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, eris.Wrap(err, "json: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return 0, eris.Errorf("json: expected '[', got %v", tok)
	}

	n := 0
	for decoder.More() {
		if err := ctx.Err(); err != nil {
			return n, eris.Wrap(err, "json: context cancelled")
		}

		var item T
		if err := decoder.Decode(&item); err != nil {
			return n, eris.Wrapf(err, "json: decode element %d", n)
		}
		if err := fn(item); err != nil {
			return n, err
		}
		n++
	}

	if _, err := decoder.Token(); err != nil {
		return n, eris.Wrap(err, "json: read closing token")
	}
	return n, nil
}
