// Package fetcher downloads remote data over HTTP and decodes JSON and CSV payloads.
package fetcher

import (
	"context"
	"io"
	"net/http"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download issues a GET for url with the extra request headers and
	// returns the response body. Non-success responses are errors.
	Download(ctx context.Context, url string, header http.Header) (io.ReadCloser, error)
}
