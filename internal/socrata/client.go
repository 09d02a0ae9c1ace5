// Package socrata retrieves one day of records from a Socrata open data
// resource using offset pagination.
package socrata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/nyc311-cli/internal/fetcher"
	"github.com/sells-group/nyc311-cli/internal/metrics"
	"github.com/sells-group/nyc311-cli/internal/model"
)

// DefaultPageSize is the number of rows requested per page. A page of
// exactly this size is treated as possibly truncated.
const DefaultPageSize = 50000

// AppTokenHeader carries the optional application token.
const AppTokenHeader = "X-App-Token"

// Options configures a Client.
type Options struct {
	BaseURL   string // e.g. https://data.cityofnewyork.us
	AppToken  string // empty means unauthenticated
	TimeField string // timestamp column filtered on, default created_date
	PageSize  int    // default DefaultPageSize
}

// Client fetches day-scoped record sets from a Socrata endpoint.
type Client struct {
	f    fetcher.Fetcher
	opts Options
}

// NewClient creates a Client. The app token is resolved by the caller once
// at startup and never read from the environment here.
func NewClient(f fetcher.Fetcher, opts Options) *Client {
	if opts.TimeField == "" {
		opts.TimeField = model.FieldCreatedDate
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{f: f, opts: opts}
}

// FetchDay returns every record of resource whose timestamp falls on day.
// Pages are requested at increasing offsets until one comes back short. Any
// failed page fails the whole day and nothing fetched so far is returned.
func (c *Client) FetchDay(ctx context.Context, resource string, day time.Time) ([]model.Record, error) {
	log := zap.L().With(
		zap.String("component", "socrata"),
		zap.String("resource", resource),
		zap.String("day", model.FormatDay(day)),
	)
	start := time.Now()

	var records []model.Record
	for offset := 0; ; offset += c.opts.PageSize {
		page, err := c.fetchPage(ctx, resource, day, offset)
		if err != nil {
			return nil, eris.Wrapf(err, "socrata: fetch %s for %s at offset %d", resource, model.FormatDay(day), offset)
		}
		records = append(records, page...)
		log.Debug("page fetched", zap.Int("offset", offset), zap.Int("rows", len(page)))

		if len(page) < c.opts.PageSize {
			break
		}
	}

	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	log.Info("day fetched", zap.Int("rows", len(records)), zap.Duration("elapsed", time.Since(start)))
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, resource string, day time.Time, offset int) ([]model.Record, error) {
	var header http.Header
	if c.opts.AppToken != "" {
		header = http.Header{}
		header.Set(AppTokenHeader, c.opts.AppToken)
	}

	body, err := c.f.Download(ctx, c.PageURL(resource, day, offset), header)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	var page []model.Record
	if _, err := fetcher.DecodeJSONArray(ctx, body, func(obj map[string]any) error {
		page = append(page, model.RecordFromJSON(obj))
		return nil
	}); err != nil {
		return nil, eris.Wrap(err, "socrata: decode page")
	}

	metrics.PagesFetched.Inc()
	metrics.RecordsFetched.Add(float64(len(page)))
	return page, nil
}

// PageURL builds the SoQL query for one page of one day. The window covers
// the whole calendar day, 00:00:00.000 through 23:59:59.999.
func (c *Client) PageURL(resource string, day time.Time, offset int) string {
	d := model.FormatDay(day)
	q := url.Values{}
	q.Set("$where", fmt.Sprintf("%s between '%sT00:00:00.000' and '%sT23:59:59.999'", c.opts.TimeField, d, d))
	q.Set("$order", ":id")
	q.Set("$limit", strconv.Itoa(c.opts.PageSize))
	q.Set("$offset", strconv.Itoa(offset))
	return fmt.Sprintf("%s/resource/%s.json?%s", c.opts.BaseURL, url.PathEscape(resource), q.Encode())
}
