package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/nyc311-cli/internal/model"
	"github.com/sells-group/nyc311-cli/internal/report"
)

type fakeRunner struct {
	calls   atomic.Int32
	skipped bool
	err     error
}

func (f *fakeRunner) Run(_ context.Context, w model.Window) (*report.Result, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	if f.skipped {
		return &report.Result{Window: w, Skipped: true}, nil
	}
	return &report.Result{Window: w, RunID: "run-1", Rows: []model.StatRow{
		{Date: model.FormatDay(w.Start), Boro: "ALL", Metric: "complaints", Value: 3},
	}}, nil
}

type fakeReader struct {
	done bool
	rows []model.StatRow
}

func (f *fakeReader) Done(context.Context, model.Window) (bool, error) { return f.done, nil }

func (f *fakeReader) ReadReport(context.Context, model.Window) ([]model.StatRow, error) {
	return f.rows, nil
}

func serve(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouter_Health(t *testing.T) {
	rr := serve(t, buildRouter(&fakeRunner{}, &fakeReader{}, []string{"*"}), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	rr := serve(t, buildRouter(&fakeRunner{}, &fakeReader{}, nil), http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestRouter_PostReport(t *testing.T) {
	runner := &fakeRunner{}
	h := buildRouter(runner, &fakeReader{}, nil)

	rr := serve(t, h, http.MethodPost, "/reports", map[string]any{"start": "2024-01-01", "end": "2024-01-05", "top_n": 5})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp reportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)
	assert.False(t, resp.Skipped)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, int64(3), resp.Rows[0].Value)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestRouter_PostReportSkippedServesStoredRows(t *testing.T) {
	reader := &fakeReader{rows: []model.StatRow{{Date: "2024-01-01", Boro: "ALL", Metric: "complaints", Value: 9}}}
	h := buildRouter(&fakeRunner{skipped: true}, reader, nil)

	rr := serve(t, h, http.MethodPost, "/reports", map[string]any{"start": "2024-01-01", "end": "2024-01-01", "top_n": 1})
	require.Equal(t, http.StatusOK, rr.Code)

	var resp reportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Skipped)
	assert.Equal(t, reader.rows, resp.Rows)
}

func TestRouter_PostReportBadRequests(t *testing.T) {
	runner := &fakeRunner{}
	h := buildRouter(runner, &fakeReader{}, nil)

	tests := []struct {
		name string
		body any
		want string
	}{
		{name: "not json", body: "nope", want: "invalid request body"},
		{name: "bad date", body: map[string]any{"start": "2024/01/01", "end": "2024-01-05", "top_n": 5}, want: "parse day"},
		{name: "end before start", body: map[string]any{"start": "2024-01-05", "end": "2024-01-01", "top_n": 5}, want: "before start"},
		{name: "top-N out of range", body: map[string]any{"start": "2024-01-01", "end": "2024-01-05", "top_n": 500}, want: "top-N"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(t, h, http.MethodPost, "/reports", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.want)
		})
	}
	assert.Equal(t, int32(0), runner.calls.Load())
}

func TestRouter_PostReportFailure(t *testing.T) {
	h := buildRouter(&fakeRunner{err: errors.New("collect 2024-01-02: upstream 503")}, &fakeReader{}, nil)

	rr := serve(t, h, http.MethodPost, "/reports", map[string]any{"start": "2024-01-01", "end": "2024-01-05", "top_n": 5})
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "upstream 503")
}

func TestRouter_GetReport(t *testing.T) {
	reader := &fakeReader{done: true, rows: []model.StatRow{{Date: "2024-01-01", Boro: "ALL", Metric: "complaints", Value: 2}}}
	h := buildRouter(&fakeRunner{}, reader, nil)

	rr := serve(t, h, http.MethodGet, "/reports?start=2024-01-01&end=2024-01-02&top_n=5", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp reportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, reader.rows, resp.Rows)
}

func TestRouter_GetReportNotDone(t *testing.T) {
	h := buildRouter(&fakeRunner{}, &fakeReader{done: false}, nil)

	rr := serve(t, h, http.MethodGet, "/reports?start=2024-01-01&end=2024-01-02&top_n=5", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, h, http.MethodGet, "/reports?start=2024-01-01&end=2024-01-02", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
