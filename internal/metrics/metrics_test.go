package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush_NoURL(t *testing.T) {
	assert.NoError(t, Push(context.Background(), "", "nyc311"))
}

func TestPush_SendsToGateway(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, Push(context.Background(), srv.URL, "nyc311"))
	assert.True(t, strings.HasPrefix(path, "/metrics/job/nyc311"), path)
}

func TestPush_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := Push(context.Background(), srv.URL, "nyc311")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metrics: push")
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(Days.WithLabelValues(OutcomeSkipped))
	Days.WithLabelValues(OutcomeSkipped).Inc()
	assert.InDelta(t, before+1, testutil.ToFloat64(Days.WithLabelValues(OutcomeSkipped)), 0.001)

	ReportRows.Set(42)
	assert.InDelta(t, 42, testutil.ToFloat64(ReportRows), 0.001)
}
