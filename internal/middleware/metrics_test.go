package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type metricRecord struct {
	method   string
	endpoint string
	status   string
}

func captureRecords(t *testing.T) *[]metricRecord {
	var records []metricRecord
	original := recordHTTPRequest
	recordHTTPRequest = func(method, endpoint, status string, _ time.Duration) {
		records = append(records, metricRecord{method: method, endpoint: endpoint, status: status})
	}
	t.Cleanup(func() { recordHTTPRequest = original })
	return &records
}

func TestMetrics_RecordsStatusAndEndpoint(t *testing.T) {
	records := captureRecords(t)

	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/cycles", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Len(t, *records, 1)
	assert.Equal(t, http.MethodPost, (*records)[0].method)
	assert.Equal(t, "/api/cycles", (*records)[0].endpoint)
	assert.Equal(t, "201", (*records)[0].status)
}

func TestMetrics_DefaultsToOK(t *testing.T) {
	records := captureRecords(t)

	handler := Metrics(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, *records, 1)
	assert.Equal(t, "200", (*records)[0].status)
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/api/cycles", want: "/api/cycles"},
		{path: "/api/metrics/3582", want: "/api/metrics/:id"},
		{path: "/api/metrics/3582/history", want: "/api/metrics/:id/history"},
		{path: "/api/dashboard/summary", want: "/api/dashboard/summary"},
		{path: "/health", want: "/health"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeEndpoint(tt.path))
		})
	}
}

func TestCORS(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("sets headers on normal requests", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/operators", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("short-circuits preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/cycles", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
