package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceCacheRatio(t *testing.T) {
	m := NewMetricsService()
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)

	assert.InDelta(t, 2.0/3.0, testutil.ToFloat64(m.cacheHitRatio), 0.0001)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses))
}

func TestMetricsServiceCardCounters(t *testing.T) {
	m := NewMetricsService()
	m.CardsRendered("batch", 12)
	m.CardsRendered("batch", 0)
	m.ObserveBatch("FINISHED", 2*time.Second)
	m.AssetUploaded("logo", "stored")

	assert.Equal(t, 12.0, testutil.ToFloat64(m.cardsRendered.WithLabelValues("batch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchTotal.WithLabelValues("FINISHED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assetUploads.WithLabelValues("logo", "stored")))
}

func TestMetricsServiceHandler(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/schools", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",path="/api/v1/schools",status="200"} 1`)
	assert.Contains(t, rec.Body.String(), "goroutines_total")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest(http.MethodGet, "/", 200, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.CardsRendered("pdf", 1)
	m.ObserveBatch("FAILED", 0)
	m.AssetUploaded("photo", "rejected")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
