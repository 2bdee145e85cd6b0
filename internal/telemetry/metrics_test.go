package telemetry_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeafMist/media-aggregator/internal/telemetry"
)

func TestObserveBulk(t *testing.T) {
	m := telemetry.NewWithRegistry(prometheus.NewRegistry())

	m.ObserveBulk("articles-nytimes", 8, 2, 150*time.Millisecond)
	m.ObserveBulk("articles-nytimes", 1, 0, 10*time.Millisecond)

	assert.Equal(t, 9.0, testutil.ToFloat64(m.RecordsIndexed.WithLabelValues("articles-nytimes")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RecordsFailed.WithLabelValues("articles-nytimes")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := telemetry.NewWithRegistry(prometheus.NewRegistry())
	m.ObserveRequest("/search", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `mediaagg_http_requests_total{route="/search",status="200"} 1`)
}
