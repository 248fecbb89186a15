package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/straye-as/salesflow-api/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()

	m.RecordConversion("lead_to_deal", nil)
	m.RecordConversion("lead_to_deal", errors.New("boom"))
	m.RecordConversion("lead_to_deal", nil)
	m.RecordProposalTransition("approve", nil)
	m.RecordNotification(errors.New("nats down"))

	assert.Equal(t, float64(2), m.ConversionCount("lead_to_deal", metrics.ResultSuccess))
	assert.Equal(t, float64(1), m.ConversionCount("lead_to_deal", metrics.ResultFailure))
	assert.Equal(t, float64(1), m.ProposalTransitionCount("approve", metrics.ResultSuccess))
	assert.Equal(t, float64(0), m.ProposalTransitionCount("reject", metrics.ResultSuccess))
	assert.Equal(t, float64(1), m.NotificationCount(metrics.ResultFailure))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RecordConversion("x", nil)
		m.RecordProposalTransition("x", nil)
		m.RecordNotification(nil)
		m.RecordPermissionCache("hit")
		m.ObserveRequest("GET", "/", "200", time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.RecordConversion("lead_to_deal", nil)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `salesflow_conversions_total{operation="lead_to_deal",result="success"} 1`)
}
