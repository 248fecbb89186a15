package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/salesflow-api/internal/auth"
	"github.com/straye-as/salesflow-api/internal/http/middleware"
	"github.com/straye-as/salesflow-api/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging_RequestIDIsEchoed(t *testing.T) {
	h := middleware.Logging(zap.NewNop(), metrics.New())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(w.Header().Get("X-Request-ID"))
	assert.NoError(t, err)
}

func TestLogging_LogsRouteStatusAndUser(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := metrics.New()
	userID := uuid.New()

	r := chi.NewRouter()
	r.Use(middleware.Logging(zap.New(core), m))
	r.With(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := auth.WithUserContext(r.Context(), &auth.UserContext{UserID: userID, DisplayName: "Kari Nordmann"})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, middleware.TagUser).Get("/deals/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/deals/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/deals/{id}", fields["route"])
	assert.Equal(t, int64(http.StatusNotFound), fields["status_code"])
	assert.Equal(t, int64(len("missing")), fields["response_size"])
	assert.Equal(t, userID.String(), fields["user_id"])

	families, err := m.Registry.Gather()
	require.NoError(t, err)
	var observed bool
	for _, mf := range families {
		if mf.GetName() != "salesflow_http_request_duration_seconds" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["route"] == "/deals/{id}" && labels["status"] == "404" {
				observed = metric.GetHistogram().GetSampleCount() == 1
			}
		}
	}
	assert.True(t, observed, "request duration not recorded for route")
}

func TestLogging_AnonymousRequestHasNoUser(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := middleware.Logging(zap.New(core), metrics.New())(middleware.TagUser(okHandler()))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, 1, logs.Len())
	_, hasUser := logs.All()[0].ContextMap()["user_id"]
	assert.False(t, hasUser)
}
