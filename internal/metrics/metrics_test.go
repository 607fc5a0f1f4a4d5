package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showroom-popup-builder/internal/model"
)

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveLoad("ok")
	m.ObserveLoad("not_found")
	m.ObserveLoad("ok")
	m.ObserveSave("ok", 120*time.Millisecond)
	m.ObserveRenderFailure(model.TemplateInfo)
	m.ObserveClick("", "ignored")
	m.ObserveClick("popup", "shown")
	m.RecordRequest("POST", "/api/click", 200, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.loads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.saves.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renderFailures.WithLabelValues("info")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.clicks.WithLabelValues("none", "ignored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/click", "200")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveClick("popup", "shown")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `popup_clicks_total{action="popup",outcome="shown"} 1`)

	// Independent instances do not collide.
	assert.NotPanics(t, func() { New() })
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Post("/api/objects/{name}/edit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	for _, name := range []string{"c1_obj", "c2_obj"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/objects/"+name+"/edit", nil))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/objects/{name}/edit", "202")))
}
