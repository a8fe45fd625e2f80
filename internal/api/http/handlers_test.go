package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"flowmap/internal/domain"
	"flowmap/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

type fakeSource struct {
	reports map[domain.Period]*domain.FlowReport
	depErr  error
}

func (f *fakeSource) GetReport(_ context.Context, p domain.Period) (*domain.FlowReport, error) {
	if r, ok := f.reports[p]; ok {
		return r, nil
	}
	return nil, service.ErrReportNotReady
}

func (f *fakeSource) CheckDependency(context.Context) error { return f.depErr }

func newTestRouter(src ReportSource) http.Handler {
	api := NewAPI(newTestLogger(), src)
	return BuildRouter(api, nil, nil, nil, nil, nil)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestFlows_ServesArtifactShape(t *testing.T) {
	t.Parallel()

	src := &fakeSource{reports: map[domain.Period]*domain.FlowReport{
		domain.Period24h: {
			Period:      domain.Period24h,
			LastUpdated: "2026-08-30T12:00:00Z",
			TotalVolume: 5,
			Flows:       []*domain.FlowEdge{{Source: "Wallets", Target: "Aave", Volume: 5}},
		},
	}}

	rec := get(t, newTestRouter(src), "/api/flows/24h")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "24h", doc["period"])
	assert.Equal(t, "2026-08-30T12:00:00Z", doc["lastUpdated"])
	assert.Equal(t, float64(5), doc["totalVolume"])
	assert.Len(t, doc["flows"], 1)
}

func TestFlows_UnknownPeriodIsBadRequest(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestRouter(&fakeSource{}), "/api/flows/1h")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlows_NotReadyIs404(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestRouter(&fakeSource{}), "/api/flows/7d")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestRouter(&fakeSource{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadiness_UnhealthyDependencies(t *testing.T) {
	t.Parallel()

	src := &fakeSource{depErr: errors.New("redis: connection refused")}
	rec := get(t, newTestRouter(src), "/readiness")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadiness_Healthy(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestRouter(&fakeSource{}), "/readiness")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointMounted(t *testing.T) {
	t.Parallel()

	rec := get(t, newTestRouter(&fakeSource{}), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}
