package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"flowmap/internal/domain"
	"flowmap/internal/service"
	"flowmap/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"gitlab.com/nevasik7/alerting/logger"
)

// ReportSource is what the handlers need from the service layer.
type ReportSource interface {
	GetReport(ctx context.Context, period domain.Period) (*domain.FlowReport, error)
	CheckDependency(ctx context.Context) error
}

type API struct {
	log logger.Logger
	src ReportSource
}

func NewAPI(log logger.Logger, src ReportSource) *API {
	if src == nil {
		panic("report source cannot be nil")
	}
	return &API{log: log, src: src}
}

func (a *API) Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *API) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := a.src.CheckDependency(ctx); err != nil {
		if err := httputil.Error(w, r, http.StatusServiceUnavailable, "dependencies_unhealthy", err.Error()); err != nil {
			a.log.Errorf("Readiness handler error: %s", err.Error())
		}
		return
	}

	if err := httputil.JSON(w, http.StatusOK, map[string]string{"dependencies": "healthy"}, nil); err != nil {
		a.log.Errorf("Readiness handler error: %s", err.Error())
	}
}

// Flows serves the latest artifact for "24h" or "7d", exactly as written
// to disk, so the front-end renders the same document either way.
func (a *API) Flows(w http.ResponseWriter, r *http.Request) {
	period := domain.Period(chi.URLParam(r, "period"))
	if !period.Valid() {
		_ = httputil.Error(w, r, http.StatusBadRequest, "bad_period", "period must be 24h or 7d")
		return
	}

	report, err := a.src.GetReport(r.Context(), period)
	if err != nil {
		if errors.Is(err, service.ErrReportNotReady) {
			_ = httputil.Error(w, r, http.StatusNotFound, "not_ready", "no report generated yet")
			return
		}
		a.log.Errorf("Flows handler error for %s: %v", period, err)
		_ = httputil.Error(w, r, http.StatusInternalServerError, "internal", "failed to load report")
		return
	}

	if err := httputil.JSON(w, http.StatusOK, report, nil); err != nil {
		a.log.Errorf("Flows handler error: %s", err.Error())
	}
}
