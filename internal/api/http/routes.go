package http

import (
	"flowmap/internal/api/http/mw"
	"flowmap/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func BuildRouter(
	api *API,
	logMW *mw.LoggingMiddleware,
	gzipMW *mw.GzipMiddleware,
	corsMW *mw.CORSMiddleware,
	rateLimitMW *mw.RateLimitMiddleware,
	jwtMW *mw.JWTMiddleware,
) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if logMW != nil {
		r.Use(logMW.Handler)
	}
	if gzipMW != nil {
		r.Use(gzipMW.Handler)
	}
	if corsMW != nil {
		r.Use(corsMW.Handler())
	}

	// tech endpoints stay open
	r.Get("/healthz", api.Healthz)
	r.Get("/readiness", api.Readiness)
	r.Mount("/metrics", metrics.Handler())

	protected := chi.NewRouter()
	if jwtMW != nil {
		protected.Use(jwtMW.Handler)
	}
	if rateLimitMW != nil {
		protected.Use(rateLimitMW.Handler)
	}

	protected.Route("/api", func(apiR chi.Router) {
		apiR.Get("/flows/{period}", api.Flows)
	})

	r.Mount("/", protected)
	return r
}
