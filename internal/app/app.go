package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// Runner is one full aggregation pass over both lookback windows.
type Runner interface {
	Run(ctx context.Context) error
}

type App struct {
	log     logger.Logger
	httpSrv HTTPServer
	svc     Runner

	refreshInterval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func New(lg logger.Logger, httpSrv HTTPServer, svc Runner, refreshInterval time.Duration) *App {
	return &App{
		log:             lg,
		httpSrv:         httpSrv,
		svc:             svc,
		refreshInterval: refreshInterval,
		done:            make(chan struct{}),
	}
}

func (a *App) Start() error {
	a.log.Debug("App started begin...")

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go func() {
		if err := a.httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatalf("Start HTTP server is error=%v", err)
		}
	}()

	go a.refreshLoop(ctx)

	a.log.Info("App started")
	return nil
}

// refreshLoop runs one pass right away so the API has artifacts to serve,
// then keeps them fresh on the configured interval. A failed pass leaves
// the previous artifacts in place and retries on the next tick.
func (a *App) refreshLoop(ctx context.Context) {
	defer close(a.done)

	if err := a.svc.Run(ctx); err != nil {
		a.log.Errorf("Initial aggregation pass failed: %v", err)
	}

	ticker := time.NewTicker(a.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := a.svc.Run(ctx); err != nil {
				a.log.Errorf("Aggregation pass failed: %v", err)
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Debug("App stopped begin...")

	if a.cancel != nil {
		a.cancel()
	}

	select {
	case <-a.done:
	case <-ctx.Done():
		a.log.Warn("Refresh loop did not stop before the shutdown deadline")
	}

	if err := a.httpSrv.Shutdown(ctx); err != nil {
		return err
	}

	a.log.Info("App stopped")
	return nil
}
