package app

import (
	"compress/gzip"
	"context"
	"fmt"
	"strings"
	"time"

	httpapi "flowmap/internal/api/http"
	"flowmap/internal/api/http/mw"
	"flowmap/internal/chain"
	"flowmap/internal/config"
	"flowmap/internal/flow"
	"flowmap/internal/metrics"
	"flowmap/internal/pubsub/nats"
	"flowmap/internal/registry"
	"flowmap/internal/report"
	"flowmap/internal/security"
	"flowmap/internal/service"
	"flowmap/internal/stores/clickhouse"
	"flowmap/internal/stores/redis"

	"github.com/grafana/pyroscope-go"
	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

type Container struct {
	app *App

	// infra
	redis    *redis.Client
	ch       *clickhouse.Conn
	chWriter *clickhouse.Writer
	nc       *nats.Client

	// servers
	httpSrv *httpapi.Server

	// metrics
	profiler *pyroscope.Profiler
}

func (c *Container) Start() error {
	return c.app.Start()
}

func (c *Container) Stop(ctx context.Context) error {
	if err := c.app.Shutdown(ctx); err != nil {
		return fmt.Errorf("app shutdown is failed, error=%w", err)
	}
	return nil
}

// Build Construct image app
func Build(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialize logger")

	profiler, err := metrics.InitPProf(cfg.App.InstanceID, &cfg.Metrics.Pyroscope)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize pyroscope, error=%w", err)
	}
	if profiler != nil {
		lg.Infof("Successfully initialize Pyroscope to %s", cfg.Metrics.Pyroscope.ServerAddr)
	}

	// Redis client (report cache + rate limit buckets)
	var rdb *redis.Client
	if cfg.Stores.Redis.Enabled {
		if rdb, err = redis.New(ctx, &cfg.Stores.Redis); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize redis client, error=%w", err)
		}
		lg.Infof("Successfully initialize redis client, addr=%s", cfg.Stores.Redis.Addr)
	}

	// ClickHouse client + raw transfer writer
	var (
		ch       *clickhouse.Conn
		chWriter *clickhouse.Writer
	)
	if cfg.Stores.ClickHouse.Enabled {
		if ch, err = clickhouse.New(ctx, &cfg.Stores.ClickHouse); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize clickhouse client, error=%w", err)
		}
		url := strings.Split(cfg.Stores.ClickHouse.DSN, "?")
		lg.Infof("Successfully initialize clickhouse client, url=%s", url[0])

		chWriter = clickhouse.NewWriter(lg, ch.Native, cfg.Stores.ClickHouse)
		lg.Info("Successfully initialize clickhouse writer")
	}

	// NATS broadcaster
	var natsCl *nats.Client
	if cfg.PubSub.NATS.Enabled {
		if natsCl, err = nats.New(lg, &cfg.PubSub.NATS); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize nats client, error=%w", err)
		}
		lg.Infof("Successfully initialize nats client, url=%s", cfg.PubSub.NATS.URL)
	}

	// Chain client
	chainCl, err := chain.Dial(ctx, lg, &cfg.Chain)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize chain client, error=%w", err)
	}
	lg.Infof("Successfully initialize chain client, token=%s", cfg.Chain.TokenAddress)

	// Protocol registry
	reg, err := registry.Load(lg, cfg.Registry.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load protocol registry, error=%w", err)
	}
	lg.Infof("Successfully initialize protocol registry, protocols=%d", reg.Len())

	// Service layer
	deps := service.Deps{
		Log:          lg,
		Fetcher:      chainCl,
		Aggregator:   flow.New(lg, cfg.Chain.Decimals),
		Writer:       report.NewWriter(lg, cfg.Output.DataDir),
		ReverseIndex: reg.ReverseIndex(),

		TokenAddress: cfg.Chain.TokenAddress,
		Blocks24h:    cfg.Chain.Blocks24h,
		Blocks7d:     cfg.Chain.Blocks7d,

		SubjectPrefix: cfg.PubSub.NATS.SubjectPrefix,
	}
	if rdb != nil {
		deps.Cache = redis.NewReportCache(lg, rdb, cfg.Stores.Redis.CacheTTL)
	}
	if natsCl != nil {
		deps.Broadcaster = natsCl
	}
	if chWriter != nil {
		deps.RawSink = chWriter
	}
	flowSvc := service.NewFlowService(deps)
	lg.Info("Successfully initialize flow service")

	// Middleware chain
	logMW := mw.NewLogging(lg)
	gzipMW := mw.NewGzip(gzip.DefaultCompression, lg)

	var corsMW *mw.CORSMiddleware
	if cfg.API.HTTP.CORS.Enabled {
		corsMW = mw.NewCORS(&cfg.API.HTTP.CORS)
	}

	var jwtMW *mw.JWTMiddleware
	if cfg.API.HTTP.JWT.Enabled {
		verifier, err := security.NewRS256Verifier(&cfg.API.HTTP.JWT)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize jwt verifier, error=%w", err)
		}
		jwtMW = mw.NewJWT(verifier)
		lg.Info("Successfully initialize JWT-Verifier")
	}

	var rateLimitMW *mw.RateLimitMiddleware
	if cfg.API.HTTP.RateLimit.Enabled {
		if rdb == nil {
			lg.Warn("Rate limit enabled without redis, skipping the limiter")
		} else {
			rateLimitMW = mw.NewRateLimit(rdb, mw.RateBucket{
				RefillPerSec: cfg.API.HTTP.RateLimit.RefillPerSec,
				Burst:        cfg.API.HTTP.RateLimit.Burst,
			})
		}
	}

	// HTTP server
	api := httpapi.NewAPI(lg, flowSvc)
	router := httpapi.BuildRouter(api, logMW, gzipMW, corsMW, rateLimitMW, jwtMW)
	httpSrv := httpapi.NewServer(lg, &cfg.API.HTTP, router)
	lg.Info("Successfully initialize HTTP server")

	c := &Container{
		app:      New(lg, httpSrv, flowSvc, cfg.App.RefreshInterval),
		redis:    rdb,
		ch:       ch,
		chWriter: chWriter,
		nc:       natsCl,
		httpSrv:  httpSrv,
		profiler: profiler,
	}

	cleanupF := func() {
		ctxClean, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if c.profiler != nil {
			if err := c.profiler.Stop(); err != nil {
				lg.Errorf("Failed to stop profiler: %v", err)
			}
		}

		if c.nc != nil {
			if err := c.nc.Close(); err != nil {
				lg.Errorf("Failed to close by cleanupF nats client: %v", err)
			}
		}

		if c.chWriter != nil {
			if err := c.chWriter.Close(ctxClean); err != nil {
				lg.Errorf("Failed to close by cleanupF clickhouse writer: %v", err)
			}
		}

		if c.ch != nil {
			if err := c.ch.Close(); err != nil {
				lg.Errorf("Failed to close by cleanupF clickhouse client: %v", err)
			}
		}

		if c.redis != nil {
			if err := c.redis.Close(); err != nil {
				lg.Errorf("Failed to close by cleanupF redis client: %v", err)
			}
		}

		chainCl.Close()

		lg.Info("Successfully cleaned up dependency")
	}

	lg.Info("Successfully initialize Wiring")
	return c, cleanupF, nil
}
