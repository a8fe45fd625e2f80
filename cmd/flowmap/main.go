package main

import (
	"context"
	stdlog "log"
	"os"
	"time"

	"flowmap/internal/chain"
	"flowmap/internal/config"
	"flowmap/internal/flow"
	"flowmap/internal/pubsub/nats"
	"flowmap/internal/registry"
	"flowmap/internal/report"
	"flowmap/internal/service"
	"flowmap/internal/stores/clickhouse"
	"flowmap/internal/stores/redis"

	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

// One-shot mode: run a single aggregation pass over both lookback windows,
// write the two artifacts and exit. Meant for cron; flowmapd is the
// long-running variant.
func main() {
	cfgPath := os.Getenv("CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stdlog.Fatalf("Failed load config, error=%v", err)
	}

	// refuse before any network work
	if err = cfg.Validate(); err != nil {
		stdlog.Fatalf("Invalid config, error=%v", err)
	}

	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	reg, err := registry.Load(lg, cfg.Registry.Path)
	if err != nil {
		lg.Errorf("Failed to load protocol registry: %v", err)
		os.Exit(1)
	}

	chainCl, err := chain.Dial(ctx, lg, &cfg.Chain)
	if err != nil {
		lg.Errorf("Failed to dial rpc endpoint: %v", err)
		os.Exit(1)
	}
	defer chainCl.Close()

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

	if cfg.Stores.Redis.Enabled {
		rdb, err := redis.New(ctx, &cfg.Stores.Redis)
		if err != nil {
			lg.Errorf("Failed to initialize redis client: %v", err)
			os.Exit(1)
		}
		defer rdb.Close()
		deps.Cache = redis.NewReportCache(lg, rdb, cfg.Stores.Redis.CacheTTL)
	}

	if cfg.PubSub.NATS.Enabled {
		natsCl, err := nats.New(lg, &cfg.PubSub.NATS)
		if err != nil {
			lg.Errorf("Failed to initialize nats client: %v", err)
			os.Exit(1)
		}
		defer natsCl.Close()
		deps.Broadcaster = natsCl
	}

	if cfg.Stores.ClickHouse.Enabled {
		conn, err := clickhouse.New(ctx, &cfg.Stores.ClickHouse)
		if err != nil {
			lg.Errorf("Failed to initialize clickhouse client: %v", err)
			os.Exit(1)
		}
		defer conn.Close()

		chWriter := clickhouse.NewWriter(lg, conn.Native, cfg.Stores.ClickHouse)
		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer closeCancel()
			if err := chWriter.Close(closeCtx); err != nil {
				lg.Errorf("Failed to close clickhouse writer: %v", err)
			}
		}()
		deps.RawSink = chWriter
	}

	if err = service.NewFlowService(deps).Run(ctx); err != nil {
		lg.Errorf("Aggregation pass failed: %v", err)
		os.Exit(1)
	}

	lg.Info("Aggregation pass complete")
}
