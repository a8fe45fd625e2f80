package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"flowmap/internal/domain"

	goredis "github.com/redis/go-redis/v9"
	"gitlab.com/nevasik7/alerting/logger"
)

var ErrReportNotCached = errors.New("report not cached")

// ReportCache keeps the latest artifact per period so the HTTP API serves
// hot reads without touching disk. Keys expire after TTL; a stale cache is
// refilled on the next aggregation run.
type ReportCache struct {
	log logger.Logger
	rdb *Client
	ttl time.Duration
}

func NewReportCache(log logger.Logger, rdb *Client, ttl time.Duration) *ReportCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ReportCache{log: log, rdb: rdb, ttl: ttl}
}

func reportKey(period domain.Period) string {
	return "flowmap:report:" + string(period)
}

func (c *ReportCache) Set(ctx context.Context, report *domain.FlowReport) error {
	b, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed marshal %s report, error=%w", report.Period, err)
	}

	if err = c.rdb.Set(ctx, reportKey(report.Period), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed cache %s report, error=%w", report.Period, err)
	}

	c.log.Debugf("Cached %s report (%d bytes, ttl=%s)", report.Period, len(b), c.ttl)
	return nil
}

func (c *ReportCache) Get(ctx context.Context, period domain.Period) (*domain.FlowReport, error) {
	b, err := c.rdb.Get(ctx, reportKey(period)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrReportNotCached
		}
		return nil, err
	}

	var report domain.FlowReport
	if err = json.Unmarshal(b, &report); err != nil {
		return nil, fmt.Errorf("failed parse cached %s report, error=%w", period, err)
	}

	return &report, nil
}

func (c *ReportCache) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
