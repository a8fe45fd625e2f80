package redis

import (
	"context"
	"testing"
	"time"

	"flowmap/internal/domain"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
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

func setupTestCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *ReportCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := &Client{
		Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()}),
	}

	return mr, NewReportCache(newTestLogger(), client, ttl)
}

func sampleReport() *domain.FlowReport {
	return &domain.FlowReport{
		Period:      domain.Period24h,
		LastUpdated: "2026-08-30T12:00:00Z",
		TotalVolume: 3,
		Flows: []*domain.FlowEdge{
			{Source: "Wallets", Target: "Aave", Volume: 3},
		},
	}
}

func TestReportCache_SetGetRoundTrip(t *testing.T) {
	t.Parallel()

	_, cache := setupTestCache(t, time.Minute)
	ctx := context.Background()

	want := sampleReport()
	require.NoError(t, cache.Set(ctx, want))

	got, err := cache.Get(ctx, domain.Period24h)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReportCache_MissIsErrReportNotCached(t *testing.T) {
	t.Parallel()

	_, cache := setupTestCache(t, time.Minute)

	_, err := cache.Get(context.Background(), domain.Period7d)
	require.ErrorIs(t, err, ErrReportNotCached)
}

func TestReportCache_EntriesExpire(t *testing.T) {
	t.Parallel()

	mr, cache := setupTestCache(t, time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, sampleReport()))

	mr.FastForward(2 * time.Second)

	_, err := cache.Get(ctx, domain.Period24h)
	require.ErrorIs(t, err, ErrReportNotCached)
}

func TestReportCache_PeriodsAreIndependent(t *testing.T) {
	t.Parallel()

	_, cache := setupTestCache(t, time.Minute)
	ctx := context.Background()

	day := sampleReport()
	week := sampleReport()
	week.Period = domain.Period7d
	week.TotalVolume = 99

	require.NoError(t, cache.Set(ctx, day))
	require.NoError(t, cache.Set(ctx, week))

	gotDay, err := cache.Get(ctx, domain.Period24h)
	require.NoError(t, err)
	gotWeek, err := cache.Get(ctx, domain.Period7d)
	require.NoError(t, err)

	assert.Equal(t, float64(3), gotDay.TotalVolume)
	assert.Equal(t, float64(99), gotWeek.TotalVolume)
}
