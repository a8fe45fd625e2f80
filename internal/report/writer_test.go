package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"flowmap/internal/domain"

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

func sampleReport(period domain.Period) *domain.FlowReport {
	return &domain.FlowReport{
		Period:      period,
		LastUpdated: "2026-08-30T12:00:00Z",
		TotalVolume: 6,
		Flows: []*domain.FlowEdge{
			{Source: "Wallets", Target: "Aave", Volume: 5},
			{Source: "Uniswap", Target: "Wallets", Volume: 1},
		},
	}
}

func TestWrite_CreatesMissingDirAndFixedShape(t *testing.T) {
	t.Parallel()

	dataDir := filepath.Join(t.TempDir(), "nested", "data")
	w := NewWriter(newTestLogger(), dataDir)

	require.NoError(t, w.Write(sampleReport(domain.Period24h)))

	b, err := os.ReadFile(filepath.Join(dataDir, "flows_24h.json"))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))

	// the artifact shape the front-end renders
	assert.Equal(t, "24h", doc["period"])
	assert.Equal(t, "2026-08-30T12:00:00Z", doc["lastUpdated"])
	assert.Equal(t, float64(6), doc["totalVolume"])

	flows := doc["flows"].([]any)
	require.Len(t, flows, 2)
	first := flows[0].(map[string]any)
	assert.Equal(t, "Wallets", first["source"])
	assert.Equal(t, "Aave", first["target"])
	assert.Equal(t, float64(5), first["volume"])
}

func TestWrite_OverwritesExistingArtifact(t *testing.T) {
	t.Parallel()

	w := NewWriter(newTestLogger(), t.TempDir())

	require.NoError(t, w.Write(sampleReport(domain.Period7d)))

	updated := sampleReport(domain.Period7d)
	updated.TotalVolume = 42
	updated.Flows = updated.Flows[:1]
	require.NoError(t, w.Write(updated))

	got, err := w.Read(domain.Period7d)
	require.NoError(t, err)
	assert.Equal(t, float64(42), got.TotalVolume)
	assert.Len(t, got.Flows, 1)
}

func TestWrite_EmptyFlowsStaysAnArray(t *testing.T) {
	t.Parallel()

	w := NewWriter(newTestLogger(), t.TempDir())
	report := &domain.FlowReport{
		Period:      domain.Period24h,
		LastUpdated: "2026-08-30T12:00:00Z",
		Flows:       []*domain.FlowEdge{},
	}
	require.NoError(t, w.Write(report))

	b, err := os.ReadFile(w.Path(domain.Period24h))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"flows": []`)
}

func TestRead_RoundTrip(t *testing.T) {
	t.Parallel()

	w := NewWriter(newTestLogger(), t.TempDir())
	want := sampleReport(domain.Period24h)
	require.NoError(t, w.Write(want))

	got, err := w.Read(domain.Period24h)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRead_MissingArtifact(t *testing.T) {
	t.Parallel()

	w := NewWriter(newTestLogger(), t.TempDir())
	_, err := w.Read(domain.Period7d)
	assert.True(t, os.IsNotExist(err))
}
