package registry

import (
	"os"
	"path/filepath"
	"testing"

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

func writeRegistryFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "protocols.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileIsEmptyRegistry(t *testing.T) {
	t.Parallel()

	reg, err := Load(newTestLogger(), filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, reg.ReverseIndex())
}

func TestLoad_InvalidJSONFails(t *testing.T) {
	t.Parallel()

	path := writeRegistryFile(t, `{"Aave": {`)
	_, err := Load(newTestLogger(), path)
	require.Error(t, err)
}

func TestLoad_NormalizesAddressesToLowercase(t *testing.T) {
	t.Parallel()

	path := writeRegistryFile(t, `{
		"Aave": {"contracts": ["0xABCDEF0000000000000000000000000000000001"], "category": "lending"}
	}`)

	reg, err := Load(newTestLogger(), path)
	require.NoError(t, err)

	idx := reg.ReverseIndex()
	assert.Equal(t, "Aave", idx["0xabcdef0000000000000000000000000000000001"])
	assert.NotContains(t, idx, "0xABCDEF0000000000000000000000000000000001")
}

func TestReverseIndex_MapsEveryContract(t *testing.T) {
	t.Parallel()

	path := writeRegistryFile(t, `{
		"Aave":    {"contracts": ["0xaaa1", "0xaaa2"]},
		"Uniswap": {"contracts": ["0xbbb1"]}
	}`)

	reg, err := Load(newTestLogger(), path)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	idx := reg.ReverseIndex()
	assert.Len(t, idx, 3)
	assert.Equal(t, "Aave", idx["0xaaa1"])
	assert.Equal(t, "Aave", idx["0xaaa2"])
	assert.Equal(t, "Uniswap", idx["0xbbb1"])
}

// Duplicate address: deterministic last-write-wins in sorted name order.
func TestReverseIndex_CollisionKeepsLaterName(t *testing.T) {
	t.Parallel()

	path := writeRegistryFile(t, `{
		"Alpha": {"contracts": ["0xshared"]},
		"Beta":  {"contracts": ["0xshared"]}
	}`)

	reg, err := Load(newTestLogger(), path)
	require.NoError(t, err)

	idx := reg.ReverseIndex()
	assert.Equal(t, "Beta", idx["0xshared"])
}
