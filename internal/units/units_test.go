package units

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawToDecimal_Zero(t *testing.T) {
	t.Parallel()

	assert.Equal(t, float64(0), RawToDecimal(big.NewInt(0), 18))
	assert.Equal(t, float64(0), RawToDecimal(nil, 18))
	assert.Equal(t, float64(0), RawToDecimal(big.NewInt(0), 0))
}

func TestRawToDecimal_OneToken(t *testing.T) {
	t.Parallel()

	// 1e18 raw with 18 decimals is exactly one token
	raw, ok := new(big.Int).SetString("1000000000000000000", 10)
	require.True(t, ok)

	assert.Equal(t, float64(1), RawToDecimal(raw, 18))
}

func TestRawToDecimal_Fractional(t *testing.T) {
	t.Parallel()

	// 1.5 tokens
	raw, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)

	assert.InDelta(t, 1.5, RawToDecimal(raw, 18), 1e-12)
}

func TestRawToDecimal_LargeAmountKeepsWholePart(t *testing.T) {
	t.Parallel()

	// 123456789012345678 tokens: the whole part alone overflows the
	// precision a naive float division of the raw integer would keep
	raw, ok := new(big.Int).SetString("123456789012345678000000000000000000", 10)
	require.True(t, ok)

	got := RawToDecimal(raw, 18)
	assert.InDelta(t, 1.23456789012345678e17, got, 1e3)
}

func TestRawToDecimal_SmallDecimals(t *testing.T) {
	t.Parallel()

	// USDC-style 6 decimals
	assert.InDelta(t, 12.345678, RawToDecimal(big.NewInt(12345678), 6), 1e-9)
}

func TestRawToDecimal_NeverNegative(t *testing.T) {
	t.Parallel()

	for _, raw := range []int64{0, 1, 999, 1_000_000, 1_000_000_000_000} {
		for _, dec := range []int{0, 1, 6, 18} {
			got := RawToDecimal(big.NewInt(raw), dec)
			assert.GreaterOrEqual(t, got, float64(0), "raw=%d dec=%d", raw, dec)
		}
	}
}

func TestBlockRangeStart(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		latest     int64
		blocksBack uint64
		want       int64
	}{
		{"plain subtraction", 100_000, 7200, 92_800},
		{"exact genesis", 7200, 7200, 0},
		{"clamped at genesis", 100, 7200, 0},
		{"zero lookback", 500, 0, 500},
		{"zero head", 0, 50400, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BlockRangeStart(big.NewInt(tt.latest), tt.blocksBack)
			// big.Int zero values can differ in internal representation
			// (nil vs empty abs slice), so compare numerically.
			assert.Zero(t, big.NewInt(tt.want).Cmp(got), "want %d, got %s", tt.want, got)
			assert.GreaterOrEqual(t, got.Sign(), 0)
		})
	}
}

func TestBlockRangeStart_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	latest := big.NewInt(1000)
	_ = BlockRangeStart(latest, 250)
	assert.Equal(t, big.NewInt(1000), latest)
}
