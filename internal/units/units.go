package units

import "math/big"

// RawToDecimal converts a raw token amount (base 10^decimals) to its
// human-readable value. The integer and fractional parts are split with
// big.Int division first, so amounts far beyond float64's integer range
// don't lose their whole part to a direct float division. The fractional
// component still rounds like any float64.
func RawToDecimal(raw *big.Int, decimals int) float64 {
	if raw == nil || raw.Sign() == 0 {
		return 0
	}

	div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)

	quot := new(big.Int)
	rem := new(big.Int)
	quot.QuoRem(raw, div, rem)

	whole, _ := new(big.Float).SetInt(quot).Float64()
	frac, _ := new(big.Float).Quo(
		new(big.Float).SetInt(rem),
		new(big.Float).SetInt(div),
	).Float64()

	return whole + frac
}

// BlockRangeStart returns the lower bound of a lookback window,
// clamped at genesis.
func BlockRangeStart(latest *big.Int, blocksBack uint64) *big.Int {
	start := new(big.Int).Sub(latest, new(big.Int).SetUint64(blocksBack))
	if start.Sign() < 0 {
		return big.NewInt(0)
	}
	return start
}
