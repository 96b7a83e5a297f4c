package market

import (
	"math"
	"sort"
)

// ATMStrikes returns the two strikes closest to the spot price, in ascending
// order. When two strikes are equidistant from spot the lower strike wins the
// closer slot, so the pair stays deterministic for any input order.
// Fewer than two strikes are returned as-is.
func ATMStrikes(strikes []float64, spot float64) []float64 {
	if len(strikes) == 0 {
		return nil
	}

	sorted := make([]float64, len(strikes))
	copy(sorted, strikes)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted
	}

	idx := make([]int, len(sorted))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		da := math.Abs(sorted[idx[a]] - spot)
		db := math.Abs(sorted[idx[b]] - spot)
		if da == db {
			return sorted[idx[a]] < sorted[idx[b]]
		}
		return da < db
	})

	pair := []float64{sorted[idx[0]], sorted[idx[1]]}
	sort.Float64s(pair)
	return pair
}

// ChainWindow restricts a sorted strike list to a window of n strikes either
// side of the ATM strike. The window is clamped to the 10-16 band used by the
// chain view and to the bounds of the list.
func ChainWindow(strikes []float64, spot float64, n int) []float64 {
	if len(strikes) == 0 {
		return nil
	}
	if n < 10 {
		n = 10
	}
	if n > 16 {
		n = 16
	}

	sorted := make([]float64, len(strikes))
	copy(sorted, strikes)
	sort.Float64s(sorted)

	// ATM index: nearest strike, lower wins ties.
	atm := 0
	best := math.Abs(sorted[0] - spot)
	for i := 1; i < len(sorted); i++ {
		d := math.Abs(sorted[i] - spot)
		if d < best {
			best = d
			atm = i
		}
	}

	lo := atm - n
	if lo < 0 {
		lo = 0
	}
	hi := atm + n + 1
	if hi > len(sorted) {
		hi = len(sorted)
	}
	return sorted[lo:hi]
}

// Moneyness classifies a strike relative to spot for the given option type.
func Moneyness(strike, spot float64, optionType string) string {
	switch {
	case strike == spot:
		return "ATM"
	case optionType == "CE" && strike < spot, optionType == "PE" && strike > spot:
		return "ITM"
	default:
		return "OTM"
	}
}
