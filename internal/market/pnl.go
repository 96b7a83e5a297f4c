// Package market provides pure market calculations: P&L, ATM strike
// selection, statutory charges and price change derivation.
package market

import (
	"math"

	"nifty-paper/internal/models"
)

// UnrealizedPnL computes the mark-to-market P&L for a position.
// For options and futures the multiplier carries the full contract scale
// (lots times lot size) and the quantity contributes only its sign. Equity
// P&L is simply (ltp - avg) * qty. A missing or invalid LTP defaults to the
// average price, yielding zero.
func UnrealizedPnL(avgPrice, ltp float64, quantity int, multiplier float64, kind models.InstrumentKind) float64 {
	if math.IsNaN(ltp) || ltp <= 0 {
		ltp = avgPrice
	}

	switch kind {
	case models.KindOption, models.KindFuture:
		sign := 1.0
		if quantity < 0 {
			sign = -1.0
		}
		return (ltp - avgPrice) * multiplier * sign
	default:
		return (ltp - avgPrice) * float64(quantity)
	}
}

// PnLPercent computes P&L as a percentage of the invested value.
func PnLPercent(pnl, invested float64) float64 {
	if invested == 0 {
		return 0
	}
	return pnl / math.Abs(invested) * 100
}

// MarkPosition recomputes the P&L fields of a position at the given LTP.
// The position's multiplier is the per-unit lot scale, so the full contract
// scale is |qty| * multiplier.
func MarkPosition(p *models.PaperPosition, ltp float64) {
	absQty := p.Quantity
	if absQty < 0 {
		absQty = -absQty
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	scale := float64(absQty * mult)

	p.LTP = ltp
	p.PnL = UnrealizedPnL(p.AveragePrice, ltp, p.Quantity, scale, p.Kind)
	p.PnLPercent = PnLPercent(p.PnL, p.InvestedValue())
	if math.IsNaN(ltp) || ltp <= 0 {
		p.LTP = p.AveragePrice
	}
}
