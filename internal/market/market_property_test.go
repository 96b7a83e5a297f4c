package market

import (
	"math"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"nifty-paper/internal/models"
)

// For any avg, ltp, multiplier and signed quantity, derivative P&L must equal
// (ltp - avg) * multiplier * sign(qty) and equity P&L must equal
// (ltp - avg) * qty.
func TestPropertyPnLFormula(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("option P&L matches directional formula", prop.ForAll(
		func(avg, ltp, mult float64, qty int) bool {
			if qty == 0 {
				return true
			}
			got := UnrealizedPnL(avg, ltp, qty, mult, models.KindOption)

			sign := 1.0
			if qty < 0 {
				sign = -1.0
			}
			want := (ltp - avg) * mult * sign
			return math.Abs(got-want) < 1e-9
		},
		gen.Float64Range(1, 5000),
		gen.Float64Range(1, 5000),
		gen.Float64Range(1, 10000),
		gen.IntRange(-5000, 5000),
	))

	properties.Property("equity P&L scales linearly with quantity", prop.ForAll(
		func(avg, ltp float64, qty int) bool {
			got := UnrealizedPnL(avg, ltp, qty, 1, models.KindEquity)
			want := (ltp - avg) * float64(qty)
			return math.Abs(got-want) < 1e-9
		},
		gen.Float64Range(1, 5000),
		gen.Float64Range(1, 5000),
		gen.IntRange(-5000, 5000),
	))

	properties.Property("invalid LTP defaults to average price", prop.ForAll(
		func(avg, mult float64, qty int) bool {
			if qty == 0 {
				return true
			}
			forNaN := UnrealizedPnL(avg, math.NaN(), qty, mult, models.KindOption)
			forZero := UnrealizedPnL(avg, 0, qty, mult, models.KindOption)
			return forNaN == 0 && forZero == 0
		},
		gen.Float64Range(1, 5000),
		gen.Float64Range(1, 10000),
		gen.IntRange(-5000, 5000),
	))

	properties.Property("long and short P&L are symmetric", prop.ForAll(
		func(avg, ltp, mult float64, qty int) bool {
			if qty == 0 {
				return true
			}
			long := UnrealizedPnL(avg, ltp, qty, mult, models.KindFuture)
			short := UnrealizedPnL(avg, ltp, -qty, mult, models.KindFuture)
			return math.Abs(long+short) < 1e-9
		},
		gen.Float64Range(1, 5000),
		gen.Float64Range(1, 5000),
		gen.Float64Range(1, 10000),
		gen.IntRange(1, 5000),
	))

	properties.TestingRun(t)
}

// The two returned ATM strikes must be the two closest to spot, ascending.
func TestPropertyATMSelection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ATM pair is the two nearest strikes in ascending order", prop.ForAll(
		func(base float64, count int, spot float64) bool {
			strikes := make([]float64, count)
			for i := range strikes {
				strikes[i] = base + float64(i)*50
			}

			pair := ATMStrikes(strikes, spot)
			if len(pair) != 2 {
				return false
			}
			if pair[0] >= pair[1] {
				return false
			}

			// No excluded strike may be strictly closer than the worse of
			// the selected pair.
			worst := math.Max(math.Abs(pair[0]-spot), math.Abs(pair[1]-spot))
			for _, s := range strikes {
				if s == pair[0] || s == pair[1] {
					continue
				}
				if math.Abs(s-spot) < worst {
					return false
				}
			}
			return true
		},
		gen.Float64Range(10000, 30000),
		gen.IntRange(2, 40),
		gen.Float64Range(10000, 32000),
	))

	properties.Property("ATM selection is order independent", prop.ForAll(
		func(base float64, count int, spot float64) bool {
			strikes := make([]float64, count)
			for i := range strikes {
				strikes[i] = base + float64(i)*100
			}
			reversed := make([]float64, count)
			for i := range reversed {
				reversed[i] = strikes[count-1-i]
			}

			a := ATMStrikes(strikes, spot)
			b := ATMStrikes(reversed, spot)
			return len(a) == 2 && len(b) == 2 && a[0] == b[0] && a[1] == b[1]
		},
		gen.Float64Range(10000, 30000),
		gen.IntRange(2, 40),
		gen.Float64Range(10000, 32000),
	))

	properties.Property("chain window is sorted, bounded and contains the nearest strike", prop.ForAll(
		func(base float64, count, n int, spot float64) bool {
			strikes := make([]float64, count)
			for i := range strikes {
				strikes[i] = base + float64(i)*50
			}

			window := ChainWindow(strikes, spot, n)
			if len(window) == 0 || len(window) > 2*16+1 {
				return false
			}
			if !sort.Float64sAreSorted(window) {
				return false
			}

			// The nearest strike overall must be inside the window.
			nearest := strikes[0]
			for _, s := range strikes {
				if math.Abs(s-spot) < math.Abs(nearest-spot) {
					nearest = s
				}
			}
			for _, s := range window {
				if s == nearest {
					return true
				}
			}
			return false
		},
		gen.Float64Range(10000, 30000),
		gen.IntRange(1, 60),
		gen.IntRange(0, 30),
		gen.Float64Range(10000, 33000),
	))

	properties.TestingRun(t)
}

// Total charges must always equal the sum of the six components, with STT on
// sells only and stamp duty on buys only.
func TestPropertyChargeComposition(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("total equals component sum", prop.ForAll(
		func(notional float64, sell bool) bool {
			side := models.OrderSideBuy
			if sell {
				side = models.OrderSideSell
			}
			b := Charges(side, notional)
			sum := b.Brokerage + b.STT + b.Exchange + b.GST + b.SEBI + b.StampDuty
			return math.Abs(b.Total-sum) < 1e-9
		},
		gen.Float64Range(0, 1e9),
		gen.Bool(),
	))

	properties.Property("STT only on sells, stamp duty only on buys", prop.ForAll(
		func(notional float64) bool {
			buy := Charges(models.OrderSideBuy, notional)
			sell := Charges(models.OrderSideSell, notional)
			if buy.STT != 0 || sell.StampDuty != 0 {
				return false
			}
			if notional > 0 && (sell.STT <= 0 || buy.StampDuty <= 0) {
				return false
			}
			return true
		},
		gen.Float64Range(1, 1e9),
	))

	properties.TestingRun(t)
}

// TestChargeExamples checks the charge schedule against worked examples.
func TestChargeExamples(t *testing.T) {
	b := Charges(models.OrderSideBuy, 75000)

	testCases := []struct {
		name string
		got  float64
		want float64
	}{
		{"brokerage", b.Brokerage, 20},
		{"stt", b.STT, 0},
		{"exchange", b.Exchange, 37.5},
		{"gst", b.GST, 10.35},
		{"sebi", b.SEBI, 0.075},
		{"stamp_duty", b.StampDuty, 2.25},
		{"total", b.Total, 70.175},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if math.Abs(tc.got-tc.want) > 1e-9 {
				t.Errorf("%s = %.4f, want %.4f", tc.name, tc.got, tc.want)
			}
		})
	}

	sell := Charges(models.OrderSideSell, 75000)
	if math.Abs(sell.STT-37.5) > 1e-9 {
		t.Errorf("sell STT = %.4f, want 37.50", sell.STT)
	}
	if sell.StampDuty != 0 {
		t.Errorf("sell stamp duty = %.4f, want 0", sell.StampDuty)
	}
}

// TestATMExamples checks ATM selection on fixed strike grids.
func TestATMExamples(t *testing.T) {
	strikes := []float64{24300, 24350, 24400, 24450, 24500, 24550, 24600}

	testCases := []struct {
		name string
		spot float64
		want []float64
	}{
		{"between strikes", 24460, []float64{24450, 24500}},
		{"exact strike", 24500, []float64{24450, 24500}},
		{"equidistant prefers lower", 24475, []float64{24450, 24500}},
		{"below range", 24000, []float64{24300, 24350}},
		{"above range", 25000, []float64{24550, 24600}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ATMStrikes(strikes, tc.spot)
			if len(got) != 2 || got[0] != tc.want[0] || got[1] != tc.want[1] {
				t.Errorf("ATMStrikes(spot=%.0f) = %v, want %v", tc.spot, got, tc.want)
			}
		})
	}
}

// TestChangeFromDaily checks the open and closed market derivation branches.
func TestChangeFromDaily(t *testing.T) {
	testCases := []struct {
		name       string
		ltp        float64
		lastClose  float64
		prevClose  float64
		marketOpen bool
		wantChange float64
		wantPct    float64
	}{
		{"open uses ltp vs last close", 24600, 24500, 24400, true, 100, 100.0 / 24500 * 100},
		{"closed uses last vs previous close", 24600, 24500, 24400, false, 100, 100.0 / 24400 * 100},
		{"open with zero close", 24600, 0, 24400, true, 0, 0},
		{"closed with zero previous", 24600, 24500, 0, false, 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			change, pct := ChangeFromDaily(tc.ltp, tc.lastClose, tc.prevClose, tc.marketOpen)
			if math.Abs(change-tc.wantChange) > 1e-9 || math.Abs(pct-tc.wantPct) > 1e-9 {
				t.Errorf("ChangeFromDaily() = (%.4f, %.4f), want (%.4f, %.4f)",
					change, pct, tc.wantChange, tc.wantPct)
			}
		})
	}
}
