package feed

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"nifty-paper/internal/models"
	"nifty-paper/internal/store"
	"nifty-paper/internal/stream"
	"nifty-paper/pkg/utils"
)

func TestCatalogBuiltin(t *testing.T) {
	catalog := NewCatalog()
	catalog.LoadBuiltin()

	// 2 indices + 2 underlyings * 33 strikes * 2 option types
	want := 2 + 2*(2*strikesPerSide+1)*2
	if catalog.Len() != want {
		t.Errorf("Catalog size = %d, want %d", catalog.Len(), want)
	}

	nifty, ok := catalog.Get("NIFTY")
	if !ok || nifty.Kind != models.KindIndex || nifty.BasePrice != NiftyBasePrice {
		t.Errorf("Unexpected NIFTY instrument: %+v", nifty)
	}

	strikes := catalog.Strikes("NIFTY")
	if len(strikes) != 2*strikesPerSide+1 {
		t.Fatalf("NIFTY strikes = %d, want %d", len(strikes), 2*strikesPerSide+1)
	}
	for i := 1; i < len(strikes); i++ {
		if strikes[i] <= strikes[i-1] {
			t.Errorf("Strikes not strictly ascending at %d: %v", i, strikes[i-1:i+1])
		}
		if strikes[i]-strikes[i-1] != NiftyStrikeStep {
			t.Errorf("NIFTY strike step = %v, want %v", strikes[i]-strikes[i-1], NiftyStrikeStep)
		}
	}

	for _, opt := range catalog.OptionsFor("BANKNIFTY") {
		if opt.LotSize != BankNiftyLotSize {
			t.Errorf("BANKNIFTY option %s lot size = %d, want %d", opt.Symbol, opt.LotSize, BankNiftyLotSize)
		}
		if opt.Exchange != models.NFO {
			t.Errorf("BANKNIFTY option %s exchange = %s, want NFO", opt.Symbol, opt.Exchange)
		}
	}
}

func TestOptionSymbol(t *testing.T) {
	expiry := time.Date(2025, 9, 9, 15, 30, 0, 0, utils.IndiaLocation)
	got := OptionSymbol("NIFTY", expiry, 24500, "CE")
	if got != "NIFTY25SEP24500CE" {
		t.Errorf("OptionSymbol = %q, want NIFTY25SEP24500CE", got)
	}
}

func TestSeedPremiumIntrinsic(t *testing.T) {
	// Deep in-the-money call carries at least its intrinsic value
	if got := seedPremium(24500, 24000, "CE"); got < 500 {
		t.Errorf("ITM call premium = %v, want >= 500", got)
	}
	// Deep out-of-the-money put still has a small floor
	if got := seedPremium(24500, 23000, "PE"); got < 5 {
		t.Errorf("OTM put premium = %v, want >= 5", got)
	}
}

func TestBucketStart(t *testing.T) {
	ts := time.Date(2025, 6, 2, 10, 37, 45, 0, time.UTC)

	tests := []struct {
		tf   string
		want time.Time
	}{
		{models.Timeframe1m, time.Date(2025, 6, 2, 10, 37, 0, 0, time.UTC)},
		{models.Timeframe5m, time.Date(2025, 6, 2, 10, 35, 0, 0, time.UTC)},
		{models.Timeframe15m, time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)},
		{models.Timeframe1h, time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := BucketStart(ts, tt.tf); !got.Equal(tt.want) {
			t.Errorf("BucketStart(%s) = %v, want %v", tt.tf, got, tt.want)
		}
	}
}

func TestValidTimeframe(t *testing.T) {
	for _, tf := range []string{"1m", "5m", "15m", "1h", "1d"} {
		if !ValidTimeframe(tf) {
			t.Errorf("ValidTimeframe(%q) = false, want true", tf)
		}
	}
	for _, tf := range []string{"2m", "30s", "1w", ""} {
		if ValidTimeframe(tf) {
			t.Errorf("ValidTimeframe(%q) = true, want false", tf)
		}
	}
}

func newFeedTestStore(t *testing.T, name string) *store.SQLiteStore {
	t.Helper()
	dbPath := name + ".db"
	t.Cleanup(func() { os.Remove(dbPath) })

	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCandleBuilderAggregatesTicks(t *testing.T) {
	s := newFeedTestStore(t, "test_feed_candles")
	builder := NewCandleBuilder(s, zerolog.Nop())

	start := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	prices := []float64{120.0, 122.5, 119.0, 121.0}
	var volume int64
	for i, p := range prices {
		volume += 1000
		builder.OnTick(models.Tick{
			Symbol:    "NIFTY",
			LTP:       p,
			Volume:    volume,
			Timestamp: start.Add(time.Duration(i) * 10 * time.Second),
		})
	}

	builder.Flush()

	ctx := context.Background()
	candles, err := s.GetCandles(ctx, "NIFTY", models.Timeframe1m, start.Add(-time.Minute), start.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetCandles failed: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("Expected one 1m candle, got %d", len(candles))
	}

	c := candles[0]
	if c.Open != 120.0 || c.High != 122.5 || c.Low != 119.0 || c.Close != 121.0 {
		t.Errorf("Unexpected OHLC: %+v", c)
	}
	if c.Volume != 3000 {
		t.Errorf("Candle volume = %d, want 3000 (deltas after the first tick)", c.Volume)
	}
}

func TestCandleBuilderRollsBuckets(t *testing.T) {
	s := newFeedTestStore(t, "test_feed_roll")
	builder := NewCandleBuilder(s, zerolog.Nop())

	start := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	builder.OnTick(models.Tick{Symbol: "BANKNIFTY", LTP: 51000, Timestamp: start})
	// Next tick lands in the following minute, which flushes the first bucket
	builder.OnTick(models.Tick{Symbol: "BANKNIFTY", LTP: 51050, Timestamp: start.Add(90 * time.Second)})

	candles, err := s.GetCandles(context.Background(), "BANKNIFTY", models.Timeframe1m, start.Add(-time.Minute), start.Add(time.Minute))
	if err != nil {
		t.Fatalf("GetCandles failed: %v", err)
	}
	if len(candles) != 1 {
		t.Fatalf("Expected flushed first-minute candle, got %d", len(candles))
	}
	if candles[0].Close != 51000 {
		t.Errorf("First candle close = %v, want 51000", candles[0].Close)
	}
}

func TestQuoteChangeAgainstPreviousClose(t *testing.T) {
	catalog := NewCatalog()
	catalog.LoadBuiltin()
	hub := stream.NewHub()
	sim := NewSimulator(DefaultSimulatorConfig(), catalog, hub, zerolog.Nop())

	sim.mu.Lock()
	q := sim.quotes["NIFTY"]
	q.prevClose = 24500
	q.ltp = 24600
	sim.mu.Unlock()

	quote, ok := sim.Quote("NIFTY")
	if !ok {
		t.Fatal("Quote(NIFTY) not found")
	}
	if quote.Change != 100 {
		t.Errorf("Change = %v, want 100", quote.Change)
	}
	wantPct := 100.0 / 24500 * 100
	if math.Abs(quote.ChangePercent-wantPct) > 1e-9 {
		t.Errorf("ChangePercent = %v, want %v", quote.ChangePercent, wantPct)
	}

	// Ticks carry the same change basis: the walk moves at most 0.5% off
	// 24600, so the gap to the 24500 close can never collapse to zero.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := hub.Start(ctx); err != nil {
		t.Fatalf("hub start failed: %v", err)
	}
	ch := hub.Subscribe("NIFTY")

	sim.tickAll()

	select {
	case tick := <-ch:
		if tick.Close != 24500 {
			t.Errorf("Tick close = %v, want 24500", tick.Close)
		}
		if tick.Change == 0 || tick.ChangePercent == 0 {
			t.Errorf("Tick change not derived: change=%v pct=%v", tick.Change, tick.ChangePercent)
		}
		if got := tick.LTP - 24500; math.Abs(tick.Change-got) > 1e-9 {
			t.Errorf("Tick change = %v, want %v", tick.Change, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("No tick received from hub")
	}
}

func TestBuildOptionChain(t *testing.T) {
	catalog := NewCatalog()
	catalog.LoadBuiltin()
	hub := stream.NewHub()
	sim := NewSimulator(DefaultSimulatorConfig(), catalog, hub, zerolog.Nop())

	chain, err := BuildOptionChain(catalog, sim, "NIFTY", 12)
	if err != nil {
		t.Fatalf("BuildOptionChain failed: %v", err)
	}

	if chain.Symbol != "NIFTY" || chain.SpotPrice <= 0 {
		t.Errorf("Unexpected chain header: %+v", chain)
	}
	if len(chain.Strikes) == 0 || len(chain.Strikes) > 12 {
		t.Errorf("Chain window size = %d, want 1..12", len(chain.Strikes))
	}
	if len(chain.ATM) != 2 {
		t.Errorf("ATM strikes = %v, want two entries", chain.ATM)
	}
	for i := 1; i < len(chain.Strikes); i++ {
		if chain.Strikes[i].Strike <= chain.Strikes[i-1].Strike {
			t.Errorf("Chain strikes not ascending at %d", i)
		}
	}
	for _, row := range chain.Strikes {
		if row.Call == nil || row.Put == nil {
			t.Errorf("Strike %v missing a leg", row.Strike)
		}
	}

	if _, err := BuildOptionChain(catalog, sim, "RELIANCE", 12); err == nil {
		t.Error("Expected error for non-index underlying")
	}
}
