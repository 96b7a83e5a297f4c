package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nifty-paper/internal/models"
	"nifty-paper/internal/store"
	"nifty-paper/pkg/utils"
)

// Timeframes maps timeframe identifiers to their bucket durations. The daily
// timeframe is handled separately since a trading day is not 24 hours.
var Timeframes = map[string]time.Duration{
	models.Timeframe1m:  time.Minute,
	models.Timeframe5m:  5 * time.Minute,
	models.Timeframe15m: 15 * time.Minute,
	models.Timeframe1h:  time.Hour,
}

// ValidTimeframe reports whether the identifier is a supported timeframe.
func ValidTimeframe(tf string) bool {
	if tf == models.Timeframe1d {
		return true
	}
	_, ok := Timeframes[tf]
	return ok
}

// BucketStart truncates a timestamp to the start of its candle bucket.
func BucketStart(t time.Time, tf string) time.Time {
	if tf == models.Timeframe1d {
		year, month, day := t.In(utils.IndiaLocation).Date()
		return time.Date(year, month, day, 0, 0, 0, 0, utils.IndiaLocation)
	}
	return t.Truncate(Timeframes[tf])
}

// bucket is an in-progress candle for one symbol and timeframe.
type bucket struct {
	start  time.Time
	candle models.Candle
	// lastVolume tracks the session cumulative volume so tick deltas can
	// be attributed to the bucket.
	lastVolume int64
}

// CandleBuilder aggregates ticks into candles and flushes completed buckets
// to the store. It implements stream.Consumer.
type CandleBuilder struct {
	store  store.DataStore
	logger zerolog.Logger

	mu      sync.Mutex
	buckets map[string]map[string]*bucket // timeframe -> symbol -> bucket
}

// NewCandleBuilder creates a candle builder backed by the store.
func NewCandleBuilder(dataStore store.DataStore, logger zerolog.Logger) *CandleBuilder {
	buckets := make(map[string]map[string]*bucket)
	for tf := range Timeframes {
		buckets[tf] = make(map[string]*bucket)
	}
	buckets[models.Timeframe1d] = make(map[string]*bucket)

	return &CandleBuilder{
		store:   dataStore,
		logger:  logger.With().Str("component", "candles").Logger(),
		buckets: buckets,
	}
}

// Symbols implements stream.Consumer. The builder aggregates every symbol.
func (b *CandleBuilder) Symbols() []string { return nil }

// OnTick implements stream.Consumer.
func (b *CandleBuilder) OnTick(tick models.Tick) {
	var flush []flushItem

	b.mu.Lock()
	for tf, symbols := range b.buckets {
		start := BucketStart(tick.Timestamp, tf)
		cur, ok := symbols[tick.Symbol]
		if !ok || !cur.start.Equal(start) {
			if ok {
				flush = append(flush, flushItem{symbol: tick.Symbol, timeframe: tf, candle: cur.candle})
			}
			symbols[tick.Symbol] = &bucket{
				start: start,
				candle: models.Candle{
					Symbol:    tick.Symbol,
					Timeframe: tf,
					Timestamp: start,
					Open:      tick.LTP,
					High:      tick.LTP,
					Low:       tick.LTP,
					Close:     tick.LTP,
				},
				lastVolume: tick.Volume,
			}
			continue
		}

		c := &cur.candle
		if tick.LTP > c.High {
			c.High = tick.LTP
		}
		if tick.LTP < c.Low {
			c.Low = tick.LTP
		}
		c.Close = tick.LTP
		if delta := tick.Volume - cur.lastVolume; delta > 0 {
			c.Volume += delta
		}
		cur.lastVolume = tick.Volume
	}
	b.mu.Unlock()

	for _, item := range flush {
		b.save(item)
	}
}

type flushItem struct {
	symbol    string
	timeframe string
	candle    models.Candle
}

func (b *CandleBuilder) save(item flushItem) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := b.store.SaveCandles(ctx, item.symbol, item.timeframe, []models.Candle{item.candle})
	if err != nil {
		b.logger.Error().Err(err).
			Str("symbol", item.symbol).
			Str("timeframe", item.timeframe).
			Msg("Failed to save candle")
	}
}

// Flush persists every in-progress bucket. Called on shutdown so partial
// candles are not lost.
func (b *CandleBuilder) Flush() {
	b.mu.Lock()
	var items []flushItem
	for tf, symbols := range b.buckets {
		for symbol, cur := range symbols {
			items = append(items, flushItem{symbol: symbol, timeframe: tf, candle: cur.candle})
			delete(symbols, symbol)
		}
	}
	b.mu.Unlock()

	for _, item := range items {
		b.save(item)
	}
}

// Backfill generates synthetic history for the given instruments so charts
// have data before the simulator has run for long. Existing candles are
// overwritten per (symbol, timeframe, timestamp).
func Backfill(ctx context.Context, dataStore store.DataStore, catalog *Catalog, days int, logger zerolog.Logger) error {
	if days <= 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	log := logger.With().Str("component", "backfill").Logger()

	for _, inst := range catalog.All() {
		base := inst.BasePrice
		if base <= 0 {
			base = 100.0
		}

		for tf, dur := range Timeframes {
			candles := backfillSeries(rng, base, days, tf, dur)
			if err := dataStore.SaveCandles(ctx, inst.Symbol, tf, candles); err != nil {
				return err
			}
		}

		daily := backfillDaily(rng, base, days)
		if err := dataStore.SaveCandles(ctx, inst.Symbol, models.Timeframe1d, daily); err != nil {
			return err
		}
	}

	log.Info().Int("instruments", catalog.Len()).Int("days", days).Msg("Backfill complete")
	return nil
}

// backfillSeries builds an intraday random walk over the last trading days.
func backfillSeries(rng *rand.Rand, base float64, days int, tf string, dur time.Duration) []models.Candle {
	var candles []models.Candle
	price := base

	day := time.Now().In(utils.IndiaLocation)
	for d := days; d >= 1; d-- {
		session := day.AddDate(0, 0, -d)
		if wd := session.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		open := time.Date(session.Year(), session.Month(), session.Day(), 9, 15, 0, 0, utils.IndiaLocation)
		close := time.Date(session.Year(), session.Month(), session.Day(), 15, 30, 0, 0, utils.IndiaLocation)

		for ts := open; ts.Before(close); ts = ts.Add(dur) {
			o := price
			h, l := o, o
			for i := 0; i < 4; i++ {
				price *= 1 + (rng.Float64()*2-1)*0.002
				if price < 0.05 {
					price = 0.05
				}
				if price > h {
					h = price
				}
				if price < l {
					l = price
				}
			}
			candles = append(candles, models.Candle{
				Timestamp: BucketStart(ts, tf),
				Open:      o,
				High:      h,
				Low:       l,
				Close:     price,
				Volume:    rng.Int63n(100000) + 10000,
			})
		}
	}
	return candles
}

// backfillDaily builds one candle per trading day.
func backfillDaily(rng *rand.Rand, base float64, days int) []models.Candle {
	var candles []models.Candle
	price := base

	day := time.Now().In(utils.IndiaLocation)
	for d := days; d >= 1; d-- {
		session := day.AddDate(0, 0, -d)
		if wd := session.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		o := price
		h, l := o, o
		for i := 0; i < 24; i++ {
			price *= 1 + (rng.Float64()*2-1)*0.004
			if price < 0.05 {
				price = 0.05
			}
			if price > h {
				h = price
			}
			if price < l {
				l = price
			}
		}
		candles = append(candles, models.Candle{
			Timestamp: time.Date(session.Year(), session.Month(), session.Day(), 0, 0, 0, 0, utils.IndiaLocation),
			Open:      o,
			High:      h,
			Low:       l,
			Close:     price,
			Volume:    rng.Int63n(10000000) + 1000000,
		})
	}
	return candles
}
