package feed

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nifty-paper/internal/market"
	"nifty-paper/internal/models"
	"nifty-paper/internal/stream"
)

// SimulatorConfig controls the price random walk.
type SimulatorConfig struct {
	// TickIntervalMin and TickIntervalMax bound the random delay between
	// tick cycles.
	TickIntervalMin time.Duration
	TickIntervalMax time.Duration
	// MaxMovePercent is the largest single-tick move, e.g. 0.5 for 0.5%.
	MaxMovePercent float64
}

// DefaultSimulatorConfig returns the default simulator configuration.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		TickIntervalMin: 1 * time.Second,
		TickIntervalMax: 3 * time.Second,
		MaxMovePercent:  0.5,
	}
}

// quoteState tracks the running session values for one symbol.
type quoteState struct {
	ltp       float64
	open      float64
	high      float64
	low       float64
	prevClose float64
	volume    int64
}

// Simulator drives a bounded random walk over every catalog instrument and
// publishes the resulting ticks to the stream hub.
type Simulator struct {
	config  SimulatorConfig
	catalog *Catalog
	hub     *stream.Hub
	logger  zerolog.Logger
	rng     *rand.Rand

	mu     sync.RWMutex
	quotes map[string]*quoteState

	done    chan struct{}
	started bool
}

// NewSimulator creates a price simulator over the catalog.
func NewSimulator(config SimulatorConfig, catalog *Catalog, hub *stream.Hub, logger zerolog.Logger) *Simulator {
	sim := &Simulator{
		config:  config,
		catalog: catalog,
		hub:     hub,
		logger:  logger.With().Str("component", "simulator").Logger(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		quotes:  make(map[string]*quoteState),
		done:    make(chan struct{}),
	}
	sim.seed()
	return sim
}

// seed initializes every instrument's session at its base price.
func (s *Simulator) seed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, inst := range s.catalog.All() {
		base := inst.BasePrice
		if base <= 0 {
			base = 100.0
		}
		// Previous close sits slightly off the base so change percent
		// is nonzero from the first tick.
		prevClose := base * (1 - 0.002 + s.rng.Float64()*0.004)
		s.quotes[inst.Symbol] = &quoteState{
			ltp:       base,
			open:      base,
			high:      base,
			low:       base,
			prevClose: prevClose,
		}
	}
}

// Start launches the tick loop. It returns immediately.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.logger.Info().
		Int("instruments", s.catalog.Len()).
		Dur("interval_min", s.config.TickIntervalMin).
		Dur("interval_max", s.config.TickIntervalMax).
		Msg("Price simulator started")

	go s.run(ctx)
}

// Stop halts the tick loop.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	close(s.done)
	s.started = false
}

func (s *Simulator) run(ctx context.Context) {
	for {
		delay := s.nextInterval()
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-time.After(delay):
			s.tickAll()
		}
	}
}

// nextInterval picks a random delay between the configured bounds.
func (s *Simulator) nextInterval() time.Duration {
	min, max := s.config.TickIntervalMin, s.config.TickIntervalMax
	if max <= min {
		return min
	}
	s.mu.Lock()
	jitter := time.Duration(s.rng.Int63n(int64(max - min)))
	s.mu.Unlock()
	return min + jitter
}

// tickAll advances every symbol one step and publishes the ticks.
func (s *Simulator) tickAll() {
	now := time.Now()

	s.mu.Lock()
	ticks := make([]models.Tick, 0, len(s.quotes))
	for symbol, q := range s.quotes {
		move := (s.rng.Float64()*2 - 1) * s.config.MaxMovePercent / 100.0
		price := q.ltp * (1 + move)
		if price < 0.05 {
			price = 0.05
		}

		q.ltp = price
		if price > q.high {
			q.high = price
		}
		if price < q.low || q.low == 0 {
			q.low = price
		}
		q.volume += s.rng.Int63n(5000) + 100

		change, changePct := market.ChangeFromDaily(price, q.prevClose, q.prevClose, true)

		ticks = append(ticks, models.Tick{
			Symbol:        symbol,
			LTP:           price,
			Open:          q.open,
			High:          q.high,
			Low:           q.low,
			Close:         q.prevClose,
			Volume:        q.volume,
			Change:        change,
			ChangePercent: changePct,
			Timestamp:     now,
		})
	}
	s.mu.Unlock()

	for _, tick := range ticks {
		s.hub.Publish(tick)
	}
}

// Quote returns the current quote snapshot for a symbol.
func (s *Simulator) Quote(symbol string) (models.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, ok := s.quotes[symbol]
	if !ok {
		return models.Quote{}, false
	}

	change, changePct := market.ChangeFromDaily(q.ltp, q.prevClose, q.prevClose, true)
	return models.Quote{
		Symbol:        symbol,
		LTP:           q.ltp,
		Open:          q.open,
		High:          q.high,
		Low:           q.low,
		Close:         q.prevClose,
		Volume:        q.volume,
		Change:        change,
		ChangePercent: changePct,
		Timestamp:     time.Now(),
	}, true
}

// LTP returns the last traded price for a symbol, or 0 if unknown.
func (s *Simulator) LTP(symbol string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if q, ok := s.quotes[symbol]; ok {
		return q.ltp
	}
	return 0
}

// Quotes returns snapshots for the given symbols, skipping unknown ones.
func (s *Simulator) Quotes(symbols []string) []models.Quote {
	out := make([]models.Quote, 0, len(symbols))
	for _, symbol := range symbols {
		if q, ok := s.Quote(symbol); ok {
			out = append(out, q)
		}
	}
	return out
}

// RollSession resets session open, high, low and previous close. Called at
// the start of each trading day.
func (s *Simulator) RollSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range s.quotes {
		q.prevClose = q.ltp
		q.open = q.ltp
		q.high = q.ltp
		q.low = q.ltp
		q.volume = 0
	}
	s.logger.Info().Msg("Session rolled")
}
