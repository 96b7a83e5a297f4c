package client

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"nifty-paper/internal/models"
)

const watchlistRefreshInterval = 30 * time.Second

// WatchlistStore mirrors the user's server-side watchlist locally. Live
// updates arrive over the WebSocket tick stream; a periodic REST refresh
// keeps the list authoritative when the stream is down or symbols change
// from another session.
type WatchlistStore struct {
	rest   *REST
	ws     *WS
	logger zerolog.Logger

	mu        sync.RWMutex
	quotes    map[string]models.Quote
	listeners []func(models.Quote)
}

// NewWatchlistStore creates a watchlist store over the given clients. The
// WebSocket client may be nil, in which case only polling updates apply.
func NewWatchlistStore(rest *REST, ws *WS, logger zerolog.Logger) *WatchlistStore {
	return &WatchlistStore{
		rest:   rest,
		ws:     ws,
		logger: logger.With().Str("component", "watchlist").Logger(),
		quotes: make(map[string]models.Quote),
	}
}

// OnUpdate registers a listener called with every quote change. Must be
// called before Start.
func (w *WatchlistStore) OnUpdate(fn func(models.Quote)) {
	w.listeners = append(w.listeners, fn)
}

// Start loads the watchlist, subscribes to its symbols and keeps it fresh
// until ctx is cancelled.
func (w *WatchlistStore) Start(ctx context.Context) error {
	if err := w.refresh(ctx); err != nil {
		return err
	}

	if w.ws != nil {
		go w.consumeTicks(ctx)
	}
	go w.pollLoop(ctx)
	return nil
}

// Add puts a symbol on the watchlist, server-side and locally.
func (w *WatchlistStore) Add(ctx context.Context, symbol string) error {
	if err := w.rest.AddToWatchlist(ctx, symbol); err != nil {
		return err
	}
	return w.refresh(ctx)
}

// Remove drops a symbol from the watchlist.
func (w *WatchlistStore) Remove(ctx context.Context, symbol string) error {
	if err := w.rest.RemoveFromWatchlist(ctx, symbol); err != nil {
		return err
	}

	w.mu.Lock()
	delete(w.quotes, symbol)
	w.mu.Unlock()

	if w.ws != nil {
		w.ws.Unsubscribe(symbol)
	}
	return nil
}

// Quotes returns the current watchlist quotes sorted by symbol.
func (w *WatchlistStore) Quotes() []models.Quote {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]models.Quote, 0, len(w.quotes))
	for _, q := range w.quotes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols returns the watched symbols sorted.
func (w *WatchlistStore) Symbols() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]string, 0, len(w.quotes))
	for s := range w.quotes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (w *WatchlistStore) refresh(ctx context.Context) error {
	entries, err := w.rest.Watchlist(ctx)
	if err != nil {
		return err
	}

	fresh := make(map[string]models.Quote, len(entries))
	var symbols []string
	for _, e := range entries {
		symbols = append(symbols, e.Symbol)
		if e.Quote != nil {
			fresh[e.Symbol] = *e.Quote
		} else {
			fresh[e.Symbol] = models.Quote{Symbol: e.Symbol}
		}
	}

	w.mu.Lock()
	w.quotes = fresh
	listeners := w.listeners
	w.mu.Unlock()

	if w.ws != nil && len(symbols) > 0 {
		w.ws.Subscribe(symbols...)
	}

	for _, q := range fresh {
		for _, fn := range listeners {
			fn(q)
		}
	}
	return nil
}

func (w *WatchlistStore) consumeTicks(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-w.ws.Ticks():
			if !ok {
				return
			}
			w.applyTick(tick)
		}
	}
}

func (w *WatchlistStore) applyTick(tick models.Tick) {
	w.mu.Lock()
	if _, watched := w.quotes[tick.Symbol]; !watched {
		w.mu.Unlock()
		return
	}
	quote := models.Quote{
		Symbol:        tick.Symbol,
		LTP:           tick.LTP,
		Open:          tick.Open,
		High:          tick.High,
		Low:           tick.Low,
		Close:         tick.Close,
		Volume:        tick.Volume,
		Change:        tick.Change,
		ChangePercent: tick.ChangePercent,
		Timestamp:     tick.Timestamp,
	}
	w.quotes[tick.Symbol] = quote
	listeners := w.listeners
	w.mu.Unlock()

	for _, fn := range listeners {
		fn(quote)
	}
}

func (w *WatchlistStore) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(watchlistRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.refresh(ctx); err != nil {
				w.logger.Warn().Err(err).Msg("watchlist refresh failed")
			}
		}
	}
}
