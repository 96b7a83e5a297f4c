package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	apperrors "nifty-paper/internal/errors"
	"nifty-paper/internal/feed"
	"nifty-paper/internal/models"
	"nifty-paper/internal/store"
)

const defaultChainStrikes = 12

// MarketHandler serves quotes, candles, the options chain and watchlists.
type MarketHandler struct {
	store   store.DataStore
	catalog *feed.Catalog
	sim     *feed.Simulator
	logger  zerolog.Logger
}

// NewMarketHandler creates a market data handler.
func NewMarketHandler(dataStore store.DataStore, catalog *feed.Catalog, sim *feed.Simulator, logger zerolog.Logger) *MarketHandler {
	return &MarketHandler{
		store:   dataStore,
		catalog: catalog,
		sim:     sim,
		logger:  logger.With().Str("component", "market_handler").Logger(),
	}
}

// Quotes returns live quotes for a comma-separated symbols query.
func (h *MarketHandler) Quotes(c echo.Context) error {
	raw := c.QueryParam("symbols")
	var symbols []string
	if raw == "" {
		for _, inst := range h.catalog.Indices() {
			symbols = append(symbols, inst.Symbol)
		}
	} else {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				symbols = append(symbols, s)
			}
		}
	}
	return SuccessResponse(c, h.sim.Quotes(symbols))
}

// Quote returns the live quote for a single symbol.
func (h *MarketHandler) Quote(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))
	quote, ok := h.sim.Quote(symbol)
	if !ok {
		return DomainErrorResponse(c, apperrors.ErrSymbolNotFound)
	}
	return SuccessResponse(c, quote)
}

// Instruments lists tradeable instruments, optionally filtered to one
// underlying's options.
func (h *MarketHandler) Instruments(c echo.Context) error {
	if underlying := strings.ToUpper(c.QueryParam("underlying")); underlying != "" {
		return SuccessResponse(c, h.catalog.OptionsFor(underlying))
	}
	return SuccessResponse(c, h.catalog.All())
}

// Candles returns historical candles for a symbol. The timeframe query
// defaults to 5m; from/to accept RFC3339 timestamps, otherwise the most
// recent candles are returned up to limit.
func (h *MarketHandler) Candles(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))
	if !h.catalog.Has(symbol) {
		return DomainErrorResponse(c, apperrors.ErrSymbolNotFound)
	}

	timeframe := c.QueryParam("timeframe")
	if timeframe == "" {
		timeframe = "5m"
	}
	if !feed.ValidTimeframe(timeframe) {
		return BadRequestResponse(c, "invalid timeframe: "+timeframe)
	}

	ctx := c.Request().Context()

	fromStr, toStr := c.QueryParam("from"), c.QueryParam("to")
	if fromStr != "" || toStr != "" {
		from, err := parseTimeParam(fromStr, time.Time{})
		if err != nil {
			return BadRequestResponse(c, "invalid from timestamp")
		}
		to, err := parseTimeParam(toStr, time.Now())
		if err != nil {
			return BadRequestResponse(c, "invalid to timestamp")
		}
		candles, err := h.store.GetCandles(ctx, symbol, timeframe, from, to)
		if err != nil {
			return DomainErrorResponse(c, err)
		}
		return SuccessResponse(c, candles)
	}

	limit := queryInt(c, "limit", 0)
	candles, err := h.store.GetRecentCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, candles)
}

// OptionChain returns the strike window around the live spot price for an
// index underlying.
func (h *MarketHandler) OptionChain(c echo.Context) error {
	underlying := strings.ToUpper(c.Param("symbol"))
	n := queryInt(c, "strikes", defaultChainStrikes)

	chain, err := feed.BuildOptionChain(h.catalog, h.sim, underlying, n)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, chain)
}

// WatchlistEntry pairs a watched symbol with its live quote.
type WatchlistEntry struct {
	Symbol string        `json:"symbol"`
	Quote  *models.Quote `json:"quote,omitempty"`
}

// Watchlist returns the user's watched symbols with live quotes.
func (h *MarketHandler) Watchlist(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	symbols, err := h.store.GetWatchlist(c.Request().Context(), userID)
	if err != nil {
		return DomainErrorResponse(c, err)
	}

	entries := make([]WatchlistEntry, 0, len(symbols))
	for _, symbol := range symbols {
		entry := WatchlistEntry{Symbol: symbol}
		if quote, ok := h.sim.Quote(symbol); ok {
			entry.Quote = &quote
		}
		entries = append(entries, entry)
	}
	return SuccessResponse(c, entries)
}

// AddToWatchlist adds a symbol to the user's watchlist.
func (h *MarketHandler) AddToWatchlist(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid request body")
	}

	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if !h.catalog.Has(symbol) {
		return DomainErrorResponse(c, apperrors.ErrSymbolNotFound)
	}

	if err := h.store.AddToWatchlist(c.Request().Context(), userID, symbol); err != nil {
		return DomainErrorResponse(c, err)
	}
	return CreatedResponse(c, WatchlistEntry{Symbol: symbol})
}

// RemoveFromWatchlist removes a symbol from the user's watchlist.
func (h *MarketHandler) RemoveFromWatchlist(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	if err := h.store.RemoveFromWatchlist(c.Request().Context(), userID, symbol); err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessMessageResponse(c, "removed", nil)
}

func parseTimeParam(value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	return time.Parse(time.RFC3339, value)
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
