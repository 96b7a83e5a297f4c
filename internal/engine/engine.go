// Package engine implements the paper trading engine: order validation and
// execution, position and wallet bookkeeping, and portfolio aggregation.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"nifty-paper/internal/config"
	apperrors "nifty-paper/internal/errors"
	"nifty-paper/internal/feed"
	"nifty-paper/internal/market"
	"nifty-paper/internal/models"
	"nifty-paper/internal/store"
	"nifty-paper/pkg/utils"
)

// QuoteSource supplies last traded prices for execution and marking.
type QuoteSource interface {
	LTP(symbol string) float64
}

// OrderRequest is the input for placing a paper order.
// For options and futures Quantity is the number of lots.
type OrderRequest struct {
	Symbol   string             `json:"symbol"`
	Side     models.OrderSide   `json:"side"`
	Type     models.OrderType   `json:"type"`
	Product  models.ProductType `json:"product"`
	Quantity int                `json:"quantity"`
	Price    float64            `json:"price,omitempty"`
}

// Engine executes paper orders against simulated prices and persists the
// resulting orders, trades, positions and wallet movements.
type Engine struct {
	store   store.DataStore
	catalog *feed.Catalog
	quotes  QuoteSource
	config  config.TradingConfig
	logger  zerolog.Logger

	// Serializes order execution so wallet and position updates for a
	// user never interleave.
	mu sync.Mutex

	onFill func(order *models.PaperOrder)
}

// SetFillListener registers a callback invoked after each completed fill,
// including fills of resting limit orders. Must be set before Run starts.
func (e *Engine) SetFillListener(fn func(order *models.PaperOrder)) {
	e.onFill = fn
}

// New creates a paper trading engine.
func New(dataStore store.DataStore, catalog *feed.Catalog, quotes QuoteSource, cfg config.TradingConfig, logger zerolog.Logger) *Engine {
	return &Engine{
		store:   dataStore,
		catalog: catalog,
		quotes:  quotes,
		config:  cfg,
		logger:  logger.With().Str("component", "engine").Logger(),
	}
}

// PlaceOrder validates and executes an order. Market orders fill at the
// current LTP. Limit orders fill immediately if marketable, otherwise they
// rest until the price crosses the limit.
func (e *Engine) PlaceOrder(ctx context.Context, userID uuid.UUID, req OrderRequest) (*models.PaperOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	inst, err := e.validate(ctx, userID, &req)
	if err != nil {
		return nil, err
	}

	ltp := e.quotes.LTP(req.Symbol)
	if ltp <= 0 {
		return nil, apperrors.NewDataError("quote", req.Symbol, "no price available", apperrors.ErrSymbolNotFound)
	}

	order := &models.PaperOrder{
		ID:       uuid.New(),
		UserID:   userID,
		Symbol:   req.Symbol,
		Exchange: inst.Exchange,
		Side:     req.Side,
		Type:     req.Type,
		Product:  req.Product,
		Quantity: req.Quantity,
		Price:    req.Price,
		Status:   models.OrderStatusOpen,
		PlacedAt: time.Now(),
	}

	execPrice, marketable := executionPrice(order, ltp)

	if marketable {
		if err := e.fill(ctx, order, inst, execPrice); err != nil {
			// A rejected order is persisted with its reason; hand it back
			// so callers can show why.
			if order.Status == models.OrderStatusRejected {
				return order, err
			}
			return nil, err
		}
	} else {
		// Resting limit order still needs the funds check so it cannot
		// fill later into a balance it never had.
		if order.Side == models.OrderSideBuy {
			if err := e.checkFunds(ctx, userID, order, inst, order.Price); err != nil {
				if !apperrors.Is(err, apperrors.ErrOrderRejected) {
					return nil, err
				}
				order.Status = models.OrderStatusRejected
				order.Reason = "insufficient funds"
				if saveErr := e.store.SaveOrder(ctx, order); saveErr != nil {
					return nil, apperrors.Wrap(saveErr, "failed to persist rejected order")
				}
				return order, err
			}
		}
		if err := e.store.SaveOrder(ctx, order); err != nil {
			return nil, apperrors.Wrap(err, "failed to persist order")
		}
	}

	e.logger.Info().
		Str("order_id", order.ID.String()).
		Str("user_id", userID.String()).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Str("type", string(order.Type)).
		Int("quantity", order.Quantity).
		Str("status", string(order.Status)).
		Msg("Order placed")

	return order, nil
}

// executionPrice decides whether the order fills now and at what price.
func executionPrice(order *models.PaperOrder, ltp float64) (float64, bool) {
	if order.Type == models.OrderTypeMarket {
		return ltp, true
	}
	if order.Side == models.OrderSideBuy && ltp <= order.Price {
		return ltp, true
	}
	if order.Side == models.OrderSideSell && ltp >= order.Price {
		return ltp, true
	}
	return 0, false
}

// validate applies the order acceptance rules and resolves the instrument.
func (e *Engine) validate(ctx context.Context, userID uuid.UUID, req *OrderRequest) (models.Instrument, error) {
	var inst models.Instrument

	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		return inst, apperrors.NewValidationError("symbol", req.Symbol, "symbol is required")
	}

	inst, ok := e.catalog.Get(req.Symbol)
	if !ok {
		return inst, apperrors.ErrSymbolNotFound
	}
	if inst.Kind == models.KindIndex {
		return inst, apperrors.NewValidationError("symbol", req.Symbol, "indices are not tradeable, trade their options")
	}

	if req.Side != models.OrderSideBuy && req.Side != models.OrderSideSell {
		return inst, apperrors.NewValidationError("side", req.Side, "must be BUY or SELL")
	}
	if req.Type != models.OrderTypeMarket && req.Type != models.OrderTypeLimit {
		return inst, apperrors.NewValidationError("type", req.Type, "must be MARKET or LIMIT")
	}
	if req.Product == "" {
		req.Product = e.config.DefaultProduct
	}
	if req.Quantity <= 0 {
		return inst, apperrors.NewValidationError("quantity", req.Quantity, "must be positive")
	}
	if req.Type == models.OrderTypeLimit && req.Price <= 0 {
		return inst, apperrors.NewValidationError("price", req.Price, "limit orders require a positive price")
	}

	if e.config.EnforceHours && !utils.IsMarketOpen() {
		return inst, apperrors.ErrMarketClosed
	}

	refPrice := e.quotes.LTP(req.Symbol)
	if req.Type == models.OrderTypeLimit {
		refPrice = req.Price
	}
	notional := refPrice * float64(req.Quantity*inst.Multiplier())

	if notional < e.config.MinOrderValue {
		return inst, apperrors.NewRiskError("min_order_value", notional, e.config.MinOrderValue,
			fmt.Sprintf("order value below minimum %s", utils.FormatIndianCurrency(e.config.MinOrderValue)))
	}
	if notional > e.config.MaxPositionSize {
		return inst, apperrors.NewRiskError("max_position_size", notional, e.config.MaxPositionSize,
			fmt.Sprintf("order value above maximum %s", utils.FormatIndianCurrency(e.config.MaxPositionSize)))
	}

	dayStart := utils.TradingDayStart(time.Now())
	count, err := e.store.CountOrdersSince(ctx, userID, dayStart)
	if err != nil {
		return inst, apperrors.Wrap(err, "failed to count orders")
	}
	if count >= e.config.MaxOrdersPerDay {
		return inst, apperrors.NewRiskError("max_orders_per_day", float64(count), float64(e.config.MaxOrdersPerDay),
			"daily order limit reached")
	}

	return inst, nil
}

// checkFunds verifies the wallet covers notional plus charges for a buy.
func (e *Engine) checkFunds(ctx context.Context, userID uuid.UUID, order *models.PaperOrder, inst models.Instrument, price float64) error {
	wallet, err := e.store.GetWallet(ctx, userID)
	if err != nil {
		return apperrors.Wrap(err, "failed to load wallet")
	}
	if wallet == nil {
		return apperrors.ErrDataNotFound
	}

	notional := price * float64(order.Quantity*inst.Multiplier())
	cost := notional + market.TotalCharges(order.Side, notional)
	if !wallet.CanAfford(cost) {
		return apperrors.NewRiskError("insufficient_funds", wallet.Balance, cost,
			fmt.Sprintf("need %s to place this order", utils.FormatIndianCurrency(cost)))
	}
	return nil
}

// fill executes the order at the given price: charges, wallet movement,
// position update and trade record, all persisted.
func (e *Engine) fill(ctx context.Context, order *models.PaperOrder, inst models.Instrument, price float64) error {
	userID := order.UserID
	notional := price * float64(order.Quantity*inst.Multiplier())
	charges := market.TotalCharges(order.Side, notional)

	wallet, err := e.store.GetWallet(ctx, userID)
	if err != nil {
		return apperrors.Wrap(err, "failed to load wallet")
	}
	if wallet == nil {
		return apperrors.ErrDataNotFound
	}

	if order.Side == models.OrderSideBuy {
		cost := notional + charges
		if !wallet.CanAfford(cost) {
			order.Status = models.OrderStatusRejected
			order.Reason = "insufficient funds"
			if saveErr := e.store.SaveOrder(ctx, order); saveErr != nil {
				return apperrors.Wrap(saveErr, "failed to persist rejected order")
			}
			return apperrors.NewRiskError("insufficient_funds", wallet.Balance, cost,
				fmt.Sprintf("need %s to place this order", utils.FormatIndianCurrency(cost)))
		}
	}

	realized, err := e.applyPosition(ctx, order, inst, price)
	if err != nil {
		return err
	}

	now := time.Now()
	order.Status = models.OrderStatusComplete
	order.AveragePrice = price
	order.FilledQty = order.Quantity
	order.Charges = charges
	order.FilledAt = &now

	var amount float64
	var txnType models.WalletTxnType
	if order.Side == models.OrderSideBuy {
		amount = -(notional + charges)
		txnType = models.TxnOrderDebit
	} else {
		amount = notional - charges
		txnType = models.TxnOrderCredit
	}
	wallet.Balance += amount
	wallet.UpdatedAt = now

	txn := &models.WalletTransaction{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      txnType,
		Amount:    amount,
		Balance:   wallet.Balance,
		Reference: order.ID.String(),
		CreatedAt: now,
	}
	if err := e.store.UpdateWallet(ctx, wallet, txn); err != nil {
		return apperrors.Wrap(err, "failed to update wallet")
	}

	if err := e.store.SaveOrder(ctx, order); err != nil {
		return apperrors.Wrap(err, "failed to persist order")
	}

	trade := &models.PaperTrade{
		ID:         uuid.New(),
		OrderID:    order.ID,
		UserID:     userID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Quantity:   order.Quantity,
		Price:      price,
		Charges:    charges,
		PnL:        realized,
		ExecutedAt: now,
	}
	if err := e.store.SaveTrade(ctx, trade); err != nil {
		return apperrors.Wrap(err, "failed to persist trade")
	}

	e.logger.Info().
		Str("order_id", order.ID.String()).
		Str("symbol", order.Symbol).
		Float64("price", price).
		Float64("charges", charges).
		Float64("realized_pnl", realized).
		Msg("Order filled")

	if e.onFill != nil {
		e.onFill(order)
	}
	return nil
}

// applyPosition folds the fill into the user's position and returns the
// realized P&L for the reducing part, if any.
func (e *Engine) applyPosition(ctx context.Context, order *models.PaperOrder, inst models.Instrument, price float64) (float64, error) {
	pos, err := e.store.GetPosition(ctx, order.UserID, order.Symbol, order.Product)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to load position")
	}

	signedQty := order.Quantity
	if order.Side == models.OrderSideSell {
		signedQty = -signedQty
	}

	if pos == nil {
		pos = &models.PaperPosition{
			ID:           uuid.New(),
			UserID:       order.UserID,
			Symbol:       order.Symbol,
			Exchange:     inst.Exchange,
			Product:      order.Product,
			Kind:         inst.Kind,
			Multiplier:   inst.Multiplier(),
			AveragePrice: price,
		}
	}

	oldQty := pos.Quantity
	newQty := oldQty + signedQty
	var realized float64

	switch {
	case oldQty == 0:
		pos.AveragePrice = price
	case sameSign(oldQty, signedQty):
		// Adding to the position moves the average price
		total := pos.AveragePrice*absF(oldQty) + price*absF(signedQty)
		pos.AveragePrice = total / absF(newQty)
	default:
		// Reducing or flipping realizes P&L on the closed part
		closed := minInt(abs(oldQty), abs(signedQty))
		perUnit := price - pos.AveragePrice
		if oldQty < 0 {
			perUnit = pos.AveragePrice - price
		}
		mult := pos.Multiplier
		if mult <= 0 {
			mult = 1
		}
		realized = perUnit * float64(closed*mult)
		pos.RealizedPnL += realized

		if newQty != 0 && !sameSign(oldQty, newQty) {
			// Flipped through zero, remainder opens at the fill price
			pos.AveragePrice = price
		}
	}

	pos.Quantity = newQty
	pos.LTP = price
	pos.UpdatedAt = time.Now()

	if newQty == 0 {
		if err := e.store.DeletePosition(ctx, order.UserID, order.Symbol, order.Product); err != nil {
			return realized, apperrors.Wrap(err, "failed to close position")
		}
		return realized, nil
	}

	if err := e.store.UpsertPosition(ctx, pos); err != nil {
		return realized, apperrors.Wrap(err, "failed to persist position")
	}
	return realized, nil
}

// CancelOrder cancels a user's resting order.
func (e *Engine) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.PaperOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load order")
	}
	if order == nil {
		return nil, apperrors.ErrDataNotFound
	}
	if order.UserID != userID {
		return nil, apperrors.ErrForbidden
	}
	if order.Status != models.OrderStatusOpen {
		return nil, apperrors.ErrOrderNotOpen
	}

	order.Status = models.OrderStatusCancelled
	order.Reason = "cancelled by user"
	if err := e.store.UpdateOrder(ctx, order); err != nil {
		return nil, apperrors.Wrap(err, "failed to update order")
	}

	e.logger.Info().Str("order_id", orderID.String()).Msg("Order cancelled")
	return order, nil
}

// Run periodically matches resting limit orders against current prices
// until the context is cancelled.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.MatchOpenOrders(ctx)
		}
	}
}

// MatchOpenOrders fills resting limit orders whose limit price has been
// crossed.
func (e *Engine) MatchOpenOrders(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	orders, err := e.store.GetOpenOrders(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to load open orders")
		return
	}

	for i := range orders {
		order := &orders[i]
		ltp := e.quotes.LTP(order.Symbol)
		if ltp <= 0 {
			continue
		}
		execPrice, marketable := executionPrice(order, ltp)
		if !marketable {
			continue
		}

		inst, ok := e.catalog.Get(order.Symbol)
		if !ok {
			continue
		}
		if err := e.fill(ctx, order, inst, execPrice); err != nil {
			// Funds may have been spent since placement; reject instead
			// of leaving the order resting forever.
			if apperrors.Is(err, apperrors.ErrOrderRejected) {
				continue
			}
			e.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("Failed to fill resting order")
		}
	}
}

// Positions returns the user's open positions marked at current prices.
func (e *Engine) Positions(ctx context.Context, userID uuid.UUID) ([]models.PaperPosition, error) {
	positions, err := e.store.GetPositions(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load positions")
	}
	for i := range positions {
		market.MarkPosition(&positions[i], e.quotes.LTP(positions[i].Symbol))
	}
	return positions, nil
}

// Portfolio aggregates the user's wallet and marked positions.
func (e *Engine) Portfolio(ctx context.Context, userID uuid.UUID) (*models.PortfolioSummary, error) {
	wallet, err := e.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load wallet")
	}
	if wallet == nil {
		return nil, apperrors.ErrDataNotFound
	}

	positions, err := e.Positions(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &models.PortfolioSummary{
		UserID:        userID,
		WalletBalance: wallet.Balance,
	}
	for _, pos := range positions {
		summary.InvestedValue += pos.InvestedValue()
		summary.CurrentValue += pos.CurrentValue()
		summary.UnrealizedPnL += pos.PnL
		summary.OpenPositions++
	}

	dayStart := utils.TradingDayStart(time.Now())
	trades, err := e.store.GetTrades(ctx, store.TradeFilter{UserID: userID, StartDate: dayStart})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load trades")
	}
	for _, trade := range trades {
		summary.RealizedPnL += trade.PnL
		summary.TotalCharges += trade.Charges
	}

	ordersToday, err := e.store.CountOrdersSince(ctx, userID, dayStart)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count orders")
	}
	summary.OrdersToday = ordersToday

	summary.TotalValue = summary.WalletBalance + summary.InvestedValue + summary.UnrealizedPnL
	summary.PnLPercent = market.PnLPercent(summary.TotalValue-e.config.InitialBalance, e.config.InitialBalance)

	return summary, nil
}

// Deposit adds simulated funds to the wallet.
func (e *Engine) Deposit(ctx context.Context, userID uuid.UUID, amount float64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, apperrors.NewValidationError("amount", amount, "must be positive")
	}
	return e.moveFunds(ctx, userID, amount, models.TxnDeposit)
}

// Withdraw removes simulated funds from the wallet.
func (e *Engine) Withdraw(ctx context.Context, userID uuid.UUID, amount float64) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, apperrors.NewValidationError("amount", amount, "must be positive")
	}
	return e.moveFunds(ctx, userID, -amount, models.TxnWithdrawal)
}

func (e *Engine) moveFunds(ctx context.Context, userID uuid.UUID, amount float64, txnType models.WalletTxnType) (*models.Wallet, error) {

	e.mu.Lock()
	defer e.mu.Unlock()

	wallet, err := e.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load wallet")
	}
	if wallet == nil {
		return nil, apperrors.ErrDataNotFound
	}
	if amount < 0 && !wallet.CanAfford(-amount) {
		return nil, apperrors.ErrInsufficientFunds
	}

	now := time.Now()
	wallet.Balance += amount
	wallet.UpdatedAt = now
	if amount > 0 {
		wallet.TotalDeposits += amount
	} else {
		wallet.TotalWithdrawals += -amount
	}

	txn := &models.WalletTransaction{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      txnType,
		Amount:    amount,
		Balance:   wallet.Balance,
		CreatedAt: now,
	}
	if err := e.store.UpdateWallet(ctx, wallet, txn); err != nil {
		return nil, apperrors.Wrap(err, "failed to update wallet")
	}
	return wallet, nil
}

func sameSign(a, b int) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func absF(n int) float64 {
	return float64(abs(n))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
