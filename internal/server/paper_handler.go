package server

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"nifty-paper/internal/engine"
	apperrors "nifty-paper/internal/errors"
	"nifty-paper/internal/models"
	"nifty-paper/internal/store"
)

// PaperHandler serves paper trading endpoints: orders, positions, portfolio
// and wallet.
type PaperHandler struct {
	engine *engine.Engine
	store  store.DataStore
	logger zerolog.Logger
}

// NewPaperHandler creates a paper trading handler.
func NewPaperHandler(eng *engine.Engine, dataStore store.DataStore, logger zerolog.Logger) *PaperHandler {
	return &PaperHandler{
		engine: eng,
		store:  dataStore,
		logger: logger.With().Str("component", "paper_handler").Logger(),
	}
}

// PlaceOrder validates and executes a paper order.
func (h *PaperHandler) PlaceOrder(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	var req engine.OrderRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid request body")
	}

	order, err := h.engine.PlaceOrder(c.Request().Context(), userID, req)
	if err != nil {
		// Rejected orders are persisted; return the order alongside the
		// rejection reason so the client can render it.
		if order != nil {
			return c.JSON(statusForError(err), Response{
				Status: "error",
				Error:  err.Error(),
				Data:   order,
			})
		}
		return DomainErrorResponse(c, err)
	}
	return CreatedResponse(c, order)
}

// Orders lists the user's orders, newest first. Supports status, symbol and
// limit query filters.
func (h *PaperHandler) Orders(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	filter := store.OrderFilter{
		UserID: userID,
		Symbol: c.QueryParam("symbol"),
		Status: models.OrderStatus(c.QueryParam("status")),
		Limit:  queryInt(c, "limit", 0),
	}
	orders, err := h.store.GetOrders(c.Request().Context(), filter)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, orders)
}

// CancelOrder cancels an open order owned by the user.
func (h *PaperHandler) CancelOrder(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "invalid order id")
	}

	order, err := h.engine.CancelOrder(c.Request().Context(), userID, orderID)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, order)
}

// Trades lists the user's executed fills.
func (h *PaperHandler) Trades(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	filter := store.TradeFilter{
		UserID: userID,
		Symbol: c.QueryParam("symbol"),
		Limit:  queryInt(c, "limit", 0),
	}
	trades, err := h.store.GetTrades(c.Request().Context(), filter)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, trades)
}

// Positions returns the user's open positions marked to live prices.
func (h *PaperHandler) Positions(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	positions, err := h.engine.Positions(c.Request().Context(), userID)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, positions)
}

// Portfolio returns the user's portfolio summary.
func (h *PaperHandler) Portfolio(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	summary, err := h.engine.Portfolio(c.Request().Context(), userID)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, summary)
}

// Wallet returns the user's wallet.
func (h *PaperHandler) Wallet(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	wallet, err := h.store.GetWallet(c.Request().Context(), userID)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	if wallet == nil {
		return DomainErrorResponse(c, apperrors.ErrDataNotFound)
	}
	return SuccessResponse(c, wallet)
}

// WalletTransactions returns the user's wallet audit trail, newest first.
func (h *PaperHandler) WalletTransactions(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	txns, err := h.store.GetWalletTransactions(c.Request().Context(), userID, queryInt(c, "limit", 50))
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, txns)
}

// AmountRequest carries a deposit or withdrawal amount.
type AmountRequest struct {
	Amount float64 `json:"amount"`
}

// Deposit adds funds to the user's wallet.
func (h *PaperHandler) Deposit(c echo.Context) error {
	return h.moveFunds(c, h.engine.Deposit)
}

// Withdraw removes funds from the user's wallet.
func (h *PaperHandler) Withdraw(c echo.Context) error {
	return h.moveFunds(c, h.engine.Withdraw)
}

func (h *PaperHandler) moveFunds(c echo.Context, fn func(ctx context.Context, userID uuid.UUID, amount float64) (*models.Wallet, error)) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	var req AmountRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid request body")
	}

	wallet, err := fn(c.Request().Context(), userID, req.Amount)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, wallet)
}
