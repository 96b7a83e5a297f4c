// Package client provides Go clients for the REST and WebSocket API, used by
// the CLI and available as a library.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"nifty-paper/internal/config"
	"nifty-paper/internal/engine"
	apperrors "nifty-paper/internal/errors"
	"nifty-paper/internal/models"
	"nifty-paper/internal/tournament"
)

// REST is a typed client for the HTTP API.
type REST struct {
	http  *resty.Client
	token string
}

// apiEnvelope mirrors the server's response wrapper.
type apiEnvelope struct {
	Status string          `json:"status"`
	Error  string          `json:"error"`
	Data   json.RawMessage `json:"data"`
}

// AuthResult is returned from Signup and Login.
type AuthResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// WatchlistEntry pairs a watched symbol with its live quote.
type WatchlistEntry struct {
	Symbol string        `json:"symbol"`
	Quote  *models.Quote `json:"quote,omitempty"`
}

// NewREST creates a REST client for the given base URL.
func NewREST(cfg config.ClientConfig) *REST {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &REST{http: httpClient}
}

// SetToken sets the bearer token used on authenticated calls.
func (c *REST) SetToken(token string) {
	c.token = token
}

// Token returns the current bearer token.
func (c *REST) Token() string {
	return c.token
}

func (c *REST) request(ctx context.Context) *resty.Request {
	req := c.http.R().SetContext(ctx)
	if c.token != "" {
		req.SetHeader("Authorization", "Bearer "+c.token)
	}
	return req
}

// do executes the request and decodes the data payload into out.
func (c *REST) do(req *resty.Request, method, path string, out interface{}) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return apperrors.Wrapf(err, "request %s %s failed", method, path)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return fmt.Errorf("invalid response from %s: %w", path, err)
	}

	if resp.IsError() || envelope.Status == "error" {
		// Rejected orders come back with the order in the data payload so
		// callers can surface the rejection reason.
		if out != nil && len(envelope.Data) > 0 {
			_ = json.Unmarshal(envelope.Data, out)
		}
		return apiError(resp.StatusCode(), envelope.Error)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return nil
}

// apiError maps HTTP statuses back to domain sentinels so callers can use
// errors.Is on client results the same way they do on service results.
func apiError(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	var sentinel error
	switch status {
	case http.StatusUnauthorized:
		sentinel = apperrors.ErrNotAuthenticated
	case http.StatusForbidden:
		sentinel = apperrors.ErrForbidden
	case http.StatusNotFound:
		sentinel = apperrors.ErrDataNotFound
	case http.StatusConflict, http.StatusBadRequest:
		sentinel = apperrors.ErrInputValidation
	case http.StatusUnprocessableEntity:
		sentinel = apperrors.ErrOrderRejected
	default:
		return fmt.Errorf("api error (%d): %s", status, message)
	}
	return fmt.Errorf("%s: %w", message, sentinel)
}

// Signup registers a new account and stores the returned token.
func (c *REST) Signup(ctx context.Context, username, email, password string) (*AuthResult, error) {
	var result AuthResult
	err := c.do(c.request(ctx).SetBody(map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}), http.MethodPost, "/api/auth/signup", &result)
	if err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

// Login authenticates with an email or username and stores the token.
func (c *REST) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	var result AuthResult
	err := c.do(c.request(ctx).SetBody(map[string]string{
		"identifier": identifier,
		"password":   password,
	}), http.MethodPost, "/api/auth/login", &result)
	if err != nil {
		return nil, err
	}
	c.token = result.Token
	return &result, nil
}

// Me returns the authenticated user.
func (c *REST) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(c.request(ctx), http.MethodGet, "/api/auth/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Quotes fetches live quotes for the given symbols; all indices when empty.
func (c *REST) Quotes(ctx context.Context, symbols []string) ([]models.Quote, error) {
	req := c.request(ctx)
	if len(symbols) > 0 {
		req.SetQueryParam("symbols", strings.Join(symbols, ","))
	}
	var quotes []models.Quote
	if err := c.do(req, http.MethodGet, "/api/quotes", &quotes); err != nil {
		return nil, err
	}
	return quotes, nil
}

// Candles fetches recent candles for a symbol.
func (c *REST) Candles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error) {
	req := c.request(ctx).SetQueryParam("timeframe", timeframe)
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}
	var candles []models.Candle
	if err := c.do(req, http.MethodGet, "/api/candles/"+symbol, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}

// OptionChain fetches the strike window around the live spot price.
func (c *REST) OptionChain(ctx context.Context, underlying string) (*models.OptionChain, error) {
	var chain models.OptionChain
	if err := c.do(c.request(ctx), http.MethodGet, "/api/candles/options-chain/"+underlying, &chain); err != nil {
		return nil, err
	}
	return &chain, nil
}

// Watchlist fetches the user's watchlist with live quotes.
func (c *REST) Watchlist(ctx context.Context) ([]WatchlistEntry, error) {
	var entries []WatchlistEntry
	if err := c.do(c.request(ctx), http.MethodGet, "/api/watchlist", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// AddToWatchlist adds a symbol to the watchlist.
func (c *REST) AddToWatchlist(ctx context.Context, symbol string) error {
	return c.do(c.request(ctx).SetBody(map[string]string{"symbol": symbol}), http.MethodPost, "/api/watchlist", nil)
}

// RemoveFromWatchlist removes a symbol from the watchlist.
func (c *REST) RemoveFromWatchlist(ctx context.Context, symbol string) error {
	return c.do(c.request(ctx), http.MethodDelete, "/api/watchlist/"+symbol, nil)
}

// PlaceOrder submits a paper order. On rejection the returned order carries
// the rejection reason alongside a non-nil error.
func (c *REST) PlaceOrder(ctx context.Context, req engine.OrderRequest) (*models.PaperOrder, error) {
	var order models.PaperOrder
	if err := c.do(c.request(ctx).SetBody(req), http.MethodPost, "/api/paper/orders", &order); err != nil {
		if order.Symbol != "" {
			return &order, err
		}
		return nil, err
	}
	return &order, nil
}

// Orders lists the user's orders.
func (c *REST) Orders(ctx context.Context, status string, limit int) ([]models.PaperOrder, error) {
	req := c.request(ctx)
	if status != "" {
		req.SetQueryParam("status", status)
	}
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}
	var orders []models.PaperOrder
	if err := c.do(req, http.MethodGet, "/api/paper/orders", &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CancelOrder cancels an open order.
func (c *REST) CancelOrder(ctx context.Context, orderID uuid.UUID) (*models.PaperOrder, error) {
	var order models.PaperOrder
	if err := c.do(c.request(ctx), http.MethodDelete, "/api/paper/orders/"+orderID.String(), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Positions lists open positions marked to live prices.
func (c *REST) Positions(ctx context.Context) ([]models.PaperPosition, error) {
	var positions []models.PaperPosition
	if err := c.do(c.request(ctx), http.MethodGet, "/api/paper/positions", &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// Portfolio fetches the portfolio summary.
func (c *REST) Portfolio(ctx context.Context) (*models.PortfolioSummary, error) {
	var summary models.PortfolioSummary
	if err := c.do(c.request(ctx), http.MethodGet, "/api/paper/portfolio", &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Wallet fetches the wallet.
func (c *REST) Wallet(ctx context.Context) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := c.do(c.request(ctx), http.MethodGet, "/api/paper/wallet", &wallet); err != nil {
		return nil, err
	}
	return &wallet, nil
}

// WalletTransactions fetches recent wallet transactions.
func (c *REST) WalletTransactions(ctx context.Context, limit int) ([]models.WalletTransaction, error) {
	req := c.request(ctx)
	if limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(limit))
	}
	var txns []models.WalletTransaction
	if err := c.do(req, http.MethodGet, "/api/paper/wallet/transactions", &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// Deposit adds funds to the wallet.
func (c *REST) Deposit(ctx context.Context, amount float64) (*models.Wallet, error) {
	return c.moveFunds(ctx, "/api/paper/wallet/deposit", amount)
}

// Withdraw removes funds from the wallet.
func (c *REST) Withdraw(ctx context.Context, amount float64) (*models.Wallet, error) {
	return c.moveFunds(ctx, "/api/paper/wallet/withdraw", amount)
}

func (c *REST) moveFunds(ctx context.Context, path string, amount float64) (*models.Wallet, error) {
	var wallet models.Wallet
	err := c.do(c.request(ctx).SetBody(map[string]float64{"amount": amount}), http.MethodPost, path, &wallet)
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// Tournaments lists tournaments, optionally filtered by status.
func (c *REST) Tournaments(ctx context.Context, status string) ([]models.Tournament, error) {
	req := c.request(ctx)
	if status != "" {
		req.SetQueryParam("status", status)
	}
	var tournaments []models.Tournament
	if err := c.do(req, http.MethodGet, "/api/tournaments", &tournaments); err != nil {
		return nil, err
	}
	return tournaments, nil
}

// MyTournaments lists tournaments the authenticated user has joined.
func (c *REST) MyTournaments(ctx context.Context) ([]models.Tournament, error) {
	var tournaments []models.Tournament
	if err := c.do(c.request(ctx), http.MethodGet, "/api/tournaments/mine", &tournaments); err != nil {
		return nil, err
	}
	return tournaments, nil
}

// CreateTournament registers a new tournament. Admin only.
func (c *REST) CreateTournament(ctx context.Context, req tournament.CreateRequest) (*models.Tournament, error) {
	var t models.Tournament
	if err := c.do(c.request(ctx).SetBody(req), http.MethodPost, "/api/tournaments", &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// JoinTournament enters the authenticated user into a tournament.
func (c *REST) JoinTournament(ctx context.Context, tournamentID uuid.UUID) (*models.TournamentParticipant, error) {
	var p models.TournamentParticipant
	if err := c.do(c.request(ctx), http.MethodPost, "/api/tournaments/"+tournamentID.String()+"/join", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Teams lists all teams.
func (c *REST) Teams(ctx context.Context) ([]models.Team, error) {
	var teams []models.Team
	if err := c.do(c.request(ctx), http.MethodGet, "/api/teams", &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// CreateTeam creates a team owned by the authenticated user.
func (c *REST) CreateTeam(ctx context.Context, name string) (*models.Team, error) {
	body := map[string]string{"name": name}
	var team models.Team
	if err := c.do(c.request(ctx).SetBody(body), http.MethodPost, "/api/teams", &team); err != nil {
		return nil, err
	}
	return &team, nil
}

// JoinTeam adds the authenticated user to a team.
func (c *REST) JoinTeam(ctx context.Context, teamID uuid.UUID) (*models.TeamMember, error) {
	var member models.TeamMember
	if err := c.do(c.request(ctx), http.MethodPost, "/api/teams/"+teamID.String()+"/join", &member); err != nil {
		return nil, err
	}
	return &member, nil
}

// TeamMembers fetches a team's roster.
func (c *REST) TeamMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error) {
	var members []models.TeamMember
	if err := c.do(c.request(ctx), http.MethodGet, "/api/teams/"+teamID.String()+"/members", &members); err != nil {
		return nil, err
	}
	return members, nil
}

// Leaderboard fetches tournament standings.
func (c *REST) Leaderboard(ctx context.Context, tournamentID uuid.UUID, limit int) ([]models.TournamentParticipant, error) {
	req := c.request(ctx)
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}
	var standings []models.TournamentParticipant
	if err := c.do(req, http.MethodGet, "/api/tournaments/"+tournamentID.String()+"/leaderboard", &standings); err != nil {
		return nil, err
	}
	return standings, nil
}
