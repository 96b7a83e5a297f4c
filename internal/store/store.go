// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"nifty-paper/internal/models"
)

// DataStore defines the interface for data persistence.
type DataStore interface {
	// Users
	CreateUser(ctx context.Context, user *models.User) error
	CreateUserWithWallet(ctx context.Context, user *models.User, wallet *models.Wallet) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SetUserAdmin(ctx context.Context, userID uuid.UUID, isAdmin bool) error

	// Wallets
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	GetWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	UpdateWallet(ctx context.Context, wallet *models.Wallet, txn *models.WalletTransaction) error
	GetWalletTransactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.WalletTransaction, error)

	// Orders
	SaveOrder(ctx context.Context, order *models.PaperOrder) error
	UpdateOrder(ctx context.Context, order *models.PaperOrder) error
	GetOrder(ctx context.Context, id uuid.UUID) (*models.PaperOrder, error)
	GetOrders(ctx context.Context, filter OrderFilter) ([]models.PaperOrder, error)
	CountOrdersSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
	GetOpenOrders(ctx context.Context) ([]models.PaperOrder, error)

	// Trades
	SaveTrade(ctx context.Context, trade *models.PaperTrade) error
	GetTrades(ctx context.Context, filter TradeFilter) ([]models.PaperTrade, error)

	// Positions
	UpsertPosition(ctx context.Context, pos *models.PaperPosition) error
	DeletePosition(ctx context.Context, userID uuid.UUID, symbol string, product models.ProductType) error
	GetPosition(ctx context.Context, userID uuid.UUID, symbol string, product models.ProductType) (*models.PaperPosition, error)
	GetPositions(ctx context.Context, userID uuid.UUID) ([]models.PaperPosition, error)
	GetAllPositions(ctx context.Context) ([]models.PaperPosition, error)

	// Candles
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
	GetRecentCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)
	GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error)

	// Watchlist
	AddToWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error
	RemoveFromWatchlist(ctx context.Context, userID uuid.UUID, symbol string) error
	GetWatchlist(ctx context.Context, userID uuid.UUID) ([]string, error)

	// Tournaments
	CreateTournament(ctx context.Context, t *models.Tournament) error
	GetTournament(ctx context.Context, id uuid.UUID) (*models.Tournament, error)
	ListTournaments(ctx context.Context, status models.TournamentStatus) ([]models.Tournament, error)
	UpdateTournamentStatus(ctx context.Context, id uuid.UUID, status models.TournamentStatus) error
	AddParticipant(ctx context.Context, p *models.TournamentParticipant) error
	GetParticipant(ctx context.Context, tournamentID, userID uuid.UUID) (*models.TournamentParticipant, error)
	GetParticipants(ctx context.Context, tournamentID uuid.UUID) ([]models.TournamentParticipant, error)
	UpdateParticipantPnL(ctx context.Context, tournamentID, userID uuid.UUID, pnl, pnlPercent float64) error
	Leaderboard(ctx context.Context, tournamentID uuid.UUID, limit int) ([]models.TournamentParticipant, error)
	TournamentsForUser(ctx context.Context, userID uuid.UUID, status models.TournamentStatus) ([]models.Tournament, error)

	// Teams
	CreateTeam(ctx context.Context, team *models.Team) error
	AddTeamMember(ctx context.Context, member *models.TeamMember) error
	GetTeams(ctx context.Context) ([]models.Team, error)
	GetTeamMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error)

	// Lifecycle
	Close() error
}

// OrderFilter represents filters for querying orders.
type OrderFilter struct {
	UserID uuid.UUID
	Symbol string
	Status models.OrderStatus
	Since  time.Time
	Limit  int
}

// TradeFilter represents filters for querying fills.
type TradeFilter struct {
	UserID    uuid.UUID
	Symbol    string
	StartDate time.Time
	EndDate   time.Time
	Limit     int
}
