// Package server exposes the REST and WebSocket API over echo.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"nifty-paper/internal/auth"
	"nifty-paper/internal/config"
	"nifty-paper/internal/engine"
	"nifty-paper/internal/feed"
	"nifty-paper/internal/models"
	"nifty-paper/internal/store"
	"nifty-paper/internal/stream"
	"nifty-paper/internal/tournament"
)

const pnlPushInterval = 5 * time.Second

// Server hosts the HTTP API and WebSocket hub.
type Server struct {
	echo   *echo.Echo
	config config.ServerConfig
	logger zerolog.Logger

	auth        *auth.Service
	engine      *engine.Engine
	tournaments *tournament.Service
	store       store.DataStore
	catalog     *feed.Catalog
	sim         *feed.Simulator
	streamHub   *stream.Hub
	wsHub       *WSHub

	pnlDone chan struct{}
}

// Deps bundles the services the server exposes.
type Deps struct {
	Auth        *auth.Service
	Engine      *engine.Engine
	Tournaments *tournament.Service
	Store       store.DataStore
	Catalog     *feed.Catalog
	Simulator   *feed.Simulator
	StreamHub   *stream.Hub
}

// New builds the server, registers routes and bridges the tick hub and
// trading engine into the WebSocket hub.
func New(cfg config.ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	s := &Server{
		echo:        echo.New(),
		config:      cfg,
		logger:      logger.With().Str("component", "server").Logger(),
		auth:        deps.Auth,
		engine:      deps.Engine,
		tournaments: deps.Tournaments,
		store:       deps.Store,
		catalog:     deps.Catalog,
		sim:         deps.Simulator,
		streamHub:   deps.StreamHub,
		wsHub:       NewWSHub(logger),
		pnlDone:     make(chan struct{}),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.setupMiddleware()
	s.setupRoutes()

	// Ticks reach browser clients through the WebSocket hub.
	if s.streamHub != nil {
		s.streamHub.RegisterConsumer(s.wsHub)
	}

	// Fills push a fresh portfolio snapshot to the user's pnl room. The
	// engine holds its execution lock during the callback, so the snapshot
	// is computed on a separate goroutine.
	if s.engine != nil {
		s.engine.SetFillListener(func(order *models.PaperOrder) {
			go s.pushPortfolio(order.UserID)
		})
	}

	if s.tournaments != nil {
		s.tournaments.SetBroadcaster(func(tournamentID uuid.UUID, standings []models.TournamentParticipant) {
			channel := fmt.Sprintf("tournament:%s:pnl", tournamentID)
			s.wsHub.BroadcastToChannel(channel, "leaderboard_update", standings)
		})
	}

	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			return path == "/health" || path == "/ws"
		},
	}))
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Secure())

	if len(s.config.CORSOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     s.config.CORSOrigins,
			AllowCredentials: true,
		}))
	} else {
		s.echo.Use(middleware.CORS())
	}
}

func (s *Server) setupRoutes() {
	e := s.echo

	e.GET("/health", func(c echo.Context) error {
		return SuccessResponse(c, map[string]interface{}{
			"status":    "healthy",
			"service":   "nifty-paper",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	e.GET("/ws", s.handleWebSocket)

	authHandler := NewAuthHandler(s.auth)
	marketHandler := NewMarketHandler(s.store, s.catalog, s.sim, s.logger)
	paperHandler := NewPaperHandler(s.engine, s.store, s.logger)
	tournamentHandler := NewTournamentHandler(s.tournaments, s.logger)

	requireAuth := AuthMiddleware(s.auth)

	api := e.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/logout", authHandler.Logout)
		authGroup.GET("/me", authHandler.Me, requireAuth)
	}

	api.GET("/quotes", marketHandler.Quotes)
	api.GET("/quotes/:symbol", marketHandler.Quote)
	api.GET("/instruments", marketHandler.Instruments)

	candles := api.Group("/candles")
	{
		candles.GET("/options-chain/:symbol", marketHandler.OptionChain)
		candles.GET("/:symbol", marketHandler.Candles)
	}

	watchlist := api.Group("/watchlist", requireAuth)
	{
		watchlist.GET("", marketHandler.Watchlist)
		watchlist.POST("", marketHandler.AddToWatchlist)
		watchlist.DELETE("/:symbol", marketHandler.RemoveFromWatchlist)
	}

	paper := api.Group("/paper", requireAuth)
	{
		paper.POST("/orders", paperHandler.PlaceOrder)
		paper.GET("/orders", paperHandler.Orders)
		paper.DELETE("/orders/:id", paperHandler.CancelOrder)
		paper.GET("/trades", paperHandler.Trades)
		paper.GET("/positions", paperHandler.Positions)
		paper.GET("/portfolio", paperHandler.Portfolio)
		paper.GET("/wallet", paperHandler.Wallet)
		paper.GET("/wallet/transactions", paperHandler.WalletTransactions)
		paper.POST("/wallet/deposit", paperHandler.Deposit)
		paper.POST("/wallet/withdraw", paperHandler.Withdraw)
	}

	tournaments := api.Group("/tournaments")
	{
		tournaments.GET("", tournamentHandler.List)
		tournaments.POST("", tournamentHandler.Create, requireAuth, AdminMiddleware)
		tournaments.GET("/mine", tournamentHandler.Mine, requireAuth)
		tournaments.GET("/:id", tournamentHandler.Get)
		tournaments.POST("/:id/join", tournamentHandler.Join, requireAuth)
		tournaments.GET("/:id/leaderboard", tournamentHandler.Leaderboard)
	}

	teams := api.Group("/teams")
	{
		teams.GET("", tournamentHandler.Teams)
		teams.POST("", tournamentHandler.CreateTeam, requireAuth)
		teams.GET("/:id/members", tournamentHandler.TeamMembers)
		teams.POST("/:id/join", tournamentHandler.JoinTeam, requireAuth)
	}
}

// Start runs the WebSocket hub, the periodic P&L push loop and the HTTP
// listener. Blocks until the listener stops.
func (s *Server) Start() error {
	go s.wsHub.Run()
	go s.pnlLoop()

	s.logger.Info().Str("addr", s.config.Addr).Msg("HTTP server listening")
	if err := s.echo.Start(s.config.Addr); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains connections and stops the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.pnlDone)
	s.wsHub.Stop()
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Hub exposes the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// pnlLoop periodically pushes portfolio marks to users subscribed to the pnl
// room, so open position P&L moves with the simulated prices between fills.
func (s *Server) pnlLoop() {
	ticker := time.NewTicker(pnlPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, userID := range s.wsHub.SubscribedUsers(PnLChannel) {
				s.pushPortfolio(userID)
			}
		case <-s.pnlDone:
			return
		}
	}
}

func (s *Server) pushPortfolio(userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary, err := s.engine.Portfolio(ctx, userID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to build pnl push")
		return
	}
	s.wsHub.BroadcastToUser(userID, PnLChannel, "pnl_update", summary)
}
