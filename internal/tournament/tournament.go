// Package tournament manages paper trading contests: entry, lifecycle and
// leaderboards.
package tournament

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"nifty-paper/internal/engine"
	apperrors "nifty-paper/internal/errors"
	"nifty-paper/internal/market"
	"nifty-paper/internal/models"
	"nifty-paper/internal/store"
)

// Service manages tournaments over the shared store and trading engine.
type Service struct {
	store  store.DataStore
	engine *engine.Engine
	logger zerolog.Logger
	cron   *cron.Cron

	broadcast func(tournamentID uuid.UUID, standings []models.TournamentParticipant)
}

// SetBroadcaster registers a callback invoked with fresh standings after each
// refresh, used to push leaderboard updates over the WebSocket hub. Must be
// set before StartScheduler.
func (s *Service) SetBroadcaster(fn func(tournamentID uuid.UUID, standings []models.TournamentParticipant)) {
	s.broadcast = fn
}

// NewService creates a tournament service.
func NewService(dataStore store.DataStore, eng *engine.Engine, logger zerolog.Logger) *Service {
	return &Service{
		store:  dataStore,
		engine: eng,
		logger: logger.With().Str("component", "tournament").Logger(),
	}
}

// StartScheduler runs lifecycle transitions and leaderboard refreshes on a
// schedule until Stop is called.
func (s *Service) StartScheduler() error {
	s.cron = cron.New()

	if _, err := s.cron.AddFunc("* * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Advance(ctx, time.Now())
	}); err != nil {
		return apperrors.Wrap(err, "failed to schedule lifecycle job")
	}

	if _, err := s.cron.AddFunc("@every 15s", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.RefreshStandings(ctx)
	}); err != nil {
		return apperrors.Wrap(err, "failed to schedule standings job")
	}

	s.cron.Start()
	s.logger.Info().Msg("Tournament scheduler started")
	return nil
}

// Stop halts the scheduler.
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// CreateRequest is the input for creating a tournament.
type CreateRequest struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	EntryFee    float64   `json:"entry_fee"`
	PrizePool   float64   `json:"prize_pool"`
	MaxEntrants int       `json:"max_entrants"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
}

// Create registers a new tournament. Only admins may call this; the caller
// enforces that.
func (s *Service) Create(ctx context.Context, createdBy uuid.UUID, req CreateRequest) (*models.Tournament, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperrors.NewValidationError("name", req.Name, "name is required")
	}
	if req.EntryFee < 0 {
		return nil, apperrors.NewValidationError("entry_fee", req.EntryFee, "must not be negative")
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, apperrors.NewValidationError("end_at", req.EndAt, "must be after start time")
	}
	if req.EndAt.Before(time.Now()) {
		return nil, apperrors.NewValidationError("end_at", req.EndAt, "must be in the future")
	}

	status := models.TournamentUpcoming
	if !req.StartAt.After(time.Now()) {
		status = models.TournamentActive
	}

	t := &models.Tournament{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		EntryFee:    req.EntryFee,
		PrizePool:   req.PrizePool,
		MaxEntrants: req.MaxEntrants,
		StartAt:     req.StartAt,
		EndAt:       req.EndAt,
		Status:      status,
		CreatedBy:   createdBy,
		CreatedAt:   time.Now(),
	}
	if err := s.store.CreateTournament(ctx, t); err != nil {
		return nil, apperrors.Wrap(err, "failed to create tournament")
	}

	s.logger.Info().Str("tournament_id", t.ID.String()).Str("name", t.Name).Msg("Tournament created")
	return t, nil
}

// List returns tournaments, optionally filtered by status.
func (s *Service) List(ctx context.Context, status models.TournamentStatus) ([]models.Tournament, error) {
	return s.store.ListTournaments(ctx, status)
}

// Get returns one tournament.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Tournament, error) {
	t, err := s.store.GetTournament(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load tournament")
	}
	if t == nil {
		return nil, apperrors.ErrDataNotFound
	}
	return t, nil
}

// Join registers a user in a tournament, debiting the entry fee. The user's
// portfolio value at entry becomes their scoring baseline.
func (s *Service) Join(ctx context.Context, tournamentID, userID uuid.UUID) (*models.TournamentParticipant, error) {
	t, err := s.Get(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if t.Status == models.TournamentEnded {
		return nil, apperrors.ErrTournamentClosed
	}
	if t.MaxEntrants > 0 && t.Participants >= t.MaxEntrants {
		return nil, apperrors.ErrTournamentFull
	}

	if existing, err := s.store.GetParticipant(ctx, tournamentID, userID); err != nil {
		return nil, apperrors.Wrap(err, "failed to check participant")
	} else if existing != nil {
		return nil, apperrors.ErrAlreadyJoined
	}

	summary, err := s.engine.Portfolio(ctx, userID)
	if err != nil {
		return nil, err
	}

	if t.EntryFee > 0 {
		wallet, err := s.store.GetWallet(ctx, userID)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to load wallet")
		}
		if wallet == nil || !wallet.CanAfford(t.EntryFee) {
			return nil, apperrors.ErrInsufficientFunds
		}

		now := time.Now()
		wallet.Balance -= t.EntryFee
		wallet.UpdatedAt = now
		txn := &models.WalletTransaction{
			ID:        uuid.New(),
			UserID:    userID,
			Type:      models.TxnEntryFee,
			Amount:    -t.EntryFee,
			Balance:   wallet.Balance,
			Reference: tournamentID.String(),
			CreatedAt: now,
		}
		if err := s.store.UpdateWallet(ctx, wallet, txn); err != nil {
			return nil, apperrors.Wrap(err, "failed to debit entry fee")
		}
	}

	p := &models.TournamentParticipant{
		TournamentID: tournamentID,
		UserID:       userID,
		StartBalance: summary.TotalValue,
		JoinedAt:     time.Now(),
	}
	if err := s.store.AddParticipant(ctx, p); err != nil {
		return nil, apperrors.Wrap(err, "failed to add participant")
	}

	s.logger.Info().
		Str("tournament_id", tournamentID.String()).
		Str("user_id", userID.String()).
		Float64("start_balance", p.StartBalance).
		Msg("User joined tournament")

	return p, nil
}

// Leaderboard returns the ranked standings for a tournament.
func (s *Service) Leaderboard(ctx context.Context, tournamentID uuid.UUID, limit int) ([]models.TournamentParticipant, error) {
	if _, err := s.Get(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.store.Leaderboard(ctx, tournamentID, limit)
}

// ForUser returns the tournaments a user has joined.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID, status models.TournamentStatus) ([]models.Tournament, error) {
	return s.store.TournamentsForUser(ctx, userID, status)
}

// Advance transitions tournament statuses at the given instant:
// UPCOMING becomes ACTIVE at start, ACTIVE becomes ENDED at end.
func (s *Service) Advance(ctx context.Context, now time.Time) {
	upcoming, err := s.store.ListTournaments(ctx, models.TournamentUpcoming)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list upcoming tournaments")
		return
	}
	for _, t := range upcoming {
		if !t.StartAt.After(now) {
			if err := s.store.UpdateTournamentStatus(ctx, t.ID, models.TournamentActive); err != nil {
				s.logger.Error().Err(err).Str("tournament_id", t.ID.String()).Msg("Failed to activate tournament")
				continue
			}
			s.logger.Info().Str("tournament_id", t.ID.String()).Str("name", t.Name).Msg("Tournament started")
		}
	}

	active, err := s.store.ListTournaments(ctx, models.TournamentActive)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list active tournaments")
		return
	}
	for _, t := range active {
		if !t.EndAt.After(now) {
			if err := s.store.UpdateTournamentStatus(ctx, t.ID, models.TournamentEnded); err != nil {
				s.logger.Error().Err(err).Str("tournament_id", t.ID.String()).Msg("Failed to end tournament")
				continue
			}
			s.logger.Info().Str("tournament_id", t.ID.String()).Str("name", t.Name).Msg("Tournament ended")
		}
	}
}

// RefreshStandings recomputes every active tournament participant's P&L from
// their live portfolio.
func (s *Service) RefreshStandings(ctx context.Context) {
	active, err := s.store.ListTournaments(ctx, models.TournamentActive)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list active tournaments")
		return
	}

	for _, t := range active {
		participants, err := s.store.GetParticipants(ctx, t.ID)
		if err != nil {
			s.logger.Error().Err(err).Str("tournament_id", t.ID.String()).Msg("Failed to load participants")
			continue
		}

		for _, p := range participants {
			summary, err := s.engine.Portfolio(ctx, p.UserID)
			if err != nil {
				s.logger.Error().Err(err).Str("user_id", p.UserID.String()).Msg("Failed to compute portfolio")
				continue
			}

			pnl := summary.TotalValue - p.StartBalance
			pnlPct := market.PnLPercent(pnl, p.StartBalance)
			if err := s.store.UpdateParticipantPnL(ctx, t.ID, p.UserID, pnl, pnlPct); err != nil {
				s.logger.Error().Err(err).Str("user_id", p.UserID.String()).Msg("Failed to update standings")
			}
		}

		if s.broadcast != nil {
			standings, err := s.store.Leaderboard(ctx, t.ID, 0)
			if err != nil {
				s.logger.Error().Err(err).Str("tournament_id", t.ID.String()).Msg("Failed to load leaderboard")
				continue
			}
			s.broadcast(t.ID, standings)
		}
	}
}
