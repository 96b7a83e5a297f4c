package server

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"nifty-paper/internal/models"
	"nifty-paper/internal/tournament"
)

// TournamentHandler serves tournament endpoints.
type TournamentHandler struct {
	tournaments *tournament.Service
	logger      zerolog.Logger
}

// NewTournamentHandler creates a tournament handler.
func NewTournamentHandler(svc *tournament.Service, logger zerolog.Logger) *TournamentHandler {
	return &TournamentHandler{
		tournaments: svc,
		logger:      logger.With().Str("component", "tournament_handler").Logger(),
	}
}

// List returns tournaments, optionally filtered by status.
func (h *TournamentHandler) List(c echo.Context) error {
	status := models.TournamentStatus(c.QueryParam("status"))
	tournaments, err := h.tournaments.List(c.Request().Context(), status)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, tournaments)
}

// Create registers a new tournament. Admin only.
func (h *TournamentHandler) Create(c echo.Context) error {
	claims, ok := GetClaims(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	var req tournament.CreateRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid request body")
	}

	t, err := h.tournaments.Create(c.Request().Context(), claims.UserID, req)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return CreatedResponse(c, t)
}

// Get returns a single tournament.
func (h *TournamentHandler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "invalid tournament id")
	}

	t, err := h.tournaments.Get(c.Request().Context(), id)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, t)
}

// Join enters the user into a tournament, deducting the entry fee.
func (h *TournamentHandler) Join(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "invalid tournament id")
	}

	participant, err := h.tournaments.Join(c.Request().Context(), id, userID)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return CreatedResponse(c, participant)
}

// Leaderboard returns tournament standings ordered by P&L.
func (h *TournamentHandler) Leaderboard(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "invalid tournament id")
	}

	standings, err := h.tournaments.Leaderboard(c.Request().Context(), id, queryInt(c, "limit", 0))
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, standings)
}

// Teams lists all teams.
func (h *TournamentHandler) Teams(c echo.Context) error {
	teams, err := h.tournaments.Teams(c.Request().Context())
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, teams)
}

// CreateTeam creates a team owned by the authenticated user.
func (h *TournamentHandler) CreateTeam(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "invalid request body")
	}

	team, err := h.tournaments.CreateTeam(c.Request().Context(), userID, req.Name)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return CreatedResponse(c, team)
}

// JoinTeam adds the authenticated user to a team.
func (h *TournamentHandler) JoinTeam(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "invalid team id")
	}

	member, err := h.tournaments.JoinTeam(c.Request().Context(), id, userID)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return CreatedResponse(c, member)
}

// TeamMembers returns a team's roster.
func (h *TournamentHandler) TeamMembers(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "invalid team id")
	}

	members, err := h.tournaments.TeamMembers(c.Request().Context(), id)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, members)
}

// Mine returns tournaments the user has joined.
func (h *TournamentHandler) Mine(c echo.Context) error {
	userID, ok := GetUserID(c)
	if !ok {
		return UnauthorizedResponse(c, "missing authentication token")
	}

	status := models.TournamentStatus(c.QueryParam("status"))
	tournaments, err := h.tournaments.ForUser(c.Request().Context(), userID, status)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	return SuccessResponse(c, tournaments)
}
