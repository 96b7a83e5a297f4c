package models

import (
	"time"

	"github.com/google/uuid"
)

// TournamentStatus represents the lifecycle state of a tournament.
type TournamentStatus string

const (
	TournamentUpcoming TournamentStatus = "UPCOMING"
	TournamentActive   TournamentStatus = "ACTIVE"
	TournamentEnded    TournamentStatus = "ENDED"
)

// Tournament represents a paper trading contest.
type Tournament struct {
	ID           uuid.UUID        `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description,omitempty"`
	EntryFee     float64          `json:"entry_fee"`
	PrizePool    float64          `json:"prize_pool"`
	MaxEntrants  int              `json:"max_entrants"`
	StartAt      time.Time        `json:"start_at"`
	EndAt        time.Time        `json:"end_at"`
	Status       TournamentStatus `json:"status"`
	Participants int              `json:"participants"`
	CreatedBy    uuid.UUID        `json:"created_by"`
	CreatedAt    time.Time        `json:"created_at"`
}

// TournamentParticipant tracks a user's standing in a tournament.
type TournamentParticipant struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	UserID       uuid.UUID `json:"user_id"`
	Username     string    `json:"username"`
	StartBalance float64   `json:"start_balance"`
	CurrentPnL   float64   `json:"current_pnl"`
	PnLPercent   float64   `json:"pnl_percent"`
	Rank         int       `json:"rank"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Team is a named group of users competing together.
type Team struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Members   int       `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// TeamMember links a user to a team.
type TeamMember struct {
	TeamID   uuid.UUID `json:"team_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
