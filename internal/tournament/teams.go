package tournament

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "nifty-paper/internal/errors"
	"nifty-paper/internal/models"
)

// CreateTeam creates a named team owned by the given user. The owner is
// enrolled as the first member.
func (s *Service) CreateTeam(ctx context.Context, ownerID uuid.UUID, name string) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("name", name, "name is required")
	}

	teams, err := s.store.GetTeams(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list teams")
	}
	for _, existing := range teams {
		if strings.EqualFold(existing.Name, name) {
			return nil, apperrors.ErrDuplicateTeamName
		}
	}

	team := &models.Team{
		ID:        uuid.New(),
		Name:      name,
		OwnerID:   ownerID,
		Members:   1,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		return nil, apperrors.Wrap(err, "failed to create team")
	}

	s.logger.Info().Str("team_id", team.ID.String()).Str("name", team.Name).Msg("Team created")
	return team, nil
}

// Teams returns all teams with their member counts.
func (s *Service) Teams(ctx context.Context) ([]models.Team, error) {
	return s.store.GetTeams(ctx)
}

// JoinTeam enrolls a user in an existing team.
func (s *Service) JoinTeam(ctx context.Context, teamID, userID uuid.UUID) (*models.TeamMember, error) {
	if _, err := s.getTeam(ctx, teamID); err != nil {
		return nil, err
	}

	members, err := s.store.GetTeamMembers(ctx, teamID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to load team members")
	}
	for _, m := range members {
		if m.UserID == userID {
			return nil, apperrors.ErrAlreadyTeamMember
		}
	}

	member := &models.TeamMember{
		TeamID:   teamID,
		UserID:   userID,
		JoinedAt: time.Now(),
	}
	if err := s.store.AddTeamMember(ctx, member); err != nil {
		return nil, apperrors.Wrap(err, "failed to add team member")
	}

	s.logger.Info().Str("team_id", teamID.String()).Str("user_id", userID.String()).Msg("User joined team")
	return member, nil
}

// TeamMembers returns a team's roster.
func (s *Service) TeamMembers(ctx context.Context, teamID uuid.UUID) ([]models.TeamMember, error) {
	if _, err := s.getTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.store.GetTeamMembers(ctx, teamID)
}

func (s *Service) getTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	teams, err := s.store.GetTeams(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list teams")
	}
	for i := range teams {
		if teams[i].ID == teamID {
			return &teams[i], nil
		}
	}
	return nil, apperrors.ErrDataNotFound
}
