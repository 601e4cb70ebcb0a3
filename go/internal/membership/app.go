package membership

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mattiabrun/fantalega/go/internal/models"
)

// MembershipRepository defines what the app layer needs from the repository.
type MembershipRepository interface {
	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	ListActiveMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error)
	CreateMember(ctx context.Context, m *models.Member) error
	SetConnected(ctx context.Context, memberID uuid.UUID, connected bool) error
	DeactivateMember(ctx context.Context, memberID uuid.UUID) error
	ListRoster(ctx context.Context, memberID uuid.UUID) ([]models.RosterEntry, error)
	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)
}

// App exposes the membership surface the rest of the system consumes.
// Budget and slot mutations are not here: those happen only inside auction
// engine transactions.
type App struct {
	repo MembershipRepository
}

// NewApp creates a membership App.
func NewApp(repo MembershipRepository) *App {
	return &App{repo: repo}
}

// CreateMember registers a league participant with a starting budget and
// slot layout.
func (a *App) CreateMember(ctx context.Context, m *models.Member) (*models.Member, error) {
	if m.LeagueID == uuid.Nil {
		return nil, fmt.Errorf("member league id is required")
	}
	if m.Username == "" {
		return nil, fmt.Errorf("member username is required")
	}
	if m.Budget < 0 {
		return nil, fmt.Errorf("member budget must not be negative")
	}
	for role, slot := range m.Slots {
		if slot.Filled != 0 || slot.Total < 0 {
			return nil, fmt.Errorf("invalid %s slot configuration %d/%d", role, slot.Filled, slot.Total)
		}
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if err := a.repo.CreateMember(ctx, m); err != nil {
		return nil, err
	}
	log.Info().
		Str("member_id", m.ID.String()).
		Str("league_id", m.LeagueID.String()).
		Str("username", m.Username).
		Msg("league member created")
	return m, nil
}

// GetMember retrieves a member by ID.
func (a *App) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	return a.repo.GetMember(ctx, id)
}

// ListActiveMembers retrieves a league's active members.
func (a *App) ListActiveMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error) {
	return a.repo.ListActiveMembers(ctx, leagueID)
}

// SetConnected flips a member's realtime-connection flag; called by the
// gateway on socket open/close.
func (a *App) SetConnected(ctx context.Context, memberID uuid.UUID, connected bool) error {
	return a.repo.SetConnected(ctx, memberID, connected)
}

// DeactivateMember marks a member as having left the league.
func (a *App) DeactivateMember(ctx context.Context, memberID uuid.UUID) error {
	if err := a.repo.DeactivateMember(ctx, memberID); err != nil {
		return err
	}
	log.Info().Str("member_id", memberID.String()).Msg("league member deactivated")
	return nil
}

// ListRoster retrieves a member's roster.
func (a *App) ListRoster(ctx context.Context, memberID uuid.UUID) ([]models.RosterEntry, error) {
	return a.repo.ListRoster(ctx, memberID)
}

// GetPlayer retrieves a player.
func (a *App) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	return a.repo.GetPlayer(ctx, id)
}
