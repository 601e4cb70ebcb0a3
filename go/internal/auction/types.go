package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mattiabrun/fantalega/go/internal/models"
)

// Store defines what the engine needs from the persistence layer.
// InTx runs fn inside one transaction; every engine transition commits its
// session write, budget/roster mutations, outbox rows and audit rows
// atomically through the same StoreTx.
type Store interface {
	InTx(ctx context.Context, fn func(tx StoreTx) error) error
	NextDeadline(ctx context.Context) (*NextDeadline, error)
	SessionsDue(ctx context.Context, limit int32) ([]uuid.UUID, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.MarketSession, error)
}

// StoreTx is the transactional surface of a single engine transition.
type StoreTx interface {
	CreateSession(ctx context.Context, s *models.MarketSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.MarketSession, error)
	GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.MarketSession, error)
	SaveSession(ctx context.Context, s *models.MarketSession) error

	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
	ListActiveMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error)
	DebitBudget(ctx context.Context, memberID uuid.UUID, amount int) error
	CreditBudget(ctx context.Context, memberID uuid.UUID, amount int) error
	AdjustRoleSlot(ctx context.Context, memberID uuid.UUID, role models.Role, delta int) error
	CreateRosterEntry(ctx context.Context, entry models.RosterEntry) error
	DeleteRosterEntry(ctx context.Context, memberID, playerID uuid.UUID) error
	RosterOwner(ctx context.Context, leagueID, playerID uuid.UUID) (*models.RosterEntry, error)

	GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error)

	InsertEvent(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) error
	InsertAudit(ctx context.Context, entry AuditEntry) error
}

// AuditEntry records an admin override on a session.
type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	ActorID   uuid.UUID `json:"actor_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NextDeadline is the earliest bidding deadline across all sessions; the
// expiry orchestrator sleeps until it.
type NextDeadline struct {
	SessionID uuid.UUID  `json:"session_id"`
	Deadline  *time.Time `json:"deadline"`
}

// CreateSessionRequest opens a market session for a league.
type CreateSessionRequest struct {
	LeagueID     uuid.UUID     `json:"league_id"`
	TimerSeconds int           `json:"timer_seconds"`
	RoleSequence []models.Role `json:"role_sequence,omitempty"`
	// TurnOrder is the admin-set nomination order. When empty the order is
	// drawn from the league's active members, shuffled with TurnSeed.
	TurnOrder []uuid.UUID `json:"turn_order,omitempty"`
	TurnSeed  int64       `json:"turn_seed,omitempty"`
}

// NominateRequest puts a player on the block.
type NominateRequest struct {
	SessionID  uuid.UUID `json:"session_id"`
	MemberID   uuid.UUID `json:"member_id"`
	PlayerID   uuid.UUID `json:"player_id"`
	OpeningBid int       `json:"opening_bid,omitempty"` // rubata counter-offer
}

// BidRequest places a bid on the live auction.
type BidRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	MemberID  uuid.UUID `json:"member_id"`
	Amount    int       `json:"amount"`
}
