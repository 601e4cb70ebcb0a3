package auction

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mattiabrun/fantalega/go/internal/membership"
	"github.com/mattiabrun/fantalega/go/internal/models"
	"github.com/mattiabrun/fantalega/go/internal/sqlutil"
)

//go:embed schema.sql
var schemaSQL string

// Repository is the Postgres implementation of Store. Session state lives in
// one market_sessions row: the scalar machine state in typed columns, the
// nested sub-structures (nomination, live auction, pending ack) as JSONB.
type Repository struct {
	pool    *pgxpool.Pool
	members *membership.Repository
}

// NewRepository creates an auction repository backed by pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, members: membership.NewRepository(pool)}
}

// EnsureSchema applies the embedded schema. Statements are idempotent so it
// is safe to run on every startup.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply auction schema: %w", err)
	}
	return nil
}

// InTx runs fn inside a single transaction. The StoreTx handed to fn binds
// the session, membership, outbox and audit writes to that transaction.
func (r *Repository) InTx(ctx context.Context, fn func(tx StoreTx) error) error {
	return sqlutil.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&repositoryTx{db: tx, members: r.members.WithTx(tx)})
	})
}

// GetSession loads a session outside any transaction, for read-only callers.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.MarketSession, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM market_sessions WHERE id = $1`, id)
	return scanSession(row)
}

// NextDeadline returns the earliest live bidding deadline across all
// sessions, or a nil deadline when no auction is running.
func (r *Repository) NextDeadline(ctx context.Context) (*NextDeadline, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, timer_expires_at FROM market_sessions
		WHERE timer_expires_at IS NOT NULL AND NOT frozen
		ORDER BY timer_expires_at
		LIMIT 1`)

	var next NextDeadline
	err := row.Scan(&next.SessionID, &next.Deadline)
	if errors.Is(err, pgx.ErrNoRows) {
		return &NextDeadline{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch next deadline: %w", err)
	}
	return &next, nil
}

// SessionsDue returns sessions whose bidding deadline has passed.
func (r *Repository) SessionsDue(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM market_sessions
		WHERE timer_expires_at IS NOT NULL AND timer_expires_at <= NOW() AND NOT frozen
		ORDER BY timer_expires_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list due sessions: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan due session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// repositoryTx implements StoreTx over one pgx transaction.
type repositoryTx struct {
	db      pgx.Tx
	members *membership.Repository
}

const sessionColumns = `id, league_id, phase, auction_phase, current_role, role_sequence,
	turn_order, current_turn_index, timer_seconds, nomination, auction, pending_ack,
	passed, frozen, frozen_reason, created_at, updated_at`

func scanSession(row pgx.Row) (*models.MarketSession, error) {
	var s models.MarketSession
	var currentRole string
	var roleSeq, turnOrder []byte
	var nomination, auction, pendingAck, passed []byte

	err := row.Scan(&s.ID, &s.LeagueID, &s.Phase, &s.AuctionPhase, &currentRole, &roleSeq,
		&turnOrder, &s.CurrentTurnIndex, &s.TimerSeconds, &nomination, &auction, &pendingAck,
		&passed, &s.Frozen, &s.FrozenReason, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	s.CurrentRole = models.Role(currentRole)
	if err := json.Unmarshal(roleSeq, &s.RoleSequence); err != nil {
		return nil, fmt.Errorf("unmarshal session %s role sequence: %w", s.ID, err)
	}
	if err := json.Unmarshal(turnOrder, &s.TurnOrder); err != nil {
		return nil, fmt.Errorf("unmarshal session %s turn order: %w", s.ID, err)
	}
	if err := unmarshalNullable(nomination, &s.Nomination); err != nil {
		return nil, fmt.Errorf("unmarshal session %s nomination: %w", s.ID, err)
	}
	if err := unmarshalNullable(auction, &s.Auction); err != nil {
		return nil, fmt.Errorf("unmarshal session %s auction: %w", s.ID, err)
	}
	if err := unmarshalNullable(pendingAck, &s.PendingAck); err != nil {
		return nil, fmt.Errorf("unmarshal session %s pending ack: %w", s.ID, err)
	}
	if passed != nil {
		if err := json.Unmarshal(passed, &s.Passed); err != nil {
			return nil, fmt.Errorf("unmarshal session %s passes: %w", s.ID, err)
		}
	}
	return &s, nil
}

func unmarshalNullable[T any](raw []byte, dst **T) error {
	if raw == nil {
		*dst = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

// sessionWriteArgs flattens a session into column values shared by insert
// and update. timer_expires_at mirrors the live auction deadline so the
// expiry orchestrator can query it without unpacking JSONB.
func sessionWriteArgs(s *models.MarketSession) ([]any, error) {
	roleSeq, err := json.Marshal(s.RoleSequence)
	if err != nil {
		return nil, fmt.Errorf("marshal role sequence: %w", err)
	}
	turnOrder, err := json.Marshal(s.TurnOrder)
	if err != nil {
		return nil, fmt.Errorf("marshal turn order: %w", err)
	}
	var nomination, auction, pendingAck, passed []byte
	if s.Nomination != nil {
		if nomination, err = json.Marshal(s.Nomination); err != nil {
			return nil, fmt.Errorf("marshal nomination: %w", err)
		}
	}
	if s.Auction != nil {
		if auction, err = json.Marshal(s.Auction); err != nil {
			return nil, fmt.Errorf("marshal auction: %w", err)
		}
	}
	if s.PendingAck != nil {
		if pendingAck, err = json.Marshal(s.PendingAck); err != nil {
			return nil, fmt.Errorf("marshal pending ack: %w", err)
		}
	}
	if s.Passed != nil {
		if passed, err = json.Marshal(s.Passed); err != nil {
			return nil, fmt.Errorf("marshal passes: %w", err)
		}
	}

	var expiresAt *time.Time
	if s.Auction != nil && s.AuctionPhase == models.AuctionPhaseBidding {
		t := s.Auction.ExpiresAt
		expiresAt = &t
	}

	return []any{
		s.ID, s.LeagueID, s.Phase, s.AuctionPhase, string(s.CurrentRole), roleSeq,
		turnOrder, s.CurrentTurnIndex, s.TimerSeconds, expiresAt, nomination, auction,
		pendingAck, passed, s.Frozen, s.FrozenReason,
	}, nil
}

func (tx *repositoryTx) CreateSession(ctx context.Context, s *models.MarketSession) error {
	args, err := sessionWriteArgs(s)
	if err != nil {
		return err
	}
	args = append(args, s.CreatedAt, s.UpdatedAt)
	_, err = tx.db.Exec(ctx, `
		INSERT INTO market_sessions (id, league_id, phase, auction_phase, current_role, role_sequence,
			turn_order, current_turn_index, timer_seconds, timer_expires_at, nomination, auction,
			pending_ack, passed, frozen, frozen_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		args...)
	if err != nil {
		return fmt.Errorf("insert session %s: %w", s.ID, err)
	}
	return nil
}

func (tx *repositoryTx) GetSession(ctx context.Context, id uuid.UUID) (*models.MarketSession, error) {
	row := tx.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM market_sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (tx *repositoryTx) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.MarketSession, error) {
	row := tx.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM market_sessions WHERE id = $1 FOR UPDATE`, id)
	return scanSession(row)
}

func (tx *repositoryTx) SaveSession(ctx context.Context, s *models.MarketSession) error {
	args, err := sessionWriteArgs(s)
	if err != nil {
		return err
	}
	args = append(args, s.UpdatedAt)
	tag, err := tx.db.Exec(ctx, `
		UPDATE market_sessions SET
			league_id = $2, phase = $3, auction_phase = $4, current_role = $5, role_sequence = $6,
			turn_order = $7, current_turn_index = $8, timer_seconds = $9, timer_expires_at = $10,
			nomination = $11, auction = $12, pending_ack = $13, passed = $14,
			frozen = $15, frozen_reason = $16, updated_at = $17
		WHERE id = $1`,
		args...)
	if err != nil {
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (tx *repositoryTx) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m, err := tx.members.GetMember(ctx, id)
	if errors.Is(err, membership.ErrNotFound) {
		return nil, ErrMemberNotFound
	}
	return m, err
}

func (tx *repositoryTx) ListActiveMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error) {
	return tx.members.ListActiveMembers(ctx, leagueID)
}

func (tx *repositoryTx) DebitBudget(ctx context.Context, memberID uuid.UUID, amount int) error {
	return tx.members.DebitBudget(ctx, memberID, amount)
}

func (tx *repositoryTx) CreditBudget(ctx context.Context, memberID uuid.UUID, amount int) error {
	return tx.members.CreditBudget(ctx, memberID, amount)
}

func (tx *repositoryTx) AdjustRoleSlot(ctx context.Context, memberID uuid.UUID, role models.Role, delta int) error {
	return tx.members.AdjustRoleSlot(ctx, memberID, role, delta)
}

func (tx *repositoryTx) CreateRosterEntry(ctx context.Context, entry models.RosterEntry) error {
	return tx.members.CreateRosterEntry(ctx, entry)
}

func (tx *repositoryTx) DeleteRosterEntry(ctx context.Context, memberID, playerID uuid.UUID) error {
	return tx.members.DeleteRosterEntry(ctx, memberID, playerID)
}

func (tx *repositoryTx) RosterOwner(ctx context.Context, leagueID, playerID uuid.UUID) (*models.RosterEntry, error) {
	return tx.members.RosterOwner(ctx, leagueID, playerID)
}

func (tx *repositoryTx) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	p, err := tx.members.GetPlayer(ctx, id)
	if errors.Is(err, membership.ErrNotFound) {
		return nil, ErrPlayerUnavailable
	}
	return p, err
}

func (tx *repositoryTx) InsertEvent(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	_, err = tx.db.Exec(ctx, `
		INSERT INTO outbox_events (id, session_id, event_type, payload)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), sessionID, eventType, body)
	if err != nil {
		return fmt.Errorf("insert outbox event %s: %w", eventType, err)
	}
	return nil
}

func (tx *repositoryTx) InsertAudit(ctx context.Context, entry AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	_, err := tx.db.Exec(ctx, `
		INSERT INTO audit_log (id, session_id, actor_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.SessionID, entry.ActorID, entry.Action, entry.Detail, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit %s: %w", entry.Action, err)
	}
	return nil
}
