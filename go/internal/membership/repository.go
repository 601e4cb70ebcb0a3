package membership

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mattiabrun/fantalega/go/internal/models"
	"github.com/mattiabrun/fantalega/go/internal/sqlutil"
)

// ErrNotFound is returned when a member, player or roster entry is missing.
var ErrNotFound = errors.New("membership: not found")

// Repository implements member, roster and player data access.
type Repository struct {
	db sqlutil.DBTX
}

// NewRepository creates a membership repository bound to a pool or tx.
func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

// WithTx returns the repository bound to tx, so membership writes commit
// with the caller's session write.
func (r *Repository) WithTx(tx pgx.Tx) *Repository {
	return &Repository{db: tx}
}

const memberColumns = `id, league_id, user_id, username, team_name, budget, slots, admin, active, connected, joined_at`

func (r *Repository) scanMember(row pgx.Row) (*models.Member, error) {
	var m models.Member
	var slots []byte
	err := row.Scan(&m.ID, &m.LeagueID, &m.UserID, &m.Username, &m.TeamName,
		&m.Budget, &slots, &m.Admin, &m.Active, &m.Connected, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan member: %w", err)
	}
	if err := json.Unmarshal(slots, &m.Slots); err != nil {
		return nil, fmt.Errorf("unmarshal member %s slots: %w", m.ID, err)
	}
	return &m, nil
}

// GetMember retrieves a member by ID.
func (r *Repository) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	row := r.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM league_members WHERE id = $1`, id)
	return r.scanMember(row)
}

// ListActiveMembers retrieves a league's active members in join order.
func (r *Repository) ListActiveMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+memberColumns+` FROM league_members WHERE league_id = $1 AND active ORDER BY joined_at, id`,
		leagueID)
	if err != nil {
		return nil, fmt.Errorf("list active members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		m, err := r.scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// CreateMember inserts a new league member.
func (r *Repository) CreateMember(ctx context.Context, m *models.Member) error {
	slots, err := json.Marshal(m.Slots)
	if err != nil {
		return fmt.Errorf("marshal member slots: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO league_members (`+memberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.LeagueID, m.UserID, m.Username, m.TeamName,
		m.Budget, slots, m.Admin, m.Active, m.Connected, m.JoinedAt)
	if err != nil {
		return fmt.Errorf("create member %s: %w", m.ID, err)
	}
	return nil
}

// DebitBudget subtracts amount from a member's budget. The guard keeps the
// budget non-negative: a short row count means the committed budget could
// not cover the amount.
func (r *Repository) DebitBudget(ctx context.Context, memberID uuid.UUID, amount int) error {
	if amount < 0 {
		return fmt.Errorf("debit amount %d is negative", amount)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE league_members SET budget = budget - $2 WHERE id = $1 AND budget >= $2`,
		memberID, amount)
	if err != nil {
		return fmt.Errorf("debit budget for %s: %w", memberID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("debit budget for %s: insufficient committed budget for %d", memberID, amount)
	}
	return nil
}

// CreditBudget adds amount to a member's budget.
func (r *Repository) CreditBudget(ctx context.Context, memberID uuid.UUID, amount int) error {
	if amount < 0 {
		return fmt.Errorf("credit amount %d is negative", amount)
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE league_members SET budget = budget + $2 WHERE id = $1`,
		memberID, amount)
	if err != nil {
		return fmt.Errorf("credit budget for %s: %w", memberID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("credit budget for %s: %w", memberID, ErrNotFound)
	}
	return nil
}

// AdjustRoleSlot changes a member's filled count for one role by delta,
// guarded so 0 <= filled <= total always holds.
func (r *Repository) AdjustRoleSlot(ctx context.Context, memberID uuid.UUID, role models.Role, delta int) error {
	member, err := r.GetMember(ctx, memberID)
	if err != nil {
		return err
	}
	slot, ok := member.Slots[role]
	if !ok {
		return fmt.Errorf("member %s has no %s slots configured", memberID, role)
	}
	filled := slot.Filled + delta
	if filled < 0 || filled > slot.Total {
		return fmt.Errorf("member %s %s slots would go to %d/%d", memberID, role, filled, slot.Total)
	}
	slot.Filled = filled
	member.Slots[role] = slot

	slots, err := json.Marshal(member.Slots)
	if err != nil {
		return fmt.Errorf("marshal member slots: %w", err)
	}
	_, err = r.db.Exec(ctx, `UPDATE league_members SET slots = $2 WHERE id = $1`, memberID, slots)
	if err != nil {
		return fmt.Errorf("update slots for %s: %w", memberID, err)
	}
	return nil
}

// SetConnected flips a member's realtime-connection flag.
func (r *Repository) SetConnected(ctx context.Context, memberID uuid.UUID, connected bool) error {
	_, err := r.db.Exec(ctx, `UPDATE league_members SET connected = $2 WHERE id = $1`, memberID, connected)
	if err != nil {
		return fmt.Errorf("set connected for %s: %w", memberID, err)
	}
	return nil
}

// DeactivateMember marks a member as having left the league. The turn
// sequencer filters them out of every stored order on the next advance.
func (r *Repository) DeactivateMember(ctx context.Context, memberID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE league_members SET active = FALSE WHERE id = $1`, memberID)
	if err != nil {
		return fmt.Errorf("deactivate member %s: %w", memberID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateRosterEntry records a won player on a member's squad.
func (r *Repository) CreateRosterEntry(ctx context.Context, entry models.RosterEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO roster_entries (id, member_id, player_id, role, price, acquisition_type, acquired_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.MemberID, entry.PlayerID, entry.Role,
		entry.Price, entry.AcquisitionType, entry.AcquiredAt)
	if err != nil {
		return fmt.Errorf("create roster entry for player %s: %w", entry.PlayerID, err)
	}
	return nil
}

// DeleteRosterEntry removes a player from a member's squad (rubata steal).
func (r *Repository) DeleteRosterEntry(ctx context.Context, memberID, playerID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM roster_entries WHERE member_id = $1 AND player_id = $2`,
		memberID, playerID)
	if err != nil {
		return fmt.Errorf("delete roster entry %s/%s: %w", memberID, playerID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RosterOwner returns the roster entry holding playerID inside a league,
// or nil when the player is unowned.
func (r *Repository) RosterOwner(ctx context.Context, leagueID, playerID uuid.UUID) (*models.RosterEntry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT re.id, re.member_id, re.player_id, re.role, re.price, re.acquisition_type, re.acquired_at
		FROM roster_entries re
		JOIN league_members lm ON lm.id = re.member_id
		WHERE lm.league_id = $1 AND re.player_id = $2`,
		leagueID, playerID)

	var entry models.RosterEntry
	err := row.Scan(&entry.ID, &entry.MemberID, &entry.PlayerID, &entry.Role,
		&entry.Price, &entry.AcquisitionType, &entry.AcquiredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("roster owner of %s: %w", playerID, err)
	}
	return &entry, nil
}

// ListRoster retrieves a member's roster entries.
func (r *Repository) ListRoster(ctx context.Context, memberID uuid.UUID) ([]models.RosterEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, member_id, player_id, role, price, acquisition_type, acquired_at
		FROM roster_entries WHERE member_id = $1 ORDER BY acquired_at`,
		memberID)
	if err != nil {
		return nil, fmt.Errorf("list roster for %s: %w", memberID, err)
	}
	defer rows.Close()

	var entries []models.RosterEntry
	for rows.Next() {
		var entry models.RosterEntry
		if err := rows.Scan(&entry.ID, &entry.MemberID, &entry.PlayerID, &entry.Role,
			&entry.Price, &entry.AcquisitionType, &entry.AcquiredAt); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetPlayer retrieves a player by ID.
func (r *Repository) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, name, team, role, quotation, age, stats FROM players WHERE id = $1`, id)

	var p models.Player
	err := row.Scan(&p.ID, &p.Name, &p.Team, &p.Role, &p.Quotation, &p.Age, &p.Stats)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get player %s: %w", id, err)
	}
	return &p, nil
}
