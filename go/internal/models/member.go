package models

import (
	"time"

	"github.com/google/uuid"
)

// RoleSlot tracks how many roster spots a member has filled for one role.
type RoleSlot struct {
	Filled int `json:"filled"`
	Total  int `json:"total"`
}

// Member is a league participant (the "DG") as the auction engine sees it.
type Member struct {
	ID        uuid.UUID         `json:"id"`
	LeagueID  uuid.UUID         `json:"league_id"`
	UserID    uuid.UUID         `json:"user_id"`
	Username  string            `json:"username"`
	TeamName  string            `json:"team_name"`
	Budget    int               `json:"budget"`
	Slots     map[Role]RoleSlot `json:"slots"`
	Admin     bool              `json:"admin"`
	Active    bool              `json:"active"`
	Connected bool              `json:"connected"`
	JoinedAt  time.Time         `json:"joined_at"`
}

// SlotFor returns the member's slot counts for a role. Missing roles
// report a zero slot, which always counts as full.
func (m *Member) SlotFor(role Role) RoleSlot {
	return m.Slots[role]
}

// HasOpenSlot reports whether the member can still roster a player of role.
func (m *Member) HasOpenSlot(role Role) bool {
	slot := m.SlotFor(role)
	return slot.Filled < slot.Total
}
