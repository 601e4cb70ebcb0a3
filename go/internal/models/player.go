package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role is a player's position: portiere, difensore, centrocampista, attaccante.
type Role string

const (
	RolePortiere       Role = "P"
	RoleDifensore      Role = "D"
	RoleCentrocampista Role = "C"
	RoleAttaccante     Role = "A"
)

// DefaultRoleSequence is the order the first market auctions roles in,
// unless the league admin configures a different one.
var DefaultRoleSequence = []Role{RolePortiere, RoleDifensore, RoleCentrocampista, RoleAttaccante}

// ParseRole normalizes a role string to one of the four role constants.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RolePortiere:
		return RolePortiere, nil
	case RoleDifensore:
		return RoleDifensore, nil
	case RoleCentrocampista:
		return RoleCentrocampista, nil
	case RoleAttaccante:
		return RoleAttaccante, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Player is a real-world player available on the auction block.
type Player struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Team      string          `json:"team"`
	Role      Role            `json:"role"`
	Quotation int             `json:"quotation"`
	Age       int             `json:"age,omitempty"`
	Stats     json.RawMessage `json:"stats,omitempty"`
}
