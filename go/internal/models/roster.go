package models

import (
	"time"

	"github.com/google/uuid"
)

// AcquisitionType records which market phase produced a roster entry.
type AcquisitionType string

const (
	AcquisitionFirstMarket AcquisitionType = "FIRST_MARKET"
	AcquisitionRubata      AcquisitionType = "RUBATA"
	AcquisitionSvincolati  AcquisitionType = "SVINCOLATI"
)

// RosterEntry binds a won player to a member's squad at a final price.
type RosterEntry struct {
	ID              uuid.UUID       `json:"id"`
	MemberID        uuid.UUID       `json:"member_id"`
	PlayerID        uuid.UUID       `json:"player_id"`
	Role            Role            `json:"role"`
	Price           int             `json:"price"`
	AcquisitionType AcquisitionType `json:"acquisition_type"`
	AcquiredAt      time.Time       `json:"acquired_at"`
}
