// Package events holds the payloads shared between the auction engine,
// the outbox relay and the gateway, so neither side imports the other.
package events

import (
	"time"

	"github.com/google/uuid"
)

// Event type names as written to the outbox and published on NATS.
const (
	TypeSessionCreated      = "SessionCreated"
	TypePhaseChanged        = "PhaseChanged"
	TypeNominationPending   = "NominationPending"
	TypeNominationCancelled = "NominationCancelled"
	TypeReadyCheckStarted   = "ReadyCheckStarted"
	TypeReadyUpdated        = "ReadyUpdated"
	TypeBiddingStarted      = "BiddingStarted"
	TypeBidPlaced           = "BidPlaced"
	TypeAuctionResolved     = "AuctionResolved"
	TypeAckUpdated          = "AckUpdated"
	TypeTurnAdvanced        = "TurnAdvanced"
	TypeRoleAdvanced        = "RoleAdvanced"
	TypeTurnPassed          = "TurnPassed"
	TypeSessionFrozen       = "SessionFrozen"
)

// SessionCreatedPayload announces a new market session for a league.
type SessionCreatedPayload struct {
	LeagueID     uuid.UUID   `json:"league_id"`
	TurnOrder    []uuid.UUID `json:"turn_order"`
	TimerSeconds int         `json:"timer_seconds"`
	CreatedAt    time.Time   `json:"created_at"`
}

// PhaseChangedPayload announces a session-phase transition.
type PhaseChangedPayload struct {
	From      string      `json:"from"`
	To        string      `json:"to"`
	TurnOrder []uuid.UUID `json:"turn_order,omitempty"`
	Role      string      `json:"role,omitempty"`
	ChangedAt time.Time   `json:"changed_at"`
}

// NominationPendingPayload announces an unconfirmed nomination.
type NominationPendingPayload struct {
	PlayerID    uuid.UUID `json:"player_id"`
	PlayerName  string    `json:"player_name"`
	NominatorID uuid.UUID `json:"nominator_id"`
	OpeningBid  int       `json:"opening_bid,omitempty"`
	NominatedAt time.Time `json:"nominated_at"`
}

// NominationCancelledPayload announces a nomination aborted before confirm.
type NominationCancelledPayload struct {
	PlayerID    uuid.UUID `json:"player_id"`
	NominatorID uuid.UUID `json:"nominator_id"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// ReadyCheckStartedPayload announces a confirmed nomination awaiting readies.
type ReadyCheckStartedPayload struct {
	PlayerID    uuid.UUID `json:"player_id"`
	PlayerName  string    `json:"player_name"`
	NominatorID uuid.UUID `json:"nominator_id"`
	StartedAt   time.Time `json:"started_at"`
}

// ReadyUpdatedPayload reports ready-check progress.
type ReadyUpdatedPayload struct {
	MemberID   uuid.UUID `json:"member_id"`
	Forced     bool      `json:"forced,omitempty"`
	ReadyCount int       `json:"ready_count"`
	Total      int       `json:"total"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BiddingStartedPayload announces an open auction window.
type BiddingStartedPayload struct {
	PlayerID     uuid.UUID `json:"player_id"`
	PlayerName   string    `json:"player_name"`
	BasePrice    int       `json:"base_price"`
	CurrentPrice int       `json:"current_price"`
	TimerSeconds int       `json:"timer_seconds"`
	ExpiresAt    time.Time `json:"expires_at"`
	StartedAt    time.Time `json:"started_at"`
}

// BidPlacedPayload announces an accepted bid and the refreshed timer.
type BidPlacedPayload struct {
	BidID     uuid.UUID `json:"bid_id"`
	MemberID  uuid.UUID `json:"member_id"`
	Amount    int       `json:"amount"`
	ExpiresAt time.Time `json:"expires_at"`
	PlacedAt  time.Time `json:"placed_at"`
}

// AuctionResolvedPayload announces a closed auction. WinnerID is nil when
// the player went unsold and returned to the pool.
type AuctionResolvedPayload struct {
	PlayerID   uuid.UUID  `json:"player_id"`
	WinnerID   *uuid.UUID `json:"winner_id,omitempty"`
	FinalPrice int        `json:"final_price"`
	Forced     bool       `json:"forced,omitempty"` // admin close
	ResolvedAt time.Time  `json:"resolved_at"`
}

// AckUpdatedPayload reports acknowledgment progress for a resolved auction.
type AckUpdatedPayload struct {
	MemberID     uuid.UUID `json:"member_id"`
	Forced       bool      `json:"forced,omitempty"`
	Acknowledged int       `json:"acknowledged"`
	Total        int       `json:"total"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TurnAdvancedPayload announces the next nomination turn.
type TurnAdvancedPayload struct {
	MemberID   uuid.UUID `json:"member_id"`
	TurnIndex  int       `json:"turn_index"`
	AdvancedAt time.Time `json:"advanced_at"`
}

// RoleAdvancedPayload announces the first market moving to its next role.
type RoleAdvancedPayload struct {
	From       string    `json:"from"`
	To         string    `json:"to"`
	AdvancedAt time.Time `json:"advanced_at"`
}

// TurnPassedPayload announces a member passing their nomination turn.
type TurnPassedPayload struct {
	MemberID uuid.UUID `json:"member_id"`
	Passed   int       `json:"passed"`
	Total    int       `json:"total"`
	PassedAt time.Time `json:"passed_at"`
}

// SessionFrozenPayload surfaces a fatal inconsistency to admin tooling.
type SessionFrozenPayload struct {
	Reason   string    `json:"reason"`
	FrozenAt time.Time `json:"frozen_at"`
}
