package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionPhase defines where a market session sits in the league calendar.
type SessionPhase string

const (
	SessionPhaseSetup       SessionPhase = "SETUP"
	SessionPhaseFirstMarket SessionPhase = "FIRST_MARKET"
	SessionPhaseContracts   SessionPhase = "CONTRACTS"
	SessionPhaseRubata      SessionPhase = "RUBATA"
	SessionPhaseSvincolati  SessionPhase = "SVINCOLATI"
	SessionPhasePrizes      SessionPhase = "PRIZES"
	SessionPhaseCompleted   SessionPhase = "COMPLETED"
)

// PhaseSequence is the order a session moves through its phases.
var PhaseSequence = []SessionPhase{
	SessionPhaseSetup,
	SessionPhaseFirstMarket,
	SessionPhaseContracts,
	SessionPhaseRubata,
	SessionPhaseSvincolati,
	SessionPhasePrizes,
	SessionPhaseCompleted,
}

// HasAuction reports whether the phase embeds the auction machine.
func (p SessionPhase) HasAuction() bool {
	switch p {
	case SessionPhaseFirstMarket, SessionPhaseRubata, SessionPhaseSvincolati:
		return true
	}
	return false
}

// NextPhase returns the phase following p in the session calendar.
func (p SessionPhase) NextPhase() (SessionPhase, error) {
	for i, phase := range PhaseSequence {
		if phase == p {
			if i == len(PhaseSequence)-1 {
				return "", fmt.Errorf("phase %s has no successor", p)
			}
			return PhaseSequence[i+1], nil
		}
	}
	return "", fmt.Errorf("unknown session phase %q", p)
}

// AuctionPhase defines the state of the per-session auction machine.
type AuctionPhase string

const (
	AuctionPhaseIdle           AuctionPhase = "IDLE"
	AuctionPhaseNomination     AuctionPhase = "NOMINATION_PENDING"
	AuctionPhaseReadyCheck     AuctionPhase = "READY_CHECK"
	AuctionPhaseBidding        AuctionPhase = "BIDDING"
	AuctionPhaseAcknowledgment AuctionPhase = "ACKNOWLEDGMENT"
)

// Nomination holds the player put on the block and who nominated them.
type Nomination struct {
	PlayerID     uuid.UUID   `json:"player_id"`
	NominatorID  uuid.UUID   `json:"nominator_id"`
	Confirmed    bool        `json:"confirmed"`
	OpeningBid   int         `json:"opening_bid,omitempty"` // rubata only
	ReadyMembers []uuid.UUID `json:"ready_members,omitempty"`
}

// Bid is a single accepted bid, most recent first in Auction.Bids.
type Bid struct {
	ID       uuid.UUID `json:"id"`
	MemberID uuid.UUID `json:"member_id"`
	Amount   int       `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

// Auction is the live single-player auction derived from the nomination.
type Auction struct {
	PlayerID     uuid.UUID `json:"player_id"`
	BasePrice    int       `json:"base_price"`
	CurrentPrice int       `json:"current_price"`
	Bids         []Bid     `json:"bids"` // most recent first
	StartedAt    time.Time `json:"started_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// HighBidder returns the member holding the current price, if any.
func (a *Auction) HighBidder() (uuid.UUID, bool) {
	if len(a.Bids) == 0 {
		return uuid.Nil, false
	}
	return a.Bids[0].MemberID, true
}

// PendingAcknowledgment tracks who still has to confirm an auction outcome.
type PendingAcknowledgment struct {
	PlayerID     uuid.UUID   `json:"player_id"`
	WinnerID     *uuid.UUID  `json:"winner_id,omitempty"` // nil when unsold
	FinalPrice   int         `json:"final_price"`
	Acknowledged []uuid.UUID `json:"acknowledged"`
	Pending      []uuid.UUID `json:"pending"`
}

// MarketSession is the per-league market window record. It is mutated only
// by auction engine transitions under the per-session lock.
type MarketSession struct {
	ID               uuid.UUID              `json:"id"`
	LeagueID         uuid.UUID              `json:"league_id"`
	Phase            SessionPhase           `json:"phase"`
	AuctionPhase     AuctionPhase           `json:"auction_phase"`
	CurrentRole      Role                   `json:"current_role,omitempty"` // first market only
	RoleSequence     []Role                 `json:"role_sequence"`
	TurnOrder        []uuid.UUID            `json:"turn_order"`
	CurrentTurnIndex int                    `json:"current_turn_index"`
	TimerSeconds     int                    `json:"timer_seconds"`
	Nomination       *Nomination            `json:"nomination,omitempty"`
	Auction          *Auction               `json:"auction,omitempty"`
	PendingAck       *PendingAcknowledgment `json:"pending_ack,omitempty"`
	Passed           []uuid.UUID            `json:"passed,omitempty"` // rubata/svincolati turn passes
	Frozen           bool                   `json:"frozen"`
	FrozenReason     string                 `json:"frozen_reason,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// CurrentTurnMember returns the member whose nomination turn it is.
func (s *MarketSession) CurrentTurnMember() (uuid.UUID, error) {
	if len(s.TurnOrder) == 0 {
		return uuid.Nil, fmt.Errorf("session %s has an empty turn order", s.ID)
	}
	if s.CurrentTurnIndex < 0 || s.CurrentTurnIndex >= len(s.TurnOrder) {
		return uuid.Nil, fmt.Errorf("session %s turn index %d out of bounds for %d members",
			s.ID, s.CurrentTurnIndex, len(s.TurnOrder))
	}
	return s.TurnOrder[s.CurrentTurnIndex], nil
}

// HasPassed reports whether memberID already passed this turn cycle.
func (s *MarketSession) HasPassed(memberID uuid.UUID) bool {
	for _, id := range s.Passed {
		if id == memberID {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of the record. A session that
// fails validation must not be acted on; the caller freezes it instead.
func (s *MarketSession) Validate() error {
	if s.ID == uuid.Nil {
		return fmt.Errorf("session missing id")
	}
	if s.LeagueID == uuid.Nil {
		return fmt.Errorf("session %s missing league id", s.ID)
	}
	if s.Phase.HasAuction() {
		if len(s.TurnOrder) == 0 {
			return fmt.Errorf("session %s in %s with empty turn order", s.ID, s.Phase)
		}
		if s.CurrentTurnIndex < 0 || s.CurrentTurnIndex >= len(s.TurnOrder) {
			return fmt.Errorf("session %s turn index %d out of bounds for %d members",
				s.ID, s.CurrentTurnIndex, len(s.TurnOrder))
		}
	}

	// Exactly one of: no active auction, nomination pending, bidding
	// active, acknowledgment pending.
	switch s.AuctionPhase {
	case AuctionPhaseIdle:
		if s.Nomination != nil || s.Auction != nil || s.PendingAck != nil {
			return fmt.Errorf("session %s idle with leftover auction state", s.ID)
		}
	case AuctionPhaseNomination, AuctionPhaseReadyCheck:
		if s.Nomination == nil {
			return fmt.Errorf("session %s in %s without a nomination", s.ID, s.AuctionPhase)
		}
		if s.Auction != nil || s.PendingAck != nil {
			return fmt.Errorf("session %s in %s with stray auction state", s.ID, s.AuctionPhase)
		}
	case AuctionPhaseBidding:
		if s.Auction == nil {
			return fmt.Errorf("session %s bidding without an auction", s.ID)
		}
		if s.PendingAck != nil {
			return fmt.Errorf("session %s bidding with a pending acknowledgment", s.ID)
		}
		if s.Auction.ExpiresAt.IsZero() {
			return fmt.Errorf("session %s bidding without a timer", s.ID)
		}
	case AuctionPhaseAcknowledgment:
		if s.PendingAck == nil {
			return fmt.Errorf("session %s in acknowledgment without a pending ack", s.ID)
		}
		if s.Auction != nil {
			return fmt.Errorf("session %s in acknowledgment with a live auction", s.ID)
		}
	default:
		return fmt.Errorf("session %s has unknown auction phase %q", s.ID, s.AuctionPhase)
	}
	return nil
}
