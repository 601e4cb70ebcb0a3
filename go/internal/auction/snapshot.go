package auction

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mattiabrun/fantalega/go/internal/models"
)

// The snapshot is the public state shape the presentation layer consumes.
// Clients always re-render from the last committed snapshot; countdowns are
// derived from ExpiresAt plus ServerTime, never counted independently.

// PlayerInfo is the player DTO embedded in auction state.
type PlayerInfo struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Team      string          `json:"team"`
	Role      models.Role     `json:"role"`
	Quotation int             `json:"quotation"`
	Age       int             `json:"age,omitempty"`
	Stats     json.RawMessage `json:"stats,omitempty"`
}

// BidderInfo identifies a bidding member.
type BidderInfo struct {
	MemberID uuid.UUID `json:"member_id"`
	Username string    `json:"username"`
	TeamName string    `json:"team_name"`
}

// BidView is one accepted bid, most recent first.
type BidView struct {
	ID       uuid.UUID  `json:"id"`
	Bidder   BidderInfo `json:"bidder"`
	Amount   int        `json:"amount"`
	PlacedAt time.Time  `json:"placed_at"`
}

// AuctionState is the live auction as broadcast to clients.
type AuctionState struct {
	Player           PlayerInfo `json:"player"`
	BasePrice        int        `json:"base_price"`
	CurrentPrice     int        `json:"current_price"`
	Bids             []BidView  `json:"bids"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RemainingSeconds int        `json:"remaining_seconds"`
}

// ReadyStatus is the per-nomination ready-check view.
type ReadyStatus struct {
	Player             PlayerInfo  `json:"player"`
	NominatorUsername  string      `json:"nominator_username"`
	NominatorConfirmed bool        `json:"nominator_confirmed"`
	UserIsNominator    bool        `json:"user_is_nominator"`
	UserIsReady        bool        `json:"user_is_ready"`
	ReadyMembers       []uuid.UUID `json:"ready_members"`
	PendingMembers     []uuid.UUID `json:"pending_members"`
	ReadyCount         int         `json:"ready_count"`
	TotalMembers       int         `json:"total_members"`
}

// AckStatus is the per-resolution acknowledgment view.
type AckStatus struct {
	Player              PlayerInfo  `json:"player"`
	Winner              *BidderInfo `json:"winner,omitempty"` // nil when unsold
	FinalPrice          int         `json:"final_price"`
	AcknowledgedMembers []uuid.UUID `json:"acknowledged_members"`
	PendingMembers      []uuid.UUID `json:"pending_members"`
	TotalMembers        int         `json:"total_members"`
	TotalAcknowledged   int         `json:"total_acknowledged"`
	UserAcknowledged    bool        `json:"user_acknowledged"`
}

// MemberState is the budget/slot view of one league member.
type MemberState struct {
	MemberID  uuid.UUID                       `json:"member_id"`
	Username  string                          `json:"username"`
	TeamName  string                          `json:"team_name"`
	Budget    int                             `json:"budget"`
	Slots     map[models.Role]models.RoleSlot `json:"slots"`
	Connected bool                            `json:"connected"`
}

// SessionSnapshot is the full public session state for one viewer.
type SessionSnapshot struct {
	SessionID         uuid.UUID           `json:"session_id"`
	LeagueID          uuid.UUID           `json:"league_id"`
	Phase             models.SessionPhase `json:"phase"`
	AuctionPhase      models.AuctionPhase `json:"auction_phase"`
	CurrentRole       models.Role         `json:"current_role,omitempty"`
	TurnOrder         []uuid.UUID         `json:"turn_order"`
	CurrentTurnMember uuid.UUID           `json:"current_turn_member"`
	UserOnTurn        bool                `json:"user_on_turn"`
	Members           []MemberState       `json:"members"`
	Ready             *ReadyStatus        `json:"ready,omitempty"`
	Auction           *AuctionState       `json:"auction,omitempty"`
	PendingAck        *AckStatus          `json:"pending_ack,omitempty"`
	Frozen            bool                `json:"frozen"`
	FrozenReason      string              `json:"frozen_reason,omitempty"`
	ServerTime        time.Time           `json:"server_time"`
}

// Snapshot builds the viewer-specific public state of a session. Reads run
// in one transaction so members, roster and session state are consistent.
func (a *App) Snapshot(ctx context.Context, sessionID, viewerID uuid.UUID) (*SessionSnapshot, error) {
	var snap *SessionSnapshot
	err := a.store.InTx(ctx, func(tx StoreTx) error {
		s, err := tx.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		members, err := tx.ListActiveMembers(ctx, s.LeagueID)
		if err != nil {
			return err
		}
		byID := make(map[uuid.UUID]models.Member, len(members))
		memberStates := make([]MemberState, len(members))
		for i, m := range members {
			byID[m.ID] = m
			memberStates[i] = MemberState{
				MemberID:  m.ID,
				Username:  m.Username,
				TeamName:  m.TeamName,
				Budget:    m.Budget,
				Slots:     m.Slots,
				Connected: m.Connected,
			}
		}

		snap = &SessionSnapshot{
			SessionID:    s.ID,
			LeagueID:     s.LeagueID,
			Phase:        s.Phase,
			AuctionPhase: s.AuctionPhase,
			CurrentRole:  s.CurrentRole,
			TurnOrder:    s.TurnOrder,
			Members:      memberStates,
			Frozen:       s.Frozen,
			FrozenReason: s.FrozenReason,
			ServerTime:   a.timers.Now(),
		}
		if turnMember, err := s.CurrentTurnMember(); err == nil {
			snap.CurrentTurnMember = turnMember
			snap.UserOnTurn = turnMember == viewerID
		}

		if s.Nomination != nil {
			player, err := tx.GetPlayer(ctx, s.Nomination.PlayerID)
			if err != nil {
				return err
			}
			ready := &ReadyStatus{
				Player:             playerInfo(player),
				NominatorUsername:  byID[s.Nomination.NominatorID].Username,
				NominatorConfirmed: s.Nomination.Confirmed,
				UserIsNominator:    s.Nomination.NominatorID == viewerID,
				UserIsReady:        containsID(s.Nomination.ReadyMembers, viewerID),
				ReadyMembers:       s.Nomination.ReadyMembers,
				ReadyCount:         len(s.Nomination.ReadyMembers),
			}
			for _, m := range members {
				if m.ID == s.Nomination.NominatorID {
					continue
				}
				ready.TotalMembers++
				if !containsID(s.Nomination.ReadyMembers, m.ID) {
					ready.PendingMembers = append(ready.PendingMembers, m.ID)
				}
			}
			snap.Ready = ready
		}

		if s.Auction != nil {
			player, err := tx.GetPlayer(ctx, s.Auction.PlayerID)
			if err != nil {
				return err
			}
			state := &AuctionState{
				Player:           playerInfo(player),
				BasePrice:        s.Auction.BasePrice,
				CurrentPrice:     s.Auction.CurrentPrice,
				ExpiresAt:        s.Auction.ExpiresAt,
				RemainingSeconds: a.timers.Remaining(s.Auction.ExpiresAt),
			}
			state.Bids = make([]BidView, len(s.Auction.Bids))
			for i, b := range s.Auction.Bids {
				bidder := byID[b.MemberID]
				state.Bids[i] = BidView{
					ID: b.ID,
					Bidder: BidderInfo{
						MemberID: b.MemberID,
						Username: bidder.Username,
						TeamName: bidder.TeamName,
					},
					Amount:   b.Amount,
					PlacedAt: b.PlacedAt,
				}
			}
			snap.Auction = state
		}

		if s.PendingAck != nil {
			player, err := tx.GetPlayer(ctx, s.PendingAck.PlayerID)
			if err != nil {
				return err
			}
			ackView := &AckStatus{
				Player:              playerInfo(player),
				FinalPrice:          s.PendingAck.FinalPrice,
				AcknowledgedMembers: s.PendingAck.Acknowledged,
				PendingMembers:      s.PendingAck.Pending,
				TotalMembers:        len(s.PendingAck.Acknowledged) + len(s.PendingAck.Pending),
				TotalAcknowledged:   len(s.PendingAck.Acknowledged),
				UserAcknowledged:    containsID(s.PendingAck.Acknowledged, viewerID),
			}
			if s.PendingAck.WinnerID != nil {
				winner := byID[*s.PendingAck.WinnerID]
				ackView.Winner = &BidderInfo{
					MemberID: winner.ID,
					Username: winner.Username,
					TeamName: winner.TeamName,
				}
			}
			snap.PendingAck = ackView
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func playerInfo(p *models.Player) PlayerInfo {
	return PlayerInfo{
		ID:        p.ID,
		Name:      p.Name,
		Team:      p.Team,
		Role:      p.Role,
		Quotation: p.Quotation,
		Age:       p.Age,
		Stats:     p.Stats,
	}
}
