package auction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mattiabrun/fantalega/go/internal/auction/events"
	"github.com/mattiabrun/fantalega/go/internal/models"
)

// AdvancePhase moves the session to the next phase of the market calendar.
// Admin only; refused while an auction round is in flight. Entering an
// auction phase re-materializes the turn order from the currently active
// members and resets the pass cycle.
func (a *App) AdvancePhase(ctx context.Context, sessionID, adminID uuid.UUID) (*models.MarketSession, error) {
	return a.withSession(ctx, sessionID, func(tx StoreTx, s *models.MarketSession) error {
		if _, err := a.requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		if s.AuctionPhase != models.AuctionPhaseIdle {
			return ErrInvalidState
		}
		next, err := s.Phase.NextPhase()
		if err != nil {
			return ErrInvalidState
		}
		from := s.Phase
		if err := a.enterPhase(ctx, tx, s, next); err != nil {
			return err
		}
		if err := a.audit(ctx, tx, s.ID, adminID, "advance_phase", fmt.Sprintf("%s -> %s", from, next)); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, s.ID, events.TypePhaseChanged, events.PhaseChangedPayload{
			From:      string(from),
			To:        string(next),
			TurnOrder: s.TurnOrder,
			Role:      string(s.CurrentRole),
			ChangedAt: a.timers.Now(),
		})
	})
}

// enterPhase applies the bookkeeping of moving into a new session phase.
func (a *App) enterPhase(ctx context.Context, tx StoreTx, s *models.MarketSession, next models.SessionPhase) error {
	s.Phase = next
	s.Passed = nil
	s.CurrentRole = ""

	if !next.HasAuction() {
		return nil
	}

	members, err := tx.ListActiveMembers(ctx, s.LeagueID)
	if err != nil {
		return fmt.Errorf("list active members: %w", err)
	}
	order, idx, _, err := FilterOrder(s.TurnOrder, activeSet(members), 0)
	if err != nil {
		return &FatalError{SessionID: s.ID, Reason: err.Error()}
	}
	s.TurnOrder = order
	s.CurrentTurnIndex = idx
	if next == models.SessionPhaseFirstMarket {
		s.CurrentRole = s.RoleSequence[0]
	}
	return nil
}

// Nominate puts a player on the block for the member whose turn it is.
func (a *App) Nominate(ctx context.Context, req NominateRequest) (*models.MarketSession, error) {
	return a.withSession(ctx, req.SessionID, func(tx StoreTx, s *models.MarketSession) error {
		rules, err := rulesForPhase(s.Phase)
		if err != nil {
			return ErrInvalidState
		}
		if s.AuctionPhase != models.AuctionPhaseIdle {
			return ErrInvalidState
		}
		turnMember, err := s.CurrentTurnMember()
		if err != nil {
			return &FatalError{SessionID: s.ID, Reason: err.Error()}
		}
		if turnMember != req.MemberID {
			return ErrNotYourTurn
		}
		nominator, err := tx.GetMember(ctx, req.MemberID)
		if err != nil {
			return err
		}
		if !nominator.Active {
			return ErrForbidden
		}

		player, err := tx.GetPlayer(ctx, req.PlayerID)
		if err != nil {
			return err
		}
		if rules.roleSequenced && player.Role != s.CurrentRole {
			return ErrPlayerUnavailable
		}

		owner, err := tx.RosterOwner(ctx, s.LeagueID, req.PlayerID)
		if err != nil {
			return err
		}
		if rules.nominateOwned {
			// Rubata: the target must belong to another member, and the
			// opening counter-offer is binding.
			if owner == nil || owner.MemberID == req.MemberID {
				return ErrPlayerUnavailable
			}
			floor := rules.basePrice(player, 0)
			if req.OpeningBid < floor {
				return ErrBidTooLow
			}
			if req.OpeningBid > nominator.Budget {
				return ErrInsufficientBudget
			}
			if !nominator.HasOpenSlot(player.Role) {
				return ErrRoleSlotFull
			}
		} else if owner != nil {
			return ErrPlayerUnavailable
		}

		s.Nomination = &models.Nomination{
			PlayerID:    req.PlayerID,
			NominatorID: req.MemberID,
			OpeningBid:  req.OpeningBid,
		}
		s.AuctionPhase = models.AuctionPhaseNomination
		s.Passed = nil

		log.Info().
			Str("session_id", s.ID.String()).
			Str("member_id", req.MemberID.String()).
			Str("player_id", req.PlayerID.String()).
			Str("phase", string(s.Phase)).
			Msg("player nominated")
		return tx.InsertEvent(ctx, s.ID, events.TypeNominationPending, events.NominationPendingPayload{
			PlayerID:    player.ID,
			PlayerName:  player.Name,
			NominatorID: req.MemberID,
			OpeningBid:  req.OpeningBid,
			NominatedAt: a.timers.Now(),
		})
	})
}

// ConfirmNomination locks the nomination in and opens the ready check.
func (a *App) ConfirmNomination(ctx context.Context, sessionID, memberID uuid.UUID) (*models.MarketSession, error) {
	return a.withSession(ctx, sessionID, func(tx StoreTx, s *models.MarketSession) error {
		if s.AuctionPhase != models.AuctionPhaseNomination {
			return ErrInvalidState
		}
		if s.Nomination.NominatorID != memberID {
			return ErrForbidden
		}
		s.Nomination.Confirmed = true
		s.Nomination.ReadyMembers = nil
		s.AuctionPhase = models.AuctionPhaseReadyCheck

		player, err := tx.GetPlayer(ctx, s.Nomination.PlayerID)
		if err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, s.ID, events.TypeReadyCheckStarted, events.ReadyCheckStartedPayload{
			PlayerID:    player.ID,
			PlayerName:  player.Name,
			NominatorID: memberID,
			StartedAt:   a.timers.Now(),
		}); err != nil {
			return err
		}
		// A league where the nominator is the only active member has no one
		// to wait for.
		return a.startBiddingIfReady(ctx, tx, s)
	})
}

// CancelNomination aborts an unconfirmed nomination back to idle.
func (a *App) CancelNomination(ctx context.Context, sessionID, memberID uuid.UUID) (*models.MarketSession, error) {
	return a.withSession(ctx, sessionID, func(tx StoreTx, s *models.MarketSession) error {
		if s.AuctionPhase != models.AuctionPhaseNomination {
			return ErrInvalidState
		}
		if s.Nomination.NominatorID != memberID {
			return ErrForbidden
		}
		payload := events.NominationCancelledPayload{
			PlayerID:    s.Nomination.PlayerID,
			NominatorID: memberID,
			CancelledAt: a.timers.Now(),
		}
		s.Nomination = nil
		s.AuctionPhase = models.AuctionPhaseIdle
		return tx.InsertEvent(ctx, s.ID, events.TypeNominationCancelled, payload)
	})
}

// MarkReady records a non-nominator member as ready. When every active
// non-nominator member is ready, bidding starts with a full timer window.
func (a *App) MarkReady(ctx context.Context, sessionID, memberID uuid.UUID) (*models.MarketSession, error) {
	return a.withSession(ctx, sessionID, func(tx StoreTx, s *models.MarketSession) error {
		if s.AuctionPhase != models.AuctionPhaseReadyCheck {
			return ErrInvalidState
		}
		if s.Nomination.NominatorID == memberID {
			return ErrForbidden
		}
		member, err := tx.GetMember(ctx, memberID)
		if err != nil {
			return err
		}
		if !member.Active || member.LeagueID != s.LeagueID {
			return ErrForbidden
		}
		if !containsID(s.Nomination.ReadyMembers, memberID) {
			s.Nomination.ReadyMembers = append(s.Nomination.ReadyMembers, memberID)
		}

		members, err := tx.ListActiveMembers(ctx, s.LeagueID)
		if err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, s.ID, events.TypeReadyUpdated, events.ReadyUpdatedPayload{
			MemberID:   memberID,
			ReadyCount: len(s.Nomination.ReadyMembers),
			Total:      nonNominatorCount(members, s.Nomination.NominatorID),
			UpdatedAt:  a.timers.Now(),
		}); err != nil {
			return err
		}
		return a.startBiddingIfReady(ctx, tx, s)
	})
}

// ForceAllReady is an audit-logged admin override that starts bidding
// without waiting for the remaining (stuck or disconnected) members.
func (a *App) ForceAllReady(ctx context.Context, sessionID, adminID uuid.UUID) (*models.MarketSession, error) {
	return a.withSession(ctx, sessionID, func(tx StoreTx, s *models.MarketSession) error {
		if s.AuctionPhase != models.AuctionPhaseReadyCheck {
			return ErrInvalidState
		}
		if _, err := a.requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		if err := a.audit(ctx, tx, s.ID, adminID, "force_all_ready", ""); err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, s.ID, events.TypeReadyUpdated, events.ReadyUpdatedPayload{
			MemberID:  adminID,
			Forced:    true,
			UpdatedAt: a.timers.Now(),
		}); err != nil {
			return err
		}
		return a.startBidding(ctx, tx, s)
	})
}

// startBiddingIfReady starts the auction when all active non-nominator
// members have confirmed ready.
func (a *App) startBiddingIfReady(ctx context.Context, tx StoreTx, s *models.MarketSession) error {
	members, err := tx.ListActiveMembers(ctx, s.LeagueID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if m.ID == s.Nomination.NominatorID {
			continue
		}
		if !containsID(s.Nomination.ReadyMembers, m.ID) {
			return nil
		}
	}
	return a.startBidding(ctx, tx, s)
}

// startBidding transitions READY_CHECK -> BIDDING: materializes the auction
// from the nomination, seeds the rubata opening offer, starts the timer.
func (a *App) startBidding(ctx context.Context, tx StoreTx, s *models.MarketSession) error {
	rules, err := rulesForPhase(s.Phase)
	if err != nil {
		return &FatalError{SessionID: s.ID, Reason: err.Error()}
	}
	player, err := tx.GetPlayer(ctx, s.Nomination.PlayerID)
	if err != nil {
		return err
	}

	now := a.timers.Now()
	base := rules.basePrice(player, s.Nomination.OpeningBid)
	auction := &models.Auction{
		PlayerID:     player.ID,
		BasePrice:    base,
		CurrentPrice: base,
		StartedAt:    now,
		ExpiresAt:    a.timers.Start(s.TimerSeconds),
	}
	if rules.openingBid {
		// The rubata counter-offer is the first bid: with no counter-bids
		// the nominator wins at their offer.
		auction.Bids = []models.Bid{{
			ID:       uuid.New(),
			MemberID: s.Nomination.NominatorID,
			Amount:   base,
			PlacedAt: now,
		}}
	}
	s.Auction = auction
	s.Nomination = nil
	s.AuctionPhase = models.AuctionPhaseBidding

	log.Info().
		Str("session_id", s.ID.String()).
		Str("player_id", player.ID.String()).
		Int("base_price", base).
		Time("expires_at", auction.ExpiresAt).
		Msg("bidding started")
	return tx.InsertEvent(ctx, s.ID, events.TypeBiddingStarted, events.BiddingStartedPayload{
		PlayerID:     player.ID,
		PlayerName:   player.Name,
		BasePrice:    base,
		CurrentPrice: auction.CurrentPrice,
		TimerSeconds: s.TimerSeconds,
		ExpiresAt:    auction.ExpiresAt,
		StartedAt:    now,
	})
}

// PlaceBid validates and accepts a bid, granting a full fresh timer window.
// Two concurrent bids are strictly ordered by the session lock; the loser
// is evaluated against the updated price.
func (a *App) PlaceBid(ctx context.Context, req BidRequest) (*models.MarketSession, error) {
	return a.withSession(ctx, req.SessionID, func(tx StoreTx, s *models.MarketSession) error {
		if s.AuctionPhase != models.AuctionPhaseBidding {
			return ErrInvalidState
		}
		if a.timers.IsExpired(s.Auction.ExpiresAt) {
			// A late bid never races the expiry resolution: it is rejected
			// here and the orchestrator resolves under the same lock.
			return ErrTimerExpired
		}
		if req.Amount <= s.Auction.CurrentPrice {
			return ErrBidTooLow
		}
		member, err := tx.GetMember(ctx, req.MemberID)
		if err != nil {
			return err
		}
		if !member.Active || member.LeagueID != s.LeagueID {
			return ErrForbidden
		}
		if req.Amount > member.Budget {
			return ErrInsufficientBudget
		}
		player, err := tx.GetPlayer(ctx, s.Auction.PlayerID)
		if err != nil {
			return err
		}
		if !member.HasOpenSlot(player.Role) {
			return ErrRoleSlotFull
		}

		now := a.timers.Now()
		bid := models.Bid{
			ID:       uuid.New(),
			MemberID: req.MemberID,
			Amount:   req.Amount,
			PlacedAt: now,
		}
		s.Auction.Bids = append([]models.Bid{bid}, s.Auction.Bids...)
		s.Auction.CurrentPrice = req.Amount
		s.Auction.ExpiresAt = a.timers.Reset(s.TimerSeconds)

		log.Info().
			Str("session_id", s.ID.String()).
			Str("member_id", req.MemberID.String()).
			Int("amount", req.Amount).
			Msg("bid accepted")
		return tx.InsertEvent(ctx, s.ID, events.TypeBidPlaced, events.BidPlacedPayload{
			BidID:     bid.ID,
			MemberID:  bid.MemberID,
			Amount:    bid.Amount,
			ExpiresAt: s.Auction.ExpiresAt,
			PlacedAt:  now,
		})
	})
}

// ResolveExpired closes the auction once its deadline has passed. It is
// triggered by the expiry orchestrator, never by a client. A session whose
// timer was reset by a late-arriving (accepted) bid is left alone.
func (a *App) ResolveExpired(ctx context.Context, sessionID uuid.UUID) (*models.MarketSession, error) {
	return a.withSession(ctx, sessionID, func(tx StoreTx, s *models.MarketSession) error {
		if s.AuctionPhase != models.AuctionPhaseBidding {
			return nil
		}
		if !a.timers.IsExpired(s.Auction.ExpiresAt) {
			return nil
		}
		return a.resolve(ctx, tx, s, false)
	})
}

// CloseAuction is the admin override with the same effect as timer expiry.
func (a *App) CloseAuction(ctx context.Context, sessionID, adminID uuid.UUID) (*models.MarketSession, error) {
	return a.withSession(ctx, sessionID, func(tx StoreTx, s *models.MarketSession) error {
		if s.AuctionPhase != models.AuctionPhaseBidding {
			return ErrInvalidState
		}
		if _, err := a.requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		if err := a.audit(ctx, tx, s.ID, adminID, "close_auction", ""); err != nil {
			return err
		}
		return a.resolve(ctx, tx, s, true)
	})
}

// resolve settles the auction: assigns the player to the high bidder (or
// returns them to the pool), applies budget and roster mutations in the
// same transaction, and opens the acknowledgment round.
func (a *App) resolve(ctx context.Context, tx StoreTx, s *models.MarketSession, forced bool) error {
	rules, err := rulesForPhase(s.Phase)
	if err != nil {
		return &FatalError{SessionID: s.ID, Reason: err.Error()}
	}

	playerID := s.Auction.PlayerID
	ack := &models.PendingAcknowledgment{PlayerID: playerID}

	if winnerID, sold := s.Auction.HighBidder(); sold {
		price := s.Auction.CurrentPrice
		player, err := tx.GetPlayer(ctx, playerID)
		if err != nil {
			return err
		}

		if rules.nominateOwned {
			// Rubata: the previous owner gives up the player and is
			// compensated at the final price.
			owner, err := tx.RosterOwner(ctx, s.LeagueID, playerID)
			if err != nil {
				return err
			}
			if owner == nil {
				return &FatalError{SessionID: s.ID, Reason: fmt.Sprintf("rubata auction for unowned player %s", playerID)}
			}
			if err := tx.DeleteRosterEntry(ctx, owner.MemberID, playerID); err != nil {
				return err
			}
			if err := tx.AdjustRoleSlot(ctx, owner.MemberID, player.Role, -1); err != nil {
				return err
			}
			if err := tx.CreditBudget(ctx, owner.MemberID, price); err != nil {
				return err
			}
		}

		// Budget and slot were checked when the bid was accepted; the
		// guarded SQL re-checks committed state and a failure here means
		// the record is inconsistent.
		if err := tx.DebitBudget(ctx, winnerID, price); err != nil {
			return &FatalError{SessionID: s.ID, Reason: fmt.Sprintf("debit winner %s: %v", winnerID, err)}
		}
		if err := tx.AdjustRoleSlot(ctx, winnerID, player.Role, 1); err != nil {
			return &FatalError{SessionID: s.ID, Reason: fmt.Sprintf("fill %s slot for %s: %v", player.Role, winnerID, err)}
		}
		if err := tx.CreateRosterEntry(ctx, models.RosterEntry{
			ID:              uuid.New(),
			MemberID:        winnerID,
			PlayerID:        playerID,
			Role:            player.Role,
			Price:           price,
			AcquisitionType: rules.acquisition,
			AcquiredAt:      a.timers.Now(),
		}); err != nil {
			return err
		}

		winner := winnerID
		ack.WinnerID = &winner
		ack.FinalPrice = price
	}
	// No bids: the player returns to the unsold pool, nothing to mutate.

	members, err := tx.ListActiveMembers(ctx, s.LeagueID)
	if err != nil {
		return err
	}
	ack.Pending = make([]uuid.UUID, len(members))
	for i, m := range members {
		ack.Pending[i] = m.ID
	}

	s.Auction = nil
	s.PendingAck = ack
	s.AuctionPhase = models.AuctionPhaseAcknowledgment

	log.Info().
		Str("session_id", s.ID.String()).
		Str("player_id", playerID.String()).
		Bool("sold", ack.WinnerID != nil).
		Int("final_price", ack.FinalPrice).
		Bool("forced", forced).
		Msg("auction resolved")
	return tx.InsertEvent(ctx, s.ID, events.TypeAuctionResolved, events.AuctionResolvedPayload{
		PlayerID:   playerID,
		WinnerID:   ack.WinnerID,
		FinalPrice: ack.FinalPrice,
		Forced:     forced,
		ResolvedAt: a.timers.Now(),
	})
}

// Acknowledge moves the caller from pending to acknowledged. The session
// never leaves ACKNOWLEDGMENT until the full active-member set captured at
// resolution has confirmed.
func (a *App) Acknowledge(ctx context.Context, sessionID, memberID uuid.UUID) (*models.MarketSession, error) {
	return a.withSession(ctx, sessionID, func(tx StoreTx, s *models.MarketSession) error {
		if s.AuctionPhase != models.AuctionPhaseAcknowledgment {
			return ErrInvalidState
		}
		if containsID(s.PendingAck.Acknowledged, memberID) {
			return nil // already acknowledged, idempotent
		}
		idx := indexOfID(s.PendingAck.Pending, memberID)
		if idx < 0 {
			return ErrForbidden
		}
		s.PendingAck.Pending = append(s.PendingAck.Pending[:idx], s.PendingAck.Pending[idx+1:]...)
		s.PendingAck.Acknowledged = append(s.PendingAck.Acknowledged, memberID)

		if err := tx.InsertEvent(ctx, s.ID, events.TypeAckUpdated, events.AckUpdatedPayload{
			MemberID:     memberID,
			Acknowledged: len(s.PendingAck.Acknowledged),
			Total:        len(s.PendingAck.Acknowledged) + len(s.PendingAck.Pending),
			UpdatedAt:    a.timers.Now(),
		}); err != nil {
			return err
		}
		if len(s.PendingAck.Pending) > 0 {
			return nil
		}
		return a.completeAckRound(ctx, tx, s)
	})
}

// ForceAcknowledgeAll is the audit-logged admin override for a stalled
// acknowledgment round.
func (a *App) ForceAcknowledgeAll(ctx context.Context, sessionID, adminID uuid.UUID) (*models.MarketSession, error) {
	return a.withSession(ctx, sessionID, func(tx StoreTx, s *models.MarketSession) error {
		if s.AuctionPhase != models.AuctionPhaseAcknowledgment {
			return ErrInvalidState
		}
		if _, err := a.requireAdmin(ctx, tx, adminID); err != nil {
			return err
		}
		if err := a.audit(ctx, tx, s.ID, adminID, "force_acknowledge_all", ""); err != nil {
			return err
		}
		s.PendingAck.Acknowledged = append(s.PendingAck.Acknowledged, s.PendingAck.Pending...)
		s.PendingAck.Pending = nil
		if err := tx.InsertEvent(ctx, s.ID, events.TypeAckUpdated, events.AckUpdatedPayload{
			MemberID:     adminID,
			Forced:       true,
			Acknowledged: len(s.PendingAck.Acknowledged),
			Total:        len(s.PendingAck.Acknowledged),
			UpdatedAt:    a.timers.Now(),
		}); err != nil {
			return err
		}
		return a.completeAckRound(ctx, tx, s)
	})
}

// completeAckRound retires the acknowledgment, advances the nomination turn
// and, in the role-sequenced first market, walks the role sequence when the
// current role is filled league-wide.
func (a *App) completeAckRound(ctx context.Context, tx StoreTx, s *models.MarketSession) error {
	s.PendingAck = nil
	s.AuctionPhase = models.AuctionPhaseIdle

	members, err := tx.ListActiveMembers(ctx, s.LeagueID)
	if err != nil {
		return err
	}
	order, idx, survived, err := FilterOrder(s.TurnOrder, activeSet(members), s.CurrentTurnIndex)
	if err != nil {
		return &FatalError{SessionID: s.ID, Reason: err.Error()}
	}
	// When the turn member departed, the filtered index already points at
	// the next actor; advancing again would skip them.
	next := idx
	if survived {
		next, err = Advance(len(order), idx)
		if err != nil {
			return &FatalError{SessionID: s.ID, Reason: err.Error()}
		}
	}
	s.TurnOrder = order
	s.CurrentTurnIndex = next

	if err := tx.InsertEvent(ctx, s.ID, events.TypeTurnAdvanced, events.TurnAdvancedPayload{
		MemberID:   order[next],
		TurnIndex:  next,
		AdvancedAt: a.timers.Now(),
	}); err != nil {
		return err
	}

	rules, err := rulesForPhase(s.Phase)
	if err != nil {
		return &FatalError{SessionID: s.ID, Reason: err.Error()}
	}
	if !rules.roleSequenced {
		return nil
	}
	return a.advanceRoleIfFilled(ctx, tx, s, members)
}

// advanceRoleIfFilled moves the first market to the next role once every
// active member has filled the current role's slots; after the last role
// the session leaves auction mode into CONTRACTS.
func (a *App) advanceRoleIfFilled(ctx context.Context, tx StoreTx, s *models.MarketSession, members []models.Member) error {
	for _, m := range members {
		slot := m.SlotFor(s.CurrentRole)
		if slot.Filled < slot.Total {
			return nil
		}
	}

	pos := -1
	for i, r := range s.RoleSequence {
		if r == s.CurrentRole {
			pos = i
			break
		}
	}
	if pos == -1 {
		return &FatalError{SessionID: s.ID, Reason: fmt.Sprintf("current role %s not in role sequence", s.CurrentRole)}
	}

	if pos == len(s.RoleSequence)-1 {
		from := s.Phase
		if err := a.enterPhase(ctx, tx, s, models.SessionPhaseContracts); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, s.ID, events.TypePhaseChanged, events.PhaseChangedPayload{
			From:      string(from),
			To:        string(s.Phase),
			ChangedAt: a.timers.Now(),
		})
	}

	from := s.CurrentRole
	s.CurrentRole = s.RoleSequence[pos+1]
	log.Info().
		Str("session_id", s.ID.String()).
		Str("from", string(from)).
		Str("to", string(s.CurrentRole)).
		Msg("first market advanced to next role")
	return tx.InsertEvent(ctx, s.ID, events.TypeRoleAdvanced, events.RoleAdvancedPayload{
		From:       string(from),
		To:         string(s.CurrentRole),
		AdvancedAt: a.timers.Now(),
	})
}

// PassTurn lets the turn member decline to nominate in phases that allow
// it. When every active member has passed in the same cycle the phase is
// finished and the session moves on.
func (a *App) PassTurn(ctx context.Context, sessionID, memberID uuid.UUID) (*models.MarketSession, error) {
	return a.withSession(ctx, sessionID, func(tx StoreTx, s *models.MarketSession) error {
		rules, err := rulesForPhase(s.Phase)
		if err != nil || !rules.allowPass {
			return ErrInvalidState
		}
		if s.AuctionPhase != models.AuctionPhaseIdle {
			return ErrInvalidState
		}
		turnMember, err := s.CurrentTurnMember()
		if err != nil {
			return &FatalError{SessionID: s.ID, Reason: err.Error()}
		}
		if turnMember != memberID {
			return ErrNotYourTurn
		}
		if !containsID(s.Passed, memberID) {
			s.Passed = append(s.Passed, memberID)
		}

		members, err := tx.ListActiveMembers(ctx, s.LeagueID)
		if err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, s.ID, events.TypeTurnPassed, events.TurnPassedPayload{
			MemberID: memberID,
			Passed:   len(s.Passed),
			Total:    len(members),
			PassedAt: a.timers.Now(),
		}); err != nil {
			return err
		}

		allPassed := true
		for _, m := range members {
			if !containsID(s.Passed, m.ID) {
				allPassed = false
				break
			}
		}
		if allPassed {
			from := s.Phase
			next, err := s.Phase.NextPhase()
			if err != nil {
				return &FatalError{SessionID: s.ID, Reason: err.Error()}
			}
			if err := a.enterPhase(ctx, tx, s, next); err != nil {
				return err
			}
			return tx.InsertEvent(ctx, s.ID, events.TypePhaseChanged, events.PhaseChangedPayload{
				From:      string(from),
				To:        string(next),
				ChangedAt: a.timers.Now(),
			})
		}

		order, idx, survived, err := FilterOrder(s.TurnOrder, activeSet(members), s.CurrentTurnIndex)
		if err != nil {
			return &FatalError{SessionID: s.ID, Reason: err.Error()}
		}
		next := idx
		if survived {
			next, err = Advance(len(order), idx)
			if err != nil {
				return &FatalError{SessionID: s.ID, Reason: err.Error()}
			}
		}
		s.TurnOrder = order
		s.CurrentTurnIndex = next
		return tx.InsertEvent(ctx, s.ID, events.TypeTurnAdvanced, events.TurnAdvancedPayload{
			MemberID:   order[next],
			TurnIndex:  next,
			AdvancedAt: a.timers.Now(),
		})
	})
}

func nonNominatorCount(members []models.Member, nominatorID uuid.UUID) int {
	count := 0
	for _, m := range members {
		if m.ID != nominatorID {
			count++
		}
	}
	return count
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	return indexOfID(ids, id) >= 0
}

func indexOfID(ids []uuid.UUID, id uuid.UUID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
