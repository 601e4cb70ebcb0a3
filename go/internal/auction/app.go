package auction

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mattiabrun/fantalega/go/internal/auction/events"
	"github.com/mattiabrun/fantalega/go/internal/models"
)

// DefaultTimerSeconds is the bidding window used when a session is created
// without an explicit timer configuration.
const DefaultTimerSeconds = 60

// App runs the auction-room state machine. Every mutating operation takes
// the per-session lock, loads the session inside one transaction, applies
// the transition, and commits the session write together with any budget,
// roster, outbox and audit writes.
type App struct {
	store  Store
	timers *TimerAuthority
	locks  *sessionLocks

	// notifyDeadline wakes the expiry scheduler after a transition starts or
	// extends a bidding timer. Set once at wiring time.
	notifyDeadline func()
}

// NewApp creates the auction engine on top of a Store.
func NewApp(store Store, clock clockwork.Clock) *App {
	return &App{
		store:          store,
		timers:         NewTimerAuthority(clock),
		locks:          newSessionLocks(),
		notifyDeadline: func() {},
	}
}

// Timers exposes the engine's timer authority so the gateway and the
// orchestrator compute remaining time against the same clock.
func (a *App) Timers() *TimerAuthority {
	return a.timers
}

// SetDeadlineNotifier registers fn to run whenever a bidding deadline is
// created or moved.
func (a *App) SetDeadlineNotifier(fn func()) {
	if fn != nil {
		a.notifyDeadline = fn
	}
}

// NextDeadline exposes the earliest bidding deadline for the scheduler.
func (a *App) NextDeadline(ctx context.Context) (*NextDeadline, error) {
	return a.store.NextDeadline(ctx)
}

// SessionsDue exposes sessions with elapsed deadlines for the scheduler.
func (a *App) SessionsDue(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	return a.store.SessionsDue(ctx, limit)
}

// CreateSession opens a market session for a league, materializing the
// nomination order once. The order is stored and never recomputed mid-phase.
func (a *App) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.MarketSession, error) {
	if req.LeagueID == uuid.Nil {
		return nil, fmt.Errorf("create session: league id is required")
	}

	var session *models.MarketSession
	err := a.store.InTx(ctx, func(tx StoreTx) error {
		members, err := tx.ListActiveMembers(ctx, req.LeagueID)
		if err != nil {
			return fmt.Errorf("list active members: %w", err)
		}

		order := req.TurnOrder
		if len(order) == 0 {
			ids := make([]uuid.UUID, len(members))
			for i, m := range members {
				ids[i] = m.ID
			}
			order, err = ComputeInitialOrder(ids, req.TurnSeed)
			if err != nil {
				return fmt.Errorf("compute turn order: %w", err)
			}
		} else {
			active := make(map[uuid.UUID]bool, len(members))
			for _, m := range members {
				active[m.ID] = true
			}
			for _, id := range order {
				if !active[id] {
					return fmt.Errorf("turn order member %s is not an active league member", id)
				}
			}
		}

		roleSeq := req.RoleSequence
		if len(roleSeq) == 0 {
			roleSeq = models.DefaultRoleSequence
		}
		timerSeconds := req.TimerSeconds
		if timerSeconds <= 0 {
			timerSeconds = DefaultTimerSeconds
		}

		now := a.timers.Now()
		session = &models.MarketSession{
			ID:           uuid.New(),
			LeagueID:     req.LeagueID,
			Phase:        models.SessionPhaseSetup,
			AuctionPhase: models.AuctionPhaseIdle,
			RoleSequence: roleSeq,
			TurnOrder:    order,
			TimerSeconds: timerSeconds,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := session.Validate(); err != nil {
			return fmt.Errorf("validate new session: %w", err)
		}
		if err := tx.CreateSession(ctx, session); err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return tx.InsertEvent(ctx, session.ID, events.TypeSessionCreated, events.SessionCreatedPayload{
			LeagueID:     session.LeagueID,
			TurnOrder:    session.TurnOrder,
			TimerSeconds: session.TimerSeconds,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session_id", session.ID.String()).
		Str("league_id", session.LeagueID.String()).
		Int("members", len(session.TurnOrder)).
		Msg("market session created")
	return session, nil
}

// withSession runs fn under the session lock inside one transaction. The
// session is validated before and after the transition; a validation
// failure aborts the transaction and freezes the session in a follow-up
// commit (fail closed, never silently auto-correct).
func (a *App) withSession(ctx context.Context, sessionID uuid.UUID, fn func(tx StoreTx, s *models.MarketSession) error) (*models.MarketSession, error) {
	mu := a.locks.get(sessionID)
	mu.Lock()
	defer mu.Unlock()

	var out *models.MarketSession
	err := a.store.InTx(ctx, func(tx StoreTx) error {
		s, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Frozen {
			return ErrSessionFrozen
		}
		if err := s.Validate(); err != nil {
			return &FatalError{SessionID: s.ID, Reason: err.Error()}
		}
		if err := fn(tx, s); err != nil {
			return err
		}
		if err := s.Validate(); err != nil {
			return &FatalError{SessionID: s.ID, Reason: err.Error()}
		}
		s.UpdatedAt = a.timers.Now()
		if err := tx.SaveSession(ctx, s); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		out = s
		return nil
	})
	if err != nil {
		if IsFatal(err) {
			a.freezeSession(ctx, sessionID, err)
		}
		return nil, err
	}
	if out.AuctionPhase == models.AuctionPhaseBidding {
		// a started or extended timer may be the new earliest deadline
		a.notifyDeadline()
	}
	return out, nil
}

// freezeSession commits the frozen flag in its own transaction, after the
// failed transition has rolled back.
func (a *App) freezeSession(ctx context.Context, sessionID uuid.UUID, cause error) {
	fatal := &FatalError{}
	if f, ok := cause.(*FatalError); ok {
		fatal = f
	} else {
		fatal.SessionID = sessionID
		fatal.Reason = cause.Error()
	}

	err := a.store.InTx(ctx, func(tx StoreTx) error {
		s, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Frozen {
			return nil
		}
		s.Frozen = true
		s.FrozenReason = fatal.Reason
		s.UpdatedAt = a.timers.Now()
		if err := tx.SaveSession(ctx, s); err != nil {
			return err
		}
		return tx.InsertEvent(ctx, s.ID, events.TypeSessionFrozen, events.SessionFrozenPayload{
			Reason:   fatal.Reason,
			FrozenAt: s.UpdatedAt,
		})
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID.String()).Msg("failed to freeze session")
		return
	}
	log.Error().
		Str("session_id", sessionID.String()).
		Str("reason", fatal.Reason).
		Msg("session frozen pending admin repair")
}

// UnfreezeSession lifts a freeze after manual repair. The repaired record
// must pass validation or the unfreeze is refused.
func (a *App) UnfreezeSession(ctx context.Context, sessionID, adminID uuid.UUID) (*models.MarketSession, error) {
	mu := a.locks.get(sessionID)
	mu.Lock()
	defer mu.Unlock()

	var out *models.MarketSession
	err := a.store.InTx(ctx, func(tx StoreTx) error {
		admin, err := tx.GetMember(ctx, adminID)
		if err != nil {
			return err
		}
		if !admin.Admin {
			return ErrForbidden
		}
		s, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !s.Frozen {
			return ErrInvalidState
		}
		s.Frozen = false
		s.FrozenReason = ""
		if err := s.Validate(); err != nil {
			return fmt.Errorf("session still inconsistent, repair it first: %w", err)
		}
		s.UpdatedAt = a.timers.Now()
		if err := tx.SaveSession(ctx, s); err != nil {
			return err
		}
		if err := a.audit(ctx, tx, s.ID, adminID, "unfreeze_session", ""); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Warn().
		Str("session_id", sessionID.String()).
		Str("admin_id", adminID.String()).
		Msg("session unfrozen by admin")
	return out, nil
}

func (a *App) audit(ctx context.Context, tx StoreTx, sessionID, actorID uuid.UUID, action, detail string) error {
	return tx.InsertAudit(ctx, AuditEntry{
		ID:        uuid.New(),
		SessionID: sessionID,
		ActorID:   actorID,
		Action:    action,
		Detail:    detail,
		CreatedAt: a.timers.Now(),
	})
}

// requireAdmin loads actorID and checks the admin flag.
func (a *App) requireAdmin(ctx context.Context, tx StoreTx, actorID uuid.UUID) (*models.Member, error) {
	member, err := tx.GetMember(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !member.Admin || !member.Active {
		return nil, ErrForbidden
	}
	return member, nil
}

// activeSet returns the league's active members keyed by id.
func activeSet(members []models.Member) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		set[m.ID] = true
	}
	return set
}
