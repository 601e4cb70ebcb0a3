package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mattiabrun/fantalega/go/internal/models"
)

// fakeStore is an in-memory Store with transactional semantics: the state
// is snapshotted at InTx entry and restored when fn fails, mirroring a
// rolled-back database transaction.
type fakeStore struct {
	mu    sync.Mutex
	clock clockwork.Clock

	sessions    map[uuid.UUID]*models.MarketSession
	members     map[uuid.UUID]*models.Member
	memberOrder []uuid.UUID
	players     map[uuid.UUID]*models.Player
	rosters     []models.RosterEntry

	events []recordedEvent
	audits []AuditEntry
}

type recordedEvent struct {
	SessionID uuid.UUID
	Type      string
}

func newFakeStore(clock clockwork.Clock) *fakeStore {
	return &fakeStore{
		clock:    clock,
		sessions: make(map[uuid.UUID]*models.MarketSession),
		members:  make(map[uuid.UUID]*models.Member),
		players:  make(map[uuid.UUID]*models.Player),
	}
}

func (f *fakeStore) InTx(ctx context.Context, fn func(tx StoreTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snapSessions := cloneMap(f.sessions)
	snapMembers := cloneMap(f.members)
	snapOrder := append([]uuid.UUID(nil), f.memberOrder...)
	snapRosters := append([]models.RosterEntry(nil), f.rosters...)
	snapEvents := len(f.events)
	snapAudits := len(f.audits)

	if err := fn(&fakeTx{store: f}); err != nil {
		f.sessions = snapSessions
		f.members = snapMembers
		f.memberOrder = snapOrder
		f.rosters = snapRosters
		f.events = f.events[:snapEvents]
		f.audits = f.audits[:snapAudits]
		return err
	}
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, id uuid.UUID) (*models.MarketSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return clone(s), nil
}

func (f *fakeStore) NextDeadline(ctx context.Context) (*NextDeadline, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var next NextDeadline
	for _, s := range f.sessions {
		if s.AuctionPhase != models.AuctionPhaseBidding || s.Frozen {
			continue
		}
		if next.Deadline == nil || s.Auction.ExpiresAt.Before(*next.Deadline) {
			d := s.Auction.ExpiresAt
			next.SessionID = s.ID
			next.Deadline = &d
		}
	}
	return &next, nil
}

func (f *fakeStore) SessionsDue(ctx context.Context, limit int32) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var due []uuid.UUID
	for _, s := range f.sessions {
		if s.AuctionPhase != models.AuctionPhaseBidding || s.Frozen {
			continue
		}
		if !f.clock.Now().Before(s.Auction.ExpiresAt) {
			due = append(due, s.ID)
		}
		if int32(len(due)) >= limit {
			break
		}
	}
	return due, nil
}

// directSession mutates stored state outside any transaction, to set up
// inconsistencies the engine must detect.
func (f *fakeStore) directSession(id uuid.UUID, mutate func(s *models.MarketSession)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f.sessions[id])
}

func (f *fakeStore) directMember(id uuid.UUID, mutate func(m *models.Member)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(f.members[id])
}

func (f *fakeStore) eventTypes(sessionID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, e := range f.events {
		if e.SessionID == sessionID {
			types = append(types, e.Type)
		}
	}
	return types
}

func (f *fakeStore) auditActions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var actions []string
	for _, a := range f.audits {
		actions = append(actions, a.Action)
	}
	return actions
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) CreateSession(ctx context.Context, s *models.MarketSession) error {
	if _, exists := t.store.sessions[s.ID]; exists {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	t.store.sessions[s.ID] = clone(s)
	return nil
}

func (t *fakeTx) GetSession(ctx context.Context, id uuid.UUID) (*models.MarketSession, error) {
	s, ok := t.store.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return clone(s), nil
}

func (t *fakeTx) GetSessionForUpdate(ctx context.Context, id uuid.UUID) (*models.MarketSession, error) {
	return t.GetSession(ctx, id)
}

func (t *fakeTx) SaveSession(ctx context.Context, s *models.MarketSession) error {
	if _, ok := t.store.sessions[s.ID]; !ok {
		return ErrSessionNotFound
	}
	t.store.sessions[s.ID] = clone(s)
	return nil
}

func (t *fakeTx) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m, ok := t.store.members[id]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return clone(m), nil
}

func (t *fakeTx) ListActiveMembers(ctx context.Context, leagueID uuid.UUID) ([]models.Member, error) {
	var out []models.Member
	for _, id := range t.store.memberOrder {
		m := t.store.members[id]
		if m.LeagueID == leagueID && m.Active {
			out = append(out, *clone(m))
		}
	}
	return out, nil
}

func (t *fakeTx) DebitBudget(ctx context.Context, memberID uuid.UUID, amount int) error {
	m, ok := t.store.members[memberID]
	if !ok {
		return ErrMemberNotFound
	}
	if m.Budget < amount {
		return fmt.Errorf("debit %d from member %s: insufficient funds", amount, memberID)
	}
	m.Budget -= amount
	return nil
}

func (t *fakeTx) CreditBudget(ctx context.Context, memberID uuid.UUID, amount int) error {
	m, ok := t.store.members[memberID]
	if !ok {
		return ErrMemberNotFound
	}
	m.Budget += amount
	return nil
}

func (t *fakeTx) AdjustRoleSlot(ctx context.Context, memberID uuid.UUID, role models.Role, delta int) error {
	m, ok := t.store.members[memberID]
	if !ok {
		return ErrMemberNotFound
	}
	slot := m.Slots[role]
	filled := slot.Filled + delta
	if filled < 0 || filled > slot.Total {
		return fmt.Errorf("adjust %s slot for member %s: %d out of range 0..%d", role, memberID, filled, slot.Total)
	}
	slot.Filled = filled
	m.Slots[role] = slot
	return nil
}

func (t *fakeTx) CreateRosterEntry(ctx context.Context, entry models.RosterEntry) error {
	for _, e := range t.store.rosters {
		if e.MemberID == entry.MemberID && e.PlayerID == entry.PlayerID {
			return fmt.Errorf("member %s already rosters player %s", entry.MemberID, entry.PlayerID)
		}
	}
	t.store.rosters = append(t.store.rosters, entry)
	return nil
}

func (t *fakeTx) DeleteRosterEntry(ctx context.Context, memberID, playerID uuid.UUID) error {
	for i, e := range t.store.rosters {
		if e.MemberID == memberID && e.PlayerID == playerID {
			t.store.rosters = append(t.store.rosters[:i], t.store.rosters[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no roster entry for member %s player %s", memberID, playerID)
}

func (t *fakeTx) RosterOwner(ctx context.Context, leagueID, playerID uuid.UUID) (*models.RosterEntry, error) {
	for _, e := range t.store.rosters {
		owner, ok := t.store.members[e.MemberID]
		if ok && owner.LeagueID == leagueID && e.PlayerID == playerID {
			entry := e
			return &entry, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	p, ok := t.store.players[id]
	if !ok {
		return nil, ErrPlayerUnavailable
	}
	return clone(p), nil
}

func (t *fakeTx) InsertEvent(ctx context.Context, sessionID uuid.UUID, eventType string, payload any) error {
	// payloads must survive the wire
	if _, err := json.Marshal(payload); err != nil {
		return err
	}
	t.store.events = append(t.store.events, recordedEvent{SessionID: sessionID, Type: eventType})
	return nil
}

func (t *fakeTx) InsertAudit(ctx context.Context, entry AuditEntry) error {
	t.store.audits = append(t.store.audits, entry)
	return nil
}

func clone[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

func cloneMap[T any](m map[uuid.UUID]*T) map[uuid.UUID]*T {
	out := make(map[uuid.UUID]*T, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}

// fixture assembles an engine over the fake store with a three-member
// league: an admin and two regular members.
type fixture struct {
	t     *testing.T
	app   *App
	store *fakeStore
	clock *clockwork.FakeClock

	league uuid.UUID
	admin  uuid.UUID
	alice  uuid.UUID
	bob    uuid.UUID
}

func defaultSlots() map[models.Role]models.RoleSlot {
	return map[models.Role]models.RoleSlot{
		models.RolePortiere:       {Total: 3},
		models.RoleDifensore:      {Total: 8},
		models.RoleCentrocampista: {Total: 8},
		models.RoleAttaccante:     {Total: 6},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 20, 21, 0, 0, 0, time.UTC))
	store := newFakeStore(clock)

	f := &fixture{
		t:      t,
		app:    NewApp(store, clock),
		store:  store,
		clock:  clock,
		league: uuid.New(),
	}
	f.admin = f.addMember("admin", 500, true)
	f.alice = f.addMember("alice", 500, false)
	f.bob = f.addMember("bob", 500, false)
	return f
}

func (f *fixture) addMember(username string, budget int, admin bool) uuid.UUID {
	id := uuid.New()
	f.store.members[id] = &models.Member{
		ID:       id,
		LeagueID: f.league,
		UserID:   uuid.New(),
		Username: username,
		Budget:   budget,
		Slots:    defaultSlots(),
		Admin:    admin,
		Active:   true,
		JoinedAt: f.clock.Now(),
	}
	f.store.memberOrder = append(f.store.memberOrder, id)
	return id
}

func (f *fixture) addPlayer(name string, role models.Role, quotation int) uuid.UUID {
	id := uuid.New()
	f.store.players[id] = &models.Player{
		ID:        id,
		Name:      name,
		Team:      "Test FC",
		Role:      role,
		Quotation: quotation,
	}
	return id
}

// newSession creates a session whose turn order is admin, alice, bob.
func (f *fixture) newSession() *models.MarketSession {
	f.t.Helper()
	s, err := f.app.CreateSession(context.Background(), CreateSessionRequest{
		LeagueID:     f.league,
		TimerSeconds: 30,
		TurnOrder:    []uuid.UUID{f.admin, f.alice, f.bob},
	})
	if err != nil {
		f.t.Fatalf("CreateSession: %v", err)
	}
	return s
}

// enterPhase drives the session forward with admin AdvancePhase calls.
func (f *fixture) enterPhase(sessionID uuid.UUID, target models.SessionPhase) *models.MarketSession {
	f.t.Helper()
	for i := 0; i < len(models.PhaseSequence); i++ {
		s, err := f.app.store.GetSession(context.Background(), sessionID)
		if err != nil {
			f.t.Fatalf("GetSession: %v", err)
		}
		if s.Phase == target {
			return s
		}
		if s, err = f.app.AdvancePhase(context.Background(), sessionID, f.admin); err != nil {
			f.t.Fatalf("AdvancePhase from %s: %v", s.Phase, err)
		}
	}
	f.t.Fatalf("never reached phase %s", target)
	return nil
}

func (f *fixture) member(id uuid.UUID) *models.Member {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	return clone(f.store.members[id])
}

// runAuction drives nominate → confirm → all ready for a first-market or
// svincolati player, leaving the session in BIDDING.
func (f *fixture) runAuction(sessionID, nominator, playerID uuid.UUID) {
	f.t.Helper()
	ctx := context.Background()
	if _, err := f.app.Nominate(ctx, NominateRequest{SessionID: sessionID, MemberID: nominator, PlayerID: playerID}); err != nil {
		f.t.Fatalf("Nominate: %v", err)
	}
	if _, err := f.app.ConfirmNomination(ctx, sessionID, nominator); err != nil {
		f.t.Fatalf("ConfirmNomination: %v", err)
	}
	for _, id := range []uuid.UUID{f.admin, f.alice, f.bob} {
		if id == nominator {
			continue
		}
		if _, err := f.app.MarkReady(ctx, sessionID, id); err != nil {
			f.t.Fatalf("MarkReady %s: %v", id, err)
		}
	}
}

// ackAll acknowledges the resolution for every member.
func (f *fixture) ackAll(sessionID uuid.UUID) *models.MarketSession {
	f.t.Helper()
	var s *models.MarketSession
	var err error
	for _, id := range []uuid.UUID{f.admin, f.alice, f.bob} {
		if s, err = f.app.Acknowledge(context.Background(), sessionID, id); err != nil {
			f.t.Fatalf("Acknowledge %s: %v", id, err)
		}
	}
	return s
}
