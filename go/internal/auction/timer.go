package auction

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// TimerAuthority is the single source of truth for phase deadlines. Expiry
// is always computed server-side against the authority's clock; client
// countdowns are cosmetic and reconcile against the broadcast expires_at.
type TimerAuthority struct {
	clock clockwork.Clock
}

// NewTimerAuthority creates a timer authority. Production wiring passes
// clockwork.NewRealClock(); tests pass a fake.
func NewTimerAuthority(clock clockwork.Clock) *TimerAuthority {
	return &TimerAuthority{clock: clock}
}

// Now returns the authority's current instant.
func (t *TimerAuthority) Now() time.Time {
	return t.clock.Now()
}

// Start opens a timed window of the given duration and returns its expiry.
func (t *TimerAuthority) Start(seconds int) time.Time {
	return t.clock.Now().Add(time.Duration(seconds) * time.Second)
}

// Reset restarts the window. Every accepted bid grants a full fresh window
// rather than extending to a minimum floor.
func (t *TimerAuthority) Reset(seconds int) time.Time {
	return t.Start(seconds)
}

// Remaining returns the whole seconds left before expiresAt, clamped to 0.
func (t *TimerAuthority) Remaining(expiresAt time.Time) int {
	remaining := int(expiresAt.Sub(t.clock.Now()).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired reports whether expiresAt has passed. Monotonic in wall-clock
// time: once true for a given instant it stays true.
func (t *TimerAuthority) IsExpired(expiresAt time.Time) bool {
	return !t.clock.Now().Before(expiresAt)
}
