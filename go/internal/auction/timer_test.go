package auction

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestTimerAuthority(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 20, 21, 0, 0, 0, time.UTC))
	timers := NewTimerAuthority(clock)

	t.Run("start opens a full window", func(t *testing.T) {
		expiresAt := timers.Start(30)
		if got := timers.Remaining(expiresAt); got != 30 {
			t.Fatalf("Remaining = %d, want 30", got)
		}
		if timers.IsExpired(expiresAt) {
			t.Fatal("fresh window reported expired")
		}
	})

	t.Run("remaining counts down and clamps to zero", func(t *testing.T) {
		expiresAt := timers.Start(30)
		clock.Advance(12 * time.Second)
		if got := timers.Remaining(expiresAt); got != 18 {
			t.Fatalf("Remaining = %d, want 18", got)
		}
		clock.Advance(60 * time.Second)
		if got := timers.Remaining(expiresAt); got != 0 {
			t.Fatalf("Remaining = %d, want 0 after expiry", got)
		}
	})

	t.Run("expiry is inclusive at the deadline", func(t *testing.T) {
		expiresAt := timers.Start(30)
		clock.Advance(30 * time.Second)
		if !timers.IsExpired(expiresAt) {
			t.Fatal("window not expired exactly at the deadline")
		}
	})

	t.Run("expiry is monotonic", func(t *testing.T) {
		expiresAt := timers.Start(10)
		clock.Advance(11 * time.Second)
		if !timers.IsExpired(expiresAt) {
			t.Fatal("window not expired past the deadline")
		}
		clock.Advance(time.Hour)
		if !timers.IsExpired(expiresAt) {
			t.Fatal("expired window flipped back")
		}
	})

	t.Run("reset grants a full fresh window", func(t *testing.T) {
		expiresAt := timers.Start(30)
		clock.Advance(29 * time.Second)
		expiresAt = timers.Reset(30)
		if got := timers.Remaining(expiresAt); got != 30 {
			t.Fatalf("Remaining after reset = %d, want 30", got)
		}
	})
}
