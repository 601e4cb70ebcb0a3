package auction

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Validation, authorization and state-conflict errors are returned to the
// acting client only. They never mutate session state and never reach the
// broadcast channel.
var (
	// Validation
	ErrBidTooLow          = errors.New("bid does not exceed current price")
	ErrInsufficientBudget = errors.New("bid exceeds remaining budget")
	ErrRoleSlotFull       = errors.New("role slot already full")
	ErrPlayerUnavailable  = errors.New("player is not available for nomination")

	// Authorization
	ErrNotYourTurn = errors.New("not this member's nomination turn")
	ErrForbidden   = errors.New("member may not perform this action")

	// State conflict; the client refreshes from the latest broadcast state.
	ErrInvalidState = errors.New("action not valid in current auction phase")
	ErrTimerExpired = errors.New("auction timer has expired")

	// System
	ErrSessionNotFound = errors.New("market session not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrSessionFrozen   = errors.New("session is frozen pending admin repair")
)

// FatalError marks a detected session inconsistency. The session is frozen
// and accepts no further mutations until an admin repairs it.
type FatalError struct {
	SessionID uuid.UUID
	Reason    string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("session %s frozen: %s", e.SessionID, e.Reason)
}

// IsFatal reports whether err carries a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
