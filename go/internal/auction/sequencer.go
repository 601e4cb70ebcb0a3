package auction

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
)

// Turn sequencing is deterministic: the order is materialized once when a
// market phase opens and stored on the session, never recomputed mid-phase.

// ComputeInitialOrder produces the nomination order for a market phase.
// A non-zero seed shuffles the members reproducibly (random-once-then-fixed);
// seed zero keeps the order exactly as the admin supplied it.
func ComputeInitialOrder(memberIDs []uuid.UUID, seed int64) ([]uuid.UUID, error) {
	if len(memberIDs) == 0 {
		return nil, fmt.Errorf("cannot compute a turn order with no members")
	}
	order := make([]uuid.UUID, len(memberIDs))
	copy(order, memberIDs)
	if seed != 0 {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}
	return order, nil
}

// Advance returns the index of the next nomination turn in a circular order.
func Advance(orderLen, current int) (int, error) {
	if orderLen == 0 {
		return 0, fmt.Errorf("cannot advance an empty turn order")
	}
	if current < 0 || current >= orderLen {
		return 0, fmt.Errorf("turn index %d out of bounds for %d members", current, orderLen)
	}
	return (current + 1) % orderLen, nil
}

// FilterOrder drops members no longer active from the order, preserving the
// historical order of the rest. The returned index points at the same member
// as before when they survived the filter, otherwise at the member who would
// have acted next; survived tells the caller which case it got, so turn
// advancement is skipped when the index already moved past the departed
// member.
func FilterOrder(order []uuid.UUID, active map[uuid.UUID]bool, current int) ([]uuid.UUID, int, bool, error) {
	if current < 0 || current >= len(order) {
		return nil, 0, false, fmt.Errorf("turn index %d out of bounds for %d members", current, len(order))
	}

	filtered := make([]uuid.UUID, 0, len(order))
	next := -1
	for offset := 0; offset < len(order); offset++ {
		i := (current + offset) % len(order)
		if active[order[i]] && next == -1 {
			next = i
		}
	}
	if next == -1 {
		return nil, 0, false, fmt.Errorf("cannot filter turn order: no active members remain")
	}

	newIndex := 0
	for i, id := range order {
		if !active[id] {
			continue
		}
		if i == next {
			newIndex = len(filtered)
		}
		filtered = append(filtered, id)
	}
	return filtered, newIndex, next == current, nil
}
