package auction

import (
	"testing"

	"github.com/google/uuid"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestComputeInitialOrder(t *testing.T) {
	members := ids(6)

	t.Run("empty member list fails", func(t *testing.T) {
		if _, err := ComputeInitialOrder(nil, 42); err == nil {
			t.Fatal("expected error for empty member list")
		}
	})

	t.Run("seed zero keeps admin order", func(t *testing.T) {
		order, err := ComputeInitialOrder(members, 0)
		if err != nil {
			t.Fatalf("ComputeInitialOrder: %v", err)
		}
		for i, id := range order {
			if id != members[i] {
				t.Fatalf("position %d: got %s, want %s", i, id, members[i])
			}
		}
	})

	t.Run("same seed is reproducible", func(t *testing.T) {
		first, err := ComputeInitialOrder(members, 99)
		if err != nil {
			t.Fatalf("ComputeInitialOrder: %v", err)
		}
		second, err := ComputeInitialOrder(members, 99)
		if err != nil {
			t.Fatalf("ComputeInitialOrder: %v", err)
		}
		for i := range first {
			if first[i] != second[i] {
				t.Fatalf("position %d differs across runs with the same seed", i)
			}
		}
	})

	t.Run("shuffle is a permutation", func(t *testing.T) {
		order, err := ComputeInitialOrder(members, 7)
		if err != nil {
			t.Fatalf("ComputeInitialOrder: %v", err)
		}
		if len(order) != len(members) {
			t.Fatalf("got %d members, want %d", len(order), len(members))
		}
		seen := make(map[uuid.UUID]bool)
		for _, id := range order {
			seen[id] = true
		}
		for _, id := range members {
			if !seen[id] {
				t.Fatalf("member %s missing from shuffled order", id)
			}
		}
	})

	t.Run("input order is not mutated", func(t *testing.T) {
		input := append([]uuid.UUID(nil), members...)
		if _, err := ComputeInitialOrder(input, 7); err != nil {
			t.Fatalf("ComputeInitialOrder: %v", err)
		}
		for i := range input {
			if input[i] != members[i] {
				t.Fatal("input slice was mutated")
			}
		}
	})
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name     string
		orderLen int
		current  int
		want     int
		wantErr  bool
	}{
		{name: "middle", orderLen: 4, current: 1, want: 2},
		{name: "wraps around", orderLen: 4, current: 3, want: 0},
		{name: "single member", orderLen: 1, current: 0, want: 0},
		{name: "empty order", orderLen: 0, current: 0, wantErr: true},
		{name: "negative index", orderLen: 4, current: -1, wantErr: true},
		{name: "index past end", orderLen: 4, current: 4, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Advance(tt.orderLen, tt.current)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Advance: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFilterOrder(t *testing.T) {
	members := ids(4)
	activeAll := map[uuid.UUID]bool{members[0]: true, members[1]: true, members[2]: true, members[3]: true}

	t.Run("all active keeps order and index", func(t *testing.T) {
		order, idx, survived, err := FilterOrder(members, activeAll, 2)
		if err != nil {
			t.Fatalf("FilterOrder: %v", err)
		}
		if len(order) != 4 || idx != 2 || order[idx] != members[2] {
			t.Fatalf("got order %v index %d", order, idx)
		}
		if !survived {
			t.Fatal("current member is active, want survived")
		}
	})

	t.Run("departed member before current", func(t *testing.T) {
		active := map[uuid.UUID]bool{members[1]: true, members[2]: true, members[3]: true}
		order, idx, survived, err := FilterOrder(members, active, 2)
		if err != nil {
			t.Fatalf("FilterOrder: %v", err)
		}
		if len(order) != 3 {
			t.Fatalf("got %d members, want 3", len(order))
		}
		if order[idx] != members[2] {
			t.Fatalf("index points at %s, want %s", order[idx], members[2])
		}
		if !survived {
			t.Fatal("current member is active, want survived")
		}
	})

	t.Run("current member departed points at next active", func(t *testing.T) {
		active := map[uuid.UUID]bool{members[0]: true, members[1]: true, members[3]: true}
		order, idx, survived, err := FilterOrder(members, active, 2)
		if err != nil {
			t.Fatalf("FilterOrder: %v", err)
		}
		if order[idx] != members[3] {
			t.Fatalf("index points at %s, want %s", order[idx], members[3])
		}
		if survived {
			t.Fatal("current member departed, want not survived")
		}
	})

	t.Run("current departed wraps to start", func(t *testing.T) {
		active := map[uuid.UUID]bool{members[0]: true, members[1]: true}
		order, idx, survived, err := FilterOrder(members, active, 3)
		if err != nil {
			t.Fatalf("FilterOrder: %v", err)
		}
		if order[idx] != members[0] {
			t.Fatalf("index points at %s, want %s", order[idx], members[0])
		}
		if survived {
			t.Fatal("current member departed, want not survived")
		}
	})

	t.Run("no active members fails", func(t *testing.T) {
		if _, _, _, err := FilterOrder(members, map[uuid.UUID]bool{}, 0); err == nil {
			t.Fatal("expected error with no active members")
		}
	})

	t.Run("out of bounds index fails", func(t *testing.T) {
		if _, _, _, err := FilterOrder(members, activeAll, 7); err == nil {
			t.Fatal("expected error for out-of-bounds index")
		}
	})
}
