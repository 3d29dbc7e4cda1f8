// periph/set.go
package periph

import (
	"sync"

	"firmboot-go/errcode"
)

// Set is the arena holding the complete peripheral token set of a board.
// It is materialized exactly once by the platform initializer; each ID's
// token can be claimed at most once, ever. There is no release: embedded
// firmware runs until reset, and ownership is permanent once granted.
type Set struct {
	mu    sync.Mutex
	order []ID
	slots map[ID]*slot
}

type slot struct {
	claimed bool
	owner   string
}

// NewSet builds a set with one unclaimed slot per ID, in the given order.
// Duplicate IDs are a plan error and panic.
func NewSet(ids ...ID) *Set {
	s := &Set{slots: make(map[ID]*slot, len(ids))}
	for _, id := range ids {
		if id == "" {
			panic(errcode.InvalidPlan)
		}
		if _, dup := s.slots[id]; dup {
			panic(errcode.InvalidPlan)
		}
		s.slots[id] = &slot{}
		s.order = append(s.order, id)
	}
	return s
}

// Claim hands out the single token for id. A second claim of the same id
// fails with errcode.TokenClaimed, naming the first owner.
func (s *Set) Claim(owner string, id ID) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[id]
	if !ok {
		return Token{}, &errcode.E{C: errcode.UnknownToken, Op: "claim", Msg: string(id)}
	}
	if sl.claimed {
		return Token{}, &errcode.E{C: errcode.TokenClaimed, Op: "claim",
			Msg: string(id) + " held by " + sl.owner}
	}
	sl.claimed = true
	sl.owner = owner
	return Token{c: &cell{id: id}}, nil
}

// MustClaim is Claim for wiring code where a conflict is a programming error.
func (s *Set) MustClaim(owner string, id ID) Token {
	t, err := s.Claim(owner, id)
	if err != nil {
		panic(err)
	}
	return t
}

// Has reports whether id exists in the set (claimed or not).
func (s *Set) Has(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slots[id]
	return ok
}

// Owner returns the claimant of id, if it has been claimed.
func (s *Set) Owner(id ID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok := s.slots[id]; ok && sl.claimed {
		return sl.owner, true
	}
	return "", false
}

// Remaining lists unclaimed IDs in set order.
func (s *Set) Remaining() []ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ID
	for _, id := range s.order {
		if !s.slots[id].claimed {
			out = append(out, id)
		}
	}
	return out
}
