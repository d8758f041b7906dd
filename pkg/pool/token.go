package pool

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/srand/jolt/grid/pkg/identity"
)

// Lease state of a token.
type TokenState int32

const (
	// Eligible for selection.
	TokenFree TokenState = iota
	// Leased by exactly one caller.
	TokenLeased
	// Leased, but invalidated while leased. Becomes TokenInvalidated
	// when returned and is never selected again.
	TokenRetiring
	// Permanently excluded from selection and removed from the pool.
	TokenInvalidated
)

var tokenStateNames = map[TokenState]string{
	TokenFree:        "free",
	TokenLeased:      "leased",
	TokenRetiring:    "retiring",
	TokenInvalidated: "invalidated",
}

func (s TokenState) String() string {
	if name, ok := tokenStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("TokenState(%d)", int32(s))
}

func (s TokenState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TokenState) UnmarshalText(data []byte) error {
	for state, name := range tokenStateNames {
		if name == string(data) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown token state: %q", data)
}

// Counts as usage in capacity reports.
func (s TokenState) isLeased() bool {
	return s == TokenLeased || s == TokenRetiring
}

// A token is an exclusive lease handle wrapping one worker identity.
// Tokens are created and owned by a Pool.
type Token struct {
	id       uuid.UUID
	identity *identity.Identity
	pool     *Pool

	// Registration order, breaks ties between equal lastTouch values.
	seq uint64

	// Written with the pool lock held, readable without.
	state atomic.Int32

	// Time of last lease or release. Guarded by the pool lock.
	lastTouch time.Time
}

// Returns the unique ID of the token.
func (t *Token) Id() string {
	return t.id.String()
}

// Returns the identity of the worker behind the token.
func (t *Token) Identity() *identity.Identity {
	return t.identity
}

// Returns the current lease state of the token.
func (t *Token) State() TokenState {
	return TokenState(t.state.Load())
}

func (t *Token) setState(state TokenState) {
	t.state.Store(int32(state))
}

// Returns a string representation of the token.
// By default, the string representation is the hostname of the worker.
// If the hostname is not available, the identity's ID is returned.
func (t *Token) String() string {
	if hostname := t.identity.Hostname(); hostname != "" {
		return hostname
	}
	return t.identity.Id()
}

// Point-in-time copy of a token.
type TokenInfo struct {
	Id         string            `json:"id"`
	Identity   string            `json:"identity"`
	Attributes map[string]string `json:"attributes"`
	State      TokenState        `json:"state"`
	LastTouch  time.Time         `json:"last_touch"`
}

// Must be called with the pool lock held.
func (t *Token) infoNoLock() TokenInfo {
	return TokenInfo{
		Id:         t.Id(),
		Identity:   t.identity.Id(),
		Attributes: t.identity.Attributes(),
		State:      t.State(),
		LastTouch:  t.lastTouch,
	}
}
