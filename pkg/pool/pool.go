package pool

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/srand/jolt/grid/pkg/identity"
	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/utils"
)

// A pool of worker tokens with exclusive, timeout bounded selection.
//
// All state transitions of tokens happen with the pool lock held, so a
// free token is leased by at most one concurrent selector. Selectors
// that find no free match wait on a broadcast signal that fires when a
// token is registered, returned or invalidated.
type Pool struct {
	sync.RWMutex

	// All tokens that are free, leased or retiring, in registration order.
	tokens []*Token

	// Map of token id to token
	byId map[string]*Token

	// Registration sequence number
	seq uint64

	// Fired whenever the set of selectable tokens may have changed.
	changed *utils.Signal

	// Clock, replaceable in tests.
	now func() time.Time

	// Statistics
	numSelections    atomic.Int64
	numTimeouts      atomic.Int64
	numCancellations atomic.Int64
}

// Pool statistics
type PoolStatistics struct {
	// Number of tokens in the pool, including leased and retiring tokens
	Tokens int64 `json:"tokens"`

	// Number of tokens available for selection
	Free int64 `json:"free"`

	// Number of tokens currently leased
	Leased int64 `json:"leased"`

	// Number of leased tokens that have been invalidated
	Retiring int64 `json:"retiring"`

	// Total number of successful selections
	Selections int64 `json:"selections"`

	// Total number of selections that timed out
	Timeouts int64 `json:"timeouts"`

	// Total number of selections that were cancelled
	Cancellations int64 `json:"cancellations"`
}

// Create a new, empty pool.
func NewPool() *Pool {
	return &Pool{
		byId:    map[string]*Token{},
		changed: utils.NewSignal(),
		now:     time.Now,
	}
}

// Register a worker identity with the pool.
// The returned token is free and immediately selectable.
func (p *Pool) Register(id *identity.Identity) *Token {
	uid, _ := uuid.NewRandom()

	p.Lock()
	p.seq++
	token := &Token{
		id:        uid,
		identity:  id,
		pool:      p,
		seq:       p.seq,
		lastTouch: p.now(),
	}
	token.setState(TokenFree)
	p.tokens = append(p.tokens, token)
	p.byId[token.Id()] = token
	p.Unlock()

	log.Infof("new - token - id: %s, worker: %s", token.Id(), token)
	for key, value := range id.Attributes() {
		log.Debugf("      * %s=%s", key, value)
	}

	p.changed.Notify()
	return token
}

// Invalidate a token, permanently excluding it from selection.
// A free token is removed from the pool immediately. A leased token
// stays leased until it is returned, and is removed then.
// Invalidating a token more than once has no effect.
func (p *Pool) Invalidate(token *Token) {
	if token == nil || token.pool != p {
		return
	}

	p.Lock()
	switch token.State() {
	case TokenFree:
		token.setState(TokenInvalidated)
		p.removeNoLock(token)
		log.Infof("del - token - id: %s, worker: %s", token.Id(), token)
	case TokenLeased:
		token.setState(TokenRetiring)
		log.Infof("del - token - id: %s, worker: %s, retiring on return", token.Id(), token)
	}
	p.Unlock()

	p.changed.Notify()
}

// Must be called with the pool lock held.
func (p *Pool) removeNoLock(token *Token) {
	delete(p.byId, token.Id())
	p.tokens = slices.DeleteFunc(p.tokens, func(t *Token) bool {
		return t == token
	})
}

// SelectToken leases a free token whose identity satisfies interests.
//
// Among several matches the least recently touched token wins, ties are
// broken by registration order. If no token matches, the call waits for
// the pool to change. The wait is bounded by matchTimeout if a token that
// could match exists but is leased, and by noMatchTimeout if no token
// could ever match. Both budgets are measured from the start of the call.
//
// Fails with utils.ErrTimeout when the budget is exhausted and with
// utils.ErrCancelled when ctx is done.
func (p *Pool) SelectToken(ctx context.Context, interests map[string]identity.Interest, matchTimeout, noMatchTimeout time.Duration) (*Token, error) {
	for _, interest := range interests {
		if err := interest.Validate(); err != nil {
			return nil, err
		}
	}

	start := p.now()

	for {
		p.Lock()
		token := p.findFreeNoLock(interests)
		if token != nil {
			token.setState(TokenLeased)
			token.lastTouch = p.now()
			p.Unlock()

			p.numSelections.Add(1)
			log.Debugf("sel - token - id: %s, worker: %s, waited: %s", token.Id(), token, p.now().Sub(start))
			return token, nil
		}

		timeout := noMatchTimeout
		if p.hasCandidateNoLock(interests) {
			timeout = matchTimeout
		}

		// Grab the signal channel before unlocking, so that a change
		// happening between Unlock and select is not missed.
		changed := p.changed.Wait()
		p.Unlock()

		remaining := timeout - p.now().Sub(start)
		if remaining <= 0 {
			p.numTimeouts.Add(1)
			log.Debugf("sel - token - timeout after %s, interests: %v", timeout, interests)
			return nil, fmt.Errorf("%w: no matching token within %s", utils.ErrTimeout, timeout)
		}

		timer := time.NewTimer(remaining)
		select {
		case <-changed:
			timer.Stop()

		case <-timer.C:
			// Loop once more, the pool may have changed right at the deadline.

		case <-ctx.Done():
			timer.Stop()
			p.numCancellations.Add(1)
			log.Debug("sel - token - cancelled:", ctx.Err())
			return nil, fmt.Errorf("%w: %w", utils.ErrCancelled, ctx.Err())
		}
	}
}

// Find the least recently touched free token matching interests.
// Must be called with the pool lock held.
func (p *Pool) findFreeNoLock(interests map[string]identity.Interest) *Token {
	var best *Token

	for _, token := range p.tokens {
		if token.State() != TokenFree {
			continue
		}
		if !token.identity.Satisfies(interests) {
			continue
		}
		// Strictly before: tokens are in registration order,
		// so ties are won by the earliest registration.
		if best == nil || token.lastTouch.Before(best.lastTouch) {
			best = token
		}
	}

	return best
}

// Check if any token that may become free again matches interests.
// Must be called with the pool lock held.
func (p *Pool) hasCandidateNoLock(interests map[string]identity.Interest) bool {
	for _, token := range p.tokens {
		switch token.State() {
		case TokenFree, TokenLeased:
			if token.identity.Satisfies(interests) {
				return true
			}
		}
	}
	return false
}

// ReturnToken releases a leased token.
// A token invalidated while leased is removed from the pool instead of
// becoming free. Returning a token that is not leased fails with
// utils.ErrInvalidLease.
func (p *Pool) ReturnToken(token *Token) error {
	if token == nil {
		return fmt.Errorf("%w: nil token", utils.ErrBadRequest)
	}
	if token.pool != p {
		return fmt.Errorf("%w: token %s does not belong to this pool", utils.ErrInvalidLease, token.Id())
	}

	p.Lock()
	switch token.State() {
	case TokenLeased:
		token.setState(TokenFree)
		token.lastTouch = p.now()
		log.Debugf("ret - token - id: %s, worker: %s", token.Id(), token)

	case TokenRetiring:
		token.setState(TokenInvalidated)
		p.removeNoLock(token)
		log.Infof("del - token - id: %s, worker: %s, retired", token.Id(), token)

	default:
		state := token.State()
		p.Unlock()
		return fmt.Errorf("%w: token %s is %s", utils.ErrInvalidLease, token.Id(), state)
	}
	p.Unlock()

	p.changed.Notify()
	return nil
}

// Lookup returns the token with the given id.
func (p *Pool) Lookup(id string) (*Token, bool) {
	p.RLock()
	defer p.RUnlock()

	token, ok := p.byId[id]
	return token, ok
}

// GetTokens returns a point-in-time snapshot of all tokens in the pool.
func (p *Pool) GetTokens() []TokenInfo {
	p.RLock()
	defer p.RUnlock()

	infos := make([]TokenInfo, 0, len(p.tokens))
	for _, token := range p.tokens {
		infos = append(infos, token.infoNoLock())
	}
	return infos
}

// Len returns the number of tokens in the pool.
func (p *Pool) Len() int {
	p.RLock()
	defer p.RUnlock()
	return len(p.tokens)
}

// Pool statistics
func (p *Pool) Statistics() *PoolStatistics {
	p.RLock()
	defer p.RUnlock()

	stats := &PoolStatistics{
		Tokens:        int64(len(p.tokens)),
		Selections:    p.numSelections.Load(),
		Timeouts:      p.numTimeouts.Load(),
		Cancellations: p.numCancellations.Load(),
	}

	for _, token := range p.tokens {
		switch token.State() {
		case TokenFree:
			stats.Free++
		case TokenLeased:
			stats.Leased++
		case TokenRetiring:
			stats.Retiring++
		}
	}

	return stats
}
