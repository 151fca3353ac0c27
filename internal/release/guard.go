package release

import (
	"sync"
)

// State is the verification state held by a Guard.
type State int

const (
	StateUnverified State = iota
	StateVerified
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	default:
		return "unverified"
	}
}

// #region guard

// Guard is the fail-closed latch in front of the decision pipeline. Once a
// verification fails the guard stays failed for the life of the process.
type Guard struct {
	mu      sync.RWMutex
	state   State
	release *Release
	err     error
}

// NewGuard returns an unverified guard. Check fails until Verify succeeds.
func NewGuard() *Guard {
	return &Guard{}
}

// Verify runs a full verification and records the outcome. A failed guard
// is not re-armed by a later success.
func (g *Guard) Verify(opts Options) (*Release, error) {
	rel, err := Verify(opts)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateFailed {
		return nil, g.err
	}
	if err != nil {
		g.state = StateFailed
		g.err = err
		g.release = nil
		return nil, err
	}
	g.state = StateVerified
	g.release = rel
	return rel, nil
}

// Fail latches the guard with err. The first recorded failure is kept.
func (g *Guard) Fail(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateFailed {
		return
	}
	if err == nil {
		err = &IntegrityError{Reason: ReasonNotVerified}
	}
	g.state = StateFailed
	g.err = err
	g.release = nil
}

// Check returns nil only while the guard is verified.
func (g *Guard) Check() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	switch g.state {
	case StateVerified:
		return nil
	case StateFailed:
		return g.err
	default:
		return &IntegrityError{Reason: ReasonNotVerified}
	}
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Release returns the last verified release, or nil.
func (g *Guard) Release() *Release {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.release
}

// #endregion guard
