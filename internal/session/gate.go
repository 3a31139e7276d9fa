// Package session tracks who is signed in and decides what an owner-only
// screen may do while that is still unknown.
package session

import (
	"context"
	"errors"
	"sync"

	"webcarros-backend/internal/client"
)

type State int

const (
	Loading State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "loading"
	}
}

// SignInPath is where unauthenticated visitors of owner-only screens are sent.
const SignInPath = "/login"

var (
	ErrSignInRequired = errors.New("sign in required")
	ErrStopped        = errors.New("session gate stopped")
)

// Snapshot is a read-only copy of the gate state.
type Snapshot struct {
	State State
	User  *client.User
}

// Source delivers auth state changes; nil means signed out.
type Source interface {
	OnAuthStateChanged(fn func(*client.User)) (unsubscribe func())
}

// Gate holds the process-wide session state. The zero value is not usable; call NewGate.
type Gate struct {
	mu          sync.Mutex
	snap        Snapshot
	resolved    chan struct{}
	stopped     chan struct{}
	unsubscribe func()
}

func NewGate() *Gate {
	return &Gate{
		resolved: make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start subscribes to src. The gate stays Loading until the first delivery.
// Starting a running gate replaces its subscription and goes back to Loading.
func (g *Gate) Start(src Source) {
	g.mu.Lock()
	if g.unsubscribe != nil {
		g.unsubscribe()
	}
	g.snap = Snapshot{State: Loading}
	select {
	case <-g.resolved:
		g.resolved = make(chan struct{})
	default:
	}
	select {
	case <-g.stopped:
		g.stopped = make(chan struct{})
	default:
	}
	g.unsubscribe = nil
	g.mu.Unlock()

	unsubscribe := src.OnAuthStateChanged(g.Update)

	g.mu.Lock()
	g.unsubscribe = unsubscribe
	g.mu.Unlock()
}

// Stop unsubscribes. Waiters blocked in Await return ErrStopped if the state never resolved.
func (g *Gate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.unsubscribe != nil {
		g.unsubscribe()
		g.unsubscribe = nil
	}
	select {
	case <-g.stopped:
	default:
		close(g.stopped)
	}
}

// Snapshot returns the current state.
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.snap
	if s.User != nil {
		cp := *s.User
		s.User = &cp
	}
	return s
}

// Update applies a state delivery: a user means Authenticated, nil Unauthenticated.
func (g *Gate) Update(u *client.User) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if u == nil {
		g.snap = Snapshot{State: Unauthenticated}
	} else {
		cp := *u
		g.snap = Snapshot{State: Authenticated, User: &cp}
	}
	select {
	case <-g.resolved:
	default:
		close(g.resolved)
	}
}

// Await blocks until the state leaves Loading.
func (g *Gate) Await(ctx context.Context) (Snapshot, error) {
	g.mu.Lock()
	resolved, stopped := g.resolved, g.stopped
	g.mu.Unlock()

	select {
	case <-resolved:
		return g.Snapshot(), nil
	default:
	}
	select {
	case <-resolved:
		return g.Snapshot(), nil
	case <-stopped:
		return g.Snapshot(), ErrStopped
	case <-ctx.Done():
		return g.Snapshot(), ctx.Err()
	}
}

// Require waits for the state and returns the signed-in user, or
// ErrSignInRequired when the visitor must be sent to SignInPath.
func (g *Gate) Require(ctx context.Context) (*client.User, error) {
	snap, err := g.Await(ctx)
	if err != nil {
		return nil, err
	}
	if Decide(snap) != Render {
		return nil, ErrSignInRequired
	}
	return snap.User, nil
}

type Decision int

const (
	// Suspend renders nothing and does not redirect.
	Suspend Decision = iota
	Redirect
	Render
)

// Decide is what an owner-only screen does for a snapshot.
func Decide(s Snapshot) Decision {
	switch s.State {
	case Authenticated:
		return Render
	case Unauthenticated:
		return Redirect
	default:
		return Suspend
	}
}
