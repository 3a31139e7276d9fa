package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"webcarros-backend/internal/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	fns    map[int]func(*client.User)
	nextID int
}

func newFakeSource() *fakeSource {
	return &fakeSource{fns: make(map[int]func(*client.User))}
}

func (f *fakeSource) OnAuthStateChanged(fn func(*client.User)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.fns[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.fns, id)
	}
}

func (f *fakeSource) deliver(u *client.User) {
	f.mu.Lock()
	fns := make([]func(*client.User), 0, len(f.fns))
	for _, fn := range f.fns {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (f *fakeSource) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fns)
}

func TestGate_LoadingSuspendsWithoutRedirect(t *testing.T) {
	src := newFakeSource()
	g := NewGate()
	g.Start(src)
	defer g.Stop()

	snap := g.Snapshot()
	assert.Equal(t, Loading, snap.State)
	assert.Equal(t, Suspend, Decide(snap))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Require(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, Loading, g.Snapshot().State)
}

func TestGate_ResolvesOnDelivery(t *testing.T) {
	src := newFakeSource()
	g := NewGate()
	g.Start(src)
	defer g.Stop()

	done := make(chan *client.User, 1)
	go func() {
		u, err := g.Require(context.Background())
		assert.NoError(t, err)
		done <- u
	}()

	src.deliver(&client.User{UID: "u1", Name: "Ana"})
	select {
	case u := <-done:
		require.NotNil(t, u)
		assert.Equal(t, "u1", u.UID)
	case <-time.After(time.Second):
		t.Fatal("Require did not return after delivery")
	}
	assert.Equal(t, Render, Decide(g.Snapshot()))

	src.deliver(nil)
	snap := g.Snapshot()
	assert.Equal(t, Unauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.Equal(t, Redirect, Decide(snap))
	_, err := g.Require(context.Background())
	assert.ErrorIs(t, err, ErrSignInRequired)
}

func TestGate_StopUnsubscribes(t *testing.T) {
	src := newFakeSource()
	g := NewGate()
	g.Start(src)
	assert.Equal(t, 1, src.subscribers())

	src.deliver(&client.User{UID: "u1"})
	g.Stop()
	assert.Equal(t, 0, src.subscribers())

	src.deliver(nil)
	assert.Equal(t, Authenticated, g.Snapshot().State)
	g.Stop()
}

func TestGate_StopReleasesWaiters(t *testing.T) {
	g := NewGate()
	g.Start(newFakeSource())

	errc := make(chan error, 1)
	go func() {
		_, err := g.Await(context.Background())
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	g.Stop()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("Await did not return after Stop")
	}
}

func TestGate_RestartGoesBackToLoading(t *testing.T) {
	first, second := newFakeSource(), newFakeSource()
	g := NewGate()
	g.Start(first)
	first.deliver(nil)
	assert.Equal(t, Unauthenticated, g.Snapshot().State)

	g.Start(second)
	assert.Equal(t, 0, first.subscribers())
	assert.Equal(t, Loading, g.Snapshot().State)

	second.deliver(&client.User{UID: "u2"})
	snap, err := g.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u2", snap.User.UID)
}

func TestGate_SnapshotIsACopy(t *testing.T) {
	g := NewGate()
	u := &client.User{UID: "u1", Name: "Ana"}
	g.Update(u)
	u.Name = "changed"

	snap := g.Snapshot()
	assert.Equal(t, "Ana", snap.User.Name)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
}
