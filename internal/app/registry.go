package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"prodmax/internal/clock"
)

// ErrRegistryClosed is returned by Reserve after Shutdown.
var ErrRegistryClosed = errors.New("session registry closed")

// ActiveSession is a snapshot of one registry entry.
type ActiveSession struct {
	SessionID int64
	Owner     int64
	StartedAt time.Time
	EndsAt    time.Time
}

// Remaining returns max(0, EndsAt-now).
func (a ActiveSession) Remaining(now time.Time) time.Duration {
	return max(a.EndsAt.Sub(now), 0)
}

// SessionRegistry tracks at most one running session per owner and owns the
// expiry timers. All entry transitions happen under mu, and an entry leaves
// the map exactly once: via Cancel, Complete, Shutdown or its own timer.
// Whichever path removes it wins; the others observe it as gone.
type SessionRegistry struct {
	clk clock.Clock

	mu      sync.Mutex
	entries map[int64]*registryEntry
	closed  bool

	// expiry callbacks that have claimed their entry and not yet returned
	inflight sync.WaitGroup
}

type registryEntry struct {
	ActiveSession
	// nil while the entry is only reserved
	timer clock.Timer
}

// NewSessionRegistry creates an empty registry driven by clk.
func NewSessionRegistry(clk clock.Clock) *SessionRegistry {
	return &SessionRegistry{clk: clk, entries: make(map[int64]*registryEntry)}
}

// Reservation holds an owner's slot between the availability check and the
// arming of the expiry timer.
type Reservation struct {
	reg   *SessionRegistry
	entry *registryEntry
}

// Reserve claims the owner's slot for a session of length d starting now.
// It fails with *AlreadyRunningError if the owner already has an entry.
func (r *SessionRegistry) Reserve(owner int64, d time.Duration) (*Reservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRegistryClosed
	}
	now := r.clk.Now()
	if e, ok := r.entries[owner]; ok {
		return nil, &AlreadyRunningError{SessionID: e.SessionID, Remaining: e.Remaining(now)}
	}
	e := &registryEntry{ActiveSession: ActiveSession{Owner: owner, StartedAt: now, EndsAt: now.Add(d)}}
	r.entries[owner] = e
	return &Reservation{reg: r, entry: e}, nil
}

// StartedAt is the instant the slot was reserved.
func (res *Reservation) StartedAt() time.Time { return res.entry.StartedAt }

// Activate binds the persisted session id and arms the timer for the
// reserved end time. It fails with ErrSessionNotRunning if the reservation
// was cancelled in the meantime.
func (res *Reservation) Activate(sessionID int64, onExpire func(ActiveSession)) (ActiveSession, error) {
	r := res.reg
	r.mu.Lock()
	defer r.mu.Unlock()

	e := res.entry
	if r.entries[e.Owner] != e || e.timer != nil {
		return ActiveSession{}, ErrSessionNotRunning
	}
	e.SessionID = sessionID
	d := e.EndsAt.Sub(r.clk.Now())
	e.timer = r.clk.AfterFunc(max(d, 0), func() { r.fire(e, onExpire) })
	return e.ActiveSession, nil
}

// Release gives the slot back if it was never activated.
func (res *Reservation) Release() {
	r := res.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[res.entry.Owner] == res.entry && res.entry.timer == nil {
		delete(r.entries, res.entry.Owner)
	}
}

// Start reserves and activates in one step.
func (r *SessionRegistry) Start(owner, sessionID int64, d time.Duration, onExpire func(ActiveSession)) (ActiveSession, error) {
	res, err := r.Reserve(owner, d)
	if err != nil {
		return ActiveSession{}, err
	}
	return res.Activate(sessionID, onExpire)
}

// fire runs on the timer goroutine. The identity check makes a fire that
// lost the race against Cancel or Complete a no-op; onExpire runs without
// the lock held.
func (r *SessionRegistry) fire(e *registryEntry, onExpire func(ActiveSession)) {
	r.mu.Lock()
	if r.entries[e.Owner] != e {
		r.mu.Unlock()
		return
	}
	delete(r.entries, e.Owner)
	snapshot := e.ActiveSession
	r.inflight.Add(1)
	r.mu.Unlock()

	defer r.inflight.Done()
	onExpire(snapshot)
}

// Cancel removes the owner's entry and stops its timer. Once Cancel returns
// successfully the expiry callback for that entry can no longer run. A
// reservation that was never activated is cancelled too; its snapshot has a
// zero SessionID.
func (r *SessionRegistry) Cancel(owner int64) (ActiveSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[owner]
	if !ok {
		return ActiveSession{}, ErrSessionNotRunning
	}
	delete(r.entries, owner)
	if e.timer != nil {
		e.timer.Stop()
	}
	return e.ActiveSession, nil
}

// Complete removes the owner's entry if it still belongs to sessionID. It
// reports whether an entry was removed.
func (r *SessionRegistry) Complete(owner, sessionID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[owner]
	if !ok || e.SessionID != sessionID || e.timer == nil {
		return false
	}
	delete(r.entries, owner)
	e.timer.Stop()
	return true
}

// Peek returns the owner's remaining time without firing or removing
// anything, even when the remaining time is zero.
func (r *SessionRegistry) Peek(owner int64) (time.Duration, bool) {
	a, ok := r.Get(owner)
	if !ok {
		return 0, false
	}
	return a.Remaining(r.clk.Now()), true
}

// Get returns a snapshot of the owner's entry.
func (r *SessionRegistry) Get(owner int64) (ActiveSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[owner]
	if !ok {
		return ActiveSession{}, false
	}
	return e.ActiveSession, true
}

// Len returns the number of entries, reserved ones included.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Shutdown stops every timer, empties the registry and refuses further
// reservations. It returns the entries that were still running. Expiry
// callbacks already under way keep running; use Wait to drain them.
func (r *SessionRegistry) Shutdown() []ActiveSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	out := make([]ActiveSession, 0, len(r.entries))
	for owner, e := range r.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		out = append(out, e.ActiveSession)
		delete(r.entries, owner)
	}
	return out
}

// Wait blocks until every expiry callback that claimed its entry has
// returned, or until ctx is done. Call it after Shutdown: no callback can
// start once the registry is closed.
func (r *SessionRegistry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
