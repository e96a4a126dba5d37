// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rivulet-dev/rivulet/internal/push"
)

// entry is the registry's view of one session: its transcript, the channel
// currently bound to it (nil when no client is listening), and the last
// activity timestamp driving idle eviction.
type entry struct {
	history    []Turn
	channel    *push.Channel
	lastActive time.Time
}

// Registry maps session ids to conversation state. All mutations go through
// one mutex; expected load is a handful of concurrent sessions, so a single
// global lock is sufficient. Sessions are created lazily on first use and
// reclaimed only by the idle janitor, never by explicit teardown.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry

	ttl   time.Duration
	sweep time.Duration
	now   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock substitutes the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a Registry whose janitor evicts sessions idle longer
// than ttl, checking every sweep interval. A ttl of zero disables eviction.
func NewRegistry(ttl, sweep time.Duration, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		sweep:    sweep,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sweep <= 0 {
		r.sweep = time.Minute
	}
	return r
}

// get returns the entry for id, creating it if needed. Callers hold r.mu.
func (r *Registry) get(id string) *entry {
	e, ok := r.sessions[id]
	if !ok {
		e = &entry{}
		r.sessions[id] = e
	}
	e.lastActive = r.now()
	return e
}

// RegisterChannel binds ch to the session, replacing (not merging) any
// previous channel. The superseded channel is left for its own consumer to
// close; lookups resolve to the newest registration from this point on.
func (r *Registry) RegisterChannel(id string, ch *push.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.get(id).channel = ch
}

// RemoveChannel clears the session's channel only if ch is still the
// registered instance. Removal is identity-scoped: a disconnect callback for
// a superseded channel must not tear down the registration that replaced it.
func (r *Registry) RemoveChannel(id string, ch *push.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok || e.channel != ch {
		return
	}
	e.channel = nil
	e.lastActive = r.now()
}

// Channel returns the currently registered channel for the session.
func (r *Registry) Channel(id string) (*push.Channel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok || e.channel == nil {
		return nil, false
	}
	return e.channel, true
}

// AppendTurn adds one turn to the session transcript, creating the session
// if this is its first activity.
func (r *Registry) AppendTurn(id string, turn Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.get(id)
	e.history = append(e.history, turn)
}

// History returns a copy of the session transcript. Unknown sessions yield
// an empty (non-nil) slice with no side effect on the registry.
func (r *Registry) History(id string) []Turn {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return []Turn{}
	}
	out := make([]Turn, len(e.history))
	copy(out, e.history)
	return out
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run drives the idle-eviction janitor until ctx is cancelled. With a zero
// TTL it returns immediately and the registry grows unbounded, matching the
// behavior of a disabled sweep.
func (r *Registry) Run(ctx context.Context) {
	if r.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(r.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evictIdle()
		}
	}
}

// evictIdle drops sessions whose last activity is older than the TTL. A
// session with a channel still registered has a client attached, so the sweep
// treats it as active and restamps it; its idle clock only starts running
// once the stream disconnects and RemoveChannel clears the registration.
func (r *Registry) evictIdle() {
	if r.ttl <= 0 {
		return
	}
	now := r.now()
	cutoff := now.Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.sessions {
		if e.channel != nil {
			e.lastActive = now
			continue
		}
		if e.lastActive.After(cutoff) {
			continue
		}
		delete(r.sessions, id)
		slog.Debug("evicted idle session", "session_id", id, "last_active", e.lastActive)
	}
}

// EvictIdleNow runs one eviction pass immediately. Exposed for tests.
func (r *Registry) EvictIdleNow() {
	r.evictIdle()
}
