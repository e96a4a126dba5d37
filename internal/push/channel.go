// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

// Package push implements the one-way server-to-client event channel bound
// to a session. A Channel decouples the relay (producer) from the HTTP
// handler goroutine that owns the response writer (consumer).
package push

import (
	"errors"
	"sync"
)

// EventType identifies a client-visible streaming event.
type EventType string

const (
	EventConnected EventType = "connected"
	EventChunk     EventType = "chunk"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
)

// Event is the JSON contract delivered over a push channel. It is
// independent of the upstream provider's wire format.
type Event struct {
	Type    EventType `json:"type"`
	Content string    `json:"content,omitempty"`
	Message string    `json:"message,omitempty"`
}

// ErrChannelClosed is returned by Send after the channel has been closed.
// Sends legitimately race with client disconnects; callers log and move on.
var ErrChannelClosed = errors.New("push: channel closed")

// eventBuffer absorbs short bursts so the relay is not lockstepped with the
// client's read pace on every delta.
const eventBuffer = 16

// Channel is a live push handle for one session. At most one channel per
// session is registered at a time; a superseded channel keeps accepting
// Send calls without panicking until its consumer closes it.
type Channel struct {
	sessionID string
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewChannel creates a channel bound to the given session id.
func NewChannel(sessionID string) *Channel {
	return &Channel{
		sessionID: sessionID,
		events:    make(chan Event, eventBuffer),
		done:      make(chan struct{}),
	}
}

// SessionID returns the session this channel is bound to.
func (c *Channel) SessionID() string { return c.sessionID }

// Send enqueues an event for delivery. It blocks only while the buffer is
// full and a consumer is still attached; once the channel is closed it
// returns ErrChannelClosed immediately and never panics.
func (c *Channel) Send(ev Event) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrChannelClosed
	}
}

// Events exposes the delivery stream to the consuming HTTP handler.
func (c *Channel) Events() <-chan Event { return c.events }

// Done is closed exactly once when the channel shuts down.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Close marks the channel dead. Safe to call multiple times and from any
// goroutine; pending and future Send calls unblock with ErrChannelClosed.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
