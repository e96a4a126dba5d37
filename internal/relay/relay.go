// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

// Package relay drives one user-to-assistant exchange: it appends the user
// turn, invokes the upstream completion API in streaming mode, forwards each
// decoded delta over the session's push channel, and folds the finished
// assistant reply back into the transcript.
package relay

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/rivulet-dev/rivulet/internal/push"
	"github.com/rivulet-dev/rivulet/internal/session"
	riverr "github.com/rivulet-dev/rivulet/pkg/errors"
)

// DeltaStream is a pull view over the upstream token stream. Next reports
// whether another text delta is available; after Next returns false, Err
// distinguishes a transport failure from natural end of stream (sentinel or
// EOF). Malformed upstream records are skipped inside the stream and never
// surface here.
type DeltaStream interface {
	Next() bool
	Delta() string
	Err() error
	Close() error
}

// Completer issues one streaming completion call over the full transcript.
// A non-success upstream status must fail the call itself, before any delta
// is produced.
type Completer interface {
	Complete(ctx context.Context, turns []session.Turn) (DeltaStream, error)
}

// Relay coordinates exchanges against a shared session registry.
type Relay struct {
	registry  *session.Registry
	completer Completer
	logger    *slog.Logger
}

// New creates a Relay. A nil logger falls back to slog.Default.
func New(registry *session.Registry, completer Completer, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		registry:  registry,
		completer: completer,
		logger:    logger,
	}
}

// Submit starts one exchange. It returns once the upstream response has been
// obtained; the streamed events continue in the background, so the caller's
// synchronous acknowledgment precedes stream completion.
//
// The push channel is resolved before any history mutation: a rejected
// submission leaves the transcript untouched. The relay never originates a
// channel itself; the reply must go to a client that is already listening.
func (r *Relay) Submit(ctx context.Context, sessionID, message string) error {
	if sessionID == "" || message == "" {
		return riverr.New(riverr.CodeRelayRequestInvalid, "sessionId and message are required")
	}

	ch, ok := r.registry.Channel(sessionID)
	if !ok {
		return riverr.New(riverr.CodeRelayChannelMissing, "no push channel registered for session",
			riverr.FieldSessionID(sessionID))
	}

	exchangeID := uuid.NewString()
	log := r.logger.With("session_id", sessionID, "exchange_id", exchangeID)

	r.registry.AppendTurn(sessionID, session.Turn{Role: session.RoleUser, Content: message})

	// The upstream API is stateless per call; the full transcript is resent
	// every turn.
	history := r.registry.History(sessionID)

	// Detach from the request context: the stream outlives the submission
	// request, and a disconnected client must not cancel the drain (the
	// assistant turn still lands in history for a later reconnect).
	stream, err := r.completer.Complete(context.WithoutCancel(ctx), history)
	if err != nil {
		wrapped := riverr.Wrap(err, riverr.CodeRelayUpstreamFailure, "calling completion API",
			riverr.FieldSessionID(sessionID), riverr.FieldExchangeID(exchangeID))
		log.Warn("upstream completion call failed", "error", err)
		if sendErr := ch.Send(push.Event{Type: push.EventError, Message: "upstream completion call failed"}); sendErr != nil {
			log.Debug("could not deliver error event", "error", sendErr)
		}
		return wrapped
	}

	go r.consume(log, sessionID, ch, stream)
	return nil
}

// consume forwards deltas until the stream ends, then finalizes the
// exchange. Chunk events are emitted in exact decode order. A send failure
// means the client went away or was superseded; the stream is still drained
// so the assistant turn lands in history.
func (r *Relay) consume(log *slog.Logger, sessionID string, ch *push.Channel, stream DeltaStream) {
	defer func() {
		if err := stream.Close(); err != nil {
			log.Debug("closing upstream stream", "error", err)
		}
	}()

	var assistant strings.Builder
	for stream.Next() {
		delta := stream.Delta()
		if delta == "" {
			continue
		}
		assistant.WriteString(delta)
		if err := ch.Send(push.Event{Type: push.EventChunk, Content: delta}); err != nil {
			log.Debug("push channel gone mid-exchange, draining upstream", "error", err)
		}
	}

	if err := stream.Err(); err != nil {
		// Transport-level failure: report once, record no assistant turn.
		// History stays exactly as it was after the user turn.
		log.Warn("upstream stream failed", "error", err)
		if sendErr := ch.Send(push.Event{Type: push.EventError, Message: "streaming error occurred"}); sendErr != nil {
			log.Debug("could not deliver error event", "error", sendErr)
		}
		return
	}

	r.registry.AppendTurn(sessionID, session.Turn{Role: session.RoleAssistant, Content: assistant.String()})
	if err := ch.Send(push.Event{Type: push.EventComplete}); err != nil {
		log.Debug("could not deliver complete event", "error", err)
	}
	log.Debug("exchange complete", "assistant_chars", assistant.Len())
}
