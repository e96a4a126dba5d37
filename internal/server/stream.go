// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rivulet-dev/rivulet/internal/push"
)

func (s *Server) registerStreamRoute() {
	s.router.Get("/api/v1/stream", s.handleStream)

	// Register the operation in the OpenAPI document manually. The push-stream
	// handler needs raw http.ResponseWriter access for SSE, so it cannot use
	// Huma's standard handler signature. The chi route above does the actual
	// request handling; this entry exists for documentation.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "open-stream",
		Method:      http.MethodGet,
		Path:        "/api/v1/stream",
		Summary:     "Open the per-session push channel",
		Description: "Opens a one-way text/event-stream bound to the given session. Each event is a JSON object with a type field (connected | chunk | complete | error). The connection is held open until the client disconnects.",
		Tags:        []string{"chat"},
		Parameters: []*huma.Param{
			{
				Name:        "sessionId",
				In:          "query",
				Required:    true,
				Description: "Opaque client-generated session identifier",
				Schema:      &huma.Schema{Type: "string"},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Server-sent event stream",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {
						Schema: &huma.Schema{Type: "string", Description: "Newline-delimited JSON events"},
					},
				},
			},
			"400": {Description: "Missing sessionId"},
		},
	})
}

// handleStream turns the inbound long-lived request into a registered push
// channel. The handler goroutine owns all writes to the response; producers
// hand events over via the channel. Deregistration is deferred so the
// disconnect cleanup fires exactly once, whether the client went away or the
// channel was closed from elsewhere.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		// httptest.ResponseRecorder doesn't implement Flusher,
		// but we still write the events for testability.
		flusher = nil
	}

	ch := push.NewChannel(sessionID)
	s.registry.RegisterChannel(sessionID, ch)
	defer func() {
		s.registry.RemoveChannel(sessionID, ch)
		ch.Close()
		slog.Debug("push channel closed", "session_id", sessionID)
	}()

	w.WriteHeader(http.StatusOK)

	// Liveness confirmation before the first real token arrives.
	if err := writeEvent(w, flusher, push.Event{Type: push.EventConnected}); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch.Done():
			// Closed from outside the handler.
			return
		case ev := <-ch.Events():
			if err := writeEvent(w, flusher, ev); err != nil {
				return
			}
		}
	}
}

// writeEvent frames one event as a single SSE push message and flushes it
// immediately so no buffering delays delivery.
func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev push.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}
