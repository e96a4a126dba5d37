// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package server

import (
	"encoding/json"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	riverr "github.com/rivulet-dev/rivulet/pkg/errors"
)

// ChatRequest is the request body for the exchange-submission endpoint.
type ChatRequest struct {
	SessionID string `json:"sessionId" doc:"Session the message belongs to"`
	Message   string `json:"message" doc:"User message content"`
}

func (s *Server) registerChatRoute() {
	s.router.Post("/api/v1/chat", s.handleChat)

	// Manual OpenAPI entry: the handler bypasses Huma so validation failures
	// surface as 400 rather than Huma's 422.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "submit-chat",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat",
		Summary:     "Submit a chat message",
		Description: "Appends the user message to the session transcript and streams the assistant reply over the session's push channel. The 200 response confirms the exchange started; content arrives on the stream.",
		Tags:        []string{"chat"},
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"application/json": {
					Schema: &huma.Schema{
						Type:     "object",
						Required: []string{"sessionId", "message"},
						Properties: map[string]*huma.Schema{
							"sessionId": {Type: "string", Description: "Session the message belongs to"},
							"message":   {Type: "string", Description: "User message content"},
						},
					},
				},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {Description: "Exchange started; events follow on the push channel"},
			"400": {Description: "Missing fields or no open push channel for the session"},
			"500": {Description: "Upstream completion failure"},
			"503": {Description: "Exchange handler not configured"},
		},
	})
}

// handleChat accepts one user message and acknowledges synchronously once
// the upstream response has been obtained. The acknowledgment and the
// streamed reply are separate legs to separate listeners.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" || req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "sessionId and message are required")
		return
	}

	if s.exchanges == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "exchange handler not configured")
		return
	}

	if err := s.exchanges.Submit(r.Context(), req.SessionID, req.Message); err != nil {
		writeJSONError(w, riverr.HTTPStatus(err), err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
