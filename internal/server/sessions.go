// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rivulet-dev/rivulet/internal/session"
)

// registerSessionRoutes adds the read-only session surface: transcript
// readback for reconnecting clients and a small gateway status report.
func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-session-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{sessionId}/history",
		Summary:     "Get session transcript",
		Tags:        []string{"sessions"},
	}, s.handleGetHistory)

	huma.Register(s.api, huma.Operation{
		OperationID: "gateway-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/status",
		Summary:     "Gateway status",
		Tags:        []string{"system"},
	}, s.handleStatus)
}

type getHistoryInput struct {
	SessionID string `path:"sessionId"`
}

type getHistoryOutput struct {
	Body struct {
		Turns []session.Turn `json:"turns"`
	}
}

// handleGetHistory returns the transcript for a session. An unknown session
// yields an empty list rather than 404: sessions are created lazily, so
// "never spoken" and "spoken zero turns" are indistinguishable by design.
func (s *Server) handleGetHistory(_ context.Context, in *getHistoryInput) (*getHistoryOutput, error) {
	out := &getHistoryOutput{}
	out.Body.Turns = s.registry.History(in.SessionID)
	return out, nil
}

type statusOutput struct {
	Body struct {
		Sessions      int    `json:"sessions" doc:"Live session count"`
		UptimeSeconds int64  `json:"uptime_seconds"`
		Version       string `json:"version"`
	}
}

func (s *Server) handleStatus(_ context.Context, _ *struct{}) (*statusOutput, error) {
	out := &statusOutput{}
	out.Body.Sessions = s.registry.Len()
	out.Body.UptimeSeconds = int64(time.Since(s.started).Seconds())
	out.Body.Version = "0.1.0"
	return out, nil
}
