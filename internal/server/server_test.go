// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package server_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rivulet-dev/rivulet/internal/server"
	"github.com/rivulet-dev/rivulet/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresListenAddr(t *testing.T) {
	_, err := server.New(server.Config{}, session.NewRegistry(0, 0))
	assert.Error(t, err)
}

func TestNew_RequiresRegistry(t *testing.T) {
	_, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, nil)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)
}

func TestGetHistory(t *testing.T) {
	srv, reg := newTestServer(t)
	reg.AppendTurn("s1", session.Turn{Role: session.RoleUser, Content: "hi"})
	reg.AppendTurn("s1", session.Turn{Role: session.RoleAssistant, Content: "Hello"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/s1/history", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Turns []session.Turn `json:"turns"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []session.Turn{
		{Role: session.RoleUser, Content: "hi"},
		{Role: session.RoleAssistant, Content: "Hello"},
	}, resp.Turns)
}

func TestGetHistory_UnknownSessionIsEmptyNotError(t *testing.T) {
	srv, reg := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ghost/history", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"turns":[]}`, w.Body.String())
	// Reading a transcript must not create the session.
	assert.Zero(t, reg.Len())
}

func TestStatus(t *testing.T) {
	srv, reg := newTestServer(t)
	reg.AppendTurn("s1", session.Turn{Role: session.RoleUser, Content: "hi"})
	reg.AppendTurn("s2", session.Turn{Role: session.RoleUser, Content: "yo"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions int `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Sessions)
}

func TestStart_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv, err := server.New(server.Config{ListenAddr: addr}, session.NewRegistry(0, 0))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	// Wait until the server answers, then cancel and expect a clean exit.
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
