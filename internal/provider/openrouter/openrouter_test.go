// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

package openrouter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rivulet-dev/rivulet/internal/provider/openrouter"
	"github.com/rivulet-dev/rivulet/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseServer returns a test server that records the request body and writes
// the given SSE lines (each followed by a blank line) as the response.
func sseServer(t *testing.T, status int, lines []string, gotBody *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if gotBody != nil {
			*gotBody = body
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(status)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
		}
	}))
}

func newTestClient(t *testing.T, srvURL string) *openrouter.Client {
	t.Helper()
	client, err := openrouter.New(openrouter.Config{
		APIKey:  "test-key",
		BaseURL: srvURL,
	}, nil)
	require.NoError(t, err)
	return client
}

func collectDeltas(t *testing.T, turns []session.Turn, client *openrouter.Client) []string {
	t.Helper()
	stream, err := client.Complete(context.Background(), turns)
	require.NoError(t, err)
	defer func() { _ = stream.Close() }()

	var deltas []string
	for stream.Next() {
		deltas = append(deltas, stream.Delta())
	}
	require.NoError(t, stream.Err())
	return deltas
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := openrouter.New(openrouter.Config{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestComplete_DecodesDeltasInOrder(t *testing.T) {
	srv := sseServer(t, http.StatusOK, []string{
		`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
		`data: {"choices":[{"delta":{"content":"lo"}}]}`,
		`data: [DONE]`,
	}, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	deltas := collectDeltas(t, []session.Turn{{Role: session.RoleUser, Content: "hi"}}, client)
	assert.Equal(t, []string{"Hel", "lo"}, deltas)
}

func TestComplete_SkipsMalformedRecords(t *testing.T) {
	srv := sseServer(t, http.StatusOK, []string{
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		`data: {this is not json}`,
		`data: {"choices":[{"delta":{"content":"b"}}]}`,
		`data: [DONE]`,
	}, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	deltas := collectDeltas(t, []session.Turn{{Role: session.RoleUser, Content: "hi"}}, client)
	assert.Equal(t, []string{"a", "b"}, deltas)
}

func TestComplete_SkipsRecordsWithoutDelta(t *testing.T) {
	srv := sseServer(t, http.StatusOK, []string{
		`data: {"choices":[]}`,
		`data: {"choices":[{"delta":{}}]}`,
		`data: {"choices":[{"delta":{"content":"only"}}]}`,
		`data: [DONE]`,
	}, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	deltas := collectDeltas(t, []session.Turn{{Role: session.RoleUser, Content: "hi"}}, client)
	assert.Equal(t, []string{"only"}, deltas)
}

func TestComplete_StreamEndWithoutSentinel(t *testing.T) {
	// Transport closing without [DONE] is still a clean end of stream.
	srv := sseServer(t, http.StatusOK, []string{
		`data: {"choices":[{"delta":{"content":"tail"}}]}`,
	}, nil)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	deltas := collectDeltas(t, []session.Turn{{Role: session.RoleUser, Content: "hi"}}, client)
	assert.Equal(t, []string{"tail"}, deltas)
}

func TestComplete_NonSuccessStatusIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	_, err := client.Complete(context.Background(), []session.Turn{{Role: session.RoleUser, Content: "hi"}})
	require.Error(t, err)
}

func TestComplete_SendsFullTranscriptAndStreamFlag(t *testing.T) {
	var gotBody []byte
	srv := sseServer(t, http.StatusOK, []string{`data: [DONE]`}, &gotBody)
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	turns := []session.Turn{
		{Role: session.RoleUser, Content: "hi"},
		{Role: session.RoleAssistant, Content: "Hello"},
		{Role: session.RoleUser, Content: "more"},
	}
	collectDeltas(t, turns, client)

	var payload struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &payload))

	assert.True(t, payload.Stream)
	assert.NotEmpty(t, payload.Model)
	require.Len(t, payload.Messages, 3)
	assert.Equal(t, "user", payload.Messages[0].Role)
	assert.Equal(t, "assistant", payload.Messages[1].Role)
	assert.Equal(t, "more", payload.Messages[2].Content)
}
