// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

// Package openrouter implements the upstream completer against OpenRouter's
// OpenAI-compatible chat completions API.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
	"github.com/rivulet-dev/rivulet/internal/relay"
	"github.com/rivulet-dev/rivulet/internal/session"
)

const (
	baseURL          = "https://openrouter.ai/api/v1"
	defaultModel     = "anthropic/claude-3.5-sonnet"
	defaultMaxTokens = 4000
)

// doneSentinel marks the logical end of the upstream stream, distinct from
// the transport closing.
var doneSentinel = []byte("[DONE]")

// Config holds OpenRouter client configuration.
type Config struct {
	APIKey    string
	BaseURL   string // optional, useful for testing against a mock server
	Model     string
	MaxTokens int
}

// Client calls OpenRouter in streaming mode and exposes the reply as a
// relay.DeltaStream.
type Client struct {
	client openaisdk.Client
	cfg    Config
	logger *slog.Logger
}

// New creates an OpenRouter client. Returns an error if the API key is
// missing.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter: missing api_key in config")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = slog.Default()
	}

	// No retry policy: a failed exchange is resubmitted by the client as a
	// new message, so the SDK's default retries are disabled.
	client := openaisdk.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(0),
	)
	return &Client{client: client, cfg: cfg, logger: logger}, nil
}

// Complete issues one streaming chat completion over the full transcript.
// A non-success status fails here, before any delta is produced; the SDK
// surfaces it as the request error.
func (c *Client) Complete(ctx context.Context, turns []session.Turn) (relay.DeltaStream, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:     shared.ChatModel(c.cfg.Model),
		Messages:  convertTurns(turns),
		MaxTokens: param.NewOpt(int64(c.cfg.MaxTokens)),
	}

	// The raw response is decoded by hand rather than through the SDK's
	// typed stream: a single malformed data line must be skipped, not
	// abort the whole exchange.
	var raw *http.Response
	err := c.client.Post(ctx, "chat/completions", params, &raw,
		option.WithJSONSet("stream", true),
	)
	if err != nil {
		return nil, fmt.Errorf("openrouter: chat completion request: %w", err)
	}

	return &deltaStream{
		decoder: ssestream.NewDecoder(raw),
		logger:  c.logger,
	}, nil
}

// convertTurns maps transcript turns onto OpenAI SDK message params.
func convertTurns(turns []session.Turn) []openaisdk.ChatCompletionMessageParamUnion {
	msgs := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case session.RoleAssistant:
			msgs = append(msgs, openaisdk.AssistantMessage(turn.Content))
		default:
			msgs = append(msgs, openaisdk.UserMessage(turn.Content))
		}
	}
	return msgs
}

// chunkPayload is the slice of the upstream delta record the relay cares
// about: choices[0].delta.content.
type chunkPayload struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// deltaStream adapts the SSE decoder into relay.DeltaStream. Blank and
// comment lines are already consumed by the decoder; this layer handles the
// [DONE] sentinel and skips records that fail to parse or carry no delta.
type deltaStream struct {
	decoder ssestream.Decoder
	logger  *slog.Logger
	current string
	done    bool
}

func (s *deltaStream) Next() bool {
	if s.done {
		return false
	}

	for s.decoder.Next() {
		data := bytes.TrimSpace(s.decoder.Event().Data)
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, doneSentinel) {
			s.done = true
			return false
		}

		var chunk chunkPayload
		if err := json.Unmarshal(data, &chunk); err != nil {
			// One malformed record must not abort the exchange.
			s.logger.Debug("skipping malformed upstream record", "error", err)
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}

		s.current = chunk.Choices[0].Delta.Content
		return true
	}

	// Natural end of the transport without a sentinel is also a clean end;
	// Err distinguishes the failure case.
	s.done = true
	return false
}

func (s *deltaStream) Delta() string { return s.current }

func (s *deltaStream) Err() error { return s.decoder.Err() }

func (s *deltaStream) Close() error { return s.decoder.Close() }
