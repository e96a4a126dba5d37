// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rivulet Contributors

// Package session holds the process-wide conversation state: per-session
// transcripts and the push channel currently bound to each session.
package session

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry in a session transcript. Turns are immutable once
// appended; insertion order is conversation order.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
