package llm

import (
	"context"
)

// Message is one chat turn. Role is "system", "user" or "assistant".
type Message struct {
	Role    string
	Content string
}

// ToolSchema describes a tool offered to the model. The indexing pipeline
// always calls with tools disabled; the field exists so providers keep a
// uniform surface.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatOptions tune a single chat call.
type ChatOptions struct {
	// Model overrides the provider's configured default when non-empty.
	Model string
	// Tools offered to the model; nil disables tool use.
	Tools []ToolSchema
	// Cacheable marks the prompt prefix as reusable across calls for
	// providers that support prompt caching.
	Cacheable bool
}

// Provider is a chat-completion capability. Implementations may fail with
// transport, timeout, or malformed-response errors; callers treat all of
// them as a failed call and decide about retries.
type Provider interface {
	Chat(ctx context.Context, msgs []Message, opts ChatOptions) (Message, error)
}

// System, User and Assistant build messages for the common roles.
func System(content string) Message    { return Message{Role: "system", Content: content} }
func User(content string) Message      { return Message{Role: "user", Content: content} }
func Assistant(content string) Message { return Message{Role: "assistant", Content: content} }
