// Package model defines the provider-neutral interface the lab engine uses
// to drive conversation participants, plus the request/response shapes
// shared by the concrete provider adapters in the sub-packages.
package model

import "context"

// Message roles from the provider's point of view.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of conversational context handed to a provider.
// Role is user / assistant / system from the provider's point of view; Name
// optionally carries the speaking participant's identifier so multi-party
// transcripts stay attributable.
type Message struct {
	Role    string `json:"role"`
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// Request captures the normalized model input produced by the lab engine.
type Request struct {
	// System is the participant's instruction prompt.
	System string `json:"system,omitempty"`
	// Messages is the conversation transcript so far, oldest first.
	Messages []Message `json:"messages"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is a completed (non-streaming) provider generation.
type Response struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        TokenUsage `json:"usage"`
}

// Info describes a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

// Model is the minimal contract a conversation participant's backing LLM
// must satisfy. Generate blocks until the provider returns a completion;
// the lab engine's producer discipline relies on that blocking behavior.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Info() Info
}
