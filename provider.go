package senaka

import (
	"context"
	"encoding/json"
)

// CompletionRequest is one chat completion call. Sampling fields are
// pointers so an unset field defers to the model's own defaults.
type CompletionRequest struct {
	Messages    []ChatMessage
	Temperature *float64
	TopP        *float64
	MinP        *float64
	TopK        *int
	MaxTokens   int
	// ExtraBody merges into the request body last, so its keys override
	// model-level extra_params on conflict.
	ExtraBody map[string]any
	// DisableThinkingHack makes the adapter inject an assistant primer
	// holding ThinkBypassTag after the last user message, which stops
	// think-tag models from reasoning out loud inside structured replies.
	DisableThinkingHack bool
	// ThinkBypassTag defaults to "<think></think>" when empty.
	ThinkBypassTag string
	// DebugTag labels the call in adapter logs.
	DebugTag string
}

// Usage counts tokens reported by the endpoint.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// CompletionResult is the assistant reply plus the raw response body for
// debugging and observability.
type CompletionResult struct {
	Content string
	Usage   Usage
	Raw     json.RawMessage
}

// ChatAPI abstracts one routed model endpoint. Both calls return *ErrProvider
// on non-2xx responses and transport failures; context cancellation passes
// through unwrapped.
type ChatAPI interface {
	// Completion sends the request and returns the complete reply.
	Completion(ctx context.Context, req CompletionRequest) (CompletionResult, error)
	// Stream sends the request with streaming enabled, invoking onToken for
	// every content delta, then returns the accumulated reply. onToken runs
	// on the read goroutine; implementations of onToken must not block for
	// long.
	Stream(ctx context.Context, req CompletionRequest, onToken func(string)) (CompletionResult, error)
}

// APIFactory builds a ChatAPI for a routed model. The loop calls it once per
// role per run.
type APIFactory func(m ResolvedModel) ChatAPI

// SandboxRunner executes one shell command inside the isolated workspace
// identified by workspaceGroupID. Command failure and timeout surface in the
// ToolResult exit code, never as an error; the error return is reserved for
// context cancellation.
type SandboxRunner interface {
	Run(ctx context.Context, cmd, workspaceGroupID string) (ToolResult, error)
}

// SessionStore persists chat sessions. Save must write atomically so a crash
// never leaves a truncated transcript.
type SessionStore interface {
	// LoadOrCreate returns the stored session or a fresh one seeded with the
	// optional system prompt.
	LoadOrCreate(ctx context.Context, sessionID, systemPrompt string) (*ChatSession, error)
	// Save persists the session and bumps UpdatedAt.
	Save(ctx context.Context, session *ChatSession) error
	// Reset discards the transcript and returns the reseeded session.
	Reset(ctx context.Context, sessionID, systemPrompt string) (*ChatSession, error)
}
