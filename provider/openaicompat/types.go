// Package openaicompat adapts any OpenAI-compatible chat completions API
// (llama.cpp server, vLLM, Ollama, LM Studio, OpenAI itself) to the
// senaka.ChatAPI contract. One Client is bound to one routed model.
package openaicompat

// --- wire response types ---

// chatResponse is the chat completions response, shared between the
// non-streaming body and each streaming chunk.
type chatResponse struct {
	ID      string   `json:"id"`
	Choices []choice `json:"choices"`
	Usage   *usage   `json:"usage,omitempty"`
}

type choice struct {
	Index        int            `json:"index"`
	Message      *choiceMessage `json:"message,omitempty"`
	Delta        *choiceMessage `json:"delta,omitempty"`
	FinishReason string         `json:"finish_reason,omitempty"`
}

// choiceMessage holds both full messages and streaming deltas.
type choiceMessage struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
