package openaicompat

import (
	"testing"

	"github.com/lilamaris/senaka"
)

func f64(v float64) *float64 { return &v }

func TestBuildBodyPrecedence(t *testing.T) {
	model := senaka.ResolvedModel{
		ModelName:   "qwen",
		Temperature: f64(0.3),
		MaxTokens:   512,
		ExtraParams: map[string]any{"min_p": 0.05, "repeat_penalty": 1.1},
	}
	req := senaka.CompletionRequest{
		Messages:    []senaka.ChatMessage{senaka.UserMessage("hi")},
		Temperature: f64(0.9),
		TopP:        f64(1.0),
		MaxTokens:   128,
		ExtraBody:   map[string]any{"min_p": 0.2},
	}
	body := buildBody(model, req, false)

	if body["model"] != "qwen" {
		t.Errorf("model = %v", body["model"])
	}
	if body["temperature"] != 0.9 {
		t.Errorf("temperature = %v, want the request to win over the model default", body["temperature"])
	}
	if body["max_tokens"] != 128 {
		t.Errorf("max_tokens = %v, want 128", body["max_tokens"])
	}
	if body["min_p"] != 0.2 {
		t.Errorf("min_p = %v, want request ExtraBody to win over extra_params", body["min_p"])
	}
	if body["repeat_penalty"] != 1.1 {
		t.Errorf("repeat_penalty = %v, model extra_params must survive when not overridden", body["repeat_penalty"])
	}
	if body["top_p"] != 1.0 {
		t.Errorf("top_p = %v", body["top_p"])
	}
	if _, ok := body["stream"]; ok {
		t.Error("non-streaming body must not set stream")
	}
}

func TestBuildBodyModelDefaultsApplyWhenRequestSilent(t *testing.T) {
	model := senaka.ResolvedModel{ModelName: "m", Temperature: f64(0.4), MaxTokens: 256}
	body := buildBody(model, senaka.CompletionRequest{}, false)
	if body["temperature"] != 0.4 {
		t.Errorf("temperature = %v, want model default", body["temperature"])
	}
	if body["max_tokens"] != 256 {
		t.Errorf("max_tokens = %v, want model default", body["max_tokens"])
	}
}

func TestBuildBodyStreamingFlags(t *testing.T) {
	body := buildBody(senaka.ResolvedModel{ModelName: "m"}, senaka.CompletionRequest{}, true)
	if body["stream"] != true {
		t.Error("stream flag missing")
	}
	so, ok := body["stream_options"].(map[string]any)
	if !ok || so["include_usage"] != true {
		t.Errorf("stream_options = %v", body["stream_options"])
	}
}

func TestBuildMessagesThinkBypassPrimer(t *testing.T) {
	req := senaka.CompletionRequest{
		Messages: []senaka.ChatMessage{
			senaka.SystemMessage("sys"),
			senaka.UserMessage("question"),
		},
		DisableThinkingHack: true,
	}
	msgs := buildMessages(req)
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	last := msgs[2]
	if last.Role != senaka.RoleAssistant || last.Content != DefaultThinkBypassTag {
		t.Errorf("primer = %+v", last)
	}

	// Custom tag is honored.
	req.ThinkBypassTag = "<reasoning></reasoning>"
	msgs = buildMessages(req)
	if msgs[2].Content != "<reasoning></reasoning>" {
		t.Errorf("custom tag = %q", msgs[2].Content)
	}

	// Hack off: no primer.
	req.DisableThinkingHack = false
	if got := len(buildMessages(req)); got != 2 {
		t.Errorf("messages = %d, want 2 without the hack", got)
	}
}
