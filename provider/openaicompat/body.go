package openaicompat

import (
	"github.com/lilamaris/senaka"
)

// DefaultThinkBypassTag is the assistant primer injected to pre-empt the
// thinking phase of think-tag models.
const DefaultThinkBypassTag = "<think></think>"

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// buildBody assembles the request body for one completion call. Precedence,
// lowest to highest: model defaults (temperature, max_tokens, extra_params),
// then the per-request sampling fields and ExtraBody. The body is a flat map
// so extra keys like min_p or repeat_penalty land at the top level where
// llama.cpp-style servers expect them.
func buildBody(model senaka.ResolvedModel, req senaka.CompletionRequest, stream bool) map[string]any {
	body := map[string]any{
		"model": model.ModelName,
	}

	if model.Temperature != nil {
		body["temperature"] = *model.Temperature
	}
	if model.MaxTokens > 0 {
		body["max_tokens"] = model.MaxTokens
	}
	for k, v := range model.ExtraParams {
		body[k] = v
	}

	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.MinP != nil {
		body["min_p"] = *req.MinP
	}
	if req.TopK != nil {
		body["top_k"] = *req.TopK
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	for k, v := range req.ExtraBody {
		body[k] = v
	}

	body["messages"] = buildMessages(req)

	if stream {
		body["stream"] = true
		body["stream_options"] = map[string]any{"include_usage": true}
	}
	return body
}

// buildMessages converts the session messages to wire form, appending the
// think-bypass primer as a trailing assistant message when the request asks
// for it. The primer makes think-tag models treat their reasoning phase as
// already closed.
func buildMessages(req senaka.CompletionRequest) []wireMessage {
	msgs := make([]wireMessage, 0, len(req.Messages)+1)
	for _, m := range req.Messages {
		msgs = append(msgs, wireMessage{Role: m.Role, Content: m.Content})
	}
	if req.DisableThinkingHack {
		tag := req.ThinkBypassTag
		if tag == "" {
			tag = DefaultThinkBypassTag
		}
		msgs = append(msgs, wireMessage{Role: senaka.RoleAssistant, Content: tag})
	}
	return msgs
}
