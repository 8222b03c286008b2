package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/lilamaris/senaka"
)

// readSSE consumes a chat completions SSE stream, invoking onToken for each
// content delta, and returns the accumulated content. Usage arrives in the
// trailing usage chunk when stream_options.include_usage is set.
//
// Expected format:
//
//	data: {"id":"...","choices":[{"delta":{"content":"..."}}]}
//	data: [DONE]
func readSSE(ctx context.Context, body io.Reader, onToken func(string)) (senaka.CompletionResult, error) {
	scanner := bufio.NewScanner(body)
	// Room for large deltas from servers that batch tokens.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var content strings.Builder
	var result senaka.CompletionResult

	for scanner.Scan() {
		if ctx.Err() != nil {
			return senaka.CompletionResult{}, ctx.Err()
		}
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Malformed chunks are skipped, not fatal.
			continue
		}
		if chunk.Usage != nil {
			result.Usage = senaka.Usage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			content.WriteString(delta)
			if onToken != nil {
				onToken(delta)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return senaka.CompletionResult{}, err
	}

	result.Content = content.String()
	return result, nil
}
