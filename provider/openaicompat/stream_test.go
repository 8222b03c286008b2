package openaicompat

import (
	"context"
	"strings"
	"testing"
)

func TestReadSSE(t *testing.T) {
	body := strings.Join([]string{
		`data: {"id":"1","choices":[{"delta":{"role":"assistant"}}]}`,
		`data: {"id":"1","choices":[{"delta":{"content":"Hello"}}]}`,
		``,
		`: keepalive comment`,
		`data: {"id":"1","choices":[{"delta":{"content":" world"}}]}`,
		`data: {not valid json`,
		`data: {"id":"1","choices":[],"usage":{"prompt_tokens":10,"completion_tokens":2}}`,
		`data: [DONE]`,
		`data: {"id":"1","choices":[{"delta":{"content":"after done"}}]}`,
	}, "\n")

	var tokens []string
	res, err := readSSE(context.Background(), strings.NewReader(body), func(tok string) {
		tokens = append(tokens, tok)
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "Hello world" {
		t.Errorf("content = %q", res.Content)
	}
	if len(tokens) != 2 || tokens[0] != "Hello" || tokens[1] != " world" {
		t.Errorf("tokens = %v", tokens)
	}
	if res.Usage.InputTokens != 10 || res.Usage.OutputTokens != 2 {
		t.Errorf("usage = %+v", res.Usage)
	}
}

func TestReadSSENilSink(t *testing.T) {
	body := `data: {"id":"1","choices":[{"delta":{"content":"x"}}]}` + "\ndata: [DONE]\n"
	res, err := readSSE(context.Background(), strings.NewReader(body), nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "x" {
		t.Errorf("content = %q", res.Content)
	}
}

func TestReadSSECancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	body := `data: {"id":"1","choices":[{"delta":{"content":"x"}}]}`
	if _, err := readSSE(ctx, strings.NewReader(body), nil); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
