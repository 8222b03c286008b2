package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/lilamaris/senaka"
)

// Client implements senaka.ChatAPI against one OpenAI-compatible endpoint.
type Client struct {
	model      senaka.ResolvedModel
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (timeouts, proxies). The default
// client has no timeout; completions are bounded by ctx.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// New builds a Client bound to a routed model.
func New(model senaka.ResolvedModel, opts ...Option) *Client {
	c := &Client{
		model:      model,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Factory returns a senaka.APIFactory producing one Client per routed model.
func Factory(opts ...Option) senaka.APIFactory {
	return func(model senaka.ResolvedModel) senaka.ChatAPI {
		return New(model, opts...)
	}
}

// Completion sends a non-streaming chat completion and returns the first
// choice's content.
func (c *Client) Completion(ctx context.Context, req senaka.CompletionRequest) (senaka.CompletionResult, error) {
	resp, err := c.send(ctx, buildBody(c.model, req, false))
	if err != nil {
		return senaka.CompletionResult{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return senaka.CompletionResult{}, c.wrapTransport(ctx, err)
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return senaka.CompletionResult{}, &senaka.ErrProvider{Status: resp.StatusCode, Body: clipBody(raw), Cause: err}
	}

	var result senaka.CompletionResult
	result.Raw = json.RawMessage(raw)
	if len(parsed.Choices) > 0 && parsed.Choices[0].Message != nil {
		result.Content = parsed.Choices[0].Message.Content
	}
	if parsed.Usage != nil {
		result.Usage = senaka.Usage{InputTokens: parsed.Usage.PromptTokens, OutputTokens: parsed.Usage.CompletionTokens}
	}
	c.logger.Debug("completion",
		"model", c.model.ModelName, "tag", req.DebugTag,
		"input_tokens", result.Usage.InputTokens, "output_tokens", result.Usage.OutputTokens)
	return result, nil
}

// Stream sends a streaming chat completion, invoking onToken for every
// content delta, and returns the accumulated content plus usage from the
// final chunk.
func (c *Client) Stream(ctx context.Context, req senaka.CompletionRequest, onToken func(string)) (senaka.CompletionResult, error) {
	resp, err := c.send(ctx, buildBody(c.model, req, true))
	if err != nil {
		return senaka.CompletionResult{}, err
	}
	defer resp.Body.Close()

	result, err := readSSE(ctx, resp.Body, onToken)
	if err != nil {
		return senaka.CompletionResult{}, c.wrapTransport(ctx, err)
	}
	c.logger.Debug("stream complete",
		"model", c.model.ModelName, "tag", req.DebugTag,
		"input_tokens", result.Usage.InputTokens, "output_tokens", result.Usage.OutputTokens)
	return result, nil
}

// send posts the body to the chat completions endpoint and maps non-2xx
// responses to *senaka.ErrProvider.
func (c *Client) send(ctx context.Context, body map[string]any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &senaka.ErrProvider{Cause: fmt.Errorf("marshal request: %w", err)}
	}

	url := c.model.Endpoint + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &senaka.ErrProvider{Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.model.Credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.model.Credential)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.wrapTransport(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &senaka.ErrProvider{Status: resp.StatusCode, Body: clipBody(raw)}
	}
	return resp, nil
}

// wrapTransport keeps cancellation unwrapped and folds everything else into
// a status-0 provider error.
func (c *Client) wrapTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &senaka.ErrProvider{Cause: err}
}

const maxErrorBodyBytes = 2048

func clipBody(raw []byte) string {
	if len(raw) > maxErrorBodyBytes {
		return string(raw[:maxErrorBodyBytes]) + "…"
	}
	return string(raw)
}

var _ senaka.ChatAPI = (*Client)(nil)
