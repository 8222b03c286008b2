package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lilamaris/senaka"
)

func testModel(endpoint string) senaka.ResolvedModel {
	return senaka.ResolvedModel{
		ID:         "m",
		Provider:   "openai-compat",
		Endpoint:   endpoint,
		Credential: "sk-test",
		ModelName:  "test-model",
	}
}

func TestClientCompletion(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"1","choices":[{"message":{"role":"assistant","content":"pong"}}],"usage":{"prompt_tokens":7,"completion_tokens":1}}`)
	}))
	defer srv.Close()

	c := New(testModel(srv.URL))
	res, err := c.Completion(context.Background(), senaka.CompletionRequest{
		Messages: []senaka.ChatMessage{senaka.UserMessage("ping")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "pong" {
		t.Errorf("content = %q", res.Content)
	}
	if res.Usage.InputTokens != 7 || res.Usage.OutputTokens != 1 {
		t.Errorf("usage = %+v", res.Usage)
	}
	if len(res.Raw) == 0 {
		t.Error("raw response body not captured")
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["model"] != "test-model" {
		t.Errorf("wire model = %v", gotBody["model"])
	}
}

func TestClientNon2xxToErrProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "model loading")
	}))
	defer srv.Close()

	c := New(testModel(srv.URL))
	_, err := c.Completion(context.Background(), senaka.CompletionRequest{})
	var pe *senaka.ErrProvider
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *ErrProvider", err)
	}
	if pe.Status != http.StatusServiceUnavailable || !strings.Contains(pe.Body, "model loading") {
		t.Errorf("provider error = %+v", pe)
	}
}

func TestClientTransportError(t *testing.T) {
	c := New(testModel("http://127.0.0.1:1")) // nothing listens here
	_, err := c.Completion(context.Background(), senaka.CompletionRequest{})
	var pe *senaka.ErrProvider
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want *ErrProvider", err)
	}
	if pe.Status != 0 || pe.Cause == nil {
		t.Errorf("transport error = %+v, want status 0 with cause", pe)
	}
}

func TestClientCancellationUnwrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := New(testModel(srv.URL))
	_, err := c.Completion(ctx, senaka.CompletionRequest{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestClientStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		if body["stream"] != true {
			t.Error("stream flag missing from wire body")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"id":"1","choices":[{"delta":{"content":"a"}}]}`+"\n")
		io.WriteString(w, `data: {"id":"1","choices":[{"delta":{"content":"b"}}]}`+"\n")
		io.WriteString(w, `data: {"id":"1","choices":[],"usage":{"prompt_tokens":3,"completion_tokens":2}}`+"\n")
		io.WriteString(w, "data: [DONE]\n")
	}))
	defer srv.Close()

	c := New(testModel(srv.URL))
	var tokens []string
	res, err := c.Stream(context.Background(), senaka.CompletionRequest{
		Messages: []senaka.ChatMessage{senaka.UserMessage("go")},
	}, func(tok string) { tokens = append(tokens, tok) })
	if err != nil {
		t.Fatal(err)
	}
	if res.Content != "ab" {
		t.Errorf("content = %q", res.Content)
	}
	if len(tokens) != 2 {
		t.Errorf("tokens = %v", tokens)
	}
	if res.Usage.OutputTokens != 2 {
		t.Errorf("usage = %+v", res.Usage)
	}
}

func TestFactoryBindsModel(t *testing.T) {
	api := Factory()(testModel("http://example.invalid"))
	if _, ok := api.(*Client); !ok {
		t.Fatalf("factory returned %T", api)
	}
}
