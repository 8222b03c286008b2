package senaka

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRequestStructuredWithRepairFirstAttempt(t *testing.T) {
	api := &scriptedAPI{replies: []scriptedReply{{content: `{"ok":true}`}}}
	var seen string
	err := requestStructuredWithRepair(context.Background(), api,
		[]ChatMessage{UserMessage("go")}, 2, false,
		func(int) CompletionRequest { return CompletionRequest{} },
		func(content string) error { seen = content; return nil },
		repairKindWorkerAction, nil)
	if err != nil {
		t.Fatal(err)
	}
	if seen != `{"ok":true}` {
		t.Errorf("parse saw %q", seen)
	}
	if len(api.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(api.requests))
	}
}

func TestRequestStructuredWithRepairAppendsRepairContext(t *testing.T) {
	api := &scriptedAPI{replies: []scriptedReply{
		{content: "garbage"},
		{content: `{"ok":true}`},
	}}
	base := []ChatMessage{SystemMessage("contract"), UserMessage("go")}
	err := requestStructuredWithRepair(context.Background(), api, base, 2, false,
		func(int) CompletionRequest { return CompletionRequest{} },
		func(content string) error {
			if content == "garbage" {
				return errors.New("no JSON object found in reply")
			}
			return nil
		},
		repairKindWorkerAction, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(api.requests) != 2 {
		t.Fatalf("requests = %d, want 2", len(api.requests))
	}
	// Second attempt: base messages, the bad assistant output, the repair prompt.
	msgs := api.requests[1].Messages
	if len(msgs) != 4 {
		t.Fatalf("repair attempt carried %d messages, want 4", len(msgs))
	}
	if msgs[2].Role != RoleAssistant || msgs[2].Content != "garbage" {
		t.Errorf("bad output not echoed back: %+v", msgs[2])
	}
	if msgs[3].Role != RoleUser || !strings.Contains(msgs[3].Content, "no JSON object found") {
		t.Errorf("repair prompt = %+v", msgs[3])
	}
}

func TestRequestStructuredWithRepairExhaustsToValidation(t *testing.T) {
	bad := scriptedReply{content: "still bad"}
	api := &scriptedAPI{replies: []scriptedReply{bad, bad, bad}}
	err := requestStructuredWithRepair(context.Background(), api,
		[]ChatMessage{UserMessage("go")}, 2, false,
		func(int) CompletionRequest { return CompletionRequest{} },
		func(string) error { return errors.New("unknown action") },
		repairKindMainDecision, nil)
	var ve *ErrValidation
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want *ErrValidation", err)
	}
	if ve.Kind != repairKindMainDecision || ve.Attempts != 3 {
		t.Errorf("validation = %+v, want kind=main-decision attempts=3", ve)
	}
	if !strings.Contains(ve.Reason, "unknown action") {
		t.Errorf("reason = %q", ve.Reason)
	}
}

func TestRequestStructuredWithRepairProviderErrorConsumesRetry(t *testing.T) {
	api := &scriptedAPI{replies: []scriptedReply{
		{err: &ErrProvider{Status: 500, Body: "boom"}},
		{content: `{"ok":true}`},
	}}
	err := requestStructuredWithRepair(context.Background(), api,
		[]ChatMessage{UserMessage("go")}, 2, false,
		func(int) CompletionRequest { return CompletionRequest{} },
		func(string) error { return nil },
		repairKindPlanning, nil)
	if err != nil {
		t.Fatal(err)
	}
	// The retry after a provider error carries no repair message.
	if len(api.requests[1].Messages) != 1 {
		t.Errorf("provider-error retry carried %d messages, want the base 1", len(api.requests[1].Messages))
	}
}

func TestRequestStructuredWithRepairProviderErrorAtCap(t *testing.T) {
	boom := scriptedReply{err: &ErrProvider{Status: 502, Body: "bad gateway"}}
	api := &scriptedAPI{replies: []scriptedReply{boom, boom, boom}}
	err := requestStructuredWithRepair(context.Background(), api,
		[]ChatMessage{UserMessage("go")}, 2, false,
		func(int) CompletionRequest { return CompletionRequest{} },
		func(string) error { return nil },
		repairKindPlanning, nil)
	var pe *ErrProvider
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want the provider error as-is", err)
	}
	if pe.Status != 502 {
		t.Errorf("status = %d, want 502", pe.Status)
	}
}

func TestRequestChatReplyStreamsOnlyFirstAttempt(t *testing.T) {
	api := &scriptedAPI{replies: []scriptedReply{{content: "a b"}, {content: "c d"}}}
	var tokens []string
	onToken := func(tok string) { tokens = append(tokens, tok) }

	if _, err := requestChatReply(context.Background(), api, CompletionRequest{}, nil, 0, true, onToken); err != nil {
		t.Fatal(err)
	}
	if _, err := requestChatReply(context.Background(), api, CompletionRequest{}, nil, 1, true, onToken); err != nil {
		t.Fatal(err)
	}
	if !api.streamed[0] || api.streamed[1] {
		t.Errorf("streamed = %v, want [true false]", api.streamed)
	}
	if len(tokens) == 0 {
		t.Error("no tokens delivered on the streaming attempt")
	}

	// No sink means no streaming even on attempt zero.
	api2 := &scriptedAPI{replies: []scriptedReply{{content: "x"}}}
	if _, err := requestChatReply(context.Background(), api2, CompletionRequest{}, nil, 0, true, nil); err != nil {
		t.Fatal(err)
	}
	if api2.streamed[0] {
		t.Error("streamed without a token sink")
	}
}

func TestRequestStructuredWithRepairCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	api := &scriptedAPI{replies: []scriptedReply{{err: ctx.Err()}}}
	err := requestStructuredWithRepair(ctx, api,
		[]ChatMessage{UserMessage("go")}, 2, false,
		func(int) CompletionRequest { return CompletionRequest{} },
		func(string) error { return nil },
		repairKindPlanning, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if len(api.requests) != 1 {
		t.Errorf("requests after cancellation = %d, want 1", len(api.requests))
	}
}
