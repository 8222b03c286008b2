package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lilamaris/senaka"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadOrCreateSeedsNewSession(t *testing.T) {
	s := newTestStore(t)
	session, err := s.LoadOrCreate(context.Background(), "sess-1", "system prompt")
	if err != nil {
		t.Fatal(err)
	}
	if session.ID != "sess-1" {
		t.Errorf("id = %q", session.ID)
	}
	if len(session.Messages) != 1 || session.Messages[0].Role != senaka.RoleSystem {
		t.Fatalf("seed messages = %+v", session.Messages)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session, err := s.LoadOrCreate(ctx, "sess-1", "prompt")
	if err != nil {
		t.Fatal(err)
	}
	session.Messages = append(session.Messages,
		senaka.UserMessage("hello"),
		senaka.AssistantMessage("hi"))
	if err := s.Save(ctx, session); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.LoadOrCreate(ctx, "sess-1", "ignored")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Messages) != 3 {
		t.Fatalf("messages = %d", len(loaded.Messages))
	}
	if loaded.Messages[1].Content != "hello" || loaded.Messages[2].Role != senaka.RoleAssistant {
		t.Errorf("round trip lost content: %+v", loaded.Messages)
	}
	if loaded.CreatedAt.IsZero() || loaded.UpdatedAt.IsZero() {
		t.Error("timestamps lost")
	}
}

func TestResetDiscardsTranscript(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	session, _ := s.LoadOrCreate(ctx, "sess-1", "prompt")
	session.Messages = append(session.Messages, senaka.UserMessage("history"))
	if err := s.Save(ctx, session); err != nil {
		t.Fatal(err)
	}

	fresh, err := s.Reset(ctx, "sess-1", "new prompt")
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh.Messages) != 1 || fresh.Messages[0].Content != "new prompt" {
		t.Fatalf("reset messages = %+v", fresh.Messages)
	}

	loaded, _ := s.LoadOrCreate(ctx, "sess-1", "")
	if len(loaded.Messages) != 1 {
		t.Errorf("reset not durable: %d messages", len(loaded.Messages))
	}
}

func TestLoadOrCreateGeneratesID(t *testing.T) {
	s := newTestStore(t)
	session, err := s.LoadOrCreate(context.Background(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if session.ID == "" {
		t.Fatal("expected a generated session id")
	}
}

func TestSessionsIsolatedByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.LoadOrCreate(ctx, "a", "pa")
	a.Messages = append(a.Messages, senaka.UserMessage("only in a"))
	if err := s.Save(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadOrCreate(ctx, "b", "pb"); err != nil {
		t.Fatal(err)
	}

	b, _ := s.LoadOrCreate(ctx, "b", "")
	if len(b.Messages) != 1 {
		t.Errorf("session b messages = %+v", b.Messages)
	}
}
