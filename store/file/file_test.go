package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lilamaris/senaka"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	return s, dir
}

func TestLoadOrCreateSeedsNewSession(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	session, err := s.LoadOrCreate(ctx, "sess-1", "you are helpful")
	if err != nil {
		t.Fatal(err)
	}
	if session.ID != "sess-1" {
		t.Errorf("id = %q", session.ID)
	}
	if len(session.Messages) != 1 || session.Messages[0].Role != senaka.RoleSystem {
		t.Fatalf("seed messages = %+v", session.Messages)
	}
	if session.CreatedAt.IsZero() || session.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
	if _, err := os.Stat(filepath.Join(dir, "sess-1.json")); err != nil {
		t.Fatalf("session file missing: %v", err)
	}
}

func TestLoadOrCreateEmptyPromptSeedsNoMessages(t *testing.T) {
	s, _ := newTestStore(t)
	session, err := s.LoadOrCreate(context.Background(), "sess-1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(session.Messages) != 0 {
		t.Errorf("messages = %+v", session.Messages)
	}
}

func TestLoadOrCreateGeneratesID(t *testing.T) {
	s, _ := newTestStore(t)
	session, err := s.LoadOrCreate(context.Background(), "", "")
	if err != nil {
		t.Fatal(err)
	}
	if session.ID == "" {
		t.Fatal("expected a generated session id")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	session, err := s.LoadOrCreate(ctx, "sess-1", "prompt")
	if err != nil {
		t.Fatal(err)
	}
	session.Messages = append(session.Messages,
		senaka.UserMessage("hello"),
		senaka.AssistantMessage("hi there"))
	before := session.UpdatedAt
	if err := s.Save(ctx, session); err != nil {
		t.Fatal(err)
	}
	if !session.UpdatedAt.After(before) && session.UpdatedAt != before {
		t.Error("UpdatedAt not bumped")
	}

	loaded, err := s.LoadOrCreate(ctx, "sess-1", "ignored on load")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Messages) != 3 {
		t.Fatalf("messages = %d", len(loaded.Messages))
	}
	if loaded.Messages[1].Content != "hello" || loaded.Messages[2].Role != senaka.RoleAssistant {
		t.Errorf("round trip lost content: %+v", loaded.Messages)
	}
}

func TestResetDiscardsTranscript(t *testing.T) {
	s, _ := newTestStore(t)
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

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	session, _ := s.LoadOrCreate(ctx, "sess-1", "p")
	for i := 0; i < 5; i++ {
		session.Messages = append(session.Messages, senaka.UserMessage("m"))
		if err := s.Save(ctx, session); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestCorruptFileReseeded(t *testing.T) {
	s, dir := newTestStore(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "sess-1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	session, err := s.LoadOrCreate(ctx, "sess-1", "prompt")
	if err != nil {
		t.Fatal(err)
	}
	if len(session.Messages) != 1 || session.Messages[0].Content != "prompt" {
		t.Fatalf("corrupt file not reseeded: %+v", session.Messages)
	}
}

func TestFilenameSanitized(t *testing.T) {
	s, dir := newTestStore(t)
	if _, err := s.LoadOrCreate(context.Background(), "a/b:c", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a-b-c.json")); err != nil {
		t.Fatalf("sanitized file missing: %v", err)
	}
}

func TestSaveCancelledContext(t *testing.T) {
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, &senaka.ChatSession{ID: "x"}); err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
