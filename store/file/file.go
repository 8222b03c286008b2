// Package file implements senaka.SessionStore with one JSON document per
// session. Saves are atomic: write to a temp file in the same directory,
// fsync, then rename over the target.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lilamaris/senaka"
)

// StoreOption configures a file Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store keeps sessions as JSON files under dir.
type Store struct {
	dir    string
	logger *slog.Logger
}

var _ senaka.SessionStore = (*Store)(nil)

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, opts ...StoreOption) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session dir: %w", err)
	}
	s := &Store{dir: dir, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// LoadOrCreate returns the stored session, or seeds and persists a fresh one.
// A session file that no longer parses is treated as absent and reseeded.
func (s *Store) LoadOrCreate(ctx context.Context, sessionID, systemPrompt string) (*senaka.ChatSession, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	data, err := os.ReadFile(s.path(sessionID))
	switch {
	case err == nil:
		var session senaka.ChatSession
		if jsonErr := json.Unmarshal(data, &session); jsonErr == nil {
			s.logger.Debug("session loaded", "id", sessionID, "messages", len(session.Messages))
			return &session, nil
		}
		s.logger.Warn("session file corrupt, reseeding", "id", sessionID)
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read session: %w", err)
	}

	return s.seed(ctx, sessionID, systemPrompt)
}

// Save persists the session atomically and bumps UpdatedAt.
func (s *Store) Save(ctx context.Context, session *senaka.ChatSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	session.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	target := s.path(session.ID)
	tmp, err := os.CreateTemp(s.dir, "."+sanitizeID(session.ID)+".tmp-")
	if err != nil {
		return fmt.Errorf("temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("rename session: %w", err)
	}

	s.logger.Debug("session saved", "id", session.ID, "messages", len(session.Messages))
	return nil
}

// Reset discards the transcript and returns the reseeded session.
func (s *Store) Reset(ctx context.Context, sessionID, systemPrompt string) (*senaka.ChatSession, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return s.seed(ctx, sessionID, systemPrompt)
}

func (s *Store) seed(ctx context.Context, sessionID, systemPrompt string) (*senaka.ChatSession, error) {
	now := time.Now().UTC()
	session := &senaka.ChatSession{
		ID:        sessionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if systemPrompt != "" {
		session.Messages = append(session.Messages, senaka.SystemMessage(systemPrompt))
	}
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, sanitizeID(sessionID)+".json")
}

// sanitizeID keeps filenames safe regardless of what the caller puts in a
// session id.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "default"
	}
	return b.String()
}
