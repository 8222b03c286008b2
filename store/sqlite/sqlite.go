// Package sqlite implements senaka.SessionStore on a local SQLite file via
// the pure-Go modernc.org/sqlite driver. Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lilamaris/senaka"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// StoreOption configures a SQLite Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store keeps each session as one row with the transcript as JSON text.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ senaka.SessionStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and bootstraps the schema.
// The pool is capped at one connection so concurrent writers serialize
// through it instead of hitting SQLITE_BUSY.
func New(dbPath string, opts ...StoreOption) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		messages TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: create sessions table: %w", err)
	}

	s.logger.Debug("sqlite: store opened", "path", dbPath)
	return s, nil
}

// LoadOrCreate returns the stored session, or seeds and persists a fresh one.
// A row whose transcript no longer parses is treated as absent and reseeded.
func (s *Store) LoadOrCreate(ctx context.Context, sessionID, systemPrompt string) (*senaka.ChatSession, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var createdAt, updatedAt int64
	var messagesJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, updated_at, messages FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&createdAt, &updatedAt, &messagesJSON)
	switch {
	case err == nil:
		var messages []senaka.ChatMessage
		if jsonErr := json.Unmarshal([]byte(messagesJSON), &messages); jsonErr == nil {
			s.logger.Debug("sqlite: session loaded", "id", sessionID, "messages", len(messages))
			return &senaka.ChatSession{
				ID:        sessionID,
				CreatedAt: time.Unix(createdAt, 0).UTC(),
				UpdatedAt: time.Unix(updatedAt, 0).UTC(),
				Messages:  messages,
			}, nil
		}
		s.logger.Warn("sqlite: session row corrupt, reseeding", "id", sessionID)
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("sqlite: load session: %w", err)
	}

	return s.seed(ctx, sessionID, systemPrompt)
}

// Save upserts the session row and bumps UpdatedAt.
func (s *Store) Save(ctx context.Context, session *senaka.ChatSession) error {
	session.UpdatedAt = time.Now().UTC()

	messages := session.Messages
	if messages == nil {
		messages = []senaka.ChatMessage{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("sqlite: marshal messages: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, created_at, updated_at, messages)
		 VALUES (?, ?, ?, ?)`,
		session.ID, session.CreatedAt.Unix(), session.UpdatedAt.Unix(), string(data))
	if err != nil {
		return fmt.Errorf("sqlite: save session: %w", err)
	}
	s.logger.Debug("sqlite: session saved", "id", session.ID, "messages", len(messages))
	return nil
}

// Reset discards the transcript and returns the reseeded session.
func (s *Store) Reset(ctx context.Context, sessionID, systemPrompt string) (*senaka.ChatSession, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return s.seed(ctx, sessionID, systemPrompt)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
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
