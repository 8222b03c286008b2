// Package postgres implements senaka.SessionStore on PostgreSQL.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lilamaris/senaka"
)

// StoreOption configures a PostgreSQL Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store keeps each session as one row with the transcript as JSONB.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ senaka.SessionStore = (*Store)(nil)

// New creates a Store using an existing pgxpool.Pool.
func New(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	s := &Store{pool: pool, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates the sessions table. Safe to call multiple times.
func (s *Store) Init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL,
		messages JSONB NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("postgres: create sessions table: %w", err)
	}
	return nil
}

// LoadOrCreate returns the stored session, or seeds and persists a fresh one.
// A row whose transcript no longer parses is treated as absent and reseeded.
func (s *Store) LoadOrCreate(ctx context.Context, sessionID, systemPrompt string) (*senaka.ChatSession, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	var createdAt, updatedAt int64
	var messagesJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT created_at, updated_at, messages FROM sessions WHERE id = $1`,
		sessionID,
	).Scan(&createdAt, &updatedAt, &messagesJSON)
	switch {
	case err == nil:
		var messages []senaka.ChatMessage
		if jsonErr := json.Unmarshal(messagesJSON, &messages); jsonErr == nil {
			s.logger.Debug("postgres: session loaded", "id", sessionID, "messages", len(messages))
			return &senaka.ChatSession{
				ID:        sessionID,
				CreatedAt: time.Unix(createdAt, 0).UTC(),
				UpdatedAt: time.Unix(updatedAt, 0).UTC(),
				Messages:  messages,
			}, nil
		}
		s.logger.Warn("postgres: session row corrupt, reseeding", "id", sessionID)
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, fmt.Errorf("postgres: load session: %w", err)
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
		return fmt.Errorf("postgres: marshal messages: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (id, created_at, updated_at, messages)
		 VALUES ($1, $2, $3, $4::jsonb)
		 ON CONFLICT (id) DO UPDATE SET
		   updated_at = EXCLUDED.updated_at,
		   messages = EXCLUDED.messages`,
		session.ID, session.CreatedAt.Unix(), session.UpdatedAt.Unix(), string(data))
	if err != nil {
		return fmt.Errorf("postgres: save session: %w", err)
	}
	s.logger.Debug("postgres: session saved", "id", session.ID, "messages", len(messages))
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
