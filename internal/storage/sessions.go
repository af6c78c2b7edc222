package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"smartbill/internal/session"
)

// SessionStore keeps the CLI session token in the session_tokens table under
// session.TokenKey. It implements session.Store.
type SessionStore struct {
	repo *SQLiteRepository
}

var _ session.Store = (*SessionStore)(nil)

func (r *SQLiteRepository) Sessions() *SessionStore {
	return &SessionStore{repo: r}
}

// Load returns an empty session when no token has been saved.
func (s *SessionStore) Load(ctx context.Context) (session.Session, error) {
	query, args, err := builder.
		Select("token").
		From("session_tokens").
		Where("name = ?", session.TokenKey).
		ToSql()
	if err != nil {
		return session.Session{}, fmt.Errorf("build load session query: %w", err)
	}

	var token string
	err = s.repo.db.QueryRowContext(ctx, query, args...).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, nil
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("load session: %w", err)
	}
	return session.New(token), nil
}

// Save overwrites the stored token. An empty session clears it.
func (s *SessionStore) Save(ctx context.Context, sess session.Session) error {
	if !sess.Authenticated() {
		return s.Clear(ctx)
	}

	query, args, err := builder.
		Insert("session_tokens").
		Columns("name", "token", "updated_at").
		Values(session.TokenKey, sess.Token(), s.repo.timestamp()).
		Suffix("ON CONFLICT(name) DO UPDATE SET token = excluded.token, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save session query: %w", err)
	}
	if _, err := s.repo.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	slog.DebugContext(ctx, "Session token stored")
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	query, args, err := builder.
		Delete("session_tokens").
		Where("name = ?", session.TokenKey).
		ToSql()
	if err != nil {
		return fmt.Errorf("build clear session query: %w", err)
	}
	if _, err := s.repo.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
