package sqlite

import (
	"context"
	"database/sql"

	"github.com/openshelf/openshelf-server/internal/domain"
	"github.com/openshelf/openshelf-server/internal/errors"
)

const sessionColumns = `id, user_id, refresh_token_hash, expires_at, created_at, last_seen_at`

func scanSession(scanner interface{ Scan(dest ...any) error }) (*domain.Session, error) {
	var sess domain.Session

	var (
		expiresAt  string
		createdAt  string
		lastSeenAt string
	)

	err := scanner.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.RefreshTokenHash,
		&expiresAt,
		&createdAt,
		&lastSeenAt,
	)
	if err != nil {
		return nil, err
	}

	sess.ExpiresAt, err = parseTime(expiresAt)
	if err != nil {
		return nil, err
	}
	sess.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	sess.LastSeenAt, err = parseTime(lastSeenAt)
	if err != nil {
		return nil, err
	}

	return &sess, nil
}

// CreateSession inserts a new session.
func (s *Store) CreateSession(ctx context.Context, sess *domain.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, user_id, refresh_token_hash, expires_at, created_at, last_seen_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.RefreshTokenHash, formatTime(sess.ExpiresAt),
		formatTime(sess.CreatedAt), formatTime(sess.LastSeenAt),
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create session")
	}
	return nil
}

// GetSessionByRefreshToken looks up a session by its hashed refresh token.
func (s *Store) GetSessionByRefreshToken(ctx context.Context, tokenHash string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, tokenHash)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("Session not found.")
		}
		return nil, errors.Wrap(err, errors.CodeInternal, "get session by token")
	}
	return sess, nil
}

// UpdateSession persists rotated token state and timestamps.
func (s *Store) UpdateSession(ctx context.Context, sess *domain.Session) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET
			refresh_token_hash = ?, expires_at = ?, last_seen_at = ?
		WHERE id = ?`,
		sess.RefreshTokenHash, formatTime(sess.ExpiresAt),
		formatTime(sess.LastSeenAt), sess.ID,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "update session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Session not found.")
	}
	return nil
}

// DeleteSession removes a session (logout).
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete session")
	}
	return nil
}

// DeleteUserSessions removes all of a user's sessions.
func (s *Store) DeleteUserSessions(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "delete user sessions")
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry.
func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, formatTime(timeNow()))
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeInternal, "delete expired sessions")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
