package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tharamac2/Tharamac/internal/model"
)

// SessionRepo defines the interface for session repository operations
type SessionRepo interface {
	Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (model.Session, error)
	// FindByTokenHash returns the session regardless of revocation or expiry; callers check Active.
	FindByTokenHash(ctx context.Context, tokenHash string) (model.Session, error)
	GetByID(ctx context.Context, sessionID uuid.UUID) (model.Session, error)
	Revoke(ctx context.Context, sessionID uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type sessionRepo struct {
	db *sql.DB
}

// NewSessionRepo creates a new SessionRepo instance
func NewSessionRepo(db *sql.DB) SessionRepo {
	return &sessionRepo{db: db}
}

// Create inserts a new session
func (r *sessionRepo) Create(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) (model.Session, error) {
	s := model.Session{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, userID, tokenHash, expiresAt).Scan(&idStr, &s.CreatedAt)
	if err != nil {
		return model.Session{}, fmt.Errorf("insert session: %w", err)
	}
	s.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Session{}, fmt.Errorf("parse session ID: %w", err)
	}
	return s, nil
}

const sessionColumns = `id, user_id, token_hash, created_at, expires_at, revoked_at`

func scanSession(row *sql.Row) (model.Session, error) {
	var s model.Session
	var idStr, userIDStr string
	err := row.Scan(
		&idStr,
		&userIDStr,
		&s.TokenHash,
		&s.CreatedAt,
		&s.ExpiresAt,
		&s.RevokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Session{}, ErrNotFound
		}
		return model.Session{}, fmt.Errorf("find session: %w", err)
	}
	if s.ID, err = uuid.Parse(idStr); err != nil {
		return model.Session{}, fmt.Errorf("parse session ID: %w", err)
	}
	if s.UserID, err = uuid.Parse(userIDStr); err != nil {
		return model.Session{}, fmt.Errorf("parse user ID: %w", err)
	}
	return s, nil
}

// FindByTokenHash looks a session up by the SHA-256 of its token
func (r *sessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (model.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token_hash = $1`, tokenHash)
	return scanSession(row)
}

// GetByID looks a session up by id
func (r *sessionRepo) GetByID(ctx context.Context, sessionID uuid.UUID) (model.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID)
	return scanSession(row)
}

// Revoke sets revoked_at for the session. Revoking twice is not an error.
func (r *sessionRepo) Revoke(ctx context.Context, sessionID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = COALESCE(revoked_at, now()) WHERE id = $1
	`, sessionID)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAllForUser revokes every active session of a user
func (r *sessionRepo) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke all sessions for user: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
