package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tharamac2/Tharamac/internal/clock"
	"github.com/tharamac2/Tharamac/internal/model"
	"github.com/tharamac2/Tharamac/internal/repo"
)

// Placeholders stored for users who sign in without registering first.
const (
	DefaultName         = "User"
	DefaultBusinessName = "My Business"
)

// Hints are profile values used only when a user record is created.
type Hints struct {
	Name         string
	BusinessName string
}

// SessionResult is what a client keeps after signing in.
type SessionResult struct {
	User    model.User
	Session model.Session
	// Token is the opaque session token. It is returned once and only its hash is stored.
	Token string
	// AccessToken is a JWT for stateless callers.
	AccessToken          string
	AccessTokenExpiresAt time.Time
	// Created reports whether the user was registered by this call.
	Created bool
}

// SessionManager maps a verified identifier to a user and issues session credentials.
type SessionManager struct {
	users      repo.UserRepo
	sessions   repo.SessionRepo
	jwt        *JWTService
	clock      clock.Clocker
	logger     *zap.Logger
	sessionTTL time.Duration
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(
	users repo.UserRepo,
	sessions repo.SessionRepo,
	jwtService *JWTService,
	clk clock.Clocker,
	logger *zap.Logger,
	sessionTTL time.Duration,
) *SessionManager {
	return &SessionManager{
		users:      users,
		sessions:   sessions,
		jwt:        jwtService,
		clock:      clk,
		logger:     logger,
		sessionTTL: sessionTTL,
	}
}

// Resolve finds or creates the user for identifier and opens a new session.
// Callers must have verified the identifier first.
func (m *SessionManager) Resolve(ctx context.Context, identifier string, hints Hints) (SessionResult, error) {
	name := strings.TrimSpace(hints.Name)
	if name == "" {
		name = DefaultName
	}
	businessName := strings.TrimSpace(hints.BusinessName)
	if businessName == "" {
		businessName = DefaultBusinessName
	}

	user, created, err := m.users.GetOrCreateByPhone(ctx, identifier, name, businessName)
	if err != nil {
		m.logger.Error("failed to get or create user", zap.String("phone", MaskPhone(identifier)), zap.Error(err))
		return SessionResult{}, newError(KindPersistence, "failed to load user", err)
	}

	token, hash, err := GenerateSessionToken()
	if err != nil {
		return SessionResult{}, newError(KindInternal, "failed to generate session token", err)
	}
	session, err := m.sessions.Create(ctx, user.ID, hash, m.clock.Now().Add(m.sessionTTL))
	if err != nil {
		m.logger.Error("failed to create session", zap.String("user_id", user.ID.String()), zap.Error(err))
		return SessionResult{}, newError(KindPersistence, "failed to create session", err)
	}

	accessToken, accessExp, err := m.jwt.SignAccessToken(user.ID, user.PhoneNumber, session.ID)
	if err != nil {
		return SessionResult{}, newError(KindInternal, "failed to sign access token", err)
	}

	if created {
		m.logger.Info("user registered", zap.String("user_id", user.ID.String()), zap.String("phone", MaskPhone(identifier)))
	}
	return SessionResult{
		User:                 user,
		Session:              session,
		Token:                token,
		AccessToken:          accessToken,
		AccessTokenExpiresAt: accessExp,
		Created:              created,
	}, nil
}

// Lookup returns the active session for an opaque token.
func (m *SessionManager) Lookup(ctx context.Context, token string) (model.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.Session{}, newError(KindUnauthorized, "missing session token", nil)
	}
	session, err := m.sessions.FindByTokenHash(ctx, HashSessionToken(token))
	return m.active(session, err)
}

// lookupByID returns the active session with the given id.
func (m *SessionManager) lookupByID(ctx context.Context, id uuid.UUID) (model.Session, error) {
	session, err := m.sessions.GetByID(ctx, id)
	return m.active(session, err)
}

func (m *SessionManager) active(session model.Session, err error) (model.Session, error) {
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Session{}, newError(KindUnauthorized, "invalid or expired session", nil)
		}
		return model.Session{}, newError(KindPersistence, "failed to load session", err)
	}
	if !session.Active(m.clock.Now()) {
		return model.Session{}, newError(KindUnauthorized, "invalid or expired session", nil)
	}
	return session, nil
}

// Revoke ends one session. Revoking an unknown session is unauthorized.
func (m *SessionManager) Revoke(ctx context.Context, session model.Session) error {
	if err := m.sessions.Revoke(ctx, session.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return newError(KindUnauthorized, "invalid or expired session", nil)
		}
		return newError(KindPersistence, "failed to revoke session", err)
	}
	return nil
}

// RevokeAll ends every session of a user and returns how many were active.
func (m *SessionManager) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := m.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, newError(KindPersistence, "failed to revoke sessions", err)
	}
	return n, nil
}
