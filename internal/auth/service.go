package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tharamac2/Tharamac/internal/model"
	"github.com/tharamac2/Tharamac/internal/repo"
	"github.com/tharamac2/Tharamac/internal/validation"
)

// AccessToken is a signed JWT and its expiry.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// Service orchestrates authentication operations
type Service struct {
	issuer   *Issuer
	verifier *Verifier
	sessions *SessionManager
	jwt      *JWTService
	users    repo.UserRepo
	validate validation.Validator
	logger   *zap.Logger
}

// NewService creates a new auth service
func NewService(
	issuer *Issuer,
	verifier *Verifier,
	sessions *SessionManager,
	jwtService *JWTService,
	users repo.UserRepo,
	validate validation.Validator,
	logger *zap.Logger,
) *Service {
	return &Service{
		issuer:   issuer,
		verifier: verifier,
		sessions: sessions,
		jwt:      jwtService,
		users:    users,
		validate: validate,
		logger:   logger,
	}
}

// RequestOTP issues a code for identifier.
func (s *Service) RequestOTP(ctx context.Context, identifier string) (IssueResult, error) {
	return s.issuer.Issue(ctx, identifier)
}

// VerifyOTP verifies the code and, on success, signs the user in, registering
// them first when the identifier is new.
func (s *Service) VerifyOTP(ctx context.Context, identifier, code string, hints Hints) (SessionResult, error) {
	res, err := s.verifier.Verify(ctx, identifier, code)
	if err != nil {
		return SessionResult{}, err
	}
	return s.sessions.Resolve(ctx, res.Identifier, hints)
}

// Refresh signs a new access token for an active session token. The session token is not rotated.
func (s *Service) Refresh(ctx context.Context, sessionToken string) (AccessToken, error) {
	session, err := s.sessions.Lookup(ctx, sessionToken)
	if err != nil {
		return AccessToken{}, err
	}
	user, err := s.loadUser(ctx, session.UserID)
	if err != nil {
		return AccessToken{}, err
	}
	token, expiresAt, err := s.jwt.SignAccessToken(user.ID, user.PhoneNumber, session.ID)
	if err != nil {
		return AccessToken{}, newError(KindInternal, "failed to sign access token", err)
	}
	return AccessToken{Token: token, ExpiresAt: expiresAt}, nil
}

// Logout revokes the session behind sessionToken. Access tokens bound to it stop working.
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	session, err := s.sessions.Lookup(ctx, sessionToken)
	if err != nil {
		return err
	}
	if err := s.sessions.Revoke(ctx, session); err != nil {
		return err
	}
	s.logger.Info("session revoked", zap.String("user_id", session.UserID.String()), zap.String("session_id", session.ID.String()))
	return nil
}

// LogoutAll revokes every session of the user.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info("all sessions revoked", zap.String("user_id", userID.String()), zap.Int64("count", n))
	return n, nil
}

// Authenticate resolves a bearer credential to its user. A JWT access token
// is accepted while its session is active; anything else is treated as an
// opaque session token.
func (s *Service) Authenticate(ctx context.Context, bearer string) (model.User, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return model.User{}, newError(KindUnauthorized, "missing token", nil)
	}

	var session model.Session
	var err error
	if strings.Count(bearer, ".") == 2 {
		session, err = s.sessionFromJWT(ctx, bearer)
	} else {
		session, err = s.sessions.Lookup(ctx, bearer)
	}
	if err != nil {
		return model.User{}, err
	}
	return s.loadUser(ctx, session.UserID)
}

func (s *Service) sessionFromJWT(ctx context.Context, token string) (model.Session, error) {
	claims, err := s.jwt.VerifyToken(token)
	if err != nil {
		return model.Session{}, newError(KindUnauthorized, "invalid or expired token", err)
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return model.Session{}, newError(KindUnauthorized, "invalid or expired token", err)
	}
	session, err := s.sessions.lookupByID(ctx, sessionID)
	if err != nil {
		return model.Session{}, err
	}
	if userID, err := claims.UserID(); err != nil || userID != session.UserID {
		return model.Session{}, newError(KindUnauthorized, "invalid or expired token", err)
	}
	return session, nil
}

type profileInput struct {
	Name         string `json:"name" validate:"max=100"`
	BusinessName string `json:"business_name" validate:"max=100"`
}

// UpdateProfile sets the user's name and business name. Empty values are left unchanged.
func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, name, businessName string) (model.User, error) {
	in := profileInput{Name: strings.TrimSpace(name), BusinessName: strings.TrimSpace(businessName)}
	if err := s.validate.Validate(in); err != nil {
		return model.User{}, validationError(err)
	}
	if in.Name == "" && in.BusinessName == "" {
		return model.User{}, newError(KindValidation, "name or business_name is required", nil)
	}
	user, err := s.users.UpdateProfile(ctx, userID, in.Name, in.BusinessName)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, newError(KindNotFound, "user not found", nil)
		}
		return model.User{}, newError(KindPersistence, "failed to update profile", err)
	}
	return user, nil
}

// PurgeExpired removes expired OTP requests.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.issuer.Purge(ctx)
}

func (s *Service) loadUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, newError(KindUnauthorized, "user not found", nil)
		}
		return model.User{}, newError(KindPersistence, "failed to load user", err)
	}
	return user, nil
}
