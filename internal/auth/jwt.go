package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tharamac2/Tharamac/internal/clock"
)

const jwtIssuer = "tharamac-auth"

// AccessClaims are the claims of an access token. Subject is the user id.
type AccessClaims struct {
	PhoneNumber string `json:"phone_number,omitempty"`
	SessionID   string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *AccessClaims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// JWTService handles JWT token operations
type JWTService struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clocker
}

// NewJWTService creates a JWT service signing HS256 tokens valid for ttl.
func NewJWTService(secret string, ttl time.Duration, clk clock.Clocker) *JWTService {
	return &JWTService{
		secret: []byte(secret),
		ttl:    ttl,
		clock:  clk,
	}
}

// SignAccessToken creates an access token for the user bound to one session.
func (s *JWTService) SignAccessToken(userID uuid.UUID, phoneNumber string, sessionID uuid.UUID) (string, time.Time, error) {
	now := s.clock.Now()
	expiresAt := now.Add(s.ttl)
	claims := &AccessClaims{
		PhoneNumber: phoneNumber,
		SessionID:   sessionID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    jwtIssuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign access token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// VerifyToken verifies and parses an access token
func (s *JWTService) VerifyToken(tokenString string) (*AccessClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(jwtIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
