package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tharamac2/Tharamac/internal/clock"
	"github.com/tharamac2/Tharamac/internal/repo"
	"github.com/tharamac2/Tharamac/internal/validation"
)

var testEpoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type recordingSender struct {
	mu    sync.Mutex
	codes map[string][]string
	fail  error
}

func newRecordingSender() *recordingSender {
	return &recordingSender{codes: make(map[string][]string)}
}

func (s *recordingSender) SendOTP(ctx context.Context, phone, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.codes[phone] = append(s.codes[phone], code)
	return nil
}

func (s *recordingSender) last(phone string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.codes[phone]
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1]
}

// fixedCodes returns codes in order, then keeps returning the last one.
func fixedCodes(codes ...string) CodeGenerator {
	var mu sync.Mutex
	i := 0
	return func(n int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(codes) == 0 {
			return "", errors.New("no codes")
		}
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}

type testEnv struct {
	clock    *clock.Fake
	sender   *recordingSender
	otpRepo  repo.OtpRepo
	users    repo.UserRepo
	sessions repo.SessionRepo
	issuer   *Issuer
	verifier *Verifier
	manager  *SessionManager
	jwt      *JWTService
	service  *Service
}

func newTestEnv(t *testing.T, otpRepo repo.OtpRepo) *testEnv {
	t.Helper()
	if otpRepo == nil {
		otpRepo = repo.NewMemoryOtpRepo()
	}
	env := &testEnv{
		clock:    clock.NewFake(testEpoch),
		sender:   newRecordingSender(),
		otpRepo:  otpRepo,
		users:    repo.NewMemoryUserRepo(),
		sessions: repo.NewMemorySessionRepo(),
	}
	v := validation.MustNew()
	logger := zap.NewNop()
	cfg := DefaultOtpConfig("test-salt")

	env.issuer = NewIssuer(env.otpRepo, env.sender, env.clock, v, logger, cfg)
	env.verifier = NewVerifier(env.otpRepo, env.clock, v, logger, cfg)
	env.jwt = NewJWTService("test-secret", 24*time.Hour, env.clock)
	env.manager = NewSessionManager(env.users, env.sessions, env.jwt, env.clock, logger, 720*time.Hour)
	env.service = NewService(env.issuer, env.verifier, env.manager, env.jwt, env.users, v, logger)
	return env
}

func newRedisOtpRepo(t *testing.T) repo.OtpRepo {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return repo.NewRedisOtpRepo(client)
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "error: %v", err)
}
