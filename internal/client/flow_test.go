package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tharamac2/Tharamac/internal/auth"
	"github.com/tharamac2/Tharamac/internal/clock"
)

type fakeBackend struct {
	clock     *clock.Fake
	code      string
	requests  int
	logouts   []string
	logoutErr error
}

func (b *fakeBackend) RequestOTP(ctx context.Context, mobile string) (Challenge, error) {
	b.requests++
	now := b.clock.Now()
	return Challenge{Mobile: mobile, ExpiresAt: now.Add(120 * time.Second), ResendAt: now.Add(30 * time.Second)}, nil
}

func (b *fakeBackend) Verify(ctx context.Context, mobile, otp string, profile Profile) (Session, error) {
	if otp != b.code {
		return Session{}, &auth.Error{Kind: auth.KindInvalidCode, Message: "invalid OTP", AttemptsLeft: 4}
	}
	return Session{Token: "tok", User: User{ID: "u-1", Mobile: mobile, Name: "User"}}, nil
}

func (b *fakeBackend) Logout(ctx context.Context, token string) error {
	b.logouts = append(b.logouts, token)
	return b.logoutErr
}

func newFlow(t *testing.T) (*Flow, *fakeBackend, *MemoryStore) {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	backend := &fakeBackend{clock: clk, code: "4821"}
	store := NewMemoryStore()
	return NewFlow(backend, store, clk), backend, store
}

func TestFlow_StartRoutesOnCachedSession(t *testing.T) {
	flow, _, store := newFlow(t)
	assert.Equal(t, LoggedOut, flow.Start())

	require.NoError(t, store.Save(sampleSession()))
	assert.Equal(t, LoggedIn, flow.Start())
	assert.Equal(t, "tok", flow.Session().Token)
}

func TestFlow_Login(t *testing.T) {
	flow, backend, store := newFlow(t)
	ctx := context.Background()
	flow.Start()

	c, err := flow.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, AwaitingOtp, flow.State())
	assert.Equal(t, c, *flow.Challenge())

	_, err = flow.Verify(ctx, "0000", Profile{})
	assert.Equal(t, auth.KindInvalidCode, auth.KindOf(err))
	assert.Equal(t, AwaitingOtp, flow.State())

	s, err := flow.Verify(ctx, "4821", Profile{})
	require.NoError(t, err)
	assert.Equal(t, LoggedIn, flow.State())
	assert.Equal(t, backend.clock.Now(), s.SavedAt)
	assert.Nil(t, flow.Challenge())
	require.NotNil(t, store.Load())
	assert.Equal(t, "tok", store.Load().Token)
}

func TestFlow_ResendWaitsForTimer(t *testing.T) {
	flow, backend, _ := newFlow(t)
	ctx := context.Background()
	flow.Start()

	_, err := flow.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)

	backend.clock.Advance(10 * time.Second)
	_, err = flow.RequestOTP(ctx, "9876543210")
	assert.Equal(t, auth.KindRateLimited, auth.KindOf(err))
	assert.Contains(t, auth.MessageOf(err), "20s")
	assert.Equal(t, 1, backend.requests)

	backend.clock.Advance(20 * time.Second)
	_, err = flow.RequestOTP(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.requests)
}

func TestFlow_VerifyRequiresChallenge(t *testing.T) {
	flow, _, _ := newFlow(t)
	flow.Start()
	_, err := flow.Verify(context.Background(), "4821", Profile{})
	assert.Equal(t, auth.KindValidation, auth.KindOf(err))
}

func TestFlow_Restart(t *testing.T) {
	flow, _, _ := newFlow(t)
	flow.Start()
	_, err := flow.RequestOTP(context.Background(), "9876543210")
	require.NoError(t, err)

	assert.Equal(t, LoggedOut, flow.Restart())
	assert.Nil(t, flow.Challenge())

	// A different number can be used right away.
	_, err = flow.RequestOTP(context.Background(), "1112223333")
	assert.NoError(t, err)
}

func TestFlow_Logout(t *testing.T) {
	flow, backend, store := newFlow(t)
	require.NoError(t, store.Save(sampleSession()))
	flow.Start()

	require.NoError(t, flow.Logout(context.Background()))
	assert.Equal(t, LoggedOut, flow.State())
	assert.Nil(t, store.Load())
	assert.Equal(t, []string{"tok"}, backend.logouts)
}

func TestFlow_LogoutClearsEvenWhenServerFails(t *testing.T) {
	flow, backend, store := newFlow(t)
	backend.logoutErr = auth.NewError(auth.KindNetwork, "could not reach the server", errors.New("dial"))
	require.NoError(t, store.Save(sampleSession()))
	flow.Start()

	err := flow.Logout(context.Background())
	assert.Equal(t, auth.KindNetwork, auth.KindOf(err))
	assert.Equal(t, LoggedOut, flow.State())
	assert.Nil(t, store.Load())
}

func TestFlow_LogoutIgnoresAlreadyRevoked(t *testing.T) {
	flow, backend, store := newFlow(t)
	backend.logoutErr = auth.NewError(auth.KindUnauthorized, "invalid or expired session", nil)
	require.NoError(t, store.Save(sampleSession()))
	flow.Start()

	assert.NoError(t, flow.Logout(context.Background()))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "logged_out", LoggedOut.String())
	assert.Equal(t, "awaiting_otp", AwaitingOtp.String())
	assert.Equal(t, "logged_in", LoggedIn.String())
}
