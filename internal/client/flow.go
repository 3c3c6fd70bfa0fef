package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/tharamac2/Tharamac/internal/auth"
	"github.com/tharamac2/Tharamac/internal/clock"
)

// State is the screen the client should show.
type State int

const (
	LoggedOut State = iota
	AwaitingOtp
	LoggedIn
)

func (s State) String() string {
	switch s {
	case AwaitingOtp:
		return "awaiting_otp"
	case LoggedIn:
		return "logged_in"
	default:
		return "logged_out"
	}
}

// Backend is the part of the API the flow needs.
type Backend interface {
	RequestOTP(ctx context.Context, mobile string) (Challenge, error)
	Verify(ctx context.Context, mobile, otp string, profile Profile) (Session, error)
	Logout(ctx context.Context, token string) error
}

// Flow drives login: LoggedOut -> AwaitingOtp -> LoggedIn.
type Flow struct {
	mu        sync.Mutex
	backend   Backend
	store     SessionStore
	clock     clock.Clocker
	state     State
	challenge *Challenge
	session   *Session
}

// NewFlow creates a Flow in the LoggedOut state. Call Start to restore a cached session.
func NewFlow(backend Backend, store SessionStore, clk clock.Clocker) *Flow {
	return &Flow{backend: backend, store: store, clock: clk}
}

// Start routes to LoggedIn when a usable session is cached, else LoggedOut.
func (f *Flow) Start() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenge = nil
	if s := f.store.Load(); s != nil {
		f.session = s
		f.state = LoggedIn
	} else {
		f.session = nil
		f.state = LoggedOut
	}
	return f.state
}

// State returns the current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Challenge returns the outstanding code request while AwaitingOtp.
func (f *Flow) Challenge() *Challenge {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.challenge == nil {
		return nil
	}
	c := *f.challenge
	return &c
}

// Session returns the signed-in session while LoggedIn.
func (f *Flow) Session() *Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil
	}
	s := *f.session
	return &s
}

// RequestOTP asks for a code. From AwaitingOtp it is a resend and is refused
// until the resend time has passed.
func (f *Flow) RequestOTP(ctx context.Context, mobile string) (Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.state {
	case LoggedIn:
		return Challenge{}, auth.NewError(auth.KindValidation, "already logged in", nil)
	case AwaitingOtp:
		if f.challenge != nil && f.challenge.Mobile == mobile && !CanResend(f.clock.Now(), f.challenge.ResendAt) {
			left := Countdown(f.clock.Now(), f.challenge.ResendAt)
			return Challenge{}, auth.NewError(auth.KindRateLimited,
				fmt.Sprintf("resend available in %ds", int(left.Seconds())), nil)
		}
	}

	c, err := f.backend.RequestOTP(ctx, mobile)
	if err != nil {
		return Challenge{}, err
	}
	f.challenge = &c
	f.state = AwaitingOtp
	return c, nil
}

// Verify submits the code. On success the session is saved and the flow is LoggedIn;
// on failure it stays AwaitingOtp.
func (f *Flow) Verify(ctx context.Context, code string, profile Profile) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != AwaitingOtp || f.challenge == nil {
		return Session{}, auth.NewError(auth.KindValidation, "request an OTP first", nil)
	}

	s, err := f.backend.Verify(ctx, f.challenge.Mobile, code, profile)
	if err != nil {
		return Session{}, err
	}
	s.SavedAt = f.clock.Now()
	if err := f.store.Save(s); err != nil {
		return Session{}, auth.NewError(auth.KindPersistence, "failed to save session", err)
	}
	f.session = &s
	f.challenge = nil
	f.state = LoggedIn
	return s, nil
}

// Restart abandons the outstanding code and goes back to LoggedOut.
func (f *Flow) Restart() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == AwaitingOtp {
		f.challenge = nil
		f.state = LoggedOut
	}
	return f.state
}

// Logout revokes the session on the server when possible and always clears it locally.
// The returned error reports a failed server revoke or local clear; the flow is LoggedOut either way.
func (f *Flow) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var serverErr error
	if f.session != nil {
		serverErr = f.backend.Logout(ctx, f.session.Token)
	}
	clearErr := f.store.Clear()
	f.session = nil
	f.challenge = nil
	f.state = LoggedOut
	if clearErr != nil {
		return auth.NewError(auth.KindPersistence, "failed to clear session", clearErr)
	}
	if serverErr != nil && auth.KindOf(serverErr) != auth.KindUnauthorized {
		return serverErr
	}
	return nil
}
