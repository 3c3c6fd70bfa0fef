package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/tharamac2/Tharamac/internal/app"
	"github.com/tharamac2/Tharamac/internal/auth"
	"github.com/tharamac2/Tharamac/internal/clock"
	"github.com/tharamac2/Tharamac/internal/config"
)

type harness struct {
	url string
	dir string
}

func newHarness(t *testing.T) harness {
	t.Helper()
	cfg := &config.Config{
		Env:                "development",
		OTPStore:           config.StoreMemory,
		JWTSecret:          "secret",
		OTPSalt:            "salt",
		OTPLength:          4,
		OTPTTL:             120 * time.Second,
		OTPMaxAttempts:     5,
		OTPResendAfter:     30 * time.Second,
		DevMode:            true,
		AccessTokenTTL:     time.Hour,
		SessionTTL:         24 * time.Hour,
		CORSAllowedOrigins: "*",
	}
	a, err := app.New(context.Background(), cfg, clock.New(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	srv := httptest.NewServer(a.Handler)
	t.Cleanup(srv.Close)
	return harness{url: srv.URL, dir: t.TempDir()}
}

// run executes one otpctl invocation and returns what it printed.
func (h harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	a := newApp()
	a.Writer = &out
	a.ErrWriter = &out
	a.Reader = strings.NewReader(stdin)
	a.ExitErrHandler = func(*cli.Context, error) {}

	argv := append([]string{"otpctl", "--api-url", h.url, "--session-dir", h.dir}, args...)
	err := a.Run(argv)
	return out.String(), err
}

var devCode = regexp.MustCompile(`Dev code: (\d+)`)

func TestRequestVerifyStatusLogout(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State: logged_out")

	out, err = h.run(t, "", "request", "--mobile", "9876543210")
	require.NoError(t, err)
	m := devCode.FindStringSubmatch(out)
	require.Len(t, m, 2, out)

	out, err = h.run(t, "", "verify", "--mobile", "9876543210", "--otp", m[1], "--name", "Asha")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as 9876543210 (Asha, My Business)")

	out, err = h.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State: logged_in")

	out, err = h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "9876543210\tAsha\tMy Business")

	out, err = h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = h.run(t, "", "whoami")
	assert.Error(t, err)
}

func TestVerifyWrongCode(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "request", "--mobile", "9876543210")
	require.NoError(t, err)

	_, err = h.run(t, "", "verify", "--mobile", "9876543210", "--otp", "0000")
	require.Error(t, err)

	out, err := h.run(t, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "State: logged_out")
}

func TestLoginCancelled(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "q\n", "login", "--mobile", "9876543210")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login cancelled")
	assert.Contains(t, out, "Code sent to 9876543210")
}

func TestLoginResendTooSoon(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "r\n", "login", "--mobile", "9876543210")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no code entered")
	assert.Contains(t, out, "resend available in")
}

func TestLoginRejectsInvalidMobile(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "", "login", "--mobile", "12ab")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "Wrong code, 2 attempts left",
		describe(&auth.Error{Kind: auth.KindInvalidCode, Message: "invalid OTP", AttemptsLeft: 2}))
	assert.Equal(t, "The code has expired, request a new one",
		describe(auth.NewError(auth.KindExpired, "OTP expired", nil)))
	assert.Equal(t, assert.AnError.Error(), describe(assert.AnError))
}
