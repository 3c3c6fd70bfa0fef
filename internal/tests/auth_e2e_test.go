package tests

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tharamac2/Tharamac/internal/auth"
	"github.com/tharamac2/Tharamac/internal/client"
	"github.com/tharamac2/Tharamac/internal/clock"
	"github.com/tharamac2/Tharamac/internal/config"
)

const testPhone = "+491234567890"

// TestAuthE2E drives the client flow against the server backed by Postgres:
// request, a wrong code, the right code, a restart from the saved file, logout.
func TestAuthE2E(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping E2E test")
	}

	ts := newTestServer(t, nil)
	ctx := context.Background()
	api := client.NewAPIClient(ts.Server.URL)
	dir := t.TempDir()

	flow := client.NewFlow(api, client.NewFileStore(dir), clock.New())
	require.Equal(t, client.LoggedOut, flow.Start())

	challenge, err := flow.RequestOTP(ctx, testPhone)
	require.NoError(t, err)
	require.NotEmpty(t, challenge.DevOTP, "dev_otp must be present when OTP_DEV_MODE=true")
	assert.Equal(t, client.AwaitingOtp, flow.State())

	_, err = flow.Verify(ctx, "0000", client.Profile{})
	require.Error(t, err)
	assert.Equal(t, auth.KindInvalidCode, auth.KindOf(err))
	assert.Equal(t, client.AwaitingOtp, flow.State())

	session, err := flow.Verify(ctx, challenge.DevOTP, client.Profile{Name: "Asha", BusinessName: "Asha Prints"})
	require.NoError(t, err)
	assert.Equal(t, testPhone, session.User.Mobile)
	assert.Equal(t, "Asha", session.User.Name)
	assert.FileExists(t, filepath.Join(dir, "userSession.json"))

	restarted := client.NewFlow(api, client.NewFileStore(dir), clock.New())
	require.Equal(t, client.LoggedIn, restarted.Start())

	me, err := api.Me(ctx, restarted.Session().AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, me.ID)

	token := restarted.Session().Token
	require.NoError(t, restarted.Logout(ctx))
	assert.Equal(t, client.LoggedOut, restarted.State())
	assert.NoFileExists(t, filepath.Join(dir, "userSession.json"))

	_, err = api.Me(ctx, token)
	assert.Equal(t, auth.KindUnauthorized, auth.KindOf(err))
}

func TestAuthE2E_DevModeOff(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set; skipping E2E test")
	}

	ts := newTestServer(t, func(cfg *config.Config) { cfg.DevMode = false })

	status, body := ts.call(t, http.MethodPost, "/auth/request", "", map[string]string{"mobile": testPhone})
	require.Equal(t, http.StatusOK, status, "body: %v", body)
	assert.Equal(t, "otp_sent", body["message"])
	assert.NotContains(t, body, "dev_otp", "dev_otp must not be exposed when OTP_DEV_MODE=false")
}
