package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tharamac2/Tharamac/internal/auth"
)

const defaultTimeout = 15 * time.Second

// Challenge describes an issued code from the client's point of view.
type Challenge struct {
	Mobile    string
	ExpiresAt time.Time
	ResendAt  time.Time
	// DevOTP is only returned by servers running in dev mode.
	DevOTP string
}

// Profile carries optional registration or edit-profile values.
type Profile struct {
	Name         string `json:"name,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
}

// APIClient speaks the OTP JSON API.
type APIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewAPIClient returns a client for baseURL with a 15s timeout.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// envelope is the common response shape. Payload fields are decoded separately.
type envelope struct {
	Success      bool   `json:"success"`
	Kind         string `json:"kind"`
	Message      string `json:"message"`
	AttemptsLeft int    `json:"attempts_left"`
}

// RequestOTP asks the server to send a code to mobile.
func (c *APIClient) RequestOTP(ctx context.Context, mobile string) (Challenge, error) {
	var out struct {
		ExpiresAt time.Time `json:"expires_at"`
		ResendAt  time.Time `json:"resend_at"`
		DevOTP    string    `json:"dev_otp"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/request", "", map[string]string{"mobile": mobile}, &out); err != nil {
		return Challenge{}, err
	}
	return Challenge{Mobile: mobile, ExpiresAt: out.ExpiresAt, ResendAt: out.ResendAt, DevOTP: out.DevOTP}, nil
}

// Verify submits the code and returns the new session.
func (c *APIClient) Verify(ctx context.Context, mobile, otp string, profile Profile) (Session, error) {
	body := map[string]string{
		"mobile":        mobile,
		"otp":           otp,
		"name":          profile.Name,
		"business_name": profile.BusinessName,
	}
	var out struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		User        User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/verify", "", body, &out); err != nil {
		return Session{}, err
	}
	return Session{Token: out.Token, AccessToken: out.AccessToken, User: out.User}, nil
}

// Refresh returns a new access token for the session token.
func (c *APIClient) Refresh(ctx context.Context, token string) (string, error) {
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{"token": token}, &out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// Logout revokes the session token on the server.
func (c *APIClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", "", map[string]string{"token": token}, nil)
}

// Me returns the current user for a session or access token.
func (c *APIClient) Me(ctx context.Context, bearer string) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/me", bearer, nil, &out); err != nil {
		return User{}, err
	}
	return out.User, nil
}

// UpdateProfile changes the name and business name. Empty fields are left unchanged.
func (c *APIClient) UpdateProfile(ctx context.Context, bearer string, profile Profile) (User, error) {
	var out struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPatch, "/me", bearer, profile, &out); err != nil {
		return User{}, err
	}
	return out.User, nil
}

func (c *APIClient) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return auth.NewError(auth.KindInternal, "failed to encode request", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return auth.NewError(auth.KindInternal, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return auth.NewError(auth.KindNetwork, "could not reach the server", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return auth.NewError(auth.KindNetwork, "failed to read response", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return auth.NewError(auth.KindNetwork, "unexpected response from server",
			fmt.Errorf("status %d: %w", resp.StatusCode, err))
	}
	if !env.Success {
		kind := auth.ParseKind(env.Kind)
		message := env.Message
		if message == "" {
			message = fmt.Sprintf("request failed with status %d", resp.StatusCode)
		}
		return &auth.Error{Kind: kind, Message: message, AttemptsLeft: env.AttemptsLeft}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return auth.NewError(auth.KindNetwork, "unexpected response from server", err)
		}
	}
	return nil
}
