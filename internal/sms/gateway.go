package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const defaultTimeout = 15 * time.Second

// GatewaySender posts codes to an HTTP SMS gateway using the
// {"route":"otp","numbers":...,"variables":...} body most Indian OTP routes accept.
type GatewaySender struct {
	APIKey     string
	BaseURL    string
	SenderID   string
	HTTPClient *http.Client
	// MaxRetries bounds retries on network errors and 5xx responses.
	MaxRetries uint64
}

// NewGatewaySender returns a GatewaySender with a 15s HTTP timeout and 2 retries.
func NewGatewaySender(apiKey, baseURL, senderID string) *GatewaySender {
	return &GatewaySender{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		SenderID:   senderID,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		MaxRetries: 2,
	}
}

type gatewayRequest struct {
	Route     string `json:"route"`
	Numbers   string `json:"numbers"`
	Variables string `json:"variables"`
	SenderID  string `json:"sender_id,omitempty"`
}

// SendOTP sends the code. It never logs the code.
func (g *GatewaySender) SendOTP(ctx context.Context, phone, code string) error {
	if g.APIKey == "" || g.BaseURL == "" {
		return fmt.Errorf("sms: gateway not configured")
	}
	raw, err := json.Marshal(gatewayRequest{
		Route:     "otp",
		Numbers:   phone,
		Variables: code,
		SenderID:  g.SenderID,
	})
	if err != nil {
		return err
	}

	b := retry.WithMaxRetries(g.MaxRetries, retry.NewExponential(250*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL, bytes.NewReader(raw))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", g.APIKey)

		resp, err := g.HTTPClient.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("sms: request failed: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err = fmt.Errorf("sms: gateway returned status=%d body=%s", resp.StatusCode, string(body))
		if resp.StatusCode >= 500 {
			return retry.RetryableError(err)
		}
		return err
	})
}
