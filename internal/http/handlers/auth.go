package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tharamac2/Tharamac/internal/auth"
	"github.com/tharamac2/Tharamac/internal/clock"
	"github.com/tharamac2/Tharamac/internal/http/response"
	"github.com/tharamac2/Tharamac/internal/middleware"
	"github.com/tharamac2/Tharamac/internal/model"
)

const (
	rateWindow   = 10 * time.Minute
	maxBodyBytes = 1 << 16
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	service         *auth.Service
	logger          *zap.Logger
	ipLimiter       *middleware.RateLimiter
	verifyIPLimiter *middleware.RateLimiter
	phoneLimiter    *middleware.RateLimiter
}

// NewAuthHandler creates a new auth handler. Call Close on shutdown to stop the limiters.
func NewAuthHandler(service *auth.Service, clk clock.Clocker, logger *zap.Logger) *AuthHandler {
	// 10 issue and 20 verify calls per IP, 3 issue calls per phone, per 10 minutes
	return &AuthHandler{
		service:         service,
		logger:          logger,
		ipLimiter:       middleware.NewRateLimiter(rateWindow, 10, clk),
		verifyIPLimiter: middleware.NewRateLimiter(rateWindow, 20, clk),
		phoneLimiter:    middleware.NewRateLimiter(rateWindow, 3, clk),
	}
}

// Close stops the rate limiter cleanup goroutines.
func (h *AuthHandler) Close() {
	h.ipLimiter.Stop()
	h.verifyIPLimiter.Stop()
	h.phoneLimiter.Stop()
}

// requestOTPRequest is the request body for POST /auth/request
type requestOTPRequest struct {
	Mobile string `json:"mobile"`
}

// verifyOTPRequest is the request body for POST /auth/verify
type verifyOTPRequest struct {
	Mobile       string `json:"mobile"`
	OTP          string `json:"otp"`
	Name         string `json:"name"`
	BusinessName string `json:"business_name"`
}

// tokenRequest is the request body for POST /auth/refresh and POST /auth/logout
type tokenRequest struct {
	Token string `json:"token"`
}

// profileRequest is the request body for PATCH /me
type profileRequest struct {
	Name         string `json:"name"`
	BusinessName string `json:"business_name"`
}

// HandleRequestOTP handles POST /auth/request
func (h *AuthHandler) HandleRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mobile := strings.TrimSpace(req.Mobile)

	if !h.ipLimiter.Allow(middleware.GetIPKey(r)) {
		response.Fail(w, auth.KindRateLimited, "rate limit exceeded")
		return
	}
	if mobile != "" && !h.phoneLimiter.Allow(middleware.GetPhoneKey(mobile)) {
		h.logger.Warn("otp request rate limited", zap.String("phone", auth.MaskPhone(mobile)))
		response.Fail(w, auth.KindRateLimited, "too many OTP requests for this number, try again later")
		return
	}

	res, err := h.service.RequestOTP(r.Context(), mobile)
	if err != nil {
		h.logFailure("failed to request OTP", mobile, err)
		response.Error(w, err)
		return
	}

	payload := map[string]any{
		"expires_at": res.ExpiresAt,
		"resend_at":  res.ResendAt,
	}
	if res.Code != "" {
		payload["dev_otp"] = res.Code
	}
	response.OK(w, "otp_sent", payload)
}

// HandleVerifyOTP handles POST /auth/verify
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if !h.verifyIPLimiter.Allow(middleware.GetIPKey(r)) {
		response.Fail(w, auth.KindRateLimited, "rate limit exceeded")
		return
	}

	hints := auth.Hints{Name: req.Name, BusinessName: req.BusinessName}
	res, err := h.service.VerifyOTP(r.Context(), req.Mobile, req.OTP, hints)
	if err != nil {
		h.logFailure("OTP verification failed", req.Mobile, err)
		response.Error(w, err)
		return
	}

	response.OK(w, "verified", map[string]any{
		"token":                   res.Token,
		"access_token":            res.AccessToken,
		"access_token_expires_at": res.AccessTokenExpiresAt,
		"token_type":              "bearer",
		"user":                    res.User,
		"created":                 res.Created,
	})
}

// HandleRefresh handles POST /auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		response.Fail(w, auth.KindValidation, "token is required")
		return
	}
	access, err := h.service.Refresh(r.Context(), req.Token)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, "refreshed", map[string]any{
		"access_token":            access.Token,
		"access_token_expires_at": access.ExpiresAt,
		"token_type":              "bearer",
	})
}

// HandleLogout handles POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		response.Fail(w, auth.KindValidation, "token is required")
		return
	}
	if err := h.service.Logout(r.Context(), req.Token); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, "logged out", nil)
}

// HandleLogoutAll handles POST /auth/logout_all (protected). Revokes every session of the caller.
func (h *AuthHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	n, err := h.service.LogoutAll(r.Context(), user.ID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, "logged out", map[string]any{"revoked": n})
}

// HandleMe handles GET /me (protected). Returns the authenticated user.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	response.OK(w, "", map[string]any{"user": user})
}

// HandleUpdateMe handles PATCH /me (protected).
func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	updated, err := h.service.UpdateProfile(r.Context(), user.ID, req.Name, req.BusinessName)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, "profile updated", map[string]any{"user": updated})
}

func (h *AuthHandler) logFailure(msg, phone string, err error) {
	fields := []zap.Field{
		zap.String("phone", auth.MaskPhone(strings.TrimSpace(phone))),
		zap.String("kind", auth.KindOf(err).String()),
	}
	switch auth.KindOf(err) {
	case auth.KindPersistence, auth.KindDelivery, auth.KindInternal:
		h.logger.Error(msg, append(fields, zap.Error(err))...)
	default:
		h.logger.Info(msg, fields...)
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		response.Fail(w, auth.KindUnauthorized, "unauthorized")
		return nil, false
	}
	return user, true
}

// decodeBody decodes a JSON body into dst and writes a validation failure when it cannot.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		response.Fail(w, auth.KindValidation, "invalid request body")
		return false
	}
	return true
}
