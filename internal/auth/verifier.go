package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tharamac2/Tharamac/internal/clock"
	"github.com/tharamac2/Tharamac/internal/model"
	"github.com/tharamac2/Tharamac/internal/repo"
	"github.com/tharamac2/Tharamac/internal/validation"
)

// VerifyResult is returned when a code was accepted.
type VerifyResult struct {
	Identifier string
	VerifiedAt time.Time
}

// Verifier checks submitted codes against the stored request.
type Verifier struct {
	otpRepo  repo.OtpRepo
	clock    clock.Clocker
	validate validation.Validator
	logger   *zap.Logger
	cfg      OtpConfig
}

// NewVerifier creates a Verifier.
func NewVerifier(
	otpRepo repo.OtpRepo,
	clk clock.Clocker,
	validate validation.Validator,
	logger *zap.Logger,
	cfg OtpConfig,
) *Verifier {
	return &Verifier{
		otpRepo:  otpRepo,
		clock:    clk,
		validate: validate,
		logger:   logger,
		cfg:      cfg,
	}
}

type verifyInput struct {
	Mobile string `json:"mobile" validate:"required,phone"`
	OTP    string `json:"otp" validate:"required,digits"`
}

// Verify consumes the code for identifier. Every call that reaches a stored
// request counts as an attempt, including the successful one.
func (v *Verifier) Verify(ctx context.Context, identifier, code string) (VerifyResult, error) {
	identifier = strings.TrimSpace(identifier)
	code = strings.TrimSpace(code)
	if err := v.validate.Validate(verifyInput{Mobile: identifier, OTP: code}); err != nil {
		return VerifyResult{}, validationError(err)
	}
	if len(code) != v.cfg.Length {
		return VerifyResult{}, newError(KindValidation, fmt.Sprintf("otp must be %d digits", v.cfg.Length), nil)
	}

	now := v.clock.Now()
	submitted := hashCode(v.cfg.Salt, identifier, code)

	err := v.otpRepo.Update(ctx, identifier, func(req *model.OtpRequest) (repo.OtpAction, error) {
		if req.Expired(now) {
			return repo.OtpDelete, newError(KindExpired, "OTP has expired", nil)
		}
		req.AttemptCount++
		if req.AttemptCount > v.cfg.MaxAttempts {
			return repo.OtpKeep, newError(KindTooManyAttempts, "too many attempts, request a new OTP", nil)
		}
		if codesEqual(submitted, req.CodeHash) {
			return repo.OtpDelete, nil
		}
		return repo.OtpKeep, &Error{
			Kind:         KindInvalidCode,
			Message:      "invalid OTP",
			AttemptsLeft: v.cfg.MaxAttempts - req.AttemptCount,
		}
	})

	var authErr *Error
	switch {
	case err == nil:
		v.logger.Info("otp verified", zap.String("phone", MaskPhone(identifier)))
		return VerifyResult{Identifier: identifier, VerifiedAt: now}, nil
	case errors.Is(err, repo.ErrNotFound):
		return VerifyResult{}, newError(KindNotFound, "no OTP requested for this number", nil)
	case errors.As(err, &authErr):
		v.logger.Info("otp rejected", zap.String("phone", MaskPhone(identifier)), zap.String("kind", authErr.Kind.String()))
		return VerifyResult{}, authErr
	default:
		v.logger.Error("failed to verify otp", zap.String("phone", MaskPhone(identifier)), zap.Error(err))
		return VerifyResult{}, newError(KindPersistence, "failed to verify OTP", err)
	}
}
