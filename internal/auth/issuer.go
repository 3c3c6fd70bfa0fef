package auth

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tharamac2/Tharamac/internal/clock"
	"github.com/tharamac2/Tharamac/internal/model"
	"github.com/tharamac2/Tharamac/internal/repo"
	"github.com/tharamac2/Tharamac/internal/sms"
	"github.com/tharamac2/Tharamac/internal/validation"
)

// IssueResult describes a freshly issued code.
type IssueResult struct {
	Identifier string
	ExpiresAt  time.Time
	ResendAt   time.Time
	// Code is only set in dev mode.
	Code string
}

// Issuer creates one-time codes and hands them to the SMS sender.
type Issuer struct {
	otpRepo  repo.OtpRepo
	sender   sms.Sender
	clock    clock.Clocker
	validate validation.Validator
	logger   *zap.Logger
	cfg      OtpConfig
	generate CodeGenerator
}

// NewIssuer creates an Issuer.
func NewIssuer(
	otpRepo repo.OtpRepo,
	sender sms.Sender,
	clk clock.Clocker,
	validate validation.Validator,
	logger *zap.Logger,
	cfg OtpConfig,
) *Issuer {
	return &Issuer{
		otpRepo:  otpRepo,
		sender:   sender,
		clock:    clk,
		validate: validate,
		logger:   logger,
		cfg:      cfg,
		generate: generateCode,
	}
}

type issueInput struct {
	Mobile string `json:"mobile" validate:"required,phone"`
}

// Issue stores a new code for identifier, replacing any earlier one, and delivers it.
// If delivery fails the stored code is left in place; issuing again replaces it.
func (i *Issuer) Issue(ctx context.Context, identifier string) (IssueResult, error) {
	identifier = strings.TrimSpace(identifier)
	if err := i.validate.Validate(issueInput{Mobile: identifier}); err != nil {
		return IssueResult{}, validationError(err)
	}

	code, err := i.generate(i.cfg.Length)
	if err != nil {
		return IssueResult{}, newError(KindInternal, "failed to generate OTP", err)
	}

	now := i.clock.Now()
	req := model.OtpRequest{
		PhoneNumber: identifier,
		CodeHash:    hashCode(i.cfg.Salt, identifier, code),
		IssuedAt:    now,
		ExpiresAt:   now.Add(i.cfg.TTL),
	}
	if err := i.otpRepo.Replace(ctx, req); err != nil {
		i.logger.Error("failed to store otp request", zap.String("phone", MaskPhone(identifier)), zap.Error(err))
		return IssueResult{}, newError(KindPersistence, "failed to store OTP", err)
	}

	if err := i.sender.SendOTP(ctx, identifier, code); err != nil {
		i.logger.Error("failed to deliver otp", zap.String("phone", MaskPhone(identifier)), zap.Error(err))
		return IssueResult{}, newError(KindDelivery, "failed to send OTP", err)
	}

	res := IssueResult{
		Identifier: identifier,
		ExpiresAt:  req.ExpiresAt,
		ResendAt:   now.Add(i.cfg.ResendAfter),
	}
	if i.cfg.DevMode {
		res.Code = code
	}
	i.logger.Info("otp issued", zap.String("phone", MaskPhone(identifier)), zap.Time("expires_at", res.ExpiresAt))
	return res, nil
}

// Purge removes requests that expired before now.
func (i *Issuer) Purge(ctx context.Context) (int64, error) {
	n, err := i.otpRepo.Purge(ctx, i.clock.Now())
	if err != nil {
		return 0, newError(KindPersistence, "failed to purge OTP requests", err)
	}
	return n, nil
}
