// Package sms delivers one-time codes to phone numbers.
package sms

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers a code to a phone number.
type Sender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// LogSender writes the code to the log instead of sending it. Local development only.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender returns a Sender that logs codes at info level.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// SendOTP logs the code.
func (s *LogSender) SendOTP(ctx context.Context, phone, code string) error {
	s.logger.Info("OTP for testing", zap.String("phone", phone), zap.String("otp", code))
	return nil
}
