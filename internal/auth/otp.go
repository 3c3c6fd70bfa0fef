package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"
)

// OtpConfig holds the issuance and verification policy.
type OtpConfig struct {
	// Length is the number of digits in a code.
	Length      int
	TTL         time.Duration
	MaxAttempts int
	// ResendAfter is advisory: clients wait this long before asking again.
	ResendAfter time.Duration
	// DevMode returns the code to the caller so it can be shown without an SMS gateway.
	DevMode bool
	Salt    string
}

// DefaultOtpConfig returns the canonical policy: 4 digits, 120s, 5 attempts, 30s resend.
func DefaultOtpConfig(salt string) OtpConfig {
	return OtpConfig{
		Length:      4,
		TTL:         120 * time.Second,
		MaxAttempts: 5,
		ResendAfter: 30 * time.Second,
		Salt:        salt,
	}
}

// CodeGenerator returns a numeric code of n digits.
type CodeGenerator func(n int) (string, error)

// generateCode draws uniformly from [10^(n-1), 10^n-1] so the code never has a leading zero.
func generateCode(n int) (string, error) {
	if n < 1 || n > 18 {
		return "", fmt.Errorf("invalid code length %d", n)
	}
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))
	v, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return v.Add(v, low).String(), nil
}

// hashCode returns HMAC-SHA256(salt, phone ":" code).
func hashCode(salt, phone, code string) []byte {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(phone))
	mac.Write([]byte{':'})
	mac.Write([]byte(code))
	return mac.Sum(nil)
}

func codesEqual(a, b []byte) bool {
	return len(a) == len(b) && subtle.ConstantTimeCompare(a, b) == 1
}
