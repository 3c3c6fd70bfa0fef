package repo

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/tharamac2/Tharamac/internal/model"
)

// OtpAction tells OtpRepo.Update what to do with the request after the callback ran.
type OtpAction int

const (
	// OtpKeep persists the (possibly mutated) request.
	OtpKeep OtpAction = iota
	// OtpDelete removes the request.
	OtpDelete
)

// OtpRepo stores at most one OtpRequest per phone number.
type OtpRepo interface {
	// Replace atomically stores req, overwriting any previous request for the same phone.
	Replace(ctx context.Context, req model.OtpRequest) error
	// Update loads the request for phone and calls fn while holding the per-phone
	// write guard. The returned action is applied even when fn returns an error,
	// and fn's error is returned after the action is committed.
	// Returns ErrNotFound (fn not called) when no request exists.
	Update(ctx context.Context, phone string, fn func(req *model.OtpRequest) (OtpAction, error)) error
	// Purge deletes requests that expired before the given time and returns how many were removed.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type otpRepo struct {
	db *sql.DB
}

// NewOtpRepo creates a PostgreSQL-backed OtpRepo
func NewOtpRepo(db *sql.DB) OtpRepo {
	return &otpRepo{db: db}
}

// Replace upserts on the phone_number primary key, so a concurrent verify either
// holds the row lock first or reads the new code.
func (r *otpRepo) Replace(ctx context.Context, req model.OtpRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO otp_requests (phone_number, code_hash, issued_at, expires_at, attempt_count)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (phone_number) DO UPDATE
		SET code_hash = EXCLUDED.code_hash,
		    issued_at = EXCLUDED.issued_at,
		    expires_at = EXCLUDED.expires_at,
		    attempt_count = 0
	`, req.PhoneNumber, hex.EncodeToString(req.CodeHash), req.IssuedAt, req.ExpiresAt)
	if err != nil {
		return fmt.Errorf("upsert otp request: %w", err)
	}
	return nil
}

// Update locks the row with SELECT ... FOR UPDATE for the duration of fn.
func (r *otpRepo) Update(ctx context.Context, phone string, fn func(req *model.OtpRequest) (OtpAction, error)) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var req model.OtpRequest
	var codeHashHex string
	err = tx.QueryRowContext(ctx, `
		SELECT phone_number, code_hash, issued_at, expires_at, attempt_count
		FROM otp_requests
		WHERE phone_number = $1
		FOR UPDATE
	`, phone).Scan(
		&req.PhoneNumber,
		&codeHashHex,
		&req.IssuedAt,
		&req.ExpiresAt,
		&req.AttemptCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("query otp request: %w", err)
	}
	req.CodeHash, err = hex.DecodeString(codeHashHex)
	if err != nil {
		return fmt.Errorf("decode code_hash: %w", err)
	}

	action, fnErr := fn(&req)

	switch action {
	case OtpDelete:
		_, err = tx.ExecContext(ctx, `DELETE FROM otp_requests WHERE phone_number = $1`, phone)
		if err != nil {
			return fmt.Errorf("delete otp request: %w", err)
		}
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE otp_requests SET attempt_count = $2 WHERE phone_number = $1
		`, phone, req.AttemptCount)
		if err != nil {
			return fmt.Errorf("update attempt count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return fnErr
}

// Purge removes expired requests.
func (r *otpRepo) Purge(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM otp_requests WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge otp requests: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
