package repo

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/tharamac2/Tharamac/internal/model"
)

const (
	otpKeyPrefix = "otp:"
	// expiredRetention keeps a request readable past its expiry so verify can
	// report "expired" instead of "not found".
	expiredRetention = 10 * time.Minute
	maxTxRetries     = 5
)

type redisOtpRepo struct {
	client *redis.Client
}

// NewRedisOtpRepo creates an OtpRepo backed by one Redis hash per phone number.
func NewRedisOtpRepo(client *redis.Client) OtpRepo {
	return &redisOtpRepo{client: client}
}

func otpKey(phone string) string {
	return otpKeyPrefix + phone
}

// Replace overwrites the hash in a MULTI block so readers never see a mix of old and new fields.
func (r *redisOtpRepo) Replace(ctx context.Context, req model.OtpRequest) error {
	key := otpKey(req.PhoneNumber)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"code_hash", hex.EncodeToString(req.CodeHash),
			"issued_at", strconv.FormatInt(req.IssuedAt.UnixNano(), 10),
			"expires_at", strconv.FormatInt(req.ExpiresAt.UnixNano(), 10),
			"attempt_count", 0,
		)
		pipe.Expire(ctx, key, req.ExpiresAt.Sub(req.IssuedAt)+expiredRetention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace otp request: %w", err)
	}
	return nil
}

// Update uses WATCH/MULTI; a concurrent Replace aborts the transaction and it is retried.
func (r *redisOtpRepo) Update(ctx context.Context, phone string, fn func(req *model.OtpRequest) (OtpAction, error)) error {
	key := otpKey(phone)
	var fnErr error

	txf := func(tx *redis.Tx) error {
		fields, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("load otp request: %w", err)
		}
		if len(fields) == 0 {
			return ErrNotFound
		}
		req, err := decodeOtpFields(phone, fields)
		if err != nil {
			return err
		}

		var action OtpAction
		action, fnErr = fn(&req)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if action == OtpDelete {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.HSet(ctx, key, "attempt_count", req.AttemptCount)
			return nil
		})
		return err
	}

	b := retry.WithMaxRetries(maxTxRetries, retry.NewConstant(10*time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("update otp request: %w", err)
	}
	return fnErr
}

// Purge is a no-op: Redis expires keys on its own.
func (r *redisOtpRepo) Purge(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func decodeOtpFields(phone string, fields map[string]string) (model.OtpRequest, error) {
	req := model.OtpRequest{PhoneNumber: phone}

	hash, err := hex.DecodeString(fields["code_hash"])
	if err != nil {
		return req, fmt.Errorf("decode code_hash: %w", err)
	}
	req.CodeHash = hash

	issued, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return req, fmt.Errorf("decode issued_at: %w", err)
	}
	req.IssuedAt = time.Unix(0, issued).UTC()

	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return req, fmt.Errorf("decode expires_at: %w", err)
	}
	req.ExpiresAt = time.Unix(0, expires).UTC()

	req.AttemptCount, err = strconv.Atoi(fields["attempt_count"])
	if err != nil {
		return req, fmt.Errorf("decode attempt_count: %w", err)
	}
	return req, nil
}
