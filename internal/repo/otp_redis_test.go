package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tharamac2/Tharamac/internal/model"
)

func newTestRedisOtpRepo(t *testing.T) (OtpRepo, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		server.Close()
	})

	return NewRedisOtpRepo(rdb), server
}

func sampleRequest(phone string, hash string) model.OtpRequest {
	issued := time.Now().UTC().Truncate(time.Millisecond)
	return model.OtpRequest{
		PhoneNumber: phone,
		CodeHash:    []byte(hash),
		IssuedAt:    issued,
		ExpiresAt:   issued.Add(2 * time.Minute),
	}
}

func TestRedisOtpRepo_ReplaceAndUpdate(t *testing.T) {
	r, server := newTestRedisOtpRepo(t)
	ctx := context.Background()

	req := sampleRequest("9876543210", "hash-1")
	require.NoError(t, r.Replace(ctx, req))

	ttl := server.TTL(otpKey("9876543210"))
	assert.Equal(t, 2*time.Minute+expiredRetention, ttl)

	err := r.Update(ctx, "9876543210", func(got *model.OtpRequest) (OtpAction, error) {
		assert.Equal(t, req.CodeHash, got.CodeHash)
		assert.True(t, req.IssuedAt.Equal(got.IssuedAt))
		assert.True(t, req.ExpiresAt.Equal(got.ExpiresAt))
		assert.Equal(t, 0, got.AttemptCount)
		got.AttemptCount = 3
		return OtpKeep, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "3", server.HGet(otpKey("9876543210"), "attempt_count"))
}

func TestRedisOtpRepo_ReplaceResetsAttempts(t *testing.T) {
	r, server := newTestRedisOtpRepo(t)
	ctx := context.Background()

	require.NoError(t, r.Replace(ctx, sampleRequest("9876543210", "hash-1")))
	require.NoError(t, r.Update(ctx, "9876543210", func(got *model.OtpRequest) (OtpAction, error) {
		got.AttemptCount = 4
		return OtpKeep, nil
	}))

	require.NoError(t, r.Replace(ctx, sampleRequest("9876543210", "hash-2")))
	assert.Equal(t, "0", server.HGet(otpKey("9876543210"), "attempt_count"))

	require.NoError(t, r.Update(ctx, "9876543210", func(got *model.OtpRequest) (OtpAction, error) {
		assert.Equal(t, []byte("hash-2"), got.CodeHash)
		return OtpKeep, nil
	}))
}

func TestRedisOtpRepo_DeleteAppliedEvenWhenCallbackFails(t *testing.T) {
	r, server := newTestRedisOtpRepo(t)
	ctx := context.Background()
	require.NoError(t, r.Replace(ctx, sampleRequest("1112223333", "hash")))

	boom := errors.New("expired")
	err := r.Update(ctx, "1112223333", func(*model.OtpRequest) (OtpAction, error) {
		return OtpDelete, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, server.Exists(otpKey("1112223333")))

	err = r.Update(ctx, "1112223333", func(*model.OtpRequest) (OtpAction, error) {
		t.Fatal("callback must not run for a missing request")
		return OtpKeep, nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisOtpRepo_UnavailableServer(t *testing.T) {
	r, server := newTestRedisOtpRepo(t)
	server.Close()

	err := r.Replace(context.Background(), sampleRequest("9876543210", "hash"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
