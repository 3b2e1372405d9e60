package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/medicore/auth-service/internal/core/domain"
	"github.com/medicore/auth-service/internal/core/port"
	"github.com/medicore/auth-service/internal/repository"
)

const (
	defaultOTPPrefix = "otp"

	fieldCodeHash  = "code_hash"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldAttempts  = "attempts"
)

// OTPRepository persists hashed one-time code challenges in Redis hashes.
// A key holds at most one challenge per (purpose, identifier); Store
// replaces the hash and resets its TTL in one transaction, so a reissued
// code always supersedes the old one atomically.
type OTPRepository struct {
	client *red.Client
	prefix string
}

var _ port.OTPRepository = (*OTPRepository)(nil)

// NewOTPRepository constructs an OTP repository with the provided Redis
// client and key prefix.
func NewOTPRepository(client *red.Client, keyPrefix string) *OTPRepository {
	if keyPrefix == "" {
		keyPrefix = defaultOTPPrefix
	}
	return &OTPRepository{client: client, prefix: keyPrefix}
}

// Store writes the challenge and its TTL in a single MULTI/EXEC block.
func (r *OTPRepository) Store(ctx context.Context, challenge domain.OTPChallenge, ttl time.Duration) error {
	switch {
	case challenge.Identifier == "":
		return errors.New("identifier is required")
	case !challenge.Purpose.Valid():
		return fmt.Errorf("unknown otp purpose %q", challenge.Purpose)
	case challenge.CodeHash == "":
		return errors.New("code hash is required")
	case ttl <= 0:
		return errors.New("ttl must be positive")
	}

	key := r.key(challenge.Identifier, challenge.Purpose)

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]any{
		fieldCodeHash:  challenge.CodeHash,
		fieldCreatedAt: strconv.FormatInt(challenge.CreatedAt.Unix(), 10),
		fieldExpiresAt: strconv.FormatInt(challenge.ExpiresAt.Unix(), 10),
		fieldAttempts:  strconv.Itoa(challenge.Attempts),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store otp: %w", err)
	}

	return nil
}

// Fetch retrieves the stored challenge for the identifier and purpose.
func (r *OTPRepository) Fetch(ctx context.Context, identifier string, purpose domain.OTPPurpose) (*domain.OTPChallenge, error) {
	if identifier == "" || !purpose.Valid() {
		return nil, errors.New("identifier and purpose are required")
	}

	values, err := r.client.HGetAll(ctx, r.key(identifier, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall otp: %w", err)
	}
	if len(values) == 0 || values[fieldCodeHash] == "" {
		return nil, repository.ErrNotFound
	}

	createdAt, err := parseUnix(values[fieldCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	expiresAt, err := parseUnix(values[fieldExpiresAt])
	if err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	attempts := 0
	if raw := values[fieldAttempts]; raw != "" {
		if v, convErr := strconv.Atoi(raw); convErr == nil {
			attempts = v
		}
	}

	return &domain.OTPChallenge{
		Identifier: identifier,
		Purpose:    purpose,
		CodeHash:   values[fieldCodeHash],
		Attempts:   attempts,
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// IncrementAttempts bumps the failed attempt counter and returns the new
// value. ErrNotFound when no challenge exists for the key.
func (r *OTPRepository) IncrementAttempts(ctx context.Context, identifier string, purpose domain.OTPPurpose) (int, error) {
	if _, err := r.Fetch(ctx, identifier, purpose); err != nil {
		return 0, err
	}

	count, err := r.client.HIncrBy(ctx, r.key(identifier, purpose), fieldAttempts, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hincrby otp attempts: %w", err)
	}

	return int(count), nil
}

// Delete removes the challenge, enforcing single-use semantics.
func (r *OTPRepository) Delete(ctx context.Context, identifier string, purpose domain.OTPPurpose) error {
	if identifier == "" || !purpose.Valid() {
		return errors.New("identifier and purpose are required")
	}

	deleted, err := r.client.Del(ctx, r.key(identifier, purpose)).Result()
	if err != nil {
		return fmt.Errorf("redis delete otp: %w", err)
	}
	if deleted == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *OTPRepository) key(identifier string, purpose domain.OTPPurpose) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, purpose, identifier)
}

func parseUnix(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(v, 0).UTC(), nil
}
