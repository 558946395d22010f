package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for revoked tokens
	revokedTokenKeyPrefix = "trl:jti:"
)

// RedisTRL shares revocation state between instances. Keys expire with the
// tokens they revoke.
type RedisTRL struct {
	client *redis.Client
	obs    func(time.Duration)
}

type RedisOption func(*RedisTRL)

// WithLatencyObserver records the duration of each IsRevoked lookup.
func WithLatencyObserver(obs func(time.Duration)) RedisOption {
	return func(t *RedisTRL) {
		t.obs = obs
	}
}

func NewRedisTRL(client *redis.Client, opts ...RedisOption) *RedisTRL {
	trl := &RedisTRL{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(trl)
		}
	}
	return trl
}

// RevokeToken marks jti revoked for ttl.
func (t *RedisTRL) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if jti == "" {
		return nil
	}
	// key existence is what matters
	return t.client.Set(ctx, revokedTokenKeyPrefix+jti, "1", ttl).Err()
}

// IsRevoked returns false once the key has expired.
func (t *RedisTRL) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if t.obs != nil {
		start := time.Now()
		defer func() { t.obs(time.Since(start)) }()
	}
	if jti == "" {
		return false, nil
	}
	_, err := t.client.Get(ctx, revokedTokenKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
