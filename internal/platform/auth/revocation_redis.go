package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/vaxtrack/vaxtrack/internal/platform/breaker"
)

const revokedKeyPrefix = "revoked:"

// RedisRevocationStore stores each revoked jti as a key that expires together
// with the token, so revocations survive restarts and are shared between
// replicas.
type RedisRevocationStore struct {
	client redis.Cmdable
	cb     *gobreaker.CircuitBreaker
	now    func() time.Time
}

func NewRedisRevocationStore(client redis.Cmdable, logger zerolog.Logger) *RedisRevocationStore {
	return &RedisRevocationStore{
		client: client,
		cb:     breaker.New(breaker.Redis, logger),
		now:    time.Now,
	}
}

func revokedKey(jti string) string {
	return revokedKeyPrefix + jti
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, revokedKey(jti), "1", ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// IsRevoked fails closed: when Redis is unreachable the caller receives an
// error and must reject the request.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.Exists(ctx, revokedKey(jti)).Result()
	})
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return res.(int64) > 0, nil
}

// Ping reports whether Redis is reachable. It backs the health endpoint.
func (s *RedisRevocationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
