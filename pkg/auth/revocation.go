package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/buildpro/pkg/config"
	"github.com/platinummonkey/buildpro/pkg/observability"
)

const (
	defaultRevocationCacheSize = 10000
	defaultRevocationCacheTTL  = 15 * time.Minute
	redisRevokedPrefix         = "revoked:"
)

// RevocationStore records and answers token revocation by jti
type RevocationStore interface {
	Revoke(ctx context.Context, claims *Claims) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisRevocationCache shares revoked jtis between replicas. A nil cache is
// valid and does nothing.
type RedisRevocationCache struct {
	client *redis.Client
}

// NewRedisRevocationCache wraps client; a nil client yields a nil cache
func NewRedisRevocationCache(client *redis.Client) *RedisRevocationCache {
	if client == nil {
		return nil
	}
	return &RedisRevocationCache{client: client}
}

// Mark stores jti until ttl elapses
func (c *RedisRevocationCache) Mark(ctx context.Context, jti string, ttl time.Duration) error {
	if c == nil || ttl <= 0 {
		return nil
	}
	return c.client.Set(ctx, redisRevokedPrefix+jti, "1", ttl).Err()
}

// Contains reports whether jti has been marked
func (c *RedisRevocationCache) Contains(ctx context.Context, jti string) (bool, error) {
	if c == nil {
		return false, nil
	}
	n, err := c.client.Exists(ctx, redisRevokedPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PostgresRevocationStore persists revocations in revoked_tokens. Positive
// lookups are cached in process and, when configured, in Redis.
type PostgresRevocationStore struct {
	db      *sql.DB
	local   *expirable.LRU[string, struct{}]
	shared  *RedisRevocationCache
	metrics *observability.Metrics
	now     func() time.Time
}

// NewRevocationStore creates the revocation store. shared may be nil.
func NewRevocationStore(db *sql.DB, cfg config.AuthConfig, shared *RedisRevocationCache, metrics *observability.Metrics) *PostgresRevocationStore {
	size := cfg.RevocationCacheSize
	if size <= 0 {
		size = defaultRevocationCacheSize
	}
	ttl := cfg.RevocationCacheTTL
	if ttl <= 0 {
		ttl = defaultRevocationCacheTTL
	}
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &PostgresRevocationStore{
		db:      db,
		local:   expirable.NewLRU[string, struct{}](size, nil, ttl),
		shared:  shared,
		metrics: metrics,
		now:     time.Now,
	}
}

// Revoke records the token's jti. Revoking an already revoked jti is a
// no-op.
func (s *PostgresRevocationStore) Revoke(ctx context.Context, claims *Claims) error {
	var userID interface{}
	if id, err := claims.UserID(); err == nil {
		userID = id
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_tokens (jti, token_type, user_id, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jti) DO NOTHING`,
		claims.ID, string(claims.Type), userID, claims.Expiry())
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.local.Add(claims.ID, struct{}{})
	if err := s.shared.Mark(ctx, claims.ID, claims.Expiry().Sub(s.now())); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to publish token revocation to redis")
	}
	s.metrics.TokenRevocationsTotal.WithLabelValues(string(claims.Type)).Inc()
	return nil
}

// IsRevoked reports whether jti has been revoked
func (s *PostgresRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if _, ok := s.local.Get(jti); ok {
		s.metrics.RevocationCacheHitTotal.Inc()
		return true, nil
	}

	if hit, err := s.shared.Contains(ctx, jti); err != nil {
		observability.FromContext(ctx).WithError(err).Warn("redis revocation lookup failed")
	} else if hit {
		s.metrics.RevocationCacheHitTotal.Inc()
		s.local.Add(jti, struct{}{})
		return true, nil
	}

	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		s.local.Add(jti, struct{}{})
	}
	return revoked, nil
}

// PurgeExpired deletes revocations of tokens that have expired anyway
func (s *PostgresRevocationStore) PurgeExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge revoked tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged tokens: %w", err)
	}
	return n, nil
}
