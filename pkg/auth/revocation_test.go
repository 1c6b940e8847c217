package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/buildpro/pkg/config"
	"github.com/platinummonkey/buildpro/pkg/observability"
)

func testClaims(typ TokenType, ttl time.Duration) *Claims {
	return &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
}

func newRevocationMock(t *testing.T, shared *RedisRevocationCache) (*PostgresRevocationStore, sqlmock.Sqlmock, *observability.Metrics) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	metrics := observability.NewNopMetrics()
	store := NewRevocationStore(db, config.AuthConfig{RevocationCacheSize: 16, RevocationCacheTTL: time.Minute}, shared, metrics)
	return store, mock, metrics
}

func TestRevocationStore_RevokeThenCached(t *testing.T) {
	store, mock, metrics := newRevocationMock(t, nil)
	claims := testClaims(TokenTypeAccess, 10*time.Minute)

	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs(claims.ID, "access", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Revoke(context.Background(), claims))

	// answered from the LRU, no query expected
	revoked, err := store.IsRevoked(context.Background(), claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.TokenRevocationsTotal.WithLabelValues("access")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RevocationCacheHitTotal))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevocationStore_DatabaseLookup(t *testing.T) {
	store, mock, _ := newRevocationMock(t, nil)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("fresh").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("other-replica").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	revoked, err := store.IsRevoked(context.Background(), "fresh")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = store.IsRevoked(context.Background(), "other-replica")
	require.NoError(t, err)
	assert.True(t, revoked)

	// positive answer is now cached
	revoked, err = store.IsRevoked(context.Background(), "other-replica")
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevocationStore_NegativeNotCached(t *testing.T) {
	store, mock, _ := newRevocationMock(t, nil)

	mock.ExpectQuery("SELECT EXISTS").WithArgs("jti").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("jti").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	first, err := store.IsRevoked(context.Background(), "jti")
	require.NoError(t, err)
	assert.False(t, first)

	second, err := store.IsRevoked(context.Background(), "jti")
	require.NoError(t, err)
	assert.True(t, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevocationStore_DatabaseError(t *testing.T) {
	store, mock, _ := newRevocationMock(t, nil)
	mock.ExpectQuery("SELECT EXISTS").WillReturnError(errors.New("connection reset"))

	_, err := store.IsRevoked(context.Background(), "jti")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check token revocation")
}

func TestRevocationStore_SharedRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	writer, writerMock, _ := newRevocationMock(t, NewRedisRevocationCache(client))
	reader, readerMock, _ := newRevocationMock(t, NewRedisRevocationCache(client))

	claims := testClaims(TokenTypeRefresh, time.Hour)
	writerMock.ExpectExec("INSERT INTO revoked_tokens").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, writer.Revoke(context.Background(), claims))

	assert.True(t, mr.Exists("revoked:"+claims.ID))
	ttl := mr.TTL("revoked:" + claims.ID)
	assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour, "ttl %s", ttl)

	// another replica sees the revocation without touching its database
	revoked, err := reader.IsRevoked(context.Background(), claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.NoError(t, writerMock.ExpectationsWereMet())
	assert.NoError(t, readerMock.ExpectationsWereMet())
}

func TestRevocationStore_RedisDownFallsBackToDatabase(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	store, mock, _ := newRevocationMock(t, NewRedisRevocationCache(client))
	mock.ExpectQuery("SELECT EXISTS").WithArgs("jti").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	revoked, err := store.IsRevoked(context.Background(), "jti")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevocationStore_PurgeExpired(t *testing.T) {
	store, mock, _ := newRevocationMock(t, nil)
	mock.ExpectExec("DELETE FROM revoked_tokens WHERE expires_at <").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisRevocationCache_Nil(t *testing.T) {
	var cache *RedisRevocationCache
	assert.Nil(t, NewRedisRevocationCache(nil))
	assert.NoError(t, cache.Mark(context.Background(), "jti", time.Minute))
	hit, err := cache.Contains(context.Background(), "jti")
	assert.NoError(t, err)
	assert.False(t, hit)
}
