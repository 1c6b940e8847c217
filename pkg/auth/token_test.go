package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/config"
)

const testSecret = "test-secret-key-that-is-long-enough-for-hs256"

func newTestTokenManager() *TokenManager {
	return NewTokenManager(config.AuthConfig{
		SecretKey:       testSecret,
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	m := newTestTokenManager()
	userID := uuid.New()

	token, issued, err := m.Issue(userID, "pm@example.com", TokenTypeAccess)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.ID)

	claims, err := m.Verify(token, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "pm@example.com", claims.Email)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, issued.ID, claims.ID)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.Expiry(), 5*time.Second)

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestTokenManager_RefreshOmitsEmail(t *testing.T) {
	m := newTestTokenManager()
	token, _, err := m.Issue(uuid.New(), "pm@example.com", TokenTypeRefresh)
	require.NoError(t, err)

	claims, err := m.Verify(token, TokenTypeRefresh)
	require.NoError(t, err)
	assert.Empty(t, claims.Email)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.Expiry(), 5*time.Second)
}

func TestTokenManager_UniqueJTI(t *testing.T) {
	m := newTestTokenManager()
	userID := uuid.New()
	_, a, err := m.Issue(userID, "", TokenTypeAccess)
	require.NoError(t, err)
	_, b, err := m.Issue(userID, "", TokenTypeAccess)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTokenManager_VerifyFailures(t *testing.T) {
	m := newTestTokenManager()
	userID := uuid.New()

	access, _, err := m.Issue(userID, "a@example.com", TokenTypeAccess)
	require.NoError(t, err)

	expiredManager := newTestTokenManager()
	expiredManager.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := expiredManager.Issue(userID, "a@example.com", TokenTypeAccess)
	require.NoError(t, err)

	otherKey := NewTokenManager(config.AuthConfig{SecretKey: "another-secret-key-of-sufficient-length", AccessTokenTTL: time.Minute})
	foreign, _, err := otherKey.Issue(userID, "", TokenTypeAccess)
	require.NoError(t, err)

	noneAlg := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Type: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unsigned, err := noneAlg.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	parts := strings.Split(access, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	tests := []struct {
		name     string
		token    string
		expected TokenType
		kind     apperrors.Kind
		message  string
	}{
		{"empty", "", TokenTypeAccess, apperrors.KindInvalidToken, "invalid token"},
		{"garbage", "not-a-jwt", TokenTypeAccess, apperrors.KindInvalidToken, "invalid token"},
		{"expired", expired, TokenTypeAccess, apperrors.KindTokenExpired, "token has expired"},
		{"wrong key", foreign, TokenTypeAccess, apperrors.KindInvalidToken, "invalid token"},
		{"alg none", unsigned, TokenTypeAccess, apperrors.KindInvalidToken, "invalid token"},
		{"tampered signature", tampered, TokenTypeAccess, apperrors.KindInvalidToken, "invalid token"},
		{"type mismatch", access, TokenTypeRefresh, apperrors.KindInvalidToken, "invalid token type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token, tt.expected)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperrors.KindOf(err))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}

func TestClaims_UserIDInvalidSubject(t *testing.T) {
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "42"}}
	_, err := claims.UserID()
	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindInvalidToken))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "battery staple"))
	assert.False(t, CheckPassword("", "correct horse"))
	assert.False(t, CheckPassword("not-a-bcrypt-hash", "correct horse"))
}
