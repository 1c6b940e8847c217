package auth

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/rbac"
)

var userColumns = []string{
	"id", "email", "password_hash", "first_name", "last_name", "phone_number",
	"role_id", "role_name", "permissions", "is_active", "last_login",
	"created_at", "updated_at",
}

var membershipColumns = []string{"organization_id", "name", "slug", "org_role", "status"}

// memoryRevocations is an in-memory RevocationStore
type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]TokenType
}

func newMemoryRevocations() *memoryRevocations {
	return &memoryRevocations{revoked: map[string]TokenType{}}
}

func (m *memoryRevocations) Revoke(ctx context.Context, claims *Claims) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[claims.ID] = claims.Type
	return nil
}

func (m *memoryRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

type serviceFixture struct {
	svc         *Service
	mock        sqlmock.Sqlmock
	revocations *memoryRevocations
	user        *User
	password    string
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	revocations := newMemoryRevocations()
	return &serviceFixture{
		svc:         NewService(NewUserStore(db), newTestTokenManager(), revocations, nil),
		mock:        mock,
		revocations: revocations,
		password:    "s3cret-pass",
		user: &User{
			ID:           uuid.New(),
			Email:        "site@example.com",
			PasswordHash: string(hash),
			FirstName:    "Sam",
			LastName:     "Okello",
			RoleID:       uuid.New(),
			Role:         rbac.RoleSiteSupervisor,
			IsActive:     true,
		},
	}
}

func (f *serviceFixture) userRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userColumns).AddRow(
		f.user.ID, f.user.Email, f.user.PasswordHash, f.user.FirstName, f.user.LastName, nil,
		f.user.RoleID, string(f.user.Role), "{}", true, nil, now, now,
	)
}

func TestService_LoginSuccess(t *testing.T) {
	f := newServiceFixture(t)
	invited := uuid.New()
	active := uuid.New()

	f.mock.ExpectQuery("FROM users u").WithArgs("site@example.com").WillReturnRows(f.userRows())
	f.mock.ExpectQuery("FROM organization_members m").WithArgs(f.user.ID).
		WillReturnRows(sqlmock.NewRows(membershipColumns).
			AddRow(invited, "Invited Co", "invited-co", "Member", "Invited").
			AddRow(active, "Acme Builders", "acme", "Org_Admin", "Active"))
	f.mock.ExpectExec("UPDATE users SET last_login").WithArgs(f.user.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := f.svc.Login(context.Background(), "site@example.com", f.password)
	require.NoError(t, err)

	assert.Equal(t, "bearer", result.Response.TokenType)
	assert.Equal(t, 900, result.Response.ExpiresIn)
	require.NotNil(t, result.Response.ActiveOrganizationID)
	assert.Equal(t, active, *result.Response.ActiveOrganizationID)
	assert.Len(t, result.Response.User.Organizations, 2)
	assert.Equal(t, "Sam Okello", result.Response.User.FullName)
	assert.Contains(t, result.Response.User.Permissions, "risks:report")
	assert.NotNil(t, result.Response.User.LastLogin)

	access, err := f.svc.Tokens().Verify(result.Response.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID.String(), access.Subject)
	_, err = f.svc.Tokens().Verify(result.RefreshToken, TokenTypeRefresh)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), result.RefreshExpiresAt, 5*time.Second)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestService_LoginNoActiveMembership(t *testing.T) {
	f := newServiceFixture(t)
	f.mock.ExpectQuery("FROM users u").WillReturnRows(f.userRows())
	f.mock.ExpectQuery("FROM organization_members m").WillReturnRows(sqlmock.NewRows(membershipColumns))
	f.mock.ExpectExec("UPDATE users SET last_login").WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := f.svc.Login(context.Background(), "site@example.com", f.password)
	require.NoError(t, err)
	assert.Nil(t, result.Response.ActiveOrganizationID)
	assert.Empty(t, result.Response.User.Organizations)
}

func TestService_LoginInvalidCredentials(t *testing.T) {
	t.Run("unknown or inactive user", func(t *testing.T) {
		f := newServiceFixture(t)
		f.mock.ExpectQuery("FROM users u").WillReturnError(sql.ErrNoRows)

		_, err := f.svc.Login(context.Background(), "ghost@example.com", "whatever")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindInvalidCredentials, apperrors.KindOf(err))
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newServiceFixture(t)
		f.mock.ExpectQuery("FROM users u").WillReturnRows(f.userRows())

		_, err := f.svc.Login(context.Background(), "site@example.com", "wrong")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindInvalidCredentials, apperrors.KindOf(err))
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})
}

func TestService_Authenticate(t *testing.T) {
	f := newServiceFixture(t)
	token, _, err := f.svc.Tokens().Issue(f.user.ID, f.user.Email, TokenTypeAccess)
	require.NoError(t, err)

	f.mock.ExpectQuery("FROM users u").WithArgs(f.user.ID).WillReturnRows(f.userRows())

	principal, claims, err := f.svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, principal.UserID)
	assert.Equal(t, rbac.RoleSiteSupervisor, principal.Role)
	assert.True(t, principal.Can(rbac.PermExpensesLog))
	assert.False(t, principal.Can(rbac.PermExpensesApprove))
	assert.Equal(t, TokenTypeAccess, claims.Type)
}

func TestService_AuthenticateRejectsRefreshToken(t *testing.T) {
	f := newServiceFixture(t)
	token, _, err := f.svc.Tokens().Issue(f.user.ID, "", TokenTypeRefresh)
	require.NoError(t, err)

	_, _, err = f.svc.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidToken, apperrors.KindOf(err))
}

func TestService_AuthenticateInactiveUser(t *testing.T) {
	f := newServiceFixture(t)
	token, _, err := f.svc.Tokens().Issue(f.user.ID, f.user.Email, TokenTypeAccess)
	require.NoError(t, err)
	f.mock.ExpectQuery("FROM users u").WillReturnError(sql.ErrNoRows)

	_, _, err = f.svc.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindAuthentication, apperrors.KindOf(err))
}

func TestService_LogoutRevokesBothTokens(t *testing.T) {
	f := newServiceFixture(t)
	access, _, err := f.svc.Tokens().Issue(f.user.ID, f.user.Email, TokenTypeAccess)
	require.NoError(t, err)
	refresh, _, err := f.svc.Tokens().Issue(f.user.ID, "", TokenTypeRefresh)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), access, refresh))
	assert.Len(t, f.revocations.revoked, 2)

	// a revoked access token is never accepted again
	_, _, err = f.svc.Authenticate(context.Background(), access)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidToken, apperrors.KindOf(err))
	assert.Equal(t, "token has been revoked", err.Error())

	_, err = f.svc.Refresh(context.Background(), refresh)
	require.Error(t, err)
	assert.Equal(t, "token has been revoked", err.Error())

	// logging out again is harmless
	require.NoError(t, f.svc.Logout(context.Background(), access, refresh))
	assert.Len(t, f.revocations.revoked, 2)
}

func TestService_LogoutSkipsBadTokens(t *testing.T) {
	f := newServiceFixture(t)
	expiredManager := newTestTokenManager()
	expiredManager.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _, err := expiredManager.Issue(f.user.ID, "", TokenTypeAccess)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), "garbage", ""))
	require.NoError(t, f.svc.Logout(context.Background(), expired, "garbage"))
	require.NoError(t, f.svc.Logout(context.Background(), "", ""))
	assert.Empty(t, f.revocations.revoked)
}

func TestService_Refresh(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.Refresh(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, "refresh token not found", err.Error())

	access, _, err := f.svc.Tokens().Issue(f.user.ID, f.user.Email, TokenTypeAccess)
	require.NoError(t, err)
	_, err = f.svc.Refresh(context.Background(), access)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindInvalidToken, apperrors.KindOf(err))

	refresh, _, err := f.svc.Tokens().Issue(f.user.ID, "", TokenTypeRefresh)
	require.NoError(t, err)
	f.mock.ExpectQuery("FROM users u").WithArgs(f.user.ID).WillReturnRows(f.userRows())

	resp, err := f.svc.Refresh(context.Background(), refresh)
	require.NoError(t, err)
	claims, err := f.svc.Tokens().Verify(resp.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, f.user.Email, claims.Email)
}

func TestService_ListUsersRequiresPermission(t *testing.T) {
	f := newServiceFixture(t)

	member := &Principal{UserID: uuid.New(), Role: rbac.RoleTeamMember, Permissions: rbac.DefaultPermissions(rbac.RoleTeamMember)}
	_, err := f.svc.ListUsers(context.Background(), member)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	admin := &Principal{UserID: uuid.New(), Role: rbac.RoleAdministrator, Permissions: rbac.DefaultPermissions(rbac.RoleAdministrator)}
	f.mock.ExpectQuery("FROM users u").WillReturnRows(f.userRows())
	users, err := f.svc.ListUsers(context.Background(), admin)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Sam Okello", users[0].FullName)
}
