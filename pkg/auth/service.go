package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/observability"
	"github.com/platinummonkey/buildpro/pkg/rbac"
)

const (
	bearerTokenType        = "bearer"
	activeMembershipStatus = "Active"
)

// Auth failure reasons reported in metrics
const (
	reasonCredentials = "invalid_credentials"
	reasonExpired     = "token_expired"
	reasonInvalid     = "invalid_token"
	reasonRevoked     = "token_revoked"
	reasonInactive    = "inactive_user"
)

// Service implements login, refresh, logout and request authentication
type Service struct {
	users       *UserStore
	tokens      *TokenManager
	revocations RevocationStore
	metrics     *observability.Metrics
}

// NewService creates the authentication service
func NewService(users *UserStore, tokens *TokenManager, revocations RevocationStore, metrics *observability.Metrics) *Service {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Service{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		metrics:     metrics,
	}
}

// Tokens returns the token manager
func (s *Service) Tokens() *TokenManager {
	return s.tokens
}

func (s *Service) fail(reason string, err error) error {
	s.metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	return err
}

func reasonFor(err error) string {
	if apperrors.IsKind(err, apperrors.KindTokenExpired) {
		return reasonExpired
	}
	return reasonInvalid
}

// Login checks email and password and issues a token pair. Unknown,
// inactive and wrong-password accounts are indistinguishable.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, s.fail(reasonCredentials, apperrors.InvalidCredentials())
		}
		return nil, err
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, s.fail(reasonCredentials, apperrors.InvalidCredentials())
	}

	memberships, err := s.users.ListMemberships(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	access, _, err := s.tokens.Issue(user.ID, user.Email, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := s.tokens.Issue(user.ID, user.Email, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user.LastLogin = &now

	var active *uuid.UUID
	for _, m := range memberships {
		if m.Status == activeMembershipStatus {
			id := m.OrganizationID
			active = &id
			break
		}
	}

	observability.FromContext(ctx).WithField("user_id", user.ID.String()).Info("user logged in")

	return &LoginResult{
		Response: LoginResponse{
			AccessToken:          access,
			TokenType:            bearerTokenType,
			ExpiresIn:            int(s.tokens.AccessTTL().Seconds()),
			ActiveOrganizationID: active,
			User:                 NewProfile(user, memberships),
		},
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshClaims.Expiry(),
	}, nil
}

// Refresh exchanges a valid, unrevoked refresh token for a new access token
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, s.fail(reasonInvalid, apperrors.InvalidToken("refresh token not found"))
	}

	claims, err := s.tokens.Verify(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, s.fail(reasonFor(err), err)
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, s.fail(reasonRevoked, apperrors.InvalidToken("token has been revoked"))
	}

	user, err := s.principalUser(ctx, claims)
	if err != nil {
		return nil, err
	}

	access, _, err := s.tokens.Issue(user.ID, user.Email, TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken: access,
		TokenType:   bearerTokenType,
		ExpiresIn:   int(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes whichever of the two tokens verify. Malformed, expired and
// already revoked tokens are skipped.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	logger := observability.FromContext(ctx)

	candidates := []struct {
		token string
		typ   TokenType
	}{
		{accessToken, TokenTypeAccess},
		{refreshToken, TokenTypeRefresh},
	}
	for _, c := range candidates {
		if c.token == "" {
			continue
		}
		claims, err := s.tokens.Verify(c.token, c.typ)
		if err != nil {
			logger.WithField("token_type", string(c.typ)).Debug("skipping unverifiable token on logout")
			continue
		}
		if err := s.revocations.Revoke(ctx, claims); err != nil {
			return err
		}
	}
	return nil
}

// Authenticate verifies a bearer access token and resolves its principal
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Principal, *Claims, error) {
	claims, err := s.tokens.Verify(accessToken, TokenTypeAccess)
	if err != nil {
		return nil, nil, s.fail(reasonFor(err), err)
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, s.fail(reasonRevoked, apperrors.InvalidToken("token has been revoked"))
	}

	user, err := s.principalUser(ctx, claims)
	if err != nil {
		return nil, nil, err
	}
	return NewPrincipal(user), claims, nil
}

func (s *Service) principalUser(ctx context.Context, claims *Claims) (*User, error) {
	userID, err := claims.UserID()
	if err != nil {
		return nil, s.fail(reasonInvalid, err)
	}
	user, err := s.users.GetActiveByID(ctx, userID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, s.fail(reasonInactive, apperrors.Authentication("user not found or inactive"))
		}
		return nil, err
	}
	return user, nil
}

// Me returns the caller's profile with all memberships
func (s *Service) Me(ctx context.Context, principal *Principal) (*Profile, error) {
	user, err := s.users.GetActiveByID(ctx, principal.UserID)
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindNotFound) {
			return nil, apperrors.Authentication("user not found or inactive")
		}
		return nil, err
	}
	memberships, err := s.users.ListMemberships(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	profile := NewProfile(user, memberships)
	return &profile, nil
}

// UserSummary is a row of the admin user listing
type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     rbac.Role `json:"role"`
	IsActive bool      `json:"is_active"`
}

// ListUsers returns every user; requires users:manage
func (s *Service) ListUsers(ctx context.Context, principal *Principal) ([]UserSummary, error) {
	if err := principal.Permissions.Require(rbac.PermUsersManage); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{
			ID:       u.ID,
			Email:    u.Email,
			FullName: u.FullName(),
			Role:     u.Role,
			IsActive: u.IsActive,
		})
	}
	return out, nil
}
