package auth

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/contextkeys"
	"github.com/platinummonkey/buildpro/pkg/rbac"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

// User is a registered account together with its system role
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	PhoneNumber  *string    `json:"phone_number"`
	RoleID       uuid.UUID  `json:"-"`
	Role         rbac.Role  `json:"role"`
	Permissions  []string   `json:"-"`
	IsActive     bool       `json:"is_active"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"-"`
	tenancy.SoftDelete
}

// FullName joins first and last name
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Membership summarizes one organization membership of a user
type Membership struct {
	OrganizationID   uuid.UUID `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	OrganizationSlug string    `json:"organization_slug"`
	OrgRole          string    `json:"org_role"`
	Status           string    `json:"status"`
}

// Profile is the user representation returned by login and /auth/me
type Profile struct {
	ID            uuid.UUID    `json:"id"`
	Email         string       `json:"email"`
	FirstName     string       `json:"first_name"`
	LastName      string       `json:"last_name"`
	FullName      string       `json:"full_name"`
	Role          rbac.Role    `json:"role"`
	Permissions   []string     `json:"permissions"`
	PhoneNumber   *string      `json:"phone_number"`
	IsActive      bool         `json:"is_active"`
	LastLogin     *time.Time   `json:"last_login"`
	Organizations []Membership `json:"organizations"`
}

// NewProfile combines a user with their memberships
func NewProfile(u *User, memberships []Membership) Profile {
	if memberships == nil {
		memberships = []Membership{}
	}
	return Profile{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		FullName:      u.FullName(),
		Role:          u.Role,
		Permissions:   rbac.Resolve(u.Role, u.Permissions).Strings(),
		PhoneNumber:   u.PhoneNumber,
		IsActive:      u.IsActive,
		LastLogin:     u.LastLogin,
		Organizations: memberships,
	}
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID      uuid.UUID
	Email       string
	FirstName   string
	LastName    string
	Role        rbac.Role
	Permissions rbac.PermissionSet
}

// NewPrincipal builds a principal from a loaded user
func NewPrincipal(u *User) *Principal {
	return &Principal{
		UserID:      u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Role:        u.Role,
		Permissions: rbac.Resolve(u.Role, u.Permissions),
	}
}

// Can reports whether the principal's system role grants perm
func (p *Principal) Can(perm rbac.Permission) bool {
	return p != nil && p.Permissions.Has(perm)
}

// FullName joins first and last name
func (p *Principal) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// PrincipalFromContext returns the principal stored by the auth middleware
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextkeys.AuthKey).(*Principal)
	return p, ok && p != nil
}

// ClaimsFromContext returns the verified access token claims
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(contextkeys.AccessTokenKey).(*Claims)
	return c, ok && c != nil
}

// LoginResponse is the body returned by a successful login
type LoginResponse struct {
	AccessToken          string     `json:"access_token"`
	TokenType            string     `json:"token_type"`
	ExpiresIn            int        `json:"expires_in"`
	ActiveOrganizationID *uuid.UUID `json:"active_organization_id"`
	User                 Profile    `json:"user"`
}

// TokenResponse is the body returned by a refresh
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// LoginResult carries the response body and the refresh cookie value
type LoginResult struct {
	Response         LoginResponse
	RefreshToken     string
	RefreshExpiresAt time.Time
}
