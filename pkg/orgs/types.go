package orgs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/contextkeys"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

// OrgRole is a member's role within an organization
type OrgRole string

const (
	OrgRoleAdmin  OrgRole = "Org_Admin"
	OrgRoleMember OrgRole = "Member"
	OrgRoleViewer OrgRole = "Viewer"
)

// ParseOrgRole accepts the canonical names case-insensitively
func ParseOrgRole(s string) (OrgRole, error) {
	for _, r := range []OrgRole{OrgRoleAdmin, OrgRoleMember, OrgRoleViewer} {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", apperrors.BadRequest(fmt.Sprintf("invalid org_role %q", s))
}

// MembershipStatus is the lifecycle state of a membership
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "Active"
	MembershipInvited   MembershipStatus = "Invited"
	MembershipSuspended MembershipStatus = "Suspended"
)

// ParseMembershipStatus accepts the canonical names case-insensitively
func ParseMembershipStatus(s string) (MembershipStatus, error) {
	for _, st := range []MembershipStatus{MembershipActive, MembershipInvited, MembershipSuspended} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", apperrors.BadRequest(fmt.Sprintf("invalid membership status %q", s))
}

// SubscriptionTier is the organization's plan
type SubscriptionTier string

const (
	TierFree         SubscriptionTier = "free"
	TierStarter      SubscriptionTier = "starter"
	TierProfessional SubscriptionTier = "professional"
	TierEnterprise   SubscriptionTier = "enterprise"
)

// ParseSubscriptionTier accepts any casing
func ParseSubscriptionTier(s string) (SubscriptionTier, error) {
	switch t := SubscriptionTier(strings.ToLower(strings.TrimSpace(s))); t {
	case TierFree, TierStarter, TierProfessional, TierEnterprise:
		return t, nil
	}
	return "", apperrors.BadRequest("invalid subscription_tier")
}

// Organization is a tenant
type Organization struct {
	ID               uuid.UUID        `json:"id"`
	Name             string           `json:"name"`
	Slug             string           `json:"slug"`
	SubscriptionTier SubscriptionTier `json:"subscription_tier"`
	MaxProjects      int              `json:"max_projects"`
	MaxUsers         int              `json:"max_users"`
	LogoURL          *string          `json:"logo_url"`
	IsActive         bool             `json:"is_active"`
	MemberCount      *int             `json:"member_count,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	tenancy.SoftDelete
}

// Member is a user's membership in an organization
type Member struct {
	ID             uuid.UUID        `json:"id"`
	OrganizationID uuid.UUID        `json:"organization_id"`
	UserID         uuid.UUID        `json:"user_id"`
	OrgRole        OrgRole          `json:"org_role"`
	Status         MembershipStatus `json:"status"`
	InvitedBy      *uuid.UUID       `json:"invited_by,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IsActiveAdmin reports whether the membership is an Active Org_Admin
func (m *Member) IsActiveAdmin() bool {
	return m != nil && m.Status == MembershipActive && m.OrgRole == OrgRoleAdmin
}

// MemberDetail is a membership joined with the member's user record
type MemberDetail struct {
	UserID    uuid.UUID        `json:"user_id"`
	Email     string           `json:"email"`
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	OrgRole   OrgRole          `json:"org_role"`
	Status    MembershipStatus `json:"status"`
	JoinedAt  time.Time        `json:"joined_at"`
}

// OrgContext is the organization a request operates in together with the
// caller's membership
type OrgContext struct {
	Organization *Organization
	Membership   *Member
}

// OrgID returns the organization id
func (c *OrgContext) OrgID() uuid.UUID {
	return c.Organization.ID
}

// IsAdmin reports whether the caller is an Org_Admin of the organization
func (c *OrgContext) IsAdmin() bool {
	return c != nil && c.Membership.IsActiveAdmin()
}

// FromContext returns the OrgContext stored by the org middleware
func FromContext(ctx context.Context) (*OrgContext, bool) {
	oc, ok := ctx.Value(contextkeys.OrgKey).(*OrgContext)
	return oc, ok && oc != nil
}

// RequestScope returns the principal and organization of a tenant-scoped
// request
func RequestScope(ctx context.Context) (*auth.Principal, *OrgContext, error) {
	principal, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return nil, nil, apperrors.Authentication("authentication required")
	}
	oc, ok := FromContext(ctx)
	if !ok {
		return nil, nil, apperrors.BadRequest("organization context required")
	}
	return principal, oc, nil
}
