package orgs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
)

const orgColumns = `o.id, o.name, o.slug, o.subscription_tier, o.max_projects, o.max_users,
	o.logo_url, o.is_active, o.created_at, o.updated_at`

const memberColumns = `m.id, m.organization_id, m.user_id, m.org_role, m.status, m.invited_by,
	m.created_at, m.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func orgFields(o *Organization, logo *sql.NullString) []interface{} {
	return []interface{}{
		&o.ID, &o.Name, &o.Slug, &o.SubscriptionTier, &o.MaxProjects, &o.MaxUsers,
		logo, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
	}
}

func memberFields(m *Member, invitedBy *uuid.NullUUID) []interface{} {
	return []interface{}{
		&m.ID, &m.OrganizationID, &m.UserID, &m.OrgRole, &m.Status, invitedBy,
		&m.CreatedAt, &m.UpdatedAt,
	}
}

func finishOrg(o *Organization, logo sql.NullString) {
	if logo.Valid {
		o.LogoURL = &logo.String
	}
}

func finishMember(m *Member, invitedBy uuid.NullUUID) {
	if invitedBy.Valid {
		id := invitedBy.UUID
		m.InvitedBy = &id
	}
}

func scanOrg(row rowScanner) (*Organization, error) {
	var (
		o    Organization
		logo sql.NullString
	)
	if err := row.Scan(orgFields(&o, &logo)...); err != nil {
		return nil, err
	}
	finishOrg(&o, logo)
	return &o, nil
}

func scanMember(row rowScanner) (*Member, error) {
	var (
		m         Member
		invitedBy uuid.NullUUID
	)
	if err := row.Scan(memberFields(&m, &invitedBy)...); err != nil {
		return nil, err
	}
	finishMember(&m, invitedBy)
	return &m, nil
}

// getLiveOrg returns an active, non-deleted organization
func getLiveOrg(ctx context.Context, q postgres.Querier, orgID uuid.UUID) (*Organization, error) {
	row := q.QueryRowContext(ctx, `SELECT `+orgColumns+`
		FROM organizations o
		WHERE o.id = $1 AND o.is_active = true AND o.is_deleted = false`, orgID)
	org, err := scanOrg(row)
	if err != nil {
		return nil, postgres.NotFoundOr(err, "organization", "get organization")
	}
	return org, nil
}

// getMembership returns the (org, user) membership or nil when absent
func getMembership(ctx context.Context, q postgres.Querier, orgID, userID uuid.UUID) (*Member, error) {
	row := q.QueryRowContext(ctx, `SELECT `+memberColumns+`
		FROM organization_members m
		WHERE m.organization_id = $1 AND m.user_id = $2`, orgID, userID)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// requireActiveMembership returns the caller's Active membership or a
// Forbidden error carrying message
func requireActiveMembership(ctx context.Context, q postgres.Querier, orgID, userID uuid.UUID, message string) (*Member, error) {
	m, err := getMembership(ctx, q, orgID, userID)
	if err != nil {
		return nil, err
	}
	if m == nil || m.Status != MembershipActive {
		return nil, apperrors.Forbidden(message)
	}
	return m, nil
}

func countActiveMembers(ctx context.Context, q postgres.Querier, orgID uuid.UUID) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM organization_members
		WHERE organization_id = $1 AND status = 'Active'`, orgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return n, nil
}

// IsActiveMember reports whether userID is an active user holding an Active
// membership in orgID
func IsActiveMember(ctx context.Context, q postgres.Querier, orgID, userID uuid.UUID) (bool, error) {
	var ok bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM organization_members m
			JOIN users u ON u.id = m.user_id
			WHERE m.organization_id = $1 AND m.user_id = $2 AND m.status = 'Active'
			  AND u.is_active = true AND u.is_deleted = false
		)`, orgID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return ok, nil
}

// RequireActiveMember returns BadRequest unless userID is an Active member
// of orgID. field names the offending input.
func RequireActiveMember(ctx context.Context, q postgres.Querier, orgID, userID uuid.UUID, field string) error {
	ok, err := IsActiveMember(ctx, q, orgID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.BadRequest(field + " must be an active member of this organization")
	}
	return nil
}

// IsOrgAdmin reports whether userID is an Active Org_Admin of orgID
func IsOrgAdmin(ctx context.Context, q postgres.Querier, orgID, userID uuid.UUID) (bool, error) {
	m, err := getMembership(ctx, q, orgID, userID)
	if err != nil {
		return false, err
	}
	return m.IsActiveAdmin(), nil
}
