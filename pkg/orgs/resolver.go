package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
)

// Resolver determines the effective organization of a request
type Resolver struct {
	db *sql.DB
}

// NewResolver creates an organization resolver
func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve picks the organization for userID. A non-empty selector names the
// organization explicitly; otherwise the single Active membership is used.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID, selector string) (*OrgContext, error) {
	selector = strings.TrimSpace(selector)
	if selector != "" {
		return r.resolveExplicit(ctx, userID, selector)
	}
	return r.resolveImplicit(ctx, userID)
}

func (r *Resolver) resolveExplicit(ctx context.Context, userID uuid.UUID, selector string) (*OrgContext, error) {
	orgID, err := uuid.Parse(selector)
	if err != nil {
		return nil, apperrors.BadRequest("invalid organization id")
	}

	membership, err := requireActiveMembership(ctx, r.db, orgID, userID, "not a member of this organization")
	if err != nil {
		return nil, err
	}

	org, err := getLiveOrg(ctx, r.db, orgID)
	if err != nil {
		return nil, err
	}
	return &OrgContext{Organization: org, Membership: membership}, nil
}

func (r *Resolver) resolveImplicit(ctx context.Context, userID uuid.UUID) (*OrgContext, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orgColumns+`, `+memberColumns+`
		FROM organization_members m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1
		  AND m.status = 'Active'
		  AND o.is_active = true
		  AND o.is_deleted = false
		ORDER BY m.created_at
		LIMIT 2`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active memberships: %w", err)
	}
	defer rows.Close()

	var found []*OrgContext
	for rows.Next() {
		var (
			org       Organization
			member    Member
			logo      sql.NullString
			invitedBy uuid.NullUUID
		)
		dest := append(orgFields(&org, &logo), memberFields(&member, &invitedBy)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		finishOrg(&org, logo)
		finishMember(&member, invitedBy)
		found = append(found, &OrgContext{Organization: &org, Membership: &member})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, apperrors.Forbidden("no active organization membership")
	case 1:
		return found[0], nil
	default:
		return nil, apperrors.BadRequest("multiple organizations; set X-Organization-ID")
	}
}
