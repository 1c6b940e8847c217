package orgs

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
)

// QuotaExceeded builds the error returned when an organization limit is hit
func QuotaExceeded(resource string, limit int) error {
	return apperrors.BadRequest(fmt.Sprintf("organization %s limit reached (%d)", resource, limit))
}

// CheckProjectQuota fails when the organization already has max_projects
// live projects. A limit of zero disables the check.
func CheckProjectQuota(ctx context.Context, q postgres.Querier, orgID uuid.UUID) error {
	var limit, count int
	err := q.QueryRowContext(ctx, `
		SELECT o.max_projects,
		       (SELECT COUNT(*) FROM projects p WHERE p.organization_id = o.id AND p.is_deleted = false)
		FROM organizations o
		WHERE o.id = $1`, orgID).Scan(&limit, &count)
	if err != nil {
		return postgres.NotFoundOr(err, "organization", "check project quota")
	}
	if limit > 0 && count >= limit {
		return QuotaExceeded("project", limit)
	}
	return nil
}

// checkMemberQuota fails when the organization already has max_users Active
// members. A limit of zero disables the check.
func checkMemberQuota(ctx context.Context, q postgres.Querier, org *Organization) error {
	if org.MaxUsers <= 0 {
		return nil
	}
	count, err := countActiveMembers(ctx, q, org.ID)
	if err != nil {
		return err
	}
	if count >= org.MaxUsers {
		return QuotaExceeded("member", org.MaxUsers)
	}
	return nil
}
