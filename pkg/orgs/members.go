package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
)

// AddMemberRequest is the body of POST /organizations/{id}/members
type AddMemberRequest struct {
	Email   string `json:"email"`
	OrgRole string `json:"org_role"`
}

// UpdateMemberRequest is the body of PATCH /organizations/{id}/members/{user_id}
type UpdateMemberRequest struct {
	OrgRole *string `json:"org_role"`
	Status  *string `json:"status"`
}

// ListMembers returns the Active members of orgID; the caller must be an
// Active member
func (s *Service) ListMembers(ctx context.Context, userID, orgID uuid.UUID) ([]MemberDetail, error) {
	if _, err := requireActiveMembership(ctx, s.db, orgID, userID, "not a member of this organization"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.user_id, u.email, u.first_name, u.last_name, m.org_role, m.status, m.created_at
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1 AND m.status = 'Active' AND u.is_deleted = false
		ORDER BY m.created_at`, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []MemberDetail{}
	for rows.Next() {
		var d MemberDetail
		if err := rows.Scan(&d.UserID, &d.Email, &d.FirstName, &d.LastName, &d.OrgRole, &d.Status, &d.JoinedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// AddMember adds an existing user, looked up by email, as an Active member.
// Requires Org_Admin.
func (s *Service) AddMember(ctx context.Context, actorID, orgID uuid.UUID, req AddMemberRequest) (*Member, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" {
		return nil, apperrors.Validation("email is required")
	}
	role := OrgRoleMember
	if req.OrgRole != "" {
		parsed, err := ParseOrgRole(req.OrgRole)
		if err != nil {
			return nil, err
		}
		role = parsed
	}

	if err := s.requireAdmin(ctx, orgID, actorID, "only org admins can manage members"); err != nil {
		return nil, err
	}

	var member *Member
	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		org, err := getLiveOrg(ctx, tx, orgID)
		if err != nil {
			return err
		}

		var userID uuid.UUID
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM users
			WHERE lower(email) = lower($1) AND is_deleted = false`, email).Scan(&userID)
		if err != nil {
			return postgres.NotFoundOr(err, "user", "find user")
		}

		existing, err := getMembership(ctx, tx, orgID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperrors.Conflict("user is already a member of this organization")
		}

		if err := checkMemberQuota(ctx, tx, org); err != nil {
			return err
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO organization_members AS m (organization_id, user_id, org_role, status, invited_by)
			VALUES ($1, $2, $3, 'Active', $4)
			RETURNING `+memberColumns, orgID, userID, string(role), actorID)
		member, err = scanMember(row)
		if err != nil {
			return postgres.MapError(err, "add member")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}

// UpdateMember changes a member's role or status. Requires Org_Admin. The
// last Active Org_Admin cannot be demoted or deactivated.
func (s *Service) UpdateMember(ctx context.Context, actorID, orgID, userID uuid.UUID, req UpdateMemberRequest) (*Member, error) {
	if err := s.requireAdmin(ctx, orgID, actorID, "only org admins can manage members"); err != nil {
		return nil, err
	}

	var member *Member
	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := getMembership(ctx, tx, orgID, userID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperrors.NotFound("member")
		}

		wasAdmin := current.IsActiveAdmin()
		if req.OrgRole != nil {
			role, err := ParseOrgRole(*req.OrgRole)
			if err != nil {
				return err
			}
			current.OrgRole = role
		}
		if req.Status != nil {
			status, err := ParseMembershipStatus(*req.Status)
			if err != nil {
				return err
			}
			current.Status = status
		}

		if wasAdmin && !current.IsActiveAdmin() {
			var admins int
			err := tx.QueryRowContext(ctx, `
				SELECT COUNT(*) FROM organization_members
				WHERE organization_id = $1 AND org_role = 'Org_Admin' AND status = 'Active'`, orgID).Scan(&admins)
			if err != nil {
				return fmt.Errorf("failed to count admins: %w", err)
			}
			if admins <= 1 {
				return apperrors.BadRequest("organization must keep at least one active admin")
			}
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE organization_members AS m
			SET org_role = $3, status = $4, updated_at = now()
			WHERE m.organization_id = $1 AND m.user_id = $2
			RETURNING `+memberColumns, orgID, userID, string(current.OrgRole), string(current.Status))
		member, err = scanMember(row)
		if err != nil {
			return postgres.NotFoundOr(err, "member", "update member")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return member, nil
}
