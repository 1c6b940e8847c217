package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Service manages organizations and memberships
type Service struct {
	db *sql.DB
}

// NewService creates the organization service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateRequest is the body of POST /organizations
type CreateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// UpdateRequest is the body of PUT /organizations/{id}; nil fields are left
// unchanged
type UpdateRequest struct {
	Name             *string `json:"name"`
	SubscriptionTier *string `json:"subscription_tier"`
	MaxProjects      *int    `json:"max_projects"`
	MaxUsers         *int    `json:"max_users"`
	LogoURL          *string `json:"logo_url"`
	IsActive         *bool   `json:"is_active"`
}

// ListResponse is the body of GET /organizations
type ListResponse struct {
	Items []*Organization `json:"items"`
	Total int             `json:"total"`
}

const memberCountColumn = `(SELECT COUNT(*) FROM organization_members c
	WHERE c.organization_id = o.id AND c.status = 'Active') AS member_count`

func scanOrgWithCount(row rowScanner) (*Organization, error) {
	var (
		o     Organization
		logo  sql.NullString
		count int
	)
	if err := row.Scan(append(orgFields(&o, &logo), &count)...); err != nil {
		return nil, err
	}
	finishOrg(&o, logo)
	o.MemberCount = &count
	return &o, nil
}

// List returns the organizations in which userID holds an Active membership
func (s *Service) List(ctx context.Context, userID uuid.UUID) (*ListResponse, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+orgColumns+`, `+memberCountColumn+`
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1
		  AND m.status = 'Active'
		  AND o.is_active = true
		  AND o.is_deleted = false
		ORDER BY o.name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	items := []*Organization{}
	for rows.Next() {
		org, err := scanOrgWithCount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		items = append(items, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate organizations: %w", err)
	}
	return &ListResponse{Items: items, Total: len(items)}, nil
}

// Create creates an organization with the creator as its Active Org_Admin
func (s *Service) Create(ctx context.Context, creatorID uuid.UUID, req CreateRequest) (*Organization, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperrors.Validation("name is required")
	}
	if req.Slug == "" {
		req.Slug = generateSlug(req.Name)
	}
	req.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	if !slugPattern.MatchString(req.Slug) {
		return nil, apperrors.Validation("slug may contain only lowercase letters, digits and hyphens")
	}

	var org *Organization
	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO organizations AS o (name, slug)
			VALUES ($1, $2)
			RETURNING `+orgColumns, req.Name, req.Slug)
		created, err := scanOrg(row)
		if err != nil {
			mapped := postgres.MapError(err, "create organization")
			if apperrors.IsKind(mapped, apperrors.KindConflict) {
				return apperrors.Conflict("organization slug already in use")
			}
			return mapped
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO organization_members (organization_id, user_id, org_role, status)
			VALUES ($1, $2, 'Org_Admin', 'Active')`, created.ID, creatorID)
		if err != nil {
			return postgres.MapError(err, "add organization admin")
		}
		org = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	one := 1
	org.MemberCount = &one
	return org, nil
}

func (s *Service) getWithCount(ctx context.Context, orgID uuid.UUID) (*Organization, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orgColumns+`, `+memberCountColumn+`
		FROM organizations o
		WHERE o.id = $1 AND o.is_deleted = false`, orgID)
	org, err := scanOrgWithCount(row)
	if err != nil {
		return nil, postgres.NotFoundOr(err, "organization", "get organization")
	}
	return org, nil
}

// Get returns an organization the caller is an Active member of
func (s *Service) Get(ctx context.Context, userID, orgID uuid.UUID) (*Organization, error) {
	if _, err := requireActiveMembership(ctx, s.db, orgID, userID, "not a member of this organization"); err != nil {
		return nil, err
	}
	return s.getWithCount(ctx, orgID)
}

// Update changes organization settings; requires Org_Admin
func (s *Service) Update(ctx context.Context, userID, orgID uuid.UUID, req UpdateRequest) (*Organization, error) {
	if err := s.requireAdmin(ctx, orgID, userID, "only org admins can update organization"); err != nil {
		return nil, err
	}
	org, err := s.getWithCount(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperrors.Validation("name may not be empty")
		}
		org.Name = name
	}
	if req.SubscriptionTier != nil {
		tier, err := ParseSubscriptionTier(*req.SubscriptionTier)
		if err != nil {
			return nil, err
		}
		org.SubscriptionTier = tier
	}
	if req.MaxProjects != nil {
		if *req.MaxProjects < 0 {
			return nil, apperrors.Validation("max_projects must be non-negative")
		}
		org.MaxProjects = *req.MaxProjects
	}
	if req.MaxUsers != nil {
		if *req.MaxUsers < 0 {
			return nil, apperrors.Validation("max_users must be non-negative")
		}
		org.MaxUsers = *req.MaxUsers
	}
	if req.LogoURL != nil {
		org.LogoURL = req.LogoURL
	}
	if req.IsActive != nil {
		org.IsActive = *req.IsActive
	}

	err = s.db.QueryRowContext(ctx, `
		UPDATE organizations
		SET name = $2, subscription_tier = $3, max_projects = $4, max_users = $5,
		    logo_url = $6, is_active = $7, updated_at = now()
		WHERE id = $1 AND is_deleted = false
		RETURNING updated_at`,
		org.ID, org.Name, string(org.SubscriptionTier), org.MaxProjects, org.MaxUsers,
		org.LogoURL, org.IsActive).Scan(&org.UpdatedAt)
	if err != nil {
		return nil, postgres.NotFoundOr(err, "organization", "update organization")
	}
	return org, nil
}

// IsOrgAdmin reports whether userID is an Active Org_Admin of orgID
func (s *Service) IsOrgAdmin(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	return IsOrgAdmin(ctx, s.db, orgID, userID)
}

func (s *Service) requireAdmin(ctx context.Context, orgID, userID uuid.UUID, message string) error {
	ok, err := IsOrgAdmin(ctx, s.db, orgID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Forbidden(message)
	}
	return nil
}

// generateSlug derives a URL slug from an organization name
func generateSlug(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	return strings.Trim(slug, "-")
}
