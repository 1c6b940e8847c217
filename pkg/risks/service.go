package risks

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/dates"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/pagination"
	"github.com/platinummonkey/buildpro/pkg/projects"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

const (
	denyView   = "you do not have permission to view risks in this project"
	denyManage = "you do not have permission to manage risks in this project"
)

// Service manages risks
type Service struct {
	db     *sql.DB
	access *projects.Access
}

// NewService creates the risk service
func NewService(db *sql.DB, access *projects.Access) *Service {
	return &Service{db: db, access: access}
}

const riskColumns = `r.id, r.organization_id, r.project_id, r.description, r.category, r.probability, r.impact,
	r.risk_score, r.status, r.mitigation_plan,
	r.owner_id, NULLIF(TRIM(CONCAT(ou.first_name, ' ', ou.last_name)), '') AS owner_name,
	r.identified_date, r.review_date, r.created_at, r.updated_at`

const riskFrom = `FROM risks r LEFT JOIN users ou ON ou.id = r.owner_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRisk(row rowScanner) (*Risk, error) {
	var r Risk
	err := row.Scan(&r.ID, &r.OrganizationID, &r.ProjectID, &r.Description, &r.Category, &r.Probability, &r.Impact,
		&r.RiskScore, &r.Status, &r.MitigationPlan,
		&r.OwnerID, &r.OwnerName,
		&r.IdentifiedDate, &r.ReviewDate, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Service) getRisk(ctx context.Context, orgID, projectID, riskID uuid.UUID) (*Risk, error) {
	scope := tenancy.ForProject("r", orgID, projectID).And("r.id = ?", riskID)
	r, err := scanRisk(s.db.QueryRowContext(ctx, `SELECT `+riskColumns+` `+riskFrom+` `+scope.Where(), scope.Args()...))
	if err != nil {
		return nil, postgres.NotFoundOr(err, "risk", "get risk")
	}
	return r, nil
}

// List returns a page of a project's risks, highest score first
func (s *Service) List(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, f ListFilter) (pagination.Result[*Risk], error) {
	var empty pagination.Result[*Risk]
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanViewProject, denyView); err != nil {
		return empty, err
	}

	scope := tenancy.ForProject("r", orgID, projectID)
	if f.Status != nil {
		scope.And("r.status = ?", string(*f.Status))
	}
	if f.Category != "" {
		scope.And("r.category = ?", f.Category)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM risks r `+scope.Where(), scope.Args()...).Scan(&total); err != nil {
		return empty, fmt.Errorf("failed to count risks: %w", err)
	}

	where := scope.Where()
	page := scope.Page(f.Page.Limit(), f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, `SELECT `+riskColumns+` `+riskFrom+` `+where+`
		ORDER BY r.risk_score DESC, r.created_at ASC `+page, scope.Args()...)
	if err != nil {
		return empty, fmt.Errorf("failed to list risks: %w", err)
	}
	defer rows.Close()

	var items []*Risk
	for rows.Next() {
		r, err := scanRisk(rows)
		if err != nil {
			return empty, fmt.Errorf("failed to scan risk: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("failed to iterate risks: %w", err)
	}
	return pagination.NewResult(items, total, f.Page), nil
}

// Get returns one risk
func (s *Service) Get(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, riskID uuid.UUID) (*Risk, error) {
	if _, err := s.access.Authorize(ctx, oc.OrgID(), projectID, principal.UserID, projects.CanViewProject, denyView); err != nil {
		return nil, err
	}
	return s.getRisk(ctx, oc.OrgID(), projectID, riskID)
}

// Create records a risk; its score is derived from probability and impact
func (s *Service) Create(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, req CreateRequest) (*Risk, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanManageRisks, denyManage); err != nil {
		return nil, err
	}

	description, err := validateDescription(req.Description)
	if err != nil {
		return nil, err
	}
	probability, err := ParseLevel("probability", req.Probability)
	if err != nil {
		return nil, err
	}
	impact, err := ParseLevel("impact", req.Impact)
	if err != nil {
		return nil, err
	}
	status := StatusIdentified
	if req.Status != "" {
		if status, err = ParseStatus(req.Status); err != nil {
			return nil, err
		}
	}
	identified := dates.Today()
	if req.IdentifiedDate != nil {
		identified = *req.IdentifiedDate
	}
	if req.OwnerID != nil {
		if err := orgs.RequireActiveMember(ctx, s.db, orgID, *req.OwnerID, "owner"); err != nil {
			return nil, err
		}
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO risks (organization_id, project_id, description, category, probability, impact,
		                   risk_score, status, mitigation_plan, owner_id, identified_date, review_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		orgID, projectID, description, req.Category, string(probability), string(impact),
		Score(probability, impact), string(status), req.MitigationPlan, req.OwnerID,
		identified, req.ReviewDate).Scan(&id)
	if err != nil {
		return nil, postgres.MapError(err, "create risk")
	}
	return s.getRisk(ctx, orgID, projectID, id)
}

// Update changes risk fields and recomputes the score
func (s *Service) Update(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, riskID uuid.UUID, req UpdateRequest) (*Risk, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanManageRisks, denyManage); err != nil {
		return nil, err
	}
	if req.descriptionNull {
		return nil, apperrors.BadRequest("description cannot be null")
	}
	r, err := s.getRisk(ctx, orgID, projectID, riskID)
	if err != nil {
		return nil, err
	}

	if req.Description != nil {
		if r.Description, err = validateDescription(*req.Description); err != nil {
			return nil, err
		}
	}
	if req.Category != nil {
		r.Category = req.Category
	}
	if req.Probability != nil {
		if r.Probability, err = ParseLevel("probability", *req.Probability); err != nil {
			return nil, err
		}
	}
	if req.Impact != nil {
		if r.Impact, err = ParseLevel("impact", *req.Impact); err != nil {
			return nil, err
		}
	}
	if req.Status != nil {
		if r.Status, err = ParseStatus(*req.Status); err != nil {
			return nil, err
		}
	}
	if req.MitigationPlan != nil {
		r.MitigationPlan = req.MitigationPlan
	}
	if req.ReviewDate != nil {
		r.ReviewDate = req.ReviewDate
	}
	if req.OwnerID != nil {
		if err := orgs.RequireActiveMember(ctx, s.db, orgID, *req.OwnerID, "owner"); err != nil {
			return nil, err
		}
		r.OwnerID = req.OwnerID
	}
	r.RiskScore = Score(r.Probability, r.Impact)

	res, err := s.db.ExecContext(ctx, `
		UPDATE risks
		SET description = $4, category = $5, probability = $6, impact = $7, risk_score = $8,
		    status = $9, mitigation_plan = $10, owner_id = $11, review_date = $12, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false`,
		riskID, orgID, projectID, r.Description, r.Category, string(r.Probability), string(r.Impact),
		r.RiskScore, string(r.Status), r.MitigationPlan, r.OwnerID, r.ReviewDate)
	if err != nil {
		return nil, postgres.MapError(err, "update risk")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.NotFound("risk")
	}
	return s.getRisk(ctx, orgID, projectID, riskID)
}

// Delete soft-deletes a risk
func (s *Service) Delete(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, riskID uuid.UUID) error {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanManageRisks, denyManage); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE risks SET is_deleted = true, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false`,
		riskID, orgID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete risk: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("risk")
	}
	return nil
}
