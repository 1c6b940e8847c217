package boq

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/projects"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

const (
	denyView = "you do not have permission to view BOQ data in this project"
	denyEdit = "you do not have permission to manage BOQ for this project"
)

// Service manages bills of quantities
type Service struct {
	db     *sql.DB
	access *projects.Access
}

// NewService creates the BOQ service
func NewService(db *sql.DB, access *projects.Access) *Service {
	return &Service{db: db, access: access}
}

const headerColumns = `h.id, h.organization_id, h.project_id, h.title, h.start_date, h.end_date, h.currency,
	h.created_at, h.updated_at`

const itemColumns = `i.id, i.header_id, i.organization_id, i.project_id, i.parent_item_id, i.item_code,
	i.description, i.unit, i.quantity, i.rate, i.budget_cost, i.weight_out_of_10, i.percent_complete,
	i.actual_cost, i.created_at, i.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHeader(row rowScanner) (*Header, error) {
	var h Header
	err := row.Scan(&h.ID, &h.OrganizationID, &h.ProjectID, &h.Title, &h.StartDate, &h.EndDate, &h.Currency,
		&h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanItem(row rowScanner) (*Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.HeaderID, &it.OrganizationID, &it.ProjectID, &it.ParentItemID, &it.ItemCode,
		&it.Description, &it.Unit, &it.Quantity, &it.Rate, &it.BudgetCost, &it.WeightOutOf10, &it.PercentComplete,
		&it.ActualCost, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.Variance = Variance(it.BudgetCost, it.ActualCost)
	it.Children = []*Item{}
	return &it, nil
}

func selectHeader(ctx context.Context, q postgres.Querier, orgID, projectID uuid.UUID) (*Header, error) {
	scope := tenancy.ForProject("h", orgID, projectID)
	return scanHeader(q.QueryRowContext(ctx, `SELECT `+headerColumns+` FROM boq_headers h `+scope.Where(), scope.Args()...))
}

// ensureHeader returns the project's header, creating the default one on
// first access
func (s *Service) ensureHeader(ctx context.Context, orgID, projectID uuid.UUID) (*Header, error) {
	h, err := selectHeader(ctx, s.db, orgID, projectID)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get BOQ header: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO boq_headers (organization_id, project_id, title, currency)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id) WHERE is_deleted = false DO NOTHING`,
		orgID, projectID, defaultTitle, defaultCurrency); err != nil {
		return nil, postgres.MapError(err, "create BOQ header")
	}
	h, err = selectHeader(ctx, s.db, orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get BOQ header: %w", err)
	}
	return h, nil
}

func (s *Service) listItems(ctx context.Context, q postgres.Querier, h *Header) ([]*Item, error) {
	scope := tenancy.ForProject("i", h.OrganizationID, h.ProjectID).And("i.header_id = ?", h.ID)
	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM boq_items i `+scope.Where()+`
		ORDER BY i.item_code NULLS LAST, i.created_at`, scope.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list BOQ items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan BOQ item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate BOQ items: %w", err)
	}
	return items, nil
}

func (s *Service) getItem(ctx context.Context, q postgres.Querier, h *Header, itemID uuid.UUID) (*Item, error) {
	scope := tenancy.ForProject("i", h.OrganizationID, h.ProjectID).And("i.header_id = ?", h.ID).And("i.id = ?", itemID)
	it, err := scanItem(q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM boq_items i `+scope.Where(), scope.Args()...))
	if err != nil {
		return nil, postgres.NotFoundOr(err, "BOQ item", "get BOQ item")
	}
	return it, nil
}

// Get returns the header, its item tree and the summary
func (s *Service) Get(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID) (*BOQ, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanViewProject, denyView); err != nil {
		return nil, err
	}
	h, err := s.ensureHeader(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	items, err := s.listItems(ctx, s.db, h)
	if err != nil {
		return nil, err
	}
	summary := Summarize(h, items)
	return &BOQ{Header: h, Items: Tree(items), Summary: summary}, nil
}

// Summary returns the totals and weighted completion of the project's BOQ
func (s *Service) Summary(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID) (*Summary, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanViewProject, denyView); err != nil {
		return nil, err
	}
	h, err := s.ensureHeader(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	items, err := s.listItems(ctx, s.db, h)
	if err != nil {
		return nil, err
	}
	summary := Summarize(h, items)
	return &summary, nil
}

// UpdateHeader changes the header's title, dates or currency
func (s *Service) UpdateHeader(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, req HeaderRequest) (*Header, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanEditTasks, denyEdit); err != nil {
		return nil, err
	}
	h, err := s.ensureHeader(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, apperrors.Validation("title is required")
		}
		h.Title = title
	}
	if req.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*req.Currency))
		if len(currency) != 3 {
			return nil, apperrors.Validation("currency must be a 3-letter code")
		}
		h.Currency = currency
	}
	if req.StartDate != nil {
		h.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		h.EndDate = req.EndDate
	}
	if h.StartDate != nil && h.EndDate != nil && h.EndDate.Before(*h.StartDate) {
		return nil, apperrors.BadRequest("end_date must not be before start_date")
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE boq_headers SET title = $2, start_date = $3, end_date = $4, currency = $5, updated_at = now()
		WHERE id = $1`,
		h.ID, h.Title, h.StartDate, h.EndDate, h.Currency); err != nil {
		return nil, postgres.MapError(err, "update BOQ header")
	}
	return selectHeader(ctx, s.db, orgID, projectID)
}

// validateParent requires parentID to be another live item of the header
// whose ancestor chain does not pass through itemID
func (s *Service) validateParent(ctx context.Context, q postgres.Querier, h *Header, itemID, parentID uuid.UUID) error {
	if parentID == itemID {
		return apperrors.BadRequest("an item cannot be its own parent")
	}
	var exists, cycle bool
	err := q.QueryRowContext(ctx, `
		WITH RECURSIVE ancestors AS (
			SELECT id, parent_item_id FROM boq_items
			WHERE id = $1 AND header_id = $2 AND is_deleted = false
			UNION
			SELECT p.id, p.parent_item_id FROM boq_items p JOIN ancestors a ON p.id = a.parent_item_id
			WHERE p.header_id = $2 AND p.is_deleted = false
		)
		SELECT EXISTS (SELECT 1 FROM ancestors WHERE id = $1),
		       EXISTS (SELECT 1 FROM ancestors WHERE id = $3)`,
		parentID, h.ID, itemID).Scan(&exists, &cycle)
	if err != nil {
		return fmt.Errorf("failed to check parent item: %w", err)
	}
	if !exists {
		return apperrors.BadRequest("parent item not found in this BOQ")
	}
	if cycle {
		return apperrors.BadRequest("parent item cannot be a descendant of the item")
	}
	return nil
}

func nonNegative(field string, v *decimal.Decimal) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	if v.IsNegative() {
		return decimal.Zero, apperrors.Validation(field + " must not be negative")
	}
	return *v, nil
}

// apply copies the set fields of req onto it and recomputes derived values
func apply(it *Item, req ItemRequest) error {
	var err error
	if req.ItemCode != nil {
		it.ItemCode = req.ItemCode
	}
	if req.Description != nil {
		it.Description = strings.TrimSpace(*req.Description)
	}
	if it.Description == "" {
		return apperrors.Validation("description is required")
	}
	if req.Unit != nil {
		it.Unit = req.Unit
	}
	if req.Quantity != nil {
		if it.Quantity, err = nonNegative("quantity", req.Quantity); err != nil {
			return err
		}
	}
	if req.Rate != nil {
		if it.Rate, err = nonNegative("rate", req.Rate); err != nil {
			return err
		}
	}
	if req.ActualCost != nil {
		if it.ActualCost, err = nonNegative("actual_cost", req.ActualCost); err != nil {
			return err
		}
	}
	if req.WeightOutOf10 != nil {
		it.WeightOutOf10 = ClampWeight(req.WeightOutOf10)
	}
	if req.PercentComplete != nil {
		it.PercentComplete = ClampPercent(req.PercentComplete)
	}
	if req.ParentItemID != nil {
		it.ParentItemID = req.ParentItemID
	}
	it.BudgetCost = BudgetCost(it.Quantity, it.Rate)
	it.Variance = Variance(it.BudgetCost, it.ActualCost)
	return nil
}

// CreateItem adds a line item, creating the header if needed
func (s *Service) CreateItem(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, req ItemRequest) (*Item, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanEditTasks, denyEdit); err != nil {
		return nil, err
	}
	h, err := s.ensureHeader(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}

	it := &Item{
		HeaderID:        h.ID,
		OrganizationID:  orgID,
		ProjectID:       projectID,
		WeightOutOf10:   ClampWeight(req.WeightOutOf10),
		PercentComplete: ClampPercent(req.PercentComplete),
	}
	if err := apply(it, req); err != nil {
		return nil, err
	}
	if it.ParentItemID != nil {
		if err := s.validateParent(ctx, s.db, h, uuid.Nil, *it.ParentItemID); err != nil {
			return nil, err
		}
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO boq_items (header_id, organization_id, project_id, parent_item_id, item_code, description, unit,
		                       quantity, rate, budget_cost, weight_out_of_10, percent_complete, actual_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`,
		h.ID, orgID, projectID, it.ParentItemID, it.ItemCode, it.Description, it.Unit,
		it.Quantity, it.Rate, it.BudgetCost, it.WeightOutOf10, it.PercentComplete, it.ActualCost).Scan(&id)
	if err != nil {
		return nil, postgres.MapError(err, "create BOQ item")
	}
	return s.getItem(ctx, s.db, h, id)
}

// UpdateItem changes the set fields of a line item
func (s *Service) UpdateItem(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, itemID uuid.UUID, req ItemRequest) (*Item, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanEditTasks, denyEdit); err != nil {
		return nil, err
	}
	h, err := s.ensureHeader(ctx, orgID, projectID)
	if err != nil {
		return nil, err
	}
	it, err := s.getItem(ctx, s.db, h, itemID)
	if err != nil {
		return nil, err
	}
	if err := apply(it, req); err != nil {
		return nil, err
	}

	err = postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if req.ParentItemID != nil {
			// moves within a header are serialized so two of them cannot close a cycle
			if _, err := tx.ExecContext(ctx, `SELECT id FROM boq_headers WHERE id = $1 FOR UPDATE`, h.ID); err != nil {
				return fmt.Errorf("failed to lock BOQ header: %w", err)
			}
			if err := s.validateParent(ctx, tx, h, itemID, *req.ParentItemID); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE boq_items
			SET parent_item_id = $3, item_code = $4, description = $5, unit = $6, quantity = $7, rate = $8,
			    budget_cost = $9, weight_out_of_10 = $10, percent_complete = $11, actual_cost = $12, updated_at = now()
			WHERE id = $1 AND header_id = $2 AND is_deleted = false`,
			itemID, h.ID, it.ParentItemID, it.ItemCode, it.Description, it.Unit, it.Quantity, it.Rate,
			it.BudgetCost, it.WeightOutOf10, it.PercentComplete, it.ActualCost)
		if err != nil {
			return postgres.MapError(err, "update BOQ item")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperrors.NotFound("BOQ item")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.getItem(ctx, s.db, h, itemID)
}

// DeleteItem soft-deletes an item together with all of its descendants
func (s *Service) DeleteItem(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, itemID uuid.UUID) error {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanEditTasks, denyEdit); err != nil {
		return err
	}
	h, err := s.ensureHeader(ctx, orgID, projectID)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		WITH RECURSIVE doomed AS (
			SELECT id FROM boq_items WHERE id = $1 AND header_id = $2 AND is_deleted = false
			UNION
			SELECT c.id FROM boq_items c JOIN doomed d ON c.parent_item_id = d.id
			WHERE c.is_deleted = false
		)
		UPDATE boq_items SET is_deleted = true, deleted_at = now(), updated_at = now()
		WHERE id IN (SELECT id FROM doomed)`,
		itemID, h.ID)
	if err != nil {
		return fmt.Errorf("failed to delete BOQ item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("BOQ item")
	}
	return nil
}
