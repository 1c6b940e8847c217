package expenses

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/notifications"
	"github.com/platinummonkey/buildpro/pkg/observability"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/pagination"
	"github.com/platinummonkey/buildpro/pkg/projects"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

// Service manages expenses
type Service struct {
	db       *sql.DB
	access   *projects.Access
	notifier *notifications.Notifier
	metrics  *observability.Metrics
}

// NewService creates the expense service
func NewService(db *sql.DB, access *projects.Access, notifier *notifications.Notifier, metrics *observability.Metrics) *Service {
	if metrics == nil {
		metrics = observability.NewNopMetrics()
	}
	return &Service{db: db, access: access, notifier: notifier, metrics: metrics}
}

const expenseColumns = `e.id, e.organization_id, e.project_id, e.description, e.category, e.amount, e.vendor,
	e.expense_date, e.status,
	e.submitted_by_id, NULLIF(TRIM(CONCAT(su.first_name, ' ', su.last_name)), '') AS submitted_by_name,
	e.approved_by_id, NULLIF(TRIM(CONCAT(au.first_name, ' ', au.last_name)), '') AS approved_by_name,
	e.receipt_document_id, e.notes, e.created_at, e.updated_at`

const expenseFrom = `FROM expenses e
	LEFT JOIN users su ON su.id = e.submitted_by_id
	LEFT JOIN users au ON au.id = e.approved_by_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(row rowScanner) (*Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.OrganizationID, &e.ProjectID, &e.Description, &e.Category, &e.Amount, &e.Vendor,
		&e.ExpenseDate, &e.Status,
		&e.SubmittedByID, &e.SubmittedByName,
		&e.ApprovedByID, &e.ApprovedByName,
		&e.ReceiptDocumentID, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func getExpense(ctx context.Context, q postgres.Querier, orgID, projectID, expenseID uuid.UUID) (*Expense, error) {
	scope := tenancy.ForProject("e", orgID, projectID).And("e.id = ?", expenseID)
	e, err := scanExpense(q.QueryRowContext(ctx, `SELECT `+expenseColumns+` `+expenseFrom+` `+scope.Where(), scope.Args()...))
	if err != nil {
		return nil, postgres.NotFoundOr(err, "expense", "get expense")
	}
	return e, nil
}

// validateReceipt requires documentID, when set, to be a live document of
// the same organization and project
func validateReceipt(ctx context.Context, q postgres.Querier, orgID, projectID uuid.UUID, documentID *uuid.UUID) error {
	if documentID == nil {
		return nil
	}
	var ok bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM documents
			WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false
		)`, *documentID, orgID, projectID).Scan(&ok)
	if err != nil {
		return fmt.Errorf("failed to check receipt document: %w", err)
	}
	if !ok {
		return apperrors.BadRequest("receipt_document_id must reference an existing document in this organization and project")
	}
	return nil
}

// List returns a page of a project's expenses, newest expense date first
func (s *Service) List(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, f ListFilter) (pagination.Result[*Expense], error) {
	var empty pagination.Result[*Expense]
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanViewProject,
		"you do not have permission to view expenses in this project"); err != nil {
		return empty, err
	}

	scope := tenancy.ForProject("e", orgID, projectID)
	if f.Status != nil {
		scope.And("e.status = ?", string(*f.Status))
	}
	if f.Category != "" {
		scope.And("e.category = ?", f.Category)
	}
	if f.FromDate != nil {
		scope.And("e.expense_date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		scope.And("e.expense_date <= ?", *f.ToDate)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses e `+scope.Where(), scope.Args()...).Scan(&total); err != nil {
		return empty, fmt.Errorf("failed to count expenses: %w", err)
	}

	where := scope.Where()
	page := scope.Page(f.Page.Limit(), f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, `SELECT `+expenseColumns+` `+expenseFrom+` `+where+`
		ORDER BY e.expense_date DESC, e.created_at DESC `+page, scope.Args()...)
	if err != nil {
		return empty, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var items []*Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return empty, fmt.Errorf("failed to scan expense: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	return pagination.NewResult(items, total, f.Page), nil
}

// Get returns one expense
func (s *Service) Get(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, expenseID uuid.UUID) (*Expense, error) {
	if _, err := s.access.Authorize(ctx, oc.OrgID(), projectID, principal.UserID, projects.CanViewProject,
		"you do not have permission to view expenses in this project"); err != nil {
		return nil, err
	}
	return getExpense(ctx, s.db, oc.OrgID(), projectID, expenseID)
}

// Create logs a Pending expense submitted by the caller
func (s *Service) Create(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, req CreateRequest) (*Expense, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanManageExpenses,
		"you do not have permission to log expenses in this project"); err != nil {
		return nil, err
	}

	description, err := validateDescription(req.Description)
	if err != nil {
		return nil, err
	}
	category, err := validateCategory(req.Category)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.ExpenseDate.IsZero() {
		return nil, apperrors.Validation("expense_date is required")
	}
	if err := validateReceipt(ctx, s.db, orgID, projectID, req.ReceiptDocumentID); err != nil {
		return nil, err
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO expenses (organization_id, project_id, description, category, amount, vendor,
		                      expense_date, status, submitted_by_id, receipt_document_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'Pending', $8, $9, $10)
		RETURNING id`,
		orgID, projectID, description, category, req.Amount, req.Vendor,
		req.ExpenseDate, principal.UserID, req.ReceiptDocumentID, req.Notes).Scan(&id)
	if err != nil {
		return nil, postgres.MapError(err, "create expense")
	}
	return getExpense(ctx, s.db, orgID, projectID, id)
}

// Update edits a Pending expense
func (s *Service) Update(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, expenseID uuid.UUID, req UpdateRequest) (*Expense, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanManageExpenses,
		"you do not have permission to update expenses in this project"); err != nil {
		return nil, err
	}
	e, err := getExpense(ctx, s.db, orgID, projectID, expenseID)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusPending {
		return nil, apperrors.BadRequest("can only update pending expenses")
	}

	if req.Description != nil {
		if e.Description, err = validateDescription(*req.Description); err != nil {
			return nil, err
		}
	}
	if req.Category != nil {
		if e.Category, err = validateCategory(*req.Category); err != nil {
			return nil, err
		}
	}
	if req.Amount != nil {
		if err := validateAmount(*req.Amount); err != nil {
			return nil, err
		}
		e.Amount = *req.Amount
	}
	if req.Vendor != nil {
		e.Vendor = req.Vendor
	}
	if req.ExpenseDate != nil {
		e.ExpenseDate = *req.ExpenseDate
	}
	if req.Notes != nil {
		e.Notes = req.Notes
	}
	if req.ReceiptDocumentID != nil {
		if err := validateReceipt(ctx, s.db, orgID, projectID, req.ReceiptDocumentID); err != nil {
			return nil, err
		}
		e.ReceiptDocumentID = req.ReceiptDocumentID
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE expenses
		SET description = $4, category = $5, amount = $6, vendor = $7, expense_date = $8,
		    receipt_document_id = $9, notes = $10, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false
		  AND status = 'Pending'`,
		expenseID, orgID, projectID, e.Description, e.Category, e.Amount, e.Vendor, e.ExpenseDate,
		e.ReceiptDocumentID, e.Notes)
	if err != nil {
		return nil, postgres.MapError(err, "update expense")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperrors.BadRequest("can only update pending expenses")
	}
	return getExpense(ctx, s.db, orgID, projectID, expenseID)
}

// Approve moves a Pending expense to Approved, optionally appending notes,
// and notifies the submitter
func (s *Service) Approve(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, expenseID uuid.UUID, req DecisionRequest) (*Expense, error) {
	return s.transition(ctx, principal, oc, projectID, expenseID, StatusApproved, func(e *Expense) {
		if req.Notes != "" {
			e.Notes = appendNote(e.Notes, "Approval notes", req.Notes)
		}
	})
}

// Reject moves a Pending expense to Rejected with a required reason and
// notifies the submitter
func (s *Service) Reject(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, expenseID uuid.UUID, req DecisionRequest) (*Expense, error) {
	if req.Notes == "" {
		return nil, apperrors.Validation("a rejection reason is required")
	}
	return s.transition(ctx, principal, oc, projectID, expenseID, StatusRejected, func(e *Expense) {
		e.Notes = appendNote(e.Notes, "Rejection reason", req.Notes)
	})
}

// MarkPaid moves an Approved expense to Paid
func (s *Service) MarkPaid(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, expenseID uuid.UUID, req DecisionRequest) (*Expense, error) {
	return s.transition(ctx, principal, oc, projectID, expenseID, StatusPaid, func(e *Expense) {
		if req.Notes != "" {
			e.Notes = appendNote(e.Notes, "Payment notes", req.Notes)
		}
	})
}

type decision struct {
	from Status
	verb string
}

var decisions = map[Status]decision{
	StatusApproved: {StatusPending, "approve"},
	StatusRejected: {StatusPending, "reject"},
	StatusPaid:     {StatusApproved, "pay"},
}

func (s *Service) transition(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, expenseID uuid.UUID, to Status, apply func(*Expense)) (*Expense, error) {
	orgID := oc.OrgID()
	d := decisions[to]
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanApproveExpenses,
		fmt.Sprintf("you do not have permission to %s expenses in this project", d.verb)); err != nil {
		return nil, err
	}
	precondition := apperrors.BadRequest(fmt.Sprintf("can only %s %s expenses", d.verb, strings.ToLower(string(d.from))))

	err := postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		e, err := getExpense(ctx, tx, orgID, projectID, expenseID)
		if err != nil {
			return err
		}
		if !e.Status.CanTransition(to) {
			return precondition
		}
		apply(e)

		approver := e.ApprovedByID
		if to != StatusPaid {
			approver = &principal.UserID
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE expenses
			SET status = $4, approved_by_id = $5, notes = $6, updated_at = now()
			WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false
			  AND status = $7`,
			expenseID, orgID, projectID, string(to), approver, e.Notes, string(d.from))
		if err != nil {
			return postgres.MapError(err, d.verb+" expense")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return precondition
		}

		if to == StatusPaid || e.SubmittedByID == nil || *e.SubmittedByID == principal.UserID {
			return nil
		}
		return s.notifier.Notify(ctx, tx, decisionDraft(orgID, e, to))
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ExpenseTransitionsTotal.WithLabelValues(string(to)).Inc()
	return getExpense(ctx, s.db, orgID, projectID, expenseID)
}

func decisionDraft(orgID uuid.UUID, e *Expense, to Status) notifications.Draft {
	projectID := e.ProjectID
	d := notifications.Draft{
		OrganizationID: orgID,
		UserID:         *e.SubmittedByID,
		ProjectID:      &projectID,
		Data: map[string]interface{}{
			"expense_id": e.ID.String(),
			"project_id": e.ProjectID.String(),
		},
	}
	if to == StatusApproved {
		d.Type = notifications.TypeExpenseApproved
		d.Title = "Expense approved"
		d.Body = fmt.Sprintf("Expense '%s' was approved.", e.Description)
	} else {
		d.Type = notifications.TypeExpenseRejected
		d.Title = "Expense rejected"
		d.Body = fmt.Sprintf("Expense '%s' was rejected.", e.Description)
	}
	return d
}

// Delete soft-deletes an expense
func (s *Service) Delete(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, expenseID uuid.UUID) error {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanManageExpenses,
		"you do not have permission to delete expenses in this project"); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE expenses SET is_deleted = true, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false`,
		expenseID, orgID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("expense")
	}
	return nil
}
