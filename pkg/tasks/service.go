package tasks

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/notifications"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/pagination"
	"github.com/platinummonkey/buildpro/pkg/projects"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

const (
	denyView   = "you do not have permission to view tasks in this project"
	denyCreate = "you do not have permission to create tasks in this project"
	denyUpdate = "you do not have permission to update tasks in this project"
	denyDelete = "you do not have permission to delete tasks in this project"
)

// Service manages tasks
type Service struct {
	db       *sql.DB
	access   *projects.Access
	notifier *notifications.Notifier
}

// NewService creates the task service
func NewService(db *sql.DB, access *projects.Access, notifier *notifications.Notifier) *Service {
	return &Service{db: db, access: access, notifier: notifier}
}

const taskColumns = `t.id, t.organization_id, t.project_id, t.name, t.description, t.status, t.priority,
	t.assignee_id, NULLIF(TRIM(CONCAT(au.first_name, ' ', au.last_name)), '') AS assignee_name,
	t.reporter_id, NULLIF(TRIM(CONCAT(ru.first_name, ' ', ru.last_name)), '') AS reporter_name,
	t.start_date, t.due_date, t.estimated_hours, t.actual_hours, t.progress, t.dependencies,
	t.created_at, t.updated_at`

const taskFrom = `FROM tasks t
	LEFT JOIN users au ON au.id = t.assignee_id
	LEFT JOIN users ru ON ru.id = t.reporter_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*Task, error) {
	var (
		t    Task
		deps pq.StringArray
	)
	err := row.Scan(&t.ID, &t.OrganizationID, &t.ProjectID, &t.Name, &t.Description, &t.Status, &t.Priority,
		&t.AssigneeID, &t.AssigneeName, &t.ReporterID, &t.ReporterName,
		&t.StartDate, &t.DueDate, &t.EstimatedHours, &t.ActualHours, &t.Progress, &deps,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Dependencies = make([]uuid.UUID, 0, len(deps))
	for _, d := range deps {
		id, err := uuid.Parse(d)
		if err != nil {
			return nil, fmt.Errorf("invalid task dependency %q: %w", d, err)
		}
		t.Dependencies = append(t.Dependencies, id)
	}
	return &t, nil
}

func dependencyArray(ids []uuid.UUID) interface{} {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}

func (s *Service) getTask(ctx context.Context, q postgres.Querier, orgID, projectID, taskID uuid.UUID) (*Task, error) {
	scope := tenancy.ForProject("t", orgID, projectID).And("t.id = ?", taskID)
	t, err := scanTask(q.QueryRowContext(ctx, `SELECT `+taskColumns+` `+taskFrom+` `+scope.Where(), scope.Args()...))
	if err != nil {
		return nil, postgres.NotFoundOr(err, "task", "get task")
	}
	return t, nil
}

// List returns a page of a project's tasks ordered by due date
func (s *Service) List(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, f ListFilter) (pagination.Result[*Task], error) {
	var empty pagination.Result[*Task]
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanViewProject, denyView); err != nil {
		return empty, err
	}

	scope := tenancy.ForProject("t", orgID, projectID)
	if f.Status != nil {
		scope.And("t.status = ?", string(*f.Status))
	}
	if f.Priority != nil {
		scope.And("t.priority = ?", string(*f.Priority))
	}
	if f.AssigneeID != nil {
		scope.And("t.assignee_id = ?", *f.AssigneeID)
	}
	if f.Search != "" {
		pattern := "%" + f.Search + "%"
		scope.And("(t.name ILIKE ? OR t.description ILIKE ?)", pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks t `+scope.Where(), scope.Args()...).Scan(&total); err != nil {
		return empty, fmt.Errorf("failed to count tasks: %w", err)
	}

	where := scope.Where()
	page := scope.Page(f.Page.Limit(), f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` `+taskFrom+` `+where+`
		ORDER BY t.due_date ASC, t.created_at ASC `+page, scope.Args()...)
	if err != nil {
		return empty, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var items []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return empty, fmt.Errorf("failed to scan task: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return pagination.NewResult(items, total, f.Page), nil
}

// Get returns one task
func (s *Service) Get(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, taskID uuid.UUID) (*Task, error) {
	if _, err := s.access.Authorize(ctx, oc.OrgID(), projectID, principal.UserID, projects.CanViewProject, denyView); err != nil {
		return nil, err
	}
	return s.getTask(ctx, s.db, oc.OrgID(), projectID, taskID)
}

func assignedDraft(orgID uuid.UUID, t *Task) notifications.Draft {
	projectID := t.ProjectID
	return notifications.Draft{
		OrganizationID: orgID,
		UserID:         *t.AssigneeID,
		ProjectID:      &projectID,
		Type:           notifications.TypeTaskAssigned,
		Title:          "Task assigned",
		Body:           fmt.Sprintf("You were assigned task '%s'.", t.Name),
		Data: map[string]interface{}{
			"task_id":    t.ID.String(),
			"project_id": t.ProjectID.String(),
		},
	}
}

// Create adds a task. The reporter defaults to the caller; a task assigned
// to someone else notifies the assignee.
func (s *Service) Create(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, req CreateRequest) (*Task, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanEditTasks, denyCreate); err != nil {
		return nil, err
	}

	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	if req.DueDate.IsZero() {
		return nil, apperrors.Validation("due_date is required")
	}
	if err := validateHours("estimated_hours", req.EstimatedHours); err != nil {
		return nil, err
	}
	status := StatusPending
	if req.Status != "" {
		if status, err = ParseStatus(req.Status); err != nil {
			return nil, err
		}
	}
	priority := projects.PriorityMedium
	if req.Priority != "" {
		if priority, err = projects.ParsePriority(req.Priority); err != nil {
			return nil, err
		}
	}
	reporterID := principal.UserID
	if req.ReporterID != nil {
		reporterID = *req.ReporterID
	}

	task := &Task{
		OrganizationID: orgID,
		ProjectID:      projectID,
		Name:           name,
		Description:    req.Description,
		Status:         status,
		Priority:       priority,
		AssigneeID:     req.AssigneeID,
		ReporterID:     &reporterID,
		StartDate:      req.StartDate,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		Dependencies:   req.Dependencies,
	}
	if task.Dependencies == nil {
		task.Dependencies = []uuid.UUID{}
	}

	err = postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if task.AssigneeID != nil {
			if err := orgs.RequireActiveMember(ctx, tx, orgID, *task.AssigneeID, "assignee"); err != nil {
				return err
			}
		}
		if req.ReporterID != nil {
			if err := orgs.RequireActiveMember(ctx, tx, orgID, reporterID, "reporter"); err != nil {
				return err
			}
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO tasks (organization_id, project_id, name, description, status, priority,
			                   assignee_id, reporter_id, start_date, due_date, estimated_hours, progress, dependencies)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, $12)
			RETURNING id`,
			orgID, projectID, task.Name, task.Description, string(task.Status), string(task.Priority),
			task.AssigneeID, task.ReporterID, task.StartDate, task.DueDate, task.EstimatedHours,
			dependencyArray(task.Dependencies)).Scan(&task.ID)
		if err != nil {
			return postgres.MapError(err, "create task")
		}

		if task.AssigneeID != nil && *task.AssigneeID != principal.UserID {
			return s.notifier.Notify(ctx, tx, assignedDraft(orgID, task))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.getTask(ctx, s.db, orgID, projectID, task.ID)
}

// Update changes task fields. Reassigning to someone other than the caller
// notifies the new assignee.
func (s *Service) Update(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, taskID uuid.UUID, req UpdateRequest) (*Task, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanEditTasks, denyUpdate); err != nil {
		return nil, err
	}
	task, err := s.getTask(ctx, s.db, orgID, projectID, taskID)
	if err != nil {
		return nil, err
	}
	previousAssignee := task.AssigneeID

	if req.Name != nil {
		if task.Name, err = validateName(*req.Name); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		task.Description = req.Description
	}
	if req.Status != nil {
		if task.Status, err = ParseStatus(*req.Status); err != nil {
			return nil, err
		}
	}
	if req.Priority != nil {
		if task.Priority, err = projects.ParsePriority(*req.Priority); err != nil {
			return nil, err
		}
	}
	if req.StartDate != nil {
		task.StartDate = req.StartDate
	}
	if req.DueDate != nil {
		task.DueDate = *req.DueDate
	}
	if err := validateHours("estimated_hours", req.EstimatedHours); err != nil {
		return nil, err
	}
	if req.EstimatedHours != nil {
		task.EstimatedHours = req.EstimatedHours
	}
	if err := validateHours("actual_hours", req.ActualHours); err != nil {
		return nil, err
	}
	if req.ActualHours != nil {
		task.ActualHours = req.ActualHours
	}
	if req.Progress != nil {
		if err := validateProgress(*req.Progress); err != nil {
			return nil, err
		}
		task.Progress = *req.Progress
	}
	if req.Dependencies != nil {
		task.Dependencies = *req.Dependencies
	}
	if req.AssigneeID != nil {
		if *req.AssigneeID == uuid.Nil {
			task.AssigneeID = nil
		} else {
			id := *req.AssigneeID
			task.AssigneeID = &id
		}
	}

	err = postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if req.AssigneeID != nil && task.AssigneeID != nil {
			if err := orgs.RequireActiveMember(ctx, tx, orgID, *task.AssigneeID, "assignee"); err != nil {
				return err
			}
		}
		if err := s.save(ctx, tx, orgID, task); err != nil {
			return err
		}

		reassigned := task.AssigneeID != nil &&
			(previousAssignee == nil || *previousAssignee != *task.AssigneeID)
		if reassigned && *task.AssigneeID != principal.UserID {
			return s.notifier.Notify(ctx, tx, assignedDraft(orgID, task))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.getTask(ctx, s.db, orgID, projectID, taskID)
}

// UpdateStatus sets the status; Completed pins progress to 100 and Pending
// resets it to 0
func (s *Service) UpdateStatus(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, taskID uuid.UUID, req StatusRequest) (*Task, error) {
	st, err := ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, principal, oc, projectID, taskID, func(t *Task) { t.SetStatus(st) })
}

// UpdateProgress sets progress in 0..100; 100 completes the task and any
// progress starts a pending one
func (s *Service) UpdateProgress(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, taskID uuid.UUID, req ProgressRequest) (*Task, error) {
	if req.Progress == nil {
		return nil, apperrors.Validation("progress is required")
	}
	progress := *req.Progress
	if err := validateProgress(progress); err != nil {
		return nil, err
	}
	return s.mutate(ctx, principal, oc, projectID, taskID, func(t *Task) { t.SetProgress(progress) })
}

func (s *Service) mutate(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, taskID uuid.UUID, apply func(*Task)) (*Task, error) {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanEditTasks, denyUpdate); err != nil {
		return nil, err
	}
	task, err := s.getTask(ctx, s.db, orgID, projectID, taskID)
	if err != nil {
		return nil, err
	}
	apply(task)
	if err := s.save(ctx, s.db, orgID, task); err != nil {
		return nil, err
	}
	return s.getTask(ctx, s.db, orgID, projectID, taskID)
}

func (s *Service) save(ctx context.Context, q postgres.Querier, orgID uuid.UUID, t *Task) error {
	res, err := q.ExecContext(ctx, `
		UPDATE tasks
		SET name = $4, description = $5, status = $6, priority = $7, assignee_id = $8,
		    start_date = $9, due_date = $10, estimated_hours = $11, actual_hours = $12,
		    progress = $13, dependencies = $14, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false`,
		t.ID, orgID, t.ProjectID, t.Name, t.Description, string(t.Status), string(t.Priority),
		t.AssigneeID, t.StartDate, t.DueDate, t.EstimatedHours, t.ActualHours,
		t.Progress, dependencyArray(t.Dependencies))
	if err != nil {
		return postgres.MapError(err, "update task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("task")
	}
	return nil
}

// Delete soft-deletes a task
func (s *Service) Delete(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, taskID uuid.UUID) error {
	orgID := oc.OrgID()
	if _, err := s.access.Authorize(ctx, orgID, projectID, principal.UserID, projects.CanEditTasks, denyDelete); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET is_deleted = true, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND project_id = $3 AND is_deleted = false`,
		taskID, orgID, projectID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("task")
	}
	return nil
}
