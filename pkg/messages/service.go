package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

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
	denyView       = "you do not have permission to view messages in this project"
	denyViewTask   = "you do not have permission to view messages for this task"
	denyPost       = "you do not have permission to post messages in this project"
	denyPostTask   = "you do not have permission to post messages for this task"
	denyDelete     = "you do not have permission to delete messages in this project"
	errTaskOrg     = "task must belong to the current organization"
	errTaskProject = "task does not belong to the specified project"
)

// Service manages messages
type Service struct {
	db       *sql.DB
	access   *projects.Access
	notifier *notifications.Notifier
}

// NewService creates the message service
func NewService(db *sql.DB, access *projects.Access, notifier *notifications.Notifier) *Service {
	return &Service{db: db, access: access, notifier: notifier}
}

const messageColumns = `m.id, m.organization_id, m.project_id, m.task_id,
	m.sender_id, NULLIF(TRIM(CONCAT(su.first_name, ' ', su.last_name)), '') AS sender_name,
	m.content, m.message_type, m.is_read, m.attachments, m.created_at, m.updated_at`

const messageFrom = `FROM messages m LEFT JOIN users su ON su.id = m.sender_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var (
		m           Message
		attachments pq.StringArray
	)
	err := row.Scan(&m.ID, &m.OrganizationID, &m.ProjectID, &m.TaskID,
		&m.SenderID, &m.SenderName,
		&m.Content, &m.MessageType, &m.IsRead, &attachments, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Attachments = make([]uuid.UUID, 0, len(attachments))
	for _, a := range attachments {
		id, err := uuid.Parse(a)
		if err != nil {
			return nil, fmt.Errorf("invalid message attachment %q: %w", a, err)
		}
		m.Attachments = append(m.Attachments, id)
	}
	return &m, nil
}

func uuidArray(ids []uuid.UUID) interface{} {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}

func (s *Service) getMessage(ctx context.Context, orgID, messageID uuid.UUID) (*Message, error) {
	scope := tenancy.ForOrg("m", orgID).And("m.id = ?", messageID)
	m, err := scanMessage(s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` `+messageFrom+` `+scope.Where(), scope.Args()...))
	if err != nil {
		return nil, postgres.NotFoundOr(err, "message", "get message")
	}
	return m, nil
}

// taskProject returns the project of a live task in orgID
func (s *Service) taskProject(ctx context.Context, orgID, taskID uuid.UUID) (uuid.UUID, error) {
	var projectID uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		SELECT project_id FROM tasks
		WHERE id = $1 AND organization_id = $2 AND is_deleted = false`,
		taskID, orgID).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, apperrors.BadRequest(errTaskOrg)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to get task: %w", err)
	}
	return projectID, nil
}

// authorizeView requires can_view_project on projectID unless the caller is
// an Org_Admin
func (s *Service) authorizeView(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID uuid.UUID, denyMessage string) error {
	if oc.IsAdmin() {
		_, err := s.access.GetProject(ctx, oc.OrgID(), projectID)
		return err
	}
	_, err := s.access.Authorize(ctx, oc.OrgID(), projectID, principal.UserID, projects.CanViewProject, denyMessage)
	return err
}

// List returns a page of messages, newest first. Without a project filter
// it covers organization-wide messages and those of every project the
// caller can view. Org_Admins read the messages of every project.
func (s *Service) List(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, f ListFilter) (pagination.Result[*Message], error) {
	var empty pagination.Result[*Message]
	orgID := oc.OrgID()
	scope := tenancy.ForOrg("m", orgID)

	if f.ProjectID != nil {
		if err := s.authorizeView(ctx, principal, oc, *f.ProjectID, denyView); err != nil {
			return empty, err
		}
		scope.And("m.project_id = ?", *f.ProjectID)
	} else {
		ids, err := s.access.AccessibleProjectIDs(ctx, orgID, principal.UserID, oc.IsAdmin())
		if err != nil {
			return empty, err
		}
		scope.And("(m.project_id IS NULL OR m.project_id = ANY(?))", uuidArray(ids))
	}

	if f.TaskID != nil {
		taskProjectID, err := s.taskProject(ctx, orgID, *f.TaskID)
		if err != nil {
			return empty, err
		}
		if f.ProjectID != nil && *f.ProjectID != taskProjectID {
			return empty, apperrors.BadRequest(errTaskProject)
		}
		if err := s.authorizeView(ctx, principal, oc, taskProjectID, denyViewTask); err != nil {
			return empty, err
		}
		scope.And("m.task_id = ?", *f.TaskID)
	}
	if f.MessageType != nil {
		scope.And("m.message_type = ?", string(*f.MessageType))
	}
	if f.UnreadOnly {
		scope.Raw("m.is_read = false")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages m `+scope.Where(), scope.Args()...).Scan(&total); err != nil {
		return empty, fmt.Errorf("failed to count messages: %w", err)
	}

	where := scope.Where()
	page := scope.Page(f.Page.Limit(), f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, `SELECT `+messageColumns+` `+messageFrom+` `+where+`
		ORDER BY m.created_at DESC `+page, scope.Args()...)
	if err != nil {
		return empty, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return empty, fmt.Errorf("failed to scan message: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("failed to iterate messages: %w", err)
	}
	return pagination.NewResult(items, total, f.Page), nil
}

// Create posts a message. A task pins the message to the task's project.
// Project messages notify everyone who can view the project except the
// sender.
func (s *Service) Create(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, req CreateRequest) (*Message, error) {
	orgID := oc.OrgID()
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperrors.Validation("content is required")
	}
	msgType, err := ParseType(req.MessageType)
	if err != nil {
		return nil, err
	}

	var project *projects.Project
	if req.ProjectID != nil {
		if project, err = s.access.Authorize(ctx, orgID, *req.ProjectID, principal.UserID, projects.CanPostMessages, denyPost); err != nil {
			return nil, err
		}
	}
	if req.TaskID != nil {
		taskProjectID, err := s.taskProject(ctx, orgID, *req.TaskID)
		if err != nil {
			return nil, err
		}
		if req.ProjectID != nil && *req.ProjectID != taskProjectID {
			return nil, apperrors.BadRequest(errTaskProject)
		}
		if project, err = s.access.Authorize(ctx, orgID, taskProjectID, principal.UserID, projects.CanPostMessages, denyPostTask); err != nil {
			return nil, err
		}
	}

	var projectID *uuid.UUID
	if project != nil {
		projectID = &project.ID
	}

	var id uuid.UUID
	err = postgres.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO messages (organization_id, project_id, task_id, sender_id, content, message_type, attachments)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			orgID, projectID, req.TaskID, principal.UserID, content, string(msgType),
			uuidArray(req.Attachments)).Scan(&id)
		if err != nil {
			return postgres.MapError(err, "create message")
		}
		if project == nil {
			return nil
		}

		recipients, err := s.recipients(ctx, tx, project, principal.UserID)
		if err != nil {
			return err
		}
		drafts := make([]notifications.Draft, 0, len(recipients))
		for _, userID := range recipients {
			drafts = append(drafts, notifications.Draft{
				OrganizationID: orgID,
				UserID:         userID,
				ProjectID:      projectID,
				Type:           notifications.TypeProjectMessage,
				Title:          "New project message",
				Body:           senderLabel(principal) + ": " + preview(content, previewLength),
				Data: map[string]interface{}{
					"message_id": id.String(),
					"project_id": project.ID.String(),
				},
			})
		}
		return s.notifier.NotifyAll(ctx, tx, drafts)
	})
	if err != nil {
		return nil, err
	}
	return s.getMessage(ctx, orgID, id)
}

func senderLabel(p *auth.Principal) string {
	if name := p.FullName(); name != "" {
		return name
	}
	return "A project member"
}

// recipients lists the viewers of a project other than the sender: members
// with can_view_project, then the manager and creator
func (s *Service) recipients(ctx context.Context, q postgres.Querier, project *projects.Project, senderID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT pm.user_id FROM project_members pm
		WHERE pm.project_id = $1 AND pm.can_view_project = true
		ORDER BY pm.joined_at`,
		project.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list message recipients: %w", err)
	}
	defer rows.Close()

	seen := map[uuid.UUID]bool{senderID: true}
	var out []uuid.UUID
	add := func(id uuid.UUID) {
		if id == uuid.Nil || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recipients: %w", err)
	}
	add(project.ManagerID)
	add(project.CreatedBy)
	return out, nil
}

// MarkRead flags a message as read
func (s *Service) MarkRead(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, messageID uuid.UUID) (*Message, error) {
	orgID := oc.OrgID()
	m, err := s.getMessage(ctx, orgID, messageID)
	if err != nil {
		return nil, err
	}
	if m.ProjectID != nil {
		if _, err := s.access.Authorize(ctx, orgID, *m.ProjectID, principal.UserID, projects.CanViewProject, denyView); err != nil {
			return nil, err
		}
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_read = true, updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND is_deleted = false`,
		messageID, orgID); err != nil {
		return nil, fmt.Errorf("failed to mark message read: %w", err)
	}
	m.IsRead = true
	return m, nil
}

// Delete soft-deletes a message. Project messages need can_post_messages;
// organization-wide ones may be removed by their sender or an Org_Admin.
func (s *Service) Delete(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, messageID uuid.UUID) error {
	orgID := oc.OrgID()
	m, err := s.getMessage(ctx, orgID, messageID)
	if err != nil {
		return err
	}
	if m.ProjectID != nil {
		if _, err := s.access.Authorize(ctx, orgID, *m.ProjectID, principal.UserID, projects.CanPostMessages, denyDelete); err != nil {
			return err
		}
	} else if !oc.IsAdmin() && (m.SenderID == nil || *m.SenderID != principal.UserID) {
		return apperrors.Forbidden("only the sender or an organization admin can delete this message")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_deleted = true, deleted_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2 AND is_deleted = false`,
		messageID, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFound("message")
	}
	return nil
}
