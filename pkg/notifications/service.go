package notifications

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/pagination"
	"github.com/platinummonkey/buildpro/pkg/projects"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

// Service lists and acknowledges notifications
type Service struct {
	db       *sql.DB
	access   *projects.Access
	notifier *Notifier
	now      func() time.Time
}

// NewService creates the notification service
func NewService(db *sql.DB, access *projects.Access, notifier *Notifier) *Service {
	return &Service{db: db, access: access, notifier: notifier, now: time.Now}
}

const notificationColumns = `n.id, n.organization_id, n.user_id, n.project_id, n.notification_type,
	n.title, n.body, n.data, n.is_read, n.created_at, n.updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row rowScanner) (*Notification, error) {
	var (
		n         Notification
		projectID uuid.NullUUID
		data      []byte
	)
	if err := row.Scan(&n.ID, &n.OrganizationID, &n.UserID, &projectID, &n.NotificationType,
		&n.Title, &n.Body, &data, &n.IsRead, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if projectID.Valid {
		id := projectID.UUID
		n.ProjectID = &id
	}
	n.Data = map[string]interface{}{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to decode notification data: %w", err)
		}
	}
	return &n, nil
}

func userScope(orgID, userID uuid.UUID) *tenancy.Scope {
	return tenancy.ForOrg("n", orgID).And("n.user_id = ?", userID)
}

// List returns the caller's notifications after generating due-soon
// milestone reminders for the projects in view
func (s *Service) List(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, f ListFilter) (*ListResponse, error) {
	orgID := oc.OrgID()
	accessible, err := s.access.AccessibleProjectIDs(ctx, orgID, principal.UserID, false)
	if err != nil {
		return nil, err
	}

	targets := accessible
	if f.ProjectID != nil {
		if !containsID(accessible, *f.ProjectID) {
			return nil, apperrors.Forbidden("you do not have access to this project")
		}
		targets = []uuid.UUID{*f.ProjectID}
	}
	if _, err := s.GenerateDueSoon(ctx, orgID, principal.UserID, targets); err != nil {
		return nil, err
	}

	scope := userScope(orgID, principal.UserID)
	if f.ProjectID != nil {
		scope.And("n.project_id = ?", *f.ProjectID)
	}
	if f.UnreadOnly {
		scope.Raw("n.is_read = false")
	}
	where, args := scope.Where(), append([]interface{}{}, scope.Args()...)
	page := scope.Page(f.Page.Limit(), f.Page.Offset())
	pageArgs := scope.Args()
	unread := userScope(orgID, principal.UserID).Raw("n.is_read = false")

	var (
		total, unreadCount int
		items              []*Notification
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM notifications n `+where, args...).Scan(&total)
		if err != nil {
			return fmt.Errorf("failed to count notifications: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := s.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM notifications n `+unread.Where(), unread.Args()...).Scan(&unreadCount)
		if err != nil {
			return fmt.Errorf("failed to count unread notifications: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx, `SELECT `+notificationColumns+` FROM notifications n `+where+`
			ORDER BY n.created_at DESC `+page, pageArgs...)
		if err != nil {
			return fmt.Errorf("failed to list notifications: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			n, err := scanNotification(rows)
			if err != nil {
				return fmt.Errorf("failed to scan notification: %w", err)
			}
			items = append(items, n)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := pagination.NewResult(items, total, f.Page)
	return &ListResponse{
		Items:       result.Items,
		Total:       result.Total,
		UnreadCount: unreadCount,
		Page:        result.Page,
		PageSize:    result.PageSize,
		TotalPages:  result.TotalPages,
	}, nil
}

// MarkRead marks one of the caller's notifications read
func (s *Service) MarkRead(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, id uuid.UUID) (*Notification, error) {
	scope := userScope(oc.OrgID(), principal.UserID).And("n.id = ?", id)
	n, err := scanNotification(s.db.QueryRowContext(ctx, `
		UPDATE notifications n SET is_read = true, updated_at = now()
		`+scope.Where()+`
		RETURNING `+notificationColumns, scope.Args()...))
	if err != nil {
		return nil, postgres.NotFoundOr(err, "notification", "mark notification read")
	}
	return n, nil
}

// MarkAllRead marks the caller's unread notifications read, optionally
// limited to one project, and returns how many changed
func (s *Service) MarkAllRead(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID *uuid.UUID) (int64, error) {
	scope := userScope(oc.OrgID(), principal.UserID).Raw("n.is_read = false")
	if projectID != nil {
		scope.And("n.project_id = ?", *projectID)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE notifications n SET is_read = true, updated_at = now() `+scope.Where(), scope.Args()...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
