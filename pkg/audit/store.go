package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/pagination"
	"github.com/platinummonkey/buildpro/pkg/tenancy"
)

// Store persists audit entries in PostgreSQL
type Store struct {
	db *sql.DB
}

// NewStore creates a database-backed audit store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts one entry
func (s *Store) Record(ctx context.Context, e Entry) error {
	var details interface{}
	if len(e.Details) > 0 {
		details = []byte(e.Details)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (organization_id, user_id, action, entity_type, entity_id, details, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.OrganizationID, e.UserID, string(e.Action), e.EntityType, e.EntityID, details, e.Description)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

const entryColumns = `a.id, a.organization_id, a.user_id,
	NULLIF(TRIM(COALESCE(u.first_name, '') || ' ' || COALESCE(u.last_name, '')), ''),
	a.action, a.entity_type, a.entity_id, a.details, a.description, a.created_at`

// List returns one page of orgID's entries, newest first
func (s *Store) List(ctx context.Context, orgID uuid.UUID, f ListFilter) (pagination.Result[*Entry], error) {
	var empty pagination.Result[*Entry]

	scope := tenancy.Tenant("a", orgID)
	if f.EntityType != "" {
		scope.And("a.entity_type = ?", f.EntityType)
	}
	if f.Action != "" {
		scope.And("a.action = ?", string(f.Action))
	}
	if f.UserID != nil {
		scope.And("a.user_id = ?", *f.UserID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_logs a `+scope.Where(), scope.Args()...).Scan(&total); err != nil {
		return empty, fmt.Errorf("failed to count audit logs: %w", err)
	}

	where := scope.Where()
	page := scope.Page(f.Page.Limit(), f.Page.Offset())
	rows, err := s.db.QueryContext(ctx, `SELECT `+entryColumns+`
		FROM audit_logs a LEFT JOIN users u ON u.id = a.user_id `+where+`
		ORDER BY a.created_at DESC `+page, scope.Args()...)
	if err != nil {
		return empty, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		var (
			e       Entry
			action  string
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.UserID, &e.UserName, &action, &e.EntityType, &e.EntityID,
			&details, &e.Description, &e.CreatedAt); err != nil {
			return empty, fmt.Errorf("failed to scan audit log: %w", err)
		}
		e.Action = Action(action)
		if len(details) > 0 {
			e.Details = json.RawMessage(details)
		}
		items = append(items, &e)
	}
	if err := rows.Err(); err != nil {
		return empty, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return pagination.NewResult(items, total, f.Page), nil
}
