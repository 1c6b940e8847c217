package auth

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/platinummonkey/buildpro/pkg/rbac"
	"github.com/platinummonkey/buildpro/pkg/storage/postgres"
)

const userSelect = `
	SELECT u.id, u.email, u.password_hash, u.first_name, u.last_name, u.phone_number,
	       u.role_id, r.role_name, r.permissions, u.is_active, u.last_login,
	       u.created_at, u.updated_at
	FROM users u
	JOIN roles r ON r.id = u.role_id`

// UserStore reads users, their roles and organization memberships
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a user store
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		u           User
		role        string
		phone       sql.NullString
		lastLogin   sql.NullTime
		permissions []string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &phone,
		&u.RoleID, &role, pq.Array(&permissions), &u.IsActive, &lastLogin,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = rbac.Role(role)
	u.Permissions = permissions
	if phone.Valid {
		u.PhoneNumber = &phone.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

// GetActiveByEmail returns the active, non-deleted user with email
func (s *UserStore) GetActiveByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, userSelect+`
	WHERE lower(u.email) = lower($1) AND u.is_active = true AND u.is_deleted = false`, email)
	u, err := scanUser(row)
	if err != nil {
		return nil, postgres.NotFoundOr(err, "user", "get user by email")
	}
	return u, nil
}

// GetActiveByID returns the active, non-deleted user with id
func (s *UserStore) GetActiveByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRowContext(ctx, userSelect+`
	WHERE u.id = $1 AND u.is_active = true AND u.is_deleted = false`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, postgres.NotFoundOr(err, "user", "get user")
	}
	return u, nil
}

// ListUsers returns every non-deleted user ordered by name
func (s *UserStore) ListUsers(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, userSelect+`
	WHERE u.is_deleted = false
	ORDER BY u.last_name, u.first_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// TouchLastLogin records a successful login
func (s *UserStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET last_login = now(), updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// ListMemberships returns the user's memberships in live organizations,
// oldest first
func (s *UserStore) ListMemberships(ctx context.Context, userID uuid.UUID) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.organization_id, o.name, o.slug, m.org_role, m.status
		FROM organization_members m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1 AND o.is_deleted = false AND o.is_active = true
		ORDER BY m.created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	memberships := []Membership{}
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.OrganizationID, &m.OrganizationName, &m.OrganizationSlug, &m.OrgRole, &m.Status); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}
	return memberships, nil
}
