package orgs

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	orgCols    = []string{"id", "name", "slug", "subscription_tier", "max_projects", "max_users", "logo_url", "is_active", "created_at", "updated_at"}
	memberCols = []string{"id", "organization_id", "user_id", "org_role", "status", "invited_by", "created_at", "updated_at"}
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func orgValues(id uuid.UUID, name, slug string) []driver.Value {
	now := time.Now()
	return []driver.Value{id, name, slug, "free", 10, 5, nil, true, now, now}
}

func memberValues(orgID, userID uuid.UUID, role OrgRole, status MembershipStatus) []driver.Value {
	now := time.Now()
	return []driver.Value{uuid.New(), orgID, userID, string(role), string(status), nil, now, now}
}

func memberRows(orgID, userID uuid.UUID, role OrgRole, status MembershipStatus) *sqlmock.Rows {
	return sqlmock.NewRows(memberCols).AddRow(memberValues(orgID, userID, role, status)...)
}

func orgRows(id uuid.UUID, name, slug string) *sqlmock.Rows {
	return sqlmock.NewRows(orgCols).AddRow(orgValues(id, name, slug)...)
}
