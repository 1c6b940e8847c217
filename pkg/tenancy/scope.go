// Package tenancy builds tenant-scoped SQL predicates.
//
// Every store query goes through a Scope so the organization filter and the
// soft-delete filter travel together:
//
//	s := tenancy.ForProject("t", orgID, projectID)
//	s.And("t.status = ?", status)
//	rows, err := db.QueryContext(ctx, "SELECT ... FROM tasks t "+s.Where(), s.Args()...)
package tenancy

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SoftDelete is embedded in every soft-deletable entity
type SoftDelete struct {
	IsDeleted bool       `json:"-"`
	DeletedAt *time.Time `json:"-"`
}

// Scope accumulates AND-ed predicates with $n placeholders
type Scope struct {
	clauses []string
	args    []interface{}
}

func column(alias, name string) string {
	if alias == "" {
		return name
	}
	return alias + "." + name
}

// Tenant scopes rows of alias to orgID; used for append-only tables
// without soft delete
func Tenant(alias string, orgID uuid.UUID) *Scope {
	s := &Scope{}
	s.And(column(alias, "organization_id")+" = ?", orgID)
	return s
}

// ForOrg scopes rows of alias to orgID and excludes soft-deleted rows
func ForOrg(alias string, orgID uuid.UUID) *Scope {
	return Tenant(alias, orgID).Raw(column(alias, "is_deleted") + " = false")
}

// ForProject scopes rows of alias to a project within orgID and excludes
// soft-deleted rows
func ForProject(alias string, orgID, projectID uuid.UUID) *Scope {
	s := ForOrg(alias, orgID)
	s.And(column(alias, "project_id")+" = ?", projectID)
	return s
}

// Live excludes soft-deleted rows of alias without a tenant predicate; used
// for tables whose tenancy is enforced through a join
func Live(alias string) *Scope {
	s := &Scope{}
	s.Raw(column(alias, "is_deleted") + " = false")
	return s
}

// Arg appends a bind argument and returns its placeholder
func (s *Scope) Arg(v interface{}) string {
	s.args = append(s.args, v)
	return "$" + strconv.Itoa(len(s.args))
}

// And appends expr, replacing each ? with a placeholder bound to the
// matching value
func (s *Scope) And(expr string, values ...interface{}) *Scope {
	var b strings.Builder
	i := 0
	for _, r := range expr {
		if r == '?' && i < len(values) {
			b.WriteString(s.Arg(values[i]))
			i++
			continue
		}
		b.WriteRune(r)
	}
	s.clauses = append(s.clauses, b.String())
	return s
}

// Raw appends a predicate that has no arguments
func (s *Scope) Raw(expr string) *Scope {
	s.clauses = append(s.clauses, expr)
	return s
}

// Where renders the accumulated predicates as a WHERE clause
func (s *Scope) Where() string {
	if len(s.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(s.clauses, " AND ")
}

// Args returns the bind arguments in placeholder order
func (s *Scope) Args() []interface{} {
	return s.args
}

// Page appends LIMIT/OFFSET placeholders and returns the clause
func (s *Scope) Page(limit, offset int) string {
	return "LIMIT " + s.Arg(limit) + " OFFSET " + s.Arg(offset)
}
