package rbac

import (
	"sort"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
)

var rolePermissions = map[Role][]Permission{
	RoleAdministrator: {
		PermProjectsCreate, PermProjectsEdit, PermProjectsDelete, PermProjectsViewAll,
		PermTasksCreate, PermTasksEditAny, PermTasksDelete,
		PermBudgetViewDetails, PermBudgetEdit, PermExpensesLog, PermExpensesApprove,
		PermRisksView, PermRisksManage,
		PermDocumentsUpload, PermDocumentsDelete,
		PermUsersManage,
		PermReportsViewAll,
		PermMessagesSend,
	},
	RoleProjectManager: {
		PermProjectsCreate, PermProjectsEdit, PermProjectsViewAssigned,
		PermTasksCreate, PermTasksEditAny, PermTasksDelete,
		PermBudgetViewDetails, PermBudgetEdit, PermExpensesLog, PermExpensesApprove,
		PermRisksView, PermRisksManage,
		PermDocumentsUpload,
		PermReportsViewAll,
		PermMessagesSend,
	},
	RoleSiteSupervisor: {
		PermProjectsViewAssigned,
		PermTasksCreate, PermTasksEditOwn,
		PermExpensesLog,
		PermRisksView, PermRisksReport,
		PermDocumentsUpload,
		PermReportsViewLimited,
		PermMessagesSend,
	},
	RoleTeamMember: {
		PermProjectsViewAssigned,
		PermTasksEditOwn,
		PermDocumentsUpload,
		PermReportsViewLimited,
		PermMessagesSend,
	},
	RoleStakeholder: {
		PermProjectsViewAssigned,
		PermBudgetViewSummary,
		PermRisksView,
		PermReportsViewAll,
		PermMessagesSend,
	},
}

// PermissionSet is an immutable set of granted permissions
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from stored permission strings
func NewPermissionSet(perms ...string) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		if p == "" {
			continue
		}
		set[Permission(p)] = struct{}{}
	}
	return set
}

// DefaultPermissions returns the built-in grants for role. Unknown roles get
// an empty set.
func DefaultPermissions(role Role) PermissionSet {
	perms := rolePermissions[role]
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Resolve returns the stored grants, or the role defaults when none are
// stored
func Resolve(role Role, stored []string) PermissionSet {
	set := NewPermissionSet(stored...)
	if len(set) == 0 {
		return DefaultPermissions(role)
	}
	return set
}

// Has reports whether p is granted
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAny reports whether at least one of perms is granted
func (s PermissionSet) HasAny(perms ...Permission) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Require returns a Forbidden error unless p is granted
func (s PermissionSet) Require(p Permission) error {
	if s.Has(p) {
		return nil
	}
	return apperrors.Forbidden("missing permission: " + string(p))
}

// Strings returns the granted permissions sorted
func (s PermissionSet) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}
