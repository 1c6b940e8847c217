package rbac

import (
	"fmt"
	"strings"
)

// Role is a system role
type Role string

const (
	RoleAdministrator  Role = "Administrator"
	RoleProjectManager Role = "Project_Manager"
	RoleSiteSupervisor Role = "Site_Supervisor"
	RoleTeamMember     Role = "Team_Member"
	RoleStakeholder    Role = "Stakeholder"
)

// Roles lists the system roles in descending order of privilege
var Roles = []Role{
	RoleAdministrator,
	RoleProjectManager,
	RoleSiteSupervisor,
	RoleTeamMember,
	RoleStakeholder,
}

// ParseRole accepts the canonical name, case-insensitively, with spaces or
// underscores
func ParseRole(s string) (Role, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), " ", "_")
	for _, r := range Roles {
		if strings.EqualFold(string(r), normalized) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Permission is a system permission string
type Permission string

const (
	PermProjectsCreate       Permission = "projects:create"
	PermProjectsEdit         Permission = "projects:edit"
	PermProjectsDelete       Permission = "projects:delete"
	PermProjectsViewAll      Permission = "projects:view:all"
	PermProjectsViewAssigned Permission = "projects:view:assigned"

	PermTasksCreate  Permission = "tasks:create"
	PermTasksEditAny Permission = "tasks:edit:any"
	PermTasksEditOwn Permission = "tasks:edit:own"
	PermTasksDelete  Permission = "tasks:delete"

	PermBudgetViewDetails Permission = "budget:view:details"
	PermBudgetViewSummary Permission = "budget:view:summary"
	PermBudgetEdit        Permission = "budget:edit"
	PermExpensesLog       Permission = "expenses:log"
	PermExpensesApprove   Permission = "expenses:approve"

	PermRisksView   Permission = "risks:view"
	PermRisksManage Permission = "risks:manage"
	PermRisksReport Permission = "risks:report"

	PermDocumentsUpload Permission = "documents:upload"
	PermDocumentsDelete Permission = "documents:delete"

	PermUsersManage Permission = "users:manage"

	PermReportsViewAll     Permission = "reports:view:all"
	PermReportsViewLimited Permission = "reports:view:limited"

	PermMessagesSend Permission = "messages:send"
)
