// Package rbac holds the system role to permission table.
//
// # Overview
//
// Every user carries exactly one system role. A role grants a fixed set of
// permission strings of the form "resource:action[:qualifier]":
//
//	Administrator    - full access, including projects:view:all and users:manage
//	Project_Manager  - creates and runs projects, approves expenses
//	Site_Supervisor  - logs expenses and reports risks on assigned projects
//	Team_Member      - works on own tasks, uploads documents
//	Stakeholder      - read-only visibility with budget summaries
//
// System permissions gate organization-wide actions such as creating a
// project or listing every project in the organization. Per-project access is
// governed separately by project membership capability flags (see package
// projects).
//
// # Usage
//
//	set := rbac.NewPermissionSet(user.Permissions...)
//	if err := set.Require(rbac.PermProjectsCreate); err != nil {
//	    return err // PERMISSION_DENIED
//	}
//
// The permission list stored on the roles row is authoritative. When it is
// empty, DefaultPermissions(role) supplies the built-in grants.
package rbac
