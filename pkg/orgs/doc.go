// Package orgs manages organizations, their memberships and the resolution
// of the organization a request operates in.
//
// # Organization resolution
//
// Every tenant-scoped request runs inside exactly one organization. The
// Resolver picks it from the optional X-Organization-ID header:
//
//	header set     must parse as a uuid, the caller must hold an Active
//	               membership and the organization must be active and not
//	               deleted
//	header absent  the caller's single Active membership is used; zero
//	               memberships is forbidden and more than one is ambiguous
//
// The result is an OrgContext stored in the request context by the
// middleware package:
//
//	principal, org, err := orgs.RequestScope(r.Context())
//
// # Roles
//
//	Org_Admin  manages the organization and its members, sees every project
//	Member     regular member
//	Viewer     read-only member
//
// # Quotas
//
// max_projects and max_users on the organization row cap live projects and
// Active members. CheckProjectQuota is called by the project service;
// AddMember enforces the member cap.
package orgs
