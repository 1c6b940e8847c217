// Package audit records an organization-scoped trail of every successful
// data-modifying API request and serves it back through GET /audit-logs.
//
// The middleware maps the HTTP method to an Action (POST creates, PUT and
// PATCH update, DELETE deletes), derives the entity type and id from the
// request path and stores the request details as JSON:
//
//	tenant.Use(audit.Middleware(audit.NewStore(db)))
//
// Audit writes never change the response; failures are logged.
package audit
