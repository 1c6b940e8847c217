// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here so that
// producers and consumers agree on key identity and value type.
//
//	ctx = contextkeys.WithAuth(ctx, principal)
//	principal, _ := ctx.Value(contextkeys.AuthKey).(*auth.Principal)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.Principal
	// Set by: middleware.Auth (pkg/middleware/auth.go)
	// Required by: every authenticated endpoint
	AuthKey Key = "auth_principal"

	// AccessTokenKey contains *auth.Claims of the presented bearer token
	// Set by: middleware.Auth
	// Used by: logout, which revokes the access token jti
	AccessTokenKey Key = "access_token_claims"

	// OrgKey contains *orgs.OrgContext
	// Set by: middleware.OrgContext (pkg/middleware/org.go)
	// Required by: tenant-scoped endpoints
	OrgKey Key = "organization"

	// OrgIDKey contains the resolved organization id as a string
	// Set by: middleware.OrgContext
	// Used by: logger, audit trail
	OrgIDKey Key = "org_id"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, audit trail, error responses
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: middleware.Auth
	// Used by: logger, audit trail
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.RequestIDMiddleware
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger
	// Set by: audit.Middleware (pkg/audit/middleware.go)
	AuditLoggerKey Key = "audit_logger"
)

// WithAuth adds the authenticated principal to the context
func WithAuth(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, principal)
}

// WithAccessToken adds the verified access token claims to the context
func WithAccessToken(ctx context.Context, claims interface{}) context.Context {
	return context.WithValue(ctx, AccessTokenKey, claims)
}

// WithOrg adds the resolved organization context
func WithOrg(ctx context.Context, org interface{}) context.Context {
	return context.WithValue(ctx, OrgKey, org)
}

// WithOrgID adds the organization id string to the context
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithAuditLogger adds audit logger to the context
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetOrgID retrieves organization ID from context
func GetOrgID(ctx context.Context) string {
	if orgID, ok := ctx.Value(OrgIDKey).(string); ok {
		return orgID
	}
	return ""
}
