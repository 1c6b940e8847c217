// Package middleware provides the HTTP middleware that establishes who is
// calling and on behalf of which organization, and that throttles clients.
//
// Auth verifies the bearer access token and stores the principal; OrgContext
// then resolves the organization from X-Organization-ID or the caller's only
// active membership:
//
//	api := router.PathPrefix("/api/v1").Subrouter()
//	api.Use(middleware.Auth(authService), middleware.OrgContext(resolver))
//
// RateLimit throttles clients by IP address with either the in-memory
// RateLimiter or the Redis-backed DistributedRateLimiter. Limiter errors
// fail open.
package middleware
