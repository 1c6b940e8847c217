// Package auth verifies credentials and issues the JWTs that identify
// callers of the BuildPro API.
//
// # Tokens
//
// Two HS256 token types are issued by TokenManager:
//
//	access   short lived (15m default), sent as "Authorization: Bearer <jwt>"
//	refresh  long lived (7d default), held in the httpOnly refresh_token cookie
//
// Both carry sub (user id), type, jti, iat and exp. Access tokens also carry
// the user's email. Verify rejects tokens of the wrong type, tokens signed
// with any algorithm other than HS256, and expired tokens (TOKEN_EXPIRED).
//
// # Revocation
//
// Logout records the jti of the presented access and refresh tokens in the
// revoked_tokens table. RevocationStore checks, in order, an in-process
// expirable LRU, an optional shared Redis key and finally PostgreSQL. Only
// revoked answers are cached, so a revocation made by another replica is
// visible no later than its database write.
//
//	store := auth.NewRevocationStore(db, cfg.Auth, auth.NewRedisRevocationCache(rdb), metrics)
//	svc := auth.NewService(auth.NewUserStore(db), auth.NewTokenManager(cfg.Auth), store, metrics)
//
//	result, err := svc.Login(ctx, email, password)
//	principal, claims, err := svc.Authenticate(ctx, bearer)
//
// Expired rows are purged by the revoked-token job in package jobs.
//
// # Principals
//
// A Principal is the active, non-deleted user behind a verified access
// token together with the permission set of their system role (see package
// rbac). Middleware stores it in the request context:
//
//	principal, ok := auth.PrincipalFromContext(r.Context())
package auth
