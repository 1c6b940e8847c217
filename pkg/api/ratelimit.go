package api

import (
	"net/http"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/buildpro/pkg/config"
	"github.com/platinummonkey/buildpro/pkg/middleware"
	"github.com/platinummonkey/buildpro/pkg/observability"
)

// credentialPaths get the stricter auth limiter
var credentialPaths = map[string]bool{
	APIPrefix + "/auth/login":   true,
	APIPrefix + "/auth/refresh": true,
}

// rateLimits picks the auth or general limiter by path. Redis-backed
// limiters are shared across replicas; in-memory ones are kept for sweeping.
func (s *Server) rateLimits(cfg config.RateLimitConfig, client *redis.Client, metrics *observability.Metrics) func(http.Handler) http.Handler {
	general := s.limiter(middleware.PerMinute(cfg.RequestsPerMinute), client)
	strict := s.limiter(middleware.PerMinute(cfg.AuthRequestsPerMinute), client)

	return func(next http.Handler) http.Handler {
		generalHandler := middleware.RateLimit(general, "general", metrics)(next)
		strictHandler := middleware.RateLimit(strict, "auth", metrics)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if credentialPaths[r.URL.Path] {
				strictHandler.ServeHTTP(w, r)
				return
			}
			generalHandler.ServeHTTP(w, r)
		})
	}
}

func (s *Server) limiter(cfg middleware.RateLimitConfig, client *redis.Client) middleware.Limiter {
	if client != nil {
		return middleware.NewDistributedRateLimiter(client, cfg, "")
	}
	l := middleware.NewRateLimiter(cfg)
	s.limiters = append(s.limiters, l)
	return l
}
