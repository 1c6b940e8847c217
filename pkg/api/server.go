package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/audit"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/boq"
	"github.com/platinummonkey/buildpro/pkg/config"
	"github.com/platinummonkey/buildpro/pkg/documents"
	"github.com/platinummonkey/buildpro/pkg/expenses"
	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/jobs"
	"github.com/platinummonkey/buildpro/pkg/messages"
	"github.com/platinummonkey/buildpro/pkg/middleware"
	"github.com/platinummonkey/buildpro/pkg/milestones"
	"github.com/platinummonkey/buildpro/pkg/notifications"
	"github.com/platinummonkey/buildpro/pkg/observability"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/projects"
	"github.com/platinummonkey/buildpro/pkg/risks"
	"github.com/platinummonkey/buildpro/pkg/storage"
	"github.com/platinummonkey/buildpro/pkg/tasks"
)

// APIPrefix is the mount point of every versioned route
const APIPrefix = "/api/v1"

// Dependencies are the collaborators the server is assembled from. Redis,
// Registry and Logger may be nil.
type Dependencies struct {
	Config   config.Config
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Registry prometheus.Gatherer
	DB       *sql.DB
	Redis    *redis.Client
	Blobs    storage.BlobStore
	Version  string
}

// Server represents our API server
type Server struct {
	cfg         config.Config
	router      *mux.Router
	handler     http.Handler
	revocations *auth.PostgresRevocationStore
	limiters    []*middleware.RateLimiter
}

// NewServer builds every service and mounts its routes
func NewServer(deps Dependencies) *Server {
	if deps.Metrics == nil {
		deps.Metrics = observability.NewNopMetrics()
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		cfg:    deps.Config,
		router: mux.NewRouter(),
	}
	s.setupRoutes(deps)

	handler := httputil.Chain(
		httputil.RequestIDMiddleware(deps.Logger),
		httputil.RecoveryMiddleware,
		httputil.LoggingMiddleware,
		corsMiddleware(deps.Config.CORS),
	)(s.router)
	s.handler = otelhttp.NewHandler(handler, "buildpro-api")
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes(deps Dependencies) {
	cfg := deps.Config
	db := deps.DB
	metrics := deps.Metrics

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteAppError(w, r, apperrors.New(apperrors.KindNotFound, "route not found"))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	s.router.Use(observability.HTTPMetricsMiddleware(metrics))

	health := observability.NewHealthChecker(db, deps.Redis, deps.Blobs, deps.Version)
	s.router.HandleFunc("/health/live", health.Liveness).Methods("GET")
	s.router.HandleFunc("/health/ready", health.Readiness).Methods("GET")
	if cfg.Observability.MetricsEnabled && deps.Registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(deps.Registry)).Methods("GET")
	}

	// Identity
	var shared *auth.RedisRevocationCache
	if deps.Redis != nil {
		shared = auth.NewRedisRevocationCache(deps.Redis)
	}
	s.revocations = auth.NewRevocationStore(db, cfg.Auth, shared, metrics)
	authService := auth.NewService(auth.NewUserStore(db), auth.NewTokenManager(cfg.Auth), s.revocations, metrics)
	requireAuth := middleware.Auth(authService)
	recorder := audit.NewStore(db)

	// Resource services
	access := projects.NewAccess(db, metrics)
	notifier := notifications.NewNotifier(metrics)
	var blobs storage.BlobStore
	if deps.Blobs != nil {
		blobs = storage.WithMetrics(deps.Blobs, metrics)
	}

	v1 := s.router.PathPrefix(APIPrefix).Subrouter()
	if cfg.RateLimit.Enabled {
		v1.Use(s.rateLimits(cfg.RateLimit, deps.Redis, metrics))
	}

	public := v1.NewRoute().Subrouter()
	auth.NewHandlers(authService, cfg.IsProduction()).RegisterRoutes(public, requireAuth)

	authed := v1.NewRoute().Subrouter()
	authed.Use(requireAuth, audit.Middleware(recorder))
	orgs.NewHandlers(orgs.NewService(db)).RegisterRoutes(authed)

	tenant := v1.NewRoute().Subrouter()
	tenant.Use(requireAuth, middleware.OrgContext(orgs.NewResolver(db)), audit.Middleware(recorder))
	projects.NewHandlers(projects.NewService(db, access)).RegisterRoutes(tenant)
	tasks.NewHandlers(tasks.NewService(db, access, notifier)).RegisterRoutes(tenant)
	expenses.NewHandlers(expenses.NewService(db, access, notifier, metrics)).RegisterRoutes(tenant)
	risks.NewHandlers(risks.NewService(db, access)).RegisterRoutes(tenant)
	milestones.NewHandlers(milestones.NewService(db, access)).RegisterRoutes(tenant)
	documents.NewHandlers(documents.NewService(db, access, blobs, documents.Options{
		MaxUploadSize:     cfg.Storage.MaxUploadSize,
		AllowedExtensions: cfg.Storage.AllowedExtensions,
		PresignTTL:        cfg.Storage.PresignTTL,
	})).RegisterRoutes(tenant)
	messages.NewHandlers(messages.NewService(db, access, notifier)).RegisterRoutes(tenant)
	notifications.NewHandlers(notifications.NewService(db, access, notifier)).RegisterRoutes(tenant)
	boq.NewHandlers(boq.NewService(db, access)).RegisterRoutes(tenant)
	audit.NewHandlers(recorder).RegisterRoutes(tenant)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// MaintenanceJobs returns the background jobs that keep the server's
// in-process and persisted state bounded
func (s *Server) MaintenanceJobs() []jobs.Job {
	sweepers := make([]jobs.Sweeper, 0, len(s.limiters))
	for _, l := range s.limiters {
		sweepers = append(sweepers, l)
	}
	return []jobs.Job{
		jobs.RevokedTokenPurge(s.revocations, s.cfg.Jobs.RevokedTokenPurgeSchedule),
		jobs.RateLimitSweep(s.cfg.Jobs.RateLimitSweepSchedule, sweepers...),
	}
}

func corsMiddleware(cfg config.CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			middleware.OrgHeader,
			httputil.RequestIDHeader,
		},
		ExposedHeaders: []string{
			httputil.RequestIDHeader,
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"Retry-After",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
