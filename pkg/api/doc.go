// Package api assembles the BuildPro HTTP server.
//
// NewServer builds every service from its Dependencies and mounts the
// routes under /api/v1 on a gorilla/mux router:
//
//   - /auth/* and /users*: login, refresh, logout and the current profile
//   - /organizations*: organization management for any authenticated user
//   - everything else: tenant-scoped resources resolved from the
//     X-Organization-ID header (projects, tasks, expenses, risks,
//     milestones, documents, messages, notifications, BOQ, audit logs)
//
// Every request passes through request id, panic recovery, access logging
// and CORS handling, and is traced with otelhttp. Versioned routes are rate
// limited per client, with a stricter bucket for credential endpoints.
// Health probes live at /health/live and /health/ready; Prometheus metrics
// at /metrics when enabled.
//
//	srv := api.NewServer(api.Dependencies{Config: cfg, DB: db, Blobs: blobs})
//	http.ListenAndServe(cfg.Server.Addr(), srv)
package api
