package audit

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/middleware"
	"github.com/platinummonkey/buildpro/pkg/observability"
	"github.com/platinummonkey/buildpro/pkg/orgs"
)

// Recorder stores audit entries
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Middleware records every successful mutating request. It must run after
// the auth and organization middleware so the actor is known.
func Middleware(recorder Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !Audited(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			if wrapped.statusCode < 200 || wrapped.statusCode >= 300 {
				return
			}
			entry := newEntry(r, wrapped.statusCode)
			if err := recorder.Record(r.Context(), entry); err != nil {
				observability.FromContext(r.Context()).
					WithError(err).
					WithField("path", r.URL.Path).
					Error("failed to write audit log")
			}
		})
	}
}

func newEntry(r *http.Request, status int) Entry {
	action, _ := ActionFor(r.Method)
	entry := Entry{
		Action:     action,
		EntityType: EntityType(r.URL.Path),
		EntityID:   EntityID(r.URL.Path),
	}
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		userID := principal.UserID
		entry.UserID = &userID
	}
	if oc, ok := orgs.FromContext(r.Context()); ok {
		orgID := oc.OrgID()
		entry.OrganizationID = &orgID
	} else if id, err := uuid.Parse(r.Header.Get(middleware.OrgHeader)); err == nil {
		entry.OrganizationID = &id
	}

	details, _ := json.Marshal(Details{
		Method:     r.Method,
		Path:       r.URL.Path,
		StatusCode: status,
		IPAddress:  middleware.ClientIP(r),
		UserAgent:  truncate(r.UserAgent(), maxUserAgentBytes),
	})
	entry.Details = details
	return entry
}
