package notifications

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/orgs"
)

// Handlers provides HTTP handlers for notifications
type Handlers struct {
	service *Service
}

// NewHandlers creates notification handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers notification routes on a tenant-scoped router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/notifications", h.list).Methods("GET")
	router.HandleFunc("/notifications/read-all", h.markAllRead).Methods("POST")
	router.HandleFunc("/notifications/{notification_id}/read", h.markRead).Methods("POST")
}

// list handles GET /notifications
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	page, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	unreadOnly, err := httputil.ParseQueryBool(r, "unread_only")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, err := httputil.ParseQueryUUID(r, "project_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	resp, err := h.service.List(r.Context(), principal, oc, ListFilter{
		UnreadOnly: unreadOnly,
		ProjectID:  projectID,
		Page:       page,
	})
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// markRead handles POST /notifications/{notification_id}/read
func (h *Handlers) markRead(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	id, err := httputil.ParsePathUUID(r, "notification_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	n, err := h.service.MarkRead(r.Context(), principal, oc, id)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, n)
}

// markAllRead handles POST /notifications/read-all
func (h *Handlers) markAllRead(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, err := httputil.ParseQueryUUID(r, "project_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if _, err := h.service.MarkAllRead(r.Context(), principal, oc, projectID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
