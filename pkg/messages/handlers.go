package messages

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/orgs"
)

// Handlers provides HTTP handlers for messages
type Handlers struct {
	service *Service
}

// NewHandlers creates message handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers message routes on a tenant-scoped router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/messages", h.list).Methods("GET")
	router.HandleFunc("/messages", h.create).Methods("POST")
	router.HandleFunc("/messages/{message_id}/read", h.markRead).Methods("PATCH")
	router.HandleFunc("/messages/{message_id}", h.delete).Methods("DELETE")
}

// list handles GET /messages
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
	filter := ListFilter{Page: page}
	if filter.ProjectID, err = httputil.ParseQueryUUID(r, "project_id"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if filter.TaskID, err = httputil.ParseQueryUUID(r, "task_id"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if filter.UnreadOnly, err = httputil.ParseQueryBool(r, "unread_only"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if v := httputil.ParseQueryString(r, "message_type"); v != "" {
		t, err := ParseType(v)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.MessageType = &t
	}

	result, err := h.service.List(r.Context(), principal, oc, filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// create handles POST /messages
func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req CreateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	msg, err := h.service.Create(r.Context(), principal, oc, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, msg)
}

// markRead handles PATCH /messages/{message_id}/read
func (h *Handlers) markRead(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	messageID, err := httputil.ParsePathUUID(r, "message_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	msg, err := h.service.MarkRead(r.Context(), principal, oc, messageID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, msg)
}

// delete handles DELETE /messages/{message_id}
func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	messageID, err := httputil.ParsePathUUID(r, "message_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), principal, oc, messageID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
