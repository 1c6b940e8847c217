package boq

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/orgs"
)

// Handlers provides HTTP handlers for the bill of quantities
type Handlers struct {
	service *Service
}

// NewHandlers creates BOQ handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers BOQ routes on a tenant-scoped router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{project_id}/boq", h.get).Methods("GET")
	router.HandleFunc("/projects/{project_id}/boq", h.updateHeader).Methods("PUT")
	router.HandleFunc("/projects/{project_id}/boq/summary", h.summary).Methods("GET")
	router.HandleFunc("/projects/{project_id}/boq/items", h.createItem).Methods("POST")
	router.HandleFunc("/projects/{project_id}/boq/items/{item_id}", h.updateItem).Methods("PUT", "PATCH")
	router.HandleFunc("/projects/{project_id}/boq/items/{item_id}", h.deleteItem).Methods("DELETE")
}

// get handles GET /projects/{project_id}/boq
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, err := httputil.ParsePathUUID(r, "project_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	boq, err := h.service.Get(r.Context(), principal, oc, projectID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, boq)
}

// updateHeader handles PUT /projects/{project_id}/boq
func (h *Handlers) updateHeader(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, err := httputil.ParsePathUUID(r, "project_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req HeaderRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	header, err := h.service.UpdateHeader(r.Context(), principal, oc, projectID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, header)
}

// summary handles GET /projects/{project_id}/boq/summary
func (h *Handlers) summary(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, err := httputil.ParsePathUUID(r, "project_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	summary, err := h.service.Summary(r.Context(), principal, oc, projectID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, summary)
}

// createItem handles POST /projects/{project_id}/boq/items
func (h *Handlers) createItem(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, err := httputil.ParsePathUUID(r, "project_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req ItemRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), principal, oc, projectID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, item)
}

// updateItem handles PUT and PATCH /projects/{project_id}/boq/items/{item_id}
func (h *Handlers) updateItem(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, itemID, err := httputil.ParseProjectPath(r, "item_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req ItemRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), principal, oc, projectID, itemID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, item)
}

// deleteItem handles DELETE /projects/{project_id}/boq/items/{item_id}
func (h *Handlers) deleteItem(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, itemID, err := httputil.ParseProjectPath(r, "item_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), principal, oc, projectID, itemID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
