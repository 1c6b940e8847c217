package milestones

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/orgs"
)

// Handlers provides HTTP handlers for milestones
type Handlers struct {
	service *Service
}

// NewHandlers creates milestone handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers milestone routes on a tenant-scoped router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{project_id}/milestones", h.list).Methods("GET")
	router.HandleFunc("/projects/{project_id}/milestones", h.create).Methods("POST")
	router.HandleFunc("/projects/{project_id}/milestones/{milestone_id}", h.get).Methods("GET")
	router.HandleFunc("/projects/{project_id}/milestones/{milestone_id}", h.update).Methods("PUT")
	router.HandleFunc("/projects/{project_id}/milestones/{milestone_id}", h.delete).Methods("DELETE")
}

// list handles GET /projects/{project_id}/milestones
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
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
	page, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	filter := ListFilter{Page: page}
	if v := httputil.ParseQueryString(r, "status"); v != "" {
		st, err := ParseMilestoneStatus(v)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Status = &st
	}

	result, err := h.service.List(r.Context(), principal, oc, projectID, filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// create handles POST /projects/{project_id}/milestones
func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
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
	var req CreateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	milestone, err := h.service.Create(r.Context(), principal, oc, projectID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, milestone)
}

// get handles GET /projects/{project_id}/milestones/{milestone_id}
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, milestoneID, err := httputil.ParseProjectPath(r, "milestone_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	milestone, err := h.service.Get(r.Context(), principal, oc, projectID, milestoneID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, milestone)
}

// update handles PUT /projects/{project_id}/milestones/{milestone_id}
func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, milestoneID, err := httputil.ParseProjectPath(r, "milestone_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req UpdateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	milestone, err := h.service.Update(r.Context(), principal, oc, projectID, milestoneID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, milestone)
}

// delete handles DELETE /projects/{project_id}/milestones/{milestone_id}
func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, milestoneID, err := httputil.ParseProjectPath(r, "milestone_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), principal, oc, projectID, milestoneID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
