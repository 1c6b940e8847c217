package projects

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/orgs"
)

// Handlers provides HTTP handlers for projects and project members
type Handlers struct {
	service *Service
}

// NewHandlers creates project handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers project routes on a tenant-scoped router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects", h.list).Methods("GET")
	router.HandleFunc("/projects", h.create).Methods("POST")
	router.HandleFunc("/projects/{project_id}", h.get).Methods("GET")
	router.HandleFunc("/projects/{project_id}", h.update).Methods("PUT")
	router.HandleFunc("/projects/{project_id}", h.delete).Methods("DELETE")
	router.HandleFunc("/projects/{project_id}/members", h.listMembers).Methods("GET")
	router.HandleFunc("/projects/{project_id}/members", h.addMember).Methods("POST")
	router.HandleFunc("/projects/{project_id}/members/{user_id}", h.updateMember).Methods("PUT")
	router.HandleFunc("/projects/{project_id}/members/{user_id}", h.removeMember).Methods("DELETE")
}

// list handles GET /projects
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

	filter := ListFilter{Page: page, Search: httputil.ParseQueryString(r, "search")}
	if v := httputil.ParseQueryString(r, "status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Status = &st
	}
	if v := httputil.ParseQueryString(r, "priority"); v != "" {
		pr, err := ParsePriority(v)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Priority = &pr
	}

	result, err := h.service.List(r.Context(), principal, oc, filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// create handles POST /projects
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
	project, err := h.service.Create(r.Context(), principal, oc, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, project)
}

// get handles GET /projects/{project_id}
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
	project, err := h.service.Get(r.Context(), principal, oc, projectID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// update handles PUT /projects/{project_id}
func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	project, err := h.service.Update(r.Context(), principal, oc, projectID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, project)
}

// delete handles DELETE /projects/{project_id}
func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.Delete(r.Context(), principal, oc, projectID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listMembers handles GET /projects/{project_id}/members
func (h *Handlers) listMembers(w http.ResponseWriter, r *http.Request) {
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
	members, err := h.service.ListMembers(r.Context(), principal, oc, projectID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

// addMember handles POST /projects/{project_id}/members
func (h *Handlers) addMember(w http.ResponseWriter, r *http.Request) {
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
	var req AddMemberRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	member, err := h.service.AddMember(r.Context(), principal, oc, projectID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, member)
}

// updateMember handles PUT /projects/{project_id}/members/{user_id}
func (h *Handlers) updateMember(w http.ResponseWriter, r *http.Request) {
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
	userID, err := httputil.ParsePathUUID(r, "user_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req UpdateMemberRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	member, err := h.service.UpdateMember(r.Context(), principal, oc, projectID, userID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, member)
}

// removeMember handles DELETE /projects/{project_id}/members/{user_id}
func (h *Handlers) removeMember(w http.ResponseWriter, r *http.Request) {
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
	userID, err := httputil.ParsePathUUID(r, "user_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.RemoveMember(r.Context(), principal, oc, projectID, userID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
