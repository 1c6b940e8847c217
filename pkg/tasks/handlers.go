package tasks

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/projects"
)

// Handlers provides HTTP handlers for tasks
type Handlers struct {
	service *Service
}

// NewHandlers creates task handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers task routes on a tenant-scoped router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{project_id}/tasks", h.list).Methods("GET")
	router.HandleFunc("/projects/{project_id}/tasks", h.create).Methods("POST")
	router.HandleFunc("/projects/{project_id}/tasks/{task_id}", h.get).Methods("GET")
	router.HandleFunc("/projects/{project_id}/tasks/{task_id}", h.update).Methods("PUT")
	router.HandleFunc("/projects/{project_id}/tasks/{task_id}", h.delete).Methods("DELETE")
	router.HandleFunc("/projects/{project_id}/tasks/{task_id}/status", h.updateStatus).Methods("PATCH")
	router.HandleFunc("/projects/{project_id}/tasks/{task_id}/progress", h.updateProgress).Methods("PATCH")
}

// list handles GET /projects/{project_id}/tasks
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
		pr, err := projects.ParsePriority(v)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Priority = &pr
	}
	if filter.AssigneeID, err = httputil.ParseQueryUUID(r, "assignee_id"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	result, err := h.service.List(r.Context(), principal, oc, projectID, filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// create handles POST /projects/{project_id}/tasks
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
	task, err := h.service.Create(r.Context(), principal, oc, projectID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, task)
}

// get handles GET /projects/{project_id}/tasks/{task_id}
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, taskID, err := httputil.ParseProjectPath(r, "task_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	task, err := h.service.Get(r.Context(), principal, oc, projectID, taskID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

// update handles PUT /projects/{project_id}/tasks/{task_id}
func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, taskID, err := httputil.ParseProjectPath(r, "task_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req UpdateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	task, err := h.service.Update(r.Context(), principal, oc, projectID, taskID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

// updateStatus handles PATCH /projects/{project_id}/tasks/{task_id}/status
func (h *Handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, taskID, err := httputil.ParseProjectPath(r, "task_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req StatusRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	task, err := h.service.UpdateStatus(r.Context(), principal, oc, projectID, taskID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

// updateProgress handles PATCH /projects/{project_id}/tasks/{task_id}/progress
func (h *Handlers) updateProgress(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, taskID, err := httputil.ParseProjectPath(r, "task_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req ProgressRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	task, err := h.service.UpdateProgress(r.Context(), principal, oc, projectID, taskID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

// delete handles DELETE /projects/{project_id}/tasks/{task_id}
func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, taskID, err := httputil.ParseProjectPath(r, "task_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), principal, oc, projectID, taskID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
