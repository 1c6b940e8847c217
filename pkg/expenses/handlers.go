package expenses

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/dates"
	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/orgs"
)

// Handlers provides HTTP handlers for expenses
type Handlers struct {
	service *Service
}

// NewHandlers creates expense handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers expense routes on a tenant-scoped router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/projects/{project_id}/expenses", h.list).Methods("GET")
	router.HandleFunc("/projects/{project_id}/expenses", h.create).Methods("POST")
	router.HandleFunc("/projects/{project_id}/expenses/{expense_id}", h.get).Methods("GET")
	router.HandleFunc("/projects/{project_id}/expenses/{expense_id}", h.update).Methods("PUT")
	router.HandleFunc("/projects/{project_id}/expenses/{expense_id}", h.delete).Methods("DELETE")
	router.HandleFunc("/projects/{project_id}/expenses/{expense_id}/approve", h.decide(h.service.Approve)).Methods("PATCH")
	router.HandleFunc("/projects/{project_id}/expenses/{expense_id}/reject", h.decide(h.service.Reject)).Methods("PATCH")
	router.HandleFunc("/projects/{project_id}/expenses/{expense_id}/pay", h.decide(h.service.MarkPaid)).Methods("PATCH")
}

func parseDate(r *http.Request, key string) (*dates.Date, error) {
	t, err := httputil.ParseQueryDate(r, key)
	if err != nil || t == nil {
		return nil, err
	}
	d := dates.New(*t)
	return &d, nil
}

// list handles GET /projects/{project_id}/expenses
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
	filter := ListFilter{Page: page, Category: httputil.ParseQueryString(r, "category")}
	if v := httputil.ParseQueryString(r, "status"); v != "" {
		st, err := ParseStatus(v)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		filter.Status = &st
	}
	if filter.FromDate, err = parseDate(r, "from_date"); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if filter.ToDate, err = parseDate(r, "to_date"); err != nil {
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

// create handles POST /projects/{project_id}/expenses
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
	e, err := h.service.Create(r.Context(), principal, oc, projectID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, e)
}

// get handles GET /projects/{project_id}/expenses/{expense_id}
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, expenseID, err := httputil.ParseProjectPath(r, "expense_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	e, err := h.service.Get(r.Context(), principal, oc, projectID, expenseID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, e)
}

// update handles PUT /projects/{project_id}/expenses/{expense_id}
func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, expenseID, err := httputil.ParseProjectPath(r, "expense_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req UpdateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	e, err := h.service.Update(r.Context(), principal, oc, projectID, expenseID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, e)
}

type decideFunc func(ctx context.Context, principal *auth.Principal, oc *orgs.OrgContext, projectID, expenseID uuid.UUID, req DecisionRequest) (*Expense, error)

// decide handles PATCH .../approve, .../reject and .../pay; the body is
// optional for approve and pay
func (h *Handlers) decide(fn decideFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, oc, err := orgs.RequestScope(r.Context())
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		projectID, expenseID, err := httputil.ParseProjectPath(r, "expense_id")
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		var req DecisionRequest
		if r.ContentLength != 0 {
			if err := httputil.ParseJSON(r, &req); err != nil {
				httputil.WriteAppError(w, r, err)
				return
			}
		}
		e, err := fn(r.Context(), principal, oc, projectID, expenseID, req)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}
		httputil.WriteSuccess(w, e)
	}
}

// delete handles DELETE /projects/{project_id}/expenses/{expense_id}
func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	projectID, expenseID, err := httputil.ParseProjectPath(r, "expense_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), principal, oc, projectID, expenseID); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}
