package orgs

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/auth"
	"github.com/platinummonkey/buildpro/pkg/httputil"
)

// Handlers provides HTTP handlers for organizations
type Handlers struct {
	service *Service
}

// NewHandlers creates organization handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers organization routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/organizations", h.list).Methods("GET")
	router.HandleFunc("/organizations", h.create).Methods("POST")
	router.HandleFunc("/organizations/{org_id}", h.get).Methods("GET")
	router.HandleFunc("/organizations/{org_id}", h.update).Methods("PUT")
	router.HandleFunc("/organizations/{org_id}/members", h.listMembers).Methods("GET")
	router.HandleFunc("/organizations/{org_id}/members", h.addMember).Methods("POST")
	router.HandleFunc("/organizations/{org_id}/members/{user_id}", h.updateMember).Methods("PATCH")
}

func principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteAppError(w, r, apperrors.Authentication("authentication required"))
	}
	return p, ok
}

// list handles GET /organizations
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	resp, err := h.service.List(r.Context(), p.UserID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// create handles POST /organizations
func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req CreateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	org, err := h.service.Create(r.Context(), p.UserID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, org)
}

// get handles GET /organizations/{org_id}
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.ParsePathUUID(r, "org_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	org, err := h.service.Get(r.Context(), p.UserID, orgID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// update handles PUT /organizations/{org_id}
func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.ParsePathUUID(r, "org_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req UpdateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	org, err := h.service.Update(r.Context(), p.UserID, orgID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, org)
}

// listMembers handles GET /organizations/{org_id}/members
func (h *Handlers) listMembers(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.ParsePathUUID(r, "org_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	members, err := h.service.ListMembers(r.Context(), p.UserID, orgID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, members)
}

// addMember handles POST /organizations/{org_id}/members
func (h *Handlers) addMember(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.ParsePathUUID(r, "org_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	var req AddMemberRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	member, err := h.service.AddMember(r.Context(), p.UserID, orgID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteCreated(w, member)
}

// updateMember handles PATCH /organizations/{org_id}/members/{user_id}
func (h *Handlers) updateMember(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	orgID, err := httputil.ParsePathUUID(r, "org_id")
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
	member, err := h.service.UpdateMember(r.Context(), p.UserID, orgID, userID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, member)
}
