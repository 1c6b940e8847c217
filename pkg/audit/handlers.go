package audit

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/httputil"
	"github.com/platinummonkey/buildpro/pkg/orgs"
	"github.com/platinummonkey/buildpro/pkg/rbac"
)

// Handlers provides HTTP handlers for audit log API
type Handlers struct {
	store *Store
}

// NewHandlers creates new audit handlers
func NewHandlers(store *Store) *Handlers {
	return &Handlers{store: store}
}

// RegisterRoutes registers audit log routes on a tenant-scoped router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit-logs", h.list).Methods("GET")
}

// list handles GET /audit-logs
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	principal, oc, err := orgs.RequestScope(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	if !oc.IsAdmin() && !principal.Can(rbac.PermUsersManage) {
		httputil.WriteAppError(w, r, apperrors.Forbidden("only organization admins can view audit logs"))
		return
	}

	page, err := httputil.ParsePagination(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	userID, err := httputil.ParseQueryUUID(r, "user_id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	filter := ListFilter{
		EntityType: httputil.ParseQueryString(r, "entity_type"),
		Action:     Action(strings.ToUpper(httputil.ParseQueryString(r, "action"))),
		UserID:     userID,
		Page:       page,
	}

	result, err := h.store.List(r.Context(), oc.OrgID(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}
