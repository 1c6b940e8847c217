package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/httputil"
)

const (
	// RefreshCookieName holds the refresh token
	RefreshCookieName = "refresh_token"
	// RefreshCookiePath scopes the refresh cookie to the auth endpoints
	RefreshCookiePath = "/api/v1/auth"
)

// BearerToken extracts the token from an "Authorization: Bearer" header
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// Handlers provides HTTP handlers for authentication
type Handlers struct {
	service       *Service
	secureCookies bool
}

// NewHandlers creates auth handlers. secureCookies marks the refresh cookie
// Secure and should be set in production.
func NewHandlers(service *Service, secureCookies bool) *Handlers {
	return &Handlers{service: service, secureCookies: secureCookies}
}

// RegisterRoutes registers the auth and user routes. requireAuth guards the
// routes that need a principal.
func (h *Handlers) RegisterRoutes(router *mux.Router, requireAuth mux.MiddlewareFunc) {
	router.HandleFunc("/auth/login", h.login).Methods("POST")
	router.HandleFunc("/auth/refresh", h.refresh).Methods("POST")
	router.HandleFunc("/auth/logout", h.logout).Methods("POST")
	router.Handle("/auth/me", requireAuth(http.HandlerFunc(h.me))).Methods("GET")
	router.Handle("/users/me", requireAuth(http.HandlerFunc(h.me))).Methods("GET")
	router.Handle("/users", requireAuth(http.HandlerFunc(h.listUsers))).Methods("GET")
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) setRefreshCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     RefreshCookiePath,
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handlers) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     RefreshCookiePath,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func refreshCookie(r *http.Request) string {
	c, err := r.Cookie(RefreshCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// login handles POST /auth/login
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		httputil.WriteAppError(w, r, apperrors.Validation("email and password are required"))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	h.setRefreshCookie(w, result.RefreshToken, result.RefreshExpiresAt)
	httputil.WriteSuccess(w, result.Response)
}

// refresh handles POST /auth/refresh
func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.Refresh(r.Context(), refreshCookie(r))
	if err != nil {
		h.clearRefreshCookie(w)
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// logout handles POST /auth/logout. It never fails on bad tokens.
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	err := h.service.Logout(r.Context(), BearerToken(r), refreshCookie(r))
	h.clearRefreshCookie(w)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Logged out successfully")
}

// me handles GET /auth/me
func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteAppError(w, r, apperrors.Authentication("authentication required"))
		return
	}
	profile, err := h.service.Me(r.Context(), principal)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, profile)
}

// listUsers handles GET /users
func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteAppError(w, r, apperrors.Authentication("authentication required"))
		return
	}
	users, err := h.service.ListUsers(r.Context(), principal)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, users)
}
