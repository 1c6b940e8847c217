package audit

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	apiPrefix         = "/api/"
	maxUserAgentBytes = 200
)

// skipPaths carry credentials rather than entity changes
var skipPaths = map[string]bool{
	"/api/v1/auth/login":   true,
	"/api/v1/auth/refresh": true,
	"/api/v1/auth/logout":  true,
}

// ActionFor maps a mutating method to its action; ok is false for reads
func ActionFor(method string) (Action, bool) {
	switch method {
	case http.MethodPost:
		return ActionCreate, true
	case http.MethodPut, http.MethodPatch:
		return ActionUpdate, true
	case http.MethodDelete:
		return ActionDelete, true
	}
	return "", false
}

// Audited reports whether a request to path with method is recorded
func Audited(method, path string) bool {
	if _, ok := ActionFor(method); !ok {
		return false
	}
	return strings.HasPrefix(path, apiPrefix) && !skipPaths[path]
}

// EntityType names the resource of an /api/v1 path: the segment after the
// version, or the nested resource under a parent id. "/api/v1/projects/{id}/
// change-orders" gives "Change_order".
func EntityType(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 {
		return "Unknown"
	}
	entity := parts[2]
	if len(parts) >= 5 {
		entity = parts[4]
	}
	entity = strings.TrimSuffix(strings.ReplaceAll(entity, "-", "_"), "s")
	if entity == "" {
		return "Unknown"
	}
	return strings.ToUpper(entity[:1]) + strings.ToLower(entity[1:])
}

// EntityID returns the last id segment of path, if any
func EntityID(path string) *uuid.UUID {
	var found *uuid.UUID
	for _, part := range strings.Split(path, "/") {
		if len(part) != 36 {
			continue
		}
		if id, err := uuid.Parse(part); err == nil {
			found = &id
		}
	}
	return found
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
