package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/pagination"
)

// DateLayout is the wire format of calendar dates in query strings
const DateLayout = "2006-01-02"

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return apperrors.Validation("request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apperrors.Validation(fmt.Sprintf("invalid JSON: %v", err))
	}
	return nil
}

// ParsePathUUID extracts and parses a uuid path parameter
func ParsePathUUID(r *http.Request, key string) (uuid.UUID, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return uuid.Nil, apperrors.Validation("missing path parameter: " + key)
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, apperrors.Validation(fmt.Sprintf("invalid uuid for %s: %s", key, str))
	}
	return id, nil
}

// ParseProjectPath parses project_id and the nested resource id named key
func ParseProjectPath(r *http.Request, key string) (projectID, id uuid.UUID, err error) {
	if projectID, err = ParsePathUUID(r, "project_id"); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if id, err = ParsePathUUID(r, key); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return projectID, id, nil
}

// ParseQueryString returns the trimmed query parameter value
func ParseQueryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// ParseQueryUUID parses an optional uuid query parameter; absent yields nil
func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	str := ParseQueryString(r, key)
	if str == "" {
		return nil, nil
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("invalid uuid for %s: %s", key, str))
	}
	return &id, nil
}

// ParseQueryDate parses an optional YYYY-MM-DD query parameter
func ParseQueryDate(r *http.Request, key string) (*time.Time, error) {
	str := ParseQueryString(r, key)
	if str == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, str)
	if err != nil {
		return nil, apperrors.Validation(fmt.Sprintf("invalid date for %s: %s", key, str))
	}
	return &d, nil
}

// ParseQueryInt parses an optional integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := ParseQueryString(r, key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, apperrors.Validation(fmt.Sprintf("invalid integer for %s: %s", key, str))
	}
	return val, nil
}

// ParseQueryBool parses an optional boolean query parameter
func ParseQueryBool(r *http.Request, key string) (bool, error) {
	str := ParseQueryString(r, key)
	if str == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return false, apperrors.Validation(fmt.Sprintf("invalid boolean for %s: %s", key, str))
	}
	return val, nil
}

// ParsePagination reads page and page_size. Missing values take defaults;
// out-of-range values are rejected rather than clamped.
func ParsePagination(r *http.Request) (pagination.Params, error) {
	page, err := ParseQueryInt(r, "page", pagination.DefaultPage)
	if err != nil {
		return pagination.Params{}, err
	}
	if page < 1 {
		return pagination.Params{}, apperrors.Validation("page must be >= 1")
	}

	pageSize, err := ParseQueryInt(r, "page_size", pagination.DefaultPageSize)
	if err != nil {
		return pagination.Params{}, err
	}
	if pageSize < 1 || pageSize > pagination.MaxPageSize {
		return pagination.Params{}, apperrors.Validation(
			fmt.Sprintf("page_size must be between 1 and %d", pagination.MaxPageSize))
	}

	return pagination.Params{Page: page, PageSize: pageSize}, nil
}
