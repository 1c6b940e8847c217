package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
	"github.com/platinummonkey/buildpro/pkg/observability"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse is the wire format of every error returned by the API
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteErrorCode writes an ErrorResponse with an explicit code
func WriteErrorCode(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// WriteAppError translates err into an HTTP response. Typed application
// errors surface their kind and message; anything else is logged with detail
// and reported as a generic internal error.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.Error
	kind := apperrors.KindOf(err)

	if kind == apperrors.KindInternal {
		observability.FromContext(r.Context()).
			WithError(err).
			WithFields(map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			}).
			Error("unhandled error")
		WriteErrorCode(w, kind.Status(), kind.Code(), "internal server error")
		return
	}

	message := err.Error()
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	WriteErrorCode(w, kind.Status(), kind.Code(), message)
}

// WriteBadRequest writes a BAD_REQUEST error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorCode(w, http.StatusBadRequest, apperrors.KindBadRequest.Code(), message)
}

// WriteValidationError writes a VALIDATION_ERROR error (422)
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteErrorCode(w, http.StatusUnprocessableEntity, apperrors.KindValidation.Code(), message)
}

// WriteUnauthorized writes an AUTHENTICATION_ERROR error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorCode(w, http.StatusUnauthorized, apperrors.KindAuthentication.Code(), message)
}

// WriteForbidden writes a PERMISSION_DENIED error (403)
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorCode(w, http.StatusForbidden, apperrors.KindForbidden.Code(), message)
}

// WriteNotFoundError writes a NOT_FOUND error (404)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorCode(w, http.StatusNotFound, apperrors.KindNotFound.Code(), message)
}

// WriteTooManyRequests writes a RATE_LIMIT_EXCEEDED error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorCode(w, http.StatusTooManyRequests, apperrors.KindRateLimited.Code(), message)
}

// WriteInternalError writes a generic INTERNAL_ERROR (500)
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorCode(w, http.StatusInternalServerError, apperrors.KindInternal.Code(), "internal server error")
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a successful response with no content (204 No Content)
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// MessageResponse is the body of endpoints that only acknowledge an action
type MessageResponse struct {
	Message string `json:"message"`
}

// WriteMessage writes {"message": msg} with 200 OK
func WriteMessage(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, MessageResponse{Message: message})
}
