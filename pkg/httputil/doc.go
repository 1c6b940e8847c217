// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Errors
//
// Handlers return typed errors from pkg/apperrors and translate them at the
// boundary:
//
//	task, err := h.service.Get(ctx, org, projectID, taskID)
//	if err != nil {
//		httputil.WriteAppError(w, r, err)
//		return
//	}
//
// Every error body has the shape {"error": "<CODE>", "message": "<msg>"}.
// Untyped errors are logged with the request logger and reported as
// INTERNAL_ERROR with a generic message.
//
// # Request Parsing
//
//	id, err := httputil.ParsePathUUID(r, "project_id")
//	page, err := httputil.ParsePagination(r)
//	from, err := httputil.ParseQueryDate(r, "from_date")
//
// All parse helpers return apperrors.Validation on malformed input.
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.RecoveryMiddleware,
//	)
package httputil
