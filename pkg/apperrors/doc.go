// Package apperrors defines the closed set of error kinds raised by the
// resolvers and resource services.
//
// Services never write HTTP responses. They return *Error values (or wrap
// them), and the boundary layer in pkg/httputil translates the Kind into a
// status code and a stable error code:
//
//	if err := svc.Approve(ctx, ...); err != nil {
//		httputil.WriteAppError(w, r, err)
//		return
//	}
//
// Anything that is not an *Error is treated as Internal and reported to the
// caller without detail.
package apperrors
