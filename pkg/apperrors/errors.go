package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport translation
type Kind int

const (
	KindInternal Kind = iota
	KindAuthentication
	KindInvalidCredentials
	KindTokenExpired
	KindInvalidToken
	KindForbidden
	KindNotFound
	KindBadRequest
	KindValidation
	KindConflict
	KindRateLimited
)

var kindInfo = map[Kind]struct {
	code   string
	status int
}{
	KindInternal:           {"INTERNAL_ERROR", http.StatusInternalServerError},
	KindAuthentication:     {"AUTHENTICATION_ERROR", http.StatusUnauthorized},
	KindInvalidCredentials: {"INVALID_CREDENTIALS", http.StatusUnauthorized},
	KindTokenExpired:       {"TOKEN_EXPIRED", http.StatusUnauthorized},
	KindInvalidToken:       {"INVALID_TOKEN", http.StatusUnauthorized},
	KindForbidden:          {"PERMISSION_DENIED", http.StatusForbidden},
	KindNotFound:           {"NOT_FOUND", http.StatusNotFound},
	KindBadRequest:         {"BAD_REQUEST", http.StatusBadRequest},
	KindValidation:         {"VALIDATION_ERROR", http.StatusUnprocessableEntity},
	KindConflict:           {"CONFLICT", http.StatusConflict},
	KindRateLimited:        {"RATE_LIMIT_EXCEEDED", http.StatusTooManyRequests},
}

// Code returns the stable wire code for the kind
func (k Kind) Code() string {
	if info, ok := kindInfo[k]; ok {
		return info.code
	}
	return kindInfo[KindInternal].code
}

// Status returns the HTTP status code for the kind
func (k Kind) Status() int {
	if info, ok := kindInfo[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

func (k Kind) String() string {
	return k.Code()
}

// Error is a typed application error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same kind, so errors.Is(err,
// apperrors.ErrNotFound) works for any not-found error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons by kind
var (
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrTokenExpired   = &Error{Kind: KindTokenExpired}
	ErrInvalidToken   = &Error{Kind: KindInvalidToken}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrBadRequest     = &Error{Kind: KindBadRequest}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrConflict       = &Error{Kind: KindConflict}
)

// New creates an error of the given kind
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for untyped errors
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func Authentication(message string) *Error {
	return &Error{Kind: KindAuthentication, Message: message}
}

func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "invalid email or password"}
}

func TokenExpired() *Error {
	return &Error{Kind: KindTokenExpired, Message: "token has expired"}
}

func InvalidToken(message string) *Error {
	if message == "" {
		message = "invalid token"
	}
	return &Error{Kind: KindInvalidToken, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound builds "<entity> not found"
func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func RateLimited(message string) *Error {
	return &Error{Kind: KindRateLimited, Message: message}
}
