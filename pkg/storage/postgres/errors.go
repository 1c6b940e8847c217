package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/buildpro/pkg/apperrors"
)

// PostgreSQL error codes translated to application errors
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
)

// MapError translates driver errors: unique violations become Conflict,
// check, not-null and foreign key violations become BadRequest. Anything
// else is wrapped as "failed to <action>" and surfaces as an internal error.
func MapError(err error, action string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case codeUniqueViolation:
			return apperrors.Wrap(apperrors.KindConflict, err, "resource already exists")
		case codeCheckViolation:
			return apperrors.Wrap(apperrors.KindBadRequest, err, fmt.Sprintf("constraint violated: %s", pqErr.Constraint))
		case codeForeignKeyViolation:
			return apperrors.Wrap(apperrors.KindBadRequest, err, "referenced resource does not exist")
		case codeNotNullViolation:
			return apperrors.Wrap(apperrors.KindBadRequest, err, fmt.Sprintf("%s is required", pqErr.Column))
		}
	}

	return fmt.Errorf("failed to %s: %w", action, err)
}

// NotFoundOr maps sql.ErrNoRows to NotFound(entity) and any other error
// through MapError
func NotFoundOr(err error, entity, action string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(entity)
	}
	return MapError(err, action)
}
