package staff

import "github.com/orthoflow/practice-service/internal/apperr"

var (
	ErrStaffNotFound    = apperr.NotFound("staff member")
	ErrDuplicateEmail   = apperr.Conflict("a staff member with this email already exists")
	ErrNoFieldsToUpdate = apperr.Invalid("", "no fields to update")
)
