package patient

import "github.com/orthoflow/practice-service/internal/apperr"

var (
	ErrPatientNotFound  = apperr.NotFound("patient")
	ErrDuplicateEmail   = apperr.Conflict("a patient with this email already exists")
	ErrNoFieldsToUpdate = apperr.Invalid("", "no fields to update")
)
