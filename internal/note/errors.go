package note

import "github.com/orthoflow/practice-service/internal/apperr"

var (
	ErrNoteNotFound     = apperr.NotFound("clinical note")
	ErrPatientNotFound  = apperr.NotFound("patient")
	ErrNoFieldsToUpdate = apperr.Invalid("", "no fields to update")
)
