package appointment

import "github.com/orthoflow/practice-service/internal/apperr"

var (
	ErrAppointmentNotFound = apperr.NotFound("appointment")
	ErrPatientNotFound     = apperr.NotFound("patient")
	ErrScheduleConflict    = apperr.Conflict("staff member already has an appointment in this time slot")
	ErrInvalidTransition   = apperr.Conflict("appointment status transition not allowed")
	ErrNotDeletable        = apperr.Conflict("only scheduled or cancelled appointments can be deleted")
	ErrNoFieldsToUpdate    = apperr.Invalid("", "no fields to update")
)
