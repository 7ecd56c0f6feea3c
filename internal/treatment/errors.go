package treatment

import "github.com/orthoflow/practice-service/internal/apperr"

var (
	ErrPlanNotFound      = apperr.NotFound("treatment plan")
	ErrPhaseNotFound     = apperr.NotFound("treatment phase")
	ErrPatientNotFound   = apperr.NotFound("patient")
	ErrInvalidTransition = apperr.Conflict("treatment plan status transition not allowed")
	ErrPlanClosed        = apperr.Conflict("treatment plan is completed or cancelled")
	ErrStatusChanged     = apperr.Conflict("treatment plan status changed concurrently")
	ErrReorderMismatch   = apperr.Invalid("phase_ids", "must list every phase of the plan exactly once")
	ErrNoFieldsToUpdate  = apperr.Invalid("", "no fields to update")
)
