package assessment

import "github.com/orthoflow/practice-service/internal/apperr"

var (
	ErrAssessmentNotFound = apperr.NotFound("assessment")
	ErrPatientNotFound    = apperr.NotFound("patient")
)
