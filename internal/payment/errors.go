package payment

import "github.com/orthoflow/practice-service/internal/apperr"

var (
	ErrPaymentNotFound   = apperr.NotFound("payment")
	ErrPatientNotFound   = apperr.NotFound("patient")
	ErrPlanMismatch      = apperr.Invalid("treatment_plan_id", "does not belong to the patient")
	ErrInvalidTransition = apperr.Conflict("payment status transition not allowed")
	ErrNotRefundable     = apperr.Conflict("only completed payments can be refunded")
	ErrNotDeletable      = apperr.Conflict("only pending or failed payments can be deleted")
)
