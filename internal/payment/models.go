package payment

import "time"

// Payment methods.
const (
	MethodCash         = "CASH"
	MethodCard         = "CARD"
	MethodBankTransfer = "BANK_TRANSFER"
	MethodInsurance    = "INSURANCE"
	MethodOther        = "OTHER"
)

// Payment statuses.
const (
	StatusPending   = "PENDING"
	StatusCompleted = "COMPLETED"
	StatusRefunded  = "REFUNDED"
	StatusFailed    = "FAILED"
)

const DefaultCurrency = "EUR"

var validMethods = map[string]bool{
	MethodCash: true, MethodCard: true, MethodBankTransfer: true, MethodInsurance: true, MethodOther: true,
}

var validStatuses = map[string]bool{
	StatusPending: true, StatusCompleted: true, StatusRefunded: true, StatusFailed: true,
}

type Payment struct {
	ID              string     `json:"id"`
	PatientID       string     `json:"patient_id"`
	TreatmentPlanID *string    `json:"treatment_plan_id,omitempty"`
	AmountCents     int64      `json:"amount_cents"`
	Currency        string     `json:"currency"`
	Method          string     `json:"method"`
	Status          string     `json:"status"`
	Reference       *string    `json:"reference,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

// CreatePaymentRequest records a payment. Status defaults to COMPLETED
// with paid_at now, matching a payment taken at the front desk.
type CreatePaymentRequest struct {
	PatientID       string     `json:"patient_id"`
	TreatmentPlanID *string    `json:"treatment_plan_id,omitempty"`
	AmountCents     int64      `json:"amount_cents"`
	Currency        string     `json:"currency"`
	Method          string     `json:"method"`
	Status          string     `json:"status"`
	Reference       *string    `json:"reference,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type RefundRequest struct {
	Reason string `json:"reason"`
}

// ListFilter narrows a payment listing. From and To bound the payment date,
// which is paid_at or created_at for unpaid rows.
type ListFilter struct {
	PatientID string
	Status    string
	Method    string
	From      *time.Time
	To        *time.Time
}

type MethodTotal struct {
	Method     string `json:"method"`
	Count      int    `json:"count"`
	TotalCents int64  `json:"total_cents"`
}

// Stats aggregates payments dated within [From, To).
type Stats struct {
	From           time.Time     `json:"from"`
	To             time.Time     `json:"to"`
	Count          int           `json:"count"`
	CollectedCents int64         `json:"collected_cents"`
	PendingCents   int64         `json:"pending_cents"`
	RefundedCents  int64         `json:"refunded_cents"`
	FailedCount    int           `json:"failed_count"`
	ByMethod       []MethodTotal `json:"by_method"`
}

// Balance compares a patient's non-cancelled plan costs with what they paid.
type Balance struct {
	PatientID          string `json:"patient_id"`
	TotalPlanCostCents int64  `json:"total_plan_cost_cents"`
	PaidCents          int64  `json:"paid_cents"`
	RefundedCents      int64  `json:"refunded_cents"`
	PendingCents       int64  `json:"pending_cents"`
	OutstandingCents   int64  `json:"outstanding_cents"`
	CreditCents        int64  `json:"credit_cents"`
}
