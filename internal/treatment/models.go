package treatment

import "time"

// Plan statuses.
const (
	StatusPlanned   = "PLANNED"
	StatusActive    = "ACTIVE"
	StatusOnHold    = "ON_HOLD"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Phase statuses.
const (
	PhasePending    = "PENDING"
	PhaseInProgress = "IN_PROGRESS"
	PhaseCompleted  = "COMPLETED"
	PhaseSkipped    = "SKIPPED"
)

var applianceTypes = map[string]bool{
	"BRACES_METAL":   true,
	"BRACES_CERAMIC": true,
	"ALIGNERS":       true,
	"RETAINER":       true,
	"EXPANDER":       true,
	"OTHER":          true,
}

var phaseStatuses = map[string]bool{
	PhasePending:    true,
	PhaseInProgress: true,
	PhaseCompleted:  true,
	PhaseSkipped:    true,
}

// Plan is a course of treatment for one patient, split into ordered phases.
type Plan struct {
	ID               string     `json:"id"`
	PatientID        string     `json:"patient_id"`
	OrthodontistID   *string    `json:"orthodontist_id,omitempty"`
	Title            string     `json:"title"`
	Diagnosis        string     `json:"diagnosis,omitempty"`
	Description      string     `json:"description,omitempty"`
	ApplianceType    string     `json:"appliance_type"`
	Status           string     `json:"status"`
	StartDate        *string    `json:"start_date,omitempty"`
	EstimatedEndDate *string    `json:"estimated_end_date,omitempty"`
	TotalCostCents   int64      `json:"total_cost_cents"`
	Progress         int        `json:"progress"`
	Phases           []Phase    `json:"phases"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// Phase is one step of a plan. Sequences run 1..n without gaps.
type Phase struct {
	ID          string     `json:"id"`
	PlanID      string     `json:"plan_id"`
	Sequence    int        `json:"sequence"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	StartDate   *string    `json:"start_date,omitempty"`
	EndDate     *string    `json:"end_date,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

type CreatePlanRequest struct {
	PatientID        string               `json:"-"`
	OrthodontistID   *string              `json:"orthodontist_id,omitempty"`
	Title            string               `json:"title"`
	Diagnosis        string               `json:"diagnosis"`
	Description      string               `json:"description"`
	ApplianceType    string               `json:"appliance_type"`
	StartDate        string               `json:"start_date"`
	EstimatedEndDate string               `json:"estimated_end_date"`
	TotalCostCents   int64                `json:"total_cost_cents"`
	Phases           []CreatePhaseRequest `json:"phases"`
}

type UpdatePlanRequest struct {
	OrthodontistID   *string `json:"orthodontist_id,omitempty"`
	Title            *string `json:"title,omitempty"`
	Diagnosis        *string `json:"diagnosis,omitempty"`
	Description      *string `json:"description,omitempty"`
	ApplianceType    *string `json:"appliance_type,omitempty"`
	StartDate        *string `json:"start_date,omitempty"`
	EstimatedEndDate *string `json:"estimated_end_date,omitempty"`
	TotalCostCents   *int64  `json:"total_cost_cents,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type CreatePhaseRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Notes       string `json:"notes"`
}

type UpdatePhaseRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Notes       *string `json:"notes,omitempty"`
	StartDate   *string `json:"start_date,omitempty"`
	EndDate     *string `json:"end_date,omitempty"`
}

type ReorderRequest struct {
	PhaseIDs []string `json:"phase_ids"`
}
