package treatment

import "context"

type ServiceInterface interface {
	CreatePlan(ctx context.Context, req CreatePlanRequest) (*Plan, error)
	GetPlan(ctx context.Context, id string) (*Plan, error)
	ListPlansForPatient(ctx context.Context, patientID string) ([]Plan, error)
	UpdatePlan(ctx context.Context, id string, req UpdatePlanRequest) (*Plan, error)
	UpdatePlanStatus(ctx context.Context, id, status string) (*Plan, error)
	DeletePlan(ctx context.Context, id string) error

	AddPhase(ctx context.Context, planID string, req CreatePhaseRequest) (*Phase, error)
	UpdatePhase(ctx context.Context, planID, phaseID string, req UpdatePhaseRequest) (*Phase, error)
	UpdatePhaseStatus(ctx context.Context, planID, phaseID, status string) (*Phase, error)
	ReorderPhases(ctx context.Context, planID string, phaseIDs []string) ([]Phase, error)
	DeletePhase(ctx context.Context, planID, phaseID string) error
}

// MetricsRecorder is implemented by *telemetry.Metrics.
type MetricsRecorder interface {
	RecordTreatmentOperation(ctx context.Context, operation string)
}

var _ ServiceInterface = (*Service)(nil)
