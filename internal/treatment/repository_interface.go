package treatment

import "context"

type RepositoryInterface interface {
	CreatePlan(ctx context.Context, req CreatePlanRequest) (*Plan, error)
	GetPlan(ctx context.Context, id string) (*Plan, error)
	ListPlansForPatient(ctx context.Context, patientID string) ([]Plan, error)
	UpdatePlan(ctx context.Context, id string, req UpdatePlanRequest) (*Plan, error)
	UpdatePlanStatus(ctx context.Context, id, from, to string) (*Plan, error)
	DeletePlan(ctx context.Context, id string) error

	AddPhase(ctx context.Context, planID string, req CreatePhaseRequest) (*Phase, error)
	GetPhase(ctx context.Context, planID, phaseID string) (*Phase, error)
	ListPhases(ctx context.Context, planID string) ([]Phase, error)
	UpdatePhase(ctx context.Context, planID, phaseID string, req UpdatePhaseRequest) (*Phase, error)
	SetPhaseStatus(ctx context.Context, planID, phaseID, status, today string) (*Phase, error)
	ReorderPhases(ctx context.Context, planID string, phaseIDs []string) ([]Phase, error)
	DeletePhase(ctx context.Context, planID, phaseID string) error
}

var _ RepositoryInterface = (*Repository)(nil)
