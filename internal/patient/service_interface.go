package patient

import (
	"context"

	"github.com/orthoflow/practice-service/internal/pagination"
)

// ServiceInterface defines the contract for patient business logic operations
type ServiceInterface interface {
	CreatePatient(ctx context.Context, req CreatePatientRequest) (*Patient, error)
	GetPatient(ctx context.Context, id string) (*Detail, error)
	ListPatients(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Result[Patient], error)
	UpdatePatient(ctx context.Context, id string, req UpdatePatientRequest) (*Patient, error)
	DeletePatient(ctx context.Context, id string) error
	FindByEmail(ctx context.Context, email string) (*Patient, error)
	FindByPhone(ctx context.Context, phone string) (*Patient, error)
	GetSummary(ctx context.Context, id string) (*Summary, error)
}

// MetricsRecorder is implemented by *telemetry.Metrics.
type MetricsRecorder interface {
	RecordPatientOperation(ctx context.Context, operation string)
}

var _ ServiceInterface = (*Service)(nil)
