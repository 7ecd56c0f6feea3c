package patient

import (
	"context"
	"time"

	"github.com/orthoflow/practice-service/internal/pagination"
)

// RepositoryInterface defines the contract for patient data access
type RepositoryInterface interface {
	Create(ctx context.Context, req CreatePatientRequest) (*Patient, error)
	Get(ctx context.Context, id string) (*Patient, error)
	Counts(ctx context.Context, id string) (Counts, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]Patient, int, error)
	Update(ctx context.Context, id string, req UpdatePatientRequest) (*Patient, error)
	SoftDelete(ctx context.Context, id string) (time.Time, error)
	FindByEmail(ctx context.Context, email string) (*Patient, error)
	FindByPhone(ctx context.Context, phone string) (*Patient, error)
	Summary(ctx context.Context, id string) (*Summary, error)
}

var _ RepositoryInterface = (*Repository)(nil)
