package staff

import (
	"context"

	"github.com/orthoflow/practice-service/internal/pagination"
)

type RepositoryInterface interface {
	Create(ctx context.Context, req CreateStaffRequest) (*Member, error)
	Get(ctx context.Context, id string) (*Member, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]Member, int, error)
	Update(ctx context.Context, id string, req UpdateStaffRequest) (*Member, error)
	Deactivate(ctx context.Context, id string) (*Member, error)
}

var _ RepositoryInterface = (*Repository)(nil)
