package staff

import (
	"context"

	"github.com/orthoflow/practice-service/internal/pagination"
)

type ServiceInterface interface {
	CreateStaff(ctx context.Context, req CreateStaffRequest) (*Member, error)
	GetStaff(ctx context.Context, id string) (*Member, error)
	ListStaff(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Result[Member], error)
	UpdateStaff(ctx context.Context, id string, req UpdateStaffRequest) (*Member, error)
	DeactivateStaff(ctx context.Context, id string) error
}

var _ ServiceInterface = (*Service)(nil)
