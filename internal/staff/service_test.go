package staff

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/messaging"
	"github.com/orthoflow/practice-service/internal/pagination"
	"github.com/orthoflow/practice-service/internal/testutil"
)

type mockRepository struct {
	createFunc     func(ctx context.Context, req CreateStaffRequest) (*Member, error)
	getFunc        func(ctx context.Context, id string) (*Member, error)
	listFunc       func(ctx context.Context, filter ListFilter, params pagination.Params) ([]Member, int, error)
	updateFunc     func(ctx context.Context, id string, req UpdateStaffRequest) (*Member, error)
	deactivateFunc func(ctx context.Context, id string) (*Member, error)
}

func (m *mockRepository) Create(ctx context.Context, req CreateStaffRequest) (*Member, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRepository) Get(ctx context.Context, id string) (*Member, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, ErrStaffNotFound
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]Member, int, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter, params)
	}
	return nil, 0, errors.New("not implemented")
}

func (m *mockRepository) Update(ctx context.Context, id string, req UpdateStaffRequest) (*Member, error) {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockRepository) Deactivate(ctx context.Context, id string) (*Member, error) {
	if m.deactivateFunc != nil {
		return m.deactivateFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func TestCreateStaff_NormalizesAndPublishes(t *testing.T) {
	var got CreateStaffRequest
	repo := &mockRepository{
		createFunc: func(ctx context.Context, req CreateStaffRequest) (*Member, error) {
			got = req
			return &Member{ID: "s-1", FullName: req.FullName, Email: req.Email, Role: req.Role, IsActive: true}, nil
		},
	}
	pub := testutil.NewMockPublisher()
	svc := NewService(repo, pub, zerolog.Nop())

	m, err := svc.CreateStaff(context.Background(), CreateStaffRequest{
		FullName: " Dr. Mara Ionescu ",
		Email:    "Mara@Practice.test",
		Role:     "orthodontist",
	})
	require.NoError(t, err)
	assert.Equal(t, "s-1", m.ID)
	assert.Equal(t, "Dr. Mara Ionescu", got.FullName)
	assert.Equal(t, "mara@practice.test", got.Email)
	assert.Equal(t, RoleOrthodontist, got.Role)

	var event messaging.StaffEvent
	pub.DecodeLast(t, messaging.EventStaffCreated, &event)
	assert.Equal(t, "s-1", event.Data.StaffID)
	assert.Equal(t, RoleOrthodontist, event.Data.Role)
}

func TestCreateStaff_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   CreateStaffRequest
		field string
	}{
		{"missing name", CreateStaffRequest{Email: "a@b.test", Role: RoleAssistant}, "full_name"},
		{"missing email", CreateStaffRequest{FullName: "A", Role: RoleAssistant}, "email"},
		{"bad email", CreateStaffRequest{FullName: "A", Email: "nope", Role: RoleAssistant}, "email"},
		{"unknown role", CreateStaffRequest{FullName: "A", Email: "a@b.test", Role: "DENTIST"}, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&mockRepository{}, nil, zerolog.Nop())
			_, err := svc.CreateStaff(context.Background(), tt.req)

			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestListStaff_RejectsUnknownRole(t *testing.T) {
	svc := NewService(&mockRepository{}, nil, zerolog.Nop())
	_, err := svc.ListStaff(context.Background(), ListFilter{Role: "janitor"}, pagination.Params{})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestListStaff_UpperCasesRole(t *testing.T) {
	var seen ListFilter
	repo := &mockRepository{
		listFunc: func(ctx context.Context, filter ListFilter, params pagination.Params) ([]Member, int, error) {
			seen = filter
			return []Member{{ID: "s-1"}}, 1, nil
		},
	}
	svc := NewService(repo, nil, zerolog.Nop())

	res, err := svc.ListStaff(context.Background(), ListFilter{Role: "assistant"}, pagination.Params{})
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, seen.Role)
	assert.Equal(t, 1, res.Meta.TotalRecords)
}

func TestUpdateStaff_ValidatesRole(t *testing.T) {
	svc := NewService(&mockRepository{}, nil, zerolog.Nop())
	role := "boss"
	_, err := svc.UpdateStaff(context.Background(), "s-1", UpdateStaffRequest{Role: &role})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestDeactivateStaff(t *testing.T) {
	repo := &mockRepository{
		deactivateFunc: func(ctx context.Context, id string) (*Member, error) {
			return &Member{ID: id, Role: RoleReceptionist}, nil
		},
	}
	pub := testutil.NewMockPublisher()
	svc := NewService(repo, pub, zerolog.Nop())

	require.NoError(t, svc.DeactivateStaff(context.Background(), "s-1"))
	pub.AssertPublished(t, messaging.EventStaffDeactivated, 1)
}

func TestDeactivateStaff_NotFound(t *testing.T) {
	repo := &mockRepository{
		deactivateFunc: func(ctx context.Context, id string) (*Member, error) {
			return nil, ErrStaffNotFound
		},
	}
	pub := testutil.NewMockPublisher()
	svc := NewService(repo, pub, zerolog.Nop())

	assert.ErrorIs(t, svc.DeactivateStaff(context.Background(), "s-1"), apperr.ErrNotFound)
	assert.Empty(t, pub.Events())
}
