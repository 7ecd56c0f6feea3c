package treatment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/messaging"
	"github.com/orthoflow/practice-service/internal/testutil"
)

var errNotImplemented = errors.New("not implemented")

type mockRepository struct {
	createPlanFunc       func(ctx context.Context, req CreatePlanRequest) (*Plan, error)
	getPlanFunc          func(ctx context.Context, id string) (*Plan, error)
	listPlansFunc        func(ctx context.Context, patientID string) ([]Plan, error)
	updatePlanFunc       func(ctx context.Context, id string, req UpdatePlanRequest) (*Plan, error)
	updatePlanStatusFunc func(ctx context.Context, id, from, to string) (*Plan, error)
	deletePlanFunc       func(ctx context.Context, id string) error
	addPhaseFunc         func(ctx context.Context, planID string, req CreatePhaseRequest) (*Phase, error)
	getPhaseFunc         func(ctx context.Context, planID, phaseID string) (*Phase, error)
	listPhasesFunc       func(ctx context.Context, planID string) ([]Phase, error)
	updatePhaseFunc      func(ctx context.Context, planID, phaseID string, req UpdatePhaseRequest) (*Phase, error)
	setPhaseStatusFunc   func(ctx context.Context, planID, phaseID, status, today string) (*Phase, error)
	reorderPhasesFunc    func(ctx context.Context, planID string, phaseIDs []string) ([]Phase, error)
	deletePhaseFunc      func(ctx context.Context, planID, phaseID string) error
}

func (m *mockRepository) CreatePlan(ctx context.Context, req CreatePlanRequest) (*Plan, error) {
	if m.createPlanFunc != nil {
		return m.createPlanFunc(ctx, req)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) GetPlan(ctx context.Context, id string) (*Plan, error) {
	if m.getPlanFunc != nil {
		return m.getPlanFunc(ctx, id)
	}
	return nil, ErrPlanNotFound
}

func (m *mockRepository) ListPlansForPatient(ctx context.Context, patientID string) ([]Plan, error) {
	if m.listPlansFunc != nil {
		return m.listPlansFunc(ctx, patientID)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) UpdatePlan(ctx context.Context, id string, req UpdatePlanRequest) (*Plan, error) {
	if m.updatePlanFunc != nil {
		return m.updatePlanFunc(ctx, id, req)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) UpdatePlanStatus(ctx context.Context, id, from, to string) (*Plan, error) {
	if m.updatePlanStatusFunc != nil {
		return m.updatePlanStatusFunc(ctx, id, from, to)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) DeletePlan(ctx context.Context, id string) error {
	if m.deletePlanFunc != nil {
		return m.deletePlanFunc(ctx, id)
	}
	return errNotImplemented
}

func (m *mockRepository) AddPhase(ctx context.Context, planID string, req CreatePhaseRequest) (*Phase, error) {
	if m.addPhaseFunc != nil {
		return m.addPhaseFunc(ctx, planID, req)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) GetPhase(ctx context.Context, planID, phaseID string) (*Phase, error) {
	if m.getPhaseFunc != nil {
		return m.getPhaseFunc(ctx, planID, phaseID)
	}
	return nil, ErrPhaseNotFound
}

func (m *mockRepository) ListPhases(ctx context.Context, planID string) ([]Phase, error) {
	if m.listPhasesFunc != nil {
		return m.listPhasesFunc(ctx, planID)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) UpdatePhase(ctx context.Context, planID, phaseID string, req UpdatePhaseRequest) (*Phase, error) {
	if m.updatePhaseFunc != nil {
		return m.updatePhaseFunc(ctx, planID, phaseID, req)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) SetPhaseStatus(ctx context.Context, planID, phaseID, status, today string) (*Phase, error) {
	if m.setPhaseStatusFunc != nil {
		return m.setPhaseStatusFunc(ctx, planID, phaseID, status, today)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) ReorderPhases(ctx context.Context, planID string, phaseIDs []string) ([]Phase, error) {
	if m.reorderPhasesFunc != nil {
		return m.reorderPhasesFunc(ctx, planID, phaseIDs)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) DeletePhase(ctx context.Context, planID, phaseID string) error {
	if m.deletePhaseFunc != nil {
		return m.deletePhaseFunc(ctx, planID, phaseID)
	}
	return errNotImplemented
}

func newTestService(repo RepositoryInterface) (*Service, *testutil.MockPublisher) {
	pub := testutil.NewMockPublisher()
	svc := NewService(repo, pub, nil, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return svc, pub
}

func planWithStatus(status string) func(ctx context.Context, id string) (*Plan, error) {
	return func(ctx context.Context, id string) (*Plan, error) {
		return &Plan{ID: id, PatientID: "p-1", Status: status}, nil
	}
}

func TestCreatePlan_Defaults(t *testing.T) {
	var got CreatePlanRequest
	repo := &mockRepository{
		createPlanFunc: func(ctx context.Context, req CreatePlanRequest) (*Plan, error) {
			got = req
			return &Plan{ID: "plan-1", PatientID: req.PatientID, Status: StatusPlanned}, nil
		},
	}
	svc, _ := newTestService(repo)

	empty := ""
	_, err := svc.CreatePlan(context.Background(), CreatePlanRequest{
		PatientID:      "p-1",
		Title:          " Class II correction ",
		OrthodontistID: &empty,
		Phases:         []CreatePhaseRequest{{Name: "Bonding"}, {Name: " Levelling "}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Class II correction", got.Title)
	assert.Equal(t, "OTHER", got.ApplianceType)
	assert.Nil(t, got.OrthodontistID)
	assert.Equal(t, "Levelling", got.Phases[1].Name)
}

func TestCreatePlan_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   CreatePlanRequest
		field string
	}{
		{"missing title", CreatePlanRequest{}, "title"},
		{"unknown appliance", CreatePlanRequest{Title: "x", ApplianceType: "headgear"}, "appliance_type"},
		{"negative cost", CreatePlanRequest{Title: "x", TotalCostCents: -1}, "total_cost_cents"},
		{"bad start", CreatePlanRequest{Title: "x", StartDate: "soon"}, "start_date"},
		{"end before start", CreatePlanRequest{Title: "x", StartDate: "2026-05-01", EstimatedEndDate: "2026-04-01"}, "estimated_end_date"},
		{"blank phase", CreatePlanRequest{Title: "x", Phases: []CreatePhaseRequest{{Name: "a"}, {Name: " "}}}, "phases[1].name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(&mockRepository{})
			_, err := svc.CreatePlan(context.Background(), tt.req)

			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestUpdatePlanStatus_AllowedTransitionPublishes(t *testing.T) {
	repo := &mockRepository{
		getPlanFunc: planWithStatus(StatusPlanned),
		updatePlanStatusFunc: func(ctx context.Context, id, from, to string) (*Plan, error) {
			assert.Equal(t, StatusPlanned, from)
			return &Plan{ID: id, PatientID: "p-1", Status: to}, nil
		},
	}
	svc, pub := newTestService(repo)

	plan, err := svc.UpdatePlanStatus(context.Background(), "plan-1", "active")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, plan.Status)

	var event messaging.StatusChangedEvent
	pub.DecodeLast(t, messaging.EventTreatmentPlanStatusChanged, &event)
	assert.Equal(t, StatusPlanned, event.Data.OldStatus)
	assert.Equal(t, StatusActive, event.Data.NewStatus)
	assert.Equal(t, "p-1", event.Data.PatientID)
}

func TestUpdatePlanStatus_RejectsInvalidTransition(t *testing.T) {
	repo := &mockRepository{getPlanFunc: planWithStatus(StatusCompleted)}
	svc, pub := newTestService(repo)

	_, err := svc.UpdatePlanStatus(context.Background(), "plan-1", StatusActive)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Empty(t, pub.Events())
}

func TestUpdatePlanStatus_UnknownStatus(t *testing.T) {
	svc, _ := newTestService(&mockRepository{})
	_, err := svc.UpdatePlanStatus(context.Background(), "plan-1", "PAUSED")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestUpdatePhaseStatus_CompletionPublishesProgress(t *testing.T) {
	var today string
	repo := &mockRepository{
		getPlanFunc: planWithStatus(StatusActive),
		getPhaseFunc: func(ctx context.Context, planID, phaseID string) (*Phase, error) {
			return &Phase{ID: phaseID, PlanID: planID, Status: PhaseInProgress}, nil
		},
		setPhaseStatusFunc: func(ctx context.Context, planID, phaseID, status, d string) (*Phase, error) {
			today = d
			return &Phase{ID: phaseID, PlanID: planID, Sequence: 2, Name: "Levelling", Status: status}, nil
		},
		listPhasesFunc: func(ctx context.Context, planID string) ([]Phase, error) {
			return []Phase{{Status: PhaseCompleted}, {Status: PhaseCompleted}, {Status: PhasePending}, {Status: PhasePending}}, nil
		},
	}
	svc, pub := newTestService(repo)

	_, err := svc.UpdatePhaseStatus(context.Background(), "plan-1", "ph-2", "completed")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19", today)

	var event messaging.PhaseCompletedEvent
	pub.DecodeLast(t, messaging.EventTreatmentPhaseCompleted, &event)
	assert.Equal(t, 50, event.Data.Progress)
	assert.Equal(t, 2, event.Data.Sequence)
}

func TestUpdatePhaseStatus_AlreadyCompletedDoesNotRepublish(t *testing.T) {
	repo := &mockRepository{
		getPlanFunc: planWithStatus(StatusActive),
		getPhaseFunc: func(ctx context.Context, planID, phaseID string) (*Phase, error) {
			return &Phase{ID: phaseID, Status: PhaseCompleted}, nil
		},
		setPhaseStatusFunc: func(ctx context.Context, planID, phaseID, status, d string) (*Phase, error) {
			return &Phase{ID: phaseID, Status: status}, nil
		},
	}
	svc, pub := newTestService(repo)

	_, err := svc.UpdatePhaseStatus(context.Background(), "plan-1", "ph-1", PhaseCompleted)
	require.NoError(t, err)
	pub.AssertPublished(t, messaging.EventTreatmentPhaseCompleted, 0)
}

func TestPhaseChangesBlockedOnClosedPlan(t *testing.T) {
	repo := &mockRepository{getPlanFunc: planWithStatus(StatusCancelled)}
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.AddPhase(ctx, "plan-1", CreatePhaseRequest{Name: "Retention"})
	assert.ErrorIs(t, err, ErrPlanClosed)

	_, err = svc.UpdatePhaseStatus(ctx, "plan-1", "ph-1", PhaseInProgress)
	assert.ErrorIs(t, err, ErrPlanClosed)

	_, err = svc.ReorderPhases(ctx, "plan-1", []string{"a"})
	assert.ErrorIs(t, err, ErrPlanClosed)

	assert.ErrorIs(t, svc.DeletePhase(ctx, "plan-1", "ph-1"), ErrPlanClosed)

	name := "Renamed"
	_, err = svc.UpdatePhase(ctx, "plan-1", "ph-1", UpdatePhaseRequest{Name: &name})
	assert.ErrorIs(t, err, ErrPlanClosed)
}

func TestUpdatePhase_ClosedPlanIsLocked(t *testing.T) {
	updated := false
	repo := &mockRepository{
		getPlanFunc: planWithStatus(StatusCompleted),
		updatePhaseFunc: func(ctx context.Context, planID, phaseID string, req UpdatePhaseRequest) (*Phase, error) {
			updated = true
			return &Phase{ID: phaseID, Name: *req.Name}, nil
		},
	}
	svc, _ := newTestService(repo)
	name := "Renamed after completion"

	_, err := svc.UpdatePhase(context.Background(), "plan-1", "ph-1", UpdatePhaseRequest{Name: &name})
	assert.ErrorIs(t, err, ErrPlanClosed)
	assert.False(t, updated)

	repo.getPlanFunc = planWithStatus(StatusActive)
	ph, err := svc.UpdatePhase(context.Background(), "plan-1", "ph-1", UpdatePhaseRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, ph.Name)
	assert.True(t, updated)
}

func TestUpdatePlan_DateRangeUsesStoredStart(t *testing.T) {
	start := "2026-03-01"
	repo := &mockRepository{
		getPlanFunc: func(ctx context.Context, id string) (*Plan, error) {
			return &Plan{ID: id, StartDate: &start}, nil
		},
	}
	svc, _ := newTestService(repo)

	end := "2026-02-01"
	_, err := svc.UpdatePlan(context.Background(), "plan-1", UpdatePlanRequest{EstimatedEndDate: &end})

	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "estimated_end_date", ve.Field)
}
