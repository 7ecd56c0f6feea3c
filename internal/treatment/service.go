package treatment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/messaging"
)

const dateLayout = "2006-01-02"

type Service struct {
	repo      RepositoryInterface
	publisher messaging.PublisherInterface
	metrics   MetricsRecorder
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo RepositoryInterface, publisher messaging.PublisherInterface, metrics MetricsRecorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.With().Str("component", "treatment").Logger(),
		now:       time.Now,
	}
}

func (s *Service) CreatePlan(ctx context.Context, req CreatePlanRequest) (*Plan, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.ApplianceType = strings.ToUpper(strings.TrimSpace(req.ApplianceType))
	if req.ApplianceType == "" {
		req.ApplianceType = "OTHER"
	}

	if req.Title == "" {
		return nil, apperr.Invalid("title", "is required")
	}
	if !applianceTypes[req.ApplianceType] {
		return nil, apperr.Invalid("appliance_type", "unknown appliance type %q", req.ApplianceType)
	}
	if req.TotalCostCents < 0 {
		return nil, apperr.Invalid("total_cost_cents", "cannot be negative")
	}
	orthodontistID, err := optionalUUID("orthodontist_id", req.OrthodontistID)
	if err != nil {
		return nil, err
	}
	req.OrthodontistID = orthodontistID
	if err := validateDateRange("estimated_end_date", req.StartDate, req.EstimatedEndDate); err != nil {
		return nil, err
	}
	for i := range req.Phases {
		req.Phases[i].Name = strings.TrimSpace(req.Phases[i].Name)
		if req.Phases[i].Name == "" {
			return nil, apperr.Invalid(fmt.Sprintf("phases[%d].name", i), "is required")
		}
	}

	plan, err := s.repo.CreatePlan(ctx, req)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "create_plan")
	s.logger.Info().Str("plan_id", plan.ID).Str("patient_id", plan.PatientID).Int("phases", len(plan.Phases)).Msg("treatment plan created")
	return plan, nil
}

func (s *Service) GetPlan(ctx context.Context, id string) (*Plan, error) {
	return s.repo.GetPlan(ctx, id)
}

func (s *Service) ListPlansForPatient(ctx context.Context, patientID string) ([]Plan, error) {
	return s.repo.ListPlansForPatient(ctx, patientID)
}

func (s *Service) UpdatePlan(ctx context.Context, id string, req UpdatePlanRequest) (*Plan, error) {
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, apperr.Invalid("title", "cannot be empty")
		}
		req.Title = &title
	}
	if req.ApplianceType != nil {
		at := strings.ToUpper(strings.TrimSpace(*req.ApplianceType))
		if !applianceTypes[at] {
			return nil, apperr.Invalid("appliance_type", "unknown appliance type %q", at)
		}
		req.ApplianceType = &at
	}
	if req.TotalCostCents != nil && *req.TotalCostCents < 0 {
		return nil, apperr.Invalid("total_cost_cents", "cannot be negative")
	}
	if req.OrthodontistID != nil && *req.OrthodontistID != "" {
		if _, err := uuid.Parse(*req.OrthodontistID); err != nil {
			return nil, apperr.Invalid("orthodontist_id", "must be a UUID")
		}
	}

	if req.StartDate != nil || req.EstimatedEndDate != nil {
		current, err := s.repo.GetPlan(ctx, id)
		if err != nil {
			return nil, err
		}
		start := deref(current.StartDate)
		if req.StartDate != nil {
			start = *req.StartDate
		}
		end := deref(current.EstimatedEndDate)
		if req.EstimatedEndDate != nil {
			end = *req.EstimatedEndDate
		}
		if err := validateDateRange("estimated_end_date", start, end); err != nil {
			return nil, err
		}
	}

	plan, err := s.repo.UpdatePlan(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "update_plan")
	return plan, nil
}

// UpdatePlanStatus applies a status change if the transition table allows it.
func (s *Service) UpdatePlanStatus(ctx context.Context, id, status string) (*Plan, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if _, ok := transitions[status]; !ok && !IsClosed(status) {
		return nil, apperr.Invalid("status", "unknown plan status %q", status)
	}

	current, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, status) {
		return nil, fmt.Errorf("%s -> %s: %w", current.Status, status, ErrInvalidTransition)
	}

	plan, err := s.repo.UpdatePlanStatus(ctx, id, current.Status, status)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "status_"+strings.ToLower(status))
	messaging.Emit(ctx, s.publisher, s.logger, messaging.EventTreatmentPlanStatusChanged, messaging.StatusChangedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventTreatmentPlanStatusChanged),
		Data: messaging.StatusChangedData{
			EntityID:  plan.ID,
			PatientID: plan.PatientID,
			OldStatus: current.Status,
			NewStatus: plan.Status,
			ChangedAt: s.now().UTC(),
		},
	})
	s.logger.Info().Str("plan_id", id).Str("from", current.Status).Str("to", status).Msg("treatment plan status changed")
	return plan, nil
}

func (s *Service) DeletePlan(ctx context.Context, id string) error {
	if err := s.repo.DeletePlan(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "delete_plan")
	return nil
}

func (s *Service) AddPhase(ctx context.Context, planID string, req CreatePhaseRequest) (*Phase, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperr.Invalid("name", "is required")
	}
	if err := s.requireOpenPlan(ctx, planID); err != nil {
		return nil, err
	}

	ph, err := s.repo.AddPhase(ctx, planID, req)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "add_phase")
	return ph, nil
}

func (s *Service) UpdatePhase(ctx context.Context, planID, phaseID string, req UpdatePhaseRequest) (*Phase, error) {
	if err := s.requireOpenPlan(ctx, planID); err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.Invalid("name", "cannot be empty")
		}
		req.Name = &name
	}
	if req.StartDate != nil || req.EndDate != nil {
		current, err := s.repo.GetPhase(ctx, planID, phaseID)
		if err != nil {
			return nil, err
		}
		start := deref(current.StartDate)
		if req.StartDate != nil {
			start = *req.StartDate
		}
		end := deref(current.EndDate)
		if req.EndDate != nil {
			end = *req.EndDate
		}
		if err := validateDateRange("end_date", start, end); err != nil {
			return nil, err
		}
	}
	return s.repo.UpdatePhase(ctx, planID, phaseID, req)
}

// UpdatePhaseStatus changes one phase's status. Completing the last open
// phase leaves the plan status alone; closing a plan is an explicit step.
func (s *Service) UpdatePhaseStatus(ctx context.Context, planID, phaseID, status string) (*Phase, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	if !phaseStatuses[status] {
		return nil, apperr.Invalid("status", "unknown phase status %q", status)
	}

	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if IsClosed(plan.Status) {
		return nil, ErrPlanClosed
	}
	current, err := s.repo.GetPhase(ctx, planID, phaseID)
	if err != nil {
		return nil, err
	}

	ph, err := s.repo.SetPhaseStatus(ctx, planID, phaseID, status, s.now().Format(dateLayout))
	if err != nil {
		return nil, err
	}
	s.record(ctx, "phase_"+strings.ToLower(status))

	if status == PhaseCompleted && current.Status != PhaseCompleted {
		s.publishPhaseCompleted(ctx, plan, ph)
	}
	return ph, nil
}

func (s *Service) publishPhaseCompleted(ctx context.Context, plan *Plan, ph *Phase) {
	phases, err := s.repo.ListPhases(ctx, plan.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("plan_id", plan.ID).Msg("failed to reload phases for progress")
	}
	messaging.Emit(ctx, s.publisher, s.logger, messaging.EventTreatmentPhaseCompleted, messaging.PhaseCompletedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventTreatmentPhaseCompleted),
		Data: messaging.PhaseCompletedData{
			PlanID:    plan.ID,
			PhaseID:   ph.ID,
			PatientID: plan.PatientID,
			Sequence:  ph.Sequence,
			Name:      ph.Name,
			Progress:  Progress(phases),
		},
	})
}

func (s *Service) ReorderPhases(ctx context.Context, planID string, phaseIDs []string) ([]Phase, error) {
	if len(phaseIDs) == 0 {
		return nil, apperr.Invalid("phase_ids", "is required")
	}
	if err := s.requireOpenPlan(ctx, planID); err != nil {
		return nil, err
	}

	phases, err := s.repo.ReorderPhases(ctx, planID, phaseIDs)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "reorder_phases")
	return phases, nil
}

func (s *Service) DeletePhase(ctx context.Context, planID, phaseID string) error {
	if err := s.requireOpenPlan(ctx, planID); err != nil {
		return err
	}
	if err := s.repo.DeletePhase(ctx, planID, phaseID); err != nil {
		return err
	}
	s.record(ctx, "delete_phase")
	return nil
}

func (s *Service) requireOpenPlan(ctx context.Context, planID string) error {
	plan, err := s.repo.GetPlan(ctx, planID)
	if err != nil {
		return err
	}
	if IsClosed(plan.Status) {
		return ErrPlanClosed
	}
	return nil
}

func (s *Service) record(ctx context.Context, op string) {
	if s.metrics != nil {
		s.metrics.RecordTreatmentOperation(ctx, op)
	}
}

func optionalUUID(field string, id *string) (*string, error) {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(strings.TrimSpace(*id))
	if err != nil {
		return nil, apperr.Invalid(field, "must be a UUID")
	}
	out := parsed.String()
	return &out, nil
}

// validateDateRange checks both dates parse and end is not before start.
// Either may be empty.
func validateDateRange(endField, start, end string) error {
	var startT, endT time.Time
	var err error
	if start != "" {
		if startT, err = time.Parse(dateLayout, start); err != nil {
			return apperr.Invalid("start_date", "must be formatted YYYY-MM-DD")
		}
	}
	if end != "" {
		if endT, err = time.Parse(dateLayout, end); err != nil {
			return apperr.Invalid(endField, "must be formatted YYYY-MM-DD")
		}
	}
	if start != "" && end != "" && endT.Before(startT) {
		return apperr.Invalid(endField, "cannot be before start_date")
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
