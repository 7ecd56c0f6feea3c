package appointment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/messaging"
	"github.com/orthoflow/practice-service/internal/pagination"
)

const (
	defaultUpcomingLimit = 5
	maxUpcomingLimit     = 50
	maxDuration          = 8 * time.Hour
)

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
		logger:    logger.With().Str("component", "appointment").Logger(),
		now:       time.Now,
	}
}

var _ ServiceInterface = (*Service)(nil)

func (s *Service) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*Appointment, error) {
	patientID, err := uuid.Parse(strings.TrimSpace(req.PatientID))
	if err != nil {
		return nil, apperr.Invalid("patient_id", "must be a UUID")
	}
	staffID, err := optionalUUID("staff_id", req.StaffID)
	if err != nil {
		return nil, err
	}
	if req.StartTime.IsZero() {
		return nil, apperr.Invalid("start_time", "is required")
	}
	end := req.StartTime.Add(DefaultDuration)
	if req.EndTime != nil {
		end = *req.EndTime
	}
	if err := validateWindow(req.StartTime, end); err != nil {
		return nil, err
	}
	apptType, err := normalizeType(req.Type)
	if err != nil {
		return nil, err
	}

	a, err := s.repo.Create(ctx, Appointment{
		PatientID: patientID.String(),
		StaffID:   staffID,
		StartTime: req.StartTime.UTC(),
		EndTime:   end.UTC(),
		Type:      apptType,
		Status:    StatusScheduled,
		Notes:     trimmedOrNil(req.Notes),
		Source:    SourceLocal,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, "create")
	s.PublishCreated(ctx, a)
	s.logger.Info().Str("appointment_id", a.ID).Str("patient_id", a.PatientID).
		Time("start_time", a.StartTime).Msg("appointment created")
	return a, nil
}

func (s *Service) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Result[Appointment], error) {
	params.Validate()
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, apperr.Invalid("to", "must be after from")
	}
	if filter.Status != "" {
		filter.Status = strings.ToUpper(strings.TrimSpace(filter.Status))
		if !IsValidStatus(filter.Status) {
			return nil, apperr.Invalid("status", "unknown appointment status %q", filter.Status)
		}
	}

	items, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, err
	}
	return &pagination.Result[Appointment]{Items: items, Meta: params.CalculateMeta(total)}, nil
}

// UpdateAppointment merges the request onto the stored appointment and
// reschedules it. Moving the start keeps the current duration unless a new
// end is given.
func (s *Service) UpdateAppointment(ctx context.Context, id string, req UpdateAppointmentRequest) (*Appointment, error) {
	if req.StaffID == nil && req.StartTime == nil && req.EndTime == nil && req.Type == nil && req.Notes == nil {
		return nil, ErrNoFieldsToUpdate
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusCompleted || current.Status == StatusCancelled {
		return nil, apperr.Conflict("completed or cancelled appointments cannot be changed")
	}

	next := *current
	if req.StaffID != nil {
		if next.StaffID, err = optionalUUID("staff_id", req.StaffID); err != nil {
			return nil, err
		}
	}
	if req.StartTime != nil {
		duration := current.EndTime.Sub(current.StartTime)
		next.StartTime = req.StartTime.UTC()
		next.EndTime = next.StartTime.Add(duration)
	}
	if req.EndTime != nil {
		next.EndTime = req.EndTime.UTC()
	}
	if err := validateWindow(next.StartTime, next.EndTime); err != nil {
		return nil, err
	}
	if req.Type != nil {
		if next.Type, err = normalizeType(*req.Type); err != nil {
			return nil, err
		}
	}
	if req.Notes != nil {
		next.Notes = trimmedOrNil(req.Notes)
	}

	a, err := s.repo.Reschedule(ctx, next)
	if err != nil {
		return nil, err
	}
	s.record(ctx, "update")
	return a, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id string, req StatusRequest) (*Appointment, error) {
	to := strings.ToUpper(strings.TrimSpace(req.Status))
	if !IsValidStatus(to) {
		return nil, apperr.Invalid("status", "unknown appointment status %q", req.Status)
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == to {
		return current, nil
	}
	if !CanTransition(current.Status, to) {
		return nil, ErrInvalidTransition
	}

	a, err := s.repo.UpdateStatus(ctx, id, current.Status, to)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "status_"+strings.ToLower(to))
	messaging.Emit(ctx, s.publisher, s.logger, messaging.EventAppointmentStatusChanged, messaging.StatusChangedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventAppointmentStatusChanged),
		Data: messaging.StatusChangedData{
			EntityID:  a.ID,
			PatientID: a.PatientID,
			OldStatus: current.Status,
			NewStatus: a.Status,
			ChangedAt: s.now().UTC(),
		},
	})
	return a, nil
}

// DeleteAppointment removes a scheduled or cancelled appointment. Visits
// that happened stay on record.
func (s *Service) DeleteAppointment(ctx context.Context, id string) error {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status != StatusScheduled && current.Status != StatusCancelled {
		return ErrNotDeletable
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "delete")
	return nil
}

func (s *Service) Upcoming(ctx context.Context, patientID string, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = defaultUpcomingLimit
	}
	if limit > maxUpcomingLimit {
		limit = maxUpcomingLimit
	}
	return s.repo.Upcoming(ctx, patientID, s.now().UTC(), limit)
}

// PublishCreated emits appointment.created. The booking sync uses it for
// appointments it imports.
func (s *Service) PublishCreated(ctx context.Context, a *Appointment) {
	data := messaging.AppointmentData{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Type:          a.Type,
		Status:        a.Status,
		Source:        a.Source,
	}
	if a.StaffID != nil {
		data.StaffID = *a.StaffID
	}
	messaging.Emit(ctx, s.publisher, s.logger, messaging.EventAppointmentCreated, messaging.AppointmentCreatedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventAppointmentCreated),
		Data:      data,
	})
}

func (s *Service) record(ctx context.Context, op string) {
	if s.metrics != nil {
		s.metrics.RecordAppointmentOperation(ctx, op)
	}
}

func validateWindow(start, end time.Time) error {
	if !end.After(start) {
		return apperr.Invalid("end_time", "must be after start_time")
	}
	if end.Sub(start) > maxDuration {
		return apperr.Invalid("end_time", "appointment cannot exceed %s", maxDuration)
	}
	return nil
}

func normalizeType(t string) (string, error) {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "" {
		return TypeOther, nil
	}
	if !IsValidType(t) {
		return "", apperr.Invalid("type", "unknown appointment type %q", t)
	}
	return t, nil
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

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
