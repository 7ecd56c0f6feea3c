package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/messaging"
	"github.com/orthoflow/practice-service/internal/pagination"
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
		logger:    logger.With().Str("component", "patient").Logger(),
		now:       time.Now,
	}
}

func (s *Service) CreatePatient(ctx context.Context, req CreatePatientRequest) (*Patient, error) {
	if err := validateCreate(&req, s.now()); err != nil {
		return nil, err
	}

	p, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.record(ctx, "create")
	s.publish(ctx, messaging.EventPatientCreated, p, nil)
	s.logger.Info().Str("patient_id", p.ID).Str("source", p.LegacySource).Msg("patient created")
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Detail, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	counts, err := s.repo.Counts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Detail{Patient: *p, Counts: counts}, nil
}

func (s *Service) ListPatients(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Result[Patient], error) {
	params.Validate()

	patients, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return &pagination.Result[Patient]{Items: patients, Meta: params.CalculateMeta(total)}, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id string, req UpdatePatientRequest) (*Patient, error) {
	if err := validateUpdate(&req, s.now()); err != nil {
		return nil, err
	}

	p, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}

	s.record(ctx, "update")
	s.publish(ctx, messaging.EventPatientUpdated, p, nil)
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id string) error {
	deletedAt, err := s.repo.SoftDelete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}

	s.record(ctx, "delete")
	s.publish(ctx, messaging.EventPatientDeleted, &Patient{ID: id}, &deletedAt)
	s.logger.Info().Str("patient_id", id).Msg("patient soft-deleted")
	return nil
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*Patient, error) {
	return s.repo.FindByEmail(ctx, email)
}

func (s *Service) FindByPhone(ctx context.Context, phone string) (*Patient, error) {
	return s.repo.FindByPhone(ctx, phone)
}

func (s *Service) GetSummary(ctx context.Context, id string) (*Summary, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Summary(ctx, id)
}

func (s *Service) record(ctx context.Context, op string) {
	if s.metrics != nil {
		s.metrics.RecordPatientOperation(ctx, op)
	}
}

func (s *Service) publish(ctx context.Context, key string, p *Patient, deletedAt *time.Time) {
	messaging.Emit(ctx, s.publisher, s.logger, key, messaging.PatientEvent{
		BaseEvent: messaging.NewBaseEvent(key),
		Data: messaging.PatientData{
			PatientID:    p.ID,
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			Email:        p.Email,
			LegacySource: p.LegacySource,
			IsActive:     p.IsActive,
			OccurredAt:   s.now().UTC(),
			DeletedAt:    deletedAt,
		},
	})
}
