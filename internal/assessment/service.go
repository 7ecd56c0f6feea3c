package assessment

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/pagination"
)

type ServiceInterface interface {
	CreateAssessment(ctx context.Context, req CreateAssessmentRequest) (*Created, error)
	GetAssessment(ctx context.Context, id string) (*Created, error)
	ListForPatient(ctx context.Context, patientID string, params pagination.Params) (*pagination.Result[Assessment], error)
	Preview(m Measurements) (*Result, error)
}

type Service struct {
	repo   RepositoryInterface
	logger zerolog.Logger
}

func NewService(repo RepositoryInterface, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "assessment").Logger()}
}

var _ ServiceInterface = (*Service)(nil)

func (s *Service) CreateAssessment(ctx context.Context, req CreateAssessmentRequest) (*Created, error) {
	if req.AssessedBy == "" {
		return nil, apperr.Invalid("assessed_by", "is required")
	}
	req.Measurements.Normalize()
	if err := req.Measurements.Validate(); err != nil {
		return nil, err
	}
	if req.Notes != nil {
		n := strings.TrimSpace(*req.Notes)
		req.Notes = &n
		if n == "" {
			req.Notes = nil
		}
	}

	res := Score(req.Measurements)
	a, err := s.repo.Create(ctx, Assessment{
		PatientID:    req.PatientID,
		AssessedBy:   req.AssessedBy,
		Measurements: req.Measurements,
		Score:        res.Score,
		Severity:     res.Severity,
		Notes:        req.Notes,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("assessment_id", a.ID).Str("patient_id", a.PatientID).
		Int("score", a.Score).Str("severity", a.Severity).Msg("assessment recorded")
	return &Created{Assessment: a, Result: res}, nil
}

// GetAssessment recomputes the breakdown from the stored measurements.
func (s *Service) GetAssessment(ctx context.Context, id string) (*Created, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Created{Assessment: a, Result: Score(a.Measurements)}, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID string, params pagination.Params) (*pagination.Result[Assessment], error) {
	params.Validate()
	items, total, err := s.repo.ListForPatient(ctx, patientID, params)
	if err != nil {
		return nil, err
	}
	return &pagination.Result[Assessment]{Items: items, Meta: params.CalculateMeta(total)}, nil
}

func (s *Service) Preview(m Measurements) (*Result, error) {
	m.Normalize()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	res := Score(m)
	return &res, nil
}
