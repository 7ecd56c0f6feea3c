package note

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/pagination"
)

const maxContentLength = 20000

type ServiceInterface interface {
	CreateNote(ctx context.Context, req CreateNoteRequest) (*ClinicalNote, error)
	GetNote(ctx context.Context, id string) (*ClinicalNote, error)
	ListForPatient(ctx context.Context, patientID, noteType string, params pagination.Params) (*pagination.Result[ClinicalNote], error)
	UpdateNote(ctx context.Context, id string, req UpdateNoteRequest) (*ClinicalNote, error)
	DeleteNote(ctx context.Context, id string) error
}

type Service struct {
	repo   RepositoryInterface
	logger zerolog.Logger
}

func NewService(repo RepositoryInterface, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "note").Logger()}
}

var _ ServiceInterface = (*Service)(nil)

func (s *Service) CreateNote(ctx context.Context, req CreateNoteRequest) (*ClinicalNote, error) {
	if req.AuthorID == "" {
		return nil, apperr.Invalid("author_id", "is required")
	}
	noteType, err := normalizeType(req.Type)
	if err != nil {
		return nil, err
	}
	req.Type = noteType
	if req.Content, err = cleanContent(req.Content); err != nil {
		return nil, err
	}
	if req.TreatmentPlanID, err = optionalUUID("treatment_plan_id", req.TreatmentPlanID); err != nil {
		return nil, err
	}
	if req.AppointmentID, err = optionalUUID("appointment_id", req.AppointmentID); err != nil {
		return nil, err
	}

	n, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("note_id", n.ID).Str("patient_id", n.PatientID).Msg("clinical note created")
	return n, nil
}

func (s *Service) GetNote(ctx context.Context, id string) (*ClinicalNote, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListForPatient(ctx context.Context, patientID, noteType string, params pagination.Params) (*pagination.Result[ClinicalNote], error) {
	params.Validate()
	if noteType != "" {
		t, err := normalizeType(noteType)
		if err != nil {
			return nil, err
		}
		noteType = t
	}

	notes, total, err := s.repo.ListForPatient(ctx, patientID, noteType, params)
	if err != nil {
		return nil, err
	}
	return &pagination.Result[ClinicalNote]{Items: notes, Meta: params.CalculateMeta(total)}, nil
}

func (s *Service) UpdateNote(ctx context.Context, id string, req UpdateNoteRequest) (*ClinicalNote, error) {
	if req.Type != nil {
		t, err := normalizeType(*req.Type)
		if err != nil {
			return nil, err
		}
		req.Type = &t
	}
	if req.Content != nil {
		content, err := cleanContent(*req.Content)
		if err != nil {
			return nil, err
		}
		req.Content = &content
	}
	return s.repo.Update(ctx, id, req)
}

func (s *Service) DeleteNote(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func normalizeType(t string) (string, error) {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "" {
		return "GENERAL", nil
	}
	if !noteTypes[t] {
		return "", apperr.Invalid("type", "unknown note type %q", t)
	}
	return t, nil
}

func cleanContent(content string) (string, error) {
	content = sanitizeContent(content)
	if content == "" {
		return "", apperr.Invalid("content", "is required")
	}
	if len(content) > maxContentLength {
		return "", apperr.Invalid("content", "must be at most %d characters", maxContentLength)
	}
	return content, nil
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
