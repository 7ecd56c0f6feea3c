package staff

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/messaging"
	"github.com/orthoflow/practice-service/internal/pagination"
)

type Service struct {
	repo      RepositoryInterface
	publisher messaging.PublisherInterface
	logger    zerolog.Logger
}

func NewService(repo RepositoryInterface, publisher messaging.PublisherInterface, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With().Str("component", "staff").Logger(),
	}
}

func (s *Service) CreateStaff(ctx context.Context, req CreateStaffRequest) (*Member, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Role = strings.ToUpper(strings.TrimSpace(req.Role))

	if req.FullName == "" {
		return nil, apperr.Invalid("full_name", "is required")
	}
	if err := validateEmail(req.Email); err != nil {
		return nil, err
	}
	if !validRoles[req.Role] {
		return nil, apperr.Invalid("role", "must be one of ORTHODONTIST, ASSISTANT, RECEPTIONIST, ADMIN")
	}

	m, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create staff member: %w", err)
	}

	s.publish(ctx, messaging.EventStaffCreated, m)
	s.logger.Info().Str("staff_id", m.ID).Str("role", m.Role).Msg("staff member created")
	return m, nil
}

func (s *Service) GetStaff(ctx context.Context, id string) (*Member, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListStaff(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Result[Member], error) {
	params.Validate()
	filter.Role = strings.ToUpper(strings.TrimSpace(filter.Role))
	if filter.Role != "" && !validRoles[filter.Role] {
		return nil, apperr.Invalid("role", "unknown role %q", filter.Role)
	}

	members, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return &pagination.Result[Member]{Items: members, Meta: params.CalculateMeta(total)}, nil
}

func (s *Service) UpdateStaff(ctx context.Context, id string, req UpdateStaffRequest) (*Member, error) {
	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, apperr.Invalid("full_name", "cannot be empty")
		}
		req.FullName = &name
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if err := validateEmail(email); err != nil {
			return nil, err
		}
		req.Email = &email
	}
	if req.Role != nil {
		role := strings.ToUpper(strings.TrimSpace(*req.Role))
		if !validRoles[role] {
			return nil, apperr.Invalid("role", "must be one of ORTHODONTIST, ASSISTANT, RECEPTIONIST, ADMIN")
		}
		req.Role = &role
	}

	m, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("failed to update staff member: %w", err)
	}
	return m, nil
}

func (s *Service) DeactivateStaff(ctx context.Context, id string) error {
	m, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate staff member: %w", err)
	}
	s.publish(ctx, messaging.EventStaffDeactivated, m)
	s.logger.Info().Str("staff_id", id).Msg("staff member deactivated")
	return nil
}

func (s *Service) publish(ctx context.Context, key string, m *Member) {
	messaging.Emit(ctx, s.publisher, s.logger, key, messaging.StaffEvent{
		BaseEvent: messaging.NewBaseEvent(key),
		Data: messaging.StaffData{
			StaffID:  m.ID,
			FullName: m.FullName,
			Role:     m.Role,
			IsActive: m.IsActive,
		},
	})
}

func validateEmail(email string) error {
	if email == "" {
		return apperr.Invalid("email", "is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return apperr.Invalid("email", "is not a valid email address")
	}
	return nil
}
