package payment

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/messaging"
	"github.com/orthoflow/practice-service/internal/pagination"
)

const maxReasonLength = 500

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

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
		logger:    logger.With().Str("component", "payment").Logger(),
		now:       time.Now,
	}
}

var _ ServiceInterface = (*Service)(nil)

func (s *Service) RecordPayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error) {
	p, err := s.validateCreate(req)
	if err != nil {
		return nil, err
	}

	created, err := s.repo.Create(ctx, *p)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "record", created)
	s.publish(ctx, messaging.EventPaymentRecorded, created)
	s.logger.Info().Str("payment_id", created.ID).Str("patient_id", created.PatientID).
		Int64("amount_cents", created.AmountCents).Str("status", created.Status).Msg("payment recorded")
	return created, nil
}

func (s *Service) validateCreate(req CreatePaymentRequest) (*Payment, error) {
	patientID, err := uuid.Parse(strings.TrimSpace(req.PatientID))
	if err != nil {
		return nil, apperr.Invalid("patient_id", "must be a UUID")
	}
	p := &Payment{PatientID: patientID.String(), AmountCents: req.AmountCents}

	if req.TreatmentPlanID != nil && strings.TrimSpace(*req.TreatmentPlanID) != "" {
		planID, err := uuid.Parse(strings.TrimSpace(*req.TreatmentPlanID))
		if err != nil {
			return nil, apperr.Invalid("treatment_plan_id", "must be a UUID")
		}
		id := planID.String()
		p.TreatmentPlanID = &id
	}
	if req.AmountCents <= 0 {
		return nil, apperr.Invalid("amount_cents", "must be greater than zero")
	}

	p.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if p.Currency == "" {
		p.Currency = DefaultCurrency
	}
	if !currencyPattern.MatchString(p.Currency) {
		return nil, apperr.Invalid("currency", "must be a three-letter ISO 4217 code")
	}

	p.Method = strings.ToUpper(strings.TrimSpace(req.Method))
	if !validMethods[p.Method] {
		return nil, apperr.Invalid("method", "must be one of CASH, CARD, BANK_TRANSFER, INSURANCE, OTHER")
	}

	p.Status = strings.ToUpper(strings.TrimSpace(req.Status))
	if p.Status == "" {
		p.Status = StatusCompleted
	}
	if p.Status != StatusCompleted && p.Status != StatusPending {
		return nil, apperr.Invalid("status", "new payments must be PENDING or COMPLETED")
	}

	now := s.now().UTC()
	if req.PaidAt != nil {
		if p.Status != StatusCompleted {
			return nil, apperr.Invalid("paid_at", "only completed payments have a payment date")
		}
		if req.PaidAt.After(now) {
			return nil, apperr.Invalid("paid_at", "cannot be in the future")
		}
		paid := req.PaidAt.UTC()
		p.PaidAt = &paid
	} else if p.Status == StatusCompleted {
		p.PaidAt = &now
	}

	p.Reference = trimmedOrNil(req.Reference)
	p.Notes = trimmedOrNil(req.Notes)
	return p, nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (*Payment, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) ListPayments(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Result[Payment], error) {
	params.Validate()
	if filter.Status != "" {
		filter.Status = strings.ToUpper(strings.TrimSpace(filter.Status))
		if !validStatuses[filter.Status] {
			return nil, apperr.Invalid("status", "unknown payment status %q", filter.Status)
		}
	}
	if filter.Method != "" {
		filter.Method = strings.ToUpper(strings.TrimSpace(filter.Method))
		if !validMethods[filter.Method] {
			return nil, apperr.Invalid("method", "unknown payment method %q", filter.Method)
		}
	}
	if filter.From != nil && filter.To != nil && !filter.To.After(*filter.From) {
		return nil, apperr.Invalid("to", "must be after from")
	}

	payments, total, err := s.repo.List(ctx, filter, params)
	if err != nil {
		return nil, err
	}
	return &pagination.Result[Payment]{Items: payments, Meta: params.CalculateMeta(total)}, nil
}

// UpdateStatus settles or fails a payment. Completing sets paid_at unless
// one is already recorded.
func (s *Service) UpdateStatus(ctx context.Context, id string, req StatusRequest) (*Payment, error) {
	to := strings.ToUpper(strings.TrimSpace(req.Status))
	if !validStatuses[to] {
		return nil, apperr.Invalid("status", "unknown payment status %q", req.Status)
	}
	if to == StatusRefunded {
		return nil, apperr.Invalid("status", "use the refund endpoint to refund a payment")
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

	var paidAt *time.Time
	if to == StatusCompleted {
		now := s.now().UTC()
		paidAt = &now
	}
	p, err := s.repo.UpdateStatus(ctx, id, current.Status, to, paidAt)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "status_"+strings.ToLower(to), p)
	if to == StatusCompleted {
		s.publish(ctx, messaging.EventPaymentRecorded, p)
	}
	return p, nil
}

func (s *Service) Refund(ctx context.Context, id string, req RefundRequest) (*Payment, error) {
	reason := strings.TrimSpace(req.Reason)
	if len(reason) > maxReasonLength {
		return nil, apperr.Invalid("reason", "must be at most %d characters", maxReasonLength)
	}

	p, err := s.repo.Refund(ctx, id, reason)
	if err != nil {
		return nil, err
	}

	s.record(ctx, "refund", p)
	s.publish(ctx, messaging.EventPaymentRefunded, p)
	s.logger.Info().Str("payment_id", p.ID).Int64("amount_cents", p.AmountCents).Msg("payment refunded")
	return p, nil
}

func (s *Service) DeletePayment(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordPayment(ctx, "delete", "", 0)
	}
	return nil
}

// Stats defaults to the current calendar month when no range is given.
func (s *Service) Stats(ctx context.Context, from, to *time.Time) (*Stats, error) {
	now := s.now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	if from != nil {
		start = from.UTC()
	}
	if to != nil {
		end = to.UTC()
	}
	if !end.After(start) {
		return nil, apperr.Invalid("to", "must be after from")
	}
	return s.repo.Stats(ctx, start, end)
}

func (s *Service) PatientBalance(ctx context.Context, patientID string) (*Balance, error) {
	return s.repo.PatientBalance(ctx, patientID)
}

func (s *Service) record(ctx context.Context, op string, p *Payment) {
	if s.metrics == nil {
		return
	}
	var amount int64
	if (op == "record" && p.Status == StatusCompleted) || op == "status_completed" {
		amount = p.AmountCents
	}
	s.metrics.RecordPayment(ctx, op, p.Method, amount)
}

func (s *Service) publish(ctx context.Context, key string, p *Payment) {
	messaging.Emit(ctx, s.publisher, s.logger, key, messaging.PaymentEvent{
		BaseEvent: messaging.NewBaseEvent(key),
		Data: messaging.PaymentData{
			PaymentID:   p.ID,
			PatientID:   p.PatientID,
			AmountCents: p.AmountCents,
			Currency:    p.Currency,
			Method:      p.Method,
			Status:      p.Status,
		},
	})
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
