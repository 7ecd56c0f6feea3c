// Package stats computes the practice dashboard figures.
package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const cacheKey = "ortho:stats:dashboard"

// Dashboard is the overview shown on the practice home screen.
type Dashboard struct {
	ActivePatients       int       `json:"active_patients"`
	ActiveTreatmentPlans int       `json:"active_treatment_plans"`
	AppointmentsToday    int       `json:"appointments_today"`
	UpcomingAppointments int       `json:"upcoming_appointments"`
	RevenueMonthCents    int64     `json:"revenue_month_cents"`
	PendingPayments      int       `json:"pending_payments"`
	PendingPaymentsCents int64     `json:"pending_payments_cents"`
	GeneratedAt          time.Time `json:"generated_at"`
	Cached               bool      `json:"cached"`
}

type ServiceInterface interface {
	Dashboard(ctx context.Context) (*Dashboard, error)
	Invalidate(ctx context.Context)
}

type Service struct {
	db     *sql.DB
	cache  redis.Cmdable
	ttl    time.Duration
	loc    *time.Location
	logger zerolog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewService returns a dashboard service. A nil cache or non-positive
// ttl disables caching.
func NewService(conn *sql.DB, cache redis.Cmdable, ttl time.Duration, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		db:     conn,
		cache:  cache,
		ttl:    ttl,
		loc:    loc,
		logger: logger.With().Str("component", "stats").Logger(),
		tracer: otel.Tracer("practice-service/stats"),
		now:    time.Now,
	}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

// Dashboard serves the cached figures when fresh. Cache errors are
// logged and the figures are computed live.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	ctx, span := s.tracer.Start(ctx, "stats.dashboard")
	defer span.End()

	if s.cacheEnabled() {
		d, err := s.fromCache(ctx)
		switch {
		case err == nil:
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return d, nil
		case !errors.Is(err, redis.Nil):
			s.logger.Warn().Err(err).Msg("stats cache read failed")
		}
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	d, err := s.compute(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if s.cacheEnabled() {
		if raw, err := json.Marshal(d); err == nil {
			if err := s.cache.Set(ctx, cacheKey, raw, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("stats cache write failed")
			}
		}
	}
	return d, nil
}

func (s *Service) fromCache(ctx context.Context) (*Dashboard, error) {
	raw, err := s.cache.Get(ctx, cacheKey).Bytes()
	if err != nil {
		return nil, err
	}
	var d Dashboard
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode cached stats: %w", err)
	}
	d.Cached = true
	return &d, nil
}

// Invalidate drops the cached dashboard.
func (s *Service) Invalidate(ctx context.Context) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("stats cache invalidation failed")
	}
}

func (s *Service) compute(ctx context.Context) (*Dashboard, error) {
	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	weekEnd := now.Add(7 * 24 * time.Hour)

	d := Dashboard{GeneratedAt: now.UTC()}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM patients WHERE deleted_at IS NULL AND is_active),
			(SELECT COUNT(*) FROM treatment_plans tp JOIN patients p ON p.id = tp.patient_id
			  WHERE tp.status = 'ACTIVE' AND p.deleted_at IS NULL),
			(SELECT COUNT(*) FROM appointments
			  WHERE start_time >= $1 AND start_time < $2 AND status NOT IN ('CANCELLED', 'NO_SHOW')),
			(SELECT COUNT(*) FROM appointments
			  WHERE start_time >= $3 AND start_time < $4 AND status IN ('SCHEDULED', 'CONFIRMED')),
			(SELECT COALESCE(SUM(amount_cents), 0) FROM payments
			  WHERE status = 'COMPLETED' AND paid_at >= $5),
			(SELECT COUNT(*) FROM payments WHERE status = 'PENDING'),
			(SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE status = 'PENDING')`,
		dayStart, dayEnd, now, weekEnd, monthStart,
	).Scan(&d.ActivePatients, &d.ActiveTreatmentPlans, &d.AppointmentsToday, &d.UpcomingAppointments,
		&d.RevenueMonthCents, &d.PendingPayments, &d.PendingPaymentsCents)
	if err != nil {
		return nil, fmt.Errorf("failed to compute dashboard stats: %w", err)
	}
	return &d, nil
}
