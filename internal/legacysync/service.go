package legacysync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/appointment"
	"github.com/orthoflow/practice-service/internal/messaging"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

type ServiceInterface interface {
	Run(ctx context.Context, trigger string) (*Report, error)
	Runs(ctx context.Context, limit int) ([]Report, error)
	LatestRun(ctx context.Context) (*Report, error)
}

// AppointmentNotifier announces appointments the sync created.
type AppointmentNotifier interface {
	PublishCreated(ctx context.Context, a *appointment.Appointment)
}

type Options struct {
	Lookback time.Duration
}

type Service struct {
	source     BookingSource
	reconciler Reconciler
	runs       RunStore
	lock       Locker
	notifier   AppointmentNotifier
	publisher  messaging.PublisherInterface
	metrics    *Metrics
	lookback   time.Duration
	logger     zerolog.Logger
	now        func() time.Time

	mu sync.Mutex
}

// NewService wires a sync service. A nil source leaves run history
// readable but makes Run return ErrSyncDisabled.
func NewService(source BookingSource, reconciler Reconciler, runs RunStore, lock Locker,
	notifier AppointmentNotifier, publisher messaging.PublisherInterface, metrics *Metrics,
	opts Options, logger zerolog.Logger) *Service {
	if opts.Lookback <= 0 {
		opts.Lookback = 30 * 24 * time.Hour
	}
	return &Service{
		source:     source,
		reconciler: reconciler,
		runs:       runs,
		lock:       lock,
		notifier:   notifier,
		publisher:  publisher,
		metrics:    metrics,
		lookback:   opts.Lookback,
		logger:     logger.With().Str("component", "legacysync").Logger(),
		now:        time.Now,
	}
}

// Run performs one sync pass. Per-booking failures are collected in the
// report; only failures to read the legacy table or to record the run
// are returned as errors.
func (s *Service) Run(ctx context.Context, trigger string) (*Report, error) {
	if s.source == nil || s.reconciler == nil {
		return nil, ErrSyncDisabled
	}
	if !s.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer s.mu.Unlock()

	if s.lock != nil {
		release, ok, err := s.lock.Acquire(ctx)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Msg("sync lock unavailable, relying on the local guard")
		case !ok:
			return nil, ErrSyncInProgress
		default:
			defer release()
		}
	}

	started := s.now().UTC()
	rep := &Report{Trigger: trigger, Status: StatusRunning, StartedAt: started, Issues: []Issue{}}
	id, err := s.runs.Start(ctx, trigger, started)
	if err != nil {
		return nil, err
	}
	rep.ID = id

	log := s.logger.With().Str("run_id", id).Str("trigger", trigger).Logger()
	log.Info().Msg("booking sync started")

	bookings, err := s.source.Bookings(ctx, started.Add(-s.lookback))
	if err != nil {
		rep.Error = err.Error()
		s.complete(ctx, rep, log)
		return rep, fmt.Errorf("booking sync: %w", err)
	}

	for _, b := range bookings {
		if ctx.Err() != nil {
			rep.Error = "sync interrupted: " + ctx.Err().Error()
			break
		}
		s.reconcile(ctx, rep, b, log)
	}

	s.complete(ctx, rep, log)
	return rep, nil
}

func (s *Service) reconcile(ctx context.Context, rep *Report, b Booking, log zerolog.Logger) {
	rep.Processed++

	out, err := s.reconciler.Reconcile(ctx, b)
	if err != nil {
		if errors.Is(err, errMissingContact) || errors.Is(err, errInvalidSlot) {
			rep.skip(b.ID, err.Error())
			log.Debug().Int64("booking_id", b.ID).Err(err).Msg("booking skipped")
			return
		}
		rep.fail(b.ID, err.Error())
		log.Error().Int64("booking_id", b.ID).Err(err).Msg("failed to reconcile booking")
		return
	}

	if out.PatientCreated {
		rep.PatientsCreated++
	} else {
		rep.PatientsMatched++
	}
	switch out.Result {
	case appointment.OutcomeCreated:
		rep.AppointmentsCreated++
		if s.notifier != nil {
			s.notifier.PublishCreated(ctx, out.Appointment)
		}
	case appointment.OutcomeUpdated:
		rep.AppointmentsUpdated++
	default:
		rep.Unchanged++
	}
}

func (s *Service) complete(ctx context.Context, rep *Report, log zerolog.Logger) {
	finished := s.now().UTC()
	rep.finish(finished)

	if err := s.runs.Finish(context.WithoutCancel(ctx), rep); err != nil {
		log.Error().Err(err).Msg("failed to record sync run result")
	}
	s.metrics.ObserveRun(rep, finished.Sub(rep.StartedAt))

	messaging.Emit(ctx, s.publisher, s.logger, messaging.EventSyncCompleted, messaging.SyncCompletedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventSyncCompleted),
		Data: messaging.SyncCompletedData{
			RunID:               rep.ID,
			Trigger:             rep.Trigger,
			Status:              rep.Status,
			Processed:           rep.Processed,
			PatientsCreated:     rep.PatientsCreated,
			AppointmentsCreated: rep.AppointmentsCreated,
			AppointmentsUpdated: rep.AppointmentsUpdated,
			Failed:              rep.Failed,
			FinishedAt:          finished,
		},
	})

	log.Info().
		Str("status", rep.Status).
		Int("processed", rep.Processed).
		Int("patients_created", rep.PatientsCreated).
		Int("appointments_created", rep.AppointmentsCreated).
		Int("appointments_updated", rep.AppointmentsUpdated).
		Int("skipped", rep.Skipped).
		Int("failed", rep.Failed).
		Msg("booking sync finished")
}

func (s *Service) Runs(ctx context.Context, limit int) ([]Report, error) {
	switch {
	case limit <= 0:
		limit = defaultRunsLimit
	case limit > maxRunsLimit:
		limit = maxRunsLimit
	}
	return s.runs.List(ctx, limit)
}

func (s *Service) LatestRun(ctx context.Context) (*Report, error) {
	return s.runs.Latest(ctx)
}
