// Package app builds the practice service's dependency graph from
// configuration. Both the API server and clinicctl start from here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/orthoflow/practice-service/internal/appointment"
	"github.com/orthoflow/practice-service/internal/assessment"
	"github.com/orthoflow/practice-service/internal/auth"
	"github.com/orthoflow/practice-service/internal/config"
	"github.com/orthoflow/practice-service/internal/db"
	apphttp "github.com/orthoflow/practice-service/internal/http"
	"github.com/orthoflow/practice-service/internal/legacysync"
	"github.com/orthoflow/practice-service/internal/media"
	"github.com/orthoflow/practice-service/internal/messaging"
	"github.com/orthoflow/practice-service/internal/note"
	"github.com/orthoflow/practice-service/internal/patient"
	"github.com/orthoflow/practice-service/internal/payment"
	"github.com/orthoflow/practice-service/internal/photo"
	"github.com/orthoflow/practice-service/internal/retention"
	"github.com/orthoflow/practice-service/internal/staff"
	"github.com/orthoflow/practice-service/internal/stats"
	"github.com/orthoflow/practice-service/internal/telemetry"
	"github.com/orthoflow/practice-service/internal/treatment"
	"github.com/orthoflow/practice-service/pkg/logging"
)

// NewLogger builds the process logger: JSON in production, console output
// everywhere else.
func NewLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.LogLevel, !cfg.IsProduction())
}

// App holds connections and domain services. Optional backends that are
// not configured stay nil and the services depending on them degrade.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	DB        *sql.DB
	Legacy    *sql.DB
	Redis     *redis.Client
	Publisher messaging.PublisherInterface
	Store     media.Store
	Archive   *media.Archive
	Metrics   *telemetry.Metrics

	Patients     *patient.Service
	Staff        *staff.Service
	Treatment    *treatment.Service
	Notes        *note.Service
	Assessments  *assessment.Service
	Appointments *appointment.Service
	Payments     *payment.Service
	Photos       *photo.Service
	Sync         *legacysync.Service
	Stats        *stats.Service
	Retention    *retention.CleanupService

	closers []func(context.Context) error
}

// New connects to every configured backend and wires the services.
// Postgres is required; everything else is optional.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.OTelEnabled {
		provider, err := telemetry.InitProvider(ctx, telemetry.Config{
			ServiceName:     cfg.OTelServiceName,
			ServiceVersion:  cfg.OTelServiceVersion,
			Environment:     cfg.Env,
			OTLPEndpoint:    cfg.OTelEndpoint,
			TracesSampler:   cfg.OTelTracesSampler,
			MetricsInterval: cfg.OTelMetricsInterval,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		a.closers = append(a.closers, provider.Shutdown)
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	a.Metrics = metrics

	a.DB, err = db.Connect(ctx, db.Options{
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DBMaxOpenConns,
		MaxIdleConns: cfg.DBMaxIdleConns,
	}, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return a.DB.Close() })

	if cfg.LegacyMySQLDSN != "" {
		a.Legacy, err = db.ConnectLegacy(ctx, cfg.LegacyMySQLDSN, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return a.Legacy.Close() })
	}

	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, continuing without cache and distributed lock")
		}
		a.closers = append(a.closers, func(context.Context) error { return a.Redis.Close() })
	}

	if cfg.RabbitMQURL != "" {
		pub, err := messaging.NewPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("rabbitmq unavailable, events will not be published")
		} else {
			a.Publisher = pub
			a.closers = append(a.closers, func(context.Context) error { return pub.Close() })
		}
	}

	a.Store = media.Disabled{}
	if cfg.CloudinaryConfigured() {
		cld, err := media.NewCloudinary(media.CloudinaryConfig{
			URL:       cfg.CloudinaryURL,
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
		}, logger)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.Store = cld
	} else {
		logger.Warn().Msg("cloudinary not configured, photo uploads are disabled")
	}

	a.Archive, err = media.NewS3Archive(ctx, cfg.S3ArchiveBucket, cfg.AWSRegion)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	if err := a.wireServices(); err != nil {
		a.Close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *App) wireServices() error {
	cfg, logger := a.Config, a.Logger

	a.Patients = patient.NewService(patient.NewRepository(a.DB), a.Publisher, a.Metrics, logger)
	a.Staff = staff.NewService(staff.NewRepository(a.DB), a.Publisher, logger)
	a.Treatment = treatment.NewService(treatment.NewRepository(a.DB), a.Publisher, a.Metrics, logger)
	a.Notes = note.NewService(note.NewRepository(a.DB), logger)
	a.Assessments = assessment.NewService(assessment.NewRepository(a.DB), logger)
	a.Appointments = appointment.NewService(appointment.NewRepository(a.DB), a.Publisher, a.Metrics, logger)
	a.Payments = payment.NewService(payment.NewRepository(a.DB), a.Publisher, a.Metrics, logger)
	a.Photos = photo.NewService(photo.NewRepository(a.DB), a.Store, a.Archive, a.Publisher, a.Metrics,
		photo.Options{Folder: cfg.CloudinaryFolder, MaxBytes: cfg.PhotoMaxBytes}, logger)

	var cache redis.Cmdable
	if a.Redis != nil {
		cache = a.Redis
	}
	a.Stats = stats.NewService(a.DB, cache, cfg.StatsCacheTTL, cfg.Location(), logger)

	var (
		source     legacysync.BookingSource
		reconciler legacysync.Reconciler
		lock       legacysync.Locker
	)
	if a.Legacy != nil {
		mapping := legacysync.DefaultMapping()
		if cfg.LegacyMappingFile != "" {
			m, err := legacysync.LoadMapping(cfg.LegacyMappingFile)
			if err != nil {
				return err
			}
			mapping = m
		}
		source = legacysync.NewReader(a.Legacy, cfg.LegacyStatuses)
		reconciler = legacysync.NewReconciler(a.DB, mapping, cfg.Location())
	}
	if a.Redis != nil {
		lock = legacysync.NewRedisLock(a.Redis, 0)
	}
	a.Sync = legacysync.NewService(source, reconciler, legacysync.NewRunRepository(a.DB), lock,
		a.Appointments, a.Publisher, legacysync.NewMetrics(prometheus.DefaultRegisterer),
		legacysync.Options{Lookback: time.Duration(cfg.LegacySyncLookbackDays) * 24 * time.Hour}, logger)

	a.Retention = retention.NewCleanupService(a.DB, a.Store, a.Archive, a.Publisher, cfg.PatientRetention, logger)
	return nil
}

// Router builds the HTTP handler with JWT verification. The returned
// cleanup stops the JWKS refresher.
func (a *App) Router() (http.Handler, func(), error) {
	cfg := a.Config
	if cfg.AuthJWKSURL == "" || cfg.AuthIssuer == "" {
		return nil, nil, errors.New("AUTH_ISSUER and AUTH_JWKS_URL are required to serve the API")
	}
	jwks, err := auth.NewJWKSWithLogger(cfg.AuthJWKSURL, 0, a.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("jwks: %w", err)
	}
	perms, err := auth.LoadPermissions(cfg.PermissionsFile)
	if err != nil {
		jwks.Close()
		return nil, nil, err
	}
	verifier := auth.NewVerifier(auth.Config{
		Issuer:   cfg.AuthIssuer,
		JWKSURL:  cfg.AuthJWKSURL,
		Audience: cfg.AuthAudience,
	}, jwks)

	r := apphttp.SetupRouter(apphttp.Dependencies{
		Verifier:     verifier,
		Permissions:  perms,
		Metrics:      a.Metrics,
		DB:           a.DB,
		Logger:       a.Logger,
		Patients:     patient.NewHandler(a.Patients),
		Staff:        staff.NewHandler(a.Staff),
		Treatment:    treatment.NewHandler(a.Treatment),
		Notes:        note.NewHandler(a.Notes),
		Assessments:  assessment.NewHandler(a.Assessments),
		Appointments: appointment.NewHandler(a.Appointments),
		Payments:     payment.NewHandler(a.Payments),
		Photos:       photo.NewHandler(a.Photos, cfg.PhotoMaxBytes),
		Sync:         legacysync.NewHandler(a.Sync),
		Stats:        stats.NewHandler(a.Stats),
	})
	return apphttp.CORSMiddleware(cfg.AllowedOrigins)(r), jwks.Close, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("error during shutdown")
		}
	}
	a.closers = nil
}
