package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/orthoflow/practice-service/internal/appointment"
	"github.com/orthoflow/practice-service/internal/assessment"
	"github.com/orthoflow/practice-service/internal/auth"
	"github.com/orthoflow/practice-service/internal/httpx"
	"github.com/orthoflow/practice-service/internal/legacysync"
	"github.com/orthoflow/practice-service/internal/note"
	"github.com/orthoflow/practice-service/internal/patient"
	"github.com/orthoflow/practice-service/internal/payment"
	"github.com/orthoflow/practice-service/internal/photo"
	"github.com/orthoflow/practice-service/internal/staff"
	"github.com/orthoflow/practice-service/internal/stats"
	"github.com/orthoflow/practice-service/internal/treatment"
)

const serviceName = "practice-service"

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Recorder is the metrics surface the router feeds: request timings plus
// auth failures and permission checks. *telemetry.Metrics satisfies it.
type Recorder interface {
	HTTPMetrics
	auth.MetricsRecorder
	auth.PermissionMetricsRecorder
}

// Dependencies carries everything the router mounts. A nil handler leaves
// its routes unmounted.
type Dependencies struct {
	Verifier    auth.TokenVerifier
	Permissions auth.Permissions
	Metrics     Recorder
	DB          Pinger
	Logger      zerolog.Logger

	Patients     *patient.Handler
	Staff        *staff.Handler
	Treatment    *treatment.Handler
	Notes        *note.Handler
	Assessments  *assessment.Handler
	Appointments *appointment.Handler
	Payments     *payment.Handler
	Photos       *photo.Handler
	Sync         *legacysync.Handler
	Stats        *stats.Handler
}

// SetupRouter initializes all routes for the application
func SetupRouter(d Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": serviceName})
	}).Methods(http.MethodGet)

	r.HandleFunc("/ready", func(w http.ResponseWriter, req *http.Request) {
		if d.DB != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := d.DB.PingContext(ctx); err != nil {
				d.Logger.Warn().Err(err).Msg("readiness check failed")
				httpx.RespondError(w, http.StatusServiceUnavailable, "unavailable", "database is not reachable")
				return
			}
		}
		httpx.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready", "service": serviceName})
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(otelmux.Middleware(serviceName))
	api.Use(RequestLogger(d.Logger))
	if d.Metrics != nil {
		api.Use(Metrics(d.Metrics))
	}

	authn := auth.Middleware(d.Verifier, d.Logger)
	if d.Metrics != nil {
		authn = auth.MiddlewareWithMetrics(d.Verifier, d.Logger, d.Metrics)
	}
	protect := func(permission string, h http.HandlerFunc) http.Handler {
		authz := auth.RequirePermission(permission, d.Permissions)
		if d.Metrics != nil {
			authz = auth.RequirePermissionWithMetrics(permission, d.Permissions, d.Metrics)
		}
		return authn(authz(h))
	}

	if h := d.Patients; h != nil {
		// lookup is registered ahead of {id} so it is not captured as an id
		api.Handle("/patients/lookup", protect("patient:view", h.Lookup)).Methods(http.MethodGet)
		api.Handle("/patients", protect("patient:create", h.CreatePatient)).Methods(http.MethodPost)
		api.Handle("/patients", protect("patient:view", h.ListPatients)).Methods(http.MethodGet)
		api.Handle("/patients/{id}", protect("patient:view", h.GetPatient)).Methods(http.MethodGet)
		api.Handle("/patients/{id}", protect("patient:update", h.UpdatePatient)).Methods(http.MethodPut)
		api.Handle("/patients/{id}", protect("patient:delete", h.DeletePatient)).Methods(http.MethodDelete)
		api.Handle("/patients/{id}/summary", protect("patient:view", h.GetSummary)).Methods(http.MethodGet)
	}

	if h := d.Staff; h != nil {
		api.Handle("/staff", protect("staff:manage", h.CreateStaff)).Methods(http.MethodPost)
		api.Handle("/staff", protect("staff:view", h.ListStaff)).Methods(http.MethodGet)
		api.Handle("/staff/{id}", protect("staff:view", h.GetStaff)).Methods(http.MethodGet)
		api.Handle("/staff/{id}", protect("staff:manage", h.UpdateStaff)).Methods(http.MethodPut)
		api.Handle("/staff/{id}", protect("staff:manage", h.DeactivateStaff)).Methods(http.MethodDelete)
	}

	if h := d.Treatment; h != nil {
		api.Handle("/patients/{patientId}/treatment-plans", protect("treatment:manage", h.CreatePlan)).Methods(http.MethodPost)
		api.Handle("/patients/{patientId}/treatment-plans", protect("treatment:view", h.ListPlansForPatient)).Methods(http.MethodGet)
		api.Handle("/treatment-plans/{id}", protect("treatment:view", h.GetPlan)).Methods(http.MethodGet)
		api.Handle("/treatment-plans/{id}", protect("treatment:manage", h.UpdatePlan)).Methods(http.MethodPut)
		api.Handle("/treatment-plans/{id}", protect("treatment:manage", h.DeletePlan)).Methods(http.MethodDelete)
		api.Handle("/treatment-plans/{id}/status", protect("treatment:manage", h.UpdatePlanStatus)).Methods(http.MethodPatch)
		api.Handle("/treatment-plans/{id}/phases", protect("treatment:manage", h.AddPhase)).Methods(http.MethodPost)
		api.Handle("/treatment-plans/{id}/phases/order", protect("treatment:manage", h.ReorderPhases)).Methods(http.MethodPut)
		api.Handle("/treatment-plans/{id}/phases/{phaseId}", protect("treatment:manage", h.UpdatePhase)).Methods(http.MethodPut)
		api.Handle("/treatment-plans/{id}/phases/{phaseId}", protect("treatment:manage", h.DeletePhase)).Methods(http.MethodDelete)
		api.Handle("/treatment-plans/{id}/phases/{phaseId}/status", protect("treatment:manage", h.UpdatePhaseStatus)).Methods(http.MethodPatch)
	}

	if h := d.Notes; h != nil {
		api.Handle("/patients/{patientId}/notes", protect("note:manage", h.CreateNote)).Methods(http.MethodPost)
		api.Handle("/patients/{patientId}/notes", protect("note:view", h.ListForPatient)).Methods(http.MethodGet)
		api.Handle("/notes/{id}", protect("note:view", h.GetNote)).Methods(http.MethodGet)
		api.Handle("/notes/{id}", protect("note:manage", h.UpdateNote)).Methods(http.MethodPut)
		api.Handle("/notes/{id}", protect("note:manage", h.DeleteNote)).Methods(http.MethodDelete)
	}

	if h := d.Assessments; h != nil {
		api.Handle("/assessments/preview", protect("assessment:view", h.Preview)).Methods(http.MethodPost)
		api.Handle("/assessments/{id}", protect("assessment:view", h.GetAssessment)).Methods(http.MethodGet)
		api.Handle("/patients/{patientId}/assessments", protect("assessment:create", h.CreateAssessment)).Methods(http.MethodPost)
		api.Handle("/patients/{patientId}/assessments", protect("assessment:view", h.ListForPatient)).Methods(http.MethodGet)
	}

	if h := d.Appointments; h != nil {
		api.Handle("/appointments", protect("appointment:manage", h.CreateAppointment)).Methods(http.MethodPost)
		api.Handle("/appointments", protect("appointment:view", h.ListAppointments)).Methods(http.MethodGet)
		api.Handle("/appointments/{id}", protect("appointment:view", h.GetAppointment)).Methods(http.MethodGet)
		api.Handle("/appointments/{id}", protect("appointment:manage", h.UpdateAppointment)).Methods(http.MethodPut)
		api.Handle("/appointments/{id}", protect("appointment:manage", h.DeleteAppointment)).Methods(http.MethodDelete)
		api.Handle("/appointments/{id}/status", protect("appointment:manage", h.UpdateStatus)).Methods(http.MethodPatch)
		api.Handle("/patients/{patientId}/appointments/upcoming", protect("appointment:view", h.Upcoming)).Methods(http.MethodGet)
	}

	if h := d.Payments; h != nil {
		api.Handle("/payments/stats", protect("payment:view", h.Stats)).Methods(http.MethodGet)
		api.Handle("/payments", protect("payment:manage", h.RecordPayment)).Methods(http.MethodPost)
		api.Handle("/payments", protect("payment:view", h.ListPayments)).Methods(http.MethodGet)
		api.Handle("/payments/{id}", protect("payment:view", h.GetPayment)).Methods(http.MethodGet)
		api.Handle("/payments/{id}", protect("payment:manage", h.DeletePayment)).Methods(http.MethodDelete)
		api.Handle("/payments/{id}/status", protect("payment:manage", h.UpdateStatus)).Methods(http.MethodPatch)
		api.Handle("/payments/{id}/refund", protect("payment:refund", h.Refund)).Methods(http.MethodPost)
		api.Handle("/patients/{patientId}/balance", protect("payment:view", h.PatientBalance)).Methods(http.MethodGet)
	}

	if h := d.Photos; h != nil {
		api.Handle("/photo-categories", protect("photo:view", h.ListCategories)).Methods(http.MethodGet)
		api.Handle("/photo-categories", protect("photo:manage", h.CreateCategory)).Methods(http.MethodPost)
		api.Handle("/photo-categories/{id}", protect("photo:manage", h.UpdateCategory)).Methods(http.MethodPut)
		api.Handle("/photo-categories/{id}", protect("photo:manage", h.DeleteCategory)).Methods(http.MethodDelete)

		api.Handle("/patients/{patientId}/photos", protect("photo:upload", h.Upload)).Methods(http.MethodPost)
		api.Handle("/patients/{patientId}/photos", protect("photo:view", h.ListForPatient)).Methods(http.MethodGet)
		api.Handle("/patients/{patientId}/photos/remote", protect("photo:view", h.SearchRemote)).Methods(http.MethodGet)
		api.Handle("/photos/{id}", protect("photo:view", h.GetPhoto)).Methods(http.MethodGet)
		api.Handle("/photos/{id}", protect("photo:manage", h.UpdateMetadata)).Methods(http.MethodPut)
		api.Handle("/photos/{id}", protect("photo:manage", h.DeletePhoto)).Methods(http.MethodDelete)
		api.Handle("/photos/{id}/transform", protect("photo:view", h.Transform)).Methods(http.MethodGet)

		api.Handle("/patients/{patientId}/photo-pairs", protect("photo:manage", h.CreatePair)).Methods(http.MethodPost)
		api.Handle("/patients/{patientId}/photo-pairs", protect("photo:view", h.ListPairs)).Methods(http.MethodGet)
		api.Handle("/photo-pairs/{pairId}", protect("photo:manage", h.Unpair)).Methods(http.MethodDelete)
	}

	if h := d.Sync; h != nil {
		api.Handle("/sync/bookings", protect("sync:run", h.RunNow)).Methods(http.MethodPost)
		api.Handle("/sync/runs", protect("sync:view", h.ListRuns)).Methods(http.MethodGet)
		api.Handle("/sync/runs/latest", protect("sync:view", h.LatestRun)).Methods(http.MethodGet)
	}

	if h := d.Stats; h != nil {
		api.Handle("/stats/dashboard", protect("stats:view", h.Dashboard)).Methods(http.MethodGet)
	}

	return r
}
