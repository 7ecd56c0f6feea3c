package legacysync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/orthoflow/practice-service/internal/appointment"
	"github.com/orthoflow/practice-service/internal/db"
	"github.com/orthoflow/practice-service/internal/patient"
)

const (
	defaultDuration = 30 * time.Minute
	maxDuration     = 8 * time.Hour
	unknownName     = "Unknown"
)

var timeLayouts = []string{"15:04:05", "15:04", "15:04:05.000000"}

// Outcome is what reconciling one booking did.
type Outcome struct {
	PatientID      string
	PatientCreated bool
	Appointment    *appointment.Appointment
	Result         appointment.UpsertOutcome
}

// Reconciler writes one legacy booking into Postgres.
type Reconciler interface {
	Reconcile(ctx context.Context, b Booking) (*Outcome, error)
}

// TxReconciler reconciles each booking in its own transaction.
type TxReconciler struct {
	db      *sql.DB
	mapping Mapping
	loc     *time.Location
}

func NewReconciler(conn *sql.DB, mapping Mapping, loc *time.Location) *TxReconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &TxReconciler{
		db:      conn,
		mapping: mapping,
		loc:     loc,
	}
}

// Reconcile matches or creates the patient by email, then phone, and
// upserts the appointment keyed by the legacy booking id.
func (r *TxReconciler) Reconcile(ctx context.Context, b Booking) (*Outcome, error) {
	email := cleanEmail(b.Email.String)
	phone := strings.TrimSpace(b.Phone.String)
	if email == "" && patient.NormalizePhone(phone) == "" {
		return nil, errMissingContact
	}
	start, end, err := slot(b, r.loc)
	if err != nil {
		return nil, err
	}

	var out Outcome
	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		patients := patient.NewRepository(tx)

		p, err := r.matchPatient(ctx, patients, email, phone)
		if errors.Is(err, patient.ErrPatientNotFound) {
			p, err = patients.Create(ctx, patient.CreatePatientRequest{
				FirstName:    name(b.FirstName.String),
				LastName:     name(b.LastName.String),
				Email:        email,
				Phone:        phone,
				LegacySource: patient.SourceLegacy,
			})
			out.PatientCreated = err == nil
		}
		if err != nil {
			return fmt.Errorf("resolve patient: %w", err)
		}
		out.PatientID = p.ID

		a, result, err := appointment.NewRepository(tx).UpsertLegacy(ctx, appointment.LegacyBooking{
			BookingID: b.ID,
			PatientID: p.ID,
			StartTime: start,
			EndTime:   end,
			Type:      r.mapping.Type(b.Service.String),
			Status:    r.mapping.Status(b.Status),
			Notes:     notes(b.Notes),
		})
		if err != nil {
			return fmt.Errorf("upsert appointment: %w", err)
		}
		out.Appointment = a
		out.Result = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *TxReconciler) matchPatient(ctx context.Context, patients *patient.Repository, email, phone string) (*patient.Patient, error) {
	if email != "" {
		p, err := patients.FindByEmail(ctx, email)
		if !errors.Is(err, patient.ErrPatientNotFound) {
			return p, err
		}
	}
	if phone != "" {
		return patients.FindByPhone(ctx, phone)
	}
	return nil, patient.ErrPatientNotFound
}

func name(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return unknownName
	}
	// mixed case like "McAllister" is kept as entered
	if s != strings.ToLower(s) && s != strings.ToUpper(s) {
		return s
	}
	return cases.Title(language.Und).String(s)
}

// cleanEmail drops addresses the patient record would reject.
func cleanEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return ""
	}
	return s
}

func notes(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := strings.TrimSpace(ns.String)
	if v == "" {
		return nil
	}
	return &v
}

// slot combines the booking's date and wall-clock time in loc.
func slot(b Booking, loc *time.Location) (time.Time, time.Time, error) {
	if !b.BookingDate.Valid || !b.BookingTime.Valid {
		return time.Time{}, time.Time{}, errInvalidSlot
	}
	var (
		clock time.Time
		err   error
	)
	raw := strings.TrimSpace(b.BookingTime.String)
	for _, layout := range timeLayouts {
		if clock, err = time.Parse(layout, raw); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, time.Time{}, errInvalidSlot
	}

	d := b.BookingDate.Time
	start := time.Date(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc)

	duration := defaultDuration
	if b.DurationMinutes.Valid && b.DurationMinutes.Int64 > 0 {
		duration = time.Duration(b.DurationMinutes.Int64) * time.Minute
	}
	if duration > maxDuration {
		duration = maxDuration
	}
	return start.UTC(), start.Add(duration).UTC(), nil
}
