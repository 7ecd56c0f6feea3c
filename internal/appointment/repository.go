package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/db"
	"github.com/orthoflow/practice-service/internal/pagination"
)

const appointmentColumns = `id, patient_id, staff_id, start_time, end_time, type, status, notes,
	source, legacy_booking_id, created_at, updated_at`

// staffFree holds when staff $1 has no other live appointment overlapping
// [$2, $3). $4 excludes the appointment being moved.
const staffFree = `($1::uuid IS NULL OR NOT EXISTS (
	SELECT 1 FROM appointments
	 WHERE staff_id = $1::uuid
	   AND status <> 'CANCELLED'
	   AND start_time < $3::timestamptz
	   AND end_time > $2::timestamptz
	   AND id IS DISTINCT FROM $4::uuid))`

// rowStaffFree is staffFree for an existing row aliased a, checked against
// its own staff member and slot.
const rowStaffFree = `(a.staff_id IS NULL OR NOT EXISTS (
	SELECT 1 FROM appointments o
	 WHERE o.staff_id = a.staff_id
	   AND o.status <> 'CANCELLED'
	   AND o.start_time < a.end_time
	   AND o.end_time > a.start_time
	   AND o.id <> a.id))`

var sortColumns = map[string]string{
	"start_time": "start_time",
	"created_at": "created_at",
	"status":     "status",
}

type RepositoryInterface interface {
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	Get(ctx context.Context, id string) (*Appointment, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]Appointment, int, error)
	Reschedule(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateStatus(ctx context.Context, id, from, to string) (*Appointment, error)
	Delete(ctx context.Context, id string) error
	Upcoming(ctx context.Context, patientID string, after time.Time, limit int) ([]Appointment, error)
	FindByLegacyID(ctx context.Context, bookingID int64) (*Appointment, error)
	UpsertLegacy(ctx context.Context, b LegacyBooking) (*Appointment, UpsertOutcome, error)
}

// Repository runs appointment queries against a pool or a transaction.
type Repository struct {
	q db.Queryer
}

func NewRepository(q db.Queryer) *Repository {
	return &Repository{q: q}
}

var _ RepositoryInterface = (*Repository)(nil)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*Appointment, error) {
	var (
		a         Appointment
		staffID   sql.NullString
		notes     sql.NullString
		legacyID  sql.NullInt64
		updatedAt sql.NullTime
	)
	err := row.Scan(&a.ID, &a.PatientID, &staffID, &a.StartTime, &a.EndTime, &a.Type, &a.Status, &notes,
		&a.Source, &legacyID, &a.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if staffID.Valid {
		a.StaffID = &staffID.String
	}
	if notes.Valid {
		a.Notes = &notes.String
	}
	if legacyID.Valid {
		a.LegacyBookingID = &legacyID.Int64
	}
	if updatedAt.Valid {
		a.UpdatedAt = &updatedAt.Time
	}
	return &a, nil
}

func mapWriteErr(err error, op string) error {
	switch db.ForeignKeyConstraint(err) {
	case "appointments_patient_id_fkey":
		return ErrPatientNotFound
	case "appointments_staff_id_fkey":
		return apperr.Invalid("staff_id", "does not reference a staff member")
	}
	if db.IsExclusionViolation(err, "appointments_staff_no_overlap") {
		return ErrScheduleConflict
	}
	if db.IsUniqueViolation(err, "appointments_legacy_booking_id_key") {
		return apperr.Conflict("legacy booking already imported")
	}
	return fmt.Errorf("failed to %s appointment: %w", op, err)
}

// Create inserts the appointment unless its staff member is already booked
// for an overlapping slot.
func (r *Repository) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	query := `
		INSERT INTO appointments (staff_id, start_time, end_time, patient_id, type, status, notes, source, legacy_booking_id)
		SELECT $1::uuid, $2::timestamptz, $3::timestamptz, $5::uuid, $6, $7, $8, $9, $10::bigint
		WHERE ` + staffFree + `
		RETURNING ` + appointmentColumns

	out, err := scanAppointment(r.q.QueryRowContext(ctx, query,
		a.StaffID, a.StartTime, a.EndTime, nil,
		a.PatientID, a.Type, a.Status, a.Notes, a.Source, a.LegacyBookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScheduleConflict
	}
	if err != nil {
		return nil, mapWriteErr(err, "insert")
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Appointment, error) {
	a, err := scanAppointment(r.q.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query appointment: %w", err)
	}
	return a, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]Appointment, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.From != nil {
		add("start_time >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("start_time < $%d", *filter.To)
	}
	if filter.PatientID != "" {
		add("patient_id = $%d", filter.PatientID)
	}
	if filter.StaffID != "" {
		add("staff_id = $%d", filter.StaffID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count appointments: %w", err)
	}

	args = append(args, params.Limit, params.CalculateOffset())
	query := fmt.Sprintf(`SELECT %s FROM appointments%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		appointmentColumns, where, params.OrderBy(sortColumns, "start_time ASC"), len(args)-1, len(args))

	items, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]Appointment, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	items := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

// Reschedule writes the editable fields of a. The overlap guard runs in the
// same statement, so a missing row means either a conflict or an unknown id.
func (r *Repository) Reschedule(ctx context.Context, a Appointment) (*Appointment, error) {
	query := `
		UPDATE appointments
		   SET staff_id = $1::uuid, start_time = $2::timestamptz, end_time = $3::timestamptz,
		       type = $5, notes = $6, updated_at = NOW()
		 WHERE id = $4::uuid AND ` + staffFree + `
		RETURNING ` + appointmentColumns

	out, err := scanAppointment(r.q.QueryRowContext(ctx, query,
		a.StaffID, a.StartTime, a.EndTime, a.ID, a.Type, a.Notes))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, a.ID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrScheduleConflict
	}
	if err != nil {
		return nil, mapWriteErr(err, "update")
	}
	return out, nil
}

// UpdateStatus moves the appointment from one status to another. It fails
// with ErrInvalidTransition when the stored status is no longer from.
// Reviving a cancelled appointment re-checks its slot and fails with
// ErrScheduleConflict when the staff member has been booked since.
func (r *Repository) UpdateStatus(ctx context.Context, id, from, to string) (*Appointment, error) {
	reviving := from == StatusCancelled && to != StatusCancelled
	query := `
		UPDATE appointments a SET status = $3, updated_at = NOW()
		 WHERE a.id = $1 AND a.status = $2`
	if reviving {
		query += ` AND ` + rowStaffFree
	}
	query += `
		RETURNING ` + appointmentColumns

	a, err := scanAppointment(r.q.QueryRowContext(ctx, query, id, from, to))
	if errors.Is(err, sql.ErrNoRows) {
		if !reviving {
			return nil, ErrInvalidTransition
		}
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status != from {
			return nil, ErrInvalidTransition
		}
		return nil, ErrScheduleConflict
	}
	if err != nil {
		return nil, mapWriteErr(err, "update status of")
	}
	return a, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *Repository) Upcoming(ctx context.Context, patientID string, after time.Time, limit int) ([]Appointment, error) {
	return r.query(ctx, `SELECT `+appointmentColumns+` FROM appointments
		WHERE patient_id = $1 AND start_time >= $2 AND status IN ('SCHEDULED', 'CONFIRMED')
		ORDER BY start_time
		LIMIT $3`, patientID, after, limit)
}

func (r *Repository) FindByLegacyID(ctx context.Context, bookingID int64) (*Appointment, error) {
	a, err := scanAppointment(r.q.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE legacy_booking_id = $1`, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find appointment by legacy booking: %w", err)
	}
	return a, nil
}

// UpsertLegacy creates the appointment for a legacy booking or brings an
// existing one in line with it. Run it inside a transaction.
func (r *Repository) UpsertLegacy(ctx context.Context, b LegacyBooking) (*Appointment, UpsertOutcome, error) {
	existing, err := scanAppointment(r.q.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE legacy_booking_id = $1 FOR UPDATE`, b.BookingID))
	if errors.Is(err, sql.ErrNoRows) {
		a, err := scanAppointment(r.q.QueryRowContext(ctx, `
			INSERT INTO appointments (patient_id, start_time, end_time, type, status, notes, source, legacy_booking_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING `+appointmentColumns,
			b.PatientID, b.StartTime, b.EndTime, b.Type, b.Status, b.Notes, SourceLegacy, b.BookingID))
		if err != nil {
			return nil, "", mapWriteErr(err, "insert legacy")
		}
		return a, OutcomeCreated, nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to find appointment by legacy booking: %w", err)
	}

	if legacyUnchanged(existing, b) {
		return existing, OutcomeUnchanged, nil
	}

	a, err := scanAppointment(r.q.QueryRowContext(ctx, `
		UPDATE appointments
		   SET patient_id = $2, start_time = $3, end_time = $4, type = $5, status = $6, notes = $7, updated_at = NOW()
		 WHERE id = $1
		RETURNING `+appointmentColumns,
		existing.ID, b.PatientID, b.StartTime, b.EndTime, b.Type, b.Status, b.Notes))
	if err != nil {
		return nil, "", mapWriteErr(err, "update legacy")
	}
	return a, OutcomeUpdated, nil
}

func legacyUnchanged(a *Appointment, b LegacyBooking) bool {
	return a.PatientID == b.PatientID &&
		a.StartTime.Equal(b.StartTime) &&
		a.EndTime.Equal(b.EndTime) &&
		a.Type == b.Type &&
		a.Status == b.Status &&
		derefString(a.Notes) == derefString(b.Notes)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
