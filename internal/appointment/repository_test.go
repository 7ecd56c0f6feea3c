package appointment

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/pagination"
	"github.com/orthoflow/practice-service/internal/testutil"
)

var appointmentRowColumns = []string{
	"id", "patient_id", "staff_id", "start_time", "end_time", "type", "status", "notes",
	"source", "legacy_booking_id", "created_at", "updated_at",
}

func appointmentRow(id string, start time.Time, status string, legacyID driver.Value) *sqlmock.Rows {
	return sqlmock.NewRows(appointmentRowColumns).AddRow(
		id, patientUUID, nil, start, start.Add(30*time.Minute), TypeCheckup, status, nil,
		SourceLegacy, legacyID, fixedNow, nil)
}

func TestRepository_CreateOverlapIsConflict(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns))

	staff := staffUUID
	_, err := repo.Create(context.Background(), Appointment{PatientID: patientUUID, StaffID: &staff, StartTime: fixedNow, EndTime: fixedNow.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrScheduleConflict)
}

func TestRepository_CreateUnknownStaff(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnError(&pq.Error{Code: "23503", Constraint: "appointments_staff_id_fkey"})

	_, err := repo.Create(context.Background(), Appointment{PatientID: patientUUID})
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "staff_id", ve.Field)
}

func TestRepository_ListFilters(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRepository(conn)
	from := fixedNow
	to := fixedNow.Add(7 * 24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM appointments WHERE start_time >= $1 AND start_time < $2 AND status = $3")).
		WithArgs(from, to, StatusScheduled).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY start_time DESC LIMIT $4 OFFSET $5")).
		WithArgs(from, to, StatusScheduled, 10, 10).
		WillReturnRows(appointmentRow("a-1", fixedNow, StatusScheduled, nil))

	items, total, err := repo.List(context.Background(),
		ListFilter{From: &from, To: &to, Status: StatusScheduled},
		pagination.Params{Page: 2, Limit: 10, Sort: "-start_time"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].StaffID)
}

func TestRepository_RescheduleDistinguishesMissingFromConflict(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE appointments")).WillReturnRows(sqlmock.NewRows(appointmentRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE id = $1")).
		WithArgs("a-1").
		WillReturnRows(appointmentRow("a-1", fixedNow, StatusScheduled, nil))

	_, err := repo.Reschedule(context.Background(), Appointment{ID: "a-1", StartTime: fixedNow, EndTime: fixedNow.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrScheduleConflict)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE appointments")).WillReturnRows(sqlmock.NewRows(appointmentRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE id = $1")).
		WithArgs("a-2").
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns))

	_, err = repo.Reschedule(context.Background(), Appointment{ID: "a-2", StartTime: fixedNow, EndTime: fixedNow.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestRepository_UpsertLegacy(t *testing.T) {
	start := time.Date(2026, 10, 21, 14, 0, 0, 0, time.UTC)
	booking := LegacyBooking{BookingID: 77, PatientID: patientUUID, StartTime: start, EndTime: start.Add(30 * time.Minute), Type: TypeCheckup, Status: StatusScheduled}

	t.Run("creates when unseen", func(t *testing.T) {
		conn, mock := testutil.NewSQLMock(t)
		repo := NewRepository(conn)

		mock.ExpectQuery(regexp.QuoteMeta("WHERE legacy_booking_id = $1 FOR UPDATE")).
			WithArgs(int64(77)).
			WillReturnRows(sqlmock.NewRows(appointmentRowColumns))
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
			WithArgs(patientUUID, start, start.Add(30*time.Minute), TypeCheckup, StatusScheduled, nil, SourceLegacy, int64(77)).
			WillReturnRows(appointmentRow("a-1", start, StatusScheduled, int64(77)))

		a, outcome, err := repo.UpsertLegacy(context.Background(), booking)
		require.NoError(t, err)
		assert.Equal(t, OutcomeCreated, outcome)
		assert.Equal(t, int64(77), *a.LegacyBookingID)
	})

	t.Run("unchanged when identical", func(t *testing.T) {
		conn, mock := testutil.NewSQLMock(t)
		repo := NewRepository(conn)

		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WillReturnRows(appointmentRow("a-1", start, StatusScheduled, int64(77)))

		_, outcome, err := repo.UpsertLegacy(context.Background(), booking)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnchanged, outcome)
	})

	t.Run("updates when status moved", func(t *testing.T) {
		conn, mock := testutil.NewSQLMock(t)
		repo := NewRepository(conn)

		mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
			WillReturnRows(appointmentRow("a-1", start, StatusScheduled, int64(77)))
		mock.ExpectQuery(regexp.QuoteMeta("UPDATE appointments")).
			WithArgs("a-1", patientUUID, start, start.Add(30*time.Minute), TypeCheckup, StatusCancelled, nil).
			WillReturnRows(appointmentRow("a-1", start, StatusCancelled, int64(77)))

		cancelled := booking
		cancelled.Status = StatusCancelled
		a, outcome, err := repo.UpsertLegacy(context.Background(), cancelled)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUpdated, outcome)
		assert.Equal(t, StatusCancelled, a.Status)
	})
}

func TestRepository_UpdateStatusRace(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRepository(conn)

	mock.ExpectQuery(`WHERE a\.id = \$1 AND a\.status = \$2\s+RETURNING`).
		WithArgs("a-1", StatusScheduled, StatusConfirmed).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns))

	_, err := repo.UpdateStatus(context.Background(), "a-1", StatusScheduled, StatusConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRepository_ReviveCancelledChecksSlot(t *testing.T) {
	t.Run("slot rebooked since", func(t *testing.T) {
		conn, mock := testutil.NewSQLMock(t)
		repo := NewRepository(conn)

		mock.ExpectQuery(regexp.QuoteMeta("o.staff_id = a.staff_id")).
			WithArgs("a-1", StatusCancelled, StatusScheduled).
			WillReturnRows(sqlmock.NewRows(appointmentRowColumns))
		mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE id = $1")).
			WithArgs("a-1").
			WillReturnRows(appointmentRow("a-1", fixedNow, StatusCancelled, nil))

		_, err := repo.UpdateStatus(context.Background(), "a-1", StatusCancelled, StatusScheduled)
		assert.ErrorIs(t, err, ErrScheduleConflict)
	})

	t.Run("status changed concurrently", func(t *testing.T) {
		conn, mock := testutil.NewSQLMock(t)
		repo := NewRepository(conn)

		mock.ExpectQuery(regexp.QuoteMeta("o.staff_id = a.staff_id")).
			WillReturnRows(sqlmock.NewRows(appointmentRowColumns))
		mock.ExpectQuery(regexp.QuoteMeta("FROM appointments WHERE id = $1")).
			WillReturnRows(appointmentRow("a-1", fixedNow, StatusScheduled, nil))

		_, err := repo.UpdateStatus(context.Background(), "a-1", StatusCancelled, StatusScheduled)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("slot still free", func(t *testing.T) {
		conn, mock := testutil.NewSQLMock(t)
		repo := NewRepository(conn)

		mock.ExpectQuery(regexp.QuoteMeta("o.staff_id = a.staff_id")).
			WithArgs("a-1", StatusCancelled, StatusScheduled).
			WillReturnRows(appointmentRow("a-1", fixedNow, StatusScheduled, nil))

		a, err := repo.UpdateStatus(context.Background(), "a-1", StatusCancelled, StatusScheduled)
		require.NoError(t, err)
		assert.Equal(t, StatusScheduled, a.Status)
	})

	t.Run("concurrent booking hits the exclusion constraint", func(t *testing.T) {
		conn, mock := testutil.NewSQLMock(t)
		repo := NewRepository(conn)

		mock.ExpectQuery(regexp.QuoteMeta("o.staff_id = a.staff_id")).
			WillReturnError(&pq.Error{Code: "23P01", Constraint: "appointments_staff_no_overlap"})

		_, err := repo.UpdateStatus(context.Background(), "a-1", StatusCancelled, StatusConfirmed)
		assert.ErrorIs(t, err, ErrScheduleConflict)
	})
}

func TestRepository_StatusChangeSkipsSlotCheck(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRepository(conn)

	mock.ExpectQuery(`WHERE a\.id = \$1 AND a\.status = \$2\s+RETURNING`).
		WithArgs("a-1", StatusScheduled, StatusCancelled).
		WillReturnRows(appointmentRow("a-1", fixedNow, StatusCancelled, nil))

	a, err := repo.UpdateStatus(context.Background(), "a-1", StatusScheduled, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, a.Status)
}

func TestRepository_CreateExclusionViolationIsConflict(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnError(&pq.Error{Code: "23P01", Constraint: "appointments_staff_no_overlap"})

	staff := staffUUID
	_, err := repo.Create(context.Background(), Appointment{PatientID: patientUUID, StaffID: &staff, StartTime: fixedNow, EndTime: fixedNow.Add(time.Hour)})
	assert.ErrorIs(t, err, ErrScheduleConflict)
}
