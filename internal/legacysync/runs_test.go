package legacysync

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orthoflow/practice-service/internal/testutil"
)

var runCols = []string{
	"id", "triggered_by", "status", "started_at", "finished_at", "processed", "patients_created",
	"patients_matched", "appointments_created", "appointments_updated", "unchanged", "skipped", "failed", "issues", "error",
}

func TestRunRepository_Latest(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRunRepository(conn)
	finished := fixedNow.Add(time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sync_runs ORDER BY started_at DESC LIMIT 1")).
		WillReturnRows(sqlmock.NewRows(runCols).AddRow(
			"run-1", TriggerScheduler, StatusPartial, fixedNow, finished, 3, 1, 1, 1, 0, 0, 1, 0,
			[]byte(`[{"booking_id":9,"kind":"skipped","reason":"booking has neither email nor phone"}]`), nil))

	rep, err := repo.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, rep.Status)
	assert.Equal(t, finished, *rep.FinishedAt)
	assert.Equal(t, []Issue{{BookingID: 9, Kind: IssueSkipped, Reason: "booking has neither email nor phone"}}, rep.Issues)
	assert.Empty(t, rep.Error)
}

func TestRunRepository_LatestEmpty(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRunRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("FROM sync_runs")).WillReturnRows(sqlmock.NewRows(runCols))

	_, err := repo.Latest(context.Background())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunRepository_StartAndFinish(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRunRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sync_runs")).
		WithArgs(TriggerManual, StatusRunning, fixedNow).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("run-2"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE sync_runs")).
		WithArgs("run-2", StatusSucceeded, sqlmock.AnyArg(), 2, 0, 2, 0, 1, 1, 0, 0, []byte("[]"), "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.Start(context.Background(), TriggerManual, fixedNow)
	require.NoError(t, err)

	rep := &Report{ID: id, Trigger: TriggerManual, Processed: 2, PatientsMatched: 2, AppointmentsUpdated: 1, Unchanged: 1, Issues: []Issue{}}
	rep.finish(fixedNow.Add(time.Second))
	require.NoError(t, repo.Finish(context.Background(), rep))
}
