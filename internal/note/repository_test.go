package note

import (
	"context"
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

var noteRowColumns = []string{
	"id", "patient_id", "treatment_plan_id", "appointment_id", "author_id", "type", "content", "created_at", "updated_at",
}

var noteCreatedAt = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

const notePatientID = "4f7d3c1e-8a2b-4c5d-9e6f-0a1b2c3d4e5f"

func TestRepository_ListForPatientFiltersByType(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRepository(conn)
	planID := "6a5b4c3d-2e1f-4a0b-9c8d-7e6f5a4b3c2d"

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM clinical_notes WHERE patient_id = $1 AND type = $2")).
		WithArgs(notePatientID, "PROGRESS").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE patient_id = $1 AND type = $2 ORDER BY created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs(notePatientID, "PROGRESS", 5, 5).
		WillReturnRows(sqlmock.NewRows(noteRowColumns).
			AddRow("n-6", notePatientID, planID, nil, "user-1", "PROGRESS", "Upper arch aligned", noteCreatedAt, nil))

	notes, total, err := repo.ListForPatient(context.Background(), notePatientID, "PROGRESS", pagination.Params{Page: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, notes, 1)
	require.NotNil(t, notes[0].TreatmentPlanID)
	assert.Equal(t, planID, *notes[0].TreatmentPlanID)
	assert.Nil(t, notes[0].AppointmentID)
	assert.Nil(t, notes[0].UpdatedAt)
}

func TestRepository_ListForPatientWithoutType(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRepository(conn)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM clinical_notes WHERE patient_id = $1")).
		WithArgs(notePatientID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3")).
		WithArgs(notePatientID, 20, 0).
		WillReturnRows(sqlmock.NewRows(noteRowColumns))

	notes, total, err := repo.ListForPatient(context.Background(), notePatientID, "", pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)
}

func TestRepository_CreateMapsForeignKeys(t *testing.T) {
	cases := []struct {
		constraint string
		field      string
		notFound   bool
	}{
		{"clinical_notes_patient_id_fkey", "", true},
		{"clinical_notes_treatment_plan_id_fkey", "treatment_plan_id", false},
		{"clinical_notes_appointment_id_fkey", "appointment_id", false},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			conn, mock := testutil.NewSQLMock(t)
			repo := NewRepository(conn)

			mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO clinical_notes")).
				WillReturnError(&pq.Error{Code: "23503", Constraint: tc.constraint})

			_, err := repo.Create(context.Background(), CreateNoteRequest{
				PatientID: notePatientID, AuthorID: "user-1", Type: "GENERAL", Content: "x",
			})
			if tc.notFound {
				assert.ErrorIs(t, err, ErrPatientNotFound)
				return
			}
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestRepository_UpdateAndDeleteMissing(t *testing.T) {
	conn, mock := testutil.NewSQLMock(t)
	repo := NewRepository(conn)

	content := "Elastics worn as instructed"
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE clinical_notes SET content = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs(content, "n-1").
		WillReturnRows(sqlmock.NewRows(noteRowColumns))
	_, err := repo.Update(context.Background(), "n-1", UpdateNoteRequest{Content: &content})
	assert.ErrorIs(t, err, ErrNoteNotFound)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM clinical_notes WHERE id = $1")).
		WithArgs("n-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "n-1"), ErrNoteNotFound)

	_, err = repo.Update(context.Background(), "n-1", UpdateNoteRequest{})
	assert.ErrorIs(t, err, ErrNoFieldsToUpdate)
}
