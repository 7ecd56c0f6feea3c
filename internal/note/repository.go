package note

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/db"
	"github.com/orthoflow/practice-service/internal/pagination"
)

const noteColumns = `id, patient_id, treatment_plan_id, appointment_id, author_id, type, content, created_at, updated_at`

type RepositoryInterface interface {
	Create(ctx context.Context, req CreateNoteRequest) (*ClinicalNote, error)
	Get(ctx context.Context, id string) (*ClinicalNote, error)
	ListForPatient(ctx context.Context, patientID, noteType string, params pagination.Params) ([]ClinicalNote, int, error)
	Update(ctx context.Context, id string, req UpdateNoteRequest) (*ClinicalNote, error)
	Delete(ctx context.Context, id string) error
}

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

func scanNote(row rowScanner) (*ClinicalNote, error) {
	var (
		n              ClinicalNote
		planID, apptID sql.NullString
		updatedAt      sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.PatientID, &planID, &apptID, &n.AuthorID, &n.Type, &n.Content, &n.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	if planID.Valid {
		n.TreatmentPlanID = &planID.String
	}
	if apptID.Valid {
		n.AppointmentID = &apptID.String
	}
	if updatedAt.Valid {
		n.UpdatedAt = &updatedAt.Time
	}
	return &n, nil
}

func (r *Repository) Create(ctx context.Context, req CreateNoteRequest) (*ClinicalNote, error) {
	n, err := scanNote(r.q.QueryRowContext(ctx, `
		INSERT INTO clinical_notes (patient_id, treatment_plan_id, appointment_id, author_id, type, content)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+noteColumns,
		req.PatientID, req.TreatmentPlanID, req.AppointmentID, req.AuthorID, req.Type, req.Content))
	if err != nil {
		switch db.ForeignKeyConstraint(err) {
		case "clinical_notes_patient_id_fkey":
			return nil, ErrPatientNotFound
		case "clinical_notes_treatment_plan_id_fkey":
			return nil, apperr.Invalid("treatment_plan_id", "does not reference a treatment plan")
		case "clinical_notes_appointment_id_fkey":
			return nil, apperr.Invalid("appointment_id", "does not reference an appointment")
		}
		return nil, fmt.Errorf("failed to insert clinical note: %w", err)
	}
	return n, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*ClinicalNote, error) {
	n, err := scanNote(r.q.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM clinical_notes WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query clinical note: %w", err)
	}
	return n, nil
}

func (r *Repository) ListForPatient(ctx context.Context, patientID, noteType string, params pagination.Params) ([]ClinicalNote, int, error) {
	where := "patient_id = $1"
	args := []interface{}{patientID}
	if noteType != "" {
		args = append(args, noteType)
		where += " AND type = $2"
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM clinical_notes WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count clinical notes: %w", err)
	}

	args = append(args, params.Limit, params.CalculateOffset())
	query := fmt.Sprintf(`SELECT %s FROM clinical_notes WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		noteColumns, where, len(args)-1, len(args))
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query clinical notes: %w", err)
	}
	defer rows.Close()

	notes := []ClinicalNote{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan clinical note: %w", err)
		}
		notes = append(notes, *n)
	}
	return notes, total, rows.Err()
}

func (r *Repository) Update(ctx context.Context, id string, req UpdateNoteRequest) (*ClinicalNote, error) {
	var updates []string
	var args []interface{}
	if req.Type != nil {
		args = append(args, *req.Type)
		updates = append(updates, fmt.Sprintf("type = $%d", len(args)))
	}
	if req.Content != nil {
		args = append(args, *req.Content)
		updates = append(updates, fmt.Sprintf("content = $%d", len(args)))
	}
	if len(updates) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	updates = append(updates, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE clinical_notes SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(updates, ", "), len(args), noteColumns)
	n, err := scanNote(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update clinical note: %w", err)
	}
	return n, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM clinical_notes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete clinical note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoteNotFound
	}
	return nil
}
