package assessment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/orthoflow/practice-service/internal/db"
	"github.com/orthoflow/practice-service/internal/pagination"
)

const assessmentColumns = `id, patient_id, assessed_by, angle_class, overjet_mm, overbite_mm, crowding_mm,
	spacing_mm, open_bite_mm, midline_shift_mm, crossbite, score, severity, notes, created_at`

type RepositoryInterface interface {
	Create(ctx context.Context, a Assessment) (*Assessment, error)
	Get(ctx context.Context, id string) (*Assessment, error)
	ListForPatient(ctx context.Context, patientID string, params pagination.Params) ([]Assessment, int, error)
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

func scanAssessment(row rowScanner) (*Assessment, error) {
	var (
		a     Assessment
		notes sql.NullString
	)
	m := &a.Measurements
	err := row.Scan(&a.ID, &a.PatientID, &a.AssessedBy, &m.AngleClass, &m.OverjetMM, &m.OverbiteMM,
		&m.CrowdingMM, &m.SpacingMM, &m.OpenBiteMM, &m.MidlineShiftMM, &m.Crossbite,
		&a.Score, &a.Severity, &notes, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if notes.Valid {
		a.Notes = &notes.String
	}
	return &a, nil
}

func (r *Repository) Create(ctx context.Context, a Assessment) (*Assessment, error) {
	m := a.Measurements
	out, err := scanAssessment(r.q.QueryRowContext(ctx, `
		INSERT INTO assessments (patient_id, assessed_by, angle_class, overjet_mm, overbite_mm, crowding_mm,
			spacing_mm, open_bite_mm, midline_shift_mm, crossbite, score, severity, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+assessmentColumns,
		a.PatientID, a.AssessedBy, m.AngleClass, m.OverjetMM, m.OverbiteMM, m.CrowdingMM,
		m.SpacingMM, m.OpenBiteMM, m.MidlineShiftMM, m.Crossbite, a.Score, a.Severity, a.Notes))
	if err != nil {
		if db.ForeignKeyConstraint(err) == "assessments_patient_id_fkey" {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to insert assessment: %w", err)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Assessment, error) {
	a, err := scanAssessment(r.q.QueryRowContext(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssessmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query assessment: %w", err)
	}
	return a, nil
}

func (r *Repository) ListForPatient(ctx context.Context, patientID string, params pagination.Params) ([]Assessment, int, error) {
	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM assessments WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count assessments: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, `SELECT `+assessmentColumns+` FROM assessments
		WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, params.Limit, params.CalculateOffset())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query assessments: %w", err)
	}
	defer rows.Close()

	out := []Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan assessment: %w", err)
		}
		out = append(out, *a)
	}
	return out, total, rows.Err()
}
