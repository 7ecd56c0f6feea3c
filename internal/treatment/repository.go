package treatment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/db"
)

const planColumns = `id, patient_id, orthodontist_id, title, diagnosis, description, appliance_type, status,
	to_char(start_date, 'YYYY-MM-DD'), to_char(estimated_end_date, 'YYYY-MM-DD'), total_cost_cents,
	created_at, updated_at`

const phaseColumns = `id, plan_id, sequence, name, description, status,
	to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'), notes, created_at, updated_at`

// phaseColumns qualified for queries that join treatment_plans
const joinedPhaseColumns = `ph.id, ph.plan_id, ph.sequence, ph.name, ph.description, ph.status,
	to_char(ph.start_date, 'YYYY-MM-DD'), to_char(ph.end_date, 'YYYY-MM-DD'), ph.notes, ph.created_at, ph.updated_at`

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlan(row rowScanner) (*Plan, error) {
	var (
		p                               Plan
		orthodontistID, diagnosis, desc sql.NullString
		startDate, estimatedEnd         sql.NullString
		updatedAt                       sql.NullTime
	)
	err := row.Scan(&p.ID, &p.PatientID, &orthodontistID, &p.Title, &diagnosis, &desc,
		&p.ApplianceType, &p.Status, &startDate, &estimatedEnd, &p.TotalCostCents,
		&p.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if orthodontistID.Valid {
		p.OrthodontistID = &orthodontistID.String
	}
	p.Diagnosis = diagnosis.String
	p.Description = desc.String
	if startDate.Valid {
		p.StartDate = &startDate.String
	}
	if estimatedEnd.Valid {
		p.EstimatedEndDate = &estimatedEnd.String
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	p.Phases = []Phase{}
	return &p, nil
}

func scanPhase(row rowScanner) (*Phase, error) {
	var (
		ph                 Phase
		desc, notes        sql.NullString
		startDate, endDate sql.NullString
		updatedAt          sql.NullTime
	)
	err := row.Scan(&ph.ID, &ph.PlanID, &ph.Sequence, &ph.Name, &desc, &ph.Status,
		&startDate, &endDate, &notes, &ph.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	ph.Description = desc.String
	ph.Notes = notes.String
	if startDate.Valid {
		ph.StartDate = &startDate.String
	}
	if endDate.Valid {
		ph.EndDate = &endDate.String
	}
	if updatedAt.Valid {
		ph.UpdatedAt = &updatedAt.Time
	}
	return &ph, nil
}

// mapWriteErr turns foreign key violations on plan writes into domain errors.
func mapWriteErr(err error) error {
	switch db.ForeignKeyConstraint(err) {
	case "treatment_plans_patient_id_fkey":
		return ErrPatientNotFound
	case "treatment_plans_orthodontist_id_fkey":
		return apperr.Invalid("orthodontist_id", "does not reference a staff member")
	case "treatment_phases_plan_id_fkey":
		return ErrPlanNotFound
	}
	return err
}

func (r *Repository) CreatePlan(ctx context.Context, req CreatePlanRequest) (*Plan, error) {
	var plan *Plan
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		plan, err = scanPlan(tx.QueryRowContext(ctx, `
			INSERT INTO treatment_plans
			(patient_id, orthodontist_id, title, diagnosis, description, appliance_type,
			 start_date, estimated_end_date, total_cost_cents)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6,
			        NULLIF($7, '')::date, NULLIF($8, '')::date, $9)
			RETURNING `+planColumns,
			req.PatientID, req.OrthodontistID, req.Title, req.Diagnosis, req.Description,
			req.ApplianceType, req.StartDate, req.EstimatedEndDate, req.TotalCostCents,
		))
		if err != nil {
			return mapWriteErr(err)
		}

		for i, phaseReq := range req.Phases {
			ph, err := scanPhase(tx.QueryRowContext(ctx, `
				INSERT INTO treatment_phases (plan_id, sequence, name, description, notes)
				VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
				RETURNING `+phaseColumns,
				plan.ID, i+1, phaseReq.Name, phaseReq.Description, phaseReq.Notes,
			))
			if err != nil {
				return fmt.Errorf("failed to insert phase %d: %w", i+1, err)
			}
			plan.Phases = append(plan.Phases, *ph)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) || errors.Is(err, apperr.ErrInvalid) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create treatment plan: %w", err)
	}
	plan.Progress = Progress(plan.Phases)
	return plan, nil
}

func (r *Repository) GetPlan(ctx context.Context, id string) (*Plan, error) {
	plan, err := scanPlan(r.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM treatment_plans WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query treatment plan: %w", err)
	}

	plan.Phases, err = r.ListPhases(ctx, id)
	if err != nil {
		return nil, err
	}
	plan.Progress = Progress(plan.Phases)
	return plan, nil
}

func (r *Repository) ListPlansForPatient(ctx context.Context, patientID string) ([]Plan, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+planColumns+`
		FROM treatment_plans
		WHERE patient_id = $1
		ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query treatment plans: %w", err)
	}
	defer rows.Close()

	plans := []Plan{}
	index := map[string]int{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan treatment plan: %w", err)
		}
		index[p.ID] = len(plans)
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return plans, nil
	}

	phaseRows, err := r.db.QueryContext(ctx, `
		SELECT `+joinedPhaseColumns+`
		FROM treatment_phases ph
		JOIN treatment_plans p ON p.id = ph.plan_id
		WHERE p.patient_id = $1
		ORDER BY ph.plan_id, ph.sequence`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query treatment phases: %w", err)
	}
	defer phaseRows.Close()

	for phaseRows.Next() {
		ph, err := scanPhase(phaseRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan treatment phase: %w", err)
		}
		if i, ok := index[ph.PlanID]; ok {
			plans[i].Phases = append(plans[i].Phases, *ph)
		}
	}
	if err := phaseRows.Err(); err != nil {
		return nil, err
	}

	for i := range plans {
		plans[i].Progress = Progress(plans[i].Phases)
	}
	return plans, nil
}

func (r *Repository) UpdatePlan(ctx context.Context, id string, req UpdatePlanRequest) (*Plan, error) {
	var updates []string
	var args []interface{}
	set := func(expr string, value interface{}) {
		args = append(args, value)
		updates = append(updates, fmt.Sprintf(expr, len(args)))
	}

	if req.OrthodontistID != nil {
		set("orthodontist_id = NULLIF($%d, '')::uuid", *req.OrthodontistID)
	}
	if req.Title != nil {
		set("title = $%d", *req.Title)
	}
	if req.Diagnosis != nil {
		set("diagnosis = NULLIF($%d, '')", *req.Diagnosis)
	}
	if req.Description != nil {
		set("description = NULLIF($%d, '')", *req.Description)
	}
	if req.ApplianceType != nil {
		set("appliance_type = $%d", *req.ApplianceType)
	}
	if req.StartDate != nil {
		set("start_date = NULLIF($%d, '')::date", *req.StartDate)
	}
	if req.EstimatedEndDate != nil {
		set("estimated_end_date = NULLIF($%d, '')::date", *req.EstimatedEndDate)
	}
	if req.TotalCostCents != nil {
		set("total_cost_cents = $%d", *req.TotalCostCents)
	}
	if len(updates) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	updates = append(updates, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE treatment_plans SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(updates, ", "), len(args), planColumns)
	plan, err := scanPlan(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		if mapped := mapWriteErr(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to update treatment plan: %w", err)
	}

	plan.Phases, err = r.ListPhases(ctx, id)
	if err != nil {
		return nil, err
	}
	plan.Progress = Progress(plan.Phases)
	return plan, nil
}

// UpdatePlanStatus moves the plan from one status to another. The update only
// applies if the plan is still in from; otherwise ErrStatusChanged.
func (r *Repository) UpdatePlanStatus(ctx context.Context, id, from, to string) (*Plan, error) {
	plan, err := scanPlan(r.db.QueryRowContext(ctx, `
		UPDATE treatment_plans
		SET status = $3,
		    start_date = CASE WHEN $3 = 'ACTIVE' THEN COALESCE(start_date, CURRENT_DATE) ELSE start_date END,
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+planColumns, id, from, to))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusChanged
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update treatment plan status: %w", err)
	}

	plan.Phases, err = r.ListPhases(ctx, id)
	if err != nil {
		return nil, err
	}
	plan.Progress = Progress(plan.Phases)
	return plan, nil
}

func (r *Repository) DeletePlan(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM treatment_plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete treatment plan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// AddPhase appends a phase after the current last one.
func (r *Repository) AddPhase(ctx context.Context, planID string, req CreatePhaseRequest) (*Phase, error) {
	ph, err := scanPhase(r.db.QueryRowContext(ctx, `
		INSERT INTO treatment_phases (plan_id, sequence, name, description, notes)
		SELECT $1, COALESCE(MAX(sequence), 0) + 1, $2, NULLIF($3, ''), NULLIF($4, '')
		FROM treatment_phases
		WHERE plan_id = $1
		RETURNING `+phaseColumns, planID, req.Name, req.Description, req.Notes))
	if err != nil {
		if db.IsUniqueViolation(err, "treatment_phases_plan_sequence_key") {
			return nil, apperr.Conflict("phases of this plan were changed concurrently")
		}
		if mapped := mapWriteErr(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to add treatment phase: %w", err)
	}
	return ph, nil
}

func (r *Repository) GetPhase(ctx context.Context, planID, phaseID string) (*Phase, error) {
	ph, err := scanPhase(r.db.QueryRowContext(ctx,
		`SELECT `+phaseColumns+` FROM treatment_phases WHERE id = $1 AND plan_id = $2`, phaseID, planID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPhaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query treatment phase: %w", err)
	}
	return ph, nil
}

func (r *Repository) ListPhases(ctx context.Context, planID string) ([]Phase, error) {
	return listPhases(ctx, r.db, planID)
}

func listPhases(ctx context.Context, q db.Queryer, planID string) ([]Phase, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+phaseColumns+` FROM treatment_phases WHERE plan_id = $1 ORDER BY sequence`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query treatment phases: %w", err)
	}
	defer rows.Close()

	phases := []Phase{}
	for rows.Next() {
		ph, err := scanPhase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan treatment phase: %w", err)
		}
		phases = append(phases, *ph)
	}
	return phases, rows.Err()
}

func (r *Repository) UpdatePhase(ctx context.Context, planID, phaseID string, req UpdatePhaseRequest) (*Phase, error) {
	var updates []string
	var args []interface{}
	set := func(expr string, value interface{}) {
		args = append(args, value)
		updates = append(updates, fmt.Sprintf(expr, len(args)))
	}

	if req.Name != nil {
		set("name = $%d", *req.Name)
	}
	if req.Description != nil {
		set("description = NULLIF($%d, '')", *req.Description)
	}
	if req.Notes != nil {
		set("notes = NULLIF($%d, '')", *req.Notes)
	}
	if req.StartDate != nil {
		set("start_date = NULLIF($%d, '')::date", *req.StartDate)
	}
	if req.EndDate != nil {
		set("end_date = NULLIF($%d, '')::date", *req.EndDate)
	}
	if len(updates) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	updates = append(updates, "updated_at = NOW()")
	args = append(args, phaseID, planID)

	query := fmt.Sprintf(`UPDATE treatment_phases SET %s WHERE id = $%d AND plan_id = $%d RETURNING %s`,
		strings.Join(updates, ", "), len(args)-1, len(args), phaseColumns)
	ph, err := scanPhase(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPhaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update treatment phase: %w", err)
	}
	return ph, nil
}

// SetPhaseStatus changes a phase's status. Starting a phase fills in its
// start date and completing it fills in its end date, unless already set.
func (r *Repository) SetPhaseStatus(ctx context.Context, planID, phaseID, status, today string) (*Phase, error) {
	ph, err := scanPhase(r.db.QueryRowContext(ctx, `
		UPDATE treatment_phases
		SET status = $3,
		    start_date = CASE WHEN $3 = 'IN_PROGRESS' AND start_date IS NULL THEN $4::date ELSE start_date END,
		    end_date = CASE WHEN $3 = 'COMPLETED' AND end_date IS NULL THEN $4::date ELSE end_date END,
		    updated_at = NOW()
		WHERE id = $1 AND plan_id = $2
		RETURNING `+phaseColumns, phaseID, planID, status, today))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPhaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update treatment phase status: %w", err)
	}
	return ph, nil
}

// ReorderPhases rewrites sequences so phaseIDs[i] gets i+1. phaseIDs must
// name every phase of the plan exactly once.
func (r *Repository) ReorderPhases(ctx context.Context, planID string, phaseIDs []string) ([]Phase, error) {
	var phases []Phase
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		current, err := listPhases(ctx, tx, planID)
		if err != nil {
			return err
		}
		if !sameSet(current, phaseIDs) {
			return ErrReorderMismatch
		}

		if _, err := tx.ExecContext(ctx, `SET CONSTRAINTS treatment_phases_plan_sequence_key DEFERRED`); err != nil {
			return fmt.Errorf("failed to defer sequence constraint: %w", err)
		}
		for i, id := range phaseIDs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE treatment_phases SET sequence = $1, updated_at = NOW() WHERE id = $2 AND plan_id = $3`,
				i+1, id, planID); err != nil {
				return fmt.Errorf("failed to move phase %s: %w", id, err)
			}
		}

		phases, err = listPhases(ctx, tx, planID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return phases, nil
}

func sameSet(phases []Phase, ids []string) bool {
	if len(phases) != len(ids) {
		return false
	}
	want := make(map[string]bool, len(phases))
	for _, ph := range phases {
		want[ph.ID] = true
	}
	for _, id := range ids {
		if !want[id] {
			return false
		}
		delete(want, id)
	}
	return true
}

// DeletePhase removes a phase and closes the gap in the sequence.
func (r *Repository) DeletePhase(ctx context.Context, planID, phaseID string) error {
	return db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var seq int
		err := tx.QueryRowContext(ctx,
			`DELETE FROM treatment_phases WHERE id = $1 AND plan_id = $2 RETURNING sequence`,
			phaseID, planID).Scan(&seq)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPhaseNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to delete treatment phase: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE treatment_phases SET sequence = sequence - 1 WHERE plan_id = $1 AND sequence > $2`,
			planID, seq); err != nil {
			return fmt.Errorf("failed to resequence phases: %w", err)
		}
		return nil
	})
}
