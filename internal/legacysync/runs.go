package legacysync

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const runColumns = `id, triggered_by, status, started_at, finished_at, processed, patients_created,
	patients_matched, appointments_created, appointments_updated, unchanged, skipped, failed, issues, error`

// RunStore persists sync run reports.
type RunStore interface {
	Start(ctx context.Context, trigger string, at time.Time) (string, error)
	Finish(ctx context.Context, r *Report) error
	List(ctx context.Context, limit int) ([]Report, error)
	Latest(ctx context.Context) (*Report, error)
}

type RunRepository struct {
	db *sql.DB
}

func NewRunRepository(conn *sql.DB) *RunRepository {
	return &RunRepository{db: conn}
}

var _ RunStore = (*RunRepository)(nil)

func (r *RunRepository) Start(ctx context.Context, trigger string, at time.Time) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sync_runs (triggered_by, status, started_at) VALUES ($1, $2, $3) RETURNING id`,
		trigger, StatusRunning, at).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to record sync run: %w", err)
	}
	return id, nil
}

func (r *RunRepository) Finish(ctx context.Context, rep *Report) error {
	issues, err := json.Marshal(rep.Issues)
	if err != nil {
		return fmt.Errorf("failed to encode sync issues: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE sync_runs
		   SET status = $2, finished_at = $3, processed = $4, patients_created = $5, patients_matched = $6,
		       appointments_created = $7, appointments_updated = $8, unchanged = $9, skipped = $10,
		       failed = $11, issues = $12, error = NULLIF($13, '')
		 WHERE id = $1`,
		rep.ID, rep.Status, rep.FinishedAt, rep.Processed, rep.PatientsCreated, rep.PatientsMatched,
		rep.AppointmentsCreated, rep.AppointmentsUpdated, rep.Unchanged, rep.Skipped,
		rep.Failed, issues, rep.Error)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}
	return nil
}

func (r *RunRepository) List(ctx context.Context, limit int) ([]Report, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	out := []Report{}
	for rows.Next() {
		rep, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rep)
	}
	return out, rows.Err()
}

func (r *RunRepository) Latest(ctx context.Context) (*Report, error) {
	rep, err := scanRun(r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM sync_runs ORDER BY started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	return rep, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Report, error) {
	var (
		rep      Report
		finished sql.NullTime
		issues   []byte
		errText  sql.NullString
	)
	err := row.Scan(&rep.ID, &rep.Trigger, &rep.Status, &rep.StartedAt, &finished, &rep.Processed,
		&rep.PatientsCreated, &rep.PatientsMatched, &rep.AppointmentsCreated, &rep.AppointmentsUpdated,
		&rep.Unchanged, &rep.Skipped, &rep.Failed, &issues, &errText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}
	if finished.Valid {
		rep.FinishedAt = &finished.Time
	}
	rep.Error = errText.String
	rep.Issues = []Issue{}
	if len(issues) > 0 {
		if err := json.Unmarshal(issues, &rep.Issues); err != nil {
			return nil, fmt.Errorf("failed to decode sync issues: %w", err)
		}
	}
	return &rep, nil
}
