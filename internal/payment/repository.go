package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/orthoflow/practice-service/internal/db"
	"github.com/orthoflow/practice-service/internal/pagination"
)

const paymentColumns = `id, patient_id, treatment_plan_id, amount_cents, currency, method, status,
	reference, notes, paid_at, created_at, updated_at`

// payment date used for ranges and stats
const paymentDate = `COALESCE(paid_at, created_at)`

var sortColumns = map[string]string{
	"paid_at":      paymentDate,
	"created_at":   "created_at",
	"amount_cents": "amount_cents",
}

type RepositoryInterface interface {
	Create(ctx context.Context, p Payment) (*Payment, error)
	Get(ctx context.Context, id string) (*Payment, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) ([]Payment, int, error)
	UpdateStatus(ctx context.Context, id, from, to string, paidAt *time.Time) (*Payment, error)
	Refund(ctx context.Context, id, reason string) (*Payment, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, from, to time.Time) (*Stats, error)
	PatientBalance(ctx context.Context, patientID string) (*Balance, error)
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

func scanPayment(row rowScanner) (*Payment, error) {
	var (
		p                  Payment
		planID, ref, notes sql.NullString
		paidAt, updatedAt  sql.NullTime
	)
	err := row.Scan(&p.ID, &p.PatientID, &planID, &p.AmountCents, &p.Currency, &p.Method, &p.Status,
		&ref, &notes, &paidAt, &p.CreatedAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if planID.Valid {
		p.TreatmentPlanID = &planID.String
	}
	if ref.Valid {
		p.Reference = &ref.String
	}
	if notes.Valid {
		p.Notes = &notes.String
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	return &p, nil
}

// Create inserts the payment. A plan reference must belong to the same
// patient.
func (r *Repository) Create(ctx context.Context, p Payment) (*Payment, error) {
	out, err := scanPayment(r.q.QueryRowContext(ctx, `
		INSERT INTO payments (patient_id, treatment_plan_id, amount_cents, currency, method, status, reference, notes, paid_at)
		SELECT $1::uuid, $2::uuid, $3, $4, $5, $6, $7, $8, $9::timestamptz
		WHERE $2::uuid IS NULL OR EXISTS (
			SELECT 1 FROM treatment_plans WHERE id = $2::uuid AND patient_id = $1::uuid)
		RETURNING `+paymentColumns,
		p.PatientID, p.TreatmentPlanID, p.AmountCents, p.Currency, p.Method, p.Status, p.Reference, p.Notes, p.PaidAt))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanMismatch
	}
	if err != nil {
		if db.ForeignKeyConstraint(err) == "payments_patient_id_fkey" {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}
	return out, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query payment: %w", err)
	}
	return p, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]Payment, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, v interface{}) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.PatientID != "" {
		add("patient_id = $%d", filter.PatientID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Method != "" {
		add("method = $%d", filter.Method)
	}
	if filter.From != nil {
		add(paymentDate+" >= $%d", *filter.From)
	}
	if filter.To != nil {
		add(paymentDate+" < $%d", *filter.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	args = append(args, params.Limit, params.CalculateOffset())
	query := fmt.Sprintf(`SELECT %s FROM payments%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		paymentColumns, where, params.OrderBy(sortColumns, paymentDate+" DESC"), len(args)-1, len(args))
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, total, rows.Err()
}

// UpdateStatus moves a payment from one status to another, keeping an
// existing paid_at. It fails with ErrInvalidTransition when the stored
// status is no longer from.
func (r *Repository) UpdateStatus(ctx context.Context, id, from, to string, paidAt *time.Time) (*Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx, `
		UPDATE payments
		   SET status = $3, paid_at = COALESCE(paid_at, $4::timestamptz), updated_at = NOW()
		 WHERE id = $1 AND status = $2
		RETURNING `+paymentColumns, id, from, to, paidAt))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	return p, nil
}

func (r *Repository) Refund(ctx context.Context, id, reason string) (*Payment, error) {
	p, err := scanPayment(r.q.QueryRowContext(ctx, `
		UPDATE payments
		   SET status = 'REFUNDED',
		       notes = CASE WHEN $2 = '' THEN notes
		                    ELSE concat_ws(E'\n', notes, 'Refund: ' || $2) END,
		       updated_at = NOW()
		 WHERE id = $1 AND status = 'COMPLETED'
		RETURNING `+paymentColumns, id, reason))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrNotRefundable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to refund payment: %w", err)
	}
	return p, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM payments WHERE id = $1 AND status IN ('PENDING', 'FAILED')`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, getErr := r.Get(ctx, id); getErr != nil {
			return getErr
		}
		return ErrNotDeletable
	}
	return nil
}

func (r *Repository) Stats(ctx context.Context, from, to time.Time) (*Stats, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT status, method, COUNT(*), COALESCE(SUM(amount_cents), 0)
		  FROM payments
		 WHERE `+paymentDate+` >= $1 AND `+paymentDate+` < $2
		 GROUP BY status, method`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment stats: %w", err)
	}
	defer rows.Close()

	stats := &Stats{From: from, To: to, ByMethod: []MethodTotal{}}
	byMethod := map[string]*MethodTotal{}
	for rows.Next() {
		var (
			status, method string
			count          int
			sum            int64
		)
		if err := rows.Scan(&status, &method, &count, &sum); err != nil {
			return nil, fmt.Errorf("failed to scan payment stats: %w", err)
		}
		stats.Count += count
		switch status {
		case StatusCompleted:
			stats.CollectedCents += sum
			mt, ok := byMethod[method]
			if !ok {
				mt = &MethodTotal{Method: method}
				byMethod[method] = mt
			}
			mt.Count += count
			mt.TotalCents += sum
		case StatusPending:
			stats.PendingCents += sum
		case StatusRefunded:
			stats.RefundedCents += sum
		case StatusFailed:
			stats.FailedCount += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, mt := range byMethod {
		stats.ByMethod = append(stats.ByMethod, *mt)
	}
	sort.Slice(stats.ByMethod, func(i, j int) bool {
		if stats.ByMethod[i].TotalCents != stats.ByMethod[j].TotalCents {
			return stats.ByMethod[i].TotalCents > stats.ByMethod[j].TotalCents
		}
		return stats.ByMethod[i].Method < stats.ByMethod[j].Method
	})
	return stats, nil
}

func (r *Repository) PatientBalance(ctx context.Context, patientID string) (*Balance, error) {
	var exists bool
	if err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1 AND deleted_at IS NULL)`, patientID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check patient: %w", err)
	}
	if !exists {
		return nil, ErrPatientNotFound
	}

	b := &Balance{PatientID: patientID}
	err := r.q.QueryRowContext(ctx, `
		SELECT
			(SELECT COALESCE(SUM(total_cost_cents), 0) FROM treatment_plans
			  WHERE patient_id = $1 AND status <> 'CANCELLED'),
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'COMPLETED'), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'REFUNDED'), 0),
			COALESCE(SUM(amount_cents) FILTER (WHERE status = 'PENDING'), 0)
		  FROM payments
		 WHERE patient_id = $1`, patientID).
		Scan(&b.TotalPlanCostCents, &b.PaidCents, &b.RefundedCents, &b.PendingCents)
	if err != nil {
		return nil, fmt.Errorf("failed to compute patient balance: %w", err)
	}

	if diff := b.TotalPlanCostCents - b.PaidCents; diff > 0 {
		b.OutstandingCents = diff
	} else {
		b.CreditCents = -diff
	}
	return b, nil
}
