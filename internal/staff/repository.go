package staff

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/orthoflow/practice-service/internal/db"
	"github.com/orthoflow/practice-service/internal/pagination"
)

const staffColumns = `id, full_name, email, phone, role, is_active, created_at, updated_at`

var sortColumns = map[string]string{
	"full_name":  "full_name",
	"role":       "role",
	"created_at": "created_at",
}

type Repository struct {
	q db.Queryer
}

func NewRepository(q db.Queryer) *Repository {
	return &Repository{q: q}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMember(row rowScanner) (*Member, error) {
	var (
		m         Member
		phone     sql.NullString
		updatedAt sql.NullTime
	)
	if err := row.Scan(&m.ID, &m.FullName, &m.Email, &phone, &m.Role, &m.IsActive, &m.CreatedAt, &updatedAt); err != nil {
		return nil, err
	}
	m.Phone = phone.String
	if updatedAt.Valid {
		m.UpdatedAt = &updatedAt.Time
	}
	return &m, nil
}

func (r *Repository) Create(ctx context.Context, req CreateStaffRequest) (*Member, error) {
	query := `
		INSERT INTO staff (full_name, email, phone, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + staffColumns

	var phone sql.NullString
	if req.Phone != "" {
		phone = sql.NullString{String: req.Phone, Valid: true}
	}

	m, err := scanMember(r.q.QueryRowContext(ctx, query, req.FullName, req.Email, phone, req.Role))
	if err != nil {
		if db.IsUniqueViolation(err, "staff_email_active_key") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to insert staff member: %w", err)
	}
	return m, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Member, error) {
	query := `SELECT ` + staffColumns + ` FROM staff WHERE id = $1 AND deleted_at IS NULL`

	m, err := scanMember(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStaffNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query staff member: %w", err)
	}
	return m, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]Member, int, error) {
	where := []string{"deleted_at IS NULL"}
	var args []interface{}
	if filter.Role != "" {
		args = append(args, filter.Role)
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM staff WHERE `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count staff: %w", err)
	}

	args = append(args, params.Limit, params.CalculateOffset())
	query := fmt.Sprintf(`SELECT %s FROM staff WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		staffColumns, whereSQL, params.OrderBy(sortColumns, "full_name ASC"), len(args)-1, len(args))

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query staff: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan staff member: %w", err)
		}
		members = append(members, *m)
	}
	return members, total, rows.Err()
}

func (r *Repository) Update(ctx context.Context, id string, req UpdateStaffRequest) (*Member, error) {
	var updates []string
	var args []interface{}
	argPos := 1

	if req.FullName != nil {
		updates = append(updates, fmt.Sprintf("full_name = $%d", argPos))
		args = append(args, *req.FullName)
		argPos++
	}
	if req.Email != nil {
		updates = append(updates, fmt.Sprintf("email = $%d", argPos))
		args = append(args, *req.Email)
		argPos++
	}
	if req.Phone != nil {
		updates = append(updates, fmt.Sprintf("phone = NULLIF($%d, '')", argPos))
		args = append(args, *req.Phone)
		argPos++
	}
	if req.Role != nil {
		updates = append(updates, fmt.Sprintf("role = $%d", argPos))
		args = append(args, *req.Role)
		argPos++
	}
	if req.IsActive != nil {
		updates = append(updates, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *req.IsActive)
		argPos++
	}

	if len(updates) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	updates = append(updates, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE staff
		SET %s
		WHERE id = $%d AND deleted_at IS NULL
		RETURNING %s
	`, strings.Join(updates, ", "), argPos, staffColumns)

	m, err := scanMember(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStaffNotFound
	}
	if err != nil {
		if db.IsUniqueViolation(err, "staff_email_active_key") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to update staff member: %w", err)
	}
	return m, nil
}

// Deactivate soft-deletes the member. Appointments and plans keep their
// reference so history still shows who treated the patient.
func (r *Repository) Deactivate(ctx context.Context, id string) (*Member, error) {
	query := `
		UPDATE staff
		SET is_active = false, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + staffColumns

	m, err := scanMember(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStaffNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to deactivate staff member: %w", err)
	}
	return m, nil
}
