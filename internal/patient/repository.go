package patient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orthoflow/practice-service/internal/db"
	"github.com/orthoflow/practice-service/internal/pagination"
)

const patientColumns = `id, first_name, last_name, email, phone, to_char(date_of_birth, 'YYYY-MM-DD'),
	gender, address, emergency_contact_name, emergency_contact_phone, medical_history, allergies,
	legacy_source, is_active, created_at, updated_at, deleted_at`

// phone numbers match on their trailing digits so "+49 151 2345678" and
// "0151 2345678" resolve to the same patient
const phoneSuffixDigits = 9

var sortColumns = map[string]string{
	"first_name": "first_name",
	"last_name":  "last_name",
	"created_at": "created_at",
	"email":      "email",
}

// Repository runs patient queries against a pool or a transaction.
type Repository struct {
	q db.Queryer
}

func NewRepository(q db.Queryer) *Repository {
	return &Repository{q: q}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var (
		p                                          Patient
		email, phone, dob, gender, address         sql.NullString
		ecName, ecPhone, medicalHistory, allergies sql.NullString
		updatedAt, deletedAt                       sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &email, &phone, &dob,
		&gender, &address, &ecName, &ecPhone, &medicalHistory, &allergies,
		&p.LegacySource, &p.IsActive, &p.CreatedAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Email = email.String
	p.Phone = phone.String
	if dob.Valid {
		p.DateOfBirth = &dob.String
	}
	p.Gender = gender.String
	p.Address = address.String
	p.EmergencyContactName = ecName.String
	p.EmergencyContactPhone = ecPhone.String
	p.MedicalHistory = medicalHistory.String
	p.Allergies = allergies.String
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	if deletedAt.Valid {
		p.DeletedAt = &deletedAt.Time
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, req CreatePatientRequest) (*Patient, error) {
	source := req.LegacySource
	if source == "" {
		source = SourceLocal
	}

	query := `
		INSERT INTO patients
		(first_name, last_name, email, phone, phone_digits, date_of_birth, gender, address,
		 emergency_contact_name, emergency_contact_phone, medical_history, allergies, legacy_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING ` + patientColumns

	p, err := scanPatient(r.q.QueryRowContext(ctx, query,
		req.FirstName,
		req.LastName,
		nullString(normalizeEmail(req.Email)),
		nullString(req.Phone),
		nullString(NormalizePhone(req.Phone)),
		nullString(req.DateOfBirth),
		nullString(req.Gender),
		nullString(req.Address),
		nullString(req.EmergencyContactName),
		nullString(req.EmergencyContactPhone),
		nullString(req.MedicalHistory),
		nullString(req.Allergies),
		source,
	))
	if err != nil {
		if db.IsUniqueViolation(err, "patients_email_active_key") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to insert patient: %w", err)
	}
	return p, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1 AND deleted_at IS NULL`

	p, err := scanPatient(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query patient: %w", err)
	}
	return p, nil
}

func (r *Repository) Counts(ctx context.Context, id string) (Counts, error) {
	var c Counts
	err := r.q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM treatment_plans WHERE patient_id = $1),
			(SELECT COUNT(*) FROM appointments WHERE patient_id = $1),
			(SELECT COUNT(*) FROM photos WHERE patient_id = $1)
	`, id).Scan(&c.TreatmentPlans, &c.Appointments, &c.Photos)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count patient records: %w", err)
	}
	return c, nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]Patient, int, error) {
	where := []string{"deleted_at IS NULL"}
	var args []interface{}

	if filter.Active != nil {
		args = append(args, *filter.Active)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		cond := fmt.Sprintf("(first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR (first_name || ' ' || last_name) ILIKE $%[1]d OR email ILIKE $%[1]d", n)
		if digits := NormalizePhone(s); len(digits) >= 3 {
			args = append(args, "%"+digits+"%")
			cond += fmt.Sprintf(" OR phone_digits LIKE $%d", len(args))
		}
		where = append(where, cond+")")
	}
	whereSQL := strings.Join(where, " AND ")

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM patients WHERE `+whereSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	orderBy := params.OrderBy(sortColumns, "last_name ASC, first_name ASC")
	args = append(args, params.Limit, params.CalculateOffset())
	query := fmt.Sprintf(`SELECT %s FROM patients WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		patientColumns, whereSQL, orderBy, len(args)-1, len(args))

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query patients: %w", err)
	}
	defer rows.Close()

	patients := []Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating patients: %w", err)
	}
	return patients, total, nil
}

func (r *Repository) Update(ctx context.Context, id string, req UpdatePatientRequest) (*Patient, error) {
	var updates []string
	var args []interface{}

	set := func(column string, value interface{}) {
		args = append(args, value)
		updates = append(updates, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if req.FirstName != nil {
		set("first_name", strings.TrimSpace(*req.FirstName))
	}
	if req.LastName != nil {
		set("last_name", strings.TrimSpace(*req.LastName))
	}
	if req.Email != nil {
		set("email", nullString(normalizeEmail(*req.Email)))
	}
	if req.Phone != nil {
		set("phone", nullString(*req.Phone))
		set("phone_digits", nullString(NormalizePhone(*req.Phone)))
	}
	if req.DateOfBirth != nil {
		set("date_of_birth", nullString(*req.DateOfBirth))
	}
	if req.Gender != nil {
		set("gender", nullString(*req.Gender))
	}
	if req.Address != nil {
		set("address", nullString(*req.Address))
	}
	if req.EmergencyContactName != nil {
		set("emergency_contact_name", nullString(*req.EmergencyContactName))
	}
	if req.EmergencyContactPhone != nil {
		set("emergency_contact_phone", nullString(*req.EmergencyContactPhone))
	}
	if req.MedicalHistory != nil {
		set("medical_history", nullString(*req.MedicalHistory))
	}
	if req.Allergies != nil {
		set("allergies", nullString(*req.Allergies))
	}
	if req.IsActive != nil {
		set("is_active", *req.IsActive)
	}

	if len(updates) == 0 {
		return nil, ErrNoFieldsToUpdate
	}
	updates = append(updates, "updated_at = NOW()")

	args = append(args, id)
	query := fmt.Sprintf(`
		UPDATE patients
		SET %s
		WHERE id = $%d AND deleted_at IS NULL
		RETURNING %s`, strings.Join(updates, ", "), len(args), patientColumns)

	p, err := scanPatient(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		if db.IsUniqueViolation(err, "patients_email_active_key") {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}
	return p, nil
}

func (r *Repository) SoftDelete(ctx context.Context, id string) (time.Time, error) {
	var deletedAt time.Time
	err := r.q.QueryRowContext(ctx, `
		UPDATE patients
		SET deleted_at = NOW(), is_active = false, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING deleted_at
	`, id).Scan(&deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrPatientNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to delete patient: %w", err)
	}
	return deletedAt, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*Patient, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrPatientNotFound
	}
	query := `SELECT ` + patientColumns + `
		FROM patients
		WHERE lower(email) = $1 AND deleted_at IS NULL
		LIMIT 1`

	p, err := scanPatient(r.q.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find patient by email: %w", err)
	}
	return p, nil
}

func (r *Repository) FindByPhone(ctx context.Context, phone string) (*Patient, error) {
	digits := NormalizePhone(phone)
	if digits == "" {
		return nil, ErrPatientNotFound
	}
	query := `SELECT ` + patientColumns + `
		FROM patients
		WHERE deleted_at IS NULL
		  AND (phone_digits = $1 OR (length($1) >= $2 AND right(phone_digits, $2) = right($1, $2)))
		ORDER BY created_at
		LIMIT 1`

	p, err := scanPatient(r.q.QueryRowContext(ctx, query, digits, phoneSuffixDigits))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPatientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find patient by phone: %w", err)
	}
	return p, nil
}

func (r *Repository) Summary(ctx context.Context, id string) (*Summary, error) {
	s := Summary{PatientID: id}
	var next, last sql.NullTime
	err := r.q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM treatment_plans
			  WHERE patient_id = $1 AND status IN ('PLANNED', 'ACTIVE', 'ON_HOLD')),
			(SELECT COALESCE(SUM(total_cost_cents), 0) FROM treatment_plans
			  WHERE patient_id = $1 AND status <> 'CANCELLED'),
			(SELECT COALESCE(SUM(amount_cents), 0) FROM payments
			  WHERE patient_id = $1 AND status = 'COMPLETED'),
			(SELECT COALESCE(SUM(amount_cents), 0) FROM payments
			  WHERE patient_id = $1 AND status = 'PENDING'),
			(SELECT MIN(start_time) FROM appointments
			  WHERE patient_id = $1 AND start_time > NOW() AND status IN ('SCHEDULED', 'CONFIRMED')),
			(SELECT MAX(start_time) FROM appointments
			  WHERE patient_id = $1 AND start_time <= NOW() AND status = 'COMPLETED')
	`, id).Scan(&s.ActivePlans, &s.TotalPlanCostCents, &s.PaidCents, &s.PendingCents, &next, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize patient: %w", err)
	}

	if next.Valid {
		s.NextAppointment = &next.Time
	}
	if last.Valid {
		s.LastAppointment = &last.Time
	}
	if diff := s.TotalPlanCostCents - s.PaidCents; diff > 0 {
		s.OutstandingCents = diff
	} else {
		s.CreditCents = -diff
	}
	return &s, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
