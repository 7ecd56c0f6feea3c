package patient

import "time"

// Legacy sources recorded on a patient row.
const (
	SourceLocal  = "LOCAL"
	SourceLegacy = "LEGACY"
)

// Patient is a practice patient. Deleted patients keep their row with
// DeletedAt set until the retention job purges them.
type Patient struct {
	ID                    string     `json:"id"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	Email                 string     `json:"email,omitempty"`
	Phone                 string     `json:"phone,omitempty"`
	DateOfBirth           *string    `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	Gender                string     `json:"gender,omitempty"`
	Address               string     `json:"address,omitempty"`
	EmergencyContactName  string     `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string     `json:"emergency_contact_phone,omitempty"`
	MedicalHistory        string     `json:"medical_history,omitempty"`
	Allergies             string     `json:"allergies,omitempty"`
	LegacySource          string     `json:"legacy_source"`
	IsActive              bool       `json:"is_active"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
	DeletedAt             *time.Time `json:"deleted_at,omitempty"`
}

// FullName joins first and last name.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Counts are the related record totals shown on the patient page.
type Counts struct {
	TreatmentPlans int `json:"treatment_plans"`
	Appointments   int `json:"appointments"`
	Photos         int `json:"photos"`
}

// Detail is a patient with related record counts.
type Detail struct {
	Patient
	Counts Counts `json:"counts"`
}

// Summary is the financial and scheduling overview of one patient.
type Summary struct {
	PatientID          string     `json:"patient_id"`
	ActivePlans        int        `json:"active_plans"`
	TotalPlanCostCents int64      `json:"total_plan_cost_cents"`
	PaidCents          int64      `json:"paid_cents"`
	PendingCents       int64      `json:"pending_cents"`
	OutstandingCents   int64      `json:"outstanding_cents"`
	CreditCents        int64      `json:"credit_cents"`
	NextAppointment    *time.Time `json:"next_appointment,omitempty"`
	LastAppointment    *time.Time `json:"last_appointment,omitempty"`
}

// CreatePatientRequest represents the request to create a new patient
type CreatePatientRequest struct {
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	Email                 string `json:"email"`
	Phone                 string `json:"phone"`
	DateOfBirth           string `json:"date_of_birth"`
	Gender                string `json:"gender"`
	Address               string `json:"address"`
	EmergencyContactName  string `json:"emergency_contact_name"`
	EmergencyContactPhone string `json:"emergency_contact_phone"`
	MedicalHistory        string `json:"medical_history"`
	Allergies             string `json:"allergies"`

	// Set by the booking sync; API callers always create LOCAL patients.
	LegacySource string `json:"-"`
}

// UpdatePatientRequest is a partial update; nil fields are left unchanged.
type UpdatePatientRequest struct {
	FirstName             *string `json:"first_name,omitempty"`
	LastName              *string `json:"last_name,omitempty"`
	Email                 *string `json:"email,omitempty"`
	Phone                 *string `json:"phone,omitempty"`
	DateOfBirth           *string `json:"date_of_birth,omitempty"`
	Gender                *string `json:"gender,omitempty"`
	Address               *string `json:"address,omitempty"`
	EmergencyContactName  *string `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string `json:"emergency_contact_phone,omitempty"`
	MedicalHistory        *string `json:"medical_history,omitempty"`
	Allergies             *string `json:"allergies,omitempty"`
	IsActive              *bool   `json:"is_active,omitempty"`
}

// ListFilter narrows a patient listing.
type ListFilter struct {
	Search string // matches name, email or phone
	Active *bool
}
