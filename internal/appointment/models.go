package appointment

import "time"

// Appointment types.
const (
	TypeConsultation  = "CONSULTATION"
	TypeAdjustment    = "ADJUSTMENT"
	TypeBracesFitting = "BRACES_FITTING"
	TypeBracesRemoval = "BRACES_REMOVAL"
	TypeCheckup       = "CHECKUP"
	TypeRetainer      = "RETAINER"
	TypeEmergency     = "EMERGENCY"
	TypeOther         = "OTHER"
)

// Appointment statuses.
const (
	StatusScheduled = "SCHEDULED"
	StatusConfirmed = "CONFIRMED"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
	StatusNoShow    = "NO_SHOW"
)

// Sources.
const (
	SourceLocal  = "LOCAL"
	SourceLegacy = "LEGACY"
)

const DefaultDuration = 30 * time.Minute

var validTypes = map[string]bool{
	TypeConsultation: true, TypeAdjustment: true, TypeBracesFitting: true, TypeBracesRemoval: true,
	TypeCheckup: true, TypeRetainer: true, TypeEmergency: true, TypeOther: true,
}

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCompleted: true, StatusCancelled: true, StatusNoShow: true,
}

// IsValidType reports whether t is a known appointment type.
func IsValidType(t string) bool { return validTypes[t] }

// IsValidStatus reports whether s is a known appointment status.
func IsValidStatus(s string) bool { return validStatuses[s] }

type Appointment struct {
	ID              string     `json:"id"`
	PatientID       string     `json:"patient_id"`
	StaffID         *string    `json:"staff_id,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	Type            string     `json:"type"`
	Status          string     `json:"status"`
	Notes           *string    `json:"notes,omitempty"`
	Source          string     `json:"source"`
	LegacyBookingID *int64     `json:"legacy_booking_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientID string     `json:"patient_id"`
	StaffID   *string    `json:"staff_id,omitempty"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Type      string     `json:"type"`
	Notes     *string    `json:"notes,omitempty"`
}

// UpdateAppointmentRequest is a partial update. An empty staff_id string
// unassigns the staff member.
type UpdateAppointmentRequest struct {
	StaffID   *string    `json:"staff_id,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Type      *string    `json:"type,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

// ListFilter narrows an appointment listing. From and To bound start_time.
type ListFilter struct {
	From      *time.Time
	To        *time.Time
	PatientID string
	StaffID   string
	Status    string
}

// LegacyBooking is a booking from the legacy system mapped onto
// appointment fields.
type LegacyBooking struct {
	BookingID int64
	PatientID string
	StartTime time.Time
	EndTime   time.Time
	Type      string
	Status    string
	Notes     *string
}

// UpsertOutcome reports what UpsertLegacy did with a booking.
type UpsertOutcome string

const (
	OutcomeCreated   UpsertOutcome = "created"
	OutcomeUpdated   UpsertOutcome = "updated"
	OutcomeUnchanged UpsertOutcome = "unchanged"
)
