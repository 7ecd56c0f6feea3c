package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Event routing keys
const (
	EventPatientCreated = "patient.created"
	EventPatientUpdated = "patient.updated"
	EventPatientDeleted = "patient.deleted"
	EventPatientPurged  = "patient.purged"

	EventStaffCreated     = "staff.created"
	EventStaffDeactivated = "staff.deactivated"

	EventTreatmentPlanStatusChanged = "treatment.plan_status_changed"
	EventTreatmentPhaseCompleted    = "treatment.phase_completed"

	EventAppointmentCreated       = "appointment.created"
	EventAppointmentStatusChanged = "appointment.status_changed"

	EventPaymentRecorded = "payment.recorded"
	EventPaymentRefunded = "payment.refunded"

	EventPhotoUploaded = "photo.uploaded"
	EventPhotoDeleted  = "photo.deleted"
	EventPhotoPaired   = "photo.paired"

	EventSyncCompleted = "sync.completed"
)

const serviceName = "practice-service"

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	Timestamp   time.Time `json:"timestamp"`
	ServiceName string    `json:"service_name"`
}

// ID returns the event id. Publisher uses it as the AMQP message id.
func (b BaseEvent) ID() string { return b.EventID }

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType:   eventType,
		EventID:     uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		ServiceName: serviceName,
	}
}

type PatientEvent struct {
	BaseEvent
	Data PatientData `json:"data"`
}

type PatientData struct {
	PatientID    string     `json:"patient_id"`
	FirstName    string     `json:"first_name,omitempty"`
	LastName     string     `json:"last_name,omitempty"`
	Email        string     `json:"email,omitempty"`
	LegacySource string     `json:"legacy_source,omitempty"`
	IsActive     bool       `json:"is_active"`
	OccurredAt   time.Time  `json:"occurred_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

type StaffEvent struct {
	BaseEvent
	Data StaffData `json:"data"`
}

type StaffData struct {
	StaffID  string `json:"staff_id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// StatusChangedData is shared by plan, appointment and payment status changes.
type StatusChangedData struct {
	EntityID  string    `json:"entity_id"`
	PatientID string    `json:"patient_id"`
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	ChangedAt time.Time `json:"changed_at"`
}

type StatusChangedEvent struct {
	BaseEvent
	Data StatusChangedData `json:"data"`
}

type PhaseCompletedEvent struct {
	BaseEvent
	Data PhaseCompletedData `json:"data"`
}

type PhaseCompletedData struct {
	PlanID    string `json:"plan_id"`
	PhaseID   string `json:"phase_id"`
	PatientID string `json:"patient_id"`
	Sequence  int    `json:"sequence"`
	Name      string `json:"name"`
	Progress  int    `json:"progress"`
}

type AppointmentCreatedEvent struct {
	BaseEvent
	Data AppointmentData `json:"data"`
}

type AppointmentData struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	StaffID       string    `json:"staff_id,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Source        string    `json:"source"`
}

type PaymentEvent struct {
	BaseEvent
	Data PaymentData `json:"data"`
}

type PaymentData struct {
	PaymentID   string `json:"payment_id"`
	PatientID   string `json:"patient_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Method      string `json:"method"`
	Status      string `json:"status"`
}

type PhotoEvent struct {
	BaseEvent
	Data PhotoData `json:"data"`
}

type PhotoData struct {
	PhotoID    string `json:"photo_id"`
	PatientID  string `json:"patient_id"`
	CategoryID string `json:"category_id,omitempty"`
	PublicID   string `json:"public_id,omitempty"`
	PairID     string `json:"pair_id,omitempty"`
	PartnerID  string `json:"partner_id,omitempty"`
}

type SyncCompletedEvent struct {
	BaseEvent
	Data SyncCompletedData `json:"data"`
}

type SyncCompletedData struct {
	RunID               string    `json:"run_id"`
	Trigger             string    `json:"trigger"`
	Status              string    `json:"status"`
	Processed           int       `json:"processed"`
	PatientsCreated     int       `json:"patients_created"`
	AppointmentsCreated int       `json:"appointments_created"`
	AppointmentsUpdated int       `json:"appointments_updated"`
	Failed              int       `json:"failed"`
	FinishedAt          time.Time `json:"finished_at"`
}
