package note

import "time"

var noteTypes = map[string]bool{
	"EXAMINATION":  true,
	"PROGRESS":     true,
	"ADJUSTMENT":   true,
	"CONSULTATION": true,
	"GENERAL":      true,
}

// ClinicalNote is free text written by a clinician about a patient,
// optionally tied to a treatment plan or an appointment.
type ClinicalNote struct {
	ID              string     `json:"id"`
	PatientID       string     `json:"patient_id"`
	TreatmentPlanID *string    `json:"treatment_plan_id,omitempty"`
	AppointmentID   *string    `json:"appointment_id,omitempty"`
	AuthorID        string     `json:"author_id"`
	Type            string     `json:"type"`
	Content         string     `json:"content"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}

type CreateNoteRequest struct {
	PatientID       string  `json:"-"`
	AuthorID        string  `json:"-"`
	TreatmentPlanID *string `json:"treatment_plan_id,omitempty"`
	AppointmentID   *string `json:"appointment_id,omitempty"`
	Type            string  `json:"type"`
	Content         string  `json:"content"`
}

type UpdateNoteRequest struct {
	Type    *string `json:"type,omitempty"`
	Content *string `json:"content,omitempty"`
}
