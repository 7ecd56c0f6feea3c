package assessment

import "time"

type Assessment struct {
	ID         string `json:"id"`
	PatientID  string `json:"patient_id"`
	AssessedBy string `json:"assessed_by"`
	Measurements
	Score     int       `json:"score"`
	Severity  string    `json:"severity"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateAssessmentRequest struct {
	PatientID    string       `json:"-"`
	AssessedBy   string       `json:"-"`
	Measurements Measurements `json:"measurements"`
	Notes        *string      `json:"notes,omitempty"`
}

// Created pairs a stored assessment with its breakdown.
type Created struct {
	Assessment *Assessment `json:"assessment"`
	Result     Result      `json:"result"`
}
