// Package legacysync imports confirmed bookings from the legacy MySQL
// booking system into patients and appointments.
package legacysync

import (
	"database/sql"
	"time"
)

// Run triggers.
const (
	TriggerScheduler = "scheduler"
	TriggerManual    = "manual"
	TriggerCLI       = "cli"
)

// Run statuses.
const (
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusPartial   = "PARTIAL"
	StatusFailed    = "FAILED"
)

// Issue kinds.
const (
	IssueSkipped = "skipped"
	IssueFailed  = "failed"
)

// Booking is one row of the legacy bookings table.
type Booking struct {
	ID              int64
	FirstName       sql.NullString
	LastName        sql.NullString
	Email           sql.NullString
	Phone           sql.NullString
	Service         sql.NullString
	BookingDate     sql.NullTime
	BookingTime     sql.NullString
	DurationMinutes sql.NullInt64
	Status          string
	Notes           sql.NullString
	UpdatedAt       time.Time
}

// Issue records a booking that was skipped or failed.
type Issue struct {
	BookingID int64  `json:"booking_id"`
	Kind      string `json:"kind"`
	Reason    string `json:"reason"`
}

// Report summarizes one sync run. It is persisted in sync_runs.
type Report struct {
	ID                  string     `json:"id"`
	Trigger             string     `json:"triggered_by"`
	Status              string     `json:"status"`
	StartedAt           time.Time  `json:"started_at"`
	FinishedAt          *time.Time `json:"finished_at,omitempty"`
	Processed           int        `json:"processed"`
	PatientsCreated     int        `json:"patients_created"`
	PatientsMatched     int        `json:"patients_matched"`
	AppointmentsCreated int        `json:"appointments_created"`
	AppointmentsUpdated int        `json:"appointments_updated"`
	Unchanged           int        `json:"unchanged"`
	Skipped             int        `json:"skipped"`
	Failed              int        `json:"failed"`
	Issues              []Issue    `json:"issues"`
	Error               string     `json:"error,omitempty"`
}

func (r *Report) skip(bookingID int64, reason string) {
	r.Skipped++
	r.Issues = append(r.Issues, Issue{BookingID: bookingID, Kind: IssueSkipped, Reason: reason})
}

func (r *Report) fail(bookingID int64, reason string) {
	r.Failed++
	r.Issues = append(r.Issues, Issue{BookingID: bookingID, Kind: IssueFailed, Reason: reason})
}

// finish sets the final status from the counters unless a fatal error
// was already recorded.
func (r *Report) finish(at time.Time) {
	r.FinishedAt = &at
	switch {
	case r.Error != "":
		r.Status = StatusFailed
	case r.Failed > 0:
		r.Status = StatusPartial
	default:
		r.Status = StatusSucceeded
	}
}
