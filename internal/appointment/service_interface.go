package appointment

import (
	"context"

	"github.com/orthoflow/practice-service/internal/pagination"
)

type ServiceInterface interface {
	CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*Appointment, error)
	GetAppointment(ctx context.Context, id string) (*Appointment, error)
	ListAppointments(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Result[Appointment], error)
	UpdateAppointment(ctx context.Context, id string, req UpdateAppointmentRequest) (*Appointment, error)
	UpdateStatus(ctx context.Context, id string, req StatusRequest) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id string) error
	Upcoming(ctx context.Context, patientID string, limit int) ([]Appointment, error)
}

type MetricsRecorder interface {
	RecordAppointmentOperation(ctx context.Context, operation string)
}
