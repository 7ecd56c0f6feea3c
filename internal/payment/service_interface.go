package payment

import (
	"context"
	"time"

	"github.com/orthoflow/practice-service/internal/pagination"
)

type ServiceInterface interface {
	RecordPayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
	ListPayments(ctx context.Context, filter ListFilter, params pagination.Params) (*pagination.Result[Payment], error)
	UpdateStatus(ctx context.Context, id string, req StatusRequest) (*Payment, error)
	Refund(ctx context.Context, id string, req RefundRequest) (*Payment, error)
	DeletePayment(ctx context.Context, id string) error
	Stats(ctx context.Context, from, to *time.Time) (*Stats, error)
	PatientBalance(ctx context.Context, patientID string) (*Balance, error)
}

type MetricsRecorder interface {
	RecordPayment(ctx context.Context, operation, method string, amountCents int64)
}
