package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/orthoflow/practice-service"

// Metrics holds the service's business and HTTP instruments.
type Metrics struct {
	HTTPRequestsTotal metric.Int64Counter
	HTTPDurationMs    metric.Float64Histogram

	PatientTotal     metric.Int64Counter
	TreatmentTotal   metric.Int64Counter
	AppointmentTotal metric.Int64Counter
	PaymentTotal     metric.Int64Counter
	PaymentAmount    metric.Int64Counter
	PhotoTotal       metric.Int64Counter

	AuthFailuresTotal       metric.Int64Counter
	PermissionCheckDuration metric.Float64Histogram
}

// InitMetrics builds the instruments on the global meter provider.
func InitMetrics() (*Metrics, error) {
	return NewMetrics(otel.Meter(meterName))
}

// NewMetrics builds the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&m.HTTPRequestsTotal, "http_server_requests_total", "Total number of HTTP requests", "{request}"},
		{&m.PatientTotal, "patient_operations_total", "Patient operations", "{operation}"},
		{&m.TreatmentTotal, "treatment_operations_total", "Treatment plan and phase operations", "{operation}"},
		{&m.AppointmentTotal, "appointment_operations_total", "Appointment operations", "{operation}"},
		{&m.PaymentTotal, "payment_operations_total", "Payment operations", "{operation}"},
		{&m.PaymentAmount, "payment_amount_cents_total", "Sum of recorded payment amounts", "{cent}"},
		{&m.PhotoTotal, "photo_operations_total", "Clinical photo operations", "{operation}"},
		{&m.AuthFailuresTotal, "auth_failures_total", "Total number of authentication failures", "{failure}"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
	}

	m.HTTPDurationMs, err = meter.Float64Histogram(
		"http_server_duration_milliseconds",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	m.PermissionCheckDuration, err = meter.Float64Histogram(
		"permission_check_duration_ms",
		metric.WithDescription("Permission check duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http_method", method),
		attribute.String("http_route", route),
		attribute.Int("http_status_code", statusCode),
	)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)
	m.HTTPDurationMs.Record(ctx, durationMs, attrs)
}

func (m *Metrics) RecordPatientOperation(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.PatientTotal.Add(ctx, 1, operationAttr(operation))
}

func (m *Metrics) RecordTreatmentOperation(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.TreatmentTotal.Add(ctx, 1, operationAttr(operation))
}

func (m *Metrics) RecordAppointmentOperation(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.AppointmentTotal.Add(ctx, 1, operationAttr(operation))
}

func (m *Metrics) RecordPhotoOperation(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.PhotoTotal.Add(ctx, 1, operationAttr(operation))
}

func operationAttr(operation string) metric.AddOption {
	return metric.WithAttributes(attribute.String("operation", operation))
}

// RecordPayment counts a payment operation; amountCents is added to the
// amount counter when positive.
func (m *Metrics) RecordPayment(ctx context.Context, operation, method string, amountCents int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("method", method),
	)
	m.PaymentTotal.Add(ctx, 1, attrs)
	if amountCents > 0 {
		m.PaymentAmount.Add(ctx, amountCents, attrs)
	}
}

// RecordAuthFailure records an authentication failure metric
func (m *Metrics) RecordAuthFailure(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordPermissionCheck records a permission check duration metric
func (m *Metrics) RecordPermissionCheck(ctx context.Context, permission string, durationMs float64, allowed bool) {
	if m == nil {
		return
	}
	m.PermissionCheckDuration.Record(ctx, durationMs, metric.WithAttributes(
		attribute.String("permission", permission),
		attribute.Bool("allowed", allowed),
	))
}
