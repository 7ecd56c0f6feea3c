package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", agg)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_RecordsBusinessCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordPatientOperation(ctx, "create")
	m.RecordPatientOperation(ctx, "delete")
	m.RecordAppointmentOperation(ctx, "create")
	m.RecordPayment(ctx, "record", "CARD", 12500)
	m.RecordPayment(ctx, "refund", "CARD", 0)
	m.RecordHTTPRequest(ctx, "GET", "/patients", 200, 12.5)
	m.RecordAuthFailure(ctx, "invalid_token")

	got := collect(t, reader)
	assert.Equal(t, int64(2), sumOf(t, got["patient_operations_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["appointment_operations_total"]))
	assert.Equal(t, int64(2), sumOf(t, got["payment_operations_total"]))
	assert.Equal(t, int64(12500), sumOf(t, got["payment_amount_cents_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["http_server_requests_total"]))
	assert.Equal(t, int64(1), sumOf(t, got["auth_failures_total"]))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordPatientOperation(ctx, "create")
		m.RecordPayment(ctx, "record", "CASH", 100)
		m.RecordHTTPRequest(ctx, "GET", "/", 200, 1)
		m.RecordPermissionCheck(ctx, "patient:view", 0, true)
	})
}
