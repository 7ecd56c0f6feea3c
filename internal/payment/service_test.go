package payment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orthoflow/practice-service/internal/apperr"
	"github.com/orthoflow/practice-service/internal/messaging"
	"github.com/orthoflow/practice-service/internal/pagination"
	"github.com/orthoflow/practice-service/internal/testutil"
)

var errNotImplemented = errors.New("not implemented")

const patientUUID = "4f7d3c1e-8a2b-4c5d-9e6f-0a1b2c3d4e5f"

var fixedNow = time.Date(2026, 10, 19, 10, 30, 0, 0, time.UTC)

type mockRepository struct {
	createFunc       func(ctx context.Context, p Payment) (*Payment, error)
	getFunc          func(ctx context.Context, id string) (*Payment, error)
	updateStatusFunc func(ctx context.Context, id, from, to string, paidAt *time.Time) (*Payment, error)
	refundFunc       func(ctx context.Context, id, reason string) (*Payment, error)
	statsFunc        func(ctx context.Context, from, to time.Time) (*Stats, error)
}

func (m *mockRepository) Create(ctx context.Context, p Payment) (*Payment, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, p)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) Get(ctx context.Context, id string) (*Payment, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, ErrPaymentNotFound
}

func (m *mockRepository) List(ctx context.Context, filter ListFilter, params pagination.Params) ([]Payment, int, error) {
	return nil, 0, errNotImplemented
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id, from, to string, paidAt *time.Time) (*Payment, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, from, to, paidAt)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) Refund(ctx context.Context, id, reason string) (*Payment, error) {
	if m.refundFunc != nil {
		return m.refundFunc(ctx, id, reason)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) Delete(ctx context.Context, id string) error {
	return errNotImplemented
}

func (m *mockRepository) Stats(ctx context.Context, from, to time.Time) (*Stats, error) {
	if m.statsFunc != nil {
		return m.statsFunc(ctx, from, to)
	}
	return nil, errNotImplemented
}

func (m *mockRepository) PatientBalance(ctx context.Context, patientID string) (*Balance, error) {
	return nil, errNotImplemented
}

type recordedPayment struct {
	op     string
	method string
	amount int64
}

type fakeMetrics struct {
	calls []recordedPayment
}

func (f *fakeMetrics) RecordPayment(ctx context.Context, operation, method string, amountCents int64) {
	f.calls = append(f.calls, recordedPayment{operation, method, amountCents})
}

func newTestService(repo RepositoryInterface, pub messaging.PublisherInterface, metrics MetricsRecorder) *Service {
	s := NewService(repo, pub, metrics, zerolog.Nop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func echoCreate(stored *Payment) func(ctx context.Context, p Payment) (*Payment, error) {
	return func(ctx context.Context, p Payment) (*Payment, error) {
		*stored = p
		p.ID = "pay-1"
		return &p, nil
	}
}

func TestRecordPayment_DefaultsToCompletedNow(t *testing.T) {
	var stored Payment
	pub := testutil.NewMockPublisher()
	metrics := &fakeMetrics{}
	svc := newTestService(&mockRepository{createFunc: echoCreate(&stored)}, pub, metrics)

	ref := "  POS-4411 "
	_, err := svc.RecordPayment(context.Background(), CreatePaymentRequest{
		PatientID: patientUUID, AmountCents: 15000, Method: "card", Reference: &ref,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, DefaultCurrency, stored.Currency)
	assert.Equal(t, MethodCard, stored.Method)
	require.NotNil(t, stored.PaidAt)
	assert.Equal(t, fixedNow, *stored.PaidAt)
	assert.Equal(t, "POS-4411", *stored.Reference)

	pub.AssertPublished(t, messaging.EventPaymentRecorded, 1)
	require.Len(t, metrics.calls, 1)
	assert.Equal(t, recordedPayment{"record", MethodCard, 15000}, metrics.calls[0])
}

func TestRecordPayment_PendingHasNoPaidAt(t *testing.T) {
	var stored Payment
	metrics := &fakeMetrics{}
	svc := newTestService(&mockRepository{createFunc: echoCreate(&stored)}, nil, metrics)

	_, err := svc.RecordPayment(context.Background(), CreatePaymentRequest{
		PatientID: patientUUID, AmountCents: 5000, Method: MethodInsurance, Status: "pending", Currency: "chf",
	})
	require.NoError(t, err)
	assert.Nil(t, stored.PaidAt)
	assert.Equal(t, "CHF", stored.Currency)
	assert.Equal(t, int64(0), metrics.calls[0].amount)
}

func TestRecordPayment_Validation(t *testing.T) {
	svc := newTestService(&mockRepository{}, nil, nil)
	future := fixedNow.Add(time.Hour)
	badPlan := "plan"

	tests := []struct {
		name  string
		req   CreatePaymentRequest
		field string
	}{
		{"bad patient", CreatePaymentRequest{PatientID: "p", AmountCents: 1, Method: MethodCash}, "patient_id"},
		{"bad plan", CreatePaymentRequest{PatientID: patientUUID, TreatmentPlanID: &badPlan, AmountCents: 1, Method: MethodCash}, "treatment_plan_id"},
		{"zero amount", CreatePaymentRequest{PatientID: patientUUID, Method: MethodCash}, "amount_cents"},
		{"bad currency", CreatePaymentRequest{PatientID: patientUUID, AmountCents: 1, Method: MethodCash, Currency: "EURO"}, "currency"},
		{"bad method", CreatePaymentRequest{PatientID: patientUUID, AmountCents: 1, Method: "crypto"}, "method"},
		{"refunded on create", CreatePaymentRequest{PatientID: patientUUID, AmountCents: 1, Method: MethodCash, Status: StatusRefunded}, "status"},
		{"future paid_at", CreatePaymentRequest{PatientID: patientUUID, AmountCents: 1, Method: MethodCash, PaidAt: &future}, "paid_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordPayment(context.Background(), tt.req)
			var ve *apperr.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestUpdateStatus_CompletingSetsPaidAt(t *testing.T) {
	current := &Payment{ID: "pay-1", Status: StatusPending, Method: MethodBankTransfer, AmountCents: 9900}
	var gotPaidAt *time.Time
	repo := &mockRepository{
		getFunc: func(ctx context.Context, id string) (*Payment, error) { return current, nil },
		updateStatusFunc: func(ctx context.Context, id, from, to string, paidAt *time.Time) (*Payment, error) {
			gotPaidAt = paidAt
			p := *current
			p.Status = to
			p.PaidAt = paidAt
			return &p, nil
		},
	}
	pub := testutil.NewMockPublisher()
	metrics := &fakeMetrics{}
	svc := newTestService(repo, pub, metrics)

	p, err := svc.UpdateStatus(context.Background(), "pay-1", StatusRequest{Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, p.Status)
	require.NotNil(t, gotPaidAt)
	assert.Equal(t, fixedNow, *gotPaidAt)
	pub.AssertPublished(t, messaging.EventPaymentRecorded, 1)
	assert.Equal(t, int64(9900), metrics.calls[0].amount)
}

func TestUpdateStatus_Rules(t *testing.T) {
	current := &Payment{ID: "pay-1", Status: StatusCompleted}
	svc := newTestService(&mockRepository{
		getFunc: func(ctx context.Context, id string) (*Payment, error) { return current, nil },
	}, nil, nil)

	_, err := svc.UpdateStatus(context.Background(), "pay-1", StatusRequest{Status: StatusRefunded})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.UpdateStatus(context.Background(), "pay-1", StatusRequest{Status: StatusPending})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	same, err := svc.UpdateStatus(context.Background(), "pay-1", StatusRequest{Status: StatusCompleted})
	require.NoError(t, err)
	assert.Same(t, current, same)
}

func TestRefund(t *testing.T) {
	var gotReason string
	repo := &mockRepository{refundFunc: func(ctx context.Context, id, reason string) (*Payment, error) {
		gotReason = reason
		return &Payment{ID: id, Status: StatusRefunded, AmountCents: 2000, Method: MethodCard}, nil
	}}
	pub := testutil.NewMockPublisher()
	svc := newTestService(repo, pub, nil)

	_, err := svc.Refund(context.Background(), "pay-1", RefundRequest{Reason: " treatment cancelled "})
	require.NoError(t, err)
	assert.Equal(t, "treatment cancelled", gotReason)

	var ev messaging.PaymentEvent
	pub.DecodeLast(t, messaging.EventPaymentRefunded, &ev)
	assert.Equal(t, StatusRefunded, ev.Data.Status)
	assert.Equal(t, int64(2000), ev.Data.AmountCents)
}

func TestStats_DefaultsToCurrentMonth(t *testing.T) {
	var gotFrom, gotTo time.Time
	repo := &mockRepository{statsFunc: func(ctx context.Context, from, to time.Time) (*Stats, error) {
		gotFrom, gotTo = from, to
		return &Stats{From: from, To: to}, nil
	}}
	svc := newTestService(repo, nil, nil)

	_, err := svc.Stats(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), gotFrom)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), gotTo)

	from := fixedNow
	_, err = svc.Stats(context.Background(), &from, &from)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestRefundHandler_EmptyBody(t *testing.T) {
	repo := &mockRepository{refundFunc: func(ctx context.Context, id, reason string) (*Payment, error) {
		assert.Empty(t, reason)
		return nil, ErrNotRefundable
	}}
	h := NewHandler(newTestService(repo, nil, nil))

	id := "0b1c2d3e-4f50-4a6b-8c7d-9e0f1a2b3c4d"
	rec := httptest.NewRecorder()
	h.Refund(rec, testutil.NewRequest(t, http.MethodPost, "/payments/"+id+"/refund", nil, map[string]string{"id": id}))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
